// Package fetcher orchestrates provider fallback: cache check, priority
// iteration with per-provider pacing, and aggregate failure reporting.
package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/cache"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/pacing"
	"github.com/quantlab/stockfeed/pkg/provider"
	"github.com/quantlab/stockfeed/pkg/schema"
)

// Config holds fetcher configuration.
type Config struct {
	// Sources is the provider fallback chain, highest priority first.
	Sources []provider.Source

	// Store caches results. Nil selects a fresh memory-only store.
	Store *cache.Store

	// Governor paces provider calls. Nil selects a fresh governor.
	Governor *pacing.Governor

	// CacheTTL is how long results stay fresh (default 300s).
	CacheTTL time.Duration

	// PacingMin and PacingMax bound the randomized delay between calls
	// to the same provider (defaults 2s and 5s).
	PacingMin time.Duration
	PacingMax time.Duration

	// LocalAttempts is how many times a single provider is tried per
	// call before the chain advances (default 2). This smooths
	// transient empty results and is separate from transport retries.
	LocalAttempts int

	// LocalBaseDelay seeds the backoff between local attempts
	// (default 500ms).
	LocalBaseDelay time.Duration
}

// DefaultConfig returns the standard production configuration, without
// sources.
func DefaultConfig() Config {
	return Config{
		CacheTTL:       300 * time.Second,
		PacingMin:      2 * time.Second,
		PacingMax:      5 * time.Second,
		LocalAttempts:  2,
		LocalBaseDelay: 500 * time.Millisecond,
	}
}

// Stats is a point-in-time snapshot of fetcher activity.
type Stats struct {
	// RequestsTotal counts fetch calls since construction, cache hits
	// included.
	RequestsTotal uint64 `json:"requests_total"`

	// IntervalMin and IntervalMax are the configured pacing band.
	IntervalMin time.Duration `json:"interval_min"`
	IntervalMax time.Duration `json:"interval_max"`

	// CurrentSource is the provider that served the most recent
	// successful fetch. Empty before the first success.
	CurrentSource string `json:"current_source"`
}

// Fetcher answers quote/info/universe calls by trying providers in
// configured priority order, caching the first usable result.
type Fetcher struct {
	sources  []provider.Source
	store    *cache.Store
	governor *pacing.Governor
	cfg      Config
	logger   zerolog.Logger

	requests atomic.Uint64

	mu            sync.Mutex
	currentSource string
}

// New creates a fetcher. Config zero values are replaced with defaults.
func New(cfg Config) *Fetcher {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.PacingMin <= 0 {
		cfg.PacingMin = def.PacingMin
	}
	if cfg.PacingMax < cfg.PacingMin {
		cfg.PacingMax = cfg.PacingMin
	}
	if cfg.LocalAttempts <= 0 {
		cfg.LocalAttempts = def.LocalAttempts
	}
	if cfg.LocalBaseDelay <= 0 {
		cfg.LocalBaseDelay = def.LocalBaseDelay
	}
	if cfg.Store == nil {
		cfg.Store = cache.NewStore(nil)
	}
	if cfg.Governor == nil {
		cfg.Governor = pacing.NewGovernor()
	}

	return &Fetcher{
		sources:  cfg.Sources,
		store:    cfg.Store,
		governor: cfg.Governor,
		cfg:      cfg,
		logger:   logging.NewLogger("fetcher"),
	}
}

// Quote returns the first usable quote from the fallback chain.
func (f *Fetcher) Quote(ctx context.Context, symbol string) (schema.Quote, error) {
	return fallback(ctx, f, cache.OpQuote, symbol,
		func(d schema.ProviderDescriptor) bool { return d.CanFetchQuote },
		func(ctx context.Context, src provider.Source) (schema.Quote, bool, error) {
			q, err := src.Quote(ctx, symbol)
			if err != nil {
				return schema.Quote{}, false, err
			}
			return q, !q.Empty() && q.Valid(), nil
		})
}

// Info returns the first usable reference info from the fallback chain.
func (f *Fetcher) Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error) {
	return fallback(ctx, f, cache.OpInfo, symbol,
		func(d schema.ProviderDescriptor) bool { return d.CanFetchInfo },
		func(ctx context.Context, src provider.Source) (schema.ReferenceInfo, bool, error) {
			info, err := src.Info(ctx, symbol)
			if err != nil {
				return schema.ReferenceInfo{}, false, err
			}
			return info, !info.Empty(), nil
		})
}

// Universe returns the tradable universe from the first provider with a
// listing endpoint.
func (f *Fetcher) Universe(ctx context.Context) ([]schema.Listing, error) {
	return fallback(ctx, f, cache.OpUniverse, "",
		func(d schema.ProviderDescriptor) bool { return d.CanListUniverse },
		func(ctx context.Context, src provider.Source) ([]schema.Listing, bool, error) {
			listings, err := src.Universe(ctx)
			if err != nil {
				return nil, false, err
			}
			return listings, len(listings) > 0, nil
		})
}

// Stats reports activity counters and the configured pacing band.
func (f *Fetcher) Stats() Stats {
	f.mu.Lock()
	current := f.currentSource
	f.mu.Unlock()

	return Stats{
		RequestsTotal: f.requests.Load(),
		IntervalMin:   f.cfg.PacingMin,
		IntervalMax:   f.cfg.PacingMax,
		CurrentSource: current,
	}
}

// ClearCache drops all cached results.
func (f *Fetcher) ClearCache(ctx context.Context) error {
	return f.store.Clear(ctx)
}

func (f *Fetcher) markSuccess(source string) {
	f.mu.Lock()
	f.currentSource = source
	f.mu.Unlock()
}

// fallback runs the per-call state machine: cache check, then each
// capable provider in order with pacing and a small local retry. The
// call func reports whether its result is usable; unusable results and
// errors both advance the chain.
func fallback[T any](
	ctx context.Context,
	f *Fetcher,
	op cache.Op,
	symbol string,
	capable func(schema.ProviderDescriptor) bool,
	call func(context.Context, provider.Source) (T, bool, error),
) (T, error) {
	var zero T
	f.requests.Add(1)

	key := cache.Key{Op: op, Symbol: symbol}
	if entry, err := f.store.Get(ctx, key); err == nil {
		var cached T
		if err := entry.Decode(&cached); err == nil {
			FetchesTotal.WithLabelValues(string(op), "hit").Inc()
			return cached, nil
		}
		// A corrupted entry falls through to a fresh fetch.
		_ = f.store.Delete(ctx, key)
	}

	attempts := make([]Attempt, 0, len(f.sources))
	tried := 0
	for _, src := range f.sources {
		if !capable(src.Descriptor()) {
			continue
		}
		tried++

		if err := f.governor.Wait(ctx, "provider:"+src.Name(), f.cfg.PacingMin, f.cfg.PacingMax); err != nil {
			return zero, err
		}

		value, usable, lastErr := tryProvider(ctx, f, src, call)
		if lastErr != nil && ctx.Err() != nil {
			return zero, lastErr
		}
		if usable {
			f.cacheResult(ctx, key, value, src.Name())
			f.markSuccess(src.Name())
			ProviderResults.WithLabelValues(src.Name(), "success").Inc()
			FetchesTotal.WithLabelValues(string(op), "fetched").Inc()
			FallbackDepth.Observe(float64(tried))
			return value, nil
		}

		if lastErr != nil {
			ProviderResults.WithLabelValues(src.Name(), "error").Inc()
			f.logger.Warn().
				Str("op", string(op)).
				Str("symbol", symbol).
				Str("provider", src.Name()).
				Err(lastErr).
				Msg("Provider failed, trying next")
		} else {
			ProviderResults.WithLabelValues(src.Name(), "empty").Inc()
			f.logger.Debug().
				Str("op", string(op)).
				Str("symbol", symbol).
				Str("provider", src.Name()).
				Msg("Provider returned no data, trying next")
		}
		attempts = append(attempts, Attempt{Provider: src.Name(), Err: lastErr})
	}

	FetchesTotal.WithLabelValues(string(op), "exhausted").Inc()
	return zero, &ExhaustedError{Op: string(op), Symbol: symbol, Attempts: attempts}
}

// tryProvider calls src up to LocalAttempts times, backing off between
// attempts.
func tryProvider[T any](
	ctx context.Context,
	f *Fetcher,
	src provider.Source,
	call func(context.Context, provider.Source) (T, bool, error),
) (T, bool, error) {
	var zero T
	var lastErr error

	for i := 0; i < f.cfg.LocalAttempts; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, localBackoff(f.cfg.LocalBaseDelay, i-1)); err != nil {
				return zero, false, err
			}
		}

		value, usable, err := call(ctx, src)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return zero, false, err
			}
			lastErr = err
			continue
		}
		if usable {
			return value, true, nil
		}
	}
	return zero, false, lastErr
}

// localBackoff is 0.5·2^i seconds scaled by a [0.5, 1.5) factor, matching
// the smoothing retry's intent of de-synchronizing repeat calls.
func localBackoff(base time.Duration, attempt int) time.Duration {
	d := float64(base) * float64(int64(1)<<uint(attempt))
	return time.Duration(d * (0.5 + rand.Float64()))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (f *Fetcher) cacheResult(ctx context.Context, key cache.Key, value any, source string) {
	entry, err := cache.NewEntry(value, source, f.cfg.CacheTTL)
	if err != nil {
		f.logger.Error().Str("key", key.String()).Err(err).Msg("Encoding cache entry failed")
		return
	}
	if err := f.store.Set(ctx, key, entry); err != nil {
		f.logger.Warn().Str("key", key.String()).Err(err).Msg("Cache write failed")
	}
}
