package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quantlab/stockfeed/pkg/provider"
	"github.com/quantlab/stockfeed/pkg/schema"
)

// fakeSource scripts per-call outcomes: each Quote call consumes the
// next scripted step, later calls fall back to empty.
type fakeSource struct {
	name string
	desc schema.ProviderDescriptor

	mu         sync.Mutex
	quoteCalls int
	quotes     []schema.Quote
	quoteErrs  []error

	infoCalls int
	info      schema.ReferenceInfo

	universeCalls int
	universe      []schema.Listing
}

func newFakeSource(name string) *fakeSource {
	return &fakeSource{
		name: name,
		desc: schema.ProviderDescriptor{
			Name:            name,
			CanListUniverse: true,
			CanFetchInfo:    true,
			CanFetchQuote:   true,
		},
	}
}

func (s *fakeSource) Name() string                          { return s.name }
func (s *fakeSource) Descriptor() schema.ProviderDescriptor { return s.desc }

func (s *fakeSource) Quote(ctx context.Context, symbol string) (schema.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.quoteCalls
	s.quoteCalls++
	if i < len(s.quoteErrs) && s.quoteErrs[i] != nil {
		return schema.Quote{}, s.quoteErrs[i]
	}
	if i < len(s.quotes) {
		return s.quotes[i], nil
	}
	return schema.Quote{}, nil
}

func (s *fakeSource) Info(ctx context.Context, symbol string) (schema.ReferenceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infoCalls++
	return s.info, nil
}

func (s *fakeSource) Universe(ctx context.Context) ([]schema.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.universeCalls++
	return s.universe, nil
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quoteCalls
}

func fastFetcherConfig(sources ...provider.Source) Config {
	return Config{
		Sources:        sources,
		CacheTTL:       time.Minute,
		PacingMin:      time.Millisecond,
		PacingMax:      2 * time.Millisecond,
		LocalAttempts:  1,
		LocalBaseDelay: time.Millisecond,
	}
}

func validQuote(source string) schema.Quote {
	return schema.Quote{
		Symbol:     "000001",
		Name:       "平安银行",
		Price:      12.34,
		Source:     source,
		ObservedAt: time.Now(),
	}
}

func TestQuote_SecondCallWithinTTLHitsCache(t *testing.T) {
	src := newFakeSource("primary")
	src.quotes = []schema.Quote{validQuote("primary"), validQuote("primary")}

	f := New(fastFetcherConfig(src))
	ctx := context.Background()

	first, err := f.Quote(ctx, "000001")
	if err != nil {
		t.Fatalf("first Quote() error = %v", err)
	}
	second, err := f.Quote(ctx, "000001")
	if err != nil {
		t.Fatalf("second Quote() error = %v", err)
	}

	if src.calls() != 1 {
		t.Errorf("provider called %d times, want 1", src.calls())
	}
	if first.Price != second.Price || first.Name != second.Name || first.Source != second.Source {
		t.Errorf("cached quote %+v differs from original %+v", second, first)
	}
}

func TestQuote_FallbackStopsAtFirstUsableResult(t *testing.T) {
	empty := newFakeSource("first")
	good := newFakeSource("second")
	good.quotes = []schema.Quote{validQuote("second")}
	never := newFakeSource("third")

	f := New(fastFetcherConfig(empty, good, never))

	q, err := f.Quote(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Source != "second" {
		t.Errorf("Source = %q, want second", q.Source)
	}
	if empty.calls() != 1 {
		t.Errorf("first provider called %d times, want 1", empty.calls())
	}
	if never.calls() != 0 {
		t.Errorf("third provider called %d times, want 0", never.calls())
	}
}

func TestQuote_ErrorAdvancesChain(t *testing.T) {
	failing := newFakeSource("failing")
	failing.quoteErrs = []error{errors.New("connection refused")}
	good := newFakeSource("good")
	good.quotes = []schema.Quote{validQuote("good")}

	f := New(fastFetcherConfig(failing, good))

	q, err := f.Quote(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Source != "good" {
		t.Errorf("Source = %q, want good", q.Source)
	}
}

func TestQuote_AllProvidersExhausted(t *testing.T) {
	empty := newFakeSource("empty")
	failing := newFakeSource("failing")
	failing.quoteErrs = []error{errors.New("blocked")}

	f := New(fastFetcherConfig(empty, failing))

	_, err := f.Quote(context.Background(), "000001")
	if err == nil {
		t.Fatal("Quote() error = nil, want exhaustion")
	}
	if !errors.Is(err, ErrAllSourcesExhausted) {
		t.Errorf("errors.Is(err, ErrAllSourcesExhausted) = false, err = %v", err)
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("errors.As(*ExhaustedError) = false, err = %v", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Fatalf("len(Attempts) = %d, want 2", len(exhausted.Attempts))
	}
	if exhausted.Attempts[0].Provider != "empty" || exhausted.Attempts[0].Err != nil {
		t.Errorf("Attempts[0] = %+v, want empty provider with nil error", exhausted.Attempts[0])
	}
	if exhausted.Attempts[1].Provider != "failing" || exhausted.Attempts[1].Err == nil {
		t.Errorf("Attempts[1] = %+v, want failing provider with error", exhausted.Attempts[1])
	}
}

func TestQuote_LocalRetrySmoothsTransientEmpty(t *testing.T) {
	flaky := newFakeSource("flaky")
	flaky.quotes = []schema.Quote{{}, validQuote("flaky")}

	cfg := fastFetcherConfig(flaky)
	cfg.LocalAttempts = 2
	f := New(cfg)

	q, err := f.Quote(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	if q.Source != "flaky" {
		t.Errorf("Source = %q, want flaky", q.Source)
	}
	if flaky.calls() != 2 {
		t.Errorf("provider called %d times, want 2", flaky.calls())
	}
}

func TestInfo_SkipsProvidersWithoutCapability(t *testing.T) {
	quoteOnly := newFakeSource("quote-only")
	quoteOnly.desc.CanFetchInfo = false

	full := newFakeSource("full")
	full.info = schema.ReferenceInfo{Symbol: "000001", ShortName: "平安银行", Source: "full"}

	f := New(fastFetcherConfig(quoteOnly, full))

	info, err := f.Info(context.Background(), "000001")
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.ShortName != "平安银行" {
		t.Errorf("info = %+v", info)
	}
	if quoteOnly.infoCalls != 0 {
		t.Errorf("incapable provider called %d times, want 0", quoteOnly.infoCalls)
	}
}

func TestUniverse_CachedAcrossCalls(t *testing.T) {
	src := newFakeSource("lister")
	src.universe = []schema.Listing{
		{Symbol: "000001", Name: "平安银行"},
		{Symbol: "600519", Name: "贵州茅台"},
	}

	f := New(fastFetcherConfig(src))
	ctx := context.Background()

	first, err := f.Universe(ctx)
	if err != nil {
		t.Fatalf("first Universe() error = %v", err)
	}
	second, err := f.Universe(ctx)
	if err != nil {
		t.Fatalf("second Universe() error = %v", err)
	}

	if src.universeCalls != 1 {
		t.Errorf("provider called %d times, want 1", src.universeCalls)
	}
	if len(first) != 2 || len(second) != 2 || second[0].Symbol != "000001" {
		t.Errorf("universe = %v then %v", first, second)
	}
}

func TestStats_TracksRequestsAndCurrentSource(t *testing.T) {
	src := newFakeSource("primary")
	src.quotes = []schema.Quote{validQuote("primary")}

	cfg := fastFetcherConfig(src)
	f := New(cfg)

	stats := f.Stats()
	if stats.RequestsTotal != 0 || stats.CurrentSource != "" {
		t.Errorf("initial stats = %+v", stats)
	}

	if _, err := f.Quote(context.Background(), "000001"); err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	stats = f.Stats()
	if stats.RequestsTotal != 1 {
		t.Errorf("RequestsTotal = %d, want 1", stats.RequestsTotal)
	}
	if stats.CurrentSource != "primary" {
		t.Errorf("CurrentSource = %q, want primary", stats.CurrentSource)
	}
	if stats.IntervalMin != cfg.PacingMin || stats.IntervalMax != cfg.PacingMax {
		t.Errorf("interval band = [%v, %v], want [%v, %v]",
			stats.IntervalMin, stats.IntervalMax, cfg.PacingMin, cfg.PacingMax)
	}
}

func TestClearCache_ForcesRefetch(t *testing.T) {
	src := newFakeSource("primary")
	src.quotes = []schema.Quote{validQuote("primary"), validQuote("primary")}

	f := New(fastFetcherConfig(src))
	ctx := context.Background()

	if _, err := f.Quote(ctx, "000001"); err != nil {
		t.Fatalf("first Quote() error = %v", err)
	}
	if err := f.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache() error = %v", err)
	}
	if _, err := f.Quote(ctx, "000001"); err != nil {
		t.Fatalf("second Quote() error = %v", err)
	}
	if src.calls() != 2 {
		t.Errorf("provider called %d times after cache clear, want 2", src.calls())
	}
}

func TestLocalBackoff_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := 0; attempt < 4; attempt++ {
		d := localBackoff(base, attempt)
		scale := time.Duration(int64(1) << uint(attempt))
		lo, hi := base*scale/2, base*scale*3/2
		if d < lo || d > hi {
			t.Errorf("localBackoff(attempt=%d) = %v, want [%v, %v]", attempt, d, lo, hi)
		}
	}
}
