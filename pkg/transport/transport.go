// Package transport executes outbound provider calls with anti-blocking
// measures: identity rotation, request pacing, optional proxies, failure
// classification, and retry with exponential backoff.
package transport

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/identity"
	"github.com/quantlab/stockfeed/pkg/logging"
	"github.com/quantlab/stockfeed/pkg/pacing"
	"github.com/quantlab/stockfeed/pkg/schema"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfeed_requests_total",
		Help: "Total outbound requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockfeed_request_duration_seconds",
		Help:    "Outbound request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfeed_errors_total",
		Help: "Total transport errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfeed_retries_total",
		Help: "Total retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockfeed_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfeed_retry_exhausted_total",
		Help: "Total times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Config holds the transport configuration.
type Config struct {
	// SessionPoolSize is the number of reused HTTP sessions.
	SessionPoolSize int

	// Timeout bounds a single request attempt.
	Timeout time.Duration

	// MinInterval and MaxInterval are the pacing band applied per
	// endpoint key before each attempt.
	MinInterval time.Duration
	MaxInterval time.Duration

	// MaxRetries is the total attempt ceiling per Execute call.
	MaxRetries int

	// BaseDelay and MaxDelay bound the exponential backoff between
	// retries; JitterFactor j spreads each delay over [1-j, 1+j].
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64

	// Proxies is an optional pool of outbound proxy URLs.
	Proxies []string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		SessionPoolSize: 3,
		Timeout:         15 * time.Second,
		MinInterval:     2 * time.Second,
		MaxInterval:     5 * time.Second,
		MaxRetries:      5,
		BaseDelay:       1 * time.Second,
		MaxDelay:        10 * time.Second,
		JitterFactor:    0.3,
	}
}

// Request describes one outbound call.
type Request struct {
	Method string
	URL    string

	// Kind selects the identity header shape for this call.
	Kind identity.Kind

	// PacingKey groups requests that share a remote rate budget. Leave
	// empty to derive host+path from the URL; set it explicitly when the
	// URL path embeds a symbol, so pacing stays per endpoint.
	PacingKey string

	// Header holds extra headers layered over the rotated identity set.
	Header map[string]string
}

// Response is a fully read outbound response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// proxyContextKey carries the chosen proxy for one attempt through the
// request context, so all sessions can share one http.Transport proxy hook.
type proxyContextKey struct{}

// Transport executes requests through a small pool of reused sessions.
type Transport struct {
	cfg      Config
	sessions []*http.Client
	next     atomic.Uint32
	proxies  *proxyPool
	rotator  *identity.Rotator
	governor *pacing.Governor
	patterns *patternBook
	logger   zerolog.Logger
}

// New creates a transport. The rotator and governor may be shared with
// other components; nil values get fresh instances.
func New(cfg Config, rotator *identity.Rotator, governor *pacing.Governor) (*Transport, error) {
	if cfg.SessionPoolSize <= 0 {
		cfg.SessionPoolSize = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.JitterFactor <= 0 || cfg.JitterFactor >= 1 {
		cfg.JitterFactor = 0.3
	}
	if rotator == nil {
		rotator = identity.NewRotator(identity.DefaultRotateEvery)
	}
	if governor == nil {
		governor = pacing.NewGovernor()
	}

	proxies, err := newProxyPool(cfg.Proxies)
	if err != nil {
		return nil, err
	}

	sessions := make([]*http.Client, cfg.SessionPoolSize)
	for i := range sessions {
		sessions[i] = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newHTTPTransport(),
		}
	}

	return &Transport{
		cfg:      cfg,
		sessions: sessions,
		proxies:  proxies,
		rotator:  rotator,
		governor: governor,
		patterns: newPatternBook(),
		logger:   logging.NewLogger("transport"),
	}, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if u, ok := req.Context().Value(proxyContextKey{}).(*url.URL); ok {
				return u, nil
			}
			return nil, nil
		},
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Execute performs a request with pacing, identity rotation, classification,
// and retry. It returns the response on any 2xx status; other statuses and
// network failures yield a classified *Error. Exhausting the retry ceiling
// returns the last classified error wrapped with ErrRetryExhausted.
func (t *Transport) Execute(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	endpoint := req.PacingKey
	if endpoint == "" {
		endpoint = endpointKey(req.URL)
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var lastErr *Error
	for attempt := 0; attempt < t.cfg.MaxRetries; attempt++ {
		if err := t.governor.Wait(ctx, endpoint, t.cfg.MinInterval, t.cfg.MaxInterval); err != nil {
			return nil, err
		}

		resp, terr := t.attempt(ctx, req, endpoint)
		if terr == nil {
			if attempt > 0 {
				t.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		lastErr = terr
		errorsTotal.WithLabelValues(string(terr.Class)).Inc()

		if !Retryable(terr.Class) {
			t.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", terr.StatusCode).
				Str("error_class", string(terr.Class)).
				Msg("Non-retryable request failure")
			return nil, terr
		}

		if attempt == t.cfg.MaxRetries-1 {
			break
		}

		retriesTotal.WithLabelValues(string(terr.Class)).Inc()
		wait := t.backoff(attempt, terr)
		retryBackoffSeconds.WithLabelValues(string(terr.Class)).Observe(wait.Seconds())
		t.logger.Debug().
			Str("endpoint", endpoint).
			Str("error_class", string(terr.Class)).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	retryExhaustedTotal.WithLabelValues(string(lastErr.Class)).Inc()
	t.logger.Warn().
		Str("endpoint", endpoint).
		Int("max_attempts", t.cfg.MaxRetries).
		Str("error_class", string(lastErr.Class)).
		Msg("Retry attempts exhausted")
	return nil, fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
}

// attempt performs one request, retrying once without a proxy when the
// chosen proxy fails at the connection level.
func (t *Transport) attempt(ctx context.Context, req Request, endpoint string) (*Response, *Error) {
	proxy := t.proxies.pick()

	resp, usedHeaders, err := t.roundTrip(ctx, req, proxy)
	if err != nil && proxy != nil && classifyNetworkError(err) == ClassConnection {
		t.logger.Warn().
			Str("proxy", proxy.String()).
			Str("endpoint", endpoint).
			Msg("Proxy failed, evicting and retrying direct")
		t.proxies.evict(proxy)
		resp, usedHeaders, err = t.roundTrip(ctx, req, nil)
	}
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &Error{Class: classifyNetworkError(err), URL: req.URL, Err: err}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		terr := &Error{Class: class, StatusCode: resp.StatusCode, URL: req.URL}
		if class == ClassRateLimited {
			terr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, terr
	}

	t.patterns.record(endpoint, req.Method, usedHeaders)
	return resp, nil
}

func (t *Transport) roundTrip(ctx context.Context, req Request, proxy *url.URL) (*Response, map[string]string, error) {
	session := t.sessions[int(t.next.Add(1))%len(t.sessions)]

	headers := t.rotator.Headers(req.Kind)
	for k, v := range req.Header {
		headers[k] = v
	}

	if proxy != nil {
		ctx = context.WithValue(ctx, proxyContextKey{}, proxy)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range headers {
		// The Go transport negotiates Accept-Encoding itself so response
		// bodies arrive transparently decompressed.
		if k == "Accept-Encoding" {
			continue
		}
		httpReq.Header.Set(k, v)
	}

	resp, err := session.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, headers, nil
}

// backoff computes the delay before the next attempt. A server-requested
// Retry-After takes precedence over exponential backoff.
func (t *Transport) backoff(attempt int, lastErr *Error) time.Duration {
	if lastErr != nil && lastErr.RetryAfter > 0 {
		if lastErr.RetryAfter > t.cfg.MaxDelay {
			return t.cfg.MaxDelay
		}
		return lastErr.RetryAfter
	}

	j := t.cfg.JitterFactor
	jitter := 1 - j + rand.Float64()*2*j
	delay := time.Duration(float64(t.cfg.BaseDelay) * math.Pow(2, float64(attempt)) * jitter)
	if delay > t.cfg.MaxDelay {
		delay = t.cfg.MaxDelay
	}
	return delay
}

// SuccessPatterns returns a snapshot of per-endpoint success diagnostics.
func (t *Transport) SuccessPatterns() map[string]schema.SuccessPattern {
	return t.patterns.snapshot()
}

// ProxyCount reports the number of proxies currently in the pool.
func (t *Transport) ProxyCount() int {
	return t.proxies.size()
}

// endpointKey derives the pacing/metrics key for a URL: host plus path,
// dropping per-symbol query parts so pacing is per endpoint, not per symbol.
func endpointKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host + u.Path
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
