// Package pacing enforces a randomized minimum delay between requests that
// share a key. Keys identify remote endpoints or providers, never symbols:
// the limited resource is the remote service, and blocking triggers on
// request frequency per endpoint.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/quantlab/stockfeed/pkg/logging"
)

// Prometheus metrics for pacing waits.
var (
	pacingWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockfeed_pacing_waits_total",
		Help: "Total pacing waits by key",
	}, []string{"key"})

	pacingWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stockfeed_pacing_wait_seconds",
		Help:    "Duration of pacing waits in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})
)

// record holds the last-request timestamp for one key. Each record has its
// own lock so unrelated keys never serialize each other's waits.
type record struct {
	mu   sync.Mutex
	last time.Time
}

// Governor tracks last-request times per key and blocks callers that would
// exceed the allowed request frequency.
type Governor struct {
	mu      sync.Mutex
	records map[string]*record
	logger  zerolog.Logger
}

// NewGovernor creates an empty governor.
func NewGovernor() *Governor {
	return &Governor{
		records: make(map[string]*record),
		logger:  logging.NewLogger("pacing"),
	}
}

func (g *Governor) record(key string) *record {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[key]
	if !ok {
		rec = &record{}
		g.records[key] = rec
	}
	return rec
}

// Wait blocks until at least min has elapsed since the last call under key,
// plus a random extra delay up to max. The first call under a key does not
// wait. The check and the timestamp update are one atomic step per key, so
// two concurrent callers cannot both slip through a narrow window.
//
// Context cancellation aborts the sleep but still stamps the record: an
// abandoned wait must not let the next caller exceed the intended rate.
func (g *Governor) Wait(ctx context.Context, key string, min, max time.Duration) error {
	if max < min {
		max = min
	}

	rec := g.record(key)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.last.IsZero() && time.Since(rec.last) < min {
		wait := min
		if max > min {
			wait += time.Duration(rand.Int63n(int64(max - min)))
		}

		pacingWaitsTotal.WithLabelValues(key).Inc()
		pacingWaitSeconds.Observe(wait.Seconds())
		g.logger.Debug().
			Str("key", key).
			Dur("wait", wait).
			Msg("Pacing delay before request")

		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			rec.last = time.Now()
			return ctx.Err()
		case <-timer.C:
		}
	}

	rec.last = time.Now()
	return nil
}

// Last returns the recorded last-request time for key, or the zero time if
// the key has not been seen.
func (g *Governor) Last(key string) time.Time {
	g.mu.Lock()
	rec, ok := g.records[key]
	g.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.last
}

// Snapshot returns a copy of all last-request timestamps.
func (g *Governor) Snapshot() map[string]time.Time {
	g.mu.Lock()
	keys := make([]string, 0, len(g.records))
	for k := range g.records {
		keys = append(keys, k)
	}
	g.mu.Unlock()

	out := make(map[string]time.Time, len(keys))
	for _, k := range keys {
		out[k] = g.Last(k)
	}
	return out
}

// Reset clears all pacing records.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = make(map[string]*record)
}
