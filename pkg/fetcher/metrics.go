package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal tracks fallback calls by operation and outcome
	// (hit, fetched, exhausted)
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockfeed_fetches_total",
			Help: "Total number of fetch calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	// ProviderResults tracks per-provider outcomes inside the fallback
	// chain (success, empty, error)
	ProviderResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockfeed_provider_results_total",
			Help: "Total number of provider call outcomes",
		},
		[]string{"provider", "outcome"},
	)

	// FallbackDepth observes how many providers a successful call tried
	FallbackDepth = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stockfeed_fallback_depth",
			Help:    "Number of providers tried before a call succeeded",
			Buckets: prometheus.LinearBuckets(1, 1, 5),
		},
	)
)
