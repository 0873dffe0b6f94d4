// Package metrics provides the centralized Prometheus metrics registry for
// the fetch layer. All metrics are defined in their respective packages
// (transport, pacing, cache, fetcher) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the fetch layer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Transport Metrics (pkg/transport):
//   - stockfeed_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("network_error" for failures before a response)
//   - stockfeed_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - stockfeed_errors_total{class} (Counter): Classified errors (timeout, connection_failed, rate_limited, client, server)
//   - stockfeed_retries_total{error_class} (Counter): Retry attempts by error class
//   - stockfeed_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - stockfeed_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//   - stockfeed_proxy_evictions_total (Counter): Proxies evicted from the pool after connection failures
//
// Pacing Metrics (pkg/pacing):
//   - stockfeed_pacing_waits_total{key} (Counter): Blocking waits by pacing key
//   - stockfeed_pacing_wait_seconds (Histogram): Duration of pacing waits
//
// Cache Metrics (pkg/cache):
//   - stockfeed_cache_hits_total{tier} (Counter): Cache hits by tier (memory, redis)
//   - stockfeed_cache_misses_total (Counter): Cache misses
//   - stockfeed_cache_errors_total{operation} (Counter): Cache operation errors (get, set, delete)
//
// Fetcher Metrics (pkg/fetcher):
//   - stockfeed_fetches_total{op, outcome} (Counter): Fetch calls by operation and outcome (hit, fetched, exhausted)
//   - stockfeed_provider_results_total{provider, outcome} (Counter): Per-provider outcomes (success, empty, error)
//   - stockfeed_fallback_depth (Histogram): Providers tried before a call succeeded
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(stockfeed_cache_hits_total[5m])) /
//   (sum(rate(stockfeed_cache_hits_total[5m])) + sum(rate(stockfeed_cache_misses_total[5m])))
//
//   # Providers Falling Over (deep fallback chains)
//   histogram_quantile(0.95, rate(stockfeed_fallback_depth_bucket[5m]))
//
//   # Request Error Rate
//   rate(stockfeed_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(stockfeed_request_duration_seconds_bucket[5m]))
//
//   # Block Pressure (rate limiting by providers)
//   rate(stockfeed_errors_total{class="rate_limited"}[5m])
