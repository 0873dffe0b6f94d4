package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/quantlab/stockfeed/pkg/schema"
)

// BatchConfig holds batch quote fetching configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel fetches. Keep it
	// small: each worker still goes through pacing, so high values only
	// queue on the governor.
	MaxConcurrency int

	// Timeout per symbol fetch.
	Timeout time.Duration
}

// DefaultBatchConfig returns safe defaults for batch fetching.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 4,
		Timeout:        2 * time.Minute,
	}
}

// BatchResult is the outcome of one symbol in a batch fetch.
type BatchResult struct {
	Symbol string
	Quote  schema.Quote
	Err    error
}

// Quotes fetches quotes for all symbols over a bounded worker pool and
// returns results in input order. Per-symbol failures are reported in
// the result, never aborting the batch.
func (f *Fetcher) Quotes(ctx context.Context, symbols []string, cfg BatchConfig) []BatchResult {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultBatchConfig().MaxConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBatchConfig().Timeout
	}

	results := make([]BatchResult, len(symbols))
	queue := make(chan int, len(symbols))
	for i := range symbols {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < cfg.MaxConcurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				symbol := symbols[i]
				callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
				quote, err := f.Quote(callCtx, symbol)
				cancel()
				results[i] = BatchResult{Symbol: symbol, Quote: quote, Err: err}
			}
		}()
	}
	wg.Wait()

	return results
}
