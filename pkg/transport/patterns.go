package transport

import (
	"sync"
	"time"

	"github.com/quantlab/stockfeed/pkg/schema"
)

// patternBook records which endpoint/header combinations succeed. The
// counters are diagnostic: nothing consults them for correctness.
type patternBook struct {
	mu         sync.Mutex
	byEndpoint map[string]*schema.SuccessPattern
}

func newPatternBook() *patternBook {
	return &patternBook{byEndpoint: make(map[string]*schema.SuccessPattern)}
}

func (b *patternBook) record(endpoint, method string, headers map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pat, ok := b.byEndpoint[endpoint]
	if !ok {
		pat = &schema.SuccessPattern{
			Endpoint: endpoint,
			Method:   method,
		}
		b.byEndpoint[endpoint] = pat
	}
	pat.SuccessCount++
	pat.LastSuccess = time.Now()
	pat.LastHeaders = headers
}

// snapshot returns a copy of all recorded patterns.
func (b *patternBook) snapshot() map[string]schema.SuccessPattern {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]schema.SuccessPattern, len(b.byEndpoint))
	for k, v := range b.byEndpoint {
		out[k] = *v
	}
	return out
}

func (b *patternBook) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byEndpoint = make(map[string]*schema.SuccessPattern)
}
