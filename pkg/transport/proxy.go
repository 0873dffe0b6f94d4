package transport

import (
	"fmt"
	"math/rand"
	"net/url"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var proxyEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stockfeed_proxy_evictions_total",
	Help: "Total proxies evicted after connection failures",
})

// proxyPool holds optional outbound proxies. Proxies are advisory: a call
// picks one at random and a connection-class failure through it evicts it
// from the pool.
type proxyPool struct {
	mu   sync.Mutex
	urls []*url.URL
}

func newProxyPool(proxies []string) (*proxyPool, error) {
	pool := &proxyPool{}
	for _, p := range proxies {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", p, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", p)
		}
		pool.urls = append(pool.urls, u)
	}
	return pool, nil
}

// pick returns a random proxy, or nil when the pool is empty.
func (p *proxyPool) pick() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.urls) == 0 {
		return nil
	}
	return p.urls[rand.Intn(len(p.urls))]
}

// evict removes a proxy from the pool.
func (p *proxyPool) evict(u *url.URL) {
	if u == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cur := range p.urls {
		if cur.String() == u.String() {
			p.urls = append(p.urls[:i], p.urls[i+1:]...)
			proxyEvictionsTotal.Inc()
			return
		}
	}
}

func (p *proxyPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.urls)
}
