// Package identity supplies per-request HTTP header sets that mimic real
// browser clients. A rotator cycles through a pool of user agent signatures
// so short bursts share one identity while longer sessions rotate.
package identity

import "sync"

// Kind selects the shape of the header set.
type Kind string

const (
	// KindPage mimics a desktop browser page navigation.
	KindPage Kind = "page"

	// KindMobile mimics a mobile browser.
	KindMobile Kind = "mobile"

	// KindAPI mimics an in-page XHR/fetch data request.
	KindAPI Kind = "api"
)

// DefaultRotateEvery is the number of calls an identity is held before the
// rotator advances to the next user agent.
const DefaultRotateEvery = 10

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:119.0) Gecko/20100101 Firefox/119.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

var pageHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8",
	"Accept-Encoding":           "gzip, deflate, br",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Cache-Control":             "max-age=0",
}

var mobileHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":           "zh-CN,zh;q=0.9,en;q=0.8",
	"Accept-Encoding":           "gzip, deflate",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

var apiHeaders = map[string]string{
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
	"Accept-Encoding": "gzip, deflate, br",
	"Connection":      "keep-alive",
	"Sec-Fetch-Dest":  "empty",
	"Sec-Fetch-Mode":  "cors",
	"Sec-Fetch-Site":  "same-origin",
}

// Rotator hands out header sets and advances the active user agent every
// RotateEvery calls. Safe for concurrent use.
type Rotator struct {
	mu          sync.Mutex
	agents      []string
	index       int
	calls       int
	rotateEvery int
}

// NewRotator creates a rotator over the built-in user agent pool.
func NewRotator(rotateEvery int) *Rotator {
	if rotateEvery <= 0 {
		rotateEvery = DefaultRotateEvery
	}
	return &Rotator{
		agents:      userAgents,
		rotateEvery: rotateEvery,
	}
}

// Headers returns a fresh header map for the given kind, stamped with the
// currently active user agent. The returned map is owned by the caller.
func (r *Rotator) Headers(kind Kind) map[string]string {
	r.mu.Lock()
	r.calls++
	if r.calls%r.rotateEvery == 0 {
		r.index = (r.index + 1) % len(r.agents)
	}
	agent := r.agents[r.index]
	r.mu.Unlock()

	var base map[string]string
	switch kind {
	case KindMobile:
		base = mobileHeaders
	case KindAPI:
		base = apiHeaders
	default:
		base = pageHeaders
	}

	headers := make(map[string]string, len(base)+1)
	for k, v := range base {
		headers[k] = v
	}
	headers["User-Agent"] = agent
	return headers
}

// UserAgent returns the currently active user agent without advancing the
// call counter.
func (r *Rotator) UserAgent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[r.index]
}
