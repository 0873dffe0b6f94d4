// Package testutil provides testing utilities: a configurable mock market
// data server and synthetic payload builders for each provider format.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior of one mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockMarket is a configurable mock market data server.
type MockMarket struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	counts   map[string]int

	// LastRequestHeader holds the headers of the most recent request.
	LastRequestHeader http.Header
}

// NewMockMarket starts a mock server. Paths without a configured handler
// return 404.
func NewMockMarket() *MockMarket {
	mock := &MockMarket{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.counts[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()
		handler := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if handler == nil {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server base URL.
func (m *MockMarket) URL() string {
	return m.server.URL
}

// Handle installs a custom handler for a path.
func (m *MockMarket) Handle(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse installs a fixed response for a path.
func (m *MockMarket) SetResponse(path string, resp MockResponse) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		fmt.Fprint(w, resp.Body)
	})
}

// Requests returns how many requests the path has received.
func (m *MockMarket) Requests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// TotalRequests returns the request count across all paths.
func (m *MockMarket) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, c := range m.counts {
		total += c
	}
	return total
}

// Close shuts the server down.
func (m *MockMarket) Close() {
	m.server.Close()
}

// TencentPayload builds a tilde-delimited payload with the given values at
// their fixed offsets. Unset offsets are empty fields.
func TencentPayload(market, symbol string, fields map[int]string) string {
	return delimitedPayload("v_"+market+symbol, "~", 47, fields)
}

// TruncatedTencentPayload builds a payload with fewer fields than the
// parser requires.
func TruncatedTencentPayload(market, symbol string, n int) string {
	return delimitedPayload("v_"+market+symbol, "~", n, nil)
}

// SinaPayload builds a comma-delimited payload with the given values at
// their fixed offsets.
func SinaPayload(market, symbol string, fields map[int]string) string {
	return delimitedPayload("var hq_str_"+market+symbol, ",", 33, fields)
}

func delimitedPayload(lhs, sep string, size int, fields map[int]string) string {
	parts := make([]string, size)
	for i, v := range fields {
		if i >= 0 && i < size {
			parts[i] = v
		}
	}
	return lhs + `="` + strings.Join(parts, sep) + `";`
}
