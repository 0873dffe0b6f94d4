package cache

import "strings"

// Op names the kind of result a cache entry holds.
type Op string

const (
	OpQuote    Op = "quote"
	OpInfo     Op = "info"
	OpUniverse Op = "universe"
)

// Key identifies a cached fetch result.
type Key struct {
	// Op is the operation that produced the entry.
	Op Op

	// Symbol is the security identifier. Empty for universe entries.
	Symbol string
}

// String generates a deterministic cache key string.
// Format: stockfeed:op:symbol
//
// Example:
//
//	stockfeed:quote:000001
//	stockfeed:universe
func (k Key) String() string {
	parts := []string{"stockfeed", string(k.Op)}
	if k.Symbol != "" {
		parts = append(parts, k.Symbol)
	}
	return strings.Join(parts, ":")
}
