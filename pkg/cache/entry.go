// Package cache provides short-lived caching of fetch results with an
// in-process memory tier and an optional Redis tier.
package cache

import "time"

// Entry is a cached fetch result. Data holds the JSON-encoded result value;
// the store does not interpret it.
type Entry struct {
	// Data is the encoded result.
	Data []byte `json:"data"`

	// Source is the provider that produced the result.
	Source string `json:"source"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the entry has passed its expiry time.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration. Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
