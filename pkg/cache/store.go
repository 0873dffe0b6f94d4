package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store caches fetch results in memory, with optional write-through to
// Redis. Reads check memory first, then Redis; a Redis hit is promoted
// back into the memory tier. With a nil Redis client the store is
// memory-only.
type Store struct {
	mu     sync.Mutex
	memory map[string]*Entry
	redis  *redis.Client
}

// NewStore creates a cache store. redisClient may be nil for a
// memory-only store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{
		memory: make(map[string]*Entry),
		redis:  redisClient,
	}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *Store) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	s.mu.Lock()
	entry, ok := s.memory[cacheKey]
	if ok && entry.IsExpired() {
		delete(s.memory, cacheKey)
		ok = false
	}
	s.mu.Unlock()

	if ok {
		CacheHits.WithLabelValues("memory").Inc()
		return entry, nil
	}

	if s.redis == nil {
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	data, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var stored Entry
	if err := json.Unmarshal(data, &stored); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if stored.IsExpired() {
		_ = s.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	// Promote to the memory tier for subsequent reads.
	s.mu.Lock()
	s.memory[cacheKey] = &stored
	s.mu.Unlock()

	CacheHits.WithLabelValues("redis").Inc()
	return &stored, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// Expired entries are not stored. A Redis write failure does not undo
// the memory write; the error is reported so callers can log it.
func (s *Store) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	cacheKey := key.String()

	s.mu.Lock()
	s.memory[cacheKey] = entry
	s.mu.Unlock()

	if s.redis == nil {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.redis.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cache entry from both tiers.
func (s *Store) Delete(ctx context.Context, key Key) error {
	cacheKey := key.String()

	s.mu.Lock()
	delete(s.memory, cacheKey)
	s.mu.Unlock()

	if s.redis == nil {
		return nil
	}
	if err := s.redis.Del(ctx, cacheKey).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every entry from the memory tier and all stockfeed keys
// from Redis.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.memory = make(map[string]*Entry)
	s.mu.Unlock()

	if s.redis == nil {
		return nil
	}

	iter := s.redis.Scan(ctx, 0, "stockfeed:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

// Purge drops expired entries from the memory tier and returns how many
// were removed. Redis expires its own keys server-side.
func (s *Store) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.memory {
		if entry.IsExpired() {
			delete(s.memory, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries in the memory tier, including any
// not yet lazily expired.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memory)
}

// NewEntry encodes value as JSON and wraps it in an entry expiring after
// ttl.
func NewEntry(value any, source string, ttl time.Duration) (*Entry, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal cache value: %w", err)
	}
	now := time.Now()
	return &Entry{
		Data:     data,
		Source:   source,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}, nil
}

// Decode unmarshals the entry's data into out.
func (e *Entry) Decode(out any) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}
