package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quantlab/stockfeed/pkg/schema"
)

func newRedisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func quoteEntry(t *testing.T, ttl time.Duration) *Entry {
	t.Helper()
	entry, err := NewEntry(schema.Quote{Symbol: "000001", Price: 12.34}, "tencent", ttl)
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	return entry
}

func TestStoreMemory_SetGet(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	key := Key{Op: OpQuote, Symbol: "000001"}

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty store error = %v, want ErrCacheMiss", err)
	}

	if err := store.Set(ctx, key, quoteEntry(t, time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var q schema.Quote
	if err := entry.Decode(&q); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if q.Symbol != "000001" || q.Price != 12.34 {
		t.Errorf("decoded quote = %+v", q)
	}
	if entry.Source != "tencent" {
		t.Errorf("Source = %q", entry.Source)
	}
}

func TestStoreMemory_ExpiredEntryIsMiss(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	key := Key{Op: OpQuote, Symbol: "000001"}

	entry := quoteEntry(t, time.Minute)
	entry.Expires = time.Now().Add(-time.Second)

	store.mu.Lock()
	store.memory[key.String()] = entry
	store.mu.Unlock()

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() error = %v, want ErrCacheMiss", err)
	}
	if store.Len() != 0 {
		t.Error("expired entry was not dropped on read")
	}
}

func TestStoreMemory_ExpiredEntryNotStored(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	key := Key{Op: OpQuote, Symbol: "000001"}

	entry := quoteEntry(t, time.Minute)
	entry.Expires = time.Now().Add(-time.Second)

	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if store.Len() != 0 {
		t.Error("expired entry was stored")
	}
}

func TestStoreMemory_Delete(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	key := Key{Op: OpInfo, Symbol: "000001"}

	if err := store.Set(ctx, key, quoteEntry(t, time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() after delete error = %v, want ErrCacheMiss", err)
	}
}

func TestStoreMemory_Purge(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()

	if err := store.Set(ctx, Key{Op: OpQuote, Symbol: "000001"}, quoteEntry(t, time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	stale := quoteEntry(t, time.Minute)
	stale.Expires = time.Now().Add(-time.Second)
	store.mu.Lock()
	store.memory[Key{Op: OpQuote, Symbol: "600000"}.String()] = stale
	store.mu.Unlock()

	if removed := store.Purge(); removed != 1 {
		t.Errorf("Purge() = %d, want 1", removed)
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestStoreRedis_WriteThroughAndPromotion(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	key := Key{Op: OpQuote, Symbol: "000001"}

	if err := store.Set(ctx, key, quoteEntry(t, time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists(key.String()) {
		t.Fatal("entry was not written through to redis")
	}

	// Drop the memory tier; the next read must come from redis and be
	// promoted back.
	store.mu.Lock()
	store.memory = make(map[string]*Entry)
	store.mu.Unlock()

	entry, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var q schema.Quote
	if err := entry.Decode(&q); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if q.Symbol != "000001" {
		t.Errorf("decoded quote = %+v", q)
	}
	if store.Len() != 1 {
		t.Error("redis hit was not promoted to the memory tier")
	}
}

func TestStoreRedis_ServerSideTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	key := Key{Op: OpQuote, Symbol: "000001"}

	if err := store.Set(ctx, key, quoteEntry(t, time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	ttl := mr.TTL(key.String())
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("redis TTL = %v, want (0, 1m]", ttl)
	}

	mr.FastForward(2 * time.Minute)
	store.mu.Lock()
	store.memory = make(map[string]*Entry)
	store.mu.Unlock()

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() after expiry error = %v, want ErrCacheMiss", err)
	}
}

func TestStoreRedis_CorruptedEntry(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	key := Key{Op: OpQuote, Symbol: "000001"}

	if err := mr.Set(key.String(), "not json"); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	if _, err := store.Get(ctx, key); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("Get() error = %v, want ErrInvalidEntry", err)
	}
}

func TestStoreRedis_Clear(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	for _, sym := range []string{"000001", "600000", "600519"} {
		if err := store.Set(ctx, Key{Op: OpQuote, Symbol: sym}, quoteEntry(t, time.Minute)); err != nil {
			t.Fatalf("Set(%s) error = %v", sym, err)
		}
	}
	if err := mr.Set("unrelated:key", "kept"); err != nil {
		t.Fatalf("seed redis: %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after Clear", store.Len())
	}
	if mr.Exists("stockfeed:quote:000001") {
		t.Error("stockfeed keys survived Clear")
	}
	if !mr.Exists("unrelated:key") {
		t.Error("Clear removed keys outside the stockfeed namespace")
	}
}
