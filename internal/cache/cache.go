package cache

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so cache expiry is deterministic under test.
type Clock func() time.Time

// Cache is a small TTL cache with (key, value, expiry) entries. The
// enrichment collaborators (weather, lunch, meal plan) and the web layer all
// own an instance each; nothing inside the aggregation engine caches.
type Cache[V any] struct {
	mu      sync.RWMutex
	now     Clock
	ttl     time.Duration
	entries map[string]entry[V]
}

type entry[V any] struct {
	value   V
	expires time.Time
}

func New[V any](ttl time.Duration, now Clock) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{
		now:     now,
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key with the cache's TTL.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Stale returns the last stored value even if expired. Collaborators use it
// as a last-known-good fallback when a refresh fails.
func (c *Cache[V]) Stale(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate drops a single key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
