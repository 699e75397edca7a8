// Package cache provides a typed in-memory TTL cache backed by patrickmn/go-cache.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a typed TTL cache. Keys are strings (or string kinds).
type Cache[K ~string, V any] struct {
	store *gocache.Cache
}

// New creates a cache whose expired entries are purged every cleanupInterval.
// Entries have no default expiration; callers pass a TTL on Set.
func New[K ~string, V any](cleanupInterval time.Duration) *Cache[K, V] {
	return &Cache[K, V]{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get returns the value stored under key if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V

	raw, ok := c.store.Get(string(key))
	if !ok {
		return zero, false
	}

	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores value under key. A ttl <= 0 keeps the entry until deleted.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(string(key), value, ttl)
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.store.Delete(string(key))
}

// Len returns the number of entries, expired ones included until the next purge.
func (c *Cache[K, V]) Len() int {
	return c.store.ItemCount()
}

// Flush drops every entry.
func (c *Cache[K, V]) Flush() {
	c.store.Flush()
}

// Close stops using the cache. go-cache stops its janitor once the cache is
// unreachable, so this only drops the entries.
func (c *Cache[K, V]) Close() {
	c.store.Flush()
}
