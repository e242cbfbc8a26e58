// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evcache provides a small typed TTL cache for external lookups.
// Implements: prd012-literature (R4);
//
//	docs/ARCHITECTURE § Literature Search.
package evcache

import (
	"crypto/sha256"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultSweepThreshold is the entry count above which Set triggers an
// opportunistic sweep of expired entries.
const DefaultSweepThreshold = 100

// Cache is a typed wrapper around go-cache with a fixed TTL. Expired
// entries are evicted lazily on Get; instead of a background janitor, Set
// sweeps the whole cache once it grows past the sweep threshold, keeping
// eviction deterministic for callers. Entries are pure functions of their
// key, so concurrent populate races are harmless (last write wins).
type Cache[V any] struct {
	c       *gocache.Cache
	sweepAt int
}

// New creates a Cache whose entries expire after ttl. sweepThreshold <= 0
// selects DefaultSweepThreshold.
func New[V any](ttl time.Duration, sweepThreshold int) *Cache[V] {
	if sweepThreshold <= 0 {
		sweepThreshold = DefaultSweepThreshold
	}
	return &Cache[V]{
		// Cleanup interval 0 disables the janitor; expiry is lazy.
		c:       gocache.New(ttl, 0),
		sweepAt: sweepThreshold,
	}
}

// Get returns the cached value for key. The second return is false for
// missing or expired entries.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.c.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Set stores value under key with the cache's TTL, then sweeps expired
// entries if the cache has grown past the threshold.
func (c *Cache[V]) Set(key string, value V) {
	c.c.Set(key, value, gocache.DefaultExpiration)
	if c.c.ItemCount() > c.sweepAt {
		c.c.DeleteExpired()
	}
}

// Len reports the number of stored entries, including not-yet-swept
// expired ones.
func (c *Cache[V]) Len() int {
	return c.c.ItemCount()
}

// Key builds a stable cache key by hashing the given parts. The key is a
// hex SHA-256, so arbitrarily long queries and option blobs stay compact.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
