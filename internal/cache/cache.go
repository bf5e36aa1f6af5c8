// Package cache provides the in-memory caching layer for detection and
// recommendation results. It uses patrickmn/go-cache for TTL-based expiry
// and adds a hard item bound so a long batch cannot grow the cache without
// limit.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultTTL is how long a cached result stays valid.
const DefaultTTL = 5 * time.Minute

// DefaultCleanupInterval is how often expired items are removed.
const DefaultCleanupInterval = 10 * time.Minute

// Cache wraps go-cache with a maximum item count.
type Cache struct {
	store    *gocache.Cache
	maxItems int
}

// New creates a cache with the given TTL, cleanup interval, and item
// bound. maxItems of zero leaves the cache unbounded.
func New(defaultTTL, cleanupInterval time.Duration, maxItems int) *Cache {
	return &Cache{
		store:    gocache.New(defaultTTL, cleanupInterval),
		maxItems: maxItems,
	}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores a value with the default TTL. When the cache is at its item
// bound, the whole cache is flushed first; a detection cache is cheap to
// rebuild and a full flush keeps the bound strict without bookkeeping.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, gocache.DefaultExpiration)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if c.maxItems > 0 && c.store.ItemCount() >= c.maxItems {
		if _, hit := c.store.Get(key); !hit {
			c.store.Flush()
		}
	}
	c.store.Set(key, value, ttl)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Cleanup drops expired items and reports how many entries were released.
func (c *Cache) Cleanup() int {
	before := c.store.ItemCount()
	c.store.DeleteExpired()
	freed := before - c.store.ItemCount()
	if freed < 0 {
		freed = 0
	}
	return freed
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of items in the cache.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

// Stats returns cache statistics.
type Stats struct {
	ItemCount int `json:"item_count"`
	MaxItems  int `json:"max_items,omitempty"`
}

// GetStats returns current cache statistics.
func (c *Cache) GetStats() Stats {
	return Stats{
		ItemCount: c.store.ItemCount(),
		MaxItems:  c.maxItems,
	}
}
