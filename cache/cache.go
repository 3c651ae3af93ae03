package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a small in-memory TTL cache over go-cache. The coordinator uses
// it to serve repeated requests for the same token without re-running the
// pipeline.
type Cache struct {
	store *gocache.Cache
}

// New creates a cache with the given default expiration and cleanup
// interval for expired entries.
func New(defaultExpiration, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get returns the value stored under key, if present and not expired
func (c *Cache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set stores value under key. A zero ttl uses the default expiration.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

// Delete removes the entry under key, if any
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// ItemCount returns the number of entries, including not-yet-purged
// expired ones.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

// Flush removes all entries
func (c *Cache) Flush() {
	c.store.Flush()
}
