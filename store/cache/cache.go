// Package cache provides an in-memory read cache for hot records. Entries
// expire on a TTL and the cache holds a bounded number of items; the
// database remains the source of truth.
package cache

import (
	"sync"
	"time"
)

const (
	// DefaultMaxEntries bounds memory use for a single-instance deployment.
	DefaultMaxEntries = 1000
	// DefaultTTL keeps entries fresh without hammering the database.
	DefaultTTL = 5 * time.Minute
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a bounded TTL cache safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a cache. Non-positive arguments select the defaults.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns the cached value when present and not expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value, evicting the entry closest to expiry when full.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = &entry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes a key. Removing an absent key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOneLocked drops the entry with the earliest expiry, which is also
// the least recently written one.
func (c *Cache) evictOneLocked() {
	var oldestKey string
	var oldestAt time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
