// Package cache provides a byte-oriented response cache with TTL
// support. The API layer stores marshaled JSON payloads under keys
// like "class:01.11" or "search:wheat:20" so repeated taxonomy
// lookups skip the database between ingests.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a thread-safe store of serialized payloads with expiry.
type Cache interface {
	// Get returns the cached payload, or false when absent or expired.
	Get(key string) ([]byte, bool)
	// Set stores a payload under key for the given TTL.
	Set(key string, payload []byte, ttl time.Duration)
	// Delete removes a single key.
	Delete(key string)
	// Clear drops every entry. Called after each taxonomy ingest.
	Clear()
	// Stats returns usage counters.
	Stats() Stats
	// Close releases background resources (janitor, connections).
	Close() error
}

// Stats holds cache usage counters.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"current_size"`
}

type entry struct {
	payload []byte
	expires time.Time
}

func (e *entry) expired(now time.Time) bool { return now.After(e.expires) }

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

// NewMemoryCache creates an in-process cache. A positive cleanupInterval
// starts a janitor goroutine that evicts expired entries; Stop via Close.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries:     make(map[string]*entry),
		stopJanitor: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.expired(time.Now()) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.payload, true
}

func (c *memoryCache) Set(key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry{payload: payload, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// Close stops the janitor goroutine. Safe to call more than once.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopJanitor) })
	return nil
}

func (c *memoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopJanitor:
			return
		}
	}
}

func (c *memoryCache) deleteExpired() int {
	now := time.Now()
	c.mu.Lock()
	count := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.mu.Unlock()

	c.evictions.Add(int64(count))
	return count
}

// NewNoOpCache returns a cache that stores nothing, for deployments
// where caching is disabled.
func NewNoOpCache() Cache { return &noOpCache{} }

type noOpCache struct{}

func (noOpCache) Get(string) ([]byte, bool)         { return nil, false }
func (noOpCache) Set(string, []byte, time.Duration) {}
func (noOpCache) Delete(string)                     {}
func (noOpCache) Clear()                            {}
func (noOpCache) Stats() Stats                      { return Stats{} }
func (noOpCache) Close() error                      { return nil }
