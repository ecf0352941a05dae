package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/arthur-debert/recordstore/cache"
	"github.com/arthur-debert/recordstore/record"
)

// MemoryCache is an in-memory cache.Cache with per-entry expiry. It backs
// the "memory" implementation name in the cache registry.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	data    map[string]interface{}
	missing bool
	expires time.Time // zero means no expiry
}

// NewMemoryCache creates a memory cache. A ttl of zero means entries never
// expire.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: map[string]cacheEntry{},
	}
}

func init() {
	// conf: {"ttl": <seconds>}
	err := cache.Register("memory", func(conf map[string]interface{}) (cache.Cache, error) {
		var ttl time.Duration
		if raw, ok := conf["ttl"]; ok {
			secs, ok := asFloat64(raw)
			if !ok {
				return nil, fmt.Errorf("memory cache: ttl must be a number, got %T", raw)
			}
			ttl = time.Duration(secs * float64(time.Second))
		}
		return NewMemoryCache(ttl), nil
	})
	if err != nil {
		panic(err)
	}
}

// Fetch returns what the cache knows about one record ID.
func (c *MemoryCache) Fetch(id string) (cache.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchLocked(id), nil
}

// FetchMany returns one Result per ID, in order.
func (c *MemoryCache) FetchMany(ids []string) ([]cache.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]cache.Result, len(ids))
	for i, id := range ids {
		results[i] = c.fetchLocked(id)
	}
	return results, nil
}

func (c *MemoryCache) fetchLocked(id string) cache.Result {
	entry, ok := c.entries[id]
	if !ok {
		return cache.Result{State: cache.StateAbsent}
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		delete(c.entries, id)
		return cache.Result{State: cache.StateAbsent}
	}
	if entry.missing {
		return cache.Result{State: cache.StateMissing}
	}
	return cache.Result{State: cache.StateFound, Data: record.CopyValue(entry.data)}
}

// Store caches record data under an ID.
func (c *MemoryCache) Store(id string, data map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cacheEntry{
		data:    record.CopyValue(data),
		expires: c.expiry(c.ttl),
	}
	return nil
}

// MarkMissing records IDs as known-missing from storage. A zero ttl uses
// the cache's default.
func (c *MemoryCache) MarkMissing(ids []string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.entries[id] = cacheEntry{
			missing: true,
			expires: c.expiry(ttl),
		}
	}
	return nil
}

func (c *MemoryCache) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
