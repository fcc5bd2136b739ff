package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is the in-process stand-in for the Redis stats cache, used when
// no Redis address is configured. Concurrent misses for the same key
// collapse into a single load, like the Redis implementation.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	sf      singleflight.Group
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, entries: make(map[string]cacheEntry), now: time.Now}
}

func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if payload, ok := c.get(key); ok {
		return payload, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if payload, ok := c.get(key); ok {
			return payload, nil
		}
		payload, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{payload: payload, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Cache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.payload, true
}

func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}
