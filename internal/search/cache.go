package search

import (
	"context"
	"sync"
	"time"

	"github.com/example/restaurant-matching/internal/models"
)

// MemoryCache is a small TTL cache for search results, for single-process
// deployments without Redis.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	list []models.Restaurant
	ts   time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: make(map[string]cacheEntry), ttl: ttl}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]models.Restaurant, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.list, true
}

func (c *MemoryCache) Set(_ context.Context, key string, list []models.Restaurant) {
	c.mu.Lock()
	c.store[key] = cacheEntry{list: list, ts: time.Now()}
	c.mu.Unlock()
}
