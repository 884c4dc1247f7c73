package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/restaurant-matching/internal/models"
)

// RedisCache shares search results across processes so restarted or multiple
// API instances don't re-hit the provider for the same neighborhood.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]models.Restaurant, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var list []models.Restaurant
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

func (r *RedisCache) Set(ctx context.Context, key string, list []models.Restaurant) {
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	// Best effort: a cache write failing never fails the search.
	_ = r.client.Set(ctx, key, raw, r.ttl).Err()
}
