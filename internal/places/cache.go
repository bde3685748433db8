package places

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"lunchly-backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DetailsCache maps a place id to its fetched details.
// Cache failures are never fatal; a miss just means asking the provider.
type DetailsCache interface {
	Get(ctx context.Context, placeID string) (*models.PlaceDetails, bool)
	Set(ctx context.Context, details *models.PlaceDetails)
}

// MemoryDetailsCache is a plain map scoped to one session
type MemoryDetailsCache struct {
	mu      sync.RWMutex
	entries map[string]*models.PlaceDetails
}

// NewMemoryDetailsCache creates an empty cache
func NewMemoryDetailsCache() *MemoryDetailsCache {
	return &MemoryDetailsCache{entries: make(map[string]*models.PlaceDetails)}
}

func (c *MemoryDetailsCache) Get(_ context.Context, placeID string) (*models.PlaceDetails, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.entries[placeID]
	return d, ok
}

func (c *MemoryDetailsCache) Set(_ context.Context, details *models.PlaceDetails) {
	if details == nil || details.ID == "" {
		return
	}
	c.mu.Lock()
	c.entries[details.ID] = details
	c.mu.Unlock()
}

// Len returns the number of cached places
func (c *MemoryDetailsCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

const detailsKeyPrefix = "place_details:"

// RedisDetailsCache shares details across connections with a TTL
type RedisDetailsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDetailsCache creates a redis backed cache
func NewRedisDetailsCache(client *redis.Client, ttl time.Duration) *RedisDetailsCache {
	return &RedisDetailsCache{client: client, ttl: ttl}
}

func (c *RedisDetailsCache) Get(ctx context.Context, placeID string) (*models.PlaceDetails, bool) {
	data, err := c.client.Get(ctx, detailsKeyPrefix+placeID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("place_id", placeID).Msg("Failed to read cached place details")
		}
		return nil, false
	}

	var d models.PlaceDetails
	if err := json.Unmarshal(data, &d); err != nil {
		log.Warn().Err(err).Str("place_id", placeID).Msg("Dropping malformed cached place details")
		return nil, false
	}
	return &d, true
}

func (c *RedisDetailsCache) Set(ctx context.Context, details *models.PlaceDetails) {
	if details == nil || details.ID == "" {
		return
	}
	data, err := json.Marshal(details)
	if err != nil {
		log.Warn().Err(err).Str("place_id", details.ID).Msg("Failed to encode place details")
		return
	}
	if err := c.client.Set(ctx, detailsKeyPrefix+details.ID, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("place_id", details.ID).Msg("Failed to cache place details")
	}
}
