package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"toilet-map-service/internal/client"
	"toilet-map-service/internal/model"
	"toilet-map-service/internal/util"
)

const viewportPrefix = "viewport:"

// BuildingCache holds recent viewport query results. Entries expire by TTL
// only; viewport keys are unenumerable so writes never invalidate, and the
// TTL bounds how stale the map can get.
type BuildingCache struct {
	client *client.RedisClient
	ttl    time.Duration
}

func NewBuildingCache(client *client.RedisClient, ttl time.Duration) *BuildingCache {
	return &BuildingCache{client: client, ttl: ttl}
}

// ViewportKey derives the cache key from the raw bounds parameters.
func ViewportKey(swLat, swLng, neLat, neLng float64) string {
	return fmt.Sprintf("%s%.6f:%.6f:%.6f:%.6f", viewportPrefix, swLat, swLng, neLat, neLng)
}

func (c *BuildingCache) GetViewport(ctx context.Context, key string) ([]model.Building, bool) {
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		return nil, false
	}

	var buildings []model.Building
	if err := json.Unmarshal([]byte(raw), &buildings); err != nil {
		util.Warn("Corrupt viewport cache entry dropped",
			zap.String("key", key),
			zap.Error(err))
		_ = c.client.Del(ctx, key)
		return nil, false
	}

	return buildings, true
}

func (c *BuildingCache) SetViewport(ctx context.Context, key string, buildings []model.Building) {
	payload, err := json.Marshal(buildings)
	if err != nil {
		util.Warn("Failed to marshal viewport cache entry", zap.Error(err))
		return
	}

	if err := c.client.SetWithTTL(ctx, key, string(payload), c.ttl); err != nil {
		// Cache misses are fine; the query path works without Redis.
		util.Warn("Failed to set viewport cache entry",
			zap.String("key", key),
			zap.Error(err))
	}
}
