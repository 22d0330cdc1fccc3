package implementation

import (
	"context"
	"fmt"
	"time"

	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
	"github.com/redis/go-redis/v9"
)

// latestTTL lets dead sensors drop out of the cache
const latestTTL = 24 * time.Hour

// RedisSetter is the subset of *redis.Client used by the cache
type RedisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type RedisLatestReadingCache struct {
	client RedisSetter
}

var _ interfaces.LatestReadingCache = (*RedisLatestReadingCache)(nil)

func NewRedisLatestReadingCache(client RedisSetter) *RedisLatestReadingCache {
	return &RedisLatestReadingCache{client: client}
}

// LatestKey is the cache key of a sensor: sensor:last:<mac_address>:<nombre>
func LatestKey(macAddress, label string) string {
	return fmt.Sprintf("sensor:last:%s:%s", macAddress, label)
}

func (c *RedisLatestReadingCache) SetLatest(ctx context.Context, reading telemetry.SensorReading) error {
	body, err := reading.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode reading: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, LatestKey(reading.DeviceAddress, reading.SensorLabel), body, latestTTL).Err(); err != nil {
		return fmt.Errorf("failed to update latest value: %w", err)
	}
	return nil
}

// NopLatestReadingCache is used when no Redis address is configured
type NopLatestReadingCache struct{}

func (NopLatestReadingCache) SetLatest(context.Context, telemetry.SensorReading) error { return nil }
