package health

import (
	"context"
	"fmt"
	"time"

	config "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedisWithTimeout creates a Redis client and pings it
func ConnectRedisWithTimeout(cfg config.RedisConfig, timeout time.Duration) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping Redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}
