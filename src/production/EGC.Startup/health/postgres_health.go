package health

import (
	"context"
	"fmt"
	"time"

	config "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig builds the pgx pool configuration from the consumer configuration
func PoolConfig(cfg *config.ConsumerConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL configuration: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	return poolCfg, nil
}

// ConnectPostgresWithTimeout opens the pool and pings it before returning
func ConnectPostgresWithTimeout(cfg *config.ConsumerConfig, timeout time.Duration) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	return pool, nil
}
