package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	config "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Config"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.ConsumerService/publisher"
	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	implementation "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Implementation"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Startup/health"
	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 20 * time.Second

// ConsumerContainer manages the consumer's dependencies and their lifecycle
type ConsumerContainer struct {
	config *config.ConsumerConfig
	logger *logger.Logger

	pool      *pgxpool.Pool
	publisher *publisher.RabbitMQPublisher

	// Mutex for thread-safe access
	mu sync.Mutex

	// Cleanup functions, run in reverse order of registration
	cleanupFuncs []func() error
	shutdown     bool
}

// NewConsumerContainer loads the configuration and builds the logger
func NewConsumerContainer() (*ConsumerContainer, error) {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load consumer configuration: %w", err)
	}

	return NewConsumerContainerWith(cfg, logger.NewLogger(&cfg.Logging)), nil
}

// NewConsumerContainerWith builds a container around an already loaded configuration
func NewConsumerContainerWith(cfg *config.ConsumerConfig, log *logger.Logger) *ConsumerContainer {
	return &ConsumerContainer{
		config: cfg,
		logger: log,
	}
}

// GetConfig returns the configuration
func (c *ConsumerContainer) GetConfig() *config.ConsumerConfig {
	return c.config
}

// GetLogger returns the logger
func (c *ConsumerContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the PostgreSQL pool, connecting on first use
func (c *ConsumerContainer) GetDatabase() (*pgxpool.Pool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool == nil {
		pool, err := health.ConnectPostgresWithTimeout(c.config, connectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.pool = pool
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			pool.Close()
			c.logger.Info("PostgreSQL pool closed")
			return nil
		})
		c.logger.Logger.Info().Str("host", c.config.Database.Host).Str("database", c.config.Database.DBName).Msg("Connected to PostgreSQL")
	}

	return c.pool, nil
}

// GetTelemetryRepository returns the PostgreSQL telemetry store
func (c *ConsumerContainer) GetTelemetryRepository() (interfaces.TelemetryRepository, error) {
	pool, err := c.GetDatabase()
	if err != nil {
		return nil, err
	}
	return implementation.NewPostgresTelemetryRepository(pool, c.config.Database.WriteTimeout), nil
}

// GetLatestReadingCache returns the Redis cache, or a no-op cache when Redis is
// not configured or unreachable
func (c *ConsumerContainer) GetLatestReadingCache() interfaces.LatestReadingCache {
	if c.config.Redis.Addr == "" {
		c.logger.Info("REDIS_ADDR not set, latest value cache disabled")
		return implementation.NopLatestReadingCache{}
	}

	client, err := health.ConnectRedisWithTimeout(c.config.Redis, 5*time.Second)
	if err != nil {
		c.logger.WithError(err).Warn("Latest value cache unavailable, continuing without it")
		return implementation.NopLatestReadingCache{}
	}

	c.AddCleanupFunc(func() error {
		c.logger.Info("Closing Redis client")
		return client.Close()
	})
	c.logger.Logger.Info().Str("addr", c.config.Redis.Addr).Msg("Connected to Redis")
	return implementation.NewRedisLatestReadingCache(client)
}

// GetMessageArchive returns the MongoDB raw message archive, or a no-op archive
// when MongoDB is not configured or unreachable
func (c *ConsumerContainer) GetMessageArchive() interfaces.MessageArchive {
	if c.config.Mongo.URI == "" {
		c.logger.Info("MONGODB_URI not set, raw message archive disabled")
		return implementation.NopMessageArchive{}
	}

	client, err := health.ConnectMongoWithTimeout(c.config.Mongo, 10*time.Second)
	if err != nil {
		c.logger.WithError(err).Warn("Raw message archive unavailable, continuing without it")
		return implementation.NopMessageArchive{}
	}

	c.AddCleanupFunc(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.logger.Info("Disconnecting from MongoDB")
		return client.Disconnect(ctx)
	})
	c.logger.Logger.Info().Str("database", c.config.Mongo.Database).Str("collection", c.config.Mongo.Collection).Msg("Connected to MongoDB")
	return implementation.NewMongoMessageArchive(health.GetCollection(client, c.config.Mongo))
}

// GetPublisher returns the RabbitMQ publisher, connecting on first use
func (c *ConsumerContainer) GetPublisher(ctx context.Context) (*publisher.RabbitMQPublisher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.publisher == nil {
		rmq := c.config.RabbitMQ
		p := publisher.NewRabbitMQPublisher(publisher.Options{
			URL:               c.config.GetRabbitMQURL(),
			SensorQueue:       rmq.SensorQueue,
			PumpQueue:         rmq.PumpQueue,
			DeviceAddress:     rmq.DeviceAddress,
			ReconnectAttempts: rmq.ReconnectAttempts,
			ReconnectDelay:    rmq.ReconnectDelay,
		}, c.logger)

		if err := p.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%d: %w", rmq.Host, rmq.Port, err)
		}
		c.publisher = p
		c.cleanupFuncs = append(c.cleanupFuncs, p.Close)
	}

	return c.publisher, nil
}

// AddCleanupFunc adds a cleanup function
func (c *ConsumerContainer) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown releases every resource in reverse acquisition order. Only the first call does anything.
func (c *ConsumerContainer) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.shutdown {
		c.mu.Unlock()
		return nil
	}
	c.shutdown = true
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	c.logger.Info("Shutting down container...")

	for i := len(funcs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			c.logger.Logger.Warn().Int("skipped", i+1).Msg("Shutdown deadline reached, skipping remaining cleanup")
			break
		}
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}
