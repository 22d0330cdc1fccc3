package container

import (
	"context"
	"errors"
	"testing"

	config "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Config"
	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	implementation "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Implementation"
	"github.com/stretchr/testify/assert"
)

func newTestContainer() *ConsumerContainer {
	return NewConsumerContainerWith(&config.ConsumerConfig{}, logger.NewNop())
}

func TestShutdown_RunsCleanupInReverseOrder(t *testing.T) {
	c := newTestContainer()
	var order []string
	c.AddCleanupFunc(func() error { order = append(order, "postgres"); return nil })
	c.AddCleanupFunc(func() error { order = append(order, "redis"); return errors.New("already closed") })
	c.AddCleanupFunc(func() error { order = append(order, "publisher"); return nil })

	assert.NoError(t, c.Shutdown(context.Background()))

	assert.Equal(t, []string{"publisher", "redis", "postgres"}, order)
}

func TestShutdown_IsIdempotent(t *testing.T) {
	c := newTestContainer()
	calls := 0
	c.AddCleanupFunc(func() error { calls++; return nil })

	assert.NoError(t, c.Shutdown(context.Background()))
	assert.NoError(t, c.Shutdown(context.Background()))

	assert.Equal(t, 1, calls)
}

func TestOptionalSinksDisabledWithoutConfiguration(t *testing.T) {
	c := newTestContainer()

	assert.IsType(t, implementation.NopLatestReadingCache{}, c.GetLatestReadingCache())
	assert.IsType(t, implementation.NopMessageArchive{}, c.GetMessageArchive())
}

func TestOptionalSinksFallBackWhenUnreachable(t *testing.T) {
	c := NewConsumerContainerWith(&config.ConsumerConfig{
		Mongo: config.MongoConfig{URI: "not-a-mongo-uri"},
	}, logger.NewNop())

	assert.IsType(t, implementation.NopMessageArchive{}, c.GetMessageArchive())
}
