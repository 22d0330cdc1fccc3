package services

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
)

// SensorService stores sensor readings and forwards every one of them to the queue.
type SensorService struct {
	repo      interfaces.TelemetryRepository
	cache     interfaces.LatestReadingCache
	publisher interfaces.RecordPublisher
	logger    *logger.Logger
}

func NewSensorService(repo interfaces.TelemetryRepository, cache interfaces.LatestReadingCache, publisher interfaces.RecordPublisher, log *logger.Logger) *SensorService {
	return &SensorService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    log.WithComponent("sensor_service"),
	}
}

// Handle persists the reading, then publishes it. A failed write never stops the publish.
// The returned error is non-nil only when the publish failed.
func (s *SensorService) Handle(ctx context.Context, reading telemetry.SensorReading) error {
	if err := s.repo.SaveSensorReading(ctx, reading); err != nil {
		if errors.Is(err, interfaces.ErrSensorNotFound) {
			s.logger.Logger.Warn().Err(err).Str("mac_address", reading.DeviceAddress).Str("nombre", reading.SensorLabel).Msg("No sensor registered for reading, not stored")
		} else {
			s.logger.Logger.Error().Err(err).Str("mac_address", reading.DeviceAddress).Str("nombre", reading.SensorLabel).Msg("Failed to store sensor reading")
		}
	} else {
		s.logger.Logger.Debug().Str("mac_address", reading.DeviceAddress).Str("nombre", reading.SensorLabel).Float64("valor", reading.Value).Msg("Sensor reading stored")
		if err := s.cache.SetLatest(ctx, reading); err != nil {
			s.logger.Logger.Warn().Err(err).Str("nombre", reading.SensorLabel).Msg("Failed to update latest value cache")
		}
	}

	if err := s.publisher.Publish(ctx, reading); err != nil {
		s.logger.Logger.Error().Err(err).Str("nombre", reading.SensorLabel).Msg("Failed to forward sensor reading")
		return fmt.Errorf("forward sensor reading: %w", err)
	}
	return nil
}
