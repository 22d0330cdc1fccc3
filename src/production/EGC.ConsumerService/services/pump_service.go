package services

import (
	"context"
	"fmt"

	logger "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Logger"
	metrics "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Metrics"
	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
)

// PumpService stores completed pump cycles and forwards every pump event.
type PumpService struct {
	repo      interfaces.TelemetryRepository
	publisher interfaces.RecordPublisher
	logger    *logger.Logger
}

func NewPumpService(repo interfaces.TelemetryRepository, publisher interfaces.RecordPublisher, log *logger.Logger) *PumpService {
	return &PumpService{
		repo:      repo,
		publisher: publisher,
		logger:    log.WithComponent("pump_service"),
	}
}

func (s *PumpService) Handle(ctx context.Context, event telemetry.PumpEvent) error {
	if event.CompletedCycle() {
		if err := s.repo.SavePumpActivation(ctx, event); err != nil {
			s.logger.Logger.Error().Err(err).Int64("id_sensor", event.SensorID).Msg("Failed to store pump activation")
		} else {
			s.logger.Logger.Debug().Int64("id_sensor", event.SensorID).Int64("duracion_segundos", *event.OnDurationSeconds).Msg("Pump activation stored")
		}
	} else {
		metrics.StoreWrites.WithLabelValues("save_pump_activation", metrics.ResultSkipped).Inc()
		s.logger.Logger.Debug().Int64("id_sensor", event.SensorID).Str("evento", event.EventKind).Msg("Pump event has no completed cycle, forwarding only")
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Logger.Error().Err(err).Int64("id_sensor", event.SensorID).Msg("Failed to forward pump event")
		return fmt.Errorf("forward pump event: %w", err)
	}
	return nil
}
