package interfaces

import (
	"context"
	"errors"

	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
)

// ErrSensorNotFound is returned when no sensor matches a reading's (label, mac address) pair
var ErrSensorNotFound = errors.New("sensor not found")

// TelemetryRepository is the relational system of record
type TelemetryRepository interface {
	// SaveSensorReading resolves the sensor by label and device address and inserts the reading.
	// Returns ErrSensorNotFound when the lookup misses.
	SaveSensorReading(ctx context.Context, reading telemetry.SensorReading) error

	// SavePumpActivation stores a completed pump cycle using the event's sensor id as is.
	SavePumpActivation(ctx context.Context, event telemetry.PumpEvent) error

	Ping(ctx context.Context) error
}
