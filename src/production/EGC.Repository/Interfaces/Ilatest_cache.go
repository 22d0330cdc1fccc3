package interfaces

import (
	"context"

	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
)

// LatestReadingCache keeps the most recent value of every sensor for dashboards
type LatestReadingCache interface {
	SetLatest(ctx context.Context, reading telemetry.SensorReading) error
}
