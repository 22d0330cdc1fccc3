package interfaces

import (
	"context"

	"github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models/telemetry"
)

// RecordPublisher forwards records to the durable queues
type RecordPublisher interface {
	Publish(ctx context.Context, record telemetry.Record) error
}
