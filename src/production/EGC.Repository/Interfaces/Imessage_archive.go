package interfaces

import (
	"context"

	egcmodels "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models"
)

// MessageArchive keeps raw inbound deliveries for diagnosis
type MessageArchive interface {
	Archive(ctx context.Context, msg egcmodels.InboundMessage) error
}
