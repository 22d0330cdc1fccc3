package implementation

import (
	"context"
	"fmt"
	"time"

	egcmodels "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Models"
	interfaces "github.com/Orantes67/Consumer-rasberry-easygrow/src/production/EGC.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Inserter is the subset of *mongo.Collection used by the archive
type Inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type MongoMessageArchive struct {
	coll Inserter
}

var _ interfaces.MessageArchive = (*MongoMessageArchive)(nil)

func NewMongoMessageArchive(coll Inserter) *MongoMessageArchive {
	return &MongoMessageArchive{coll: coll}
}

func (a *MongoMessageArchive) Archive(ctx context.Context, msg egcmodels.InboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := a.coll.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to archive message %s: %w", msg.ID, err)
	}
	return nil
}

// NopMessageArchive is used when no MongoDB URI is configured
type NopMessageArchive struct{}

func (NopMessageArchive) Archive(context.Context, egcmodels.InboundMessage) error { return nil }
