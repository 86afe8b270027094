package journal

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/giovaniif/court-booking/infra"
	"github.com/giovaniif/court-booking/infra/gateways"
	protocols "github.com/giovaniif/court-booking/protocols"
)

// Mongo appends every service event as a document.
type Mongo struct {
	client  *mongo.Client
	insert  func(ctx context.Context, document any) error
	sleeper protocols.Sleeper
}

func OpenMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	coll := client.Database(database).Collection(collection)
	return &Mongo{
		client: client,
		insert: func(ctx context.Context, document any) error {
			_, err := coll.InsertOne(ctx, document)
			return err
		},
		sleeper: gateways.NewSleeper(),
	}, nil
}

func (m *Mongo) Publish(ctx context.Context, event protocols.Event) error {
	doc := eventDocument(event)
	insert := gateways.RetryWithBackoff(func(ctx context.Context) error {
		return classifyMongoError(m.insert(ctx, doc))
	}, m.sleeper)
	return insert(ctx)
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func eventDocument(event protocols.Event) bson.D {
	doc := bson.D{
		{Key: "sequence", Value: int64(event.Sequence)},
		{Key: "type", Value: event.Type},
		{Key: "court_id", Value: event.CourtId},
		{Key: "occurred_at", Value: event.OccurredAt},
	}
	if event.ReservationId != "" {
		doc = append(doc,
			bson.E{Key: "reservation_id", Value: event.ReservationId},
			bson.E{Key: "starts_at", Value: event.Timestamp},
			bson.E{Key: "duration_hours", Value: event.DurationHours},
		)
	}
	if event.Type == protocols.EventLightingChanged {
		doc = append(doc, bson.E{Key: "lights_on", Value: event.LightsOn})
	}
	return doc
}

func classifyMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) {
		return infra.NewTimeoutError("mongo insert")
	}
	if mongo.IsNetworkError(err) {
		return infra.NewUnavailableError("mongo insert", err)
	}
	return fmt.Errorf("mongo insert: %w", err)
}
