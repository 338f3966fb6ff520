package realtime

import (
	"context"
	"errors"
	"log/slog"

	"fluxior-backend/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type changeEvent struct {
	OperationType string       `bson:"operationType"`
	FullDocument  *models.Lead `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// toEvent maps a change stream document to a feed event. Operations the
// mirror does not care about (drop, rename, invalidate) return false.
func toEvent(change changeEvent) (Event, bool) {
	switch change.OperationType {
	case "insert":
		if change.FullDocument == nil {
			return Event{}, false
		}
		return InsertEvent(*change.FullDocument), true
	case "update", "replace":
		if change.FullDocument == nil {
			return Event{}, false
		}
		return UpdateEvent(*change.FullDocument), true
	case "delete":
		return DeleteEvent(change.DocumentKey.ID), true
	default:
		return Event{}, false
	}
}

// WatchLeads republishes the leads collection change stream until ctx ends.
// It requires a replica set.
func WatchLeads(ctx context.Context, col *mongo.Collection, pub Publisher, log *slog.Logger) error {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := col.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var change changeEvent
		if err := stream.Decode(&change); err != nil {
			log.Warn("realtime watch: decode failed", slog.String("error", err.Error()))
			continue
		}
		event, ok := toEvent(change)
		if !ok {
			continue
		}
		if err := pub.Publish(ctx, event); err != nil {
			log.Warn("realtime watch: publish failed",
				slog.String("lead_id", event.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
