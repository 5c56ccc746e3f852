package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "session_events"

type MongoRepo struct {
	collection *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	return &MongoRepo{
		collection: db.Collection(collectionName),
	}
}

func (r *MongoRepo) Record(ctx context.Context, e Event) error {
	if _, err := r.collection.InsertOne(ctx, e); err != nil {
		return fmt.Errorf("failed to store session event: %w", err)
	}
	return nil
}

// ByUsername returns the newest events of one user first.
func (r *MongoRepo) ByUsername(ctx context.Context, username string, limit int64) ([]Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []Event
	for cursor.Next(ctx) {
		var e Event
		if err := cursor.Decode(&e); err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, cursor.Err()
}
