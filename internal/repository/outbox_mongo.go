package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoOutboxRepository struct {
	collection *mongo.Collection
}

func NewMongoOutboxRepository(db *mongo.Database) OutboxRepository {
	return &mongoOutboxRepository{collection: db.Collection("outbox")}
}

func (m *mongoOutboxRepository) Enqueue(ctx context.Context, event *OutboxEvent) error {
	if event.ID == "" {
		event.ID = primitive.NewObjectID().Hex()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	_, err := m.collection.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox event: %w", err)
	}
	return nil
}

func (m *mongoOutboxRepository) GetUnprocessed(ctx context.Context, limit int64) ([]*OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)
	cursor, err := m.collection.Find(ctx, bson.M{"processed": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

func (m *mongoOutboxRepository) MarkProcessed(ctx context.Context, eventID string) error {
	update := bson.M{"$set": bson.M{"processed": true, "processed_at": time.Now()}}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}
