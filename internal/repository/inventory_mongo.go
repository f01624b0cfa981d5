package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoInventoryStore struct {
	products *mongo.Collection
}

// NewMongoInventoryStore adjusts reservation counters with atomic $inc
// updates on the product documents, so concurrent reservations never lose a
// count.
func NewMongoInventoryStore(db *mongo.Database) InventoryStore {
	return &mongoInventoryStore{products: db.Collection("products")}
}

func (m *mongoInventoryStore) Reserve(ctx context.Context, productID string, quantity int) error {
	update := bson.M{"$inc": bson.M{"reserved_quantity": quantity}}
	result, err := m.products.UpdateOne(ctx, bson.M{"_id": productID}, update)
	if err != nil {
		return fmt.Errorf("failed to reserve inventory: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoInventoryStore) Release(ctx context.Context, productID string, quantity int) error {
	update := bson.M{"$inc": bson.M{"reserved_quantity": -quantity}}
	result, err := m.products.UpdateOne(ctx, bson.M{"_id": productID}, update)
	if err != nil {
		return fmt.Errorf("failed to release inventory: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}
