package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates the indexes every collection relies on. Safe to call
// on every startup; Mongo treats existing indexes as a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	carts := &mongoCartRepository{collection: db.Collection("carts")}
	if err := carts.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("cart indexes: %w", err)
	}

	orders := &mongoOrderRepository{collection: db.Collection("orders")}
	if err := orders.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("order indexes: %w", err)
	}
	return nil
}
