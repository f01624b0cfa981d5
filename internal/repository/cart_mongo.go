package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gemcart/gemcart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{collection: db.Collection("carts")}
}

func (m *mongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"user_id": bson.M{"$exists": true}, "is_active": true}),
		},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "items.product_id", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}},
	}
	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}

func (m *mongoCartRepository) GetActive(ctx context.Context, identity domain.CartIdentity) (*domain.Cart, error) {
	filter := bson.M{"is_active": true}
	if identity.UserID != "" {
		filter["user_id"] = identity.UserID
	} else {
		filter["session_id"] = identity.SessionID
	}

	var cart domain.Cart
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *mongoCartRepository) Insert(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	if cart.ID == "" {
		cart.ID = primitive.NewObjectID().Hex()
	}
	cart.Version = 1

	_, err := m.collection.InsertOne(ctx, cart)
	if err != nil {
		return fmt.Errorf("failed to insert cart: %w", err)
	}
	return nil
}

// Replace writes the full document back, but only if the stored version still
// matches the one the caller read. A concurrent writer bumps the version and
// this write comes back ErrVersionConflict instead of silently losing data.
func (m *mongoCartRepository) Replace(ctx context.Context, cart *domain.Cart) error {
	readVersion := cart.Version
	cart.Version = readVersion + 1
	cart.UpdatedAt = time.Now()

	filter := bson.M{"_id": cart.ID, "version": readVersion}
	result, err := m.collection.ReplaceOne(ctx, filter, cart)
	if err != nil {
		cart.Version = readVersion
		return fmt.Errorf("failed to replace cart: %w", err)
	}
	if result.MatchedCount == 0 {
		cart.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}

func (m *mongoCartRepository) Deactivate(ctx context.Context, cartID string, expiredAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"is_active":  false,
			"expired_at": expiredAt,
			"updated_at": time.Now(),
		},
		"$inc": bson.M{"version": 1},
	}
	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": cartID}, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

// TouchLastAccessed is a single-field atomic update; it deliberately skips
// the version check so reads do not contend with writers.
func (m *mongoCartRepository) TouchLastAccessed(ctx context.Context, cartID string, at time.Time) error {
	update := bson.M{"$set": bson.M{"last_accessed_at": at}}
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": cartID}, update)
	if err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}

// ExpireStale flips is_active on every live cart whose expires_at has passed.
// Only already-stale documents are touched, so there is no contention with
// live mutations.
func (m *mongoCartRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.M{
		"is_active":  true,
		"expires_at": bson.M{"$lt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"is_active":  false,
			"expired_at": now,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}
	result, err := m.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to expire stale carts: %w", err)
	}
	return result.ModifiedCount, nil
}
