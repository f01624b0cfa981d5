package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gemcart/gemcart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Catalog combines the product and vendor lookups, which live in the same
// catalog collections.
type Catalog interface {
	ProductCatalog
	VendorLookup
}

type mongoCatalog struct {
	products *mongo.Collection
	vendors  *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) Catalog {
	return &mongoCatalog{
		products: db.Collection("products"),
		vendors:  db.Collection("vendors"),
	}
}

func (m *mongoCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product
	err := m.products.FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

func (m *mongoCatalog) GetVendor(ctx context.Context, vendorID string) (*domain.VendorSummary, error) {
	var vendor domain.VendorSummary
	err := m.vendors.FindOne(ctx, bson.M{"_id": vendorID}).Decode(&vendor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return &vendor, nil
}

type mongoDiscountLookup struct {
	collection *mongo.Collection
}

func NewMongoDiscountLookup(db *mongo.Database) DiscountLookup {
	return &mongoDiscountLookup{collection: db.Collection("discounts")}
}

// LookupActiveDiscount resolves a code case-insensitively and enforces the
// active flag and validity window at lookup, so callers never see a rule
// they cannot apply.
func (m *mongoDiscountLookup) LookupActiveDiscount(ctx context.Context, code string, now time.Time) (*domain.DiscountRule, error) {
	filter := bson.M{
		"code":      bson.M{"$regex": "^" + regexp.QuoteMeta(code) + "$", "$options": "i"},
		"is_active": true,
	}

	var rule domain.DiscountRule
	err := m.collection.FindOne(ctx, filter).Decode(&rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDiscountNotFound
		}
		return nil, fmt.Errorf("failed to look up discount: %w", err)
	}

	if !rule.WithinWindow(now) {
		return nil, ErrDiscountNotFound
	}
	return &rule, nil
}
