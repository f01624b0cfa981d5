package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gemcart/gemcart/internal/domain"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrVendorNotFound   = errors.New("vendor not found")
	ErrDiscountNotFound = errors.New("discount not found")

	// ErrVersionConflict means the document changed between read and write.
	ErrVersionConflict = errors.New("document version conflict")
)

// CartRepository stores cart documents. Writes are full-document replaces
// guarded by the cart's version field.
type CartRepository interface {
	GetActive(ctx context.Context, identity domain.CartIdentity) (*domain.Cart, error)
	Insert(ctx context.Context, cart *domain.Cart) error
	Replace(ctx context.Context, cart *domain.Cart) error
	Deactivate(ctx context.Context, cartID string, expiredAt time.Time) error
	TouchLastAccessed(ctx context.Context, cartID string, at time.Time) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type OrderRepository interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	Insert(ctx context.Context, order *domain.Order) error
	Replace(ctx context.Context, order *domain.Order) error
	ListByCustomer(ctx context.Context, customerID string, limit int64) ([]domain.Order, error)
	ListByVendor(ctx context.Context, vendorID string, limit int64) ([]domain.Order, error)
}

// ProductCatalog is the catalog collaborator consumed by pricing and order
// assembly. Availability is resolved from the returned product via
// Product.AvailableQuantity.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

type VendorLookup interface {
	GetVendor(ctx context.Context, vendorID string) (*domain.VendorSummary, error)
}

type DiscountLookup interface {
	// LookupActiveDiscount returns the rule for code only if it exists, is
	// active, and its validity window covers now.
	LookupActiveDiscount(ctx context.Context, code string, now time.Time) (*domain.DiscountRule, error)
}

// InventoryStore tracks reservation counters. Callers treat both operations
// as best-effort.
type InventoryStore interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}

// OutboxEvent is one pending domain event awaiting publication.
type OutboxEvent struct {
	ID          string    `bson:"_id,omitempty"`
	AggregateID string    `bson:"aggregate_id"`
	EventType   string    `bson:"event_type"`
	Payload     []byte    `bson:"payload"`
	Processed   bool      `bson:"processed"`
	CreatedAt   time.Time `bson:"created_at"`
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event *OutboxEvent) error
	GetUnprocessed(ctx context.Context, limit int64) ([]*OutboxEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
}
