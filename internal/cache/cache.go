package cache

import (
	"context"
	"errors"

	"github.com/gemcart/gemcart/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// CartCache is a read-through cache keyed by cart identity. Failures are
// tolerated by callers; the repository stays the source of truth.
type CartCache interface {
	Get(ctx context.Context, identity domain.CartIdentity) (*domain.Cart, error)
	Set(ctx context.Context, identity domain.CartIdentity, cart *domain.Cart) error
	Delete(ctx context.Context, identity domain.CartIdentity) error
}
