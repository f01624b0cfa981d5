package repository

import (
	"context"
	"errors"

	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

type breakerCatalog struct {
	inner    ProductCatalog
	products *gobreaker.CircuitBreaker[*domain.Product]
}

// WithCatalogBreaker shields the request path from a struggling catalog
// backend. Not-found is a valid answer, not a failure, so it must not trip
// the breaker.
func WithCatalogBreaker(inner ProductCatalog) ProductCatalog {
	return &breakerCatalog{
		inner:    inner,
		products: circuitbreaker.New[*domain.Product]("catalog-products"),
	}
}

func (b *breakerCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := b.products.Execute(func() (*domain.Product, error) {
		p, err := b.inner.GetProduct(ctx, productID)
		if errors.Is(err, ErrProductNotFound) {
			return nil, nil
		}
		return p, err
	})
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}
