package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gemcart/gemcart/internal/cache"
	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/repository"
)

type mockCartRepo struct {
	mu         sync.Mutex
	carts      map[string]*domain.Cart
	nextID     int
	err        error
	replaceErr error
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: map[string]*domain.Cart{}}
}

func (m *mockCartRepo) GetActive(_ context.Context, identity domain.CartIdentity) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, c := range m.carts {
		if !c.IsActive {
			continue
		}
		if (identity.UserID != "" && c.UserID == identity.UserID) ||
			(identity.SessionID != "" && c.SessionID == identity.SessionID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (m *mockCartRepo) Insert(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	cart.ID = fmt.Sprintf("cart-%d", m.nextID)
	cart.Version = 1
	cp := *cart
	m.carts[cart.ID] = &cp
	return nil
}

func (m *mockCartRepo) Replace(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.replaceErr != nil {
		return m.replaceErr
	}
	stored, ok := m.carts[cart.ID]
	if !ok || stored.Version != cart.Version {
		return repository.ErrVersionConflict
	}
	cart.Version++
	cp := *cart
	m.carts[cart.ID] = &cp
	return nil
}

func (m *mockCartRepo) Deactivate(_ context.Context, cartID string, expiredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	stored.IsActive = false
	stored.ExpiredAt = &expiredAt
	stored.Version++
	return nil
}

func (m *mockCartRepo) TouchLastAccessed(_ context.Context, cartID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.carts[cartID]; ok {
		stored.LastAccessedAt = at
	}
	return nil
}

func (m *mockCartRepo) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.carts {
		if c.IsActive && c.IsExpired(now) {
			c.IsActive = false
			n++
		}
	}
	return n, nil
}

// stored returns the persisted copy, for assertions against what was written.
func (m *mockCartRepo) stored(cartID string) *domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.carts[cartID]
}

type mockCatalog struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	vendors  map[string]*domain.VendorSummary
	err      error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{},
		vendors:  map[string]*domain.VendorSummary{},
	}
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockCatalog) GetVendor(_ context.Context, id string) (*domain.VendorSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok {
		return nil, repository.ErrVendorNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockCatalog) setPrice(id string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].Price = price
}

type mockDiscounts struct {
	rules map[string]*domain.DiscountRule
}

func (m *mockDiscounts) LookupActiveDiscount(_ context.Context, code string, now time.Time) (*domain.DiscountRule, error) {
	for _, r := range m.rules {
		if strings.EqualFold(r.Code, code) && r.IsActive && r.WithinWindow(now) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrDiscountNotFound
}

type mockInventory struct {
	mu       sync.Mutex
	reserved map[string]int
	err      error
}

func newMockInventory() *mockInventory {
	return &mockInventory{reserved: map[string]int{}}
}

func (m *mockInventory) Reserve(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reserved[productID] += qty
	return nil
}

func (m *mockInventory) Release(_ context.Context, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reserved[productID] -= qty
	return nil
}

type mockOutbox struct {
	mu     sync.Mutex
	events []*repository.OutboxEvent
	err    error
}

func (m *mockOutbox) Enqueue(_ context.Context, event *repository.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockOutbox) GetUnprocessed(_ context.Context, limit int64) ([]*repository.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*repository.OutboxEvent
	for _, e := range m.events {
		if !e.Processed && int64(len(out)) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockOutbox) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Processed = true
		}
	}
	return nil
}

type mockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	nextID int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[string]*domain.Order{}}
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, number string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepo) Insert(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	order.ID = fmt.Sprintf("order-%d", m.nextID)
	order.Version = 1
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepo) Replace(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok || stored.Version != order.Version {
		return repository.ErrVersionConflict
	}
	order.Version++
	cp := *order
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerID string, _ int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByVendor(_ context.Context, vendorID string, _ int64) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if _, ok := o.VendorOrders[vendorID]; ok {
			out = append(out, *o)
		}
	}
	return out, nil
}

// noopCache always misses, so service tests exercise the repository path.
type noopCache struct{}

func (noopCache) Get(context.Context, domain.CartIdentity) (*domain.Cart, error) {
	return nil, cache.ErrCacheMiss
}
func (noopCache) Set(context.Context, domain.CartIdentity, *domain.Cart) error { return nil }
func (noopCache) Delete(context.Context, domain.CartIdentity) error            { return nil }

// pinnedCache serves one fixed cart, simulating a stale entry that survived
// an invalidation.
type pinnedCache struct {
	cart *domain.Cart
}

func (c *pinnedCache) Get(context.Context, domain.CartIdentity) (*domain.Cart, error) {
	if c.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.cart, nil
}
func (c *pinnedCache) Set(context.Context, domain.CartIdentity, *domain.Cart) error { return nil }
func (c *pinnedCache) Delete(context.Context, domain.CartIdentity) error            { return nil }
