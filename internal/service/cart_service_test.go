package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gemcart/gemcart/internal/cache"
	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/pricing"
	"github.com/gemcart/gemcart/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartFixture struct {
	repo      *mockCartRepo
	catalog   *mockCatalog
	discounts *mockDiscounts
	svc       *CartService
	now       time.Time
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()

	f := &cartFixture{
		repo:      newMockCartRepo(),
		catalog:   newMockCatalog(),
		discounts: &mockDiscounts{rules: map[string]*domain.DiscountRule{}},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.catalog.vendors["v1"] = &domain.VendorSummary{ID: "v1", Name: "Aurora Gems"}
	f.catalog.vendors["v2"] = &domain.VendorSummary{ID: "v2", Name: "Stellar Silver"}

	f.svc = NewCartService(f.repo, f.catalog, f.catalog, f.discounts, noopCache{}, pricing.NewEngine(f.catalog))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *cartFixture) addProduct(id string, price float64, stock int) {
	f.catalog.products[id] = &domain.Product{
		ID:             id,
		Name:           "Ring " + id,
		Slug:           "ring-" + id,
		VendorID:       "v1",
		SKU:            "SKU-" + id,
		Price:          price,
		Status:         domain.ProductStatusActive,
		TrackInventory: true,
		StockQuantity:  stock,
	}
}

func userIdentity() domain.CartIdentity {
	return domain.CartIdentity{UserID: "user-1"}
}

func TestGetOrCreateCreatesWhenMissing(t *testing.T) {
	f := newCartFixture(t)

	cart, err := f.svc.GetOrCreate(context.Background(), userIdentity(), true)
	require.NoError(t, err)
	require.NotNil(t, cart)

	assert.Equal(t, "user-1", cart.UserID)
	assert.True(t, cart.IsActive)
	assert.Empty(t, cart.Items)
	assert.Equal(t, f.now.Add(domain.RegisteredCartTTL), cart.ExpiresAt)
}

func TestGetOrCreateReturnsNotFoundWhenNotCreating(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.GetOrCreate(context.Background(), userIdentity(), false)
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestGetOrCreateRejectsAmbiguousIdentity(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.GetOrCreate(context.Background(), domain.CartIdentity{UserID: "u", SessionID: "s"}, true)
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)

	_, err = f.svc.GetOrCreate(context.Background(), domain.CartIdentity{}, true)
	assert.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

func TestGetOrCreateRecreatesExpiredCart(t *testing.T) {
	f := newCartFixture(t)

	first, err := f.svc.GetOrCreate(context.Background(), userIdentity(), true)
	require.NoError(t, err)

	// Past the registered-user TTL the old cart is dead and a fresh one is issued.
	f.now = f.now.Add(domain.RegisteredCartTTL + time.Hour)

	second, err := f.svc.GetOrCreate(context.Background(), userIdentity(), true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.IsActive)

	old := f.repo.stored(first.ID)
	require.NotNil(t, old)
	assert.False(t, old.IsActive)
	require.NotNil(t, old.ExpiredAt)
}

func TestGetOrCreateReturnsDetachedCopy(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 49.99, 10)

	saved, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	first, err := f.svc.GetOrCreate(context.Background(), userIdentity(), false)
	require.NoError(t, err)
	second, err := f.svc.GetOrCreate(context.Background(), userIdentity(), false)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// Scribbling on one read must not reach the other read or the store.
	first.Items[0].Quantity = 99
	assert.Equal(t, 2, second.Items[0].Quantity)
	assert.Equal(t, 2, f.repo.stored(saved.ID).Items[0].Quantity)
}

func TestGetOrCreateConcurrentReadersGetIndependentCarts(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 49.99, 10)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f.svc = NewCartService(f.repo, f.catalog, f.catalog, f.discounts, cache.NewRedisCache(client), pricing.NewEngine(f.catalog))
	now := f.now
	f.svc.now = func() time.Time { return now }

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	// Concurrent reads collapse onto one singleflight result; each caller
	// still has to come away with its own cart value.
	const readers = 32
	carts := make([]*domain.Cart, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cart, errGet := f.svc.GetOrCreate(context.Background(), userIdentity(), false)
			assert.NoError(t, errGet)
			carts[i] = cart
		}(i)
	}
	wg.Wait()

	seen := make(map[*domain.Cart]bool, readers)
	for _, cart := range carts {
		require.NotNil(t, cart)
		assert.False(t, seen[cart], "two readers received the same cart value")
		seen[cart] = true
		assert.Equal(t, 2, cart.Items[0].Quantity)
	}
}

func TestAddItemCreatesLineWithSnapshot(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 49.99, 20)

	cart, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 2, Size: "7"})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	line := cart.Items[0]
	assert.NotEmpty(t, line.ID)
	assert.Equal(t, "Ring p1", line.ProductName)
	assert.Equal(t, "Aurora Gems", line.VendorName)
	assert.Equal(t, "SKU-p1", line.SKU)
	assert.Equal(t, 49.99, line.UnitPrice)
	assert.Equal(t, 99.98, line.LineTotal)
	assert.Equal(t, 99.98, cart.Pricing.Subtotal)
}

func TestAddItemSameCombinationIncrementsQuantity(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 2, Size: "7"})
	require.NoError(t, err)

	cart, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 3, Size: "7"})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 50.0, cart.Items[0].LineTotal)
}

func TestAddItemDifferentSizeIsNewLine(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1, Size: "6"})
	require.NoError(t, err)

	cart, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1, Size: "7"})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestAddItemRejectsFullCart(t *testing.T) {
	f := newCartFixture(t)
	for i := 0; i < domain.MaxCartLines; i++ {
		id := fmt.Sprintf("p%d", i)
		f.addProduct(id, 10.0, 20)
		_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: id, Quantity: 1})
		require.NoError(t, err)
	}

	f.addProduct("overflow", 10.0, 20)
	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "overflow", Quantity: 1})
	assert.ErrorIs(t, err, ErrCartFull)
}

func TestAddItemIncrementBypassesLineLimit(t *testing.T) {
	f := newCartFixture(t)
	for i := 0; i < domain.MaxCartLines; i++ {
		id := fmt.Sprintf("p%d", i)
		f.addProduct(id, 10.0, 20)
		_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: id, Quantity: 1})
		require.NoError(t, err)
	}

	// Incrementing an existing line is not a new line.
	cart, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p0", Quantity: 1})
	require.NoError(t, err)
	assert.Len(t, cart.Items, domain.MaxCartLines)
	assert.Equal(t, 2, cart.FindLine("p0", "", "").Quantity)
}

func TestAddItemEnforcesQuantityCap(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 100)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 8})
	require.NoError(t, err)

	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 3})
	assert.ErrorIs(t, err, ErrQuantityLimit)

	// The rejection left the cart untouched.
	cart, err := f.svc.GetOrCreate(context.Background(), userIdentity(), false)
	require.NoError(t, err)
	assert.Equal(t, 8, cart.FindLine("p1", "", "").Quantity)
}

func TestAddItemStockChecks(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("gone", 10.0, 0)
	f.addProduct("low", 10.0, 3)
	f.addProduct("draft", 10.0, 20)
	f.catalog.products["draft"].Status = domain.ProductStatusDraft

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "gone", Quantity: 1})
	assert.ErrorIs(t, err, ErrOutOfStock)

	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "low", Quantity: 4})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "draft", Quantity: 1})
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "low", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 20)

	cart, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	lineID := cart.Items[0].ID

	cart, err = f.svc.UpdateQuantity(context.Background(), userIdentity(), lineID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0.0, cart.Pricing.TotalAmount)
}

func TestUpdateQuantityUnknownLine(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	_, err = f.svc.UpdateQuantity(context.Background(), userIdentity(), "nope", 3)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestClearCartResetsEverything(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)
	f.discounts.rules["SAVE10"] = &domain.DiscountRule{Code: "SAVE10", Type: domain.DiscountTypePercentage, Value: 10, IsActive: true}

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.ApplyDiscount(context.Background(), userIdentity(), "SAVE10")
	require.NoError(t, err)

	cart, err := f.svc.ClearCart(context.Background(), userIdentity())
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Empty(t, cart.Discounts)
	assert.Equal(t, domain.ZeroPricing(), cart.Pricing)
	assert.True(t, cart.IsActive)
	assert.True(t, cart.IsValid)
}

func TestApplyDiscountHappyPath(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)
	f.discounts.rules["SAVE10"] = &domain.DiscountRule{Code: "SAVE10", Type: domain.DiscountTypePercentage, Value: 10, IsActive: true}

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	cart, err := f.svc.ApplyDiscount(context.Background(), userIdentity(), "SAVE10")
	require.NoError(t, err)
	require.Len(t, cart.Discounts, 1)
	assert.Equal(t, 20.0, cart.Pricing.ItemDiscount)
}

func TestApplyDiscountDuplicateRejected(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)
	f.discounts.rules["SAVE10"] = &domain.DiscountRule{Code: "SAVE10", Type: domain.DiscountTypePercentage, Value: 10, IsActive: true}

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.ApplyDiscount(context.Background(), userIdentity(), "SAVE10")
	require.NoError(t, err)

	// Same code in different case is still the same code.
	_, err = f.svc.ApplyDiscount(context.Background(), userIdentity(), "save10")
	assert.ErrorIs(t, err, ErrDiscountAlreadyApplied)
}

func TestApplyDiscountUnknownCode(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.ApplyDiscount(context.Background(), userIdentity(), "NOPE")
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestApplyDiscountExpiredWindow(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)
	f.discounts.rules["OLD"] = &domain.DiscountRule{
		Code:     "OLD",
		Type:     domain.DiscountTypePercentage,
		Value:    10,
		IsActive: true,
		EndsAt:   f.now.Add(-time.Hour),
	}

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.ApplyDiscount(context.Background(), userIdentity(), "OLD")
	assert.ErrorIs(t, err, ErrInvalidDiscount)
}

func TestApplyDiscountMinimumOrder(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 30.0, 20)
	f.discounts.rules["BIG"] = &domain.DiscountRule{Code: "BIG", Type: domain.DiscountTypeFixedAmount, Value: 25, MinimumOrder: 100, IsActive: true}

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.ApplyDiscount(context.Background(), userIdentity(), "BIG")
	assert.ErrorIs(t, err, ErrMinimumOrderNotMet)
}

func TestRemoveDiscountNeverAppliedIsNoop(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 50.0, 20)

	added, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	cart, err := f.svc.RemoveDiscount(context.Background(), userIdentity(), "NEVER")
	require.NoError(t, err)
	assert.Equal(t, added.Pricing, cart.Pricing)

	// No write happened: the stored version is unchanged.
	assert.Equal(t, added.Version, f.repo.stored(cart.ID).Version)
}

func TestRemoveDiscountRecalculates(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)
	f.discounts.rules["SAVE10"] = &domain.DiscountRule{Code: "SAVE10", Type: domain.DiscountTypePercentage, Value: 10, IsActive: true}

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.ApplyDiscount(context.Background(), userIdentity(), "SAVE10")
	require.NoError(t, err)

	cart, err := f.svc.RemoveDiscount(context.Background(), userIdentity(), "SAVE10")
	require.NoError(t, err)
	assert.Empty(t, cart.Discounts)
	assert.Equal(t, 0.0, cart.Pricing.ItemDiscount)
}

func TestSetShippingAddressTriggersTax(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	cart, err := f.svc.SetShippingAddress(context.Background(), userIdentity(), domain.Address{
		FullName: "A Customer", Line1: "1 Main St", City: "Sacramento", State: "CA", PostalCode: "95814", Country: "US",
	})
	require.NoError(t, err)
	assert.Greater(t, cart.Pricing.TaxAmount, 0.0)
	assert.Equal(t, domain.CheckoutStepShipping, cart.CheckoutStep)
}

func TestMergeCombineAddsQuantities(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 100)

	guest := domain.CartIdentity{SessionID: "sess-1"}
	_, err := f.svc.AddItem(context.Background(), guest, AddItemInput{ProductID: "p1", Quantity: 3})
	require.NoError(t, err)
	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	merged, err := f.svc.Merge(context.Background(), "sess-1", "user-1", domain.MergeStrategyCombine)
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 5, merged.Items[0].Quantity)

	// Guest cart is deactivated and stamped.
	var guestStored *domain.Cart
	for _, c := range f.repo.carts {
		if c.SessionID == "sess-1" {
			guestStored = c
		}
	}
	require.NotNil(t, guestStored)
	assert.False(t, guestStored.IsActive)
	require.NotNil(t, guestStored.MergedAt)
	assert.Equal(t, f.now, *guestStored.MergedAt)
}

func TestMergeReplaceTakesGuestQuantity(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 100)

	guest := domain.CartIdentity{SessionID: "sess-1"}
	_, err := f.svc.AddItem(context.Background(), guest, AddItemInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 7})
	require.NoError(t, err)

	merged, err := f.svc.Merge(context.Background(), "sess-1", "user-1", domain.MergeStrategyReplace)
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 2, merged.Items[0].Quantity)
}

func TestMergeCreatesUserCartWhenMissing(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 100)

	guest := domain.CartIdentity{SessionID: "sess-1"}
	_, err := f.svc.AddItem(context.Background(), guest, AddItemInput{ProductID: "p1", Quantity: 3})
	require.NoError(t, err)

	merged, err := f.svc.Merge(context.Background(), "sess-1", "user-1", domain.MergeStrategyCombine)
	require.NoError(t, err)
	assert.Equal(t, "user-1", merged.UserID)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 3, merged.Items[0].Quantity)
}

func TestMergeUnknownStrategy(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.Merge(context.Background(), "sess-1", "user-1", domain.MergeStrategy("average"))
	assert.ErrorIs(t, err, ErrInvalidMergeStrategy)
}

func TestMergeMissingGuestCart(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.Merge(context.Background(), "sess-1", "user-1", domain.MergeStrategyCombine)
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestValidateCheckoutReadinessEmptyCart(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.GetOrCreate(context.Background(), userIdentity(), true)
	require.NoError(t, err)

	v, err := f.svc.ValidateCheckoutReadiness(context.Background(), userIdentity())
	require.NoError(t, err)
	assert.False(t, v.CanCheckout)
	assert.Contains(t, v.Errors, "Cart is empty")
}

func TestValidateCheckoutReadinessMissingOptionIsWarning(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	addr := domain.Address{FullName: "A Customer", Line1: "1 Main St", City: "NYC", State: "NY", PostalCode: "10001", Country: "US"}
	_, err = f.svc.SetShippingAddress(context.Background(), userIdentity(), addr)
	require.NoError(t, err)
	_, err = f.svc.SetBillingAddress(context.Background(), userIdentity(), addr)
	require.NoError(t, err)

	v, err := f.svc.ValidateCheckoutReadiness(context.Background(), userIdentity())
	require.NoError(t, err)
	assert.True(t, v.CanCheckout)
	assert.Empty(t, v.Errors)
	assert.Contains(t, v.Warnings, "No shipping method selected")
}

func TestValidateCheckoutReadinessBlocksUnavailableLine(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 200.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	// Product is archived after being added; the next mutation marks the line.
	f.catalog.products["p1"].Status = domain.ProductStatusArchived
	f.addProduct("p2", 30.0, 20)
	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p2", Quantity: 1})
	require.NoError(t, err)

	v, err := f.svc.ValidateCheckoutReadiness(context.Background(), userIdentity())
	require.NoError(t, err)
	assert.False(t, v.CanCheckout)
	assert.Contains(t, v.Errors, "Ring p1 is unavailable")
}

func TestCheckoutSnapshotIgnoresStaleCache(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 150.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	addr := domain.Address{FullName: "A B", Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "73301", Country: "US"}
	_, err = f.svc.SetShippingAddress(context.Background(), userIdentity(), addr)
	require.NoError(t, err)
	stored, err := f.svc.SetBillingAddress(context.Background(), userIdentity(), addr)
	require.NoError(t, err)

	// The cache still holds the cart as it looked before any of the above.
	stale := newCart(userIdentity(), f.now)
	stale.ID = stored.ID
	f.svc.cache = &pinnedCache{cart: stale}

	cart, verdict, err := f.svc.CheckoutSnapshot(context.Background(), userIdentity())
	require.NoError(t, err)
	assert.True(t, verdict.CanCheckout)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, stored.Version, cart.Version)

	// The cached read keeps serving the stale document.
	v, err := f.svc.ValidateCheckoutReadiness(context.Background(), userIdentity())
	require.NoError(t, err)
	assert.Contains(t, v.Errors, "Cart is empty")
}

func TestCheckoutSnapshotMissingCart(t *testing.T) {
	f := newCartFixture(t)

	_, _, err := f.svc.CheckoutSnapshot(context.Background(), userIdentity())
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestMutationSurfacesVersionConflict(t *testing.T) {
	f := newCartFixture(t)
	f.addProduct("p1", 10.0, 20)

	_, err := f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	// Simulate a concurrent writer beating this mutation's replace.
	f.repo.replaceErr = repository.ErrVersionConflict

	_, err = f.svc.AddItem(context.Background(), userIdentity(), AddItemInput{ProductID: "p1", Quantity: 1})
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
}
