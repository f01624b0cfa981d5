package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gemcart/gemcart/internal/cache"
	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/pricing"
	"github.com/gemcart/gemcart/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// CartService owns the cart document lifecycle. Every mutation re-runs the
// pricing engine before persisting, so a stored cart is always a priced cart.
type CartService struct {
	repo      repository.CartRepository
	catalog   repository.ProductCatalog
	vendors   repository.VendorLookup
	discounts repository.DiscountLookup
	cache     cache.CartCache
	engine    *pricing.Engine
	sfg       singleflight.Group // Prevents cache stampede
	now       func() time.Time
}

func NewCartService(
	repo repository.CartRepository,
	catalog repository.ProductCatalog,
	vendors repository.VendorLookup,
	discounts repository.DiscountLookup,
	cartCache cache.CartCache,
	engine *pricing.Engine,
) *CartService {
	return &CartService{
		repo:      repo,
		catalog:   catalog,
		vendors:   vendors,
		discounts: discounts,
		cache:     cartCache,
		engine:    engine,
		now:       time.Now,
	}
}

type AddItemInput struct {
	ProductID       string
	Quantity        int
	Size            string
	VariantID       string
	Personalization string
	GiftMessage     string
}

// GetOrCreate returns the caller's active cart. An expired cart is
// deactivated in place; a fresh one is created when requested. Reads refresh
// last_accessed without bumping the document version.
func (s *CartService) GetOrCreate(ctx context.Context, identity domain.CartIdentity, createIfMissing bool) (*domain.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.getCached(ctx, identity)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	now := s.now()
	if cart != nil {
		if !cart.IsExpired(now) {
			cart.LastAccessedAt = now
			if errTouch := s.repo.TouchLastAccessed(ctx, cart.ID, now); errTouch != nil {
				log.Printf("failed to refresh last_accessed for cart %s: %v", cart.ID, errTouch)
			}
			return cart, nil
		}

		if errDeact := s.repo.Deactivate(ctx, cart.ID, now); errDeact != nil && !errors.Is(errDeact, repository.ErrCartNotFound) {
			return nil, errDeact
		}
		s.invalidate(identity)
	}

	if !createIfMissing {
		return nil, repository.ErrCartNotFound
	}

	fresh := newCart(identity, now)
	if err := s.repo.Insert(ctx, fresh); err != nil {
		return nil, err
	}
	s.invalidate(identity)
	return fresh, nil
}

// AddItem appends a line or increments an existing (product, size, variant)
// line. All limit and availability checks happen before any mutation, so a
// rejected add leaves the cart untouched.
func (s *CartService) AddItem(ctx context.Context, identity domain.CartIdentity, input AddItemInput) (*domain.Cart, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.loadForMutation(ctx, identity, true)
	if err != nil {
		return nil, err
	}

	existing := cart.FindLine(input.ProductID, input.Size, input.VariantID)
	if existing == nil && len(cart.Items) >= domain.MaxCartLines {
		return nil, ErrCartFull
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	if product.Status != domain.ProductStatusActive {
		return nil, ErrProductUnavailable
	}

	available := product.AvailableQuantity(input.Size, input.VariantID)
	if available == 0 {
		return nil, ErrOutOfStock
	}

	requested := input.Quantity
	if existing != nil {
		requested += existing.Quantity
	}
	if requested > available {
		return nil, ErrInsufficientStock
	}
	if requested > domain.MaxQuantityPerProduct {
		return nil, ErrQuantityLimit
	}

	now := s.now()
	if existing != nil {
		existing.Quantity = requested
		existing.LineTotal = pricing.Round2(existing.UnitPrice * float64(existing.Quantity))
	} else {
		vendorName := ""
		if vendor, errVendor := s.vendors.GetVendor(ctx, product.VendorID); errVendor == nil {
			vendorName = vendor.Name
		} else if !errors.Is(errVendor, repository.ErrVendorNotFound) {
			log.Printf("vendor lookup failed for %s: %v", product.VendorID, errVendor)
		}

		unitPrice := product.UnitPrice(input.VariantID)
		cart.Items = append(cart.Items, domain.CartLine{
			ID:              uuid.NewString(),
			ProductID:       product.ID,
			Size:            input.Size,
			VariantID:       input.VariantID,
			ProductName:     product.Name,
			ProductSlug:     product.Slug,
			VendorID:        product.VendorID,
			VendorName:      vendorName,
			SKU:             product.SKU,
			ImageURL:        product.ImageURL,
			UnitPrice:       unitPrice,
			CompareAtPrice:  product.CompareAtPrice,
			Quantity:        input.Quantity,
			LineTotal:       pricing.Round2(unitPrice * float64(input.Quantity)),
			IsAvailable:     true,
			StockQuantity:   available,
			Personalization: input.Personalization,
			GiftMessage:     input.GiftMessage,
			AddedAt:         now,
		})
	}

	return s.recalcAndSave(ctx, cart)
}

// UpdateQuantity sets a line's quantity; zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, identity domain.CartIdentity, lineID string, quantity int) (*domain.Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}

	line := cart.FindLineByID(lineID)
	if line == nil {
		return nil, ErrLineNotFound
	}

	if quantity == 0 {
		cart.RemoveLineByID(lineID)
		return s.recalcAndSave(ctx, cart)
	}

	if quantity > domain.MaxQuantityPerProduct {
		return nil, ErrQuantityLimit
	}

	product, err := s.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductUnavailable
		}
		return nil, err
	}
	if quantity > product.AvailableQuantity(line.Size, line.VariantID) {
		return nil, ErrInsufficientStock
	}

	line.Quantity = quantity
	return s.recalcAndSave(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, identity domain.CartIdentity, lineID string) (*domain.Cart, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}
	if !cart.RemoveLineByID(lineID) {
		return nil, ErrLineNotFound
	}
	return s.recalcAndSave(ctx, cart)
}

// ClearCart resets items, discounts, and pricing. The cart document stays
// active.
func (s *CartService) ClearCart(ctx context.Context, identity domain.CartIdentity) (*domain.Cart, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}

	cart.Items = []domain.CartLine{}
	cart.Discounts = []domain.AppliedDiscount{}
	cart.Pricing = domain.ZeroPricing()
	cart.ValidationErrors = nil
	cart.IsValid = true
	cart.CheckoutStep = domain.CheckoutStepCart

	return s.save(ctx, cart)
}

// ApplyDiscount attaches a discount snapshot after checking the code exists,
// is live, and the cart clears its minimum. Re-applying an attached code is
// rejected without mutation.
func (s *CartService) ApplyDiscount(ctx context.Context, identity domain.CartIdentity, code string) (*domain.Cart, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}

	if cart.FindDiscount(code) != nil {
		return nil, ErrDiscountAlreadyApplied
	}

	now := s.now()
	rule, err := s.discounts.LookupActiveDiscount(ctx, code, now)
	if err != nil {
		if errors.Is(err, repository.ErrDiscountNotFound) {
			return nil, ErrInvalidDiscount
		}
		return nil, err
	}

	if rule.MinimumOrder > 0 && cart.Pricing.Subtotal < rule.MinimumOrder {
		return nil, fmt.Errorf("%w: minimum order %.2f", ErrMinimumOrderNotMet, rule.MinimumOrder)
	}

	cart.Discounts = append(cart.Discounts, rule.Snapshot(now))
	return s.recalcAndSave(ctx, cart)
}

// RemoveDiscount detaches a code. Removing a code that was never applied is
// a no-op: the cart is returned unchanged with no error.
func (s *CartService) RemoveDiscount(ctx context.Context, identity domain.CartIdentity, code string) (*domain.Cart, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}

	if cart.FindDiscount(code) == nil {
		return cart, nil
	}

	kept := cart.Discounts[:0]
	for i := range cart.Discounts {
		if !equalCode(cart.Discounts[i].Code, code) {
			kept = append(kept, cart.Discounts[i])
		}
	}
	cart.Discounts = kept

	return s.recalcAndSave(ctx, cart)
}

func (s *CartService) SetShippingAddress(ctx context.Context, identity domain.CartIdentity, address domain.Address) (*domain.Cart, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}
	cart.ShippingAddress = &address
	if cart.CheckoutStep == domain.CheckoutStepCart {
		cart.CheckoutStep = domain.CheckoutStepShipping
	}
	return s.recalcAndSave(ctx, cart)
}

func (s *CartService) SetBillingAddress(ctx context.Context, identity domain.CartIdentity, address domain.Address) (*domain.Cart, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}
	cart.BillingAddress = &address
	return s.recalcAndSave(ctx, cart)
}

func (s *CartService) SetShippingOption(ctx context.Context, identity domain.CartIdentity, option domain.ShippingOption) (*domain.Cart, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, err
	}
	cart.ShippingOption = &option
	return s.recalcAndSave(ctx, cart)
}

// Merge folds a guest session cart into a user cart. Matching lines combine
// or replace per strategy; everything else is appended unvalidated and picked
// up by the forced recalculation. The guest cart is deactivated and stamped.
func (s *CartService) Merge(ctx context.Context, sessionID, userID string, strategy domain.MergeStrategy) (*domain.Cart, error) {
	if strategy != domain.MergeStrategyCombine && strategy != domain.MergeStrategyReplace {
		return nil, ErrInvalidMergeStrategy
	}

	guestIdentity := domain.CartIdentity{SessionID: sessionID}
	userIdentity := domain.CartIdentity{UserID: userID}

	guest, err := s.repo.GetActive(ctx, guestIdentity)
	if err != nil {
		return nil, err
	}

	userCart, err := s.loadForMutation(ctx, userIdentity, true)
	if err != nil {
		return nil, err
	}

	for i := range guest.Items {
		guestLine := guest.Items[i]
		existing := userCart.FindLine(guestLine.ProductID, guestLine.Size, guestLine.VariantID)
		if existing == nil {
			userCart.Items = append(userCart.Items, guestLine)
			continue
		}
		switch strategy {
		case domain.MergeStrategyCombine:
			existing.Quantity += guestLine.Quantity
		case domain.MergeStrategyReplace:
			existing.Quantity = guestLine.Quantity
		}
		existing.LineTotal = pricing.Round2(existing.UnitPrice * float64(existing.Quantity))
	}

	now := s.now()
	guest.IsActive = false
	guest.MergedAt = &now
	if errGuest := s.repo.Replace(ctx, guest); errGuest != nil {
		return nil, fmt.Errorf("failed to deactivate guest cart: %w", errGuest)
	}
	s.invalidate(guestIdentity)

	return s.recalcAndSave(ctx, userCart)
}

// ValidateCheckoutReadiness returns an aggregate verdict on the stored cart
// without mutating it. A missing shipping method is a warning; everything
// else in the list blocks checkout.
func (s *CartService) ValidateCheckoutReadiness(ctx context.Context, identity domain.CartIdentity) (*domain.CheckoutValidation, error) {
	cart, err := s.GetOrCreate(ctx, identity, false)
	if err != nil {
		return nil, err
	}
	return checkoutVerdict(cart), nil
}

// CheckoutSnapshot reads the cart straight from the repository and judges
// that exact document, so the verdict and the cart handed to order assembly
// cannot diverge the way a cached read and a later re-read can.
func (s *CartService) CheckoutSnapshot(ctx context.Context, identity domain.CartIdentity) (*domain.Cart, *domain.CheckoutValidation, error) {
	cart, err := s.loadForMutation(ctx, identity, false)
	if err != nil {
		return nil, nil, err
	}
	return cart, checkoutVerdict(cart), nil
}

func checkoutVerdict(cart *domain.Cart) *domain.CheckoutValidation {
	var errs, warnings []string

	if len(cart.Items) == 0 {
		errs = append(errs, "Cart is empty")
	}
	for i := range cart.Items {
		if !cart.Items[i].IsAvailable {
			errs = append(errs, fmt.Sprintf("%s is unavailable", cart.Items[i].ProductName))
		}
	}
	if cart.ShippingAddress == nil {
		errs = append(errs, "Shipping address is required")
	}
	if cart.BillingAddress == nil {
		errs = append(errs, "Billing address is required")
	}
	if len(cart.Items) > 0 && cart.Pricing.TotalAmount <= 0 {
		errs = append(errs, "Cart total must be greater than zero")
	}
	if cart.ShippingOption == nil {
		warnings = append(warnings, "No shipping method selected")
	}

	valid := len(errs) == 0
	return &domain.CheckoutValidation{
		IsValid:     valid,
		CanCheckout: valid,
		Errors:      errs,
		Warnings:    warnings,
	}
}

// getCached is the read path: cache first, then repository, with singleflight
// collapsing concurrent misses for the same identity.
func (s *CartService) getCached(ctx context.Context, identity domain.CartIdentity) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(identity.Key(), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, identity)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetActive(ctx, identity)
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), identity, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// Singleflight hands the same cart to every waiter. Each caller gets its
	// own copy so nobody mutates a value another goroutine is reading.
	return v.(*domain.Cart).Clone(), nil
}

// loadForMutation reads straight from the repository so the write sees the
// freshest version stamp.
func (s *CartService) loadForMutation(ctx context.Context, identity domain.CartIdentity, createIfMissing bool) (*domain.Cart, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	cart, err := s.repo.GetActive(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) && createIfMissing {
			fresh := newCart(identity, s.now())
			if errIns := s.repo.Insert(ctx, fresh); errIns != nil {
				return nil, errIns
			}
			return fresh, nil
		}
		return nil, err
	}

	now := s.now()
	if cart.IsExpired(now) {
		if errDeact := s.repo.Deactivate(ctx, cart.ID, now); errDeact != nil && !errors.Is(errDeact, repository.ErrCartNotFound) {
			return nil, errDeact
		}
		s.invalidate(identity)
		if !createIfMissing {
			return nil, repository.ErrCartNotFound
		}
		fresh := newCart(identity, now)
		if errIns := s.repo.Insert(ctx, fresh); errIns != nil {
			return nil, errIns
		}
		return fresh, nil
	}

	return cart, nil
}

func (s *CartService) recalcAndSave(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	if err := s.engine.Recalculate(ctx, cart, s.now()); err != nil {
		return nil, err
	}
	return s.save(ctx, cart)
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	now := s.now()
	cart.LastAccessedAt = now
	cart.ExpiresAt = now.Add(cart.Identity().TTL())

	if err := s.repo.Replace(ctx, cart); err != nil {
		return nil, err
	}
	s.invalidate(cart.Identity())
	return cart, nil
}

func (s *CartService) invalidate(identity domain.CartIdentity) {
	if err := s.cache.Delete(context.Background(), identity); err != nil {
		log.Printf("cache delete error: %v", err)
	}
}

func newCart(identity domain.CartIdentity, now time.Time) *domain.Cart {
	return &domain.Cart{
		UserID:         identity.UserID,
		SessionID:      identity.SessionID,
		IsActive:       true,
		Items:          []domain.CartLine{},
		Discounts:      []domain.AppliedDiscount{},
		Pricing:        domain.ZeroPricing(),
		CheckoutStep:   domain.CheckoutStepCart,
		IsValid:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(identity.TTL()),
	}
}

func equalCode(a, b string) bool {
	return strings.EqualFold(a, b)
}
