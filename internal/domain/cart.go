package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	// MaxCartLines caps the number of distinct lines a cart may hold.
	MaxCartLines = 50

	// MaxQuantityPerProduct caps the quantity of a single (product, size, variant) line.
	MaxQuantityPerProduct = 10

	// RegisteredCartTTL is how long a registered user's cart stays live without access.
	RegisteredCartTTL = 7 * 24 * time.Hour

	// GuestCartTTL is how long a guest session cart stays live without access.
	GuestCartTTL = 3 * 24 * time.Hour

	DefaultCurrency = "USD"
)

var ErrInvalidIdentity = errors.New("cart identity requires exactly one of user_id or session_id")

// CartIdentity names the owner of a cart: a registered user or a guest
// session, never both.
type CartIdentity struct {
	UserID    string
	SessionID string
}

func (id CartIdentity) Validate() error {
	if (id.UserID == "") == (id.SessionID == "") {
		return ErrInvalidIdentity
	}
	return nil
}

func (id CartIdentity) IsGuest() bool {
	return id.UserID == ""
}

// Key returns a stable cache/singleflight key for the identity.
func (id CartIdentity) Key() string {
	if id.UserID != "" {
		return "user:" + id.UserID
	}
	return "session:" + id.SessionID
}

// TTL is the inactivity window before the cart expires.
func (id CartIdentity) TTL() time.Duration {
	if id.IsGuest() {
		return GuestCartTTL
	}
	return RegisteredCartTTL
}

type CheckoutStep string

const (
	CheckoutStepCart     CheckoutStep = "CART"
	CheckoutStepShipping CheckoutStep = "SHIPPING"
	CheckoutStepPayment  CheckoutStep = "PAYMENT"
)

type MergeStrategy string

const (
	MergeStrategyCombine MergeStrategy = "combine"
	MergeStrategyReplace MergeStrategy = "replace"
)

type Cart struct {
	ID        string `bson:"_id,omitempty" json:"id"`
	UserID    string `bson:"user_id,omitempty" json:"user_id,omitempty"`
	SessionID string `bson:"session_id,omitempty" json:"session_id,omitempty"`

	// Version guards full-document replaces: a write only succeeds when the
	// stored version matches the one that was read. Kept in JSON so the cache
	// round-trips it.
	Version int64 `bson:"version" json:"version"`

	IsActive bool `bson:"is_active" json:"is_active"`

	Items     []CartLine        `bson:"items" json:"items"`
	Discounts []AppliedDiscount `bson:"discounts" json:"discounts"`
	Pricing   PricingBreakdown  `bson:"pricing" json:"pricing"`

	ShippingAddress *Address        `bson:"shipping_address,omitempty" json:"shipping_address,omitempty"`
	BillingAddress  *Address        `bson:"billing_address,omitempty" json:"billing_address,omitempty"`
	ShippingOption  *ShippingOption `bson:"shipping_option,omitempty" json:"shipping_option,omitempty"`

	CheckoutStep CheckoutStep `bson:"checkout_step" json:"checkout_step"`

	IsValid          bool     `bson:"is_valid" json:"is_valid"`
	ValidationErrors []string `bson:"validation_errors" json:"validation_errors"`

	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
	LastAccessedAt time.Time  `bson:"last_accessed_at" json:"last_accessed_at"`
	ExpiresAt      time.Time  `bson:"expires_at" json:"expires_at"`
	ExpiredAt      *time.Time `bson:"expired_at,omitempty" json:"expired_at,omitempty"`
	MergedAt       *time.Time `bson:"merged_at,omitempty" json:"merged_at,omitempty"`
}

// CartLine is one purchasable (product, size, variant) combination. The
// Product* fields are a display snapshot taken at add time; price and
// availability are re-fetched from the catalog on every recalculation.
type CartLine struct {
	ID string `bson:"line_id" json:"id"`

	ProductID string `bson:"product_id" json:"product_id"`
	Size      string `bson:"size,omitempty" json:"size,omitempty"`
	VariantID string `bson:"variant_id,omitempty" json:"variant_id,omitempty"`

	ProductName    string  `bson:"product_name" json:"product_name"`
	ProductSlug    string  `bson:"product_slug" json:"product_slug"`
	VendorID       string  `bson:"vendor_id" json:"vendor_id"`
	VendorName     string  `bson:"vendor_name" json:"vendor_name"`
	SKU            string  `bson:"sku" json:"sku"`
	ImageURL       string  `bson:"image_url,omitempty" json:"image_url,omitempty"`
	UnitPrice      float64 `bson:"unit_price" json:"unit_price"`
	CompareAtPrice float64 `bson:"compare_at_price,omitempty" json:"compare_at_price,omitempty"`

	Quantity  int     `bson:"quantity" json:"quantity"`
	LineTotal float64 `bson:"line_total" json:"line_total"`

	IsAvailable         bool   `bson:"is_available" json:"is_available"`
	AvailabilityMessage string `bson:"availability_message,omitempty" json:"availability_message,omitempty"`
	StockQuantity       int    `bson:"stock_quantity" json:"stock_quantity"`

	Personalization string `bson:"personalization,omitempty" json:"personalization,omitempty"`
	GiftMessage     string `bson:"gift_message,omitempty" json:"gift_message,omitempty"`

	AddedAt time.Time `bson:"added_at" json:"added_at"`
}

// Matches reports whether the line is the same purchasable combination.
func (l *CartLine) Matches(productID, size, variantID string) bool {
	return l.ProductID == productID && l.Size == size && l.VariantID == variantID
}

// AppliedDiscount snapshots enough of a discount rule to recompute its
// contribution without a second lookup. Immutable once attached.
type AppliedDiscount struct {
	Code            string       `bson:"code" json:"code"`
	Type            DiscountType `bson:"type" json:"type"`
	Value           float64      `bson:"value" json:"value"`
	MinimumOrder    float64      `bson:"minimum_order,omitempty" json:"minimum_order,omitempty"`
	MaximumDiscount float64      `bson:"maximum_discount,omitempty" json:"maximum_discount,omitempty"`
	AppliedAt       time.Time    `bson:"applied_at" json:"applied_at"`
}

type PricingBreakdown struct {
	Subtotal         float64 `bson:"subtotal" json:"subtotal"`
	ItemDiscount     float64 `bson:"item_discount" json:"item_discount"`
	ShippingCost     float64 `bson:"shipping_cost" json:"shipping_cost"`
	ShippingDiscount float64 `bson:"shipping_discount" json:"shipping_discount"`
	TaxAmount        float64 `bson:"tax_amount" json:"tax_amount"`
	TotalDiscount    float64 `bson:"total_discount" json:"total_discount"`
	TotalAmount      float64 `bson:"total_amount" json:"total_amount"`
	Currency         string  `bson:"currency" json:"currency"`
}

// ZeroPricing is the breakdown of an empty cart.
func ZeroPricing() PricingBreakdown {
	return PricingBreakdown{Currency: DefaultCurrency}
}

type Address struct {
	FullName   string `bson:"full_name" json:"full_name"`
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state,omitempty" json:"state,omitempty"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
}

type ShippingOption struct {
	ID           string  `bson:"id" json:"id"`
	Name         string  `bson:"name" json:"name"`
	Cost         float64 `bson:"cost" json:"cost"`
	EstimateDays int     `bson:"estimate_days,omitempty" json:"estimate_days,omitempty"`
}

// FindLine returns the line matching (productID, size, variantID), or nil.
func (c *Cart) FindLine(productID, size, variantID string) *CartLine {
	for i := range c.Items {
		if c.Items[i].Matches(productID, size, variantID) {
			return &c.Items[i]
		}
	}
	return nil
}

// FindLineByID returns the line with the given line id, or nil.
func (c *Cart) FindLineByID(lineID string) *CartLine {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			return &c.Items[i]
		}
	}
	return nil
}

// RemoveLineByID removes the line with the given id and reports whether it
// was present.
func (c *Cart) RemoveLineByID(lineID string) bool {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// FindDiscount returns the applied discount with the given code
// (case-insensitive), or nil.
func (c *Cart) FindDiscount(code string) *AppliedDiscount {
	for i := range c.Discounts {
		if strings.EqualFold(c.Discounts[i].Code, code) {
			return &c.Discounts[i]
		}
	}
	return nil
}

func (c *Cart) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

func (c *Cart) Identity() CartIdentity {
	return CartIdentity{UserID: c.UserID, SessionID: c.SessionID}
}

// Clone returns a deep copy of the cart. The read path hands every caller
// its own copy, so one request's writes never reach another's.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}

	out := *c
	if c.Items != nil {
		out.Items = make([]CartLine, len(c.Items))
		copy(out.Items, c.Items)
	}
	if c.Discounts != nil {
		out.Discounts = make([]AppliedDiscount, len(c.Discounts))
		copy(out.Discounts, c.Discounts)
	}
	if c.ValidationErrors != nil {
		out.ValidationErrors = make([]string, len(c.ValidationErrors))
		copy(out.ValidationErrors, c.ValidationErrors)
	}
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		out.ShippingAddress = &addr
	}
	if c.BillingAddress != nil {
		addr := *c.BillingAddress
		out.BillingAddress = &addr
	}
	if c.ShippingOption != nil {
		opt := *c.ShippingOption
		out.ShippingOption = &opt
	}
	if c.ExpiredAt != nil {
		at := *c.ExpiredAt
		out.ExpiredAt = &at
	}
	if c.MergedAt != nil {
		at := *c.MergedAt
		out.MergedAt = &at
	}
	return &out
}
