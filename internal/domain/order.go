package domain

import "time"

type Order struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	OrderNumber string `bson:"order_number" json:"order_number"`
	CustomerID  string `bson:"customer_id" json:"customer_id"`

	// Version guards full-document replaces, same discipline as Cart.
	Version int64 `bson:"version" json:"version"`

	Items []OrderItem `bson:"items" json:"items"`

	// VendorOrders maps vendor id to the ids of the order items belonging to
	// that vendor. Built once at assembly for vendor-scoped queries.
	VendorOrders map[string][]string `bson:"vendor_orders" json:"vendor_orders"`

	Pricing        PricingBreakdown `bson:"pricing" json:"pricing"`
	DiscountCode   string           `bson:"discount_code,omitempty" json:"discount_code,omitempty"`
	DiscountAmount float64          `bson:"discount_amount,omitempty" json:"discount_amount,omitempty"`

	ShippingAddress *Address `bson:"shipping_address,omitempty" json:"shipping_address,omitempty"`
	BillingAddress  *Address `bson:"billing_address,omitempty" json:"billing_address,omitempty"`

	Status            OrderStatus       `bson:"status" json:"status"`
	PaymentStatus     PaymentStatus     `bson:"payment_status" json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `bson:"fulfillment_status" json:"fulfillment_status"`

	StatusHistory []StatusHistoryEntry `bson:"status_history" json:"status_history"`

	Tracking *TrackingInfo `bson:"tracking,omitempty" json:"tracking,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// OrderItem is a deep-frozen copy of a cart line. Prices are locked at
// assembly and never re-fetched from the catalog.
type OrderItem struct {
	ID        string `bson:"item_id" json:"id"`
	ProductID string `bson:"product_id" json:"product_id"`
	Size      string `bson:"size,omitempty" json:"size,omitempty"`
	VariantID string `bson:"variant_id,omitempty" json:"variant_id,omitempty"`

	ProductName string `bson:"product_name" json:"product_name"`
	ProductSlug string `bson:"product_slug,omitempty" json:"product_slug,omitempty"`
	SKU         string `bson:"sku" json:"sku"`
	VendorID    string `bson:"vendor_id" json:"vendor_id"`
	VendorName  string `bson:"vendor_name" json:"vendor_name"`
	ImageURL    string `bson:"image_url,omitempty" json:"image_url,omitempty"`

	Quantity   int     `bson:"quantity" json:"quantity"`
	UnitPrice  float64 `bson:"unit_price" json:"unit_price"`
	FinalPrice float64 `bson:"final_price" json:"final_price"`
	LineTotal  float64 `bson:"line_total" json:"line_total"`

	Personalization string `bson:"personalization,omitempty" json:"personalization,omitempty"`
	GiftMessage     string `bson:"gift_message,omitempty" json:"gift_message,omitempty"`

	// FulfillmentStatus here is the per-item, vendor-facing state. It is
	// intentionally independent of the order-level field, which is the
	// customer-facing aggregate.
	FulfillmentStatus FulfillmentStatus `bson:"fulfillment_status" json:"fulfillment_status"`

	EstimatedDelivery time.Time `bson:"estimated_delivery" json:"estimated_delivery"`
}

type ActorRole string

const (
	RoleCustomer ActorRole = "customer"
	RoleVendor   ActorRole = "vendor"
	RoleAdmin    ActorRole = "admin"
	RoleSystem   ActorRole = "system"
)

// StatusHistoryEntry records one status-affecting write. The history list is
// append-only and ordered by time.
type StatusHistoryEntry struct {
	Status    string    `bson:"status" json:"status"`
	Actor     string    `bson:"actor" json:"actor"`
	Role      ActorRole `bson:"role" json:"role"`
	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type TrackingInfo struct {
	Carrier        string `bson:"carrier" json:"carrier"`
	TrackingNumber string `bson:"tracking_number" json:"tracking_number"`
	TrackingURL    string `bson:"tracking_url,omitempty" json:"tracking_url,omitempty"`
}

// ItemIDsForVendor returns the order-item ids belonging to the vendor.
func (o *Order) ItemIDsForVendor(vendorID string) []string {
	return o.VendorOrders[vendorID]
}
