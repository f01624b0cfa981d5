package domain

// UnlimitedStock is the availability sentinel for products that do not track
// inventory.
const UnlimitedStock = 999999

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusArchived ProductStatus = "archived"
)

// Product is the catalog view consumed by pricing and order assembly.
type Product struct {
	ID             string          `bson:"_id,omitempty" json:"id"`
	Name           string          `bson:"name" json:"name"`
	Slug           string          `bson:"slug" json:"slug"`
	VendorID       string          `bson:"vendor_id" json:"vendor_id"`
	SKU            string          `bson:"sku" json:"sku"`
	ImageURL       string          `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Price          float64         `bson:"price" json:"price"`
	CompareAtPrice float64         `bson:"compare_at_price,omitempty" json:"compare_at_price,omitempty"`
	Status         ProductStatus   `bson:"status" json:"status"`
	TrackInventory bool            `bson:"track_inventory" json:"track_inventory"`
	StockQuantity  int             `bson:"stock_quantity" json:"stock_quantity"`
	ReservedQty    int             `bson:"reserved_quantity" json:"reserved_quantity"`
	Sizes          []SizeStock     `bson:"sizes,omitempty" json:"sizes,omitempty"`
	Variants       []ProductVariant `bson:"variants,omitempty" json:"variants,omitempty"`
	LeadTimeDays   int             `bson:"lead_time_days,omitempty" json:"lead_time_days,omitempty"`
}

type SizeStock struct {
	Size          string `bson:"size" json:"size"`
	StockQuantity int    `bson:"stock_quantity" json:"stock_quantity"`
}

type ProductVariant struct {
	ID            string  `bson:"id" json:"id"`
	SKU           string  `bson:"sku,omitempty" json:"sku,omitempty"`
	Price         float64 `bson:"price,omitempty" json:"price,omitempty"`
	StockQuantity int     `bson:"stock_quantity" json:"stock_quantity"`
}

// AvailableQuantity resolves how many units of the (size, variant)
// combination can currently be sold. Unlimited when inventory tracking is
// disabled; narrows to the variant's then the size's stock when those are
// specified.
func (p *Product) AvailableQuantity(size, variantID string) int {
	if !p.TrackInventory {
		return UnlimitedStock
	}
	if variantID != "" {
		for i := range p.Variants {
			if p.Variants[i].ID == variantID {
				return max(0, p.Variants[i].StockQuantity)
			}
		}
		return 0
	}
	if size != "" {
		for i := range p.Sizes {
			if p.Sizes[i].Size == size {
				return max(0, p.Sizes[i].StockQuantity)
			}
		}
		return 0
	}
	return max(0, p.StockQuantity)
}

// UnitPrice resolves the sell price for a variant, falling back to the
// product price when the variant has none.
func (p *Product) UnitPrice(variantID string) float64 {
	if variantID != "" {
		for i := range p.Variants {
			if p.Variants[i].ID == variantID && p.Variants[i].Price > 0 {
				return p.Variants[i].Price
			}
		}
	}
	return p.Price
}

// VendorSummary is the denormalized vendor view captured on order items.
type VendorSummary struct {
	ID   string `bson:"_id,omitempty" json:"id"`
	Name string `bson:"name" json:"name"`
	Slug string `bson:"slug,omitempty" json:"slug,omitempty"`
}
