// Package pricing owns every monetary computation on a cart: per-line
// availability revalidation, subtotal, discount application, shipping, tax,
// and totals. The engine is pure over its inputs; it holds no state beyond
// the catalog collaborator.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/repository"
)

const (
	// FreeShippingThreshold: carts at or above this (after item discounts)
	// ship free.
	FreeShippingThreshold = 100.0

	// StandardShippingRate is the flat estimate used when no shipping option
	// has been selected, and the amount credited by free-shipping codes.
	StandardShippingRate = 15.0

	// PriceDriftTolerance is the largest catalog/cart price difference that
	// does not force a line price correction.
	PriceDriftTolerance = 0.01
)

type Engine struct {
	catalog repository.ProductCatalog
}

func NewEngine(catalog repository.ProductCatalog) *Engine {
	return &Engine{catalog: catalog}
}

// Recalculate re-prices the cart in place: revalidates every line against the
// catalog, then computes subtotal, discounts, shipping, tax, and the total.
//
// Business-data problems (missing product, stale price, insufficient stock)
// never return an error; the engine self-heals the line and reports through
// the cart's validation_errors list, which is replaced wholesale on each run.
// Only catalog-access failures propagate.
func (e *Engine) Recalculate(ctx context.Context, cart *domain.Cart, now time.Time) error {
	var validationErrors []string

	kept := cart.Items[:0]
	for i := range cart.Items {
		line := &cart.Items[i]

		product, err := e.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				validationErrors = append(validationErrors,
					fmt.Sprintf("Product no longer available: %s", line.ProductName))
				continue // drop the line
			}
			return fmt.Errorf("catalog lookup failed for product %s: %w", line.ProductID, err)
		}

		revalidateLine(line, product, &validationErrors)
		kept = append(kept, *line)
	}
	cart.Items = kept

	subtotal := 0.0
	for i := range cart.Items {
		if cart.Items[i].IsAvailable {
			subtotal += cart.Items[i].LineTotal
		}
	}
	subtotal = Round2(subtotal)

	itemDiscount := Round2(applyDiscounts(cart.Discounts, subtotal))

	shippingCost, shippingDiscount := computeShipping(cart, subtotal-itemDiscount)
	shippingCost = Round2(shippingCost)
	shippingDiscount = Round2(shippingDiscount)

	taxAmount := 0.0
	if cart.ShippingAddress != nil {
		rate := TaxRate(cart.ShippingAddress.Country, cart.ShippingAddress.State)
		taxAmount = Round2((subtotal - itemDiscount) * rate)
	}

	totalDiscount := Round2(itemDiscount + shippingDiscount)
	totalAmount := Round2(math.Max(0, subtotal-totalDiscount+shippingCost+taxAmount))

	currency := cart.Pricing.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	cart.Pricing = domain.PricingBreakdown{
		Subtotal:         subtotal,
		ItemDiscount:     itemDiscount,
		ShippingCost:     shippingCost,
		ShippingDiscount: shippingDiscount,
		TaxAmount:        taxAmount,
		TotalDiscount:    totalDiscount,
		TotalAmount:      totalAmount,
		Currency:         currency,
	}

	cart.ValidationErrors = validationErrors
	cart.IsValid = len(validationErrors) == 0
	cart.UpdatedAt = now

	return nil
}

// revalidateLine refreshes a line against the current catalog state:
// inactive products and zero stock mark the line unavailable, requested
// quantities above stock are clamped (never rejected), and price drift beyond
// the tolerance overwrites the stored unit price.
func revalidateLine(line *domain.CartLine, product *domain.Product, validationErrors *[]string) {
	line.IsAvailable = true
	line.AvailabilityMessage = ""

	if product.Status != domain.ProductStatusActive {
		line.IsAvailable = false
		line.AvailabilityMessage = "Product is no longer for sale"
	}

	available := product.AvailableQuantity(line.Size, line.VariantID)
	line.StockQuantity = available

	if available == 0 && line.IsAvailable {
		line.IsAvailable = false
		line.AvailabilityMessage = "Out of stock"
	}

	if line.IsAvailable && line.Quantity > available {
		*validationErrors = append(*validationErrors,
			fmt.Sprintf("Quantity adjusted for %s: only %d available", line.ProductName, available))
		line.Quantity = available
	}

	currentPrice := product.UnitPrice(line.VariantID)
	if math.Abs(currentPrice-line.UnitPrice) > PriceDriftTolerance {
		*validationErrors = append(*validationErrors,
			fmt.Sprintf("Price updated for %s: %.2f -> %.2f", line.ProductName, line.UnitPrice, currentPrice))
		line.UnitPrice = currentPrice
	}

	line.LineTotal = Round2(line.UnitPrice * float64(line.Quantity))
}

// applyDiscounts sums the contribution of every applied discount against the
// post-revalidation subtotal. Discounts stack additively: each caps only
// itself (maximum_discount, or the subtotal for fixed amounts), and the sum
// is bounded only by the final max(0, total) clamp. Free-shipping codes
// contribute nothing here; they are settled in the shipping step.
func applyDiscounts(discounts []domain.AppliedDiscount, subtotal float64) float64 {
	total := 0.0
	for i := range discounts {
		d := &discounts[i]
		switch d.Type {
		case domain.DiscountTypePercentage:
			contribution := subtotal * d.Value / 100
			if d.MaximumDiscount > 0 && contribution > d.MaximumDiscount {
				contribution = d.MaximumDiscount
			}
			total += contribution
		case domain.DiscountTypeFixedAmount:
			total += math.Min(d.Value, subtotal)
		case domain.DiscountTypeFreeShipping:
			// handled by computeShipping
		}
	}
	return total
}

// computeShipping resolves (shipping_cost, shipping_discount) from the
// discounted subtotal. A free-shipping code nets out to zero by crediting the
// standard rate as a discount rather than charging and refunding.
func computeShipping(cart *domain.Cart, discountedSubtotal float64) (cost, discount float64) {
	if len(cart.Items) == 0 {
		return 0, 0
	}
	if discountedSubtotal >= FreeShippingThreshold {
		return 0, 0
	}
	for i := range cart.Discounts {
		if cart.Discounts[i].Type == domain.DiscountTypeFreeShipping {
			return 0, StandardShippingRate
		}
	}
	if cart.ShippingOption != nil {
		return cart.ShippingOption.Cost, 0
	}
	return StandardShippingRate, 0
}

// Round2 rounds to 2 decimal places. Monetary fields are each rounded
// independently before totals are formed; do not reorder.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
