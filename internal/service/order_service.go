package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/repository"
	"github.com/google/uuid"
)

const defaultLeadTimeDays = 5

// OrderService assembles immutable orders from priced carts and moves them
// through the status, payment, and fulfillment state machines.
type OrderService struct {
	orders    repository.OrderRepository
	catalog   repository.ProductCatalog
	vendors   repository.VendorLookup
	inventory repository.InventoryStore
	outbox    repository.OutboxRepository
	now       func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	catalog repository.ProductCatalog,
	vendors repository.VendorLookup,
	inventory repository.InventoryStore,
	outbox repository.OutboxRepository,
) *OrderService {
	return &OrderService{
		orders:    orders,
		catalog:   catalog,
		vendors:   vendors,
		inventory: inventory,
		outbox:    outbox,
		now:       time.Now,
	}
}

// CreateFromCart snapshots a priced, validated cart into an order. The caller
// is responsible for running checkout validation first; this only assembles.
//
// Prices are locked from the cart lines — the customer pays what the cart
// showed at submission. Product and vendor are fetched once more only for
// authoritative display fields (name, sku, vendor name), which may have
// drifted since the line was added.
func (s *OrderService) CreateFromCart(ctx context.Context, cart *domain.Cart, customer domain.CustomerInfo) (*domain.Order, error) {
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now()
	items := make([]domain.OrderItem, 0, len(cart.Items))
	vendorOrders := make(map[string][]string)

	for i := range cart.Items {
		line := &cart.Items[i]

		name, slug, sku := line.ProductName, line.ProductSlug, line.SKU
		vendorID, vendorName := line.VendorID, line.VendorName
		leadDays := defaultLeadTimeDays

		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			// The cart was validated moments ago; fall back to the line's
			// snapshot rather than failing the whole order.
			log.Printf("product lookup failed during order assembly for %s: %v", line.ProductID, err)
		} else {
			name, slug, sku = product.Name, product.Slug, product.SKU
			vendorID = product.VendorID
			if product.LeadTimeDays > 0 {
				leadDays = product.LeadTimeDays
			}
		}

		if vendor, errVendor := s.vendors.GetVendor(ctx, vendorID); errVendor == nil {
			vendorName = vendor.Name
		} else if !errors.Is(errVendor, repository.ErrVendorNotFound) {
			log.Printf("vendor lookup failed during order assembly for %s: %v", vendorID, errVendor)
		}

		item := domain.OrderItem{
			ID:                uuid.NewString(),
			ProductID:         line.ProductID,
			Size:              line.Size,
			VariantID:         line.VariantID,
			ProductName:       name,
			ProductSlug:       slug,
			SKU:               sku,
			VendorID:          vendorID,
			VendorName:        vendorName,
			ImageURL:          line.ImageURL,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
			FinalPrice:        line.UnitPrice,
			LineTotal:         line.LineTotal,
			Personalization:   line.Personalization,
			GiftMessage:       line.GiftMessage,
			FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
			EstimatedDelivery: now.AddDate(0, 0, leadDays),
		}
		items = append(items, item)
		vendorOrders[vendorID] = append(vendorOrders[vendorID], item.ID)
	}

	order := &domain.Order{
		OrderNumber:       generateOrderNumber(now),
		CustomerID:        customer.CustomerID,
		Items:             items,
		VendorOrders:      vendorOrders,
		Pricing:           cart.Pricing,
		ShippingAddress:   cart.ShippingAddress,
		BillingAddress:    cart.BillingAddress,
		Status:            domain.OrderStatusPendingPayment,
		PaymentStatus:     domain.PaymentStatusPending,
		FulfillmentStatus: domain.FulfillmentStatusUnfulfilled,
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:    string(domain.OrderStatusPendingPayment),
			Actor:     "system",
			Role:      domain.RoleSystem,
			Notes:     "Order created",
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(cart.Discounts) > 0 {
		order.DiscountCode = cart.Discounts[0].Code
		order.DiscountAmount = cart.Pricing.TotalDiscount
	}

	// Reservation failures must never fail order creation.
	for i := range items {
		if err := s.inventory.Reserve(ctx, items[i].ProductID, items[i].Quantity); err != nil {
			log.Printf("failed to reserve inventory for product %s: %v", items[i].ProductID, err)
		}
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, order, "order.created")
	return order, nil
}

// UpdateStatus moves the customer-facing status through the transition table.
// Illegal moves are rejected with no mutation.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus, actor string, role domain.ActorRole, notes string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, next)
	}

	s.applyStatus(order, next, actor, role, notes)
	if err := s.orders.Replace(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, order, "order.status_changed")
	return order, nil
}

// UpdatePayment moves the payment status. Completing payment auto-advances a
// PENDING_PAYMENT order to CONFIRMED.
func (s *OrderService) UpdatePayment(ctx context.Context, orderID string, next domain.PaymentStatus, actor string, role domain.ActorRole, notes string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.PaymentStatus.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: payment %s -> %s", ErrIllegalTransition, order.PaymentStatus, next)
	}

	now := s.now()
	order.PaymentStatus = next
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:    string(next),
		Actor:     actor,
		Role:      role,
		Notes:     notes,
		Timestamp: now,
	})

	if next == domain.PaymentStatusCompleted && order.Status == domain.OrderStatusPendingPayment {
		s.applyStatus(order, domain.OrderStatusConfirmed, "system", domain.RoleSystem, "Payment completed")
	}

	if err := s.orders.Replace(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, order, "order.payment_changed")
	return order, nil
}

// UpdateFulfillment moves the order-level fulfillment aggregate. Per-item
// fulfillment is tracked separately on the items and does not roll up.
func (s *OrderService) UpdateFulfillment(ctx context.Context, orderID string, next domain.FulfillmentStatus, actor string, role domain.ActorRole, notes string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.FulfillmentStatus.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: fulfillment %s -> %s", ErrIllegalTransition, order.FulfillmentStatus, next)
	}

	order.FulfillmentStatus = next
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:    string(next),
		Actor:     actor,
		Role:      role,
		Notes:     notes,
		Timestamp: s.now(),
	})

	if err := s.orders.Replace(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel refuses orders that are already DELIVERED, CANCELLED, or REFUNDED,
// and releases the reserved inventory best-effort otherwise.
func (s *OrderService) Cancel(ctx context.Context, orderID, actor string, role domain.ActorRole, reason string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusDelivered, domain.OrderStatusCancelled, domain.OrderStatusRefunded:
		return nil, fmt.Errorf("%w: status is %s", ErrOrderNotCancellable, order.Status)
	}

	s.applyStatus(order, domain.OrderStatusCancelled, actor, role, reason)
	if err := s.orders.Replace(ctx, order); err != nil {
		return nil, err
	}

	for i := range order.Items {
		if errRelease := s.inventory.Release(ctx, order.Items[i].ProductID, order.Items[i].Quantity); errRelease != nil {
			log.Printf("failed to release inventory for product %s: %v", order.Items[i].ProductID, errRelease)
		}
	}

	s.publish(ctx, order, "order.cancelled")
	return order, nil
}

// SetTracking attaches carrier tracking info. The status itself is moved
// separately through UpdateStatus.
func (s *OrderService) SetTracking(ctx context.Context, orderID string, tracking domain.TrackingInfo, actor string, role domain.ActorRole) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.Tracking = &tracking
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:    string(order.Status),
		Actor:     actor,
		Role:      role,
		Notes:     fmt.Sprintf("Tracking updated: %s %s", tracking.Carrier, tracking.TrackingNumber),
		Timestamp: s.now(),
	})

	if err := s.orders.Replace(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *OrderService) ListByCustomer(ctx context.Context, customerID string, limit int64) ([]domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID, limit)
}

func (s *OrderService) ListByVendor(ctx context.Context, vendorID string, limit int64) ([]domain.Order, error) {
	return s.orders.ListByVendor(ctx, vendorID, limit)
}

func (s *OrderService) applyStatus(order *domain.Order, next domain.OrderStatus, actor string, role domain.ActorRole, notes string) {
	order.Status = next
	order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
		Status:    string(next),
		Actor:     actor,
		Role:      role,
		Notes:     notes,
		Timestamp: s.now(),
	})
}

// publish enqueues an outbox event. Best-effort: an enqueue failure is logged
// and never fails the primary write.
func (s *OrderService) publish(ctx context.Context, order *domain.Order, eventType string) {
	payload, err := json.Marshal(map[string]interface{}{
		"order_id":       order.ID,
		"order_number":   order.OrderNumber,
		"customer_id":    order.CustomerID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"total_amount":   order.Pricing.TotalAmount,
		"currency":       order.Pricing.Currency,
		"occurred_at":    s.now(),
	})
	if err != nil {
		log.Printf("failed to marshal %s event: %v", eventType, err)
		return
	}

	event := &repository.OutboxEvent{
		AggregateID: order.ID,
		EventType:   eventType,
		Payload:     payload,
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		log.Printf("failed to enqueue %s event for order %s: %v", eventType, order.ID, err)
	}
}

// generateOrderNumber builds a human-readable, date-stamped number. The
// random suffix makes collisions unlikely; the unique index on order_number
// is the real guard.
func generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", now.Format("20060102"), rand.Intn(1000000))
}
