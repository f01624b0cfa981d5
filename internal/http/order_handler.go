package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/service"
	"github.com/go-chi/chi/v5"
)

const defaultListLimit = 50

type OrderHandler struct {
	carts  *service.CartService
	orders *service.OrderService
}

func NewOrderHandler(carts *service.CartService, orders *service.OrderService) *OrderHandler {
	return &OrderHandler{carts: carts, orders: orders}
}

type CheckoutRequestDTO struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Role   string `json:"role"`
	Notes  string `json:"notes,omitempty"`
}

type CancelRequestDTO struct {
	Actor  string `json:"actor"`
	Role   string `json:"role"`
	Reason string `json:"reason,omitempty"`
}

type TrackingRequestDTO struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url,omitempty"`
	Actor          string `json:"actor"`
	Role           string `json:"role"`
}

// OrderSummary is the list view of an order.
type OrderSummary struct {
	ID          string               `json:"id"`
	OrderNumber string               `json:"order_number"`
	Status      domain.OrderStatus   `json:"status"`
	ItemCount   int                  `json:"item_count"`
	TotalAmount float64              `json:"total_amount"`
	Currency    string               `json:"currency"`
	CreatedAt   string               `json:"created_at"`
}

func summarize(order *domain.Order) OrderSummary {
	return OrderSummary{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		ItemCount:   len(order.Items),
		TotalAmount: order.Pricing.TotalAmount,
		Currency:    order.Pricing.Currency,
		CreatedAt:   order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Checkout validates the caller's cart, assembles the order, and clears the
// cart. Clearing is this caller's job, not the assembler's.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity.UserID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "checkout requires a registered user")
		return
	}

	var req CheckoutRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	// Validate and assemble the same repository snapshot; a cached read here
	// could let a mutation slip in between verdict and assembly.
	cart, validation, err := h.carts.CheckoutSnapshot(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !validation.CanCheckout {
		respondJSON(w, http.StatusUnprocessableEntity, validation)
		return
	}

	order, err := h.orders.CreateFromCart(r.Context(), cart, domain.CustomerInfo{
		CustomerID: identity.UserID,
		Email:      req.Email,
		Name:       req.Name,
		Phone:      req.Phone,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if _, errClear := h.carts.ClearCart(r.Context(), identity); errClear != nil {
		// The order exists at this point; a leftover cart is an annoyance,
		// not a failure.
		log.Printf("failed to clear cart after checkout for user %s: %v", identity.UserID, errClear)
	}
	respondJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity.UserID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "listing orders requires a registered user")
		return
	}

	orders, err := h.orders.ListByCustomer(r.Context(), identity.UserID, defaultListLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	summaries := make([]OrderSummary, len(orders))
	for i := range orders {
		summaries[i] = summarize(&orders[i])
	}
	respondJSON(w, http.StatusOK, summaries)
}

func (h *OrderHandler) ListVendorOrders(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "vendorID")

	orders, err := h.orders.ListByVendor(r.Context(), vendorID, defaultListLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	summaries := make([]OrderSummary, len(orders))
	for i := range orders {
		summaries[i] = summarize(&orders[i])
	}
	respondJSON(w, http.StatusOK, summaries)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}

	order, err := h.orders.UpdateStatus(
		r.Context(),
		chi.URLParam(r, "orderID"),
		domain.OrderStatus(req.Status),
		req.Actor,
		domain.ActorRole(req.Role),
		req.Notes,
	)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}

	order, err := h.orders.UpdatePayment(
		r.Context(),
		chi.URLParam(r, "orderID"),
		domain.PaymentStatus(req.Status),
		req.Actor,
		domain.ActorRole(req.Role),
		req.Notes,
	)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequestDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}
	if req.Actor == "" {
		req.Actor = "customer"
		req.Role = string(domain.RoleCustomer)
	}

	order, err := h.orders.Cancel(
		r.Context(),
		chi.URLParam(r, "orderID"),
		req.Actor,
		domain.ActorRole(req.Role),
		req.Reason,
	)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) SetTracking(w http.ResponseWriter, r *http.Request) {
	var req TrackingRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackingNumber == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "tracking_number is required")
		return
	}

	order, err := h.orders.SetTracking(
		r.Context(),
		chi.URLParam(r, "orderID"),
		domain.TrackingInfo{
			Carrier:        req.Carrier,
			TrackingNumber: req.TrackingNumber,
			TrackingURL:    req.TrackingURL,
		},
		req.Actor,
		domain.ActorRole(req.Role),
	)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
