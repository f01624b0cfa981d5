package http

import (
	"encoding/json"
	"net/http"

	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type AddItemRequestDTO struct {
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	Size            string `json:"size,omitempty"`
	VariantID       string `json:"variant_id,omitempty"`
	Personalization string `json:"personalization,omitempty"`
	GiftMessage     string `json:"gift_message,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ApplyDiscountRequestDTO struct {
	Code string `json:"code"`
}

type MergeRequestDTO struct {
	SessionID string `json:"session_id"`
	Strategy  string `json:"strategy"`
}

type SetAddressRequestDTO struct {
	Shipping *domain.Address `json:"shipping,omitempty"`
	Billing  *domain.Address `json:"billing,omitempty"`
}

// CartResponse is the cart plus a compact summary for list badges.
type CartResponse struct {
	Cart    *domain.Cart `json:"cart"`
	Summary CartSummary  `json:"summary"`
}

type CartSummary struct {
	ItemCount     int     `json:"item_count"`
	TotalQuantity int     `json:"total_quantity"`
	TotalAmount   float64 `json:"total_amount"`
	Currency      string  `json:"currency"`
}

func cartResponse(cart *domain.Cart) CartResponse {
	summary := CartSummary{
		ItemCount:   len(cart.Items),
		TotalAmount: cart.Pricing.TotalAmount,
		Currency:    cart.Pricing.Currency,
	}
	for i := range cart.Items {
		summary.TotalQuantity += cart.Items[i].Quantity
	}
	return CartResponse{Cart: cart, Summary: summary}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	cart, err := h.carts.GetOrCreate(r.Context(), identity, true)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be greater than 0")
		return
	}

	cart, err := h.carts.AddItem(r.Context(), identity, service.AddItemInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Size:            req.Size,
		VariantID:       req.VariantID,
		Personalization: req.Personalization,
		GiftMessage:     req.GiftMessage,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	lineID := chi.URLParam(r, "lineID")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), identity, lineID, req.Quantity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	lineID := chi.URLParam(r, "lineID")

	cart, err := h.carts.RemoveItem(r.Context(), identity, lineID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	cart, err := h.carts.ClearCart(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	var req ApplyDiscountRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "discount code is required")
		return
	}

	cart, err := h.carts.ApplyDiscount(r.Context(), identity, req.Code)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	code := chi.URLParam(r, "code")

	cart, err := h.carts.RemoveDiscount(r.Context(), identity, code)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) SetAddresses(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	var req SetAddressRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Shipping == nil && req.Billing == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "at least one address is required")
		return
	}

	var cart *domain.Cart
	var err error
	if req.Shipping != nil {
		cart, err = h.carts.SetShippingAddress(r.Context(), identity, *req.Shipping)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}
	if req.Billing != nil {
		cart, err = h.carts.SetBillingAddress(r.Context(), identity, *req.Billing)
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) SetShippingOption(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	var option domain.ShippingOption
	if err := json.NewDecoder(r.Body).Decode(&option); err != nil || option.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "shipping option is required")
		return
	}

	cart, err := h.carts.SetShippingOption(r.Context(), identity, option)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())
	if identity.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_identity", "merge requires a registered user")
		return
	}

	var req MergeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	cart, err := h.carts.Merge(r.Context(), req.SessionID, identity.UserID, domain.MergeStrategy(req.Strategy))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) ValidateCheckout(w http.ResponseWriter, r *http.Request) {
	identity := identityFromContext(r.Context())

	validation, err := h.carts.ValidateCheckoutReadiness(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, validation)
}
