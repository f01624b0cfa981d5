package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gemcart/gemcart/internal/domain"
	"github.com/gemcart/gemcart/internal/repository"
	"github.com/gemcart/gemcart/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}

// handleServiceError translates the service layer's sentinels into status
// codes. Business-rule violations are 4xx; everything unrecognized is an
// infrastructure failure and becomes a 500.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentity):
		respondError(w, http.StatusBadRequest, "invalid_identity", err.Error())
	case errors.Is(err, repository.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "cart_not_found", "cart not found")
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, service.ErrLineNotFound):
		respondError(w, http.StatusNotFound, "line_not_found", "cart line not found")
	case errors.Is(err, service.ErrProductUnavailable):
		respondError(w, http.StatusUnprocessableEntity, "product_unavailable", err.Error())
	case errors.Is(err, service.ErrOutOfStock),
		errors.Is(err, service.ErrInsufficientStock):
		respondError(w, http.StatusConflict, "insufficient_stock", err.Error())
	case errors.Is(err, service.ErrCartFull),
		errors.Is(err, service.ErrQuantityLimit),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidMergeStrategy),
		errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrDiscountAlreadyApplied),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrMinimumOrderNotMet):
		respondError(w, http.StatusUnprocessableEntity, "invalid_discount", err.Error())
	case errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrOrderNotCancellable):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, repository.ErrVersionConflict):
		respondError(w, http.StatusConflict, "conflict", "cart was modified concurrently, retry")
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
