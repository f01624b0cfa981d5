package service

import "errors"

// Business-rule violations. Callers surface these as 4xx responses;
// everything else that escapes the service layer is infrastructure.
var (
	ErrCartFull               = errors.New("cart line limit reached")
	ErrInvalidQuantity        = errors.New("quantity must be greater than zero")
	ErrProductUnavailable     = errors.New("product is not available for purchase")
	ErrOutOfStock             = errors.New("product is out of stock")
	ErrInsufficientStock      = errors.New("requested quantity exceeds available stock")
	ErrQuantityLimit          = errors.New("quantity exceeds the per-product limit")
	ErrLineNotFound           = errors.New("cart line not found")
	ErrDiscountAlreadyApplied = errors.New("discount code is already applied")
	ErrInvalidDiscount        = errors.New("discount code is invalid or expired")
	ErrMinimumOrderNotMet     = errors.New("cart subtotal is below the discount minimum")
	ErrInvalidMergeStrategy   = errors.New("unknown merge strategy")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrIllegalTransition      = errors.New("illegal status transition")
	ErrOrderNotCancellable    = errors.New("order can no longer be cancelled")
)
