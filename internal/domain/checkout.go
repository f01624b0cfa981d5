package domain

// CheckoutValidation is the aggregate checkout-readiness verdict. Errors
// block checkout; warnings do not.
type CheckoutValidation struct {
	IsValid     bool     `json:"is_valid"`
	CanCheckout bool     `json:"can_checkout"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
}

// CustomerInfo is the customer data captured at order assembly.
type CustomerInfo struct {
	CustomerID string `json:"customer_id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}
