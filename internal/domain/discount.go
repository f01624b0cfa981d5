package domain

import "time"

type DiscountType string

const (
	DiscountTypePercentage   DiscountType = "percentage"
	DiscountTypeFixedAmount  DiscountType = "fixed_amount"
	DiscountTypeFreeShipping DiscountType = "free_shipping"
)

// DiscountRule is the stored discount definition looked up by code.
type DiscountRule struct {
	ID              string       `bson:"_id,omitempty" json:"id"`
	Code            string       `bson:"code" json:"code"`
	Type            DiscountType `bson:"type" json:"type"`
	Value           float64      `bson:"value" json:"value"`
	MinimumOrder    float64      `bson:"minimum_order,omitempty" json:"minimum_order,omitempty"`
	MaximumDiscount float64      `bson:"maximum_discount,omitempty" json:"maximum_discount,omitempty"`
	IsActive        bool         `bson:"is_active" json:"is_active"`
	StartsAt        time.Time    `bson:"starts_at" json:"starts_at"`
	EndsAt          time.Time    `bson:"ends_at" json:"ends_at"`
}

// WithinWindow reports whether the rule's validity window covers now.
func (r *DiscountRule) WithinWindow(now time.Time) bool {
	if !r.StartsAt.IsZero() && now.Before(r.StartsAt) {
		return false
	}
	if !r.EndsAt.IsZero() && now.After(r.EndsAt) {
		return false
	}
	return true
}

// Snapshot converts the rule into the immutable form attached to a cart.
func (r *DiscountRule) Snapshot(now time.Time) AppliedDiscount {
	return AppliedDiscount{
		Code:            r.Code,
		Type:            r.Type,
		Value:           r.Value,
		MinimumOrder:    r.MinimumOrder,
		MaximumDiscount: r.MaximumDiscount,
		AppliedAt:       now,
	}
}
