package domain

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusPickedUp       OrderStatus = "PICKED_UP"
	OrderStatusInTransit      OrderStatus = "IN_TRANSIT"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusDeliveryFailed OrderStatus = "DELIVERY_FAILED"
	OrderStatusRefunded       OrderStatus = "REFUNDED"
)

// orderTransitions is the allowed forward movement of the customer-facing
// order status. Terminal states admit no exits except DELIVERED → REFUNDED.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusPickedUp, OrderStatusInTransit, OrderStatusDeliveryFailed},
	OrderStatusPickedUp:       {OrderStatusInTransit, OrderStatusOutForDelivery, OrderStatusDeliveryFailed},
	OrderStatusInTransit:      {OrderStatusOutForDelivery, OrderStatusDeliveryFailed},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusDeliveryFailed},
	OrderStatusDeliveryFailed: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusDelivered:      {OrderStatusRefunded},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

// CanTransitionTo reports whether moving from s to next is a legal step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:           {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusFailed:            {PaymentStatusPending, PaymentStatusCompleted},
	PaymentStatusCompleted:         {PaymentStatusRefunded, PaymentStatusPartiallyRefunded},
	PaymentStatusPartiallyRefunded: {PaymentStatusRefunded},
	PaymentStatusRefunded:          {},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled        FulfillmentStatus = "UNFULFILLED"
	FulfillmentStatusPartiallyFulfilled FulfillmentStatus = "PARTIALLY_FULFILLED"
	FulfillmentStatusFulfilled          FulfillmentStatus = "FULFILLED"
)

var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentStatusUnfulfilled:        {FulfillmentStatusPartiallyFulfilled, FulfillmentStatusFulfilled},
	FulfillmentStatusPartiallyFulfilled: {FulfillmentStatusFulfilled},
	FulfillmentStatusFulfilled:          {},
}

func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	for _, allowed := range fulfillmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s FulfillmentStatus) String() string {
	return string(s)
}
