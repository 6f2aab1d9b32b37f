package models

import "time"

// OrderStatus is the delivery lifecycle state of an order.
type OrderStatus string

const (
	StatusPlaced         OrderStatus = "Placed"
	StatusPreparing      OrderStatus = "Preparing"
	StatusReadyForPickup OrderStatus = "Ready for Pickup"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
	StatusReturned       OrderStatus = "Returned"
)

// OrderStatuses lists every valid status.
var OrderStatuses = []OrderStatus{
	StatusPlaced,
	StatusPreparing,
	StatusReadyForPickup,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
	StatusReturned,
}

// deliveryChain is the forward path; Cancelled and Returned sit off it.
var deliveryChain = map[OrderStatus]int{
	StatusPlaced:         0,
	StatusPreparing:      1,
	StatusReadyForPickup: 2,
	StatusOutForDelivery: 3,
	StatusDelivered:      4,
}

func ValidStatus(s string) bool {
	for _, st := range OrderStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusReturned
}

// Active reports whether the order still needs to be delivered.
func (s OrderStatus) Active() bool {
	_, onChain := deliveryChain[s]
	return onChain && s != StatusDelivered
}

// CanTransition reports whether an order may move from one status to another.
// Statuses only move forward along the delivery chain. Cancelled is reachable
// until the order is delivered, Returned only after delivery, and both are
// absorbing.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() || from == to {
		return false
	}
	switch to {
	case StatusCancelled:
		return from != StatusDelivered
	case StatusReturned:
		return from == StatusDelivered
	}
	fi, ok := deliveryChain[from]
	if !ok {
		return false
	}
	ti, ok := deliveryChain[to]
	return ok && ti > fi
}

// Order is a placed checkout. Items and DeliveryAddress are frozen copies.
type Order struct {
	ID              string      `json:"id" bson:"id"`
	UserID          string      `json:"userId" bson:"userId"`
	Items           []CartItem  `json:"items" bson:"items"`
	Total           float64     `json:"total" bson:"total"`
	Status          OrderStatus `json:"status" bson:"status"`
	DeliveryAddress Address     `json:"deliveryAddress" bson:"deliveryAddress"`
	DeliveryOTP     string      `json:"deliveryOtp" bson:"deliveryOtp"`
	PaymentMethod   string      `json:"paymentMethod" bson:"paymentMethod"`
	Date            string      `json:"date" bson:"date"` // RFC3339
	DeliveryAgentID string      `json:"deliveryAgentId,omitempty" bson:"deliveryAgentId,omitempty"`
}

// PlacedAt parses Date; the zero time is returned for unparseable dates.
func (o *Order) PlacedAt() time.Time {
	t, err := time.Parse(time.RFC3339, o.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ItemsTotal sums price times quantity over the order's items.
func ItemsTotal(items []CartItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}
