package domain

import "time"

// Profile is the identity side of a user as seen by the engine.
type Profile struct {
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone,omitempty"`
	Verified  bool      `json:"verified"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStatus is the payment state of an order.
type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
)

// Order is a purchase of a course product.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Product   string      `json:"product"`
	Price     int64       `json:"price"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Paid reports whether the order has been settled.
func (o *Order) Paid() bool {
	return o != nil && o.Status == OrderPaid
}
