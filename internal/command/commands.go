package command

// Order Commands

// LineRequest is one requested (item, quantity) pair.
type LineRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type PlaceOrder struct {
	UserID string        `json:"user_id"`
	Items  []LineRequest `json:"items"`
}

// UpdateOrderStatus sets the order status and, when PaymentStatus is
// non-nil, the payment status.
type UpdateOrderStatus struct {
	OrderID       string  `json:"order_id"`
	Status        string  `json:"status"`
	PaymentStatus *string `json:"paymentStatus,omitempty"`
}
