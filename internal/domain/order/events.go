package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderPlaced struct {
	OrderID  string          `json:"order_id"`
	UserID   string          `json:"user_id"`
	Lines    []Line          `json:"lines"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID         string        `json:"order_id"`
	PreviousStatus  Status        `json:"previous_status"`
	Status          Status        `json:"status"`
	PreviousPayment PaymentStatus `json:"previous_payment_status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	ChangedAt       time.Time     `json:"changed_at"`
}

func NewOrderPlaced(o *Order) OrderPlaced {
	return OrderPlaced{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Lines:    o.Lines,
		Total:    o.Total,
		PlacedAt: o.CreatedAt,
	}
}

func NewOrderStatusChanged(before, after *Order) OrderStatusChanged {
	return OrderStatusChanged{
		OrderID:         after.ID,
		PreviousStatus:  before.Status,
		Status:          after.Status,
		PreviousPayment: before.PaymentStatus,
		PaymentStatus:   after.PaymentStatus,
		ChangedAt:       after.UpdatedAt,
	}
}
