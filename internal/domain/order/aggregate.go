package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "Order"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyOrder        = errors.New("order must have at least one item")
	ErrInvalidQuantity   = errors.New("line quantity must be positive")
	ErrInvalidPrice      = errors.New("unit price must not be negative")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidPayment    = errors.New("invalid payment status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrTotalMismatch     = errors.New("order total does not match its lines")
	ErrDuplicateOrder    = errors.New("order already exists")
)

var statuses = []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled}

var paymentStatuses = []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}

// ParseStatus accepts any casing of a known status.
func ParseStatus(s string) (Status, error) {
	for _, st := range statuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	for _, ps := range paymentStatuses {
		if strings.EqualFold(s, string(ps)) {
			return ps, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPayment, s)
}

// ItemRef identifies the catalog item of a line and keeps the descriptive
// fields it had when the order was placed.
type ItemRef struct {
	ID       string `json:"item_id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	ImageURL string `json:"image_url,omitempty"`
}

type Line struct {
	Item      ItemRef         `json:"item"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewLine prices quantity units of item at unitPrice. The subtotal is
// computed here once and stored with the line.
func NewLine(item ItemRef, quantity int, unitPrice decimal.Decimal) (Line, error) {
	if quantity <= 0 {
		return Line{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, item.ID)
	}
	if unitPrice.IsNegative() {
		return Line{}, fmt.Errorf("%w: %s", ErrInvalidPrice, item.ID)
	}
	return Line{
		Item:      item,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Lines         []Line          `json:"lines"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// New builds a PENDING/PENDING order from fully priced lines.
func New(id, userID string, lines []Line, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	owned := make([]Line, len(lines))
	copy(owned, lines)

	o := &Order{
		ID:            id,
		UserID:        userID,
		Lines:         owned,
		Total:         SumLines(owned),
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

// Validate checks the standing invariants of a stored order.
func (o *Order) Validate() error {
	if len(o.Lines) == 0 {
		return ErrEmptyOrder
	}
	for _, l := range o.Lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuantity, l.Item.ID)
		}
		if l.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: %s", ErrInvalidPrice, l.Item.ID)
		}
		if !l.Subtotal.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))) {
			return fmt.Errorf("%w: line %s subtotal %s", ErrTotalMismatch, l.Item.ID, l.Subtotal)
		}
	}
	if !o.Total.Equal(SumLines(o.Lines)) {
		return fmt.Errorf("%w: total %s", ErrTotalMismatch, o.Total)
	}
	return nil
}

// Clone returns a deep copy so callers never share the line slice.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = make([]Line, len(o.Lines))
	copy(c.Lines, o.Lines)
	return &c
}

// StatusChange is the only mutation an order accepts after placement.
// PaymentStatus is left untouched when nil.
type StatusChange struct {
	Status        Status
	PaymentStatus *PaymentStatus
}

// Apply returns a copy of o with the change applied. Lines and total are
// carried over unchanged.
func (o *Order) Apply(c StatusChange, policy TransitionPolicy, at time.Time) (*Order, error) {
	if _, err := ParseStatus(string(c.Status)); err != nil {
		return nil, err
	}
	if c.PaymentStatus != nil {
		if _, err := ParsePaymentStatus(string(*c.PaymentStatus)); err != nil {
			return nil, err
		}
	}
	if policy == nil {
		policy = AnyTransition
	}
	if err := policy(o.Status, c.Status); err != nil {
		return nil, err
	}

	next := o.Clone()
	next.Status = c.Status
	if c.PaymentStatus != nil {
		next.PaymentStatus = *c.PaymentStatus
	}
	next.UpdatedAt = at
	return next, nil
}
