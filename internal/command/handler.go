package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
	"github.com/example/bookstore-orders/internal/metrics"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrValidation marks a request that is malformed before any state is read.
var ErrValidation = errors.New("validation failed")

const publishTimeout = 5 * time.Second

// EventPublisher delivers order events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	tx        store.Transactor
	ledger    store.Ledger
	users     user.Directory
	publisher EventPublisher

	now   func() time.Time
	newID func() string
}

// NewHandler wires the order use cases. publisher may be nil, in which case
// no events are emitted.
func NewHandler(tx store.Transactor, ledger store.Ledger, users user.Directory, publisher EventPublisher) *Handler {
	return &Handler{
		tx:        tx,
		ledger:    ledger,
		users:     users,
		publisher: publisher,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// PlaceOrder reserves every requested line and records the order as one unit
// of work. On any failure nothing is left reserved.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	o, err := h.placeOrder(ctx, cmd)
	if err != nil {
		metrics.PlacementFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	metrics.OrdersPlaced.Inc()
	metrics.OrderAmount.Observe(o.Total.InexactFloat64())
	log.WithFields(log.Fields{
		"component": "command",
		"order_id":  o.ID,
		"user_id":   o.UserID,
		"lines":     len(o.Lines),
		"total":     o.Total.StringFixed(2),
	}).Info("order placed")

	h.publish(ctx, o.ID, order.EventOrderPlaced, order.NewOrderPlaced(o))
	return o, nil
}

func (h *Handler) placeOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	if err := validatePlaceOrder(cmd); err != nil {
		return nil, err
	}

	u, err := h.users.Lookup(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	var placed *order.Order
	err = h.tx.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		lines := make([]order.Line, 0, len(cmd.Items))
		for _, req := range cmd.Items {
			r, err := uow.Reserve(ctx, req.ItemID, req.Quantity)
			if err != nil {
				return err
			}
			line, err := order.NewLine(order.ItemRef{
				ID:       r.ItemID,
				Title:    r.Title,
				Author:   r.Author,
				ImageURL: r.ImageURL,
			}, r.Quantity, r.UnitPrice)
			if err != nil {
				return err
			}
			lines = append(lines, line)
		}

		o, err := order.New(h.newID(), u.ID, lines, h.now().UTC())
		if err != nil {
			return err
		}
		if err := uow.Insert(ctx, o); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func validatePlaceOrder(cmd PlaceOrder) error {
	if cmd.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrValidation)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	for i, item := range cmd.Items {
		if item.ItemID == "" {
			return fmt.Errorf("%w: item %d has no id", ErrValidation, i+1)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity for item %s must be at least 1", ErrValidation, item.ItemID)
		}
	}
	return nil
}

// UpdateStatus moves an order to a new status and optionally a new payment
// status. Lines and total are never touched.
func (h *Handler) UpdateStatus(ctx context.Context, cmd UpdateOrderStatus) (*order.Order, error) {
	change, err := parseStatusChange(cmd)
	if err != nil {
		return nil, err
	}

	before, err := h.ledger.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	after, err := h.ledger.Transition(ctx, cmd.OrderID, change)
	if err != nil {
		return nil, err
	}

	metrics.StatusTransitions.WithLabelValues(string(after.Status)).Inc()
	log.WithFields(log.Fields{
		"component":      "command",
		"order_id":       after.ID,
		"status":         after.Status,
		"payment_status": after.PaymentStatus,
	}).Info("order status updated")

	h.publish(ctx, after.ID, order.EventOrderStatusChanged, order.NewOrderStatusChanged(before, after))
	return after, nil
}

func parseStatusChange(cmd UpdateOrderStatus) (order.StatusChange, error) {
	if cmd.OrderID == "" {
		return order.StatusChange{}, fmt.Errorf("%w: missing order id", ErrValidation)
	}
	status, err := order.ParseStatus(cmd.Status)
	if err != nil {
		return order.StatusChange{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	change := order.StatusChange{Status: status}
	if cmd.PaymentStatus != nil {
		ps, err := order.ParsePaymentStatus(*cmd.PaymentStatus)
		if err != nil {
			return order.StatusChange{}, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		change.PaymentStatus = &ps
	}
	return change, nil
}

// publish is best effort: the order is already committed, so a bus failure
// is logged and counted but never returned.
func (h *Handler) publish(ctx context.Context, orderID, eventType string, data any) {
	if h.publisher == nil {
		return
	}
	logger := log.WithFields(log.Fields{
		"component":  "command",
		"order_id":   orderID,
		"event_type": eventType,
	})

	event, err := store.NewEvent(orderID, order.AggregateType, eventType, data, h.now().UTC())
	if err != nil {
		logger.WithError(err).Error("failed to encode event")
		metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(pubCtx, orderID, event); err != nil {
		logger.WithError(err).Warn("failed to publish event")
		metrics.EventsPublished.WithLabelValues(eventType, "error").Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues(eventType, "ok").Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, user.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, inventory.ErrItemNotFound):
		return "item_not_found"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
