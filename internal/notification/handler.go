package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/example/bookstore-orders/internal/email"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Sender delivers an order confirmation.
type Sender interface {
	SendOrderConfirmation(to, customerName, orderID string, total decimal.Decimal, items []email.OrderItem) error
}

// Handler processes events for sending notifications
type Handler struct {
	sender Sender
	users  user.Directory
}

// NewHandler creates a new notification handler
func NewHandler(sender Sender, users user.Directory) *Handler {
	return &Handler{
		sender: sender,
		users:  users,
	}
}

// HandleEvent processes an event from Kafka. Malformed messages and unknown
// users are logged and dropped; only a failed delivery is returned.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.WithField("component", "notifier").WithError(err).Error("failed to unmarshal event")
		return err
	}

	// Only process OrderPlaced events
	if event.EventType == order.EventOrderPlaced {
		return h.handleOrderPlaced(ctx, event)
	}

	return nil
}

func (h *Handler) handleOrderPlaced(ctx context.Context, event store.Event) error {
	var e order.OrderPlaced
	if err := event.Decode(&e); err != nil {
		log.WithField("component", "notifier").WithError(err).Error("failed to unmarshal OrderPlaced event")
		return err
	}

	logger := log.WithFields(log.Fields{
		"component": "notifier",
		"order_id":  e.OrderID,
		"user_id":   e.UserID,
	})
	logger.Info("processing OrderPlaced event")

	u, err := h.users.Lookup(ctx, e.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			logger.Warn("user not found, skipping confirmation")
			return nil
		}
		return fmt.Errorf("lookup user %s: %w", e.UserID, err)
	}
	if u.Email == "" {
		logger.Warn("user has no email address, skipping confirmation")
		return nil
	}

	items := make([]email.OrderItem, len(e.Lines))
	for i, line := range e.Lines {
		items[i] = email.OrderItem{
			ItemID:    line.Item.ID,
			Title:     line.Item.Title,
			Author:    line.Item.Author,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		}
	}

	if err := h.sender.SendOrderConfirmation(u.Email, u.Name, e.OrderID, e.Total, items); err != nil {
		logger.WithError(err).WithField("email", u.Email).Error("failed to send confirmation email")
		return err
	}

	logger.WithField("email", u.Email).Info("order confirmation email sent")
	return nil
}
