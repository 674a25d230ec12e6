package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidItem       = errors.New("invalid item")
)

// Item is a catalog entry together with its available stock.
type Item struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Author   string          `json:"author"`
	ImageURL string          `json:"image_url,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidItem)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", ErrInvalidItem, i.ID)
	}
	if i.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity for %s", ErrInvalidItem, i.ID)
	}
	return nil
}

// Reservation is the result of a successful check-and-decrement. It carries a
// snapshot of the item as it was when the stock was taken.
type Reservation struct {
	ItemID    string          `json:"item_id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// NewReservation snapshots item for a reservation of quantity units.
func NewReservation(item Item, quantity int) Reservation {
	return Reservation{
		ItemID:    item.ID,
		Title:     item.Title,
		Author:    item.Author,
		ImageURL:  item.ImageURL,
		UnitPrice: item.Price,
		Quantity:  quantity,
	}
}

// StockError reports a reservation that asked for more than is available.
type StockError struct {
	ItemID    string
	Title     string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	name := e.ItemID
	if e.Title != "" {
		name = fmt.Sprintf("%s (%s)", e.Title, e.ItemID)
	}
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// NotFoundError reports a reservation against an unknown item id.
func NotFoundError(itemID string) error {
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// Store is the inventory contract used by order placement.
//
// Reserve must decrement atomically per item: it either takes quantity units
// and returns a snapshot, or fails without side effects. Reservations against
// the same item serialize; reservations against different items never wait on
// each other. Release puts a reservation back and exists only to undo a
// placement that did not commit.
type Store interface {
	Reserve(ctx context.Context, itemID string, quantity int) (Reservation, error)
	Release(ctx context.Context, r Reservation) error
	Get(ctx context.Context, itemID string) (Item, error)
}
