package store

import (
	"context"
	"errors"

	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
)

// ErrConcurrencyConflict is returned when an item row is locked by another
// placement. It is safe for the caller to retry.
var ErrConcurrencyConflict = errors.New("item is being reserved by another order, retry")

// UnitOfWork is the transactional scope of one order placement. Everything
// done through it commits together or not at all.
type UnitOfWork interface {
	Reserve(ctx context.Context, itemID string, quantity int) (inventory.Reservation, error)
	Insert(ctx context.Context, o *order.Order) error
}

// Transactor runs fn inside a unit of work. When fn returns an error, ctx is
// cancelled or the commit fails, every reservation taken through the unit is
// rolled back before WithinTx returns.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// OrderReader is the read side of the ledger.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
	List(ctx context.Context, q ListQuery) ([]*order.Order, int, error)
}

// Ledger is the durable store of committed orders.
type Ledger interface {
	OrderReader
	Insert(ctx context.Context, o *order.Order) error
	Transition(ctx context.Context, orderID string, change order.StatusChange) (*order.Order, error)
}
