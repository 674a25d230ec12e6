package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
	log "github.com/sirupsen/logrus"
)

// MemoryLedger keeps orders in process. Stored orders are private copies;
// callers always get clones back.
type MemoryLedger struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
	policy order.TransitionPolicy
	now    func() time.Time
}

func NewMemoryLedger(policy order.TransitionPolicy) *MemoryLedger {
	if policy == nil {
		policy = order.AnyTransition
	}
	return &MemoryLedger{
		orders: make(map[string]*order.Order),
		policy: policy,
		now:    time.Now,
	}
}

func (l *MemoryLedger) Insert(_ context.Context, o *order.Order) error {
	return l.insertAll([]*order.Order{o})
}

// insertAll adds every order or none of them.
func (l *MemoryLedger) insertAll(orders []*order.Order) error {
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range orders {
		if _, exists := l.orders[o.ID]; exists {
			return fmt.Errorf("%w: %s", order.ErrDuplicateOrder, o.ID)
		}
	}
	for _, o := range orders {
		l.orders[o.ID] = o.Clone()
	}
	return nil
}

func (l *MemoryLedger) Get(_ context.Context, orderID string) (*order.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	return o.Clone(), nil
}

func (l *MemoryLedger) Transition(_ context.Context, orderID string, change order.StatusChange) (*order.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	next, err := current.Apply(change, l.policy, l.now())
	if err != nil {
		return nil, err
	}
	l.orders[orderID] = next
	return next.Clone(), nil
}

func (l *MemoryLedger) List(_ context.Context, q ListQuery) ([]*order.Order, int, error) {
	l.mu.RLock()
	matched := make([]*order.Order, 0, len(l.orders))
	for _, o := range l.orders {
		if q.UserID != "" && o.UserID != q.UserID {
			continue
		}
		matched = append(matched, o.Clone())
	}
	l.mu.RUnlock()

	sortOrders(matched, q.Sort, q.Descending)
	return window(matched, q.Offset, q.Limit), len(matched), nil
}

// MemoryTransactor pairs an inventory.Store with a MemoryLedger. Reservations
// take effect immediately and are compensated with Release when the unit of
// work does not commit.
type MemoryTransactor struct {
	inventory inventory.Store
	ledger    *MemoryLedger
}

func NewMemoryTransactor(inv inventory.Store, ledger *MemoryLedger) *MemoryTransactor {
	return &MemoryTransactor{inventory: inv, ledger: ledger}
}

func (t *MemoryTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) (err error) {
	unit := &memoryUnit{inventory: t.inventory}
	defer func() {
		if r := recover(); r != nil {
			unit.rollback()
			panic(r)
		}
		if err != nil {
			unit.rollback()
		}
	}()

	if err = fn(ctx, unit); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	return t.ledger.insertAll(unit.staged)
}

type memoryUnit struct {
	inventory    inventory.Store
	reservations []inventory.Reservation
	staged       []*order.Order
}

func (u *memoryUnit) Reserve(ctx context.Context, itemID string, quantity int) (inventory.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Reservation{}, err
	}
	r, err := u.inventory.Reserve(ctx, itemID, quantity)
	if err != nil {
		return inventory.Reservation{}, err
	}
	u.reservations = append(u.reservations, r)
	return r, nil
}

func (u *memoryUnit) Insert(_ context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	u.staged = append(u.staged, o.Clone())
	return nil
}

// rollback releases reservations newest first. It runs on a fresh context so
// a cancelled request still gives its stock back.
func (u *memoryUnit) rollback() {
	ctx := context.Background()
	for i := len(u.reservations) - 1; i >= 0; i-- {
		r := u.reservations[i]
		if err := u.inventory.Release(ctx, r); err != nil {
			log.WithFields(log.Fields{
				"component": "store",
				"item_id":   r.ItemID,
				"quantity":  r.Quantity,
			}).WithError(err).Error("failed to release reservation")
		}
	}
	u.reservations = nil
	u.staged = nil
}
