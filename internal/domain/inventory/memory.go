package inventory

import (
	"context"
	"sync"
)

// stockEntry holds one item behind its own lock so that reservations on
// different items proceed in parallel.
type stockEntry struct {
	mu   sync.Mutex
	item Item
}

// MemoryStore is an in-process Store with per-item locking.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*stockEntry
}

func NewMemoryStore(items ...Item) (*MemoryStore, error) {
	s := &MemoryStore{items: make(map[string]*stockEntry, len(items))}
	for _, item := range items {
		if err := s.Put(item); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put adds or replaces a catalog item. It is the seeding path; orders never
// call it.
func (s *MemoryStore) Put(item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[item.ID]; ok {
		e.mu.Lock()
		e.item = item
		e.mu.Unlock()
		return nil
	}
	s.items[item.ID] = &stockEntry{item: item}
	return nil
}

func (s *MemoryStore) entry(itemID string) (*stockEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[itemID]
	return e, ok
}

func (s *MemoryStore) Reserve(ctx context.Context, itemID string, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}
	if err := ctx.Err(); err != nil {
		return Reservation{}, err
	}

	e, ok := s.entry(itemID)
	if !ok {
		return Reservation{}, NotFoundError(itemID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item.Quantity < quantity {
		return Reservation{}, &StockError{
			ItemID:    itemID,
			Title:     e.item.Title,
			Requested: quantity,
			Available: e.item.Quantity,
		}
	}
	e.item.Quantity -= quantity
	return NewReservation(e.item, quantity), nil
}

// Release does not look at ctx: a rollback must run even when the request
// that triggered it has been cancelled.
func (s *MemoryStore) Release(_ context.Context, r Reservation) error {
	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	e, ok := s.entry(r.ItemID)
	if !ok {
		return NotFoundError(r.ItemID)
	}

	e.mu.Lock()
	e.item.Quantity += r.Quantity
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, itemID string) (Item, error) {
	e, ok := s.entry(itemID)
	if !ok {
		return Item{}, NotFoundError(itemID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item, nil
}

// Available returns the current quantity of itemID, or -1 when unknown.
func (s *MemoryStore) Available(itemID string) int {
	item, err := s.Get(context.Background(), itemID)
	if err != nil {
		return -1
	}
	return item.Quantity
}
