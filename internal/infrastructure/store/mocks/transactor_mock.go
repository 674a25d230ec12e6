package mocks

import (
	"context"

	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/infrastructure/store"
)

// MockTransactor wraps a real Transactor and injects failures into the unit
// of work it hands out.
type MockTransactor struct {
	Inner store.Transactor

	// InsertErr, when set, is returned by UnitOfWork.Insert instead of staging
	// the order.
	InsertErr error
	// BeforeReserve, when set, runs before every reservation.
	BeforeReserve func(ctx context.Context, itemID string, quantity int)

	Calls int
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, uow store.UnitOfWork) error) error {
	m.Calls++
	return m.Inner.WithinTx(ctx, func(ctx context.Context, uow store.UnitOfWork) error {
		return fn(ctx, &faultyUnit{inner: uow, mock: m})
	})
}

type faultyUnit struct {
	inner store.UnitOfWork
	mock  *MockTransactor
}

func (u *faultyUnit) Reserve(ctx context.Context, itemID string, quantity int) (inventory.Reservation, error) {
	if u.mock.BeforeReserve != nil {
		u.mock.BeforeReserve(ctx, itemID, quantity)
	}
	return u.inner.Reserve(ctx, itemID, quantity)
}

func (u *faultyUnit) Insert(ctx context.Context, o *order.Order) error {
	if u.mock.InsertErr != nil {
		return u.mock.InsertErr
	}
	return u.inner.Insert(ctx, o)
}
