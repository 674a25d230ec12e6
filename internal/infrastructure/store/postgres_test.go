package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lockBookSQL   = regexp.QuoteMeta("FROM books WHERE id = $1 FOR UPDATE")
	lockTimeout   = regexp.QuoteMeta("SET LOCAL lock_timeout")
	decrementSQL  = regexp.QuoteMeta("UPDATE books SET stock_quantity = stock_quantity - $2")
	selectOrder   = regexp.QuoteMeta("FROM orders WHERE id = $1")
	selectLines   = regexp.QuoteMeta("FROM order_lines WHERE order_id = ANY($1)")
	bookColumns   = []string{"id", "title", "author", "image_url", "price", "stock_quantity"}
	orderCols     = []string{"id", "user_id", "total_amount", "status", "payment_status", "created_at", "updated_at"}
	orderLineCols = []string{"order_id", "item_id", "title", "author", "image_url", "quantity", "unit_price", "subtotal"}
)

func newMockStore(t *testing.T, policy order.TransitionPolicy) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, policy), mock
}

func expectPlacementBegin(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(lockTimeout).WillReturnResult(sqlmock.NewResult(0, 0))
}

func reserveOnce(ctx context.Context, s *PostgresStore, itemID string, qty int) (inventory.Reservation, error) {
	var r inventory.Reservation
	err := s.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		var err error
		r, err = uow.Reserve(ctx, itemID, qty)
		return err
	})
	return r, err
}

// ============================================
// Reserve Tests
// ============================================

func TestPostgresStore_ReserveDecrementsStock(t *testing.T) {
	s, mock := newMockStore(t, nil)

	expectPlacementBegin(mock)
	mock.ExpectQuery(lockBookSQL).
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow("book-1", "The Great Gatsby", "F. Scott Fitzgerald", "", "12.99", 50))
	mock.ExpectExec(decrementSQL).
		WithArgs("book-1", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	r, err := reserveOnce(context.Background(), s, "book-1", 4)

	require.NoError(t, err)
	assert.Equal(t, "book-1", r.ItemID)
	assert.Equal(t, "The Great Gatsby", r.Title)
	assert.Equal(t, 4, r.Quantity)
	assert.True(t, r.UnitPrice.Equal(decimal.RequireFromString("12.99")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveInsufficientStock(t *testing.T) {
	s, mock := newMockStore(t, nil)

	expectPlacementBegin(mock)
	mock.ExpectQuery(lockBookSQL).
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow("book-1", "Dune", "Frank Herbert", "", "16.99", 2))
	mock.ExpectRollback()

	_, err := reserveOnce(context.Background(), s, "book-1", 3)

	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	var stockErr *inventory.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveItemNotFound(t *testing.T) {
	s, mock := newMockStore(t, nil)

	expectPlacementBegin(mock)
	mock.ExpectQuery(lockBookSQL).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(bookColumns))
	mock.ExpectRollback()

	_, err := reserveOnce(context.Background(), s, "missing", 1)

	assert.ErrorIs(t, err, inventory.ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveLockTimeoutIsConflict(t *testing.T) {
	s, mock := newMockStore(t, nil)

	expectPlacementBegin(mock)
	mock.ExpectQuery(lockBookSQL).
		WithArgs("book-1").
		WillReturnError(&pq.Error{Code: pgLockNotAvailable, Message: "canceling statement due to lock timeout"})
	mock.ExpectRollback()

	_, err := reserveOnce(context.Background(), s, "book-1", 1)

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveWaitsForRowLock(t *testing.T) {
	s, mock := newMockStore(t, nil)
	s.lockTimeout = 750 * time.Millisecond

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '750ms'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockBookSQL + "$").
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow("book-1", "Dune", "Frank Herbert", "", "16.99", 5))
	mock.ExpectExec(decrementSQL).
		WithArgs("book-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := reserveOnce(context.Background(), s, "book-1", 2)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Placement Transaction Tests
// ============================================

func TestPostgresStore_InsertFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t, nil)
	o := testOrder(t, "o-1", "u-1", 2, "12.99", baseTime)

	expectPlacementBegin(mock)
	mock.ExpectQuery(lockBookSQL).
		WithArgs("book-1").
		WillReturnRows(sqlmock.NewRows(bookColumns).AddRow("book-1", "Book One", "", "", "12.99", 5))
	mock.ExpectExec(decrementSQL).
		WithArgs("book-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := s.WithinTx(context.Background(), func(ctx context.Context, uow UnitOfWork) error {
		if _, err := uow.Reserve(ctx, "book-1", 2); err != nil {
			return err
		}
		return uow.Insert(ctx, o)
	})

	assert.ErrorIs(t, err, order.ErrDuplicateOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertWritesLines(t *testing.T) {
	s, mock := newMockStore(t, nil)
	o := testOrder(t, "o-1", "u-1", 4, "12.99", baseTime)

	expectPlacementBegin(mock)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs("o-1", "u-1", sqlmock.AnyArg(), "PENDING", "PENDING", baseTime, baseTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_lines")).
		WithArgs("o-1", 1, "book-1", "Book One", "", "", 4, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.Insert(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Ledger Read Tests
// ============================================

func TestPostgresStore_GetLoadsLines(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectQuery(selectOrder).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow("o-1", "u-1", "51.96", "CONFIRMED", "PAID", baseTime, baseTime))
	mock.ExpectQuery(selectLines).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderLineCols).AddRow("o-1", "book-1", "The Great Gatsby", "F. Scott Fitzgerald", "", 4, "12.99", "51.96"))

	o, err := s.Get(context.Background(), "o-1")

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 4, o.Lines[0].Quantity)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("51.96")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRejectsCorruptTotal(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectQuery(selectOrder).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow("o-1", "u-1", "50.00", "PENDING", "PENDING", baseTime, baseTime))
	mock.ExpectQuery(selectLines).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderLineCols).AddRow("o-1", "book-1", "Gatsby", "", "", 4, "12.99", "51.96"))

	_, err := s.Get(context.Background(), "o-1")

	assert.ErrorIs(t, err, order.ErrTotalMismatch)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectQuery(selectOrder).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(orderCols))

	_, err := s.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByUser(t *testing.T) {
	s, mock := newMockStore(t, nil)
	later := baseTime.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE user_id = $1")).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3")).
		WithArgs("u-1", 10, 0).
		WillReturnRows(sqlmock.NewRows(orderCols).
			AddRow("o-2", "u-1", "5.00", "PENDING", "PENDING", later, later).
			AddRow("o-1", "u-1", "12.99", "SHIPPED", "PAID", baseTime, baseTime))
	mock.ExpectQuery(selectLines).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderLineCols).
			AddRow("o-1", "book-1", "Gatsby", "", "", 1, "12.99", "12.99").
			AddRow("o-2", "book-2", "Dune", "", "", 1, "5.00", "5.00"))

	orders, total, err := s.List(context.Background(), ListQuery{UserID: "u-1", Limit: 10, Sort: SortCreatedAt, Descending: true})

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-2", orders[0].ID)
	assert.Equal(t, "o-1", orders[1].ID)
	assert.Equal(t, "Dune", orders[0].Lines[0].Item.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListEmpty(t *testing.T) {
	s, mock := newMockStore(t, nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	orders, total, err := s.List(context.Background(), ListQuery{Limit: 10})

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Transition Tests
// ============================================

func TestPostgresStore_Transition(t *testing.T) {
	s, mock := newMockStore(t, nil)
	changedAt := baseTime.Add(time.Hour)
	s.now = func() time.Time { return changedAt }

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow("o-1", "u-1", "51.96", "PENDING", "PENDING", baseTime, baseTime))
	mock.ExpectQuery(selectLines).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderLineCols).AddRow("o-1", "book-1", "Gatsby", "", "", 4, "12.99", "51.96"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = $2, payment_status = $3, updated_at = $4")).
		WithArgs("o-1", "CONFIRMED", "PAID", changedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paid := order.PaymentPaid
	o, err := s.Transition(context.Background(), "o-1", order.StatusChange{Status: order.StatusConfirmed, PaymentStatus: &paid})

	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("51.96")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionRejectedByPolicy(t *testing.T) {
	s, mock := newMockStore(t, order.ForwardOnly)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE")).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow("o-1", "u-1", "12.99", "DELIVERED", "PAID", baseTime, baseTime))
	mock.ExpectQuery(selectLines).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderLineCols).AddRow("o-1", "book-1", "Gatsby", "", "", 1, "12.99", "12.99"))
	mock.ExpectRollback()

	_, err := s.Transition(context.Background(), "o-1", order.StatusChange{Status: order.StatusPending})

	assert.ErrorIs(t, err, order.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// Directory Tests
// ============================================

func TestPostgresDirectory_Lookup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	dir := NewPostgresDirectory(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(SeedCustomer.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role"}).
			AddRow(SeedCustomer.ID, SeedCustomer.Name, SeedCustomer.Email, SeedCustomer.Role))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role"}))

	u, err := dir.Lookup(context.Background(), SeedCustomer.ID)
	require.NoError(t, err)
	assert.Equal(t, SeedCustomer, u)

	_, err = dir.Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, user.ErrUserNotFound)
}
