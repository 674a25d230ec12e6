package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/lib/pq"
)

// pgLockNotAvailable is raised when lock_timeout expires on a row lock.
const pgLockNotAvailable = "55P03"

// DefaultLockTimeout bounds how long a placement waits for an item row held
// by another placement.
const DefaultLockTimeout = 2 * time.Second

// PostgresStore keeps inventory and orders in one database so that a
// placement is a single SQL transaction. It is both the Transactor and the
// Ledger.
type PostgresStore struct {
	db          *sql.DB
	policy      order.TransitionPolicy
	lockTimeout time.Duration
	now         func() time.Time
}

func NewPostgresStore(db *sql.DB, policy order.TransitionPolicy) *PostgresStore {
	if policy == nil {
		policy = order.AnyTransition
	}
	return &PostgresStore{db: db, policy: policy, lockTimeout: DefaultLockTimeout, now: time.Now}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// WithinTx runs fn in a database transaction. database/sql rolls the
// transaction back on its own when ctx is cancelled. Row locks taken inside
// the transaction wait at most lockTimeout.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// SET does not take bind parameters
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	if err := fn(ctx, &pgUnit{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgUnit struct {
	tx *sql.Tx
}

// Reserve locks the item row, checks stock and decrements it. Concurrent
// placements of the same item serialize on the row lock; one that waits past
// the lock timeout fails with ErrConcurrencyConflict.
// The row lock lasts until the placement commits or rolls back.
func (u *pgUnit) Reserve(ctx context.Context, itemID string, quantity int) (inventory.Reservation, error) {
	if quantity <= 0 {
		return inventory.Reservation{}, inventory.ErrInvalidQuantity
	}

	var item inventory.Item
	err := u.tx.QueryRowContext(ctx, `
		SELECT id, title, author, COALESCE(image_url, ''), price, stock_quantity
		FROM books
		WHERE id = $1
		FOR UPDATE`, itemID,
	).Scan(&item.ID, &item.Title, &item.Author, &item.ImageURL, &item.Price, &item.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.Reservation{}, inventory.NotFoundError(itemID)
		}
		if isLockNotAvailable(err) {
			return inventory.Reservation{}, fmt.Errorf("%w: item %s", ErrConcurrencyConflict, itemID)
		}
		return inventory.Reservation{}, fmt.Errorf("lock item %s: %w", itemID, err)
	}

	if item.Quantity < quantity {
		return inventory.Reservation{}, &inventory.StockError{
			ItemID:    itemID,
			Title:     item.Title,
			Requested: quantity,
			Available: item.Quantity,
		}
	}

	if _, err := u.tx.ExecContext(ctx, `
		UPDATE books
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1`, itemID, quantity,
	); err != nil {
		return inventory.Reservation{}, fmt.Errorf("decrement item %s: %w", itemID, err)
	}

	return inventory.NewReservation(item, quantity), nil
}

func (u *pgUnit) Insert(ctx context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}

	_, err := u.tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.UserID, o.Total, string(o.Status), string(o.PaymentStatus), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: %s", order.ErrDuplicateOrder, o.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, l := range o.Lines {
		_, err := u.tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, line_no, item_id, title, author, image_url, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			o.ID, i+1, l.Item.ID, l.Item.Title, l.Item.Author, l.Item.ImageURL, l.Quantity, l.UnitPrice, l.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert order line %d: %w", i+1, err)
		}
	}
	return nil
}

func isLockNotAvailable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgLockNotAvailable
}

// PostgresDirectory resolves users from the users table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Lookup(ctx context.Context, userID string) (user.User, error) {
	var u user.User
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, email, role
		FROM users
		WHERE id = $1`, userID,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.NotFoundError(userID)
		}
		return user.User{}, fmt.Errorf("lookup user %s: %w", userID, err)
	}
	return u, nil
}
