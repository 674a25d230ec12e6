package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/bookstore-orders/internal/domain/order"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, total_amount, status, payment_status, created_at, updated_at`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Insert stores a single order outside of a placement.
func (s *PostgresStore) Insert(ctx context.Context, o *order.Order) error {
	return s.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return uow.Insert(ctx, o)
	})
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (*order.Order, error) {
	return getOrder(ctx, s.db, orderID, false)
}

// Transition locks the order row, applies the change and writes the new
// status back in one transaction.
func (s *PostgresStore) Transition(ctx context.Context, orderID string, change order.StatusChange) (*order.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := getOrder(ctx, tx, orderID, true)
	if err != nil {
		return nil, err
	}
	next, err := current.Apply(change, s.policy, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, updated_at = $4
		WHERE id = $1`,
		next.ID, string(next.Status), string(next.PaymentStatus), next.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("update order %s: %w", orderID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) List(ctx context.Context, q ListQuery) ([]*order.Order, int, error) {
	column, ok := sortColumns[q.Sort]
	if !ok {
		column = sortColumns[SortCreatedAt]
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	var (
		where string
		args  []any
	)
	if q.UserID != "" {
		where = "WHERE user_id = $1"
		args = append(args, q.UserID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	if total == 0 || q.Offset >= total {
		return []*order.Order{}, total, nil
	}

	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY %s %s, id %s", orderColumns, where, column, direction, direction)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, q.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*order.Order{}
	byID := make(map[string]*order.Order)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
		byID[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	if err := loadLines(ctx, s.db, byID); err != nil {
		return nil, 0, err
	}
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return nil, 0, fmt.Errorf("order %s: %w", o.ID, err)
		}
	}
	return orders, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentStatus string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Total, &status, &paymentStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	return &o, nil
}

func getOrder(ctx context.Context, q queryer, orderID string, forUpdate bool) (*order.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	o, err := scanOrder(q.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	if err := loadLines(ctx, q, map[string]*order.Order{o.ID: o}); err != nil {
		return nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("order %s: %w", o.ID, err)
	}
	return o, nil
}

// loadLines fills in the lines of every order in byID with one query.
func loadLines(ctx context.Context, q queryer, byID map[string]*order.Order) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT order_id, item_id, title, author, COALESCE(image_url, ''), quantity, unit_price, subtotal
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.Item.ID, &l.Item.Title, &l.Item.Author, &l.Item.ImageURL, &l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	return rows.Err()
}
