package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddockhq/paddock/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates an OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderCols = `id, offering_id, user_id, side, shares, shares_filled,
	limit_price_cents, tif, status, reject_reason,
	created_at, filled_at, cancelled_at`

// Create inserts a new order.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	if err := execInsertOrder(ctx, s.pool, o); err != nil {
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}
	return nil
}

// Update advances an order's mutable fields.
func (s *OrderStore) Update(ctx context.Context, o domain.Order) error {
	tag, err := execUpdateOrder(ctx, s.pool, o)
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns one order.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	return o, nil
}

// ListOpen returns resting orders for one offering in submission order, for
// book rebuilds.
func (s *OrderStore) ListOpen(ctx context.Context, offeringID string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderCols+` FROM orders
		 WHERE offering_id = $1 AND status IN ('active', 'partially_filled')
		 ORDER BY created_at, id`,
		offeringID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders for %s: %w", offeringID, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListOpenByUser returns a user's resting orders across offerings.
func (s *OrderStore) ListOpenByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderCols+` FROM orders
		 WHERE user_id = $1 AND status IN ('active', 'partially_filled')
		 ORDER BY created_at, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open orders for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListByOffering returns an offering's order history, newest first.
func (s *OrderStore) ListByOffering(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Order, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderCols+` FROM orders
		 WHERE offering_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		offeringID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for %s: %w", offeringID, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListBefore returns orders created before the cutoff, for archival.
func (s *OrderStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE created_at < $1 ORDER BY created_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders before %s: %w", before, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// queryExecer is satisfied by both *pgxpool.Pool and pgx.Tx, so order writes
// can run standalone or inside an execution transaction.
type queryExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func execInsertOrder(ctx context.Context, q queryExecer, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, offering_id, user_id, side, shares, shares_filled,
			limit_price_cents, tif, status, reject_reason,
			created_at, filled_at, cancelled_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())`
	_, err := q.Exec(ctx, query,
		o.ID, o.OfferingID, o.UserID, string(o.Side), o.Shares, o.SharesFilled,
		o.LimitPriceCents, string(o.TIF), string(o.Status), o.RejectReason,
		o.CreatedAt, o.FilledAt, o.CancelledAt,
	)
	return err
}

func execUpdateOrder(ctx context.Context, q queryExecer, o domain.Order) (pgconn.CommandTag, error) {
	const query = `
		UPDATE orders SET
			shares_filled = $1, status = $2, reject_reason = $3,
			filled_at = $4, cancelled_at = $5, updated_at = NOW()
		WHERE id = $6`
	return q.Exec(ctx, query,
		o.SharesFilled, string(o.Status), o.RejectReason,
		o.FilledAt, o.CancelledAt, o.ID,
	)
}

func scanOrder(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var o domain.Order
	var side, tif, status string
	err := scanner.Scan(
		&o.ID, &o.OfferingID, &o.UserID, &side, &o.Shares, &o.SharesFilled,
		&o.LimitPriceCents, &tif, &status, &o.RejectReason,
		&o.CreatedAt, &o.FilledAt, &o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.OrderSide(side)
	o.TIF = domain.TimeInForce(tif)
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate orders: %w", err)
	}
	return out, nil
}
