package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddockhq/paddock/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, offering_id, buy_order_id, sell_order_id,
	buyer_id, seller_id, shares, price_cents, commission_cents, executed_at`

// RecordExecution persists everything one matching pass produced in a single
// transaction: the incoming order, touched resting orders, trades, post-trade
// holdings, and the offering's last price. Either all of it commits or none
// of it does.
func (s *TradeStore) RecordExecution(ctx context.Context, exec domain.Execution) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin execution tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// A call-auction cross has no incoming order.
	if exec.Incoming.ID != "" {
		if err := execUpsertOrder(ctx, tx, exec.Incoming); err != nil {
			return fmt.Errorf("postgres: upsert incoming order %s: %w", exec.Incoming.ID, err)
		}
	}
	for _, r := range exec.Resting {
		tag, err := execUpdateOrder(ctx, tx, r)
		if err != nil {
			return fmt.Errorf("postgres: update resting order %s: %w", r.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: update resting order %s: %w", r.ID, domain.ErrNotFound)
		}
	}
	for _, t := range exec.Trades {
		const query = `
			INSERT INTO trades (
				id, offering_id, buy_order_id, sell_order_id,
				buyer_id, seller_id, shares, price_cents, commission_cents, executed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.Exec(ctx, query,
			t.ID, t.OfferingID, t.BuyOrderID, t.SellOrderID,
			t.BuyerID, t.SellerID, t.Shares, t.PriceCents, t.CommissionCents, t.ExecutedAt,
		); err != nil {
			return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
		}
	}
	for _, h := range exec.Holdings {
		const query = `
			INSERT INTO holdings (user_id, offering_id, shares, avg_entry_price_cents, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, offering_id) DO UPDATE SET
				shares = EXCLUDED.shares,
				avg_entry_price_cents = EXCLUDED.avg_entry_price_cents,
				updated_at = EXCLUDED.updated_at`
		if _, err := tx.Exec(ctx, query,
			h.UserID, h.OfferingID, h.Shares, h.AvgEntryPriceCents, h.UpdatedAt,
		); err != nil {
			return fmt.Errorf("postgres: upsert holding %s/%s: %w", h.UserID, h.OfferingID, err)
		}
	}
	if exec.LastPriceCents > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE offerings SET current_price_cents = $1, updated_at = NOW() WHERE id = $2`,
			exec.LastPriceCents, exec.OfferingID,
		); err != nil {
			return fmt.Errorf("postgres: update offering price %s: %w", exec.OfferingID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit execution: %w", err)
	}
	return nil
}

// execUpsertOrder inserts the incoming order's post-match state, updating in
// place if a prior attempt already persisted it.
func execUpsertOrder(ctx context.Context, q queryExecer, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, offering_id, user_id, side, shares, shares_filled,
			limit_price_cents, tif, status, reject_reason,
			created_at, filled_at, cancelled_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (id) DO UPDATE SET
			shares_filled = EXCLUDED.shares_filled,
			status = EXCLUDED.status,
			reject_reason = EXCLUDED.reject_reason,
			filled_at = EXCLUDED.filled_at,
			cancelled_at = EXCLUDED.cancelled_at,
			updated_at = NOW()`
	_, err := q.Exec(ctx, query,
		o.ID, o.OfferingID, o.UserID, string(o.Side), o.Shares, o.SharesFilled,
		o.LimitPriceCents, string(o.TIF), string(o.Status), o.RejectReason,
		o.CreatedAt, o.FilledAt, o.CancelledAt,
	)
	return err
}

// GetByID returns one trade.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeCols+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByOffering returns an offering's trades, newest first.
func (s *TradeStore) ListByOffering(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades
		 WHERE offering_id = $1 ORDER BY executed_at DESC LIMIT $2 OFFSET $3`,
		offeringID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", offeringID, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// ListByUser returns trades where the user was buyer or seller, newest first.
func (s *TradeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades
		 WHERE buyer_id = $1 OR seller_id = $1
		 ORDER BY executed_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

// DailyActivity aggregates a user's trade count and notional volume for the
// UTC calendar day containing ts.
func (s *TradeStore) DailyActivity(ctx context.Context, userID string, ts time.Time) (domain.DailyActivity, error) {
	day := ts.UTC().Truncate(24 * time.Hour)
	next := day.Add(24 * time.Hour)
	var a domain.DailyActivity
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(shares * price_cents), 0)
		 FROM trades
		 WHERE (buyer_id = $1 OR seller_id = $1)
		   AND executed_at >= $2 AND executed_at < $3`,
		userID, day, next,
	).Scan(&a.TradeCount, &a.VolumeCents)
	if err != nil {
		return domain.DailyActivity{}, fmt.Errorf("postgres: daily activity for %s: %w", userID, err)
	}
	return a, nil
}

// ListBefore returns trades executed before the cutoff, for archival.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades WHERE executed_at < $1 ORDER BY executed_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()
	return collectTrades(rows)
}

func scanTrade(scanner interface{ Scan(dest ...any) error }) (domain.Trade, error) {
	var t domain.Trade
	err := scanner.Scan(
		&t.ID, &t.OfferingID, &t.BuyOrderID, &t.SellOrderID,
		&t.BuyerID, &t.SellerID, &t.Shares, &t.PriceCents, &t.CommissionCents, &t.ExecutedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	return t, nil
}

func collectTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var out []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate trades: %w", err)
	}
	return out, nil
}
