package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddockhq/paddock/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL. Durations
// are stored as millisecond counts.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates an AuctionStore backed by the given pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// CreateLot inserts a lot with its items in one transaction.
func (s *AuctionStore) CreateLot(ctx context.Context, lot domain.AuctionLot, items []domain.LotItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin create lot tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO auction_lots (id, title, lot_type, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		lot.ID, lot.Title, string(lot.Type), string(lot.Status), lot.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert lot %s: %w", lot.ID, err)
	}
	for _, it := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO lot_items (
				id, lot_id, offering_id, sequence_number, status,
				start_price_cents, min_increment_cents, reserve_price_cents,
				duration_ms, sniping_window_ms, reset_length_ms,
				started_at, ends_at, high_bid_id, high_bid_cents, high_bidder_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			it.ID, it.LotID, it.OfferingID, it.SequenceNumber, string(it.Status),
			it.StartPriceCents, it.MinIncrementCents, it.ReservePriceCents,
			it.Duration.Milliseconds(), it.SnipingWindow.Milliseconds(), it.ResetLength.Milliseconds(),
			it.StartedAt, it.EndsAt, it.HighBidID, it.HighBidCents, it.HighBidderID,
		); err != nil {
			return fmt.Errorf("postgres: insert lot item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit create lot %s: %w", lot.ID, err)
	}
	return nil
}

// GetLot returns one lot.
func (s *AuctionStore) GetLot(ctx context.Context, id string) (domain.AuctionLot, error) {
	var lot domain.AuctionLot
	var lotType, status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, lot_type, status, created_at FROM auction_lots WHERE id = $1`, id,
	).Scan(&lot.ID, &lot.Title, &lotType, &status, &lot.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.AuctionLot{}, domain.ErrNotFound
		}
		return domain.AuctionLot{}, fmt.Errorf("postgres: get lot %s: %w", id, err)
	}
	lot.Type = domain.LotType(lotType)
	lot.Status = domain.LotStatus(status)
	return lot, nil
}

// UpdateLotStatus advances a lot's status.
func (s *AuctionStore) UpdateLotStatus(ctx context.Context, id string, status domain.LotStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auction_lots SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update lot status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const lotItemCols = `id, lot_id, offering_id, sequence_number, status,
	start_price_cents, min_increment_cents, reserve_price_cents,
	duration_ms, sniping_window_ms, reset_length_ms,
	started_at, ends_at, high_bid_id, high_bid_cents, high_bidder_id`

// GetItem returns one lot item.
func (s *AuctionStore) GetItem(ctx context.Context, id string) (domain.LotItem, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+lotItemCols+` FROM lot_items WHERE id = $1`, id)
	it, err := scanLotItem(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.LotItem{}, domain.ErrNotFound
		}
		return domain.LotItem{}, fmt.Errorf("postgres: get lot item %s: %w", id, err)
	}
	return it, nil
}

// UpdateItem replaces a lot item's mutable state.
func (s *AuctionStore) UpdateItem(ctx context.Context, item domain.LotItem) error {
	const query = `
		UPDATE lot_items SET
			status = $1, started_at = $2, ends_at = $3,
			high_bid_id = $4, high_bid_cents = $5, high_bidder_id = $6
		WHERE id = $7`
	tag, err := s.pool.Exec(ctx, query,
		string(item.Status), item.StartedAt, item.EndsAt,
		item.HighBidID, item.HighBidCents, item.HighBidderID, item.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update lot item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListItems returns a lot's items in sequence order.
func (s *AuctionStore) ListItems(ctx context.Context, lotID string) ([]domain.LotItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+lotItemCols+` FROM lot_items WHERE lot_id = $1 ORDER BY sequence_number`,
		lotID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list lot items for %s: %w", lotID, err)
	}
	defer rows.Close()
	var out []domain.LotItem
	for rows.Next() {
		it, err := scanLotItem(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan lot item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate lot items: %w", err)
	}
	return out, nil
}

// InsertBid appends one bid, accepted or rejected.
func (s *AuctionStore) InsertBid(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (id, lot_item_id, user_id, amount_cents, accepted, reject_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, query,
		b.ID, b.LotItemID, b.UserID, b.AmountCents, b.Accepted, b.RejectReason, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert bid %s: %w", b.ID, err)
	}
	return nil
}

// ListBids returns an item's bids, newest first.
func (s *AuctionStore) ListBids(ctx context.Context, lotItemID string, opts domain.ListOpts) ([]domain.Bid, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, lot_item_id, user_id, amount_cents, accepted, reject_reason, created_at
		 FROM bids WHERE lot_item_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		lotItemID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for %s: %w", lotItemID, err)
	}
	defer rows.Close()
	var out []domain.Bid
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(&b.ID, &b.LotItemID, &b.UserID, &b.AmountCents, &b.Accepted, &b.RejectReason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate bids: %w", err)
	}
	return out, nil
}

// InsertExtension appends one timer extension audit row.
func (s *AuctionStore) InsertExtension(ctx context.Context, ev domain.TimerExtensionEvent) error {
	const query = `
		INSERT INTO timer_extension_events (
			lot_item_id, bid_id, old_end_time, new_end_time, rule,
			sniping_window_ms, reset_length_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		ev.LotItemID, ev.BidID, ev.OldEndTime, ev.NewEndTime, string(ev.Rule),
		ev.SnipingWindow.Milliseconds(), ev.ResetLength.Milliseconds(), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert timer extension for %s: %w", ev.LotItemID, err)
	}
	return nil
}

// ListExtensions returns an item's extension events in order.
func (s *AuctionStore) ListExtensions(ctx context.Context, lotItemID string) ([]domain.TimerExtensionEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+timerEventCols+` FROM timer_extension_events
		 WHERE lot_item_id = $1 ORDER BY created_at`,
		lotItemID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list extensions for %s: %w", lotItemID, err)
	}
	defer rows.Close()
	return collectTimerEvents(rows)
}

// ListExtensionsBefore returns extension events created before the cutoff,
// for archival.
func (s *AuctionStore) ListExtensionsBefore(ctx context.Context, before time.Time) ([]domain.TimerExtensionEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+timerEventCols+` FROM timer_extension_events
		 WHERE created_at < $1 ORDER BY created_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list extensions before %s: %w", before, err)
	}
	defer rows.Close()
	return collectTimerEvents(rows)
}

const timerEventCols = `id, lot_item_id, bid_id, old_end_time, new_end_time, rule,
	sniping_window_ms, reset_length_ms, created_at`

func collectTimerEvents(rows pgx.Rows) ([]domain.TimerExtensionEvent, error) {
	var out []domain.TimerExtensionEvent
	for rows.Next() {
		var ev domain.TimerExtensionEvent
		var rule string
		var windowMS, resetMS int64
		if err := rows.Scan(
			&ev.ID, &ev.LotItemID, &ev.BidID, &ev.OldEndTime, &ev.NewEndTime, &rule,
			&windowMS, &resetMS, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan timer extension: %w", err)
		}
		ev.Rule = domain.ExtensionRule(rule)
		ev.SnipingWindow = time.Duration(windowMS) * time.Millisecond
		ev.ResetLength = time.Duration(resetMS) * time.Millisecond
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate timer extensions: %w", err)
	}
	return out, nil
}

func scanLotItem(scanner interface{ Scan(dest ...any) error }) (domain.LotItem, error) {
	var it domain.LotItem
	var status string
	var durationMS, windowMS, resetMS int64
	err := scanner.Scan(
		&it.ID, &it.LotID, &it.OfferingID, &it.SequenceNumber, &status,
		&it.StartPriceCents, &it.MinIncrementCents, &it.ReservePriceCents,
		&durationMS, &windowMS, &resetMS,
		&it.StartedAt, &it.EndsAt, &it.HighBidID, &it.HighBidCents, &it.HighBidderID,
	)
	if err != nil {
		return domain.LotItem{}, err
	}
	it.Status = domain.LotItemStatus(status)
	it.Duration = time.Duration(durationMS) * time.Millisecond
	it.SnipingWindow = time.Duration(windowMS) * time.Millisecond
	it.ResetLength = time.Duration(resetMS) * time.Millisecond
	return it, nil
}
