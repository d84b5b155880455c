package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddockhq/paddock/internal/domain"
)

// OfferingStore implements domain.OfferingStore using PostgreSQL.
type OfferingStore struct {
	pool *pgxpool.Pool
}

// NewOfferingStore creates an OfferingStore backed by the given pool.
func NewOfferingStore(pool *pgxpool.Pool) *OfferingStore {
	return &OfferingStore{pool: pool}
}

const offeringCols = `id, vehicle_id, name, total_shares,
	current_price_cents, opening_price_cents, closing_price_cents,
	status, uncrossed_policy, trading_opens_at, trading_closes_at,
	created_at, updated_at`

// Create inserts a new offering.
func (s *OfferingStore) Create(ctx context.Context, o domain.Offering) error {
	const query = `
		INSERT INTO offerings (
			id, vehicle_id, name, total_shares,
			current_price_cents, opening_price_cents, closing_price_cents,
			status, uncrossed_policy, trading_opens_at, trading_closes_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`
	_, err := s.pool.Exec(ctx, query,
		o.ID, o.VehicleID, o.Name, o.TotalShares,
		o.CurrentPriceCents, o.OpeningPriceCents, o.ClosingPriceCents,
		string(o.Status), string(o.Uncrossed), o.TradingOpensAt, o.TradingClosesAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create offering %s: %w", o.ID, err)
	}
	return nil
}

// GetByID returns one offering.
func (s *OfferingStore) GetByID(ctx context.Context, id string) (domain.Offering, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+offeringCols+` FROM offerings WHERE id = $1`, id)
	o, err := scanOffering(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Offering{}, domain.ErrNotFound
		}
		return domain.Offering{}, fmt.Errorf("postgres: get offering %s: %w", id, err)
	}
	return o, nil
}

// UpdateStatus advances an offering's lifecycle status.
func (s *OfferingStore) UpdateStatus(ctx context.Context, id string, status domain.OfferingStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE offerings SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update offering status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetOpeningPrice records the opening-auction clearing price.
func (s *OfferingStore) SetOpeningPrice(ctx context.Context, id string, priceCents int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE offerings SET opening_price_cents = $1, current_price_cents = $1, updated_at = NOW() WHERE id = $2`,
		priceCents, id)
	if err != nil {
		return fmt.Errorf("postgres: set opening price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetClosingPrice records the closing-auction clearing price.
func (s *OfferingStore) SetClosingPrice(ctx context.Context, id string, priceCents int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE offerings SET closing_price_cents = $1, current_price_cents = $1, updated_at = NOW() WHERE id = $2`,
		priceCents, id)
	if err != nil {
		return fmt.Errorf("postgres: set closing price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByStatus returns all offerings in one status, oldest session first.
func (s *OfferingStore) ListByStatus(ctx context.Context, status domain.OfferingStatus) ([]domain.Offering, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+offeringCols+` FROM offerings WHERE status = $1 ORDER BY trading_opens_at`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("postgres: list offerings by status %s: %w", status, err)
	}
	defer rows.Close()
	return collectOfferings(rows)
}

// List returns offerings with pagination, newest first.
func (s *OfferingStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Offering, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+offeringCols+` FROM offerings ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list offerings: %w", err)
	}
	defer rows.Close()
	return collectOfferings(rows)
}

func scanOffering(scanner interface{ Scan(dest ...any) error }) (domain.Offering, error) {
	var o domain.Offering
	var status, uncrossed string
	err := scanner.Scan(
		&o.ID, &o.VehicleID, &o.Name, &o.TotalShares,
		&o.CurrentPriceCents, &o.OpeningPriceCents, &o.ClosingPriceCents,
		&status, &uncrossed, &o.TradingOpensAt, &o.TradingClosesAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Offering{}, err
	}
	o.Status = domain.OfferingStatus(status)
	o.Uncrossed = domain.UncrossedPolicy(uncrossed)
	return o, nil
}

func collectOfferings(rows pgx.Rows) ([]domain.Offering, error) {
	var out []domain.Offering
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan offering: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate offerings: %w", err)
	}
	return out, nil
}
