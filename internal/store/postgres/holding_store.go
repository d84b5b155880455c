package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddockhq/paddock/internal/domain"
)

// HoldingStore implements domain.HoldingStore using PostgreSQL. Reads only;
// holdings are written inside TradeStore.RecordExecution so the position
// always matches the trade log.
type HoldingStore struct {
	pool *pgxpool.Pool
}

// NewHoldingStore creates a HoldingStore backed by the given pool.
func NewHoldingStore(pool *pgxpool.Pool) *HoldingStore {
	return &HoldingStore{pool: pool}
}

const holdingCols = `user_id, offering_id, shares, avg_entry_price_cents, updated_at`

// Get returns one user's position in one offering.
func (s *HoldingStore) Get(ctx context.Context, userID, offeringID string) (domain.Holding, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+holdingCols+` FROM holdings WHERE user_id = $1 AND offering_id = $2`,
		userID, offeringID)
	h, err := scanHolding(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Holding{}, domain.ErrNotFound
		}
		return domain.Holding{}, fmt.Errorf("postgres: get holding %s/%s: %w", userID, offeringID, err)
	}
	return h, nil
}

// ListByUser returns all of a user's non-empty positions.
func (s *HoldingStore) ListByUser(ctx context.Context, userID string) ([]domain.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+holdingCols+` FROM holdings WHERE user_id = $1 AND shares > 0 ORDER BY offering_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list holdings for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectHoldings(rows)
}

// ListByOffering returns every non-empty position in one offering.
func (s *HoldingStore) ListByOffering(ctx context.Context, offeringID string) ([]domain.Holding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+holdingCols+` FROM holdings WHERE offering_id = $1 AND shares > 0 ORDER BY user_id`,
		offeringID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list holdings for offering %s: %w", offeringID, err)
	}
	defer rows.Close()
	return collectHoldings(rows)
}

func scanHolding(scanner interface{ Scan(dest ...any) error }) (domain.Holding, error) {
	var h domain.Holding
	err := scanner.Scan(&h.UserID, &h.OfferingID, &h.Shares, &h.AvgEntryPriceCents, &h.UpdatedAt)
	if err != nil {
		return domain.Holding{}, err
	}
	return h, nil
}

func collectHoldings(rows pgx.Rows) ([]domain.Holding, error) {
	var out []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan holding: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate holdings: %w", err)
	}
	return out, nil
}
