package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddockhq/paddock/internal/domain"
)

// RiskStore implements domain.RiskStore using PostgreSQL.
type RiskStore struct {
	pool *pgxpool.Pool
}

// NewRiskStore creates a RiskStore backed by the given pool.
func NewRiskStore(pool *pgxpool.Pool) *RiskStore {
	return &RiskStore{pool: pool}
}

const riskLimitCols = `user_id, max_position_per_offering, max_position_value_cents,
	max_total_exposure_cents, max_order_value_cents, max_order_shares,
	daily_trade_limit, daily_volume_limit_cents,
	trading_suspended, suspended_until, suspension_reason, updated_at`

// GetOrCreateLimits returns the user's limits row, inserting one from
// defaults on first use.
func (s *RiskStore) GetOrCreateLimits(ctx context.Context, userID string, defaults domain.RiskLimits) (domain.RiskLimits, error) {
	const query = `
		INSERT INTO risk_limits (
			user_id, max_position_per_offering, max_position_value_cents,
			max_total_exposure_cents, max_order_value_cents, max_order_shares,
			daily_trade_limit, daily_volume_limit_cents, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query,
		userID, defaults.MaxPositionPerOffering, defaults.MaxPositionValueCents,
		defaults.MaxTotalExposureCents, defaults.MaxOrderValueCents, defaults.MaxOrderShares,
		defaults.DailyTradeLimit, defaults.DailyVolumeLimitCents,
	); err != nil {
		return domain.RiskLimits{}, fmt.Errorf("postgres: seed risk limits for %s: %w", userID, err)
	}

	row := s.pool.QueryRow(ctx, `SELECT `+riskLimitCols+` FROM risk_limits WHERE user_id = $1`, userID)
	limits, err := scanRiskLimits(row)
	if err != nil {
		return domain.RiskLimits{}, fmt.Errorf("postgres: get risk limits for %s: %w", userID, err)
	}
	return limits, nil
}

// UpdateLimits replaces a user's limit row.
func (s *RiskStore) UpdateLimits(ctx context.Context, limits domain.RiskLimits) error {
	const query = `
		UPDATE risk_limits SET
			max_position_per_offering = $1, max_position_value_cents = $2,
			max_total_exposure_cents = $3, max_order_value_cents = $4,
			max_order_shares = $5, daily_trade_limit = $6,
			daily_volume_limit_cents = $7, trading_suspended = $8,
			suspended_until = $9, suspension_reason = $10, updated_at = NOW()
		WHERE user_id = $11`
	tag, err := s.pool.Exec(ctx, query,
		limits.MaxPositionPerOffering, limits.MaxPositionValueCents,
		limits.MaxTotalExposureCents, limits.MaxOrderValueCents,
		limits.MaxOrderShares, limits.DailyTradeLimit,
		limits.DailyVolumeLimitCents, limits.TradingSuspended,
		limits.SuspendedUntil, limits.SuspensionReason, limits.UserID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update risk limits for %s: %w", limits.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LogEvent appends one risk audit row.
func (s *RiskStore) LogEvent(ctx context.Context, ev domain.RiskEvent) error {
	const query = `
		INSERT INTO risk_events (
			user_id, offering_id, order_id, action,
			limit_name, limit_value, observed_value, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, query,
		ev.UserID, ev.OfferingID, ev.OrderID, string(ev.Action),
		ev.LimitName, ev.LimitValue, ev.ObservedValue, ev.Reason, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: log risk event for %s: %w", ev.UserID, err)
	}
	return nil
}

const riskEventCols = `id, user_id, offering_id, order_id, action,
	limit_name, limit_value, observed_value, reason, created_at`

// ListEvents returns a user's risk events, newest first.
func (s *RiskStore) ListEvents(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.RiskEvent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+riskEventCols+` FROM risk_events
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list risk events for %s: %w", userID, err)
	}
	defer rows.Close()
	return collectRiskEvents(rows)
}

// ListEventsBefore returns risk events created before the cutoff, for
// archival.
func (s *RiskStore) ListEventsBefore(ctx context.Context, before time.Time) ([]domain.RiskEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+riskEventCols+` FROM risk_events WHERE created_at < $1 ORDER BY created_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list risk events before %s: %w", before, err)
	}
	defer rows.Close()
	return collectRiskEvents(rows)
}

func scanRiskLimits(scanner interface{ Scan(dest ...any) error }) (domain.RiskLimits, error) {
	var l domain.RiskLimits
	err := scanner.Scan(
		&l.UserID, &l.MaxPositionPerOffering, &l.MaxPositionValueCents,
		&l.MaxTotalExposureCents, &l.MaxOrderValueCents, &l.MaxOrderShares,
		&l.DailyTradeLimit, &l.DailyVolumeLimitCents,
		&l.TradingSuspended, &l.SuspendedUntil, &l.SuspensionReason, &l.UpdatedAt,
	)
	if err != nil {
		return domain.RiskLimits{}, err
	}
	return l, nil
}

func collectRiskEvents(rows pgx.Rows) ([]domain.RiskEvent, error) {
	var out []domain.RiskEvent
	for rows.Next() {
		var ev domain.RiskEvent
		var action string
		if err := rows.Scan(
			&ev.ID, &ev.UserID, &ev.OfferingID, &ev.OrderID, &action,
			&ev.LimitName, &ev.LimitValue, &ev.ObservedValue, &ev.Reason, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan risk event: %w", err)
		}
		ev.Action = domain.RiskEventAction(action)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate risk events: %w", err)
	}
	return out, nil
}
