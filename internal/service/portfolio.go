package service

import (
	"context"
	"log/slog"

	"github.com/paddockhq/paddock/internal/domain"
	"github.com/paddockhq/paddock/internal/risk"
)

// Position is a holding marked to the latest cached price.
type Position struct {
	Holding          domain.Holding
	MarkPriceCents   int64
	MarketValueCents int64
	// UnrealizedCents is market value minus cost basis at the average
	// entry price.
	UnrealizedCents int64
}

// PortfolioService reads positions and risk state for display.
type PortfolioService struct {
	holdings domain.HoldingStore
	prices   domain.PriceCache
	ledger   *risk.Ledger
	events   domain.RiskStore
	logger   *slog.Logger
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(
	holdings domain.HoldingStore,
	prices domain.PriceCache,
	ledger *risk.Ledger,
	events domain.RiskStore,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		holdings: holdings,
		prices:   prices,
		ledger:   ledger,
		events:   events,
		logger:   logger,
	}
}

// GetPositions returns a user's holdings marked to the latest cached prices,
// falling back to the average entry price when no quote exists.
func (s *PortfolioService) GetPositions(ctx context.Context, userID string) ([]Position, error) {
	holdings, err := s.holdings.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(holdings) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		ids = append(ids, h.OfferingID)
	}
	marks, err := s.prices.GetPrices(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "price cache read failed, marking at entry price",
			slog.String("user_id", userID), slog.Any("error", err))
		marks = nil
	}
	out := make([]Position, 0, len(holdings))
	for _, h := range holdings {
		mark := marks[h.OfferingID]
		if mark <= 0 {
			mark = h.AvgEntryPriceCents
		}
		value := h.MarketValueCents(mark)
		out = append(out, Position{
			Holding:          h,
			MarkPriceCents:   mark,
			MarketValueCents: value,
			UnrealizedCents:  value - h.Shares*h.AvgEntryPriceCents,
		})
	}
	return out, nil
}

// GetRiskProfile returns a user's limits and live usage.
func (s *PortfolioService) GetRiskProfile(ctx context.Context, userID string) (domain.RiskProfile, error) {
	return s.ledger.Profile(ctx, userID)
}

// ListRiskEvents returns a user's risk audit trail, newest first.
func (s *PortfolioService) ListRiskEvents(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.RiskEvent, error) {
	return s.events.ListEvents(ctx, userID, opts)
}
