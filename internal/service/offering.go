package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paddockhq/paddock/internal/domain"
)

// OfferingService manages offering lifecycle and listing.
type OfferingService struct {
	offerings domain.OfferingStore
	prices    domain.PriceCache
	logger    *slog.Logger
	now       func() time.Time
}

// NewOfferingService creates an OfferingService.
func NewOfferingService(offerings domain.OfferingStore, prices domain.PriceCache, logger *slog.Logger) *OfferingService {
	return &OfferingService{
		offerings: offerings,
		prices:    prices,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOfferingRequest carries the parameters for listing a vehicle for
// fractional trading.
type CreateOfferingRequest struct {
	VehicleID         string
	Name              string
	TotalShares       int64
	InitialPriceCents int64
	Uncrossed         domain.UncrossedPolicy
	TradingOpensAt    time.Time
	TradingClosesAt   time.Time
}

// CreateOffering validates and persists a new offering in scheduled status.
func (s *OfferingService) CreateOffering(ctx context.Context, req CreateOfferingRequest) (domain.Offering, error) {
	if req.VehicleID == "" || req.Name == "" {
		return domain.Offering{}, fmt.Errorf("service: offering needs vehicle and name: %w", domain.ErrInvalidOrder)
	}
	if req.TotalShares <= 0 || req.InitialPriceCents <= 0 {
		return domain.Offering{}, fmt.Errorf("service: offering shares/price: %w", domain.ErrInvalidOrder)
	}
	if !req.TradingClosesAt.After(req.TradingOpensAt) {
		return domain.Offering{}, fmt.Errorf("service: offering trading window: %w", domain.ErrInvalidOrder)
	}
	policy := req.Uncrossed
	if policy == "" {
		policy = domain.UncrossedCarry
	}
	o := domain.Offering{
		ID:                uuid.NewString(),
		VehicleID:         req.VehicleID,
		Name:              req.Name,
		TotalShares:       req.TotalShares,
		CurrentPriceCents: req.InitialPriceCents,
		Status:            domain.OfferingStatusScheduled,
		Uncrossed:         policy,
		TradingOpensAt:    req.TradingOpensAt,
		TradingClosesAt:   req.TradingClosesAt,
	}
	if err := s.offerings.Create(ctx, o); err != nil {
		return domain.Offering{}, err
	}
	s.logger.InfoContext(ctx, "offering created",
		slog.String("offering_id", o.ID),
		slog.String("vehicle_id", o.VehicleID),
		slog.Int64("total_shares", o.TotalShares),
		slog.Time("trading_opens_at", o.TradingOpensAt))
	return o, nil
}

// GetOffering returns one offering with its freshest cached price applied.
func (s *OfferingService) GetOffering(ctx context.Context, id string) (domain.Offering, error) {
	o, err := s.offerings.GetByID(ctx, id)
	if err != nil {
		return domain.Offering{}, err
	}
	if cents, _, err := s.prices.GetPrice(ctx, id); err == nil && cents > 0 {
		o.CurrentPriceCents = cents
	}
	return o, nil
}

// ListOfferings returns offerings with pagination.
func (s *OfferingService) ListOfferings(ctx context.Context, opts domain.ListOpts) ([]domain.Offering, error) {
	return s.offerings.List(ctx, opts)
}

// CancelOffering cancels an offering that has not finished trading.
func (s *OfferingService) CancelOffering(ctx context.Context, id string) error {
	o, err := s.offerings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !o.CanTransition(domain.OfferingStatusCancelled) {
		return fmt.Errorf("service: cancel offering %s from status %s: %w", id, o.Status, domain.ErrMarketClosed)
	}
	if err := s.offerings.UpdateStatus(ctx, id, domain.OfferingStatusCancelled); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "offering cancelled", slog.String("offering_id", id))
	return nil
}
