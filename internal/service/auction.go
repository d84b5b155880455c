package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paddockhq/paddock/internal/auction"
	"github.com/paddockhq/paddock/internal/domain"
)

// AuctionConfig tunes the bidding surface.
type AuctionConfig struct {
	// BidRateLimit caps bids per user per window; zero disables the
	// limiter.
	BidRateLimit  int
	BidRateWindow time.Duration
}

// AuctionService exposes lot management and bidding.
type AuctionService struct {
	mgr     *auction.Manager
	store   domain.AuctionStore
	limiter domain.RateLimiter
	cfg     AuctionConfig
	logger  *slog.Logger
}

// NewAuctionService creates an AuctionService.
func NewAuctionService(
	mgr *auction.Manager,
	store domain.AuctionStore,
	limiter domain.RateLimiter,
	cfg AuctionConfig,
	logger *slog.Logger,
) *AuctionService {
	return &AuctionService{
		mgr:     mgr,
		store:   store,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// CreateLot validates and persists a lot with its items.
func (s *AuctionService) CreateLot(ctx context.Context, lot domain.AuctionLot, items []domain.LotItem) (domain.AuctionLot, error) {
	return s.mgr.CreateLot(ctx, lot, items)
}

// StartLot activates a pending lot.
func (s *AuctionService) StartLot(ctx context.Context, lotID string) error {
	return s.mgr.StartLot(ctx, lotID)
}

// SkipItem skips a pending lot item.
func (s *AuctionService) SkipItem(ctx context.Context, lotItemID string) error {
	return s.mgr.SkipItem(ctx, lotItemID)
}

// PlaceBid rate-limits and forwards a bid to the item's runner.
func (s *AuctionService) PlaceBid(ctx context.Context, lotItemID, userID string, amountCents int64) (domain.BidResult, error) {
	if s.cfg.BidRateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "bids:"+userID, s.cfg.BidRateLimit, s.cfg.BidRateWindow)
		if err != nil {
			s.logger.WarnContext(ctx, "bid rate limiter unavailable",
				slog.String("user_id", userID), slog.Any("error", err))
		} else if !allowed {
			return domain.BidResult{}, fmt.Errorf("service: user %s: %w", userID, domain.ErrRateLimited)
		}
	}
	result, err := s.mgr.PlaceBid(ctx, lotItemID, userID, amountCents)
	if err != nil {
		return domain.BidResult{}, err
	}
	s.logger.InfoContext(ctx, "bid placed",
		slog.String("lot_item_id", lotItemID),
		slog.String("user_id", userID),
		slog.Bool("accepted", result.Accepted),
		slog.Int64("amount_cents", amountCents),
		slog.Bool("extended", result.Extended))
	return result, nil
}

// GetLot returns one lot with its items.
func (s *AuctionService) GetLot(ctx context.Context, lotID string) (domain.AuctionLot, []domain.LotItem, error) {
	lot, err := s.store.GetLot(ctx, lotID)
	if err != nil {
		return domain.AuctionLot{}, nil, err
	}
	items, err := s.store.ListItems(ctx, lotID)
	if err != nil {
		return domain.AuctionLot{}, nil, err
	}
	return lot, items, nil
}

// GetItem returns one lot item.
func (s *AuctionService) GetItem(ctx context.Context, lotItemID string) (domain.LotItem, error) {
	return s.store.GetItem(ctx, lotItemID)
}

// ListBids returns an item's bid history, newest first.
func (s *AuctionService) ListBids(ctx context.Context, lotItemID string, opts domain.ListOpts) ([]domain.Bid, error) {
	return s.store.ListBids(ctx, lotItemID, opts)
}

// ListExtensions returns an item's timer extension audit trail.
func (s *AuctionService) ListExtensions(ctx context.Context, lotItemID string) ([]domain.TimerExtensionEvent, error) {
	return s.store.ListExtensions(ctx, lotItemID)
}
