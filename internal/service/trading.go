// Package service composes the domain stores, the matching engine, the risk
// ledger, and the auction manager into the operations the transport layer
// exposes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
	"github.com/paddockhq/paddock/internal/engine"
)

// TradingConfig tunes the order entry surface.
type TradingConfig struct {
	// OrderRateLimit caps order submissions per user per window; zero
	// disables the limiter.
	OrderRateLimit  int
	OrderRateWindow time.Duration
}

// TradingService handles order entry, cancellation, and market data reads.
type TradingService struct {
	eng     *engine.Engine
	orders  domain.OrderStore
	trades  domain.TradeStore
	limiter domain.RateLimiter
	cfg     TradingConfig
	logger  *slog.Logger
}

// NewTradingService creates a TradingService with all required dependencies.
func NewTradingService(
	eng *engine.Engine,
	orders domain.OrderStore,
	trades domain.TradeStore,
	limiter domain.RateLimiter,
	cfg TradingConfig,
	logger *slog.Logger,
) *TradingService {
	return &TradingService{
		eng:     eng,
		orders:  orders,
		trades:  trades,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// SubmitOrder rate-limits and forwards an order to the matching engine.
func (s *TradingService) SubmitOrder(ctx context.Context, req engine.SubmitRequest) (domain.SubmitResult, error) {
	if s.cfg.OrderRateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "orders:"+req.UserID, s.cfg.OrderRateLimit, s.cfg.OrderRateWindow)
		if err != nil {
			// A broken limiter must not halt trading.
			s.logger.WarnContext(ctx, "order rate limiter unavailable",
				slog.String("user_id", req.UserID), slog.Any("error", err))
		} else if !allowed {
			return domain.SubmitResult{}, fmt.Errorf("service: user %s: %w", req.UserID, domain.ErrRateLimited)
		}
	}
	result, err := s.eng.SubmitOrder(ctx, req)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	s.logger.InfoContext(ctx, "order submitted",
		slog.String("order_id", result.OrderID),
		slog.String("offering_id", req.OfferingID),
		slog.String("user_id", req.UserID),
		slog.String("status", string(result.Status)),
		slog.Int64("shares_filled", result.SharesFilled))
	return result, nil
}

// CancelOrder cancels a user's resting order.
func (s *TradingService) CancelOrder(ctx context.Context, offeringID, orderID, userID string) error {
	return s.eng.CancelOrder(ctx, offeringID, orderID, userID)
}

// GetOrder returns one order, restricted to its owner.
func (s *TradingService) GetOrder(ctx context.Context, orderID, userID string) (domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != userID {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

// ListOpenOrders returns a user's resting orders.
func (s *TradingService) ListOpenOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListOpenByUser(ctx, userID)
}

// GetOrderBook returns aggregated depth for one offering.
func (s *TradingService) GetOrderBook(ctx context.Context, offeringID string) (engine.BookSnapshot, error) {
	return s.eng.Snapshot(ctx, offeringID)
}

// ListTrades returns an offering's trade history.
func (s *TradingService) ListTrades(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.trades.ListByOffering(ctx, offeringID, opts)
}

// ListUserTrades returns a user's trade history.
func (s *TradingService) ListUserTrades(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.trades.ListByUser(ctx, userID, opts)
}
