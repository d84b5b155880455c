package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

// Scheduler walks offerings through their trading session on a fixed tick:
// scheduled offerings start collecting orders ahead of the open, open with a
// call auction at the session start, stop matching at the session end, and
// clear the closing cross once the closing window has elapsed.
type Scheduler struct {
	eng       *Engine
	offerings domain.OfferingStore
	interval  time.Duration
	// collect is how long before the session open an offering starts
	// accepting orders for the opening auction.
	collect time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewScheduler builds a session scheduler ticking at interval.
func NewScheduler(eng *Engine, offerings domain.OfferingStore, interval, collect time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{
		eng:       eng,
		offerings: offerings,
		interval:  interval,
		collect:   collect,
		logger:    logger,
		now:       time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.InfoContext(ctx, "session scheduler started", slog.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	scheduled, err := s.offerings.ListByStatus(ctx, domain.OfferingStatusScheduled)
	if err != nil {
		s.logger.WarnContext(ctx, "list scheduled offerings failed", slog.Any("error", err))
	}
	for _, off := range scheduled {
		if now.Before(off.TradingOpensAt.Add(-s.collect)) {
			continue
		}
		if err := s.offerings.UpdateStatus(ctx, off.ID, domain.OfferingStatusActive); err != nil {
			s.logger.WarnContext(ctx, "start order collection failed",
				slog.String("offering_id", off.ID), slog.Any("error", err))
			continue
		}
		s.logger.InfoContext(ctx, "order collection opened",
			slog.String("offering_id", off.ID),
			slog.Time("trading_opens_at", off.TradingOpensAt))
	}

	collecting, err := s.offerings.ListByStatus(ctx, domain.OfferingStatusActive)
	if err != nil {
		s.logger.WarnContext(ctx, "list collecting offerings failed", slog.Any("error", err))
	}
	for _, off := range collecting {
		if now.Before(off.TradingOpensAt) {
			continue
		}
		if err := s.eng.OpenTrading(ctx, off.ID); err != nil {
			s.logger.WarnContext(ctx, "open trading failed",
				slog.String("offering_id", off.ID), slog.Any("error", err))
		}
	}

	trading, err := s.offerings.ListByStatus(ctx, domain.OfferingStatusTrading)
	if err != nil {
		s.logger.WarnContext(ctx, "list trading offerings failed", slog.Any("error", err))
	}
	for _, off := range trading {
		if now.Before(off.TradingClosesAt) {
			continue
		}
		if err := s.eng.BeginClosingAuction(ctx, off.ID); err != nil {
			s.logger.WarnContext(ctx, "begin closing auction failed",
				slog.String("offering_id", off.ID), slog.Any("error", err))
		}
	}

	closing, err := s.offerings.ListByStatus(ctx, domain.OfferingStatusClosingAuction)
	if err != nil {
		s.logger.WarnContext(ctx, "list closing offerings failed", slog.Any("error", err))
	}
	for _, off := range closing {
		if now.Before(off.TradingClosesAt.Add(s.eng.cfg.ClosingWindow)) {
			continue
		}
		if err := s.eng.CompleteClosingAuction(ctx, off.ID); err != nil {
			s.logger.WarnContext(ctx, "complete closing auction failed",
				slog.String("offering_id", off.ID), slog.Any("error", err))
		}
	}
}
