package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

const archiveLockTTL = 5 * time.Minute

// ArchiveConfig tunes the cold-storage sweep.
type ArchiveConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration
	// Retention is how long rows stay in the primary store before they
	// are archived.
	Retention time.Duration
}

// ArchiveService periodically copies aged trades and audit events to object
// storage. The sweep takes a distributed lock so only one instance uploads.
type ArchiveService struct {
	archiver domain.Archiver
	locks    domain.LockManager
	cfg      ArchiveConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(archiver domain.Archiver, locks domain.LockManager, cfg ArchiveConfig, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		archiver: archiver,
		locks:    locks,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *ArchiveService) Run(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.InfoContext(ctx, "archive sweep started",
		slog.Duration("interval", interval),
		slog.Duration("retention", s.cfg.Retention))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ArchiveService) sweep(ctx context.Context) {
	unlock, err := s.locks.Acquire(ctx, "archive:sweep", archiveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return
		}
		s.logger.WarnContext(ctx, "archive lock failed", slog.Any("error", err))
		return
	}
	defer unlock()

	before := s.now().Add(-s.cfg.Retention)
	trades, err := s.archiver.ArchiveTrades(ctx, before)
	if err != nil {
		s.logger.ErrorContext(ctx, "archive trades failed", slog.Any("error", err))
	}
	riskEvents, err := s.archiver.ArchiveRiskEvents(ctx, before)
	if err != nil {
		s.logger.ErrorContext(ctx, "archive risk events failed", slog.Any("error", err))
	}
	timerEvents, err := s.archiver.ArchiveTimerEvents(ctx, before)
	if err != nil {
		s.logger.ErrorContext(ctx, "archive timer events failed", slog.Any("error", err))
	}
	if trades+riskEvents+timerEvents > 0 {
		s.logger.InfoContext(ctx, "archive sweep complete",
			slog.Time("before", before),
			slog.Int64("trades", trades),
			slog.Int64("risk_events", riskEvents),
			slog.Int64("timer_events", timerEvents))
	}
}
