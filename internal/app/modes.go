package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paddockhq/paddock/internal/auction"
	"github.com/paddockhq/paddock/internal/domain"
	"github.com/paddockhq/paddock/internal/engine"
	"github.com/paddockhq/paddock/internal/risk"
	"github.com/paddockhq/paddock/internal/server"
	"github.com/paddockhq/paddock/internal/server/handler"
	"github.com/paddockhq/paddock/internal/server/ws"
	"github.com/paddockhq/paddock/internal/service"
)

// core bundles the domain subsystems shared across modes. Every mode
// constructs the full set so the HTTP surface is uniform; each mode only
// RUNS the subsystems it owns.
type core struct {
	ledger    *risk.Ledger
	eng       *engine.Engine
	scheduler *engine.Scheduler
	manager   *auction.Manager

	trading   *service.TradingService
	offerings *service.OfferingService
	portfolio *service.PortfolioService
	auctions  *service.AuctionService
}

// buildCore constructs the risk ledger, matching engine, session scheduler,
// auction manager, and the service layer on top of them.
func (a *App) buildCore(deps *Dependencies) *core {
	ledger := risk.NewLedger(
		deps.RiskStore, deps.HoldingStore, deps.TradeStore, deps.PriceCache,
		domain.RiskLimits{
			MaxPositionPerOffering: a.cfg.Risk.MaxPositionPerOffering,
			MaxPositionValueCents:  a.cfg.Risk.MaxPositionValueCents,
			MaxTotalExposureCents:  a.cfg.Risk.MaxTotalExposureCents,
			MaxOrderValueCents:     a.cfg.Risk.MaxOrderValueCents,
			MaxOrderShares:         a.cfg.Risk.MaxOrderShares,
			DailyTradeLimit:        a.cfg.Risk.DailyTradeLimit,
			DailyVolumeLimitCents:  a.cfg.Risk.DailyVolumeLimitCents,
		},
		a.logger,
	)

	eng := engine.NewEngine(
		deps.OfferingStore, deps.OrderStore, deps.TradeStore, deps.HoldingStore,
		ledger, deps.PriceCache, deps.SignalBus,
		engine.Config{
			CommissionBps: a.cfg.Engine.CommissionBps,
			ClosingWindow: a.cfg.Engine.ClosingWindow.Duration,
		},
		a.logger,
	)

	scheduler := engine.NewScheduler(
		eng, deps.OfferingStore,
		a.cfg.Engine.SchedulerInterval.Duration,
		a.cfg.Engine.CollectWindow.Duration,
		a.logger,
	)

	manager := auction.NewManager(deps.AuctionStore, deps.SignalBus, deps.LockManager, a.logger)

	return &core{
		ledger:    ledger,
		eng:       eng,
		scheduler: scheduler,
		manager:   manager,
		trading: service.NewTradingService(
			eng, deps.OrderStore, deps.TradeStore, deps.RateLimiter,
			service.TradingConfig{
				OrderRateLimit:  a.cfg.Engine.OrderRateLimit,
				OrderRateWindow: a.cfg.Engine.OrderRateWindow.Duration,
			},
			a.logger,
		),
		offerings: service.NewOfferingService(deps.OfferingStore, deps.PriceCache, a.logger),
		portfolio: service.NewPortfolioService(
			deps.HoldingStore, deps.PriceCache, ledger, deps.RiskStore, a.logger,
		),
		auctions: service.NewAuctionService(
			manager, deps.AuctionStore, deps.RateLimiter,
			service.AuctionConfig{
				BidRateLimit:  a.cfg.Auction.BidRateLimit,
				BidRateWindow: a.cfg.Auction.BidRateWindow.Duration,
			},
			a.logger,
		),
	}
}

// TradingMode runs the matching engine and session scheduler with the HTTP
// API. Live auctions are served read-only (no runners).
func (a *App) TradingMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trading mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore(deps)

	g.Go(func() error { return c.eng.Run(ctx) })
	g.Go(func() error { return c.scheduler.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, c)
	}

	return g.Wait()
}

// AuctionsMode runs the live auction manager with the HTTP API. The matching
// engine is not started; order submission returns errors.
func (a *App) AuctionsMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting auctions mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore(deps)

	g.Go(func() error { return c.manager.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, c)
	}

	return g.Wait()
}

// ArchiveMode runs only the cold-storage sweep. No HTTP API.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires archive.enabled and S3 configuration")
	}

	sweep := service.NewArchiveService(deps.Archiver, deps.LockManager,
		service.ArchiveConfig{
			Interval:  a.cfg.Archive.Interval.Duration,
			Retention: a.cfg.Archive.Retention.Duration,
		},
		a.logger,
	)
	return sweep.Run(ctx)
}

// FullMode runs every subsystem: matching engine, session scheduler, auction
// manager, cold-storage sweep (when configured), and the HTTP API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	c := a.buildCore(deps)

	g.Go(func() error { return c.eng.Run(ctx) })
	g.Go(func() error { return c.scheduler.Run(ctx) })
	g.Go(func() error { return c.manager.Run(ctx) })

	if deps.Archiver != nil {
		sweep := service.NewArchiveService(deps.Archiver, deps.LockManager,
			service.ArchiveConfig{
				Interval:  a.cfg.Archive.Interval.Duration,
				Retention: a.cfg.Archive.Retention.Duration,
			},
			a.logger,
		)
		g.Go(func() error { return sweep.Run(ctx) })
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, c)
	}

	return g.Wait()
}

// startHTTPServer builds the handler set, the WebSocket hub, and the HTTP
// server, and registers their goroutines on the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *core) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error { return hub.Run(ctx) })

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Offerings: handler.NewOfferingHandler(c.offerings, a.logger),
			Orders:    handler.NewOrderHandler(c.trading, a.logger),
			Portfolio: handler.NewPortfolioHandler(c.portfolio, a.logger),
			Auctions:  handler.NewAuctionHandler(c.auctions, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error { return srv.Start() })

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
