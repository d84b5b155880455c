package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/paddockhq/paddock/internal/server/handler"
	"github.com/paddockhq/paddock/internal/server/middleware"
	"github.com/paddockhq/paddock/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Offerings *handler.OfferingHandler
	Orders    *handler.OrderHandler
	Portfolio *handler.PortfolioHandler
	Auctions  *handler.AuctionHandler
}

// Server is the headless HTTP + WebSocket API for the trading platform.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Offering lifecycle and market data.
	mux.HandleFunc("GET /api/offerings", handlers.Offerings.ListOfferings)
	mux.HandleFunc("POST /api/offerings", handlers.Offerings.CreateOffering)
	mux.HandleFunc("GET /api/offerings/{id}", handlers.Offerings.GetOffering)
	mux.HandleFunc("DELETE /api/offerings/{id}", handlers.Offerings.CancelOffering)
	mux.HandleFunc("GET /api/offerings/{id}/book", handlers.Orders.GetOrderBook)
	mux.HandleFunc("GET /api/offerings/{id}/trades", handlers.Orders.ListTrades)

	// Order entry.
	mux.HandleFunc("GET /api/orders", handlers.Orders.ListOrders)
	mux.HandleFunc("POST /api/orders", handlers.Orders.SubmitOrder)
	mux.HandleFunc("GET /api/orders/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("DELETE /api/offerings/{id}/orders/{order_id}", handlers.Orders.CancelOrder)
	mux.HandleFunc("GET /api/trades", handlers.Orders.ListUserTrades)

	// Positions and risk.
	mux.HandleFunc("GET /api/positions", handlers.Portfolio.ListPositions)
	mux.HandleFunc("GET /api/risk/profile", handlers.Portfolio.GetRiskProfile)
	mux.HandleFunc("GET /api/risk/events", handlers.Portfolio.ListRiskEvents)

	// Live auctions.
	mux.HandleFunc("POST /api/lots", handlers.Auctions.CreateLot)
	mux.HandleFunc("GET /api/lots/{id}", handlers.Auctions.GetLot)
	mux.HandleFunc("POST /api/lots/{id}/start", handlers.Auctions.StartLot)
	mux.HandleFunc("GET /api/items/{id}", handlers.Auctions.GetItem)
	mux.HandleFunc("POST /api/items/{id}/skip", handlers.Auctions.SkipItem)
	mux.HandleFunc("POST /api/items/{id}/bids", handlers.Auctions.PlaceBid)
	mux.HandleFunc("GET /api/items/{id}/bids", handlers.Auctions.ListBids)
	mux.HandleFunc("GET /api/items/{id}/extensions", handlers.Auctions.ListExtensions)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain: auth innermost, CORS outermost so
	// preflight requests never hit the auth check.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
