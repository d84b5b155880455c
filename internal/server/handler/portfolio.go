package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paddockhq/paddock/internal/domain"
	"github.com/paddockhq/paddock/internal/service"
)

// PortfolioService defines the methods that the portfolio handler requires
// from the service layer.
type PortfolioService interface {
	GetPositions(ctx context.Context, userID string) ([]service.Position, error)
	GetRiskProfile(ctx context.Context, userID string) (domain.RiskProfile, error)
	ListRiskEvents(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.RiskEvent, error)
}

// PortfolioHandler serves position and risk HTTP endpoints.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler with the given service and logger.
func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		portfolio: portfolio,
		logger:    logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []service.Position `json:"positions"`
}

// ListPositions returns the acting user's marked holdings.
// GET /api/positions
func (h *PortfolioHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}

	positions, err := h.portfolio.GetPositions(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []service.Position{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetRiskProfile returns the acting user's limits and live usage.
// GET /api/risk/profile
func (h *PortfolioHandler) GetRiskProfile(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}

	profile, err := h.portfolio.GetRiskProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get risk profile failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get risk profile")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// listRiskEventsResponse wraps the risk event audit list.
type listRiskEventsResponse struct {
	Events []domain.RiskEvent `json:"events"`
}

// ListRiskEvents returns the acting user's risk gate audit trail.
// GET /api/risk/events
func (h *PortfolioHandler) ListRiskEvents(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}

	events, err := h.portfolio.ListRiskEvents(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list risk events failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list risk events")
		return
	}

	if events == nil {
		events = []domain.RiskEvent{}
	}

	writeJSON(w, http.StatusOK, listRiskEventsResponse{Events: events})
}
