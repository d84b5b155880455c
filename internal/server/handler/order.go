package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paddockhq/paddock/internal/domain"
	"github.com/paddockhq/paddock/internal/engine"
)

// OrderService defines the methods that the order handler requires from the
// service layer.
type OrderService interface {
	SubmitOrder(ctx context.Context, req engine.SubmitRequest) (domain.SubmitResult, error)
	CancelOrder(ctx context.Context, offeringID, orderID, userID string) error
	GetOrder(ctx context.Context, orderID, userID string) (domain.Order, error)
	ListOpenOrders(ctx context.Context, userID string) ([]domain.Order, error)
	GetOrderBook(ctx context.Context, offeringID string) (engine.BookSnapshot, error)
	ListTrades(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error)
	ListUserTrades(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error)
}

// OrderHandler serves order entry and market data HTTP endpoints.
type OrderHandler struct {
	trading OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates an OrderHandler with the given service and logger.
func NewOrderHandler(trading OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		trading: trading,
		logger:  logger,
	}
}

// submitOrderRequest is the JSON body for submitting an order.
type submitOrderRequest struct {
	OfferingID string `json:"offering_id"`
	Side       string `json:"side"`
	Shares     int64  `json:"shares"`
	PriceCents int64  `json:"price_cents"`
	TIF        string `json:"tif"`
}

// SubmitOrder places a new limit order for the acting user.
// POST /api/orders
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}

	var body submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.OfferingID == "" {
		writeError(w, http.StatusBadRequest, "offering_id is required")
		return
	}

	result, err := h.trading.SubmitOrder(r.Context(), engine.SubmitRequest{
		UserID:     userID,
		OfferingID: body.OfferingID,
		Side:       domain.OrderSide(body.Side),
		Shares:     body.Shares,
		PriceCents: body.PriceCents,
		TIF:        domain.TimeInForce(body.TIF),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limited")
		case errors.Is(err, domain.ErrInvalidOrder):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "offering not found")
		case errors.Is(err, domain.ErrMarketClosed):
			writeError(w, http.StatusConflict, "offering not open for trading")
		default:
			h.logger.ErrorContext(r.Context(), "handler: submit order failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to submit order")
		}
		return
	}

	// Risk-blocked orders are a normal outcome, not a transport error.
	if result.Rejection != nil {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// ListOrders returns the acting user's open orders.
// GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}

	orders, err := h.trading.ListOpenOrders(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

// GetOrder returns one of the acting user's orders by ID.
// GET /api/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	order, err := h.trading.GetOrder(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get order failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// CancelOrder cancels one of the acting user's orders.
// DELETE /api/offerings/{id}/orders/{order_id}
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}
	offeringID := pathParam(r, "id")
	orderID := pathParam(r, "order_id")
	if offeringID == "" || orderID == "" {
		writeError(w, http.StatusBadRequest, "missing offering or order id")
		return
	}

	if err := h.trading.CancelOrder(r.Context(), offeringID, orderID, userID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrAlreadyFilled):
			writeError(w, http.StatusConflict, "order already filled")
		default:
			h.logger.ErrorContext(r.Context(), "handler: cancel order failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "cancelled",
		"order_id": orderID,
	})
}

// GetOrderBook returns an aggregated depth snapshot for one offering.
// GET /api/offerings/{id}/book
func (h *OrderHandler) GetOrderBook(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing offering id")
		return
	}

	snap, err := h.trading.GetOrderBook(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "offering not found")
		case errors.Is(err, domain.ErrMarketClosed):
			writeError(w, http.StatusConflict, "offering not open for trading")
		default:
			h.logger.ErrorContext(r.Context(), "handler: get order book failed",
				slog.String("offering_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to get order book")
		}
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// listTradesResponse wraps the list trades response.
type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// ListTrades returns executed trades for one offering.
// GET /api/offerings/{id}/trades
func (h *OrderHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing offering id")
		return
	}

	trades, err := h.trading.ListTrades(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("offering_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}

// ListUserTrades returns the acting user's executed trades, both sides.
// GET /api/trades
func (h *OrderHandler) ListUserTrades(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}

	trades, err := h.trading.ListUserTrades(r.Context(), userID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list user trades failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
