package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

// AuctionService defines the methods that the auction handler requires from
// the service layer.
type AuctionService interface {
	CreateLot(ctx context.Context, lot domain.AuctionLot, items []domain.LotItem) (domain.AuctionLot, error)
	StartLot(ctx context.Context, lotID string) error
	SkipItem(ctx context.Context, lotItemID string) error
	PlaceBid(ctx context.Context, lotItemID, userID string, amountCents int64) (domain.BidResult, error)
	GetLot(ctx context.Context, lotID string) (domain.AuctionLot, []domain.LotItem, error)
	GetItem(ctx context.Context, lotItemID string) (domain.LotItem, error)
	ListBids(ctx context.Context, lotItemID string, opts domain.ListOpts) ([]domain.Bid, error)
	ListExtensions(ctx context.Context, lotItemID string) ([]domain.TimerExtensionEvent, error)
}

// AuctionHandler serves live-auction HTTP endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given service and logger.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		logger:   logger,
	}
}

// createLotItemRequest is one item in a lot creation body. Durations are in
// milliseconds.
type createLotItemRequest struct {
	OfferingID        string `json:"offering_id"`
	SequenceNumber    int    `json:"sequence_number"`
	StartPriceCents   int64  `json:"start_price_cents"`
	MinIncrementCents int64  `json:"min_increment_cents"`
	ReservePriceCents int64  `json:"reserve_price_cents"`
	DurationMs        int64  `json:"duration_ms"`
	SnipingWindowMs   int64  `json:"sniping_window_ms"`
	ResetLengthMs     int64  `json:"reset_length_ms"`
}

// createLotRequest is the JSON body for scheduling an auction lot.
type createLotRequest struct {
	Title string                 `json:"title"`
	Type  string                 `json:"type"`
	Items []createLotItemRequest `json:"items"`
}

// CreateLot schedules a new auction lot with its items.
// POST /api/lots
func (h *AuctionHandler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var body createLotRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	items := make([]domain.LotItem, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, domain.LotItem{
			OfferingID:        it.OfferingID,
			SequenceNumber:    it.SequenceNumber,
			StartPriceCents:   it.StartPriceCents,
			MinIncrementCents: it.MinIncrementCents,
			ReservePriceCents: it.ReservePriceCents,
			Duration:          time.Duration(it.DurationMs) * time.Millisecond,
			SnipingWindow:     time.Duration(it.SnipingWindowMs) * time.Millisecond,
			ResetLength:       time.Duration(it.ResetLengthMs) * time.Millisecond,
		})
	}

	lot, err := h.auctions.CreateLot(r.Context(), domain.AuctionLot{
		Title: body.Title,
		Type:  domain.LotType(body.Type),
	}, items)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create lot failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create lot")
		return
	}

	writeJSON(w, http.StatusCreated, lot)
}

// StartLot opens bidding on a pending lot.
// POST /api/lots/{id}/start
func (h *AuctionHandler) StartLot(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing lot id")
		return
	}

	if err := h.auctions.StartLot(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "lot not found")
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "lot is being started elsewhere")
		case errors.Is(err, domain.ErrAuctionClosed):
			writeError(w, http.StatusConflict, "lot is not pending")
		default:
			h.logger.ErrorContext(r.Context(), "handler: start lot failed",
				slog.String("lot_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to start lot")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "started",
		"lot_id": id,
	})
}

// lotResponse pairs a lot with its items.
type lotResponse struct {
	Lot   domain.AuctionLot `json:"lot"`
	Items []domain.LotItem  `json:"items"`
}

// GetLot returns one lot with its items.
// GET /api/lots/{id}
func (h *AuctionHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing lot id")
		return
	}

	lot, items, err := h.auctions.GetLot(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lot not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get lot failed",
			slog.String("lot_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get lot")
		return
	}

	if items == nil {
		items = []domain.LotItem{}
	}

	writeJSON(w, http.StatusOK, lotResponse{Lot: lot, Items: items})
}

// GetItem returns one lot item.
// GET /api/items/{id}
func (h *AuctionHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	item, err := h.auctions.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "item not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get item failed",
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// SkipItem marks a pending item as skipped so the sequencer passes over it.
// POST /api/items/{id}/skip
func (h *AuctionHandler) SkipItem(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	if err := h.auctions.SkipItem(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "item not found")
		case errors.Is(err, domain.ErrAuctionClosed):
			writeError(w, http.StatusConflict, "item is not pending")
		default:
			h.logger.ErrorContext(r.Context(), "handler: skip item failed",
				slog.String("item_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to skip item")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "skipped",
		"item_id": id,
	})
}

// placeBidRequest is the JSON body for placing a bid.
type placeBidRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

// PlaceBid places a bid on an active lot item for the acting user.
// POST /api/items/{id}/bids
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID := userParam(r)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user identity")
		return
	}
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	var body placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.auctions.PlaceBid(r.Context(), id, userID, body.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limited")
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "item not found")
		case errors.Is(err, domain.ErrAuctionClosed):
			writeError(w, http.StatusConflict, "auction closed")
		default:
			h.logger.ErrorContext(r.Context(), "handler: place bid failed",
				slog.String("item_id", id),
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to place bid")
		}
		return
	}

	// Rejected bids are recorded and reported, not transport errors.
	if !result.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// listBidsResponse wraps the bids list.
type listBidsResponse struct {
	Bids []domain.Bid `json:"bids"`
}

// ListBids returns the bid history for one item, accepted and rejected.
// GET /api/items/{id}/bids
func (h *AuctionHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	bids, err := h.auctions.ListBids(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list bids failed",
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list bids")
		return
	}

	if bids == nil {
		bids = []domain.Bid{}
	}

	writeJSON(w, http.StatusOK, listBidsResponse{Bids: bids})
}

// listExtensionsResponse wraps the timer extension audit list.
type listExtensionsResponse struct {
	Extensions []domain.TimerExtensionEvent `json:"extensions"`
}

// ListExtensions returns the timer extension audit trail for one item.
// GET /api/items/{id}/extensions
func (h *AuctionHandler) ListExtensions(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing item id")
		return
	}

	extensions, err := h.auctions.ListExtensions(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list extensions failed",
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list extensions")
		return
	}

	if extensions == nil {
		extensions = []domain.TimerExtensionEvent{}
	}

	writeJSON(w, http.StatusOK, listExtensionsResponse{Extensions: extensions})
}
