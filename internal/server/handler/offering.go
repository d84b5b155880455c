package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
	"github.com/paddockhq/paddock/internal/service"
)

// OfferingService defines the methods that the offering handler requires
// from the service layer.
type OfferingService interface {
	CreateOffering(ctx context.Context, req service.CreateOfferingRequest) (domain.Offering, error)
	GetOffering(ctx context.Context, id string) (domain.Offering, error)
	ListOfferings(ctx context.Context, opts domain.ListOpts) ([]domain.Offering, error)
	CancelOffering(ctx context.Context, id string) error
}

// OfferingHandler serves offering-related HTTP endpoints.
type OfferingHandler struct {
	offerings OfferingService
	logger    *slog.Logger
}

// NewOfferingHandler creates an OfferingHandler with the given service and logger.
func NewOfferingHandler(offerings OfferingService, logger *slog.Logger) *OfferingHandler {
	return &OfferingHandler{
		offerings: offerings,
		logger:    logger,
	}
}

// createOfferingRequest is the JSON body for creating an offering.
type createOfferingRequest struct {
	VehicleID         string    `json:"vehicle_id"`
	Name              string    `json:"name"`
	TotalShares       int64     `json:"total_shares"`
	InitialPriceCents int64     `json:"initial_price_cents"`
	UncrossedPolicy   string    `json:"uncrossed_policy"`
	TradingOpensAt    time.Time `json:"trading_opens_at"`
	TradingClosesAt   time.Time `json:"trading_closes_at"`
}

// CreateOffering lists a new vehicle for fractional trading.
// POST /api/offerings
func (h *OfferingHandler) CreateOffering(w http.ResponseWriter, r *http.Request) {
	var body createOfferingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	o, err := h.offerings.CreateOffering(r.Context(), service.CreateOfferingRequest{
		VehicleID:         body.VehicleID,
		Name:              body.Name,
		TotalShares:       body.TotalShares,
		InitialPriceCents: body.InitialPriceCents,
		Uncrossed:         domain.UncrossedPolicy(body.UncrossedPolicy),
		TradingOpensAt:    body.TradingOpensAt,
		TradingClosesAt:   body.TradingClosesAt,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: create offering failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create offering")
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

// GetOffering returns one offering by ID.
// GET /api/offerings/{id}
func (h *OfferingHandler) GetOffering(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing offering id")
		return
	}

	o, err := h.offerings.GetOffering(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "offering not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get offering failed",
			slog.String("offering_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get offering")
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// listOfferingsResponse wraps the list offerings response.
type listOfferingsResponse struct {
	Offerings []domain.Offering `json:"offerings"`
}

// ListOfferings returns offerings ordered by trading open time.
// GET /api/offerings?limit=50&offset=0
func (h *OfferingHandler) ListOfferings(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	offerings, err := h.offerings.ListOfferings(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list offerings failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list offerings")
		return
	}

	if offerings == nil {
		offerings = []domain.Offering{}
	}

	writeJSON(w, http.StatusOK, listOfferingsResponse{Offerings: offerings})
}

// CancelOffering cancels a scheduled offering before trading begins.
// DELETE /api/offerings/{id}
func (h *OfferingHandler) CancelOffering(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing offering id")
		return
	}

	if err := h.offerings.CancelOffering(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "offering not found")
			return
		}
		if errors.Is(err, domain.ErrMarketClosed) {
			writeError(w, http.StatusConflict, "offering already open or closed")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: cancel offering failed",
			slog.String("offering_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to cancel offering")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "cancelled",
		"offering_id": id,
	})
}
