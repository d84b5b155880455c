package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

type stubOfferingStore struct {
	offerings map[string]domain.Offering
	statuses  []domain.OfferingStatus
}

func newStubOfferingStore() *stubOfferingStore {
	return &stubOfferingStore{offerings: make(map[string]domain.Offering)}
}

func (s *stubOfferingStore) Create(ctx context.Context, o domain.Offering) error {
	s.offerings[o.ID] = o
	return nil
}

func (s *stubOfferingStore) GetByID(ctx context.Context, id string) (domain.Offering, error) {
	o, ok := s.offerings[id]
	if !ok {
		return domain.Offering{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *stubOfferingStore) UpdateStatus(ctx context.Context, id string, status domain.OfferingStatus) error {
	o := s.offerings[id]
	o.Status = status
	s.offerings[id] = o
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *stubOfferingStore) SetOpeningPrice(ctx context.Context, id string, priceCents int64) error {
	return nil
}

func (s *stubOfferingStore) SetClosingPrice(ctx context.Context, id string, priceCents int64) error {
	return nil
}

func (s *stubOfferingStore) ListByStatus(ctx context.Context, status domain.OfferingStatus) ([]domain.Offering, error) {
	return nil, nil
}

func (s *stubOfferingStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Offering, error) {
	return nil, nil
}

type stubPriceCache struct {
	prices map[string]int64
}

func (p *stubPriceCache) SetPrice(ctx context.Context, offeringID string, priceCents int64, ts time.Time) error {
	return nil
}

func (p *stubPriceCache) GetPrice(ctx context.Context, offeringID string) (int64, time.Time, error) {
	v, ok := p.prices[offeringID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return v, time.Time{}, nil
}

func (p *stubPriceCache) GetPrices(ctx context.Context, offeringIDs []string) (map[string]int64, error) {
	return p.prices, nil
}

func newOfferingService(store *stubOfferingStore, prices *stubPriceCache) *OfferingService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOfferingService(store, prices, logger)
}

func validCreateRequest() CreateOfferingRequest {
	opens := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	return CreateOfferingRequest{
		VehicleID:         "veh-1",
		Name:              "1967 Roadster",
		TotalShares:       1000,
		InitialPriceCents: 4000,
		TradingOpensAt:    opens,
		TradingClosesAt:   opens.Add(8 * time.Hour),
	}
}

func TestCreateOffering(t *testing.T) {
	store := newStubOfferingStore()
	svc := newOfferingService(store, &stubPriceCache{})

	o, err := svc.CreateOffering(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}
	if o.ID == "" {
		t.Error("offering ID is empty")
	}
	if o.Status != domain.OfferingStatusScheduled {
		t.Errorf("Status = %s, want scheduled", o.Status)
	}
	if o.Uncrossed != domain.UncrossedCarry {
		t.Errorf("Uncrossed = %s, want carry default", o.Uncrossed)
	}
	if o.CurrentPriceCents != 4000 {
		t.Errorf("CurrentPriceCents = %d, want the initial price", o.CurrentPriceCents)
	}
	if _, ok := store.offerings[o.ID]; !ok {
		t.Error("offering not persisted")
	}
}

func TestCreateOfferingValidation(t *testing.T) {
	svc := newOfferingService(newStubOfferingStore(), &stubPriceCache{})

	tests := []struct {
		name   string
		mutate func(*CreateOfferingRequest)
	}{
		{"missing vehicle", func(r *CreateOfferingRequest) { r.VehicleID = "" }},
		{"missing name", func(r *CreateOfferingRequest) { r.Name = "" }},
		{"zero shares", func(r *CreateOfferingRequest) { r.TotalShares = 0 }},
		{"zero price", func(r *CreateOfferingRequest) { r.InitialPriceCents = 0 }},
		{"inverted window", func(r *CreateOfferingRequest) { r.TradingClosesAt = r.TradingOpensAt }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			if _, err := svc.CreateOffering(context.Background(), req); !errors.Is(err, domain.ErrInvalidOrder) {
				t.Errorf("CreateOffering = %v, want ErrInvalidOrder", err)
			}
		})
	}
}

func TestGetOfferingAppliesCachedPrice(t *testing.T) {
	store := newStubOfferingStore()
	store.offerings["off-1"] = domain.Offering{ID: "off-1", CurrentPriceCents: 4000}
	svc := newOfferingService(store, &stubPriceCache{prices: map[string]int64{"off-1": 4250}})

	o, err := svc.GetOffering(context.Background(), "off-1")
	if err != nil {
		t.Fatalf("GetOffering: %v", err)
	}
	if o.CurrentPriceCents != 4250 {
		t.Errorf("CurrentPriceCents = %d, want the cached 4250", o.CurrentPriceCents)
	}

	// Without a quote the stored price stands.
	store.offerings["off-2"] = domain.Offering{ID: "off-2", CurrentPriceCents: 3000}
	o, err = svc.GetOffering(context.Background(), "off-2")
	if err != nil {
		t.Fatalf("GetOffering: %v", err)
	}
	if o.CurrentPriceCents != 3000 {
		t.Errorf("CurrentPriceCents = %d, want the stored 3000", o.CurrentPriceCents)
	}
}

func TestCancelOffering(t *testing.T) {
	store := newStubOfferingStore()
	store.offerings["off-1"] = domain.Offering{ID: "off-1", Status: domain.OfferingStatusTrading}
	store.offerings["off-2"] = domain.Offering{ID: "off-2", Status: domain.OfferingStatusClosed}
	svc := newOfferingService(store, &stubPriceCache{})

	if err := svc.CancelOffering(context.Background(), "off-1"); err != nil {
		t.Fatalf("CancelOffering: %v", err)
	}
	if got := store.offerings["off-1"].Status; got != domain.OfferingStatusCancelled {
		t.Errorf("status = %s, want cancelled", got)
	}
	// Closed offerings are terminal.
	if err := svc.CancelOffering(context.Background(), "off-2"); !errors.Is(err, domain.ErrMarketClosed) {
		t.Errorf("cancel closed offering = %v, want ErrMarketClosed", err)
	}
	if err := svc.CancelOffering(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cancel missing offering = %v, want ErrNotFound", err)
	}
}
