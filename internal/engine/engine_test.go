package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

// memStore is an in-memory stand-in for the offering, order, trade, and
// holding stores, applying executions the way the SQL transaction does.
type memStore struct {
	mu        sync.Mutex
	offerings map[string]domain.Offering
	orders    map[string]domain.Order
	orderSeq  []string
	trades    []domain.Trade
	holdings  map[string]domain.Holding // userID + "/" + offeringID
}

func newMemStore() *memStore {
	return &memStore{
		offerings: make(map[string]domain.Offering),
		orders:    make(map[string]domain.Order),
		holdings:  make(map[string]domain.Holding),
	}
}

func (s *memStore) putOffering(o domain.Offering) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offerings[o.ID] = o
}

func (s *memStore) putHolding(h domain.Holding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings[h.UserID+"/"+h.OfferingID] = h
}

func (s *memStore) GetByID(ctx context.Context, id string) (domain.Offering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offerings[id]
	if !ok {
		return domain.Offering{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id string, status domain.OfferingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.offerings[id]
	o.Status = status
	s.offerings[id] = o
	return nil
}

func (s *memStore) SetOpeningPrice(ctx context.Context, id string, priceCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.offerings[id]
	o.OpeningPriceCents = priceCents
	o.CurrentPriceCents = priceCents
	s.offerings[id] = o
	return nil
}

func (s *memStore) SetClosingPrice(ctx context.Context, id string, priceCents int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.offerings[id]
	o.ClosingPriceCents = priceCents
	o.CurrentPriceCents = priceCents
	s.offerings[id] = o
	return nil
}

func (s *memStore) ListByStatus(ctx context.Context, status domain.OfferingStatus) ([]domain.Offering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Offering
	for _, o := range s.offerings {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Offering, error) {
	return nil, nil
}

func (s *memStore) upsertOrder(o domain.Order) {
	if _, ok := s.orders[o.ID]; !ok {
		s.orderSeq = append(s.orderSeq, o.ID)
	}
	s.orders[o.ID] = o
}

func (s *memStore) CreateOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertOrder(o)
}

func (s *memStore) Update(ctx context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertOrder(o)
	return nil
}

func (s *memStore) getOrder(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *memStore) ListOpen(ctx context.Context, offeringID string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, id := range s.orderSeq {
		o := s.orders[id]
		if o.OfferingID != offeringID {
			continue
		}
		if o.Status == domain.OrderStatusActive || o.Status == domain.OrderStatusPartiallyFilled {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) ListOpenByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return nil, nil
}

func (s *memStore) ListByOffering(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Order, error) {
	return nil, nil
}

func (s *memStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	return nil, nil
}

func (s *memStore) RecordExecution(ctx context.Context, exec domain.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exec.Incoming.ID != "" {
		s.upsertOrder(exec.Incoming)
	}
	for _, o := range exec.Resting {
		s.upsertOrder(o)
	}
	s.trades = append(s.trades, exec.Trades...)
	for _, h := range exec.Holdings {
		s.holdings[h.UserID+"/"+h.OfferingID] = h
	}
	return nil
}

func (s *memStore) GetTrade(ctx context.Context, id string) (domain.Trade, error) {
	return domain.Trade{}, domain.ErrNotFound
}

func (s *memStore) allTrades() []domain.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

func (s *memStore) ListTradesByOffering(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func (s *memStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func (s *memStore) DailyActivity(ctx context.Context, userID string, ts time.Time) (domain.DailyActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var a domain.DailyActivity
	for _, t := range s.trades {
		if t.BuyerID != userID && t.SellerID != userID {
			continue
		}
		a.TradeCount++
		a.VolumeCents += t.NotionalCents()
	}
	return a, nil
}

func (s *memStore) Get(ctx context.Context, userID, offeringID string) (domain.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holdings[userID+"/"+offeringID]
	if !ok {
		return domain.Holding{}, domain.ErrNotFound
	}
	return h, nil
}

func (s *memStore) ListByUserHoldings(ctx context.Context, userID string) ([]domain.Holding, error) {
	return nil, nil
}

func (s *memStore) ListByOfferingHoldings(ctx context.Context, offeringID string) ([]domain.Holding, error) {
	return nil, nil
}

// The wrapper types below resolve the method-name collisions between the
// store interfaces so one memStore can back all four.
type orderStore struct{ *memStore }

func (s orderStore) Create(ctx context.Context, o domain.Order) error {
	s.CreateOrder(o)
	return nil
}

func (s orderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	o, ok := s.getOrder(id)
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

type offeringStore struct{ *memStore }

func (s offeringStore) Create(ctx context.Context, o domain.Offering) error {
	s.putOffering(o)
	return nil
}

type tradeStore struct{ *memStore }

func (s tradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	return s.GetTrade(ctx, id)
}

func (s tradeStore) ListByOffering(ctx context.Context, offeringID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.ListTradesByOffering(ctx, offeringID, opts)
}

func (s tradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	return nil, nil
}

type holdingStore struct{ *memStore }

func (s holdingStore) ListByUser(ctx context.Context, userID string) ([]domain.Holding, error) {
	return s.ListByUserHoldings(ctx, userID)
}

func (s holdingStore) ListByOffering(ctx context.Context, offeringID string) ([]domain.Holding, error) {
	return s.ListByOfferingHoldings(ctx, offeringID)
}

// allowGate admits everything and records the requests it saw.
type allowGate struct {
	mu       sync.Mutex
	reqs     []domain.RiskCheckRequest
	decision *domain.RiskDecision // overrides allow-all when set
	releases int
}

func (g *allowGate) Admit(ctx context.Context, req domain.RiskCheckRequest) (domain.RiskDecision, func(), error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	d := domain.RiskDecision{Allowed: true}
	if g.decision != nil {
		d = *g.decision
	}
	g.mu.Unlock()
	return d, func() {
		g.mu.Lock()
		g.releases++
		g.mu.Unlock()
	}, nil
}

func (g *allowGate) released() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.releases
}

type nopBus struct{}

func (nopBus) Publish(ctx context.Context, channel string, payload []byte) error { return nil }
func (nopBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}
func (nopBus) StreamAppend(ctx context.Context, stream string, payload []byte) error { return nil }
func (nopBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type memPrices struct {
	mu     sync.Mutex
	prices map[string]int64
}

func newMemPrices() *memPrices {
	return &memPrices{prices: make(map[string]int64)}
}

func (p *memPrices) SetPrice(ctx context.Context, offeringID string, priceCents int64, ts time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[offeringID] = priceCents
	return nil
}

func (p *memPrices) GetPrice(ctx context.Context, offeringID string) (int64, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.prices[offeringID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return v, time.Time{}, nil
}

func (p *memPrices) GetPrices(ctx context.Context, offeringIDs []string) (map[string]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int64)
	for _, id := range offeringIDs {
		if v, ok := p.prices[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startEngine runs an engine against the store and waits for the given
// offering's owner to answer a snapshot.
func startEngine(t *testing.T, store *memStore, gate RiskGate, offeringID string) *Engine {
	t.Helper()
	eng := NewEngine(
		offeringStore{store}, orderStore{store}, tradeStore{store}, holdingStore{store},
		gate, newMemPrices(), nopBus{},
		Config{CommissionBps: 25, ClosingWindow: time.Minute},
		discardLogger(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, err := eng.Snapshot(context.Background(), offeringID)
		if err == nil || !strings.Contains(err.Error(), "not running") {
			return eng
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("engine did not start")
	return nil
}

func tradingOffering(id string) domain.Offering {
	return domain.Offering{
		ID:                id,
		Name:              "1969 Fastback",
		TotalShares:       1000,
		CurrentPriceCents: 4050,
		Status:            domain.OfferingStatusTrading,
		Uncrossed:         domain.UncrossedCarry,
	}
}

func TestSubmitRestsOrder(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	gate := &allowGate{}
	eng := startEngine(t, store, gate, "off-1")
	ctx := context.Background()

	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if res.Status != domain.OrderStatusActive {
		t.Errorf("Status = %s, want active", res.Status)
	}
	if res.SharesFilled != 0 {
		t.Errorf("SharesFilled = %d, want 0", res.SharesFilled)
	}
	snap, err := eng.Snapshot(ctx, "off-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Bids) != 1 || snap.Bids[0].PriceCents != 4000 || snap.Bids[0].Shares != 10 {
		t.Errorf("Bids = %+v, want one 10-share level at 4000", snap.Bids)
	}
	if o, ok := store.getOrder(res.OrderID); !ok || o.Status != domain.OrderStatusActive {
		t.Errorf("stored order = %+v, want active", o)
	}
	if got := gate.released(); got != 1 {
		t.Errorf("gate released %d times, want 1", got)
	}
}

func TestSubmitMatchesAtRestingPrice(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	store.putHolding(domain.Holding{UserID: "bob", OfferingID: "off-1", Shares: 10, AvgEntryPriceCents: 3900})
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	sell, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "bob", OfferingID: "off-1",
		Side: domain.OrderSideSell, Shares: 10, PriceCents: 4000, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	buy, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4100, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("submit buy: %v", err)
	}

	if buy.Status != domain.OrderStatusFilled || buy.SharesFilled != 10 {
		t.Fatalf("buy = %s/%d, want filled/10", buy.Status, buy.SharesFilled)
	}
	if len(buy.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(buy.Trades))
	}
	tr := buy.Trades[0]
	// Maker pricing: execution at the resting sell's limit, not the
	// incoming buy's.
	if tr.PriceCents != 4000 {
		t.Errorf("trade price = %d, want 4000", tr.PriceCents)
	}
	if tr.CommissionCents != 100 {
		t.Errorf("commission = %d, want 100", tr.CommissionCents)
	}
	if o, _ := store.getOrder(sell.OrderID); o.Status != domain.OrderStatusFilled {
		t.Errorf("resting sell status = %s, want filled", o.Status)
	}
	alice, err := store.Get(ctx, "alice", "off-1")
	if err != nil || alice.Shares != 10 || alice.AvgEntryPriceCents != 4000 {
		t.Errorf("alice holding = %+v, want 10 shares at 4000", alice)
	}
	bob, err := store.Get(ctx, "bob", "off-1")
	if err != nil || bob.Shares != 0 {
		t.Errorf("bob holding = %+v, want 0 shares", bob)
	}
	snap, _ := eng.Snapshot(ctx, "off-1")
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Errorf("book not empty after full cross: %+v", snap)
	}
}

func TestFillOrKillInsufficientLiquidity(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	store.putHolding(domain.Holding{UserID: "bob", OfferingID: "off-1", Shares: 5})
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	if _, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "bob", OfferingID: "off-1",
		Side: domain.OrderSideSell, Shares: 5, PriceCents: 4000, TIF: domain.TIFGTC,
	}); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: domain.TIFFOK,
	})
	if err != nil {
		t.Fatalf("submit FOK: %v", err)
	}
	if res.Status != domain.OrderStatusRejected {
		t.Errorf("FOK status = %s, want rejected", res.Status)
	}
	if res.SharesFilled != 0 {
		t.Errorf("FOK filled %d shares, want 0", res.SharesFilled)
	}
	// The resting sell is untouched.
	snap, _ := eng.Snapshot(ctx, "off-1")
	if len(snap.Asks) != 1 || snap.Asks[0].Shares != 5 {
		t.Errorf("Asks = %+v, want untouched 5-share level", snap.Asks)
	}
}

func TestFillOrKillFullFill(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	store.putHolding(domain.Holding{UserID: "bob", OfferingID: "off-1", Shares: 10})
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	if _, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "bob", OfferingID: "off-1",
		Side: domain.OrderSideSell, Shares: 10, PriceCents: 4000, TIF: domain.TIFGTC,
	}); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: domain.TIFFOK,
	})
	if err != nil {
		t.Fatalf("submit FOK: %v", err)
	}
	if res.Status != domain.OrderStatusFilled || res.SharesFilled != 10 {
		t.Errorf("FOK = %s/%d, want filled/10", res.Status, res.SharesFilled)
	}
}

func TestImmediateOrCancelPartial(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	store.putHolding(domain.Holding{UserID: "bob", OfferingID: "off-1", Shares: 4})
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	if _, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "bob", OfferingID: "off-1",
		Side: domain.OrderSideSell, Shares: 4, PriceCents: 4000, TIF: domain.TIFGTC,
	}); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4100, TIF: domain.TIFIOC,
	})
	if err != nil {
		t.Fatalf("submit IOC: %v", err)
	}
	if res.Status != domain.OrderStatusCancelled {
		t.Errorf("IOC status = %s, want cancelled", res.Status)
	}
	if res.SharesFilled != 4 {
		t.Errorf("IOC filled %d, want 4", res.SharesFilled)
	}
	// The remainder never rests.
	snap, _ := eng.Snapshot(ctx, "off-1")
	if len(snap.Bids) != 0 {
		t.Errorf("Bids = %+v, want empty", snap.Bids)
	}
}

func TestImmediateOrCancelNoMatch(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	eng := startEngine(t, store, &allowGate{}, "off-1")

	res, err := eng.SubmitOrder(context.Background(), SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: domain.TIFIOC,
	})
	if err != nil {
		t.Fatalf("submit IOC: %v", err)
	}
	if res.Status != domain.OrderStatusCancelled || res.SharesFilled != 0 {
		t.Errorf("IOC = %s/%d, want cancelled/0", res.Status, res.SharesFilled)
	}
}

func TestRiskBlockedOrderRejected(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	gate := &allowGate{decision: &domain.RiskDecision{
		Reason:        "position of 510 shares would exceed the 500 share limit",
		LimitName:     domain.LimitPositionPerOffer,
		LimitValue:    500,
		ObservedValue: 510,
	}}
	eng := startEngine(t, store, gate, "off-1")

	res, err := eng.SubmitOrder(context.Background(), SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 60, PriceCents: 4000, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if res.Status != domain.OrderStatusRejected {
		t.Errorf("Status = %s, want rejected", res.Status)
	}
	if res.Rejection == nil {
		t.Fatal("Rejection is nil, want the blocking decision")
	}
	if res.Rejection.LimitName != domain.LimitPositionPerOffer {
		t.Errorf("LimitName = %s, want %s", res.Rejection.LimitName, domain.LimitPositionPerOffer)
	}
	if o, ok := store.getOrder(res.OrderID); !ok || o.Status != domain.OrderStatusRejected {
		t.Errorf("stored order = %+v, want rejected", o)
	}
	if got := gate.released(); got != 1 {
		t.Errorf("gate released %d times, want 1", got)
	}
}

func TestSellRiskCheckCarriesReservedShares(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	store.putHolding(domain.Holding{UserID: "bob", OfferingID: "off-1", Shares: 20})
	gate := &allowGate{}
	eng := startEngine(t, store, gate, "off-1")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := eng.SubmitOrder(ctx, SubmitRequest{
			UserID: "bob", OfferingID: "off-1",
			Side: domain.OrderSideSell, Shares: 8, PriceCents: 4000 + int64(i), TIF: domain.TIFGTC,
		}); err != nil {
			t.Fatalf("submit sell %d: %v", i, err)
		}
	}
	gate.mu.Lock()
	defer gate.mu.Unlock()
	if gate.reqs[0].ReservedSellShares != 0 {
		t.Errorf("first sell reserved = %d, want 0", gate.reqs[0].ReservedSellShares)
	}
	if gate.reqs[1].ReservedSellShares != 8 {
		t.Errorf("second sell reserved = %d, want 8", gate.reqs[1].ReservedSellShares)
	}
}

func TestImmediateOrdersRejectedDuringCollection(t *testing.T) {
	store := newMemStore()
	off := tradingOffering("off-1")
	off.Status = domain.OfferingStatusActive
	store.putOffering(off)
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	for _, tif := range []domain.TimeInForce{domain.TIFFOK, domain.TIFIOC} {
		res, err := eng.SubmitOrder(ctx, SubmitRequest{
			UserID: "alice", OfferingID: "off-1",
			Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: tif,
		})
		if err != nil {
			t.Fatalf("submit %s: %v", tif, err)
		}
		if res.Status != domain.OrderStatusRejected {
			t.Errorf("%s status = %s, want rejected", tif, res.Status)
		}
	}

	// Crossing day orders rest without matching until the auction clears.
	if _, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "bob", OfferingID: "off-1",
		Side: domain.OrderSideSell, Shares: 10, PriceCents: 4000, TIF: domain.TIFDay,
	}); err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4200, TIF: domain.TIFDay,
	})
	if err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if res.Status != domain.OrderStatusActive || res.SharesFilled != 0 {
		t.Errorf("collection buy = %s/%d, want active/0", res.Status, res.SharesFilled)
	}
}

func TestCancelOrder(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	if err := eng.CancelOrder(ctx, "off-1", res.OrderID, "mallory"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cancel by other user = %v, want ErrNotFound", err)
	}
	if err := eng.CancelOrder(ctx, "off-1", res.OrderID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snap, _ := eng.Snapshot(ctx, "off-1")
	if len(snap.Bids) != 0 {
		t.Errorf("Bids = %+v, want empty after cancel", snap.Bids)
	}
	// Cancelling again is a no-op, not an error.
	if err := eng.CancelOrder(ctx, "off-1", res.OrderID, "alice"); err != nil {
		t.Errorf("second cancel = %v, want nil", err)
	}
}

func TestCancelFilledOrder(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	store.putHolding(domain.Holding{UserID: "bob", OfferingID: "off-1", Shares: 10})
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	sell, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "bob", OfferingID: "off-1",
		Side: domain.OrderSideSell, Shares: 10, PriceCents: 4000, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("submit sell: %v", err)
	}
	if _, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: domain.TIFGTC,
	}); err != nil {
		t.Fatalf("submit buy: %v", err)
	}
	if err := eng.CancelOrder(ctx, "off-1", sell.OrderID, "bob"); !errors.Is(err, domain.ErrAlreadyFilled) {
		t.Errorf("cancel filled order = %v, want ErrAlreadyFilled", err)
	}
}

func TestValidateSubmit(t *testing.T) {
	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing user", SubmitRequest{OfferingID: "off-1", Side: domain.OrderSideBuy, Shares: 1, PriceCents: 1, TIF: domain.TIFGTC}},
		{"bad side", SubmitRequest{UserID: "u", OfferingID: "off-1", Side: "hold", Shares: 1, PriceCents: 1, TIF: domain.TIFGTC}},
		{"bad tif", SubmitRequest{UserID: "u", OfferingID: "off-1", Side: domain.OrderSideBuy, Shares: 1, PriceCents: 1, TIF: "GTD"}},
		{"zero shares", SubmitRequest{UserID: "u", OfferingID: "off-1", Side: domain.OrderSideBuy, Shares: 0, PriceCents: 1, TIF: domain.TIFGTC}},
		{"zero price", SubmitRequest{UserID: "u", OfferingID: "off-1", Side: domain.OrderSideBuy, Shares: 1, PriceCents: 0, TIF: domain.TIFGTC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateSubmit(tt.req); !errors.Is(err, domain.ErrInvalidOrder) {
				t.Errorf("validateSubmit = %v, want ErrInvalidOrder", err)
			}
		})
	}
}

func TestOpeningAuctionCross(t *testing.T) {
	store := newMemStore()
	off := tradingOffering("off-1")
	off.Status = domain.OfferingStatusActive
	store.putOffering(off)
	store.putHolding(domain.Holding{UserID: "carol", OfferingID: "off-1", Shares: 40})
	store.putHolding(domain.Holding{UserID: "dave", OfferingID: "off-1", Shares: 60})
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	submit := func(user string, side domain.OrderSide, shares, price int64) {
		t.Helper()
		if _, err := eng.SubmitOrder(ctx, SubmitRequest{
			UserID: user, OfferingID: "off-1",
			Side: side, Shares: shares, PriceCents: price, TIF: domain.TIFGTC,
		}); err != nil {
			t.Fatalf("submit %s: %v", user, err)
		}
	}
	submit("alice", domain.OrderSideBuy, 50, 4000)
	submit("bob", domain.OrderSideBuy, 30, 4200)
	submit("carol", domain.OrderSideSell, 40, 3800)
	submit("dave", domain.OrderSideSell, 60, 4100)

	if err := eng.OpenTrading(ctx, "off-1"); err != nil {
		t.Fatalf("OpenTrading: %v", err)
	}

	stored, _ := store.GetByID(ctx, "off-1")
	if stored.Status != domain.OfferingStatusTrading {
		t.Errorf("offering status = %s, want trading", stored.Status)
	}
	if stored.OpeningPriceCents != 4000 {
		t.Errorf("opening price = %d, want 4000", stored.OpeningPriceCents)
	}
	trades := store.allTrades()
	var volume int64
	for _, tr := range trades {
		if tr.PriceCents != 4000 {
			t.Errorf("cross trade at %d, want clearing price 4000", tr.PriceCents)
		}
		volume += tr.Shares
	}
	if volume != 40 {
		t.Errorf("crossed %d shares, want 40", volume)
	}

	// Unmatched remainder carries into continuous trading.
	snap, _ := eng.Snapshot(ctx, "off-1")
	if len(snap.Bids) != 1 || snap.Bids[0].PriceCents != 4000 || snap.Bids[0].Shares != 40 {
		t.Errorf("carried bids = %+v, want 40 shares at 4000", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].PriceCents != 4100 || snap.Asks[0].Shares != 60 {
		t.Errorf("carried asks = %+v, want 60 shares at 4100", snap.Asks)
	}
	// Double-open is refused.
	if err := eng.OpenTrading(ctx, "off-1"); !errors.Is(err, domain.ErrMarketClosed) {
		t.Errorf("second OpenTrading = %v, want ErrMarketClosed", err)
	}
}

func TestOpeningAuctionCancelPolicy(t *testing.T) {
	store := newMemStore()
	off := tradingOffering("off-1")
	off.Status = domain.OfferingStatusActive
	off.Uncrossed = domain.UncrossedCancel
	store.putOffering(off)
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4000, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if err := eng.OpenTrading(ctx, "off-1"); err != nil {
		t.Fatalf("OpenTrading: %v", err)
	}
	snap, _ := eng.Snapshot(ctx, "off-1")
	if len(snap.Bids) != 0 {
		t.Errorf("Bids = %+v, want empty under cancel policy", snap.Bids)
	}
	if o, _ := store.getOrder(res.OrderID); o.Status != domain.OrderStatusCancelled {
		t.Errorf("uncrossed order status = %s, want cancelled", o.Status)
	}
}

func TestClosingAuctionLifecycle(t *testing.T) {
	store := newMemStore()
	store.putOffering(tradingOffering("off-1"))
	store.putHolding(domain.Holding{UserID: "bob", OfferingID: "off-1", Shares: 50})
	eng := startEngine(t, store, &allowGate{}, "off-1")
	ctx := context.Background()

	day, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 3900, TIF: domain.TIFDay,
	})
	if err != nil {
		t.Fatalf("submit day: %v", err)
	}
	gtc, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "bob", OfferingID: "off-1",
		Side: domain.OrderSideSell, Shares: 10, PriceCents: 4300, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("submit gtc: %v", err)
	}

	if err := eng.BeginClosingAuction(ctx, "off-1"); err != nil {
		t.Fatalf("BeginClosingAuction: %v", err)
	}
	// Orders now collect without matching.
	res, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "carol", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 10, PriceCents: 4400, TIF: domain.TIFGTC,
	})
	if err != nil {
		t.Fatalf("submit during close: %v", err)
	}
	if res.Status != domain.OrderStatusActive || res.SharesFilled != 0 {
		t.Errorf("collection order = %s/%d, want active/0", res.Status, res.SharesFilled)
	}

	if err := eng.CompleteClosingAuction(ctx, "off-1"); err != nil {
		t.Fatalf("CompleteClosingAuction: %v", err)
	}
	stored, _ := store.GetByID(ctx, "off-1")
	if stored.Status != domain.OfferingStatusClosed {
		t.Errorf("offering status = %s, want closed", stored.Status)
	}
	// Carol's 4400 bid crosses bob's 4300 ask at the clearing price.
	trades := store.allTrades()
	if len(trades) != 1 || trades[0].BuyerID != "carol" || trades[0].SellerID != "bob" {
		t.Fatalf("trades = %+v, want one carol/bob cross", trades)
	}
	if stored.ClosingPriceCents != trades[0].PriceCents {
		t.Errorf("closing price = %d, want %d", stored.ClosingPriceCents, trades[0].PriceCents)
	}
	// Day orders expire at the close; GTC survivors keep their stored
	// status.
	if o, _ := store.getOrder(day.OrderID); o.Status != domain.OrderStatusExpired {
		t.Errorf("day order status = %s, want expired", o.Status)
	}
	if o, _ := store.getOrder(gtc.OrderID); o.Status != domain.OrderStatusFilled {
		t.Errorf("gtc order status = %s, want filled", o.Status)
	}

	// The offering no longer accepts orders.
	if _, err := eng.SubmitOrder(ctx, SubmitRequest{
		UserID: "alice", OfferingID: "off-1",
		Side: domain.OrderSideBuy, Shares: 1, PriceCents: 4000, TIF: domain.TIFGTC,
	}); !errors.Is(err, domain.ErrMarketClosed) {
		t.Errorf("submit after close = %v, want ErrMarketClosed", err)
	}
}
