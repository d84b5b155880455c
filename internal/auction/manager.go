package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paddockhq/paddock/internal/domain"
)

// Pub/sub channel and durable stream for auction events.
const (
	ChannelAuctions = "paddock:auctions"
	StreamAuctions  = "stream:auctions"
)

const lotLockTTL = 30 * time.Second

// Manager creates and runs auction lots. Sequential lots activate one item
// at a time in sequence order; simultaneous lots activate everything at
// once. Lot-level transitions take a distributed lock so two instances never
// start the same lot.
type Manager struct {
	store  domain.AuctionStore
	bus    domain.SignalBus
	locks  domain.LockManager
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	runners map[string]*runner // by lot item ID
	runCtx  context.Context
	wg      sync.WaitGroup
	started bool
}

// NewManager wires the auction manager. Run must be called before lots
// start.
func NewManager(store domain.AuctionStore, bus domain.SignalBus, locks domain.LockManager, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		bus:     bus,
		locks:   locks,
		logger:  logger,
		now:     time.Now,
		runners: make(map[string]*runner),
	}
}

// Run blocks until ctx is cancelled, then waits for every item runner to
// exit.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("auction: already running")
	}
	m.started = true
	m.runCtx = ctx
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "auction manager started")
	<-ctx.Done()
	m.wg.Wait()
	m.logger.Info("auction manager stopped")
	return ctx.Err()
}

// CreateLot validates and persists a lot with its items. Items get IDs and
// pending status; sequence numbers must be unique.
func (m *Manager) CreateLot(ctx context.Context, lot domain.AuctionLot, items []domain.LotItem) (domain.AuctionLot, error) {
	if len(items) == 0 {
		return domain.AuctionLot{}, fmt.Errorf("auction: lot needs at least one item: %w", domain.ErrInvalidOrder)
	}
	if lot.Type == domain.LotTypeSingle && len(items) != 1 {
		return domain.AuctionLot{}, fmt.Errorf("auction: single lot with %d items: %w", len(items), domain.ErrInvalidOrder)
	}
	seen := make(map[int]struct{}, len(items))
	for i := range items {
		it := &items[i]
		if it.Duration <= 0 {
			return domain.AuctionLot{}, fmt.Errorf("auction: item %d duration: %w", it.SequenceNumber, domain.ErrInvalidOrder)
		}
		if it.StartPriceCents <= 0 || it.MinIncrementCents <= 0 {
			return domain.AuctionLot{}, fmt.Errorf("auction: item %d pricing: %w", it.SequenceNumber, domain.ErrInvalidOrder)
		}
		if _, dup := seen[it.SequenceNumber]; dup {
			return domain.AuctionLot{}, fmt.Errorf("auction: duplicate sequence %d: %w", it.SequenceNumber, domain.ErrInvalidOrder)
		}
		seen[it.SequenceNumber] = struct{}{}
		it.ID = uuid.NewString()
		it.Status = domain.LotItemPending
	}
	lot.ID = uuid.NewString()
	lot.Status = domain.LotStatusPending
	lot.CreatedAt = m.now()
	for i := range items {
		items[i].LotID = lot.ID
	}
	if err := m.store.CreateLot(ctx, lot, items); err != nil {
		return domain.AuctionLot{}, fmt.Errorf("auction: create lot: %w", err)
	}
	m.logger.InfoContext(ctx, "lot created",
		slog.String("lot_id", lot.ID),
		slog.String("type", string(lot.Type)),
		slog.Int("items", len(items)))
	return lot, nil
}

// StartLot activates a pending lot: the first pending item for single and
// sequential lots, every pending item for simultaneous ones.
func (m *Manager) StartLot(ctx context.Context, lotID string) error {
	unlock, err := m.locks.Acquire(ctx, "auction:lot:"+lotID, lotLockTTL)
	if err != nil {
		return fmt.Errorf("auction: start lot %s: %w", lotID, err)
	}
	defer unlock()

	lot, err := m.store.GetLot(ctx, lotID)
	if err != nil {
		return fmt.Errorf("auction: start lot %s: %w", lotID, err)
	}
	if lot.Status != domain.LotStatusPending {
		return fmt.Errorf("auction: start lot %s from status %s: %w", lotID, lot.Status, domain.ErrAuctionClosed)
	}
	if err := m.store.UpdateLotStatus(ctx, lotID, domain.LotStatusActive); err != nil {
		return fmt.Errorf("auction: start lot %s: %w", lotID, err)
	}

	items, err := m.store.ListItems(ctx, lotID)
	if err != nil {
		return fmt.Errorf("auction: start lot %s: %w", lotID, err)
	}
	if lot.Type == domain.LotTypeSimultaneous {
		for _, it := range items {
			if it.Status != domain.LotItemPending {
				continue
			}
			if err := m.activateItem(ctx, it); err != nil {
				return err
			}
		}
		return nil
	}
	next, ok := nextPending(items)
	if !ok {
		return m.completeLot(ctx, lotID)
	}
	return m.activateItem(ctx, next)
}

// PlaceBid routes a bid to the item's runner.
func (m *Manager) PlaceBid(ctx context.Context, lotItemID, userID string, amountCents int64) (domain.BidResult, error) {
	if amountCents <= 0 {
		return domain.BidResult{}, fmt.Errorf("auction: bid amount %d: %w", amountCents, domain.ErrInvalidOrder)
	}
	r, err := m.getRunner(ctx, lotItemID)
	if err != nil {
		return domain.BidResult{}, err
	}
	c := bidCmd{userID: userID, amount: amountCents, resp: make(chan bidResp, 1)}
	select {
	case r.bids <- c:
	case <-r.done:
		return domain.BidResult{}, fmt.Errorf("auction: item %s: %w", lotItemID, domain.ErrAuctionClosed)
	case <-ctx.Done():
		return domain.BidResult{}, ctx.Err()
	}
	select {
	case resp := <-c.resp:
		return resp.result, resp.err
	case <-ctx.Done():
		return domain.BidResult{}, ctx.Err()
	}
}

// SkipItem marks a pending item skipped so the sequencer passes over it.
func (m *Manager) SkipItem(ctx context.Context, lotItemID string) error {
	item, err := m.store.GetItem(ctx, lotItemID)
	if err != nil {
		return fmt.Errorf("auction: skip item %s: %w", lotItemID, err)
	}
	if item.Status != domain.LotItemPending {
		return fmt.Errorf("auction: skip item %s with status %s: %w", lotItemID, item.Status, domain.ErrAuctionClosed)
	}
	item.Status = domain.LotItemSkipped
	if err := m.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("auction: skip item %s: %w", lotItemID, err)
	}
	m.logger.InfoContext(ctx, "lot item skipped", slog.String("lot_item_id", lotItemID))
	return nil
}

// activateItem stamps the live window on the item and starts its runner.
func (m *Manager) activateItem(ctx context.Context, item domain.LotItem) error {
	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	if runCtx == nil {
		return fmt.Errorf("auction: not running")
	}

	now := m.now()
	end := now.Add(item.Duration)
	item.Status = domain.LotItemActive
	item.StartedAt = &now
	item.EndsAt = &end
	if err := m.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("auction: activate item %s: %w", item.ID, err)
	}

	r := newRunner(m, item)
	m.mu.Lock()
	m.runners[item.ID] = r
	m.mu.Unlock()
	m.wg.Add(1)
	go r.loop(runCtx)

	m.logger.InfoContext(ctx, "lot item live",
		slog.String("lot_item_id", item.ID),
		slog.String("lot_id", item.LotID),
		slog.Int("sequence", item.SequenceNumber),
		slog.Time("ends_at", end))
	m.publishItem(ctx, item)
	return nil
}

// getRunner returns the live runner for an item, reattaching one for an
// item left active by a restart.
func (m *Manager) getRunner(ctx context.Context, lotItemID string) (*runner, error) {
	m.mu.Lock()
	r, ok := m.runners[lotItemID]
	runCtx := m.runCtx
	m.mu.Unlock()
	if ok {
		return r, nil
	}
	if runCtx == nil {
		return nil, fmt.Errorf("auction: not running")
	}

	item, err := m.store.GetItem(ctx, lotItemID)
	if err != nil {
		return nil, fmt.Errorf("auction: item %s: %w", lotItemID, err)
	}
	if item.Status != domain.LotItemActive || item.EndsAt == nil {
		return nil, fmt.Errorf("auction: item %s status %s: %w", lotItemID, item.Status, domain.ErrAuctionClosed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.runners[lotItemID]; ok {
		return r, nil
	}
	r = newRunner(m, item)
	m.runners[lotItemID] = r
	m.wg.Add(1)
	go r.loop(runCtx)
	return r, nil
}

// itemFinished advances the sequencer after a runner resolves its item.
func (m *Manager) itemFinished(ctx context.Context, item domain.LotItem) {
	m.mu.Lock()
	delete(m.runners, item.ID)
	m.mu.Unlock()

	lot, err := m.store.GetLot(ctx, item.LotID)
	if err != nil {
		m.logger.ErrorContext(ctx, "advance lot failed",
			slog.String("lot_id", item.LotID), slog.Any("error", err))
		return
	}
	if lot.Status != domain.LotStatusActive {
		return
	}
	items, err := m.store.ListItems(ctx, item.LotID)
	if err != nil {
		m.logger.ErrorContext(ctx, "advance lot failed",
			slog.String("lot_id", item.LotID), slog.Any("error", err))
		return
	}

	switch lot.Type {
	case domain.LotTypeSimultaneous:
		for _, it := range items {
			if it.Status == domain.LotItemPending || it.Status == domain.LotItemActive {
				return
			}
		}
		if err := m.completeLot(ctx, item.LotID); err != nil {
			m.logger.ErrorContext(ctx, "complete lot failed",
				slog.String("lot_id", item.LotID), slog.Any("error", err))
		}
	default:
		next, ok := nextPending(items)
		if !ok {
			if err := m.completeLot(ctx, item.LotID); err != nil {
				m.logger.ErrorContext(ctx, "complete lot failed",
					slog.String("lot_id", item.LotID), slog.Any("error", err))
			}
			return
		}
		if err := m.activateItem(ctx, next); err != nil {
			m.logger.ErrorContext(ctx, "activate next item failed",
				slog.String("lot_id", item.LotID),
				slog.String("lot_item_id", next.ID),
				slog.Any("error", err))
		}
	}
}

func (m *Manager) completeLot(ctx context.Context, lotID string) error {
	if err := m.store.UpdateLotStatus(ctx, lotID, domain.LotStatusCompleted); err != nil {
		return fmt.Errorf("auction: complete lot %s: %w", lotID, err)
	}
	m.logger.InfoContext(ctx, "lot completed", slog.String("lot_id", lotID))
	return nil
}

// nextPending returns the lowest-sequence pending item.
func nextPending(items []domain.LotItem) (domain.LotItem, bool) {
	sort.Slice(items, func(i, j int) bool { return items[i].SequenceNumber < items[j].SequenceNumber })
	for _, it := range items {
		if it.Status == domain.LotItemPending {
			return it, true
		}
	}
	return domain.LotItem{}, false
}

type auctionEvent struct {
	Type         string    `json:"type"`
	LotID        string    `json:"lot_id"`
	LotItemID    string    `json:"lot_item_id"`
	Status       string    `json:"status"`
	BidID        string    `json:"bid_id,omitempty"`
	HighBidCents int64     `json:"high_bid_cents"`
	EndsAt       time.Time `json:"ends_at,omitempty"`
	Extended     bool      `json:"extended,omitempty"`
}

func (m *Manager) publishBid(ctx context.Context, item domain.LotItem, bid domain.Bid, extended bool) {
	ev := auctionEvent{
		Type:         "bid",
		LotID:        item.LotID,
		LotItemID:    item.ID,
		Status:       string(item.Status),
		BidID:        bid.ID,
		HighBidCents: item.HighBidCents,
		Extended:     extended,
	}
	if item.EndsAt != nil {
		ev.EndsAt = *item.EndsAt
	}
	m.publish(ctx, ev)
}

func (m *Manager) publishItem(ctx context.Context, item domain.LotItem) {
	ev := auctionEvent{
		Type:         "item",
		LotID:        item.LotID,
		LotItemID:    item.ID,
		Status:       string(item.Status),
		HighBidCents: item.HighBidCents,
	}
	if item.EndsAt != nil {
		ev.EndsAt = *item.EndsAt
	}
	m.publish(ctx, ev)
}

func (m *Manager) publish(ctx context.Context, ev auctionEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := m.bus.Publish(ctx, ChannelAuctions, payload); err != nil {
		m.logger.WarnContext(ctx, "publish auction event failed",
			slog.String("lot_item_id", ev.LotItemID), slog.Any("error", err))
	}
	if err := m.bus.StreamAppend(ctx, StreamAuctions, payload); err != nil {
		m.logger.WarnContext(ctx, "append auction stream failed",
			slog.String("lot_item_id", ev.LotItemID), slog.Any("error", err))
	}
}
