package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

// liveItem returns an active item ending at start+duration for direct
// handleBid tests.
func liveItem(id string, start time.Time, d, window, reset time.Duration) domain.LotItem {
	end := start.Add(d)
	return domain.LotItem{
		ID:                id,
		LotID:             "lot-1",
		OfferingID:        "off-1",
		SequenceNumber:    1,
		Status:            domain.LotItemActive,
		StartPriceCents:   100_000,
		MinIncrementCents: 5_000,
		Duration:          d,
		SnipingWindow:     window,
		ResetLength:       reset,
		StartedAt:         &start,
		EndsAt:            &end,
	}
}

func TestHandleBidAcceptsAndRaises(t *testing.T) {
	store := newMemAuctionStore()
	m, ctx := newTestManager(t, store, &stubLocks{})
	base := time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	item := liveItem("item-1", base, 10*time.Minute, 30*time.Second, 30*time.Second)
	r := newRunner(m, item)

	res, err := r.handleBid(ctx, "alice", 100_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if !res.Accepted || res.HighBidCents != 100_000 {
		t.Fatalf("result = %+v, want accepted at 100000", res)
	}
	if res.Extended {
		t.Error("bid far from the end extended the timer")
	}

	// The next bid must clear high + increment.
	res, err = r.handleBid(ctx, "bob", 104_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if res.Accepted {
		t.Errorf("under-increment bid accepted: %+v", res)
	}
	if res.HighBidCents != 100_000 {
		t.Errorf("high bid = %d, want unchanged 100000", res.HighBidCents)
	}

	res, err = r.handleBid(ctx, "bob", 105_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if !res.Accepted || res.HighBidCents != 105_000 {
		t.Fatalf("result = %+v, want accepted at 105000", res)
	}
	if r.item.HighBidderID != "bob" {
		t.Errorf("high bidder = %s, want bob", r.item.HighBidderID)
	}

	bids, _ := store.ListBids(ctx, "item-1", domain.ListOpts{})
	if len(bids) != 3 {
		t.Fatalf("recorded %d bids, want 3 including the rejected one", len(bids))
	}
	if bids[1].Accepted || bids[1].RejectReason == "" {
		t.Errorf("rejected bid = %+v, want recorded with a reason", bids[1])
	}
}

func TestHandleBidRejectsCurrentLeader(t *testing.T) {
	store := newMemAuctionStore()
	m, ctx := newTestManager(t, store, &stubLocks{})
	base := time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	item := liveItem("item-1", base, 10*time.Minute, 30*time.Second, 30*time.Second)
	r := newRunner(m, item)
	oldEnd := *r.item.EndsAt

	if res, err := r.handleBid(ctx, "alice", 100_000); err != nil || !res.Accepted {
		t.Fatalf("opening bid = %+v, %v, want accepted", res, err)
	}

	// The leader raising themselves inside the sniping window must not
	// take, and must not roll the clock forward.
	now = oldEnd.Add(-10 * time.Second)
	res, err := r.handleBid(ctx, "alice", 105_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if res.Accepted {
		t.Fatalf("self-outbid accepted: %+v", res)
	}
	if res.Extended || !res.EndsAt.Equal(oldEnd) {
		t.Errorf("EndsAt = %v extended=%v, want %v unextended", res.EndsAt, res.Extended, oldEnd)
	}
	if res.HighBidCents != 100_000 || r.item.HighBidderID != "alice" {
		t.Errorf("high bid = %d by %s, want unchanged 100000 by alice",
			res.HighBidCents, r.item.HighBidderID)
	}
	if exts, _ := store.ListExtensions(ctx, "item-1"); len(exts) != 0 {
		t.Errorf("recorded %d extension events, want 0", len(exts))
	}

	bids, _ := store.ListBids(ctx, "item-1", domain.ListOpts{})
	if len(bids) != 2 {
		t.Fatalf("recorded %d bids, want 2 including the rejected one", len(bids))
	}
	if bids[1].Accepted || bids[1].RejectReason == "" {
		t.Errorf("rejected bid = %+v, want recorded with a reason", bids[1])
	}

	// Another bidder at the same amount still takes.
	res, err = r.handleBid(ctx, "bob", 105_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if !res.Accepted || r.item.HighBidderID != "bob" {
		t.Fatalf("result = %+v by %s, want bob accepted", res, r.item.HighBidderID)
	}
}

func TestHandleBidSoftCloseExtension(t *testing.T) {
	store := newMemAuctionStore()
	m, ctx := newTestManager(t, store, &stubLocks{})
	base := time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	item := liveItem("item-1", base, 10*time.Minute, 30*time.Second, 30*time.Second)
	r := newRunner(m, item)
	oldEnd := *r.item.EndsAt

	// Bid with 10 seconds on the clock: inside the window, so the end
	// moves to now + reset.
	now = oldEnd.Add(-10 * time.Second)
	res, err := r.handleBid(ctx, "alice", 100_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if !res.Accepted || !res.Extended {
		t.Fatalf("result = %+v, want accepted and extended", res)
	}
	wantEnd := now.Add(30 * time.Second)
	if !res.EndsAt.Equal(wantEnd) {
		t.Errorf("EndsAt = %v, want %v", res.EndsAt, wantEnd)
	}

	exts, _ := store.ListExtensions(ctx, "item-1")
	if len(exts) != 1 {
		t.Fatalf("recorded %d extension events, want 1", len(exts))
	}
	ev := exts[0]
	if ev.Rule != domain.ExtensionRuleSoftClose {
		t.Errorf("rule = %s, want %s", ev.Rule, domain.ExtensionRuleSoftClose)
	}
	if !ev.OldEndTime.Equal(oldEnd) || !ev.NewEndTime.Equal(wantEnd) {
		t.Errorf("event times = %v -> %v, want %v -> %v", ev.OldEndTime, ev.NewEndTime, oldEnd, wantEnd)
	}
	if ev.BidID != res.BidID {
		t.Errorf("event bid = %s, want %s", ev.BidID, res.BidID)
	}
}

func TestHandleBidEndTimeNeverMovesEarlier(t *testing.T) {
	store := newMemAuctionStore()
	m, ctx := newTestManager(t, store, &stubLocks{})
	base := time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	// Reset shorter than the time remaining: now + 5s is before the
	// current end, so the timer must not move.
	item := liveItem("item-1", base, 10*time.Minute, 30*time.Second, 5*time.Second)
	r := newRunner(m, item)
	oldEnd := *r.item.EndsAt

	now = oldEnd.Add(-20 * time.Second)
	res, err := r.handleBid(ctx, "alice", 100_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("result = %+v, want accepted", res)
	}
	if res.Extended {
		t.Error("timer extended backwards")
	}
	if !res.EndsAt.Equal(oldEnd) {
		t.Errorf("EndsAt = %v, want unchanged %v", res.EndsAt, oldEnd)
	}
	// The non-extension is still audited.
	exts, _ := store.ListExtensions(ctx, "item-1")
	if len(exts) != 1 || exts[0].Rule != domain.ExtensionRuleNone {
		t.Errorf("extensions = %+v, want one %s event", exts, domain.ExtensionRuleNone)
	}
}

func TestHandleBidZeroWindowNeverExtends(t *testing.T) {
	store := newMemAuctionStore()
	m, ctx := newTestManager(t, store, &stubLocks{})
	base := time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	item := liveItem("item-1", base, time.Minute, 0, 0)
	r := newRunner(m, item)

	now = base.Add(59 * time.Second) // one second left
	res, err := r.handleBid(ctx, "alice", 100_000)
	if err != nil {
		t.Fatalf("handleBid: %v", err)
	}
	if !res.Accepted || res.Extended {
		t.Fatalf("result = %+v, want accepted without extension", res)
	}
	if exts, _ := store.ListExtensions(ctx, "item-1"); len(exts) != 0 {
		t.Errorf("recorded %d extension events, want 0", len(exts))
	}
}

func TestHandleBidAfterEndRejected(t *testing.T) {
	store := newMemAuctionStore()
	m, ctx := newTestManager(t, store, &stubLocks{})
	base := time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	item := liveItem("item-1", base, time.Minute, 30*time.Second, 30*time.Second)
	r := newRunner(m, item)

	now = base.Add(time.Minute) // exactly the hammer
	if _, err := r.handleBid(ctx, "alice", 100_000); !errors.Is(err, domain.ErrAuctionClosed) {
		t.Errorf("handleBid at end = %v, want ErrAuctionClosed", err)
	}
	if len(store.bids) != 0 {
		t.Errorf("recorded %d bids after the hammer, want 0", len(store.bids))
	}
}

func TestFinishResolvesReserve(t *testing.T) {
	tests := []struct {
		name     string
		reserve  int64
		highBid  int64
		highID   string
		want     domain.LotItemStatus
	}{
		{"no bids", 0, 0, "", domain.LotItemNoSale},
		{"no reserve sells", 0, 100_000, "bid-1", domain.LotItemSold},
		{"reserve met", 90_000, 100_000, "bid-1", domain.LotItemSold},
		{"reserve missed", 150_000, 100_000, "bid-1", domain.LotItemNoSale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemAuctionStore()
			m, ctx := newTestManager(t, store, &stubLocks{})
			base := time.Date(2026, 8, 1, 18, 0, 0, 0, time.UTC)
			m.now = func() time.Time { return base }

			lot := domain.AuctionLot{ID: "lot-1", Type: domain.LotTypeSingle, Status: domain.LotStatusActive}
			item := liveItem("item-1", base, time.Minute, 0, 0)
			item.ReservePriceCents = tt.reserve
			item.HighBidCents = tt.highBid
			item.HighBidID = tt.highID
			if err := store.CreateLot(ctx, lot, []domain.LotItem{item}); err != nil {
				t.Fatalf("CreateLot: %v", err)
			}

			r := newRunner(m, item)
			r.finish(ctx)

			if got := store.item("item-1").Status; got != tt.want {
				t.Errorf("item status = %s, want %s", got, tt.want)
			}
			// The lot has no further items, so resolving the item
			// completes it.
			if got, _ := store.GetLot(ctx, "lot-1"); got.Status != domain.LotStatusCompleted {
				t.Errorf("lot status = %s, want completed", got.Status)
			}
		})
	}
}

func TestRunnerResolvesAtExpiry(t *testing.T) {
	store := newMemAuctionStore()
	m, ctx := newTestManager(t, store, &stubLocks{})

	lot, err := m.CreateLot(ctx, domain.AuctionLot{Type: domain.LotTypeSingle},
		[]domain.LotItem{{
			SequenceNumber:    1,
			StartPriceCents:   100_000,
			MinIncrementCents: 5_000,
			Duration:          20 * time.Millisecond,
		}})
	if err != nil {
		t.Fatalf("CreateLot: %v", err)
	}
	if err := m.StartLot(ctx, lot.ID); err != nil {
		t.Fatalf("StartLot: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := store.GetLot(ctx, lot.ID)
		if got.Status == domain.LotStatusCompleted {
			items, _ := store.ListItems(ctx, lot.ID)
			if items[0].Status != domain.LotItemNoSale {
				t.Errorf("item status = %s, want no_sale without bids", items[0].Status)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("lot never completed after its item expired")
}
