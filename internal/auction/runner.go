// Package auction runs live auction lots: single items, rapid-fire
// sequences, and simultaneous groups. Each active item is owned by one
// runner goroutine, so bid acceptance and timer expiry are decided against a
// single clock read and can never race.
package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paddockhq/paddock/internal/domain"
)

type bidCmd struct {
	userID string
	amount int64
	resp   chan bidResp
}

type bidResp struct {
	result domain.BidResult
	err    error
}

// runner owns one active lot item from activation to resolution.
type runner struct {
	mgr  *Manager
	item domain.LotItem
	bids chan bidCmd
	done chan struct{}
}

func newRunner(mgr *Manager, item domain.LotItem) *runner {
	return &runner{
		mgr:  mgr,
		item: item,
		bids: make(chan bidCmd),
		done: make(chan struct{}),
	}
}

func (r *runner) loop(ctx context.Context) {
	defer r.mgr.wg.Done()
	defer close(r.done)

	timer := time.NewTimer(r.untilEnd())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			// An extension may have moved the end since the timer was
			// armed; the clock decides, not the timer.
			now := r.mgr.now()
			if r.item.EndsAt != nil && now.Before(*r.item.EndsAt) {
				timer.Reset(r.item.EndsAt.Sub(now))
				continue
			}
			r.finish(ctx)
			return
		case c := <-r.bids:
			res, err := r.handleBid(ctx, c.userID, c.amount)
			c.resp <- bidResp{result: res, err: err}
			timer.Reset(r.untilEnd())
		}
	}
}

func (r *runner) untilEnd() time.Duration {
	if r.item.EndsAt == nil {
		return 0
	}
	d := r.item.EndsAt.Sub(r.mgr.now())
	if d < 0 {
		return 0
	}
	return d
}

// handleBid decides acceptance, the new high bid, and any anti-sniping
// extension under one clock read.
func (r *runner) handleBid(ctx context.Context, userID string, amountCents int64) (domain.BidResult, error) {
	now := r.mgr.now()
	item := &r.item
	if item.Status != domain.LotItemActive || item.EndsAt == nil {
		return domain.BidResult{}, fmt.Errorf("auction: item %s: %w", item.ID, domain.ErrAuctionClosed)
	}
	if !now.Before(*item.EndsAt) {
		// Arrived after the hammer; the timer case resolves the item.
		return domain.BidResult{}, fmt.Errorf("auction: item %s: %w", item.ID, domain.ErrAuctionClosed)
	}

	minBid := item.StartPriceCents
	if item.HighBidCents > 0 {
		minBid = item.HighBidCents + item.MinIncrementCents
	}
	bid := domain.Bid{
		ID:          uuid.NewString(),
		LotItemID:   item.ID,
		UserID:      userID,
		AmountCents: amountCents,
		CreatedAt:   now,
	}
	switch {
	case item.HighBidderID != "" && item.HighBidderID == userID:
		// The leader raising their own bid would also let them roll the
		// soft-close timer forward at will.
		bid.RejectReason = "already the high bidder"
	case amountCents < minBid:
		bid.RejectReason = fmt.Sprintf("bid below minimum of %d cents", minBid)
	}
	if bid.RejectReason != "" {
		if err := r.mgr.store.InsertBid(ctx, bid); err != nil {
			r.mgr.logger.WarnContext(ctx, "record rejected bid failed",
				slog.String("lot_item_id", item.ID), slog.Any("error", err))
		}
		return domain.BidResult{
			Reason:       bid.RejectReason,
			HighBidCents: item.HighBidCents,
			EndsAt:       *item.EndsAt,
		}, nil
	}

	bid.Accepted = true
	if err := r.mgr.store.InsertBid(ctx, bid); err != nil {
		return domain.BidResult{}, fmt.Errorf("auction: record bid on %s: %w", item.ID, err)
	}
	item.HighBidID = bid.ID
	item.HighBidCents = amountCents
	item.HighBidderID = userID

	extended := false
	if item.SnipingWindow > 0 && item.EndsAt.Sub(now) <= item.SnipingWindow {
		oldEnd := *item.EndsAt
		newEnd := now.Add(item.ResetLength)
		ev := domain.TimerExtensionEvent{
			LotItemID:     item.ID,
			BidID:         bid.ID,
			OldEndTime:    oldEnd,
			NewEndTime:    oldEnd,
			Rule:          domain.ExtensionRuleNone,
			SnipingWindow: item.SnipingWindow,
			ResetLength:   item.ResetLength,
			CreatedAt:     now,
		}
		// The end time only ever moves later.
		if newEnd.After(oldEnd) {
			item.EndsAt = &newEnd
			ev.NewEndTime = newEnd
			ev.Rule = domain.ExtensionRuleSoftClose
			extended = true
		}
		if err := r.mgr.store.InsertExtension(ctx, ev); err != nil {
			r.mgr.logger.WarnContext(ctx, "record timer extension failed",
				slog.String("lot_item_id", item.ID), slog.Any("error", err))
		}
	}

	if err := r.mgr.store.UpdateItem(ctx, *item); err != nil {
		return domain.BidResult{}, fmt.Errorf("auction: update item %s: %w", item.ID, err)
	}
	r.mgr.publishBid(ctx, *item, bid, extended)
	return domain.BidResult{
		Accepted:     true,
		BidID:        bid.ID,
		HighBidCents: item.HighBidCents,
		EndsAt:       *item.EndsAt,
		Extended:     extended,
	}, nil
}

// finish resolves the item at expiry: sold when a high bid meets the
// reserve, no-sale otherwise, then hands control back to the sequencer.
func (r *runner) finish(ctx context.Context) {
	item := &r.item
	if item.HighBidID != "" && item.ReserveMet() {
		item.Status = domain.LotItemSold
	} else {
		item.Status = domain.LotItemNoSale
	}
	if err := r.mgr.store.UpdateItem(ctx, *item); err != nil {
		r.mgr.logger.ErrorContext(ctx, "resolve lot item failed",
			slog.String("lot_item_id", item.ID), slog.Any("error", err))
		return
	}
	r.mgr.logger.InfoContext(ctx, "lot item resolved",
		slog.String("lot_item_id", item.ID),
		slog.String("lot_id", item.LotID),
		slog.String("status", string(item.Status)),
		slog.Int64("high_bid_cents", item.HighBidCents))
	r.mgr.publishItem(ctx, *item)
	r.mgr.itemFinished(ctx, *item)
}
