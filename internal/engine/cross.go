package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paddockhq/paddock/internal/domain"
)

// openTrading clears the opening call auction and moves the offering into
// continuous trading. The uncrossed remainder carries into the book or is
// cancelled, per the offering's policy.
func (ow *owner) openTrading(ctx context.Context) error {
	if ow.offering.Status != domain.OfferingStatusActive {
		return fmt.Errorf("engine: open trading for %s from status %s: %w",
			ow.offering.ID, ow.offering.Status, domain.ErrMarketClosed)
	}
	now := ow.eng.now()

	openingCents, crossed, err := ow.cross(ctx, now)
	if err != nil {
		return err
	}
	if ow.offering.Uncrossed == domain.UncrossedCancel {
		ow.cancelAllResting(ctx, now)
	}
	if crossed {
		if err := ow.eng.offerings.SetOpeningPrice(ctx, ow.offering.ID, openingCents); err != nil {
			return fmt.Errorf("engine: set opening price for %s: %w", ow.offering.ID, err)
		}
		ow.offering.OpeningPriceCents = openingCents
		ow.offering.CurrentPriceCents = openingCents
	}
	if err := ow.eng.offerings.UpdateStatus(ctx, ow.offering.ID, domain.OfferingStatusTrading); err != nil {
		return fmt.Errorf("engine: open trading for %s: %w", ow.offering.ID, err)
	}
	ow.offering.Status = domain.OfferingStatusTrading
	ow.eng.logger.InfoContext(ctx, "trading opened",
		slog.String("offering_id", ow.offering.ID),
		slog.Bool("opening_cross", crossed),
		slog.Int64("opening_price_cents", openingCents))
	return nil
}

// beginClose stops continuous matching; subsequent orders collect for the
// closing cross.
func (ow *owner) beginClose(ctx context.Context) error {
	if ow.offering.Status != domain.OfferingStatusTrading {
		return fmt.Errorf("engine: begin close for %s from status %s: %w",
			ow.offering.ID, ow.offering.Status, domain.ErrMarketClosed)
	}
	if err := ow.eng.offerings.UpdateStatus(ctx, ow.offering.ID, domain.OfferingStatusClosingAuction); err != nil {
		return fmt.Errorf("engine: begin close for %s: %w", ow.offering.ID, err)
	}
	ow.offering.Status = domain.OfferingStatusClosingAuction
	ow.eng.logger.InfoContext(ctx, "closing auction collecting", slog.String("offering_id", ow.offering.ID))
	return nil
}

// completeClose clears the closing cross, expires day orders, records the
// closing price, and closes the offering. GTC remainders stay persisted and
// reload if the offering ever reopens.
func (ow *owner) completeClose(ctx context.Context) error {
	if ow.offering.Status != domain.OfferingStatusClosingAuction {
		return fmt.Errorf("engine: complete close for %s from status %s: %w",
			ow.offering.ID, ow.offering.Status, domain.ErrMarketClosed)
	}
	now := ow.eng.now()

	closingCents, crossed, err := ow.cross(ctx, now)
	if err != nil {
		return err
	}
	if !crossed {
		closingCents = ow.offering.CurrentPriceCents
	}
	ow.expireDayOrders(ctx, now)
	if closingCents > 0 {
		if err := ow.eng.offerings.SetClosingPrice(ctx, ow.offering.ID, closingCents); err != nil {
			return fmt.Errorf("engine: set closing price for %s: %w", ow.offering.ID, err)
		}
		ow.offering.ClosingPriceCents = closingCents
		ow.offering.CurrentPriceCents = closingCents
	}
	if err := ow.eng.offerings.UpdateStatus(ctx, ow.offering.ID, domain.OfferingStatusClosed); err != nil {
		return fmt.Errorf("engine: complete close for %s: %w", ow.offering.ID, err)
	}
	ow.offering.Status = domain.OfferingStatusClosed
	ow.eng.logger.InfoContext(ctx, "offering closed",
		slog.String("offering_id", ow.offering.ID),
		slog.Bool("closing_cross", crossed),
		slog.Int64("closing_price_cents", closingCents))
	return nil
}

// cross computes the equilibrium over the collected book and, when one
// exists, commits and applies the batch execution. Returns the clearing
// price and whether any volume crossed.
func (ow *owner) cross(ctx context.Context, now time.Time) (int64, bool, error) {
	eq, ok := computeEquilibrium(
		ow.book.restingOrders(domain.OrderSideBuy),
		ow.book.restingOrders(domain.OrderSideSell),
		ow.offering.CurrentPriceCents,
	)
	if !ok {
		return 0, false, nil
	}
	exec, bidFills, askFills, err := ow.buildBatch(ctx, eq, now)
	if err != nil {
		return 0, false, err
	}
	if err := ow.eng.trades.RecordExecution(ctx, exec); err != nil {
		return 0, false, fmt.Errorf("engine: record auction cross for %s: %w", ow.offering.ID, err)
	}
	ow.book.applyFills(bidFills)
	ow.book.applyFills(askFills)
	ow.offering.CurrentPriceCents = eq.PriceCents
	ow.eng.publishExecution(ctx, exec)
	ow.eng.logger.InfoContext(ctx, "call auction crossed",
		slog.String("offering_id", ow.offering.ID),
		slog.Int64("price_cents", eq.PriceCents),
		slog.Int64("matched_shares", eq.Matched),
		slog.Int64("leftover_shares", eq.Leftover))
	return eq.PriceCents, true, nil
}

// buildBatch turns a call-auction plan into the atomic commit unit. All
// trades execute at the single clearing price.
func (ow *owner) buildBatch(ctx context.Context, eq equilibrium, now time.Time) (domain.Execution, []fill, []fill, error) {
	batch := ow.book.planBatch(eq)

	trades := make([]domain.Trade, 0, len(batch))
	bidFills := make([]fill, 0, len(batch))
	askFills := make([]fill, 0, len(batch))
	posts := make(map[string]*domain.Order)
	var orderSeq []string
	touch := func(e *bookEntry, shares int64) {
		o, ok := posts[e.order.ID]
		if !ok {
			cp := e.order
			o = &cp
			posts[e.order.ID] = o
			orderSeq = append(orderSeq, e.order.ID)
		}
		o.SharesFilled += shares
		if o.Remaining() == 0 {
			o.Status = domain.OrderStatusFilled
			o.FilledAt = &now
		} else {
			o.Status = domain.OrderStatusPartiallyFilled
		}
	}
	for _, bf := range batch {
		t := domain.Trade{
			ID:          uuid.NewString(),
			OfferingID:  ow.offering.ID,
			BuyOrderID:  bf.bid.order.ID,
			SellOrderID: bf.ask.order.ID,
			BuyerID:     bf.bid.order.UserID,
			SellerID:    bf.ask.order.UserID,
			Shares:      bf.shares,
			PriceCents:  eq.PriceCents,
			ExecutedAt:  now,
		}
		t.CommissionCents = commissionCents(t.NotionalCents(), ow.eng.cfg.CommissionBps)
		trades = append(trades, t)
		touch(bf.bid, bf.shares)
		touch(bf.ask, bf.shares)
		bidFills = append(bidFills, fill{entry: bf.bid, shares: bf.shares, priceCents: bf.bid.order.LimitPriceCents})
		askFills = append(askFills, fill{entry: bf.ask, shares: bf.shares, priceCents: bf.ask.order.LimitPriceCents})
	}
	resting := make([]domain.Order, 0, len(orderSeq))
	for _, id := range orderSeq {
		resting = append(resting, *posts[id])
	}

	holdings, err := ow.postHoldings(ctx, trades, now)
	if err != nil {
		return domain.Execution{}, nil, nil, err
	}
	return domain.Execution{
		OfferingID:     ow.offering.ID,
		Resting:        resting,
		Trades:         trades,
		Holdings:       holdings,
		LastPriceCents: eq.PriceCents,
	}, bidFills, askFills, nil
}

// cancelAllResting cancels every order left on the book. Store failures are
// logged and skipped so one bad row cannot wedge the transition.
func (ow *owner) cancelAllResting(ctx context.Context, now time.Time) {
	for _, side := range []domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell} {
		for _, o := range ow.book.restingOrders(side) {
			o.Status = domain.OrderStatusCancelled
			o.CancelledAt = &now
			if err := ow.eng.orders.Update(ctx, o); err != nil {
				ow.eng.logger.WarnContext(ctx, "cancel uncrossed order failed",
					slog.String("order_id", o.ID), slog.Any("error", err))
				continue
			}
			ow.book.Remove(o.ID)
			ow.eng.publishOrder(ctx, o)
		}
	}
}

// expireDayOrders expires every resting day order at session close.
func (ow *owner) expireDayOrders(ctx context.Context, now time.Time) {
	for _, side := range []domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell} {
		for _, o := range ow.book.restingOrders(side) {
			if o.TIF != domain.TIFDay {
				continue
			}
			o.Status = domain.OrderStatusExpired
			o.CancelledAt = &now
			if err := ow.eng.orders.Update(ctx, o); err != nil {
				ow.eng.logger.WarnContext(ctx, "expire day order failed",
					slog.String("order_id", o.ID), slog.Any("error", err))
				continue
			}
			ow.book.Remove(o.ID)
			ow.eng.publishOrder(ctx, o)
		}
	}
}
