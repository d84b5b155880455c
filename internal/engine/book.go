// Package engine implements the per-offering order book, the continuous
// matching engine, and the open/close call auctions. All mutations for one
// offering are serialized through a single owner goroutine.
package engine

import (
	"sort"

	"github.com/paddockhq/paddock/internal/domain"
)

// bookEntry is a resting order plus its insertion sequence. The sequence
// fixes time priority and is never reassigned, so a partial fill keeps its
// place in the queue.
type bookEntry struct {
	order domain.Order
	seq   uint64
}

// priceLevel holds the FIFO queue of resting orders at one price.
type priceLevel struct {
	price       int64
	queue       []*bookEntry
	totalShares int64
}

func (lvl *priceLevel) enqueue(e *bookEntry) {
	lvl.queue = append(lvl.queue, e)
	lvl.totalShares += e.order.Remaining()
}

func (lvl *priceLevel) remove(orderID string) *bookEntry {
	for i, e := range lvl.queue {
		if e.order.ID == orderID {
			lvl.queue = append(lvl.queue[:i], lvl.queue[i+1:]...)
			lvl.totalShares -= e.order.Remaining()
			return e
		}
	}
	return nil
}

// Book is the in-memory order book for one offering: bids sorted by price
// descending, asks ascending, FIFO within each level (strict price-time
// priority, no pro-rata).
type Book struct {
	offeringID string
	bids       []*priceLevel
	asks       []*priceLevel
	byID       map[string]*bookEntry
	nextSeq    uint64
}

// NewBook creates an empty book for one offering.
func NewBook(offeringID string) *Book {
	return &Book{
		offeringID: offeringID,
		byID:       make(map[string]*bookEntry),
	}
}

// Insert rests an order in the book. Orders are assumed validated and
// risk-admitted by the caller.
func (b *Book) Insert(o domain.Order) {
	e := &bookEntry{order: o, seq: b.nextSeq}
	b.nextSeq++
	b.byID[o.ID] = e

	if o.Side == domain.OrderSideBuy {
		b.bids = insertLevel(b.bids, o.LimitPriceCents, e, func(a, p int64) bool { return a > p })
	} else {
		b.asks = insertLevel(b.asks, o.LimitPriceCents, e, func(a, p int64) bool { return a < p })
	}
}

// insertLevel enqueues e at its price level, creating the level at the
// position that keeps levels sorted by before(level, other).
func insertLevel(levels []*priceLevel, price int64, e *bookEntry, before func(a, b int64) bool) []*priceLevel {
	idx := sort.Search(len(levels), func(i int) bool {
		return !before(levels[i].price, price)
	})
	if idx < len(levels) && levels[idx].price == price {
		levels[idx].enqueue(e)
		return levels
	}
	lvl := &priceLevel{price: price}
	lvl.enqueue(e)
	levels = append(levels, nil)
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = lvl
	return levels
}

// Remove unlinks an order from the book and returns its current state.
func (b *Book) Remove(orderID string) (domain.Order, bool) {
	e, ok := b.byID[orderID]
	if !ok {
		return domain.Order{}, false
	}
	delete(b.byID, orderID)

	levels := b.asks
	if e.order.Side == domain.OrderSideBuy {
		levels = b.bids
	}
	for i, lvl := range levels {
		if lvl.price != e.order.LimitPriceCents {
			continue
		}
		lvl.remove(orderID)
		if len(lvl.queue) == 0 {
			if e.order.Side == domain.OrderSideBuy {
				b.bids = append(b.bids[:i], b.bids[i+1:]...)
			} else {
				b.asks = append(b.asks[:i], b.asks[i+1:]...)
			}
		}
		break
	}
	return e.order, true
}

// Get returns the current state of a resting order.
func (b *Book) Get(orderID string) (domain.Order, bool) {
	e, ok := b.byID[orderID]
	if !ok {
		return domain.Order{}, false
	}
	return e.order, true
}

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (int64, bool) {
	if len(b.bids) == 0 {
		return 0, false
	}
	return b.bids[0].price, true
}

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (int64, bool) {
	if len(b.asks) == 0 {
		return 0, false
	}
	return b.asks[0].price, true
}

// AvailableWithin sums the opposite-side shares an order with the given side
// and limit could reach. Used for the fill-or-kill dry run.
func (b *Book) AvailableWithin(side domain.OrderSide, limitCents int64) int64 {
	var total int64
	if side == domain.OrderSideBuy {
		for _, lvl := range b.asks {
			if lvl.price > limitCents {
				break
			}
			total += lvl.totalShares
		}
	} else {
		for _, lvl := range b.bids {
			if lvl.price < limitCents {
				break
			}
			total += lvl.totalShares
		}
	}
	return total
}

// UserSellRemaining sums the user's open sell-order remainder on this book.
// The risk ledger subtracts it so stacked sells cannot oversell a holding.
func (b *Book) UserSellRemaining(userID string) int64 {
	var total int64
	for _, e := range b.byID {
		if e.order.UserID == userID && e.order.Side == domain.OrderSideSell {
			total += e.order.Remaining()
		}
	}
	return total
}

// fill is one planned cross between the incoming order and a resting entry.
// Price is always the resting order's price.
type fill struct {
	entry      *bookEntry
	shares     int64
	priceCents int64
}

// planMatch walks the opposite side from best price outward and returns the
// fills the incoming order would produce, without mutating the book.
func (b *Book) planMatch(incoming domain.Order) []fill {
	remaining := incoming.Remaining()
	if remaining <= 0 {
		return nil
	}

	levels := b.asks
	if incoming.Side == domain.OrderSideSell {
		levels = b.bids
	}

	var fills []fill
	for _, lvl := range levels {
		if remaining <= 0 || !incoming.Crosses(lvl.price) {
			break
		}
		for _, e := range lvl.queue {
			if remaining <= 0 {
				break
			}
			avail := e.order.Remaining()
			if avail <= 0 {
				continue
			}
			qty := min64(remaining, avail)
			fills = append(fills, fill{entry: e, shares: qty, priceCents: lvl.price})
			remaining -= qty
		}
	}
	return fills
}

// applyFills mutates the book after an execution committed: resting orders
// are reduced in place and removed when fully filled. Time priority of
// partially filled orders is untouched.
func (b *Book) applyFills(fills []fill) {
	for _, f := range fills {
		f.entry.order.SharesFilled += f.shares
		side := &b.asks
		if f.entry.order.Side == domain.OrderSideBuy {
			side = &b.bids
		}
		for i, lvl := range *side {
			if lvl.price != f.priceCents {
				continue
			}
			lvl.totalShares -= f.shares
			if f.entry.order.Remaining() == 0 {
				lvl.remove(f.entry.order.ID)
				delete(b.byID, f.entry.order.ID)
				f.entry.order.Status = domain.OrderStatusFilled
			}
			if len(lvl.queue) == 0 {
				*side = append((*side)[:i], (*side)[i+1:]...)
			}
			break
		}
	}
}

// restingOrders returns all resting orders on one side, best price first,
// FIFO inside a level.
func (b *Book) restingOrders(side domain.OrderSide) []domain.Order {
	levels := b.asks
	if side == domain.OrderSideBuy {
		levels = b.bids
	}
	var out []domain.Order
	for _, lvl := range levels {
		for _, e := range lvl.queue {
			out = append(out, e.order)
		}
	}
	return out
}

// Depth reports the number of resting orders.
func (b *Book) Depth() int {
	return len(b.byID)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
