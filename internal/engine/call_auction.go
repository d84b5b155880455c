package engine

import (
	"sort"

	"github.com/paddockhq/paddock/internal/domain"
)

// equilibrium is the outcome of a call-auction price computation.
type equilibrium struct {
	PriceCents int64
	Matched    int64 // shares that cross at the price
	Leftover   int64 // unmatched imbalance at the price
}

// computeEquilibrium finds the single clearing price that maximizes matched
// volume across the aggregated bid and ask curves. Ties break by minimizing
// leftover volume, then by proximity to the prior session's close. Returns
// ok=false when no price crosses any volume.
func computeEquilibrium(bids, asks []domain.Order, priorCloseCents int64) (equilibrium, bool) {
	if len(bids) == 0 || len(asks) == 0 {
		return equilibrium{}, false
	}

	// Candidate prices are the union of all limit prices.
	seen := make(map[int64]struct{}, len(bids)+len(asks))
	var candidates []int64
	for _, o := range bids {
		if _, ok := seen[o.LimitPriceCents]; !ok {
			seen[o.LimitPriceCents] = struct{}{}
			candidates = append(candidates, o.LimitPriceCents)
		}
	}
	for _, o := range asks {
		if _, ok := seen[o.LimitPriceCents]; !ok {
			seen[o.LimitPriceCents] = struct{}{}
			candidates = append(candidates, o.LimitPriceCents)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	var best equilibrium
	found := false
	for _, p := range candidates {
		var demand, supply int64
		for _, o := range bids {
			if o.LimitPriceCents >= p {
				demand += o.Remaining()
			}
		}
		for _, o := range asks {
			if o.LimitPriceCents <= p {
				supply += o.Remaining()
			}
		}
		matched := min64(demand, supply)
		if matched <= 0 {
			continue
		}
		cand := equilibrium{PriceCents: p, Matched: matched, Leftover: abs64(demand - supply)}
		if !found || betterEquilibrium(cand, best, priorCloseCents) {
			best = cand
			found = true
		}
	}
	return best, found
}

// betterEquilibrium reports whether a beats b under the tie-break chain:
// more matched volume, then less leftover, then closer to the prior close.
func betterEquilibrium(a, b equilibrium, priorCloseCents int64) bool {
	if a.Matched != b.Matched {
		return a.Matched > b.Matched
	}
	if a.Leftover != b.Leftover {
		return a.Leftover < b.Leftover
	}
	return abs64(a.PriceCents-priorCloseCents) < abs64(b.PriceCents-priorCloseCents)
}

// batchFill pairs one bid with one ask for part of the call-auction volume.
type batchFill struct {
	bid    *bookEntry
	ask    *bookEntry
	shares int64
}

// planBatch crosses resting orders at the clearing price in price-time
// priority until the matched volume is exhausted. Only orders whose limits
// cross the clearing price participate.
func (b *Book) planBatch(eq equilibrium) []batchFill {
	bids := b.eligibleEntries(domain.OrderSideBuy, eq.PriceCents)
	asks := b.eligibleEntries(domain.OrderSideSell, eq.PriceCents)

	var fills []batchFill
	remaining := eq.Matched
	bi, ai := 0, 0
	bidLeft, askLeft := int64(0), int64(0)
	for remaining > 0 && bi < len(bids) && ai < len(asks) {
		if bidLeft == 0 {
			bidLeft = bids[bi].order.Remaining()
		}
		if askLeft == 0 {
			askLeft = asks[ai].order.Remaining()
		}
		qty := min64(min64(bidLeft, askLeft), remaining)
		fills = append(fills, batchFill{bid: bids[bi], ask: asks[ai], shares: qty})
		remaining -= qty
		bidLeft -= qty
		askLeft -= qty
		if bidLeft == 0 {
			bi++
		}
		if askLeft == 0 {
			ai++
		}
	}
	return fills
}

// eligibleEntries returns entries on one side whose limit crosses the
// clearing price, best price first.
func (b *Book) eligibleEntries(side domain.OrderSide, priceCents int64) []*bookEntry {
	levels := b.asks
	if side == domain.OrderSideBuy {
		levels = b.bids
	}
	var out []*bookEntry
	for _, lvl := range levels {
		if side == domain.OrderSideBuy && lvl.price < priceCents {
			break
		}
		if side == domain.OrderSideSell && lvl.price > priceCents {
			break
		}
		for _, e := range lvl.queue {
			if e.order.Remaining() > 0 {
				out = append(out, e)
			}
		}
	}
	return out
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
