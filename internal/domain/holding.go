package domain

import "time"

// Holding is a user's current position in one offering. It is the only
// entity that accumulates state across trades and must be read-modified-
// written atomically with each trade. Shares never go negative (no short
// selling).
type Holding struct {
	UserID             string
	OfferingID         string
	Shares             int64
	AvgEntryPriceCents int64
	UpdatedAt          time.Time
}

// MarketValueCents returns the mark-to-market value at the given share price.
func (h Holding) MarketValueCents(priceCents int64) int64 {
	return h.Shares * priceCents
}

// ApplyBuy folds a purchase into the holding, recomputing the average entry
// price over the combined position.
func (h Holding) ApplyBuy(shares, priceCents int64) Holding {
	total := h.Shares + shares
	if total > 0 {
		h.AvgEntryPriceCents = (h.Shares*h.AvgEntryPriceCents + shares*priceCents) / total
	}
	h.Shares = total
	return h
}

// ApplySell reduces the position. Average entry price is unchanged; the
// caller guarantees shares <= h.Shares.
func (h Holding) ApplySell(shares int64) Holding {
	h.Shares -= shares
	return h
}
