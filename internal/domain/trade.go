package domain

import "time"

// Trade is the immutable record of one match: created exactly once, never
// updated or deleted.
type Trade struct {
	ID              string
	OfferingID      string
	BuyOrderID      string
	SellOrderID     string
	BuyerID         string
	SellerID        string
	Shares          int64
	PriceCents      int64 // the resting order's price
	CommissionCents int64 // platform commission on the notional
	ExecutedAt      time.Time
}

// NotionalCents returns shares x execution price.
func (t Trade) NotionalCents() int64 {
	return t.Shares * t.PriceCents
}

// DailyActivity aggregates a user's trading for one day, derived from the
// append-only trade log. Consumed by the risk ledger's daily-limit checks.
type DailyActivity struct {
	TradeCount  int64
	VolumeCents int64
}

// Execution is the atomic unit the matching engine commits: every trade
// produced by one incoming order together with the post-match state of all
// touched orders and holdings. A store either persists all of it or none.
type Execution struct {
	OfferingID string
	Incoming   Order
	Resting    []Order // post-fill state of touched resting orders
	Trades     []Trade
	Holdings   []Holding // post-trade state, one per touched (user, offering)
	// LastPriceCents updates the offering's current share price; zero means
	// no trade occurred and the price is untouched.
	LastPriceCents int64
}
