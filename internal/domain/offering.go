package domain

import "time"

// OfferingStatus tracks the offering lifecycle. Transitions are monotonic
// except for an explicit cancel.
type OfferingStatus string

const (
	OfferingStatusPending        OfferingStatus = "pending"
	OfferingStatusScheduled      OfferingStatus = "scheduled"
	OfferingStatusActive         OfferingStatus = "active"
	OfferingStatusTrading        OfferingStatus = "trading"
	OfferingStatusClosingAuction OfferingStatus = "closing_auction"
	OfferingStatusClosed         OfferingStatus = "closed"
	OfferingStatusCancelled      OfferingStatus = "cancelled"
	OfferingStatusSoldOut        OfferingStatus = "sold_out"
)

// UncrossedPolicy decides what happens to orders left unmatched after a call
// auction clears.
type UncrossedPolicy string

const (
	// UncrossedCarry rests unmatched remainder into continuous trading.
	UncrossedCarry UncrossedPolicy = "carry"
	// UncrossedCancel cancels the unmatched remainder.
	UncrossedCancel UncrossedPolicy = "cancel"
)

// Offering is a tradable unit representing TotalShares fractional shares of
// one vehicle. All prices are integer cents.
type Offering struct {
	ID                string
	VehicleID         string
	Name              string
	TotalShares       int64
	CurrentPriceCents int64
	OpeningPriceCents int64
	ClosingPriceCents int64
	Status            OfferingStatus
	Uncrossed         UncrossedPolicy
	TradingOpensAt    time.Time
	TradingClosesAt   time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// offeringRank orders statuses along the forward-only lifecycle.
var offeringRank = map[OfferingStatus]int{
	OfferingStatusPending:        0,
	OfferingStatusScheduled:      1,
	OfferingStatusActive:         2,
	OfferingStatusTrading:        3,
	OfferingStatusClosingAuction: 4,
	OfferingStatusClosed:         5,
	OfferingStatusSoldOut:        5,
}

// CanTransition reports whether an offering may move from its current status
// to next. Cancel is allowed from any non-terminal state; every other
// transition must move forward.
func (o Offering) CanTransition(next OfferingStatus) bool {
	if o.Status == OfferingStatusCancelled || o.Status == OfferingStatusClosed || o.Status == OfferingStatusSoldOut {
		return false
	}
	if next == OfferingStatusCancelled {
		return true
	}
	cur, ok := offeringRank[o.Status]
	if !ok {
		return false
	}
	nxt, ok := offeringRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// Tradable reports whether the offering currently accepts continuous orders.
func (o Offering) Tradable() bool {
	return o.Status == OfferingStatusTrading
}
