package domain

import "time"

// LotType distinguishes how a multi-item lot activates its items.
type LotType string

const (
	// LotTypeSingle has exactly one item.
	LotTypeSingle LotType = "single"
	// LotTypeSequential runs items one at a time in sequence order
	// ("rapid-fire").
	LotTypeSequential LotType = "sequential"
	// LotTypeSimultaneous activates all items at once and bypasses
	// sequencing.
	LotTypeSimultaneous LotType = "simultaneous"
)

// LotStatus tracks the whole lot's lifecycle.
type LotStatus string

const (
	LotStatusPending   LotStatus = "pending"
	LotStatusActive    LotStatus = "active"
	LotStatusCompleted LotStatus = "completed"
	LotStatusCancelled LotStatus = "cancelled"
)

// LotItemStatus tracks a single item's lifecycle.
type LotItemStatus string

const (
	LotItemPending LotItemStatus = "pending"
	LotItemActive  LotItemStatus = "active"
	LotItemSold    LotItemStatus = "sold"
	LotItemNoSale  LotItemStatus = "no_sale"
	LotItemSkipped LotItemStatus = "skipped"
)

// AuctionLot is a scheduled live auction: a single item or a sequence.
type AuctionLot struct {
	ID        string
	Title     string
	Type      LotType
	Status    LotStatus
	CreatedAt time.Time
}

// LotItem is one auctionable item inside a lot. Duration, the anti-sniping
// window, and the reset length are per-item configuration; a zero
// SnipingWindow disables extension entirely (rapid-fire tiers).
type LotItem struct {
	ID                string
	LotID             string
	OfferingID        string
	SequenceNumber    int
	Status            LotItemStatus
	StartPriceCents   int64
	MinIncrementCents int64
	ReservePriceCents int64 // zero means no reserve
	Duration          time.Duration
	SnipingWindow     time.Duration
	ResetLength       time.Duration
	StartedAt         *time.Time
	EndsAt            *time.Time
	HighBidID         string
	HighBidCents      int64
	HighBidderID      string
}

// ReserveMet reports whether the current high bid satisfies the reserve.
func (li LotItem) ReserveMet() bool {
	return li.ReservePriceCents == 0 || li.HighBidCents >= li.ReservePriceCents
}

// Bid is one bid on a lot item, accepted or rejected.
type Bid struct {
	ID           string
	LotItemID    string
	UserID       string
	AmountCents  int64
	Accepted     bool
	RejectReason string
	CreatedAt    time.Time
}

// ExtensionRule names which anti-sniping rule fired for an event.
type ExtensionRule string

const (
	// ExtensionRuleSoftClose is the standard in-window reset extension.
	ExtensionRuleSoftClose ExtensionRule = "soft_close"
	// ExtensionRuleNone records a qualifying bid near the boundary that did
	// not move the end time.
	ExtensionRuleNone ExtensionRule = "none"
)

// TimerExtensionEvent is an immutable audit row recording every extension
// decision, kept for later dispute resolution.
type TimerExtensionEvent struct {
	ID            int64
	LotItemID     string
	BidID         string
	OldEndTime    time.Time
	NewEndTime    time.Time
	Rule          ExtensionRule
	SnipingWindow time.Duration
	ResetLength   time.Duration
	CreatedAt     time.Time
}

// BidResult is the synchronous outcome of a bid placement.
type BidResult struct {
	Accepted     bool
	Reason       string
	BidID        string
	HighBidCents int64
	EndsAt       time.Time
	Extended     bool
}
