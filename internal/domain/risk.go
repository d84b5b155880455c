package domain

import "time"

// RiskLimits holds per-user trading ceilings. One row per user, created
// lazily with system defaults on first check.
type RiskLimits struct {
	UserID                  string
	MaxPositionPerOffering  int64 // shares
	MaxPositionValueCents   int64
	MaxTotalExposureCents   int64
	MaxOrderValueCents      int64
	MaxOrderShares          int64
	DailyTradeLimit         int64
	DailyVolumeLimitCents   int64
	TradingSuspended        bool
	SuspendedUntil          *time.Time
	SuspensionReason        string
	UpdatedAt               time.Time
}

// Risk limit names, reported on blocked decisions and RiskEvents.
const (
	LimitTradingSuspended   = "TRADING_SUSPENDED"
	LimitPositionPerOffer   = "POSITION_LIMIT_EXCEEDED"
	LimitShortSale          = "SHORT_SALE_FORBIDDEN"
	LimitPositionValue      = "POSITION_VALUE_EXCEEDED"
	LimitTotalExposure      = "TOTAL_EXPOSURE_EXCEEDED"
	LimitOrderValue         = "ORDER_VALUE_EXCEEDED"
	LimitOrderShares        = "ORDER_SHARES_EXCEEDED"
	LimitDailyTradeCount    = "DAILY_TRADE_LIMIT_EXCEEDED"
	LimitDailyVolume        = "DAILY_VOLUME_LIMIT_EXCEEDED"
)

// RiskDecision is the structured outcome of a pre-trade check. On a block it
// carries enough detail to render a specific, actionable message.
type RiskDecision struct {
	Allowed        bool
	Reason         string
	LimitName      string
	LimitValue     int64
	ObservedValue  int64
	SuspendedUntil *time.Time
}

// RiskEventAction distinguishes allowed from blocked check outcomes.
type RiskEventAction string

const (
	RiskActionAllowed RiskEventAction = "allowed"
	RiskActionBlocked RiskEventAction = "blocked"
)

// RiskEvent is an immutable audit row written for every limit-check outcome.
type RiskEvent struct {
	ID            int64
	UserID        string
	OfferingID    string
	OrderID       string
	Action        RiskEventAction
	LimitName     string
	LimitValue    int64
	ObservedValue int64
	Reason        string
	CreatedAt     time.Time
}

// RiskCheckRequest carries everything the risk ledger needs to evaluate one
// order before it enters the book. ReservedSellShares is the user's open
// sell-order remainder on this offering, supplied by the book owner so a
// stack of resting sells cannot jointly oversell the position.
type RiskCheckRequest struct {
	UserID             string
	OfferingID         string
	OrderID            string
	Side               OrderSide
	Shares             int64
	LimitPriceCents    int64
	ReservedSellShares int64
}

// RiskProfile pairs a user's configured limits with their live usage, for
// read-only display by out-of-scope consumers.
type RiskProfile struct {
	Limits             RiskLimits
	TotalExposureCents int64
	DailyTradeCount    int64
	DailyVolumeCents   int64
	Holdings           []Holding
}
