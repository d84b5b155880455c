package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OfferingStore persists offerings.
type OfferingStore interface {
	Create(ctx context.Context, o Offering) error
	GetByID(ctx context.Context, id string) (Offering, error)
	UpdateStatus(ctx context.Context, id string, status OfferingStatus) error
	// SetOpeningPrice records the price discovered by the opening call
	// auction.
	SetOpeningPrice(ctx context.Context, id string, priceCents int64) error
	// SetClosingPrice records the session-close price discovered by the
	// closing call auction.
	SetClosingPrice(ctx context.Context, id string, priceCents int64) error
	ListByStatus(ctx context.Context, status OfferingStatus) ([]Offering, error)
	List(ctx context.Context, opts ListOpts) ([]Offering, error)
}

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, o Order) error
	// Update advances an order's mutable fields (shares_filled, status,
	// timestamps). Terminal orders are never updated again.
	Update(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	// ListOpen returns resting (active/partially_filled) orders for one
	// offering in submission order; the engine rebuilds its book from it.
	ListOpen(ctx context.Context, offeringID string) ([]Order, error)
	ListOpenByUser(ctx context.Context, userID string) ([]Order, error)
	ListByOffering(ctx context.Context, offeringID string, opts ListOpts) ([]Order, error)
	ListBefore(ctx context.Context, before time.Time) ([]Order, error)
}

// TradeStore persists the append-only trade ledger together with the holding
// and order rows each match mutates.
type TradeStore interface {
	// RecordExecution persists everything one incoming order produced in a
	// single transaction: the incoming and touched resting orders, the
	// trades, the post-trade holdings, and the offering's last price.
	// Either all of it commits or none of it does.
	RecordExecution(ctx context.Context, exec Execution) error
	GetByID(ctx context.Context, id string) (Trade, error)
	ListByOffering(ctx context.Context, offeringID string, opts ListOpts) ([]Trade, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Trade, error)
	// DailyActivity aggregates the user's trade count and volume for the
	// calendar day containing ts (UTC). The risk ledger derives its daily
	// counters from this instead of a mutable counter table.
	DailyActivity(ctx context.Context, userID string, ts time.Time) (DailyActivity, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
}

// HoldingStore reads per-user positions. Writes happen only inside
// TradeStore.RecordExecution so they stay atomic with the trade.
type HoldingStore interface {
	Get(ctx context.Context, userID, offeringID string) (Holding, error)
	ListByUser(ctx context.Context, userID string) ([]Holding, error)
	ListByOffering(ctx context.Context, offeringID string) ([]Holding, error)
}

// RiskStore persists per-user limits and the append-only risk event log.
type RiskStore interface {
	// GetOrCreateLimits returns the user's limits row, creating it from
	// defaults on first use.
	GetOrCreateLimits(ctx context.Context, userID string, defaults RiskLimits) (RiskLimits, error)
	UpdateLimits(ctx context.Context, limits RiskLimits) error
	LogEvent(ctx context.Context, ev RiskEvent) error
	ListEvents(ctx context.Context, userID string, opts ListOpts) ([]RiskEvent, error)
	ListEventsBefore(ctx context.Context, before time.Time) ([]RiskEvent, error)
}

// AuctionStore persists lots, items, bids, and timer extension events.
type AuctionStore interface {
	CreateLot(ctx context.Context, lot AuctionLot, items []LotItem) error
	GetLot(ctx context.Context, id string) (AuctionLot, error)
	UpdateLotStatus(ctx context.Context, id string, status LotStatus) error
	GetItem(ctx context.Context, id string) (LotItem, error)
	UpdateItem(ctx context.Context, item LotItem) error
	ListItems(ctx context.Context, lotID string) ([]LotItem, error)
	InsertBid(ctx context.Context, b Bid) error
	ListBids(ctx context.Context, lotItemID string, opts ListOpts) ([]Bid, error)
	InsertExtension(ctx context.Context, ev TimerExtensionEvent) error
	ListExtensions(ctx context.Context, lotItemID string) ([]TimerExtensionEvent, error)
	ListExtensionsBefore(ctx context.Context, before time.Time) ([]TimerExtensionEvent, error)
}
