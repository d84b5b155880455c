package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// TimeInForce governs how long an order may rest or how it must execute.
type TimeInForce string

const (
	TIFDay TimeInForce = "day" // expires at session close
	TIFGTC TimeInForce = "GTC" // Good-Till-Cancelled, persists across sessions
	TIFFOK TimeInForce = "FOK" // Fill-Or-Kill, full immediate fill or reject
	TIFIOC TimeInForce = "IOC" // Immediate-Or-Cancel, fill what crosses, cancel rest
)

// OrderStatus tracks the order lifecycle. Terminal states are filled,
// cancelled, and rejected; shares_filled and status only advance forward.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusActive          OrderStatus = "active"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusExpired         OrderStatus = "expired"
)

// Order is a resting or filled buy/sell intent on one offering.
type Order struct {
	ID              string
	OfferingID      string
	UserID          string
	Side            OrderSide
	Shares          int64 // requested
	SharesFilled    int64 // 0 <= filled <= requested
	LimitPriceCents int64
	TIF             TimeInForce
	Status          OrderStatus
	RejectReason    string
	CreatedAt       time.Time
	FilledAt        *time.Time
	CancelledAt     *time.Time
}

// Remaining returns the unfilled share count.
func (o Order) Remaining() int64 {
	return o.Shares - o.SharesFilled
}

// NotionalCents returns shares x limit price.
func (o Order) NotionalCents() int64 {
	return o.Shares * o.LimitPriceCents
}

// Terminal reports whether the order has reached a final state.
func (o Order) Terminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Crosses reports whether this order's limit price crosses the given opposite
// price level (bid >= ask).
func (o Order) Crosses(oppositePriceCents int64) bool {
	if o.Side == OrderSideBuy {
		return o.LimitPriceCents >= oppositePriceCents
	}
	return o.LimitPriceCents <= oppositePriceCents
}

// SubmitResult is the synchronous outcome of an order submission.
type SubmitResult struct {
	OrderID      string
	Status       OrderStatus
	SharesFilled int64
	Trades       []Trade
	Rejection    *RiskDecision // set when the risk gate blocked the order
}
