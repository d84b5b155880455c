package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paddockhq/paddock/internal/domain"
)

// Pub/sub channels and durable streams the engine emits on.
const (
	ChannelTrades = "paddock:trades"
	ChannelOrders = "paddock:orders"
	StreamTrades  = "stream:trades"
)

// RiskGate admits or blocks an order before it reaches the book. The returned
// release func must be called once the admission outcome is committed (or the
// order rejected); it holds the user's risk serialization until then.
type RiskGate interface {
	Admit(ctx context.Context, req domain.RiskCheckRequest) (domain.RiskDecision, func(), error)
}

// Config tunes the matching engine.
type Config struct {
	// CommissionBps is the platform commission in basis points of trade
	// notional.
	CommissionBps int64
	// ClosingWindow is how long the closing auction collects orders before
	// it clears.
	ClosingWindow time.Duration
}

// SubmitRequest is an order submission as received from the service layer.
type SubmitRequest struct {
	UserID     string
	OfferingID string
	Side       domain.OrderSide
	Shares     int64
	PriceCents int64
	TIF        domain.TimeInForce
}

// PriceLevelView is one aggregated depth level in a book snapshot.
type PriceLevelView struct {
	PriceCents int64 `json:"price_cents"`
	Shares     int64 `json:"shares"`
	Orders     int   `json:"orders"`
}

// BookSnapshot is a point-in-time view of one offering's book.
type BookSnapshot struct {
	OfferingID string           `json:"offering_id"`
	Bids       []PriceLevelView `json:"bids"`
	Asks       []PriceLevelView `json:"asks"`
}

// Engine routes order flow to per-offering owner goroutines. Each offering's
// book is touched by exactly one goroutine, so matching needs no locks; the
// risk gate serializes per user across offerings.
type Engine struct {
	offerings domain.OfferingStore
	orders    domain.OrderStore
	trades    domain.TradeStore
	holdings  domain.HoldingStore
	gate      RiskGate
	prices    domain.PriceCache
	bus       domain.SignalBus
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	owners  map[string]*owner
	runCtx  context.Context
	wg      sync.WaitGroup
	started bool
}

// NewEngine wires the matching engine. Run must be called before orders are
// accepted.
func NewEngine(
	offerings domain.OfferingStore,
	orders domain.OrderStore,
	trades domain.TradeStore,
	holdings domain.HoldingStore,
	gate RiskGate,
	prices domain.PriceCache,
	bus domain.SignalBus,
	cfg Config,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		offerings: offerings,
		orders:    orders,
		trades:    trades,
		holdings:  holdings,
		gate:      gate,
		prices:    prices,
		bus:       bus,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		owners:    make(map[string]*owner),
	}
}

// Run blocks until ctx is cancelled, then waits for every owner goroutine to
// drain and exit.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine: already running")
	}
	e.started = true
	e.runCtx = ctx
	e.mu.Unlock()

	e.logger.InfoContext(ctx, "matching engine started")
	<-ctx.Done()
	e.wg.Wait()
	e.logger.Info("matching engine stopped")
	return ctx.Err()
}

// SubmitOrder validates, risk-checks, and matches or rests one order. The
// result reports fills synchronously; a risk block is returned as a result
// with Rejection set, not as an error.
func (e *Engine) SubmitOrder(ctx context.Context, req SubmitRequest) (domain.SubmitResult, error) {
	if err := validateSubmit(req); err != nil {
		return domain.SubmitResult{}, err
	}
	o := domain.Order{
		ID:              uuid.NewString(),
		OfferingID:      req.OfferingID,
		UserID:          req.UserID,
		Side:            req.Side,
		Shares:          req.Shares,
		LimitPriceCents: req.PriceCents,
		TIF:             req.TIF,
		Status:          domain.OrderStatusPending,
	}
	resp, err := e.dispatch(ctx, req.OfferingID, command{kind: cmdSubmit, order: o})
	if err != nil {
		return domain.SubmitResult{}, err
	}
	return resp.result, resp.err
}

// CancelOrder cancels a resting order. Cancelling an already-cancelled order
// succeeds; cancelling a filled one returns ErrAlreadyFilled.
func (e *Engine) CancelOrder(ctx context.Context, offeringID, orderID, userID string) error {
	resp, err := e.dispatch(ctx, offeringID, command{kind: cmdCancel, orderID: orderID, userID: userID})
	if errors.Is(err, domain.ErrMarketClosed) {
		// No live book for this offering; resolve against the store alone.
		return e.cancelStored(ctx, orderID, userID)
	}
	if err != nil {
		return err
	}
	return resp.err
}

// OpenTrading runs the opening call auction for an offering in its
// order-collection phase and moves it to continuous trading.
func (e *Engine) OpenTrading(ctx context.Context, offeringID string) error {
	resp, err := e.dispatch(ctx, offeringID, command{kind: cmdOpen})
	if err != nil {
		return err
	}
	return resp.err
}

// BeginClosingAuction stops continuous matching; orders submitted from here
// on collect for the closing cross.
func (e *Engine) BeginClosingAuction(ctx context.Context, offeringID string) error {
	resp, err := e.dispatch(ctx, offeringID, command{kind: cmdBeginClose})
	if err != nil {
		return err
	}
	return resp.err
}

// CompleteClosingAuction clears the closing cross, expires day orders, and
// closes the offering.
func (e *Engine) CompleteClosingAuction(ctx context.Context, offeringID string) error {
	resp, err := e.dispatch(ctx, offeringID, command{kind: cmdClose})
	if err != nil {
		return err
	}
	return resp.err
}

// Snapshot returns the current aggregated book depth for one offering.
func (e *Engine) Snapshot(ctx context.Context, offeringID string) (BookSnapshot, error) {
	resp, err := e.dispatch(ctx, offeringID, command{kind: cmdSnapshot})
	if err != nil {
		return BookSnapshot{}, err
	}
	return resp.snapshot, resp.err
}

func validateSubmit(req SubmitRequest) error {
	if req.UserID == "" || req.OfferingID == "" {
		return fmt.Errorf("engine: missing user or offering id: %w", domain.ErrInvalidOrder)
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return fmt.Errorf("engine: side %q: %w", req.Side, domain.ErrInvalidOrder)
	}
	switch req.TIF {
	case domain.TIFDay, domain.TIFGTC, domain.TIFFOK, domain.TIFIOC:
	default:
		return fmt.Errorf("engine: time in force %q: %w", req.TIF, domain.ErrInvalidOrder)
	}
	if req.Shares <= 0 {
		return fmt.Errorf("engine: shares %d: %w", req.Shares, domain.ErrInvalidOrder)
	}
	if req.PriceCents <= 0 {
		return fmt.Errorf("engine: limit price %d: %w", req.PriceCents, domain.ErrInvalidOrder)
	}
	return nil
}

// cancelStored resolves a cancel for an offering with no live book.
func (e *Engine) cancelStored(ctx context.Context, orderID, userID string) error {
	o, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("engine: cancel %s: %w", orderID, err)
	}
	if o.UserID != userID {
		return fmt.Errorf("engine: cancel %s: %w", orderID, domain.ErrNotFound)
	}
	switch o.Status {
	case domain.OrderStatusCancelled, domain.OrderStatusExpired:
		return nil
	case domain.OrderStatusFilled:
		return domain.ErrAlreadyFilled
	}
	now := e.now()
	o.Status = domain.OrderStatusCancelled
	o.CancelledAt = &now
	if err := e.orders.Update(ctx, o); err != nil {
		return fmt.Errorf("engine: cancel %s: %w", orderID, err)
	}
	return nil
}

type cmdKind int

const (
	cmdSubmit cmdKind = iota
	cmdCancel
	cmdOpen
	cmdBeginClose
	cmdClose
	cmdSnapshot
)

type command struct {
	kind    cmdKind
	order   domain.Order
	orderID string
	userID  string
	resp    chan response
}

type response struct {
	result   domain.SubmitResult
	snapshot BookSnapshot
	err      error
}

// owner serializes all book mutations for one offering.
type owner struct {
	eng      *Engine
	offering domain.Offering
	book     *Book
	cmds     chan command
	done     chan struct{}
}

// dispatch routes a command to the offering's owner goroutine and waits for
// its response.
func (e *Engine) dispatch(ctx context.Context, offeringID string, c command) (response, error) {
	ow, err := e.getOwner(ctx, offeringID)
	if err != nil {
		return response{}, err
	}
	c.resp = make(chan response, 1)
	select {
	case ow.cmds <- c:
	case <-ow.done:
		return response{}, fmt.Errorf("engine: offering %s: %w", offeringID, domain.ErrMarketClosed)
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case r := <-c.resp:
		return r, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// getOwner returns the live owner for an offering, starting one on first use
// with a book rebuilt from the store's open orders.
func (e *Engine) getOwner(ctx context.Context, offeringID string) (*owner, error) {
	e.mu.Lock()
	if ow, ok := e.owners[offeringID]; ok {
		e.mu.Unlock()
		return ow, nil
	}
	runCtx := e.runCtx
	e.mu.Unlock()
	if runCtx == nil {
		return nil, fmt.Errorf("engine: not running")
	}

	off, err := e.offerings.GetByID(ctx, offeringID)
	if err != nil {
		return nil, fmt.Errorf("engine: load offering %s: %w", offeringID, err)
	}
	switch off.Status {
	case domain.OfferingStatusActive, domain.OfferingStatusTrading, domain.OfferingStatusClosingAuction:
	default:
		return nil, fmt.Errorf("engine: offering %s status %s: %w", offeringID, off.Status, domain.ErrMarketClosed)
	}
	open, err := e.orders.ListOpen(ctx, offeringID)
	if err != nil {
		return nil, fmt.Errorf("engine: load open orders for %s: %w", offeringID, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ow, ok := e.owners[offeringID]; ok {
		return ow, nil
	}
	book := NewBook(offeringID)
	for _, o := range open {
		book.Insert(o)
	}
	ow := &owner{
		eng:      e,
		offering: off,
		book:     book,
		cmds:     make(chan command),
		done:     make(chan struct{}),
	}
	e.owners[offeringID] = ow
	e.wg.Add(1)
	go ow.loop(runCtx)
	e.logger.InfoContext(ctx, "book owner started",
		slog.String("offering_id", offeringID),
		slog.String("status", string(off.Status)),
		slog.Int("resting_orders", book.Depth()))
	return ow, nil
}

func (e *Engine) dropOwner(offeringID string) {
	e.mu.Lock()
	delete(e.owners, offeringID)
	e.mu.Unlock()
}

func (ow *owner) loop(ctx context.Context) {
	defer ow.eng.wg.Done()
	defer close(ow.done)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-ow.cmds:
			c.resp <- ow.handle(ctx, c)
			if ow.offering.Status == domain.OfferingStatusClosed {
				ow.eng.dropOwner(ow.offering.ID)
				return
			}
		}
	}
}

func (ow *owner) handle(ctx context.Context, c command) response {
	switch c.kind {
	case cmdSubmit:
		res, err := ow.submit(ctx, c.order)
		return response{result: res, err: err}
	case cmdCancel:
		return response{err: ow.cancel(ctx, c.orderID, c.userID)}
	case cmdOpen:
		return response{err: ow.openTrading(ctx)}
	case cmdBeginClose:
		return response{err: ow.beginClose(ctx)}
	case cmdClose:
		return response{err: ow.completeClose(ctx)}
	case cmdSnapshot:
		return response{snapshot: ow.snapshot()}
	}
	return response{err: fmt.Errorf("engine: unknown command %d", c.kind)}
}

func (ow *owner) submit(ctx context.Context, o domain.Order) (domain.SubmitResult, error) {
	var matching bool
	switch ow.offering.Status {
	case domain.OfferingStatusTrading:
		matching = true
	case domain.OfferingStatusActive, domain.OfferingStatusClosingAuction:
		// Call-auction collection: orders rest, nothing crosses yet.
		matching = false
	default:
		return domain.SubmitResult{}, fmt.Errorf("engine: offering %s status %s: %w",
			ow.offering.ID, ow.offering.Status, domain.ErrMarketClosed)
	}

	now := ow.eng.now()
	o.CreatedAt = now

	var reserved int64
	if o.Side == domain.OrderSideSell {
		reserved = ow.book.UserSellRemaining(o.UserID)
	}
	decision, release, err := ow.eng.gate.Admit(ctx, domain.RiskCheckRequest{
		UserID:             o.UserID,
		OfferingID:         o.OfferingID,
		OrderID:            o.ID,
		Side:               o.Side,
		Shares:             o.Shares,
		LimitPriceCents:    o.LimitPriceCents,
		ReservedSellShares: reserved,
	})
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("engine: risk check: %w", err)
	}
	if !decision.Allowed {
		release()
		return ow.reject(ctx, o, decision.Reason, &decision)
	}
	defer release()

	if !matching {
		if o.TIF == domain.TIFFOK || o.TIF == domain.TIFIOC {
			return ow.reject(ctx, o, "immediate order outside continuous trading", nil)
		}
		return ow.rest(ctx, o)
	}

	plan := ow.book.planMatch(o)
	if o.TIF == domain.TIFFOK {
		var planned int64
		for _, f := range plan {
			planned += f.shares
		}
		if planned < o.Shares {
			return ow.reject(ctx, o, "insufficient liquidity for fill-or-kill", nil)
		}
	}
	if len(plan) == 0 {
		if o.TIF == domain.TIFIOC {
			o.Status = domain.OrderStatusCancelled
			o.CancelledAt = &now
			exec := domain.Execution{OfferingID: ow.offering.ID, Incoming: o}
			if err := ow.eng.trades.RecordExecution(ctx, exec); err != nil {
				return domain.SubmitResult{}, fmt.Errorf("engine: record order %s: %w", o.ID, err)
			}
			ow.eng.publishOrder(ctx, o)
			return domain.SubmitResult{OrderID: o.ID, Status: o.Status}, nil
		}
		return ow.rest(ctx, o)
	}

	exec, err := ow.buildExecution(ctx, o, plan, now)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if err := ow.eng.trades.RecordExecution(ctx, exec); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("engine: record execution for order %s: %w", o.ID, err)
	}
	ow.book.applyFills(plan)
	o = exec.Incoming
	if o.Status == domain.OrderStatusActive || o.Status == domain.OrderStatusPartiallyFilled {
		ow.book.Insert(o)
	}
	ow.offering.CurrentPriceCents = exec.LastPriceCents
	ow.eng.publishExecution(ctx, exec)

	return domain.SubmitResult{
		OrderID:      o.ID,
		Status:       o.Status,
		SharesFilled: o.SharesFilled,
		Trades:       exec.Trades,
	}, nil
}

// reject persists a rejected order and returns the submission result. The
// decision is non-nil only for risk blocks.
func (ow *owner) reject(ctx context.Context, o domain.Order, reason string, decision *domain.RiskDecision) (domain.SubmitResult, error) {
	o.Status = domain.OrderStatusRejected
	o.RejectReason = reason
	if err := ow.eng.orders.Create(ctx, o); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("engine: persist rejected order %s: %w", o.ID, err)
	}
	ow.eng.logger.InfoContext(ctx, "order rejected",
		slog.String("order_id", o.ID),
		slog.String("offering_id", o.OfferingID),
		slog.String("user_id", o.UserID),
		slog.String("reason", reason))
	ow.eng.publishOrder(ctx, o)
	return domain.SubmitResult{OrderID: o.ID, Status: o.Status, Rejection: decision}, nil
}

// rest persists an order as active and inserts it into the book.
func (ow *owner) rest(ctx context.Context, o domain.Order) (domain.SubmitResult, error) {
	o.Status = domain.OrderStatusActive
	exec := domain.Execution{OfferingID: ow.offering.ID, Incoming: o}
	if err := ow.eng.trades.RecordExecution(ctx, exec); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("engine: persist order %s: %w", o.ID, err)
	}
	ow.book.Insert(o)
	ow.eng.publishOrder(ctx, o)
	return domain.SubmitResult{OrderID: o.ID, Status: o.Status}, nil
}

// buildExecution turns a match plan into the atomic commit unit: trades at
// the resting orders' prices, post-fill order states, and post-trade
// holdings.
func (ow *owner) buildExecution(ctx context.Context, o domain.Order, plan []fill, now time.Time) (domain.Execution, error) {
	trades := make([]domain.Trade, 0, len(plan))
	resting := make([]domain.Order, 0, len(plan))
	var filled int64
	for _, f := range plan {
		t := domain.Trade{
			ID:         uuid.NewString(),
			OfferingID: ow.offering.ID,
			Shares:     f.shares,
			PriceCents: f.priceCents,
			ExecutedAt: now,
		}
		if o.Side == domain.OrderSideBuy {
			t.BuyOrderID, t.BuyerID = o.ID, o.UserID
			t.SellOrderID, t.SellerID = f.entry.order.ID, f.entry.order.UserID
		} else {
			t.SellOrderID, t.SellerID = o.ID, o.UserID
			t.BuyOrderID, t.BuyerID = f.entry.order.ID, f.entry.order.UserID
		}
		t.CommissionCents = commissionCents(t.NotionalCents(), ow.eng.cfg.CommissionBps)
		trades = append(trades, t)
		filled += f.shares

		r := f.entry.order
		r.SharesFilled += f.shares
		if r.Remaining() == 0 {
			r.Status = domain.OrderStatusFilled
			r.FilledAt = &now
		} else {
			r.Status = domain.OrderStatusPartiallyFilled
		}
		resting = append(resting, r)
	}

	o.SharesFilled = filled
	switch {
	case filled == o.Shares:
		o.Status = domain.OrderStatusFilled
		o.FilledAt = &now
	case o.TIF == domain.TIFIOC:
		o.Status = domain.OrderStatusCancelled
		o.CancelledAt = &now
	case filled > 0:
		o.Status = domain.OrderStatusPartiallyFilled
	default:
		o.Status = domain.OrderStatusActive
	}

	holdings, err := ow.postHoldings(ctx, trades, now)
	if err != nil {
		return domain.Execution{}, err
	}
	return domain.Execution{
		OfferingID:     ow.offering.ID,
		Incoming:       o,
		Resting:        resting,
		Trades:         trades,
		Holdings:       holdings,
		LastPriceCents: trades[len(trades)-1].PriceCents,
	}, nil
}

// postHoldings folds a trade list into the touched users' positions and
// returns their post-trade state.
func (ow *owner) postHoldings(ctx context.Context, trades []domain.Trade, now time.Time) ([]domain.Holding, error) {
	posts := make(map[string]domain.Holding)
	var keys []string
	load := func(userID string) (domain.Holding, error) {
		if h, ok := posts[userID]; ok {
			return h, nil
		}
		h, err := ow.eng.holdings.Get(ctx, userID, ow.offering.ID)
		if errors.Is(err, domain.ErrNotFound) {
			h = domain.Holding{UserID: userID, OfferingID: ow.offering.ID}
		} else if err != nil {
			return domain.Holding{}, fmt.Errorf("engine: load holding %s/%s: %w", userID, ow.offering.ID, err)
		}
		keys = append(keys, userID)
		return h, nil
	}
	for _, t := range trades {
		buyer, err := load(t.BuyerID)
		if err != nil {
			return nil, err
		}
		buyer = buyer.ApplyBuy(t.Shares, t.PriceCents)
		buyer.UpdatedAt = now
		posts[t.BuyerID] = buyer

		seller, err := load(t.SellerID)
		if err != nil {
			return nil, err
		}
		seller = seller.ApplySell(t.Shares)
		seller.UpdatedAt = now
		posts[t.SellerID] = seller
	}
	out := make([]domain.Holding, 0, len(keys))
	for _, k := range keys {
		out = append(out, posts[k])
	}
	return out, nil
}

func (ow *owner) cancel(ctx context.Context, orderID, userID string) error {
	cur, ok := ow.book.Get(orderID)
	if !ok {
		return ow.eng.cancelStored(ctx, orderID, userID)
	}
	if cur.UserID != userID {
		return fmt.Errorf("engine: cancel %s: %w", orderID, domain.ErrNotFound)
	}
	now := ow.eng.now()
	cur.Status = domain.OrderStatusCancelled
	cur.CancelledAt = &now
	if err := ow.eng.orders.Update(ctx, cur); err != nil {
		return fmt.Errorf("engine: cancel %s: %w", orderID, err)
	}
	ow.book.Remove(orderID)
	ow.eng.publishOrder(ctx, cur)
	return nil
}

func (ow *owner) snapshot() BookSnapshot {
	view := func(levels []*priceLevel) []PriceLevelView {
		out := make([]PriceLevelView, 0, len(levels))
		for _, lvl := range levels {
			out = append(out, PriceLevelView{
				PriceCents: lvl.price,
				Shares:     lvl.totalShares,
				Orders:     len(lvl.queue),
			})
		}
		return out
	}
	return BookSnapshot{
		OfferingID: ow.offering.ID,
		Bids:       view(ow.book.bids),
		Asks:       view(ow.book.asks),
	}
}

func commissionCents(notionalCents, bps int64) int64 {
	return notionalCents * bps / 10000
}

// tradeEvent and orderEvent are the wire shapes published on the signal bus.
type tradeEvent struct {
	Type       string    `json:"type"`
	TradeID    string    `json:"trade_id"`
	OfferingID string    `json:"offering_id"`
	Shares     int64     `json:"shares"`
	PriceCents int64     `json:"price_cents"`
	ExecutedAt time.Time `json:"executed_at"`
}

type orderEvent struct {
	Type         string `json:"type"`
	OrderID      string `json:"order_id"`
	OfferingID   string `json:"offering_id"`
	Status       string `json:"status"`
	SharesFilled int64  `json:"shares_filled"`
}

// publishExecution fans out trade events and refreshes the price cache after
// a commit. Failures are logged, never surfaced: the execution is durable.
func (e *Engine) publishExecution(ctx context.Context, exec domain.Execution) {
	for _, t := range exec.Trades {
		payload, err := json.Marshal(tradeEvent{
			Type:       "trade",
			TradeID:    t.ID,
			OfferingID: t.OfferingID,
			Shares:     t.Shares,
			PriceCents: t.PriceCents,
			ExecutedAt: t.ExecutedAt,
		})
		if err != nil {
			continue
		}
		if err := e.bus.Publish(ctx, ChannelTrades, payload); err != nil {
			e.logger.WarnContext(ctx, "publish trade failed", slog.String("trade_id", t.ID), slog.Any("error", err))
		}
		if err := e.bus.StreamAppend(ctx, StreamTrades, payload); err != nil {
			e.logger.WarnContext(ctx, "append trade stream failed", slog.String("trade_id", t.ID), slog.Any("error", err))
		}
	}
	if exec.LastPriceCents > 0 {
		ts := e.now()
		if len(exec.Trades) > 0 {
			ts = exec.Trades[len(exec.Trades)-1].ExecutedAt
		}
		if err := e.prices.SetPrice(ctx, exec.OfferingID, exec.LastPriceCents, ts); err != nil {
			e.logger.WarnContext(ctx, "price cache update failed", slog.String("offering_id", exec.OfferingID), slog.Any("error", err))
		}
	}
	if exec.Incoming.ID != "" {
		e.publishOrder(ctx, exec.Incoming)
	}
}

func (e *Engine) publishOrder(ctx context.Context, o domain.Order) {
	payload, err := json.Marshal(orderEvent{
		Type:         "order",
		OrderID:      o.ID,
		OfferingID:   o.OfferingID,
		Status:       string(o.Status),
		SharesFilled: o.SharesFilled,
	})
	if err != nil {
		return
	}
	if err := e.bus.Publish(ctx, ChannelOrders, payload); err != nil {
		e.logger.WarnContext(ctx, "publish order failed", slog.String("order_id", o.ID), slog.Any("error", err))
	}
}
