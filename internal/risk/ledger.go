// Package risk implements the pre-trade risk gate: a fixed sequence of limit
// checks evaluated under a per-user lock that is held until the matching
// engine commits or rejects the admitted order, so concurrent submissions by
// one user cannot jointly pass a limit they would breach together.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paddockhq/paddock/internal/domain"
)

// Ledger evaluates orders against per-user limits and live positions and
// writes an audit event for every decision.
type Ledger struct {
	store    domain.RiskStore
	holdings domain.HoldingStore
	trades   domain.TradeStore
	prices   domain.PriceCache
	defaults domain.RiskLimits
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// NewLedger builds the risk gate. defaults seed a user's limits row on first
// check; a zero limit value disables that check.
func NewLedger(
	store domain.RiskStore,
	holdings domain.HoldingStore,
	trades domain.TradeStore,
	prices domain.PriceCache,
	defaults domain.RiskLimits,
	logger *slog.Logger,
) *Ledger {
	return &Ledger{
		store:    store,
		holdings: holdings,
		trades:   trades,
		prices:   prices,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
		users:    make(map[string]*sync.Mutex),
	}
}

// Admit runs the check sequence for one order. The returned release func
// must be called exactly once, after the caller has committed or discarded
// the order; until then no other order by the same user can be checked.
// Release is safe to call more than once.
func (l *Ledger) Admit(ctx context.Context, req domain.RiskCheckRequest) (domain.RiskDecision, func(), error) {
	mu := l.userMutex(req.UserID)
	mu.Lock()
	release := sync.OnceFunc(mu.Unlock)

	decision, err := l.evaluate(ctx, req)
	if err != nil {
		release()
		return domain.RiskDecision{}, nil, err
	}
	l.audit(ctx, req, decision)
	return decision, release, nil
}

func (l *Ledger) userMutex(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.users[userID]
	if !ok {
		mu = &sync.Mutex{}
		l.users[userID] = mu
	}
	return mu
}

// evaluate runs the checks in their fixed order: suspension, position
// shares, position value, total exposure, order size, daily activity. The
// first failed check decides; later checks never run.
func (l *Ledger) evaluate(ctx context.Context, req domain.RiskCheckRequest) (domain.RiskDecision, error) {
	limits, err := l.store.GetOrCreateLimits(ctx, req.UserID, l.defaults)
	if err != nil {
		return domain.RiskDecision{}, fmt.Errorf("risk: load limits for %s: %w", req.UserID, err)
	}
	now := l.now()

	// 1. Suspension.
	if suspended(limits, now) {
		return domain.RiskDecision{
			Reason:         suspensionReason(limits),
			LimitName:      domain.LimitTradingSuspended,
			SuspendedUntil: limits.SuspendedUntil,
		}, nil
	}

	holding, err := l.holdings.Get(ctx, req.UserID, req.OfferingID)
	if errors.Is(err, domain.ErrNotFound) {
		holding = domain.Holding{UserID: req.UserID, OfferingID: req.OfferingID}
	} else if err != nil {
		return domain.RiskDecision{}, fmt.Errorf("risk: load holding %s/%s: %w", req.UserID, req.OfferingID, err)
	}

	// 2. Position shares. Sells may not exceed the held position minus
	// shares already reserved by resting sell orders; buys may not push
	// the position past the per-offering cap.
	if req.Side == domain.OrderSideSell {
		available := holding.Shares - req.ReservedSellShares
		if req.Shares > available {
			return domain.RiskDecision{
				Reason: fmt.Sprintf("sell of %d shares exceeds %d available (held %d, reserved %d)",
					req.Shares, max64(available, 0), holding.Shares, req.ReservedSellShares),
				LimitName:     domain.LimitShortSale,
				LimitValue:    max64(available, 0),
				ObservedValue: req.Shares,
			}, nil
		}
	} else {
		projected := holding.Shares + req.Shares
		if limits.MaxPositionPerOffering > 0 && projected > limits.MaxPositionPerOffering {
			return domain.RiskDecision{
				Reason: fmt.Sprintf("position of %d shares would exceed the %d share limit",
					projected, limits.MaxPositionPerOffering),
				LimitName:     domain.LimitPositionPerOffer,
				LimitValue:    limits.MaxPositionPerOffering,
				ObservedValue: projected,
			}, nil
		}
	}

	if req.Side == domain.OrderSideBuy {
		mark := l.markPrice(ctx, req.OfferingID, req.LimitPriceCents)

		// 3. Position value: existing shares at the mark, new shares at
		// the order's limit.
		projectedValue := holding.MarketValueCents(mark) + req.Shares*req.LimitPriceCents
		if limits.MaxPositionValueCents > 0 && projectedValue > limits.MaxPositionValueCents {
			return domain.RiskDecision{
				Reason: fmt.Sprintf("position value %d cents would exceed the %d cent limit",
					projectedValue, limits.MaxPositionValueCents),
				LimitName:     domain.LimitPositionValue,
				LimitValue:    limits.MaxPositionValueCents,
				ObservedValue: projectedValue,
			}, nil
		}

		// 4. Total exposure across all offerings, with this offering's
		// position at its projected value.
		if limits.MaxTotalExposureCents > 0 {
			exposure, err := l.totalExposure(ctx, req.UserID, req.OfferingID)
			if err != nil {
				return domain.RiskDecision{}, err
			}
			exposure += projectedValue
			if exposure > limits.MaxTotalExposureCents {
				return domain.RiskDecision{
					Reason: fmt.Sprintf("total exposure %d cents would exceed the %d cent limit",
						exposure, limits.MaxTotalExposureCents),
					LimitName:     domain.LimitTotalExposure,
					LimitValue:    limits.MaxTotalExposureCents,
					ObservedValue: exposure,
				}, nil
			}
		}
	}

	// 5. Order size.
	notional := req.Shares * req.LimitPriceCents
	if limits.MaxOrderValueCents > 0 && notional > limits.MaxOrderValueCents {
		return domain.RiskDecision{
			Reason: fmt.Sprintf("order value %d cents exceeds the %d cent limit",
				notional, limits.MaxOrderValueCents),
			LimitName:     domain.LimitOrderValue,
			LimitValue:    limits.MaxOrderValueCents,
			ObservedValue: notional,
		}, nil
	}
	if limits.MaxOrderShares > 0 && req.Shares > limits.MaxOrderShares {
		return domain.RiskDecision{
			Reason: fmt.Sprintf("order of %d shares exceeds the %d share limit",
				req.Shares, limits.MaxOrderShares),
			LimitName:     domain.LimitOrderShares,
			LimitValue:    limits.MaxOrderShares,
			ObservedValue: req.Shares,
		}, nil
	}

	// 6. Daily activity, derived from the day's trade log.
	if limits.DailyTradeLimit > 0 || limits.DailyVolumeLimitCents > 0 {
		activity, err := l.trades.DailyActivity(ctx, req.UserID, now)
		if err != nil {
			return domain.RiskDecision{}, fmt.Errorf("risk: daily activity for %s: %w", req.UserID, err)
		}
		if limits.DailyTradeLimit > 0 && activity.TradeCount >= limits.DailyTradeLimit {
			return domain.RiskDecision{
				Reason: fmt.Sprintf("daily trade count %d has reached the limit of %d",
					activity.TradeCount, limits.DailyTradeLimit),
				LimitName:     domain.LimitDailyTradeCount,
				LimitValue:    limits.DailyTradeLimit,
				ObservedValue: activity.TradeCount,
			}, nil
		}
		if limits.DailyVolumeLimitCents > 0 && activity.VolumeCents+notional > limits.DailyVolumeLimitCents {
			return domain.RiskDecision{
				Reason: fmt.Sprintf("daily volume %d cents would exceed the %d cent limit",
					activity.VolumeCents+notional, limits.DailyVolumeLimitCents),
				LimitName:     domain.LimitDailyVolume,
				LimitValue:    limits.DailyVolumeLimitCents,
				ObservedValue: activity.VolumeCents + notional,
			}, nil
		}
	}

	return domain.RiskDecision{Allowed: true}, nil
}

// markPrice returns the cached live price for an offering, falling back to
// the order's limit when no quote exists yet.
func (l *Ledger) markPrice(ctx context.Context, offeringID string, fallbackCents int64) int64 {
	price, _, err := l.prices.GetPrice(ctx, offeringID)
	if err != nil || price <= 0 {
		return fallbackCents
	}
	return price
}

// totalExposure marks every holding except the excluded offering to its
// cached price, falling back to the average entry price.
func (l *Ledger) totalExposure(ctx context.Context, userID, excludeOfferingID string) (int64, error) {
	holdings, err := l.holdings.ListByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("risk: load holdings for %s: %w", userID, err)
	}
	ids := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if h.OfferingID != excludeOfferingID {
			ids = append(ids, h.OfferingID)
		}
	}
	var marks map[string]int64
	if len(ids) > 0 {
		marks, err = l.prices.GetPrices(ctx, ids)
		if err != nil {
			l.logger.WarnContext(ctx, "price cache read failed, marking at entry price",
				slog.String("user_id", userID), slog.Any("error", err))
			marks = nil
		}
	}
	var total int64
	for _, h := range holdings {
		if h.OfferingID == excludeOfferingID {
			continue
		}
		mark := marks[h.OfferingID]
		if mark <= 0 {
			mark = h.AvgEntryPriceCents
		}
		total += h.MarketValueCents(mark)
	}
	return total, nil
}

// audit writes the decision to the append-only risk event log. A write
// failure is logged but never blocks the order path.
func (l *Ledger) audit(ctx context.Context, req domain.RiskCheckRequest, d domain.RiskDecision) {
	ev := domain.RiskEvent{
		UserID:        req.UserID,
		OfferingID:    req.OfferingID,
		OrderID:       req.OrderID,
		Action:        domain.RiskActionAllowed,
		LimitName:     d.LimitName,
		LimitValue:    d.LimitValue,
		ObservedValue: d.ObservedValue,
		Reason:        d.Reason,
		CreatedAt:     l.now(),
	}
	if !d.Allowed {
		ev.Action = domain.RiskActionBlocked
	}
	if err := l.store.LogEvent(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "risk event write failed",
			slog.String("user_id", req.UserID),
			slog.String("order_id", req.OrderID),
			slog.Any("error", err))
	}
	if !d.Allowed {
		l.logger.InfoContext(ctx, "order blocked",
			slog.String("user_id", req.UserID),
			slog.String("offering_id", req.OfferingID),
			slog.String("limit", d.LimitName),
			slog.Int64("limit_value", d.LimitValue),
			slog.Int64("observed", d.ObservedValue))
	}
}

// Profile assembles a user's limits and live usage for display.
func (l *Ledger) Profile(ctx context.Context, userID string) (domain.RiskProfile, error) {
	limits, err := l.store.GetOrCreateLimits(ctx, userID, l.defaults)
	if err != nil {
		return domain.RiskProfile{}, fmt.Errorf("risk: load limits for %s: %w", userID, err)
	}
	holdings, err := l.holdings.ListByUser(ctx, userID)
	if err != nil {
		return domain.RiskProfile{}, fmt.Errorf("risk: load holdings for %s: %w", userID, err)
	}
	var exposure int64
	if len(holdings) > 0 {
		ids := make([]string, 0, len(holdings))
		for _, h := range holdings {
			ids = append(ids, h.OfferingID)
		}
		marks, err := l.prices.GetPrices(ctx, ids)
		if err != nil {
			marks = nil
		}
		for _, h := range holdings {
			mark := marks[h.OfferingID]
			if mark <= 0 {
				mark = h.AvgEntryPriceCents
			}
			exposure += h.MarketValueCents(mark)
		}
	}
	activity, err := l.trades.DailyActivity(ctx, userID, l.now())
	if err != nil {
		return domain.RiskProfile{}, fmt.Errorf("risk: daily activity for %s: %w", userID, err)
	}
	return domain.RiskProfile{
		Limits:             limits,
		TotalExposureCents: exposure,
		DailyTradeCount:    activity.TradeCount,
		DailyVolumeCents:   activity.VolumeCents,
		Holdings:           holdings,
	}, nil
}

// Suspend blocks all trading for a user until the given time; a nil until
// suspends indefinitely.
func (l *Ledger) Suspend(ctx context.Context, userID, reason string, until *time.Time) error {
	limits, err := l.store.GetOrCreateLimits(ctx, userID, l.defaults)
	if err != nil {
		return fmt.Errorf("risk: load limits for %s: %w", userID, err)
	}
	limits.TradingSuspended = true
	limits.SuspendedUntil = until
	limits.SuspensionReason = reason
	if err := l.store.UpdateLimits(ctx, limits); err != nil {
		return fmt.Errorf("risk: suspend %s: %w", userID, err)
	}
	l.logger.InfoContext(ctx, "user suspended", slog.String("user_id", userID), slog.String("reason", reason))
	return nil
}

// Reinstate lifts a user's suspension.
func (l *Ledger) Reinstate(ctx context.Context, userID string) error {
	limits, err := l.store.GetOrCreateLimits(ctx, userID, l.defaults)
	if err != nil {
		return fmt.Errorf("risk: load limits for %s: %w", userID, err)
	}
	limits.TradingSuspended = false
	limits.SuspendedUntil = nil
	limits.SuspensionReason = ""
	if err := l.store.UpdateLimits(ctx, limits); err != nil {
		return fmt.Errorf("risk: reinstate %s: %w", userID, err)
	}
	l.logger.InfoContext(ctx, "user reinstated", slog.String("user_id", userID))
	return nil
}

func suspended(limits domain.RiskLimits, now time.Time) bool {
	if !limits.TradingSuspended {
		return false
	}
	if limits.SuspendedUntil != nil && now.After(*limits.SuspendedUntil) {
		return false
	}
	return true
}

func suspensionReason(limits domain.RiskLimits) string {
	if limits.SuspensionReason != "" {
		return fmt.Sprintf("trading suspended: %s", limits.SuspensionReason)
	}
	return "trading suspended"
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
