// Package emitter turns an OrderDiff into at most three batch exchange
// calls, respecting the rate-limit budget, a per-tick mutation cap, and
// per-(coin,side) cooldowns.
package emitter

import (
	"context"
	"strings"
	"time"

	"hyperliquidity-mm/internal/core"
	"hyperliquidity-mm/internal/orderstate"
	"hyperliquidity-mm/internal/ratelimit"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	// SafetyMargin is added to N before comparing against remaining budget.
	SafetyMargin = 100
	// MaxMutationsPerTick caps total mutations trimmed from a single diff.
	MaxMutationsPerTick = 20
	// insufficientBalanceCooldown is applied per (coin, side) on a
	// "Insufficient spot balance" place rejection.
	insufficientBalanceCooldown = 60 * time.Second
	// genericRejectCooldown is applied after 3 consecutive non-balance,
	// non-ALO-cross place rejections for the same (coin, side).
	genericRejectCooldown = 10 * time.Second
	// consecutiveRejectThreshold triggers genericRejectCooldown.
	consecutiveRejectThreshold = 3
)

// EmitResult reports what one Emit call actually did.
type EmitResult struct {
	NCancelled     int
	NModified      int
	NPlaced        int
	NErrors        int
	CancelOnlyMode bool
}

type sideKey struct {
	Coin string
	Side core.Side
}

// Emitter owns per-(coin,side) cooldown and consecutive-reject state across
// ticks. It is not safe for concurrent use — only the event loop touches it.
type Emitter struct {
	exchange core.ExchangeClient
	state    *orderstate.OrderState
	logger   core.Logger
	limiter  *rate.Limiter

	cooldownUntil map[sideKey]time.Time
	rejectCount   map[sideKey]int
}

// New constructs an Emitter. limiter paces the physical request rate as a
// safety net layered under the budget-formula gate; it is not a substitute
// for RateLimitBudget.
func New(exchange core.ExchangeClient, state *orderstate.OrderState, logger core.Logger, limiter *rate.Limiter) *Emitter {
	return &Emitter{
		exchange:      exchange,
		state:         state,
		logger:        logger.With("component", "emitter"),
		limiter:       limiter,
		cooldownUntil: make(map[sideKey]time.Time),
		rejectCount:   make(map[sideKey]int),
	}
}

// Emit performs the cooldown filter, budget gate, per-tick cap, cross-side
// assertion, and up to three batch calls (cancel, modify, orders — in that
// order, ALO time-in-force implied by the exchange client), applying each
// response to OrderState and consuming budget.OnRequest per call made.
func (e *Emitter) Emit(ctx context.Context, coin string, diff core.OrderDiff, budget *ratelimit.Budget) EmitResult {
	places := e.filterCooldown(coin, diff.Places)
	modifies := diff.Modifies
	cancels := diff.Cancels

	n := len(cancels) + len(modifies) + len(places)

	result := EmitResult{}
	if budget.Remaining().LessThan(decimal.NewFromInt(int64(n + SafetyMargin))) {
		result.CancelOnlyMode = true
		modifies = nil
		places = nil
	}

	n = len(cancels) + len(modifies) + len(places)
	if n > MaxMutationsPerTick {
		places, modifies = trimToCap(places, modifies, len(cancels))
	}

	e.assertNoCrossSideModify(modifies)

	if len(cancels) > 0 {
		e.waitLimiter(ctx)
		e.processCancels(ctx, coin, cancels, &result)
		budget.OnRequest(1)
	}

	if len(modifies) > 0 {
		e.waitLimiter(ctx)
		e.processModifies(ctx, coin, modifies, &result)
		budget.OnRequest(1)
	}

	if len(places) > 0 {
		e.waitLimiter(ctx)
		e.processPlaces(ctx, coin, places, &result)
		budget.OnRequest(1)
	}

	return result
}

func (e *Emitter) waitLimiter(ctx context.Context) {
	if e.limiter == nil {
		return
	}
	if err := e.limiter.Wait(ctx); err != nil {
		e.logger.Warn("rate limiter wait aborted", "error", err.Error())
	}
}

func (e *Emitter) filterCooldown(coin string, places []core.DesiredOrder) []core.DesiredOrder {
	now := time.Now()
	out := make([]core.DesiredOrder, 0, len(places))
	for _, p := range places {
		key := sideKey{Coin: coin, Side: p.Side}
		if until, ok := e.cooldownUntil[key]; ok && now.Before(until) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// trimToCap drops places first, then modifies, until cancels+modifies+places
// no longer exceeds MaxMutationsPerTick. Cancels are never trimmed.
func trimToCap(places []core.DesiredOrder, modifies []core.Modification, nCancels int) ([]core.DesiredOrder, []core.Modification) {
	budget := MaxMutationsPerTick - nCancels
	if budget < 0 {
		budget = 0
	}

	if len(modifies) > budget {
		modifies = modifies[:budget]
		return nil, modifies
	}
	remaining := budget - len(modifies)
	if len(places) > remaining {
		places = places[:remaining]
	}
	return places, modifies
}

func (e *Emitter) assertNoCrossSideModify(modifies []core.Modification) {
	for _, m := range modifies {
		tracked, ok := e.state.ByOID(m.OID)
		if !ok {
			continue
		}
		if tracked.Side != m.Desired.Side {
			panic("emitter: cross-side modify attempted, Hyperliquid silently rejects these")
		}
	}
}

func (e *Emitter) processCancels(ctx context.Context, coin string, oids []int64, result *EmitResult) {
	results, err := e.exchange.BulkCancel(ctx, coin, oids)
	if err != nil {
		e.logger.Warn("bulk_cancel transport error", "coin", coin, "error", err.Error())
		result.NErrors += len(oids)
		return
	}
	for i, r := range results {
		oid := oids[i]
		e.state.RemoveGhost(oid)
		result.NCancelled++
		if r.Status == "error" {
			result.NErrors++
		}
	}
}

func (e *Emitter) processModifies(ctx context.Context, coin string, mods []core.Modification, result *EmitResult) {
	results, err := e.exchange.BulkModify(ctx, coin, mods)
	if err != nil {
		e.logger.Warn("bulk_modify transport error", "coin", coin, "error", err.Error())
		result.NErrors += len(mods)
		return
	}
	for i, r := range results {
		original := mods[i].OID
		desired := mods[i].Desired
		if isCannotModify(r) {
			e.state.OnModifyResponse(original, nil, desired.Price, desired.Size, r.Error)
			result.NErrors++
			continue
		}
		newOID := r.OID
		e.state.OnModifyResponse(original, &newOID, desired.Price, desired.Size, "resting")
		result.NModified++
	}
}

func (e *Emitter) processPlaces(ctx context.Context, coin string, places []core.DesiredOrder, result *EmitResult) {
	results, err := e.exchange.BulkOrders(ctx, coin, places)
	if err != nil {
		e.logger.Warn("bulk_orders transport error", "coin", coin, "error", err.Error())
		result.NErrors += len(places)
		return
	}
	for i, r := range results {
		desired := places[i]
		key := sideKey{Coin: coin, Side: desired.Side}

		switch {
		case r.Status == "resting":
			e.state.OnPlaceConfirmed(r.OID, desired.Side, desired.LevelIndex, desired.Price, desired.Size)
			delete(e.cooldownUntil, key)
			e.rejectCount[key] = 0
			result.NPlaced++
		case isInsufficientBalance(r):
			e.cooldownUntil[key] = time.Now().Add(insufficientBalanceCooldown)
			result.NErrors++
		case isAloCrossRejection(r):
			// Benign, not counted as a generic reject.
		default:
			e.rejectCount[key]++
			result.NErrors++
			if e.rejectCount[key] >= consecutiveRejectThreshold {
				e.cooldownUntil[key] = time.Now().Add(genericRejectCooldown)
				e.rejectCount[key] = 0
			}
		}
	}
}

func isCannotModify(r core.BatchResult) bool {
	return r.Status == "error" && strings.Contains(strings.ToLower(r.Error), "cannot modify")
}

func isInsufficientBalance(r core.BatchResult) bool {
	return r.Status == "error" && strings.Contains(strings.ToLower(r.Error), "insufficient spot balance")
}

func isAloCrossRejection(r core.BatchResult) bool {
	return r.Status == "error" && strings.Contains(strings.ToLower(r.Error), "alo")
}
