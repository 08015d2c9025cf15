// Package orchestrator owns the single-threaded event loop that wires
// PricingGrid, Inventory, OrderState, RateLimitBudget, QuotingEngine,
// OrderDiffer and the Emitter to one exchange connection.
package orchestrator

import (
	"context"
	"strconv"
	"time"

	"hyperliquidity-mm/internal/core"
	"hyperliquidity-mm/internal/diff"
	"hyperliquidity-mm/internal/emitter"
	"hyperliquidity-mm/internal/inventory"
	"hyperliquidity-mm/internal/orderstate"
	"hyperliquidity-mm/internal/pricinggrid"
	"hyperliquidity-mm/internal/quoting"
	"hyperliquidity-mm/internal/ratelimit"
	"hyperliquidity-mm/pkg/telemetry"

	"github.com/shopspring/decimal"
)

// eventChanCapacity bounds the WS-callback-to-loop channels. A full channel
// drops the event with a warning rather than blocking the callback thread.
const eventChanCapacity = 256

// Config is the subset of tuning knobs the loop needs directly; grid
// construction parameters are consumed once at startup to build the Grid
// passed to New.
type Config struct {
	Coin              string
	Interval          time.Duration
	ReconcileEvery    int
	DeadZoneBps       decimal.Decimal
	PriceToleranceBps decimal.Decimal
	SizeTolerancePct  decimal.Decimal
	MinNotional       decimal.Decimal
	OrderSize         decimal.Decimal
	CancelOnExit      bool
	NSeededLevels     int
}

// Orchestrator is the event loop. It is constructed once per coin and run
// to completion (until ctx is cancelled).
type Orchestrator struct {
	cfg      Config
	exchange core.ExchangeClient
	logger   core.Logger

	grid   *pricinggrid.Grid
	inv    *inventory.Inventory
	state  *orderstate.OrderState
	budget *ratelimit.Budget
	emit   *emitter.Emitter

	boundaryLevel      int
	tickCount          int
	lastExchangeOrders int

	orderUpdates chan core.OrderUpdate
	fills        chan core.Fill
	balances     chan core.Balances
}

// New wires the pipeline. The grid is built by the caller and never rebuilt.
// state must be the same *orderstate.OrderState bound into emit — both need
// to observe the same tracked-order view, since the emitter applies batch
// responses to it directly while the loop reads it every tick.
func New(cfg Config, exchange core.ExchangeClient, logger core.Logger, grid *pricinggrid.Grid, state *orderstate.OrderState, emit *emitter.Emitter) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		exchange:     exchange,
		logger:       logger.With("component", "orchestrator", "coin", cfg.Coin),
		grid:         grid,
		inv:          inventory.New(),
		state:        state,
		budget:       ratelimit.New(),
		emit:         emit,
		orderUpdates: make(chan core.OrderUpdate, eventChanCapacity),
		fills:        make(chan core.Fill, eventChanCapacity),
		balances:     make(chan core.Balances, eventChanCapacity),
	}
}

// Seed performs startup reconciliation: OrderState from open_orders,
// Inventory from spot_user_state, RateLimitBudget from user_rate_limit, and
// the initial boundary_level from the lowest tracked ask (or n_orders if
// there are no asks). Must be called, and complete, before Subscribe.
func (o *Orchestrator) Seed(ctx context.Context, allocatedToken, allocatedUSDC decimal.Decimal) error {
	openOrders, err := o.exchange.OpenOrders(ctx, o.cfg.Coin)
	if err != nil {
		return err
	}
	for _, ord := range openOrders {
		level, ok := o.grid.LevelForPrice(ord.Price)
		if !ok {
			continue
		}
		o.state.OnPlaceConfirmed(ord.OID, ord.Side, level, ord.Price, ord.Size)
	}

	balances, err := o.exchange.SpotUserState(ctx)
	if err != nil {
		return err
	}
	o.inv.UpdateAllocation(allocatedToken, allocatedUSDC)
	o.inv.OnBalanceUpdate(balances.TokenBalance, balances.QuoteBalance)

	rl, err := o.exchange.UserRateLimit(ctx)
	if err != nil {
		return err
	}
	o.budget.SyncFromExchange(rl.CumVlm, rl.NRequests)

	o.boundaryLevel = o.initialBoundary()
	if o.boundaryLevel == o.grid.NOrders() {
		if seeded, ok := o.seedBoundary(allocatedToken); ok {
			o.boundaryLevel = seeded
		}
	}
	o.logger.Info("seeded from exchange", "boundary_level", o.boundaryLevel, "tracked_orders", o.state.Len())
	return nil
}

// initialBoundary is the lowest tracked ask's level, or n_orders if there
// are no resting asks.
func (o *Orchestrator) initialBoundary() int {
	lowest := o.grid.NOrders()
	for _, t := range o.state.Snapshot() {
		if t.Side == core.Sell && t.LevelIndex < lowest {
			lowest = t.LevelIndex
		}
	}
	return lowest
}

// seedBoundary computes the startup boundary_level from the allocation when
// no resting asks were found and n_seeded_levels is configured (spec §9
// Open Question, resolved per SPEC_FULL.md supplemental feature 1):
// round(allocated_token / order_sz), clamped to [0, n_orders]. The second
// return value is false when seeding is not configured, leaving
// initialBoundary's n_orders default in place.
func (o *Orchestrator) seedBoundary(allocatedToken decimal.Decimal) (int, bool) {
	if o.cfg.NSeededLevels <= 0 || o.cfg.OrderSize.IsZero() {
		return 0, false
	}
	level := int(allocatedToken.Div(o.cfg.OrderSize).Round(0).IntPart())
	if level < 0 {
		level = 0
	}
	if n := o.grid.NOrders(); level > n {
		level = n
	}
	return level, true
}

// Subscribe wires WS callbacks into the loop's channels. Callbacks never
// touch shared state directly — they only enqueue, non-blockingly.
func (o *Orchestrator) Subscribe(ctx context.Context) error {
	if err := o.exchange.SubscribeOrderUpdates(ctx, o.cfg.Coin, o.enqueueOrderUpdate); err != nil {
		return err
	}
	if err := o.exchange.SubscribeUserFills(ctx, o.cfg.Coin, o.enqueueFill); err != nil {
		return err
	}
	if err := o.exchange.SubscribeWebData2(ctx, o.enqueueBalance); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) enqueueOrderUpdate(u core.OrderUpdate) {
	select {
	case o.orderUpdates <- u:
	default:
		o.logger.Warn("order update channel full, dropping", "oid", u.OID)
	}
}

func (o *Orchestrator) enqueueFill(f core.Fill) {
	select {
	case o.fills <- f:
	default:
		o.logger.Warn("fill channel full, dropping", "tid", f.TID)
	}
}

func (o *Orchestrator) enqueueBalance(b core.Balances) {
	select {
	case o.balances <- b:
	default:
		o.logger.Warn("balance channel full, dropping update")
	}
}

// Run is the event loop: a ticker drives quoting/diff/emit, and the three
// WS-fed channels (order updates, fills, balances) are drained as they arrive. Returns when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return o.onShutdown(ctx)
		case u := <-o.orderUpdates:
			o.handleOrderUpdate(u)
		case f := <-o.fills:
			o.handleFill(f)
		case b := <-o.balances:
			o.inv.OnBalanceUpdate(b.TokenBalance, b.QuoteBalance)
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		if elapsed > o.cfg.Interval {
			o.logger.Warn("tick exceeded interval", "elapsed", elapsed.String(), "interval", o.cfg.Interval.String())
		}
	}()

	o.boundaryLevel = o.recomputeBoundary()

	desired := quoting.ComputeDesired(o.grid, o.boundaryLevel, o.inv.EffectiveToken(), o.inv.EffectiveUSDC(), o.cfg.OrderSize, o.cfg.MinNotional)
	current := o.state.Snapshot()

	d := diff.ComputeDiff(desired, current, o.cfg.DeadZoneBps, o.cfg.PriceToleranceBps, o.cfg.SizeTolerancePct)
	if !d.IsEmpty() {
		result := o.emit.Emit(ctx, o.cfg.Coin, d, o.budget)
		o.logger.Debug("tick emitted mutations",
			"cancelled", result.NCancelled, "modified", result.NModified, "placed", result.NPlaced,
			"errors", result.NErrors, "cancel_only", result.CancelOnlyMode)
	}

	o.tickCount++
	if o.cfg.ReconcileEvery > 0 && o.tickCount%o.cfg.ReconcileEvery == 0 {
		o.reconcile(ctx)
	}

	o.recordMonitoring()
}

// recomputeBoundary re-derives boundary_level from the lowest tracked ask,
// falling back to n_orders when there are none resting.
func (o *Orchestrator) recomputeBoundary() int {
	return o.initialBoundary()
}

func (o *Orchestrator) handleOrderUpdate(u core.OrderUpdate) {
	// Place/modify confirmations are applied by the emitter directly off
	// the synchronous batch response; orderUpdates is the authoritative
	// feed for state changes outside of direct request/response, notably
	// out-of-band cancellations. A resting-status update for an already
	// tracked OID is a no-op confirmation.
	if u.Status == "canceled" {
		o.state.RemoveGhost(u.OID)
	}
}

func (o *Orchestrator) handleFill(f core.Fill) {
	result := o.state.OnFill(strconv.FormatInt(f.TID, 10), f.OID, f.Size)
	if result == nil {
		return
	}

	if result.Side == core.Sell {
		o.inv.OnAskFill(result.Price, result.FillSize)
	} else {
		o.inv.OnBidFill(result.Price, result.FillSize)
	}
	o.budget.OnFill(result.Price.Mul(result.FillSize))
}

// reconcile fetches open_orders and spot_user_state, reconciling OrderState
// (enqueueing cancels for orphans, clearing ghosts) and Inventory.
func (o *Orchestrator) reconcile(ctx context.Context) {
	openOrders, err := o.exchange.OpenOrders(ctx, o.cfg.Coin)
	if err != nil {
		o.logger.Warn("reconcile: open_orders failed", "error", err.Error())
	} else {
		exchangeOIDs := make([]int64, len(openOrders))
		for i, ord := range openOrders {
			exchangeOIDs[i] = ord.OID
		}
		o.lastExchangeOrders = len(openOrders)
		result := o.state.Reconcile(exchangeOIDs)
		for _, oid := range result.Ghost {
			o.state.RemoveGhost(oid)
		}
		if len(result.Orphaned) > 0 {
			cancelResult := o.emit.Emit(ctx, o.cfg.Coin, core.OrderDiff{Cancels: result.Orphaned}, o.budget)
			o.logger.Info("reconcile: cancelling orphaned orders", "count", len(result.Orphaned), "cancelled", cancelResult.NCancelled)
		}
	}

	balances, err := o.exchange.SpotUserState(ctx)
	if err != nil {
		o.logger.Warn("reconcile: spot_user_state failed", "error", err.Error())
		return
	}
	o.inv.OnBalanceUpdate(balances.TokenBalance, balances.QuoteBalance)
}

// OnReconnect resubscribes all feeds and forces an immediate reconciliation;
// fill replays during the gap are absorbed by OrderState's tid dedup.
func (o *Orchestrator) OnReconnect(ctx context.Context) error {
	if err := o.Subscribe(ctx); err != nil {
		return err
	}
	o.reconcile(ctx)
	return nil
}

func (o *Orchestrator) onShutdown(ctx context.Context) error {
	if !o.cfg.CancelOnExit {
		return nil
	}

	var oids []int64
	for _, t := range o.state.Snapshot() {
		oids = append(oids, t.OID)
	}
	if len(oids) == 0 {
		return nil
	}

	o.logger.Info("cancel_on_exit: cancelling all resting orders", "count", len(oids))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	o.emit.Emit(shutdownCtx, o.cfg.Coin, core.OrderDiff{Cancels: oids}, o.budget)
	return nil
}

func (o *Orchestrator) recordMonitoring() {
	ratio, _ := o.budget.Ratio().Float64()
	remaining, _ := o.budget.Remaining().Float64()
	cumVlm, _ := o.budget.CumVlm().Float64()

	o.logger.Info("tick summary",
		"ratio", o.budget.Ratio().String(),
		"remaining_budget", o.budget.Remaining().String(),
		"cum_vlm", o.budget.CumVlm().String(),
		"n_requests", o.budget.NRequests(),
		"state_orders", o.state.Len(),
		"exchange_orders", o.lastExchangeOrders,
		"boundary_level", o.boundaryLevel,
	)

	telemetry.GetGlobalMetrics().RecordTick(o.cfg.Coin, ratio, remaining, cumVlm, o.budget.NRequests(), int64(o.state.Len()), int64(o.lastExchangeOrders))
}
