package orchestrator

import (
	"context"
	"testing"
	"time"

	"hyperliquidity-mm/internal/core"
	"hyperliquidity-mm/internal/emitter"
	"hyperliquidity-mm/internal/orderstate"
	"hyperliquidity-mm/internal/pricinggrid"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func roundIdentity(px decimal.Decimal) decimal.Decimal { return px }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})      {}
func (nopLogger) Info(string, ...interface{})       {}
func (nopLogger) Warn(string, ...interface{})       {}
func (nopLogger) Error(string, ...interface{})      {}
func (nopLogger) Fatal(string, ...interface{})      {}
func (l nopLogger) With(...interface{}) core.Logger { return l }

// fakeExchange is a minimal, configurable core.ExchangeClient for
// orchestrator tests: seed data is fixed fields, batch calls echo back a
// "resting" result for everything presented to them.
type fakeExchange struct {
	openOrders    []core.BookLevel
	balances      core.Balances
	rateLimit     core.RateLimitSnapshot
	subscribeErr  error
	orderUpdateCB func(core.OrderUpdate)
	fillCB        func(core.Fill)
}

func (f *fakeExchange) SpotMeta(context.Context, string) (int32, error) { return 2, nil }
func (f *fakeExchange) OpenOrders(context.Context, string) ([]core.BookLevel, error) {
	return f.openOrders, nil
}
func (f *fakeExchange) SpotUserState(context.Context) (core.Balances, error) {
	return f.balances, nil
}
func (f *fakeExchange) UserRateLimit(context.Context) (core.RateLimitSnapshot, error) {
	return f.rateLimit, nil
}

func (f *fakeExchange) BulkCancel(_ context.Context, _ string, oids []int64) ([]core.BatchResult, error) {
	out := make([]core.BatchResult, len(oids))
	for i, oid := range oids {
		out[i] = core.BatchResult{OID: oid, Status: "success"}
	}
	return out, nil
}

func (f *fakeExchange) BulkModify(_ context.Context, _ string, mods []core.Modification) ([]core.BatchResult, error) {
	out := make([]core.BatchResult, len(mods))
	for i, m := range mods {
		out[i] = core.BatchResult{OID: m.OID, Status: "resting"}
	}
	return out, nil
}

func (f *fakeExchange) BulkOrders(_ context.Context, _ string, orders []core.DesiredOrder) ([]core.BatchResult, error) {
	out := make([]core.BatchResult, len(orders))
	for i := range orders {
		out[i] = core.BatchResult{OID: int64(5000 + i), Status: "resting"}
	}
	return out, nil
}

func (f *fakeExchange) SubscribeOrderUpdates(_ context.Context, _ string, handler func(core.OrderUpdate)) error {
	f.orderUpdateCB = handler
	return f.subscribeErr
}
func (f *fakeExchange) SubscribeUserFills(_ context.Context, _ string, handler func(core.Fill)) error {
	f.fillCB = handler
	return f.subscribeErr
}
func (f *fakeExchange) SubscribeAllMids(context.Context, func(string, decimal.Decimal)) error {
	return nil
}
func (f *fakeExchange) SubscribeWebData2(context.Context, func(core.Balances)) error {
	return nil
}
func (f *fakeExchange) Close() error { return nil }

func testGrid(t *testing.T) *pricinggrid.Grid {
	t.Helper()
	g, err := pricinggrid.New(d(1.0), 10, d(0.003), roundIdentity)
	require.NoError(t, err)
	return g
}

func newTestOrchestrator(t *testing.T, ex core.ExchangeClient) *Orchestrator {
	t.Helper()
	grid := testGrid(t)
	state := orderstate.New(nopLogger{})
	em := emitter.New(ex, state, nopLogger{}, nil)
	cfg := Config{
		Coin:              "PURR",
		Interval:          time.Hour, // tests drive tick() directly, not via the ticker
		ReconcileEvery:    0,
		DeadZoneBps:       d(0),
		PriceToleranceBps: d(1),
		SizeTolerancePct:  d(5),
		MinNotional:       d(0),
		OrderSize:         d(2),
		CancelOnExit:      false,
	}
	o := New(cfg, ex, nopLogger{}, grid, state, em)
	return o
}

func TestOrchestrator_SeedPopulatesStateInventoryAndBudget(t *testing.T) {
	ex := &fakeExchange{
		openOrders: []core.BookLevel{
			{OID: 1, Side: core.Sell, Price: d(1.009), Size: d(2)}, // level 3
		},
		balances:  core.Balances{TokenBalance: d(20), QuoteBalance: d(100)},
		rateLimit: core.RateLimitSnapshot{CumVlm: d(500), NRequests: 10},
	}
	o := newTestOrchestrator(t, ex)

	err := o.Seed(context.Background(), d(20), d(100))
	require.NoError(t, err)

	assert.Equal(t, 1, o.state.Len())
	assert.True(t, o.inv.EffectiveToken().Equal(d(20)))
	assert.True(t, o.inv.EffectiveUSDC().Equal(d(100)))
	assert.True(t, o.budget.CumVlm().Equal(d(500)))
	assert.Equal(t, int64(10), o.budget.NRequests())
	assert.Equal(t, 3, o.boundaryLevel)
}

func TestOrchestrator_SeedWithNoOpenOrdersUsesNOrdersAsBoundary(t *testing.T) {
	ex := &fakeExchange{
		balances:  core.Balances{TokenBalance: d(20), QuoteBalance: d(100)},
		rateLimit: core.RateLimitSnapshot{},
	}
	o := newTestOrchestrator(t, ex)

	require.NoError(t, o.Seed(context.Background(), d(20), d(100)))

	assert.Equal(t, o.grid.NOrders(), o.boundaryLevel)
}

func TestOrchestrator_SeedWithNSeededLevelsDerivesBoundaryFromAllocation(t *testing.T) {
	ex := &fakeExchange{
		balances:  core.Balances{TokenBalance: d(20), QuoteBalance: d(100)},
		rateLimit: core.RateLimitSnapshot{},
	}
	o := newTestOrchestrator(t, ex)
	o.cfg.NSeededLevels = 1 // any positive value just enables the convention

	require.NoError(t, o.Seed(context.Background(), d(20), d(100)))

	// order_sz is 2 (newTestOrchestrator), allocated_token is 20: round(20/2) = 10,
	// clamped to the 10-level grid.
	assert.Equal(t, 10, o.boundaryLevel)
}

func TestOrchestrator_TickPlacesOrdersFromEffectiveBalances(t *testing.T) {
	ex := &fakeExchange{
		balances:  core.Balances{TokenBalance: d(10), QuoteBalance: d(10)},
		rateLimit: core.RateLimitSnapshot{},
	}
	o := newTestOrchestrator(t, ex)
	require.NoError(t, o.Seed(context.Background(), d(10), d(10)))

	o.tick(context.Background())

	assert.Greater(t, o.state.Len(), 0)
}

func TestOrchestrator_HandleFillUpdatesInventoryAndBudget(t *testing.T) {
	ex := &fakeExchange{}
	o := newTestOrchestrator(t, ex)
	o.state.OnPlaceConfirmed(42, core.Sell, 3, d(1.009), d(2))
	o.inv.UpdateAllocation(d(100), d(100))
	o.inv.OnBalanceUpdate(d(20), d(0))

	o.handleFill(core.Fill{TID: 555, OID: 42, Side: core.Sell, Price: d(1.009), Size: d(2)})

	assert.True(t, o.inv.AccountToken().Equal(d(18)))
	assert.True(t, o.inv.AccountUSDC().Equal(d(2.018)))
	assert.True(t, o.budget.CumVlm().Equal(d(1.009 * 2)))

	_, tracked := o.state.ByOID(42)
	assert.False(t, tracked, "fill fully consumed the tracked order's size")
}

func TestOrchestrator_HandleFillDedupsByTID(t *testing.T) {
	ex := &fakeExchange{}
	o := newTestOrchestrator(t, ex)
	o.state.OnPlaceConfirmed(42, core.Sell, 3, d(1.009), d(5))

	o.handleFill(core.Fill{TID: 1, OID: 42, Side: core.Sell, Price: d(1.009), Size: d(2)})
	cumAfterFirst := o.budget.CumVlm()

	o.handleFill(core.Fill{TID: 1, OID: 42, Side: core.Sell, Price: d(1.009), Size: d(2)})

	assert.True(t, o.budget.CumVlm().Equal(cumAfterFirst), "replayed tid must not double count")
}

func TestOrchestrator_HandleOrderUpdateCanceledRemovesGhost(t *testing.T) {
	ex := &fakeExchange{}
	o := newTestOrchestrator(t, ex)
	o.state.OnPlaceConfirmed(7, core.Buy, 1, d(1.0), d(2))

	o.handleOrderUpdate(core.OrderUpdate{OID: 7, Status: "canceled"})

	_, tracked := o.state.ByOID(7)
	assert.False(t, tracked)
}

func TestOrchestrator_ReconcileCancelsOrphansAndClearsGhosts(t *testing.T) {
	ex := &fakeExchange{
		openOrders: []core.BookLevel{{OID: 99, Side: core.Sell, Price: d(1.009), Size: d(2)}},
		balances:   core.Balances{TokenBalance: d(5), QuoteBalance: d(5)},
	}
	o := newTestOrchestrator(t, ex)
	// Tracked locally but absent from the exchange: a ghost.
	o.state.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(2))

	o.reconcile(context.Background())

	_, ghostStillTracked := o.state.ByOID(1)
	assert.False(t, ghostStillTracked, "ghost orders are removed on reconcile")
	assert.True(t, o.inv.AccountToken().Equal(d(5)))
}

func TestOrchestrator_OnReconnectResubscribesAndReconciles(t *testing.T) {
	ex := &fakeExchange{
		balances: core.Balances{TokenBalance: d(5), QuoteBalance: d(5)},
	}
	o := newTestOrchestrator(t, ex)

	require.NoError(t, o.OnReconnect(context.Background()))

	assert.NotNil(t, ex.orderUpdateCB)
	assert.NotNil(t, ex.fillCB)
	assert.True(t, o.inv.AccountToken().Equal(d(5)))
}

func TestOrchestrator_ShutdownWithCancelOnExitCancelsAllResting(t *testing.T) {
	ex := &fakeExchange{}
	o := newTestOrchestrator(t, ex)
	o.cfg.CancelOnExit = true
	o.state.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(2))
	o.state.OnPlaceConfirmed(2, core.Sell, 5, d(1.02), d(2))

	err := o.onShutdown(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, o.state.Len())
}

func TestOrchestrator_ShutdownWithoutCancelOnExitLeavesOrdersResting(t *testing.T) {
	ex := &fakeExchange{}
	o := newTestOrchestrator(t, ex)
	o.cfg.CancelOnExit = false
	o.state.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(2))

	err := o.onShutdown(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, o.state.Len())
}
