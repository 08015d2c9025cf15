package emitter

import (
	"context"
	"testing"

	"hyperliquidity-mm/internal/core"
	"hyperliquidity-mm/internal/orderstate"
	"hyperliquidity-mm/internal/ratelimit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})      {}
func (nopLogger) Info(string, ...interface{})       {}
func (nopLogger) Warn(string, ...interface{})       {}
func (nopLogger) Error(string, ...interface{})      {}
func (nopLogger) Fatal(string, ...interface{})      {}
func (l nopLogger) With(...interface{}) core.Logger { return l }

type fakeExchange struct {
	cancelCalls  int
	modifyCalls  int
	orderCalls   int
	cancelResult []core.BatchResult
	modifyResult []core.BatchResult
	orderResult  []core.BatchResult
}

func (f *fakeExchange) SpotMeta(context.Context, string) (int32, error) { return 0, nil }
func (f *fakeExchange) OpenOrders(context.Context, string) ([]core.BookLevel, error) {
	return nil, nil
}
func (f *fakeExchange) SpotUserState(context.Context) (core.Balances, error) {
	return core.Balances{}, nil
}
func (f *fakeExchange) UserRateLimit(context.Context) (core.RateLimitSnapshot, error) {
	return core.RateLimitSnapshot{}, nil
}

func (f *fakeExchange) BulkCancel(_ context.Context, _ string, oids []int64) ([]core.BatchResult, error) {
	f.cancelCalls++
	if f.cancelResult != nil {
		return f.cancelResult, nil
	}
	out := make([]core.BatchResult, len(oids))
	for i, oid := range oids {
		out[i] = core.BatchResult{OID: oid, Status: "success"}
	}
	return out, nil
}

func (f *fakeExchange) BulkModify(_ context.Context, _ string, mods []core.Modification) ([]core.BatchResult, error) {
	f.modifyCalls++
	if f.modifyResult != nil {
		return f.modifyResult, nil
	}
	out := make([]core.BatchResult, len(mods))
	for i, m := range mods {
		out[i] = core.BatchResult{OID: m.OID, Status: "resting"}
	}
	return out, nil
}

func (f *fakeExchange) BulkOrders(_ context.Context, _ string, orders []core.DesiredOrder) ([]core.BatchResult, error) {
	f.orderCalls++
	if f.orderResult != nil {
		return f.orderResult, nil
	}
	out := make([]core.BatchResult, len(orders))
	for i := range orders {
		out[i] = core.BatchResult{OID: int64(1000 + i), Status: "resting"}
	}
	return out, nil
}

func (f *fakeExchange) SubscribeOrderUpdates(context.Context, string, func(core.OrderUpdate)) error {
	return nil
}
func (f *fakeExchange) SubscribeUserFills(context.Context, string, func(core.Fill)) error { return nil }
func (f *fakeExchange) SubscribeAllMids(context.Context, func(string, decimal.Decimal)) error {
	return nil
}
func (f *fakeExchange) SubscribeWebData2(context.Context, func(core.Balances)) error {
	return nil
}
func (f *fakeExchange) Close() error { return nil }

func diffOfSizes(nCancels, nModifies, nPlaces int) core.OrderDiff {
	var out core.OrderDiff
	for i := 0; i < nCancels; i++ {
		out.Cancels = append(out.Cancels, int64(i+1))
	}
	for i := 0; i < nModifies; i++ {
		out.Modifies = append(out.Modifies, core.Modification{OID: int64(100 + i), Desired: core.DesiredOrder{Side: core.Buy, LevelIndex: i}})
	}
	for i := 0; i < nPlaces; i++ {
		out.Places = append(out.Places, core.DesiredOrder{Side: core.Sell, LevelIndex: i, Price: d(1.0), Size: d(1.0)})
	}
	return out
}

func TestEmitter_Scenario6_CancelOnlyModeAtRemaining110(t *testing.T) {
	ex := &fakeExchange{}
	s := orderstate.New(nopLogger{})
	em := New(ex, s, nopLogger{}, nil)
	budget := ratelimit.New()
	budget.SyncFromExchange(decimal.NewFromInt(-9890), 0) // remaining = 10000-9890 = 110

	diff := diffOfSizes(5, 3, 4)
	result := em.Emit(context.Background(), "PURR", diff, budget)

	assert.True(t, result.CancelOnlyMode)
	assert.Equal(t, 5, result.NCancelled)
	assert.Equal(t, 0, result.NModified)
	assert.Equal(t, 0, result.NPlaced)
}

func TestEmitter_NotCancelOnlyAtRemaining120(t *testing.T) {
	ex := &fakeExchange{}
	s := orderstate.New(nopLogger{})
	for i := 0; i < 3; i++ {
		s.OnPlaceConfirmed(int64(100+i), core.Buy, i, d(1.0), d(1.0))
	}
	em := New(ex, s, nopLogger{}, nil)
	budget := ratelimit.New()
	budget.SyncFromExchange(decimal.NewFromInt(-9880), 0) // remaining = 120

	diff := diffOfSizes(5, 3, 4)
	result := em.Emit(context.Background(), "PURR", diff, budget)

	assert.False(t, result.CancelOnlyMode)
	assert.Equal(t, 5, result.NCancelled)
	assert.Equal(t, 3, result.NModified)
	assert.Equal(t, 4, result.NPlaced)
}

func TestEmitter_PerTickCapTrimsPlacesFirst(t *testing.T) {
	ex := &fakeExchange{}
	s := orderstate.New(nopLogger{})
	em := New(ex, s, nopLogger{}, nil)
	budget := ratelimit.New() // remaining = 10000, no budget gate trigger

	diff := diffOfSizes(10, 8, 8) // N=26 > 20
	result := em.Emit(context.Background(), "PURR", diff, budget)

	assert.Equal(t, 10, result.NCancelled, "cancels must never be trimmed")
	assert.Equal(t, 8, result.NModified, "modifies fit within the 10-cancel remainder")
	assert.Equal(t, 2, result.NPlaced, "only 2 of 8 places fit after cancels+modifies consume 18 of the 20 cap")
}

func TestEmitter_CooldownFiltersPlaces(t *testing.T) {
	ex := &fakeExchange{
		orderResult: []core.BatchResult{{OID: 0, Status: "error", Error: "Insufficient spot balance"}},
	}
	s := orderstate.New(nopLogger{})
	em := New(ex, s, nopLogger{}, nil)
	budget := ratelimit.New()

	diff := core.OrderDiff{Places: []core.DesiredOrder{{Side: core.Sell, LevelIndex: 0, Price: d(1.0), Size: d(1.0)}}}
	first := em.Emit(context.Background(), "PURR", diff, budget)
	assert.Equal(t, 0, first.NPlaced)
	assert.Equal(t, 1, first.NErrors)

	// Second tick: same (coin, side) place should be filtered by cooldown,
	// so BulkOrders is never called again.
	second := em.Emit(context.Background(), "PURR", diff, budget)
	assert.Equal(t, 0, second.NPlaced)
	assert.Equal(t, 0, second.NErrors)
	assert.Equal(t, 1, ex.orderCalls)
}

func TestEmitter_OnModifyResponse_HandlesOIDSwap(t *testing.T) {
	ex := &fakeExchange{
		modifyResult: []core.BatchResult{{OID: 777, Status: "resting"}},
	}
	s := orderstate.New(nopLogger{})
	s.OnPlaceConfirmed(7, core.Sell, 2, d(1.006), d(10))

	em := New(ex, s, nopLogger{}, nil)
	budget := ratelimit.New()

	diff := core.OrderDiff{Modifies: []core.Modification{{OID: 7, Desired: core.DesiredOrder{Side: core.Sell, LevelIndex: 2, Price: d(1.0063), Size: d(10)}}}}
	result := em.Emit(context.Background(), "PURR", diff, budget)

	assert.Equal(t, 1, result.NModified)
	_, stillOld := s.ByOID(7)
	assert.False(t, stillOld)
	_, newTracked := s.ByOID(777)
	assert.True(t, newTracked)
}

func TestEmitter_CrossSideModifyPanics(t *testing.T) {
	ex := &fakeExchange{}
	s := orderstate.New(nopLogger{})
	s.OnPlaceConfirmed(7, core.Sell, 2, d(1.006), d(10))

	em := New(ex, s, nopLogger{}, nil)
	budget := ratelimit.New()

	diff := core.OrderDiff{Modifies: []core.Modification{{OID: 7, Desired: core.DesiredOrder{Side: core.Buy, LevelIndex: 2, Price: d(1.006), Size: d(10)}}}}

	assert.Panics(t, func() {
		em.Emit(context.Background(), "PURR", diff, budget)
	})
}

func TestEmitter_AtMostThreeBatchCalls(t *testing.T) {
	ex := &fakeExchange{}
	s := orderstate.New(nopLogger{})
	em := New(ex, s, nopLogger{}, nil)
	budget := ratelimit.New()

	diff := diffOfSizes(1, 1, 1)
	em.Emit(context.Background(), "PURR", diff, budget)

	require.LessOrEqual(t, ex.cancelCalls+ex.modifyCalls+ex.orderCalls, 3)
}
