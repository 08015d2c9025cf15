package orderstate

import (
	"testing"

	"hyperliquidity-mm/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})  {}
func (nopLogger) Info(string, ...interface{})   {}
func (nopLogger) Warn(string, ...interface{})   {}
func (nopLogger) Error(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{})  {}
func (l nopLogger) With(...interface{}) core.Logger { return l }

func assertIndicesConsistent(t *testing.T, s *OrderState) {
	t.Helper()
	for oid, o := range s.byOID {
		key := core.OrderKey{Side: o.Side, LevelIndex: o.LevelIndex}
		keyed, ok := s.byKey[key]
		require.True(t, ok, "by_oid entry %d has no matching by_key entry", oid)
		assert.Same(t, o, keyed)
	}
	for key, o := range s.byKey {
		oidEntry, ok := s.byOID[o.OID]
		require.True(t, ok, "by_key entry %v has no matching by_oid entry", key)
		assert.Same(t, o, oidEntry)
	}
}

func TestOrderState_OnPlaceConfirmed_Basic(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 2, d(1.0), d(10))

	tracked, ok := s.ByOID(1)
	require.True(t, ok)
	assert.Equal(t, core.StatusResting, tracked.Status)
	assertIndicesConsistent(t, s)
}

func TestOrderState_OnPlaceConfirmed_EvictsPriorAtSameKey(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))
	s.OnPlaceConfirmed(2, core.Buy, 0, d(1.0), d(10))

	_, stillThere := s.ByOID(1)
	assert.False(t, stillThere)
	_, newThere := s.ByOID(2)
	assert.True(t, newThere)
	assertIndicesConsistent(t, s)
}

func TestOrderState_OnPlaceConfirmed_IdempotentOnReplay(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))

	assert.Equal(t, 1, s.Len())
	assertIndicesConsistent(t, s)
}

func TestOrderState_OnModifyResponse_OIDSwap(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Sell, 3, d(1.01), d(5))

	newOID := int64(2)
	s.OnModifyResponse(1, &newOID, d(1.01), d(5), "resting")

	_, oldGone := s.ByOID(1)
	assert.False(t, oldGone)
	tracked, ok := s.ByOID(2)
	require.True(t, ok)
	assert.Equal(t, int64(2), tracked.OID)
	assertIndicesConsistent(t, s)
}

func TestOrderState_OnModifyResponse_UpdatesPriceAndSize(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Sell, 3, d(1.01), d(5))

	s.OnModifyResponse(1, nil, d(1.05), d(8), "resting")

	tracked, ok := s.ByOID(1)
	require.True(t, ok)
	assert.True(t, tracked.Price.Equal(d(1.05)))
	assert.True(t, tracked.Size.Equal(d(8)))
}

func TestOrderState_OnModifyResponse_CannotModifyRemoves(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Sell, 3, d(1.01), d(5))

	s.OnModifyResponse(1, nil, d(1.01), d(5), "error: Cannot modify order")

	assert.Equal(t, 0, s.Len())
	_, ok := s.ByKey(core.OrderKey{Side: core.Sell, LevelIndex: 3})
	assert.False(t, ok)
}

func TestOrderState_OnModifyResponse_UnchangedOIDIsNoOpAfterFirstCall(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))

	s.OnModifyResponse(1, nil, d(1.0), d(10), "resting")
	s.OnModifyResponse(1, nil, d(1.0), d(10), "resting")

	tracked, ok := s.ByOID(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), tracked.OID)
}

func TestOrderState_OnModifyResponse_UnknownOIDNoOp(t *testing.T) {
	s := New(nopLogger{})
	newOID := int64(99)
	s.OnModifyResponse(42, &newOID, d(1.0), d(10), "resting")
	assert.Equal(t, 0, s.Len())
}

func TestOrderState_OnFill_FullyFilledRemoves(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))

	res := s.OnFill("tid-1", 1, d(10))
	require.NotNil(t, res)
	assert.True(t, res.FullyFilled)
	assert.Equal(t, 0, s.Len())
}

func TestOrderState_OnFill_PartialReducesSize(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))

	res := s.OnFill("tid-1", 1, d(4))
	require.NotNil(t, res)
	assert.False(t, res.FullyFilled)

	tracked, ok := s.ByOID(1)
	require.True(t, ok)
	assert.True(t, tracked.Size.Equal(d(6)))
}

func TestOrderState_OnFill_DuplicateTidIgnored(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))

	first := s.OnFill("tid-1", 1, d(4))
	require.NotNil(t, first)

	second := s.OnFill("tid-1", 1, d(4))
	assert.Nil(t, second)

	tracked, ok := s.ByOID(1)
	require.True(t, ok)
	assert.True(t, tracked.Size.Equal(d(6)), "duplicate tid must not double-apply the fill")
}

func TestOrderState_OnFill_UnknownOIDReturnsNil(t *testing.T) {
	s := New(nopLogger{})
	res := s.OnFill("tid-1", 999, d(1))
	assert.Nil(t, res)
}

func TestOrderState_Reconcile_OrphanedAndGhost(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))
	s.OnPlaceConfirmed(2, core.Sell, 1, d(1.01), d(10))

	result := s.Reconcile([]int64{2, 3})

	assert.ElementsMatch(t, []int64{3}, result.Orphaned)
	assert.ElementsMatch(t, []int64{1}, result.Ghost)
}

func TestOrderState_RemoveGhost_IdempotentOnAbsentOID(t *testing.T) {
	s := New(nopLogger{})
	s.RemoveGhost(404)
	assert.Equal(t, 0, s.Len())

	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(10))
	s.RemoveGhost(1)
	s.RemoveGhost(1)
	assert.Equal(t, 0, s.Len())
}

func TestOrderState_SeenTidsPruningKeepsMostRecentWorking(t *testing.T) {
	s := New(nopLogger{})
	s.OnPlaceConfirmed(1, core.Buy, 0, d(1.0), d(1_000_000))

	for i := 0; i < seenTidsCap+10; i++ {
		s.OnFill(string(rune(i)), 1, d(0))
	}

	// The set must not grow unbounded; most recent tids remain deduped.
	recentTid := string(rune(seenTidsCap + 9))
	dup := s.OnFill(recentTid, 1, d(0))
	assert.Nil(t, dup)
}
