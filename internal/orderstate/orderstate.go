// Package orderstate is the single source of truth for resting orders: a
// dual-indexed map keyed by exchange OID and by (side, level_index), plus a
// bounded trade-id set for fill dedup.
package orderstate

import (
	"strings"

	"hyperliquidity-mm/internal/core"

	"github.com/shopspring/decimal"
)

// seenTidsCap bounds the dedup set; once reached, the oldest half (by
// insertion order) is pruned to keep lookups O(1)-ish without unbounded
// growth.
const seenTidsCap = 5000

// epsilon absorbs decimal rounding noise when comparing fill size against
// tracked order size.
var epsilon = decimal.New(1, -9)

// OrderState owns by_oid, by_key and seen_tids. It is not safe for
// concurrent use; callers on the event loop own exclusive access.
type OrderState struct {
	byOID map[int64]*core.TrackedOrder
	byKey map[core.OrderKey]*core.TrackedOrder

	seenTids    map[string]struct{}
	seenTidsOrd []string

	logger core.Logger
}

// New constructs an empty OrderState.
func New(logger core.Logger) *OrderState {
	return &OrderState{
		byOID:    make(map[int64]*core.TrackedOrder),
		byKey:    make(map[core.OrderKey]*core.TrackedOrder),
		seenTids: make(map[string]struct{}),
		logger:   logger,
	}
}

// OnPlaceConfirmed inserts a newly-resting order. If the (side, level_index)
// key is already occupied, the prior OID is evicted from by_oid first — the
// new order replaces it at that key. Idempotent on replay of the same OID.
func (s *OrderState) OnPlaceConfirmed(oid int64, side core.Side, levelIndex int, price, size decimal.Decimal) {
	key := core.OrderKey{Side: side, LevelIndex: levelIndex}

	if prior, ok := s.byKey[key]; ok && prior.OID != oid {
		delete(s.byOID, prior.OID)
	}

	order := &core.TrackedOrder{
		OID:        oid,
		Side:       side,
		LevelIndex: levelIndex,
		Price:      price,
		Size:       size,
		Status:     core.StatusResting,
	}
	s.byOID[oid] = order
	s.byKey[key] = order
}

// OnModifyResponse handles a bulk_modify result. A "Cannot modify" status
// removes the order from both indices (ghost). Otherwise, the tracked order's
// price/size are updated to the modify's desired values — without this, the
// next diff keeps comparing against the pre-modify price/size and re-emits
// the same modify every tick — and if newOID is non-nil and differs from
// originalOID, the order is re-keyed in by_oid in place; by_key is untouched
// since the (side, level_index) does not change on a modify. Unknown
// originalOID is a no-op.
func (s *OrderState) OnModifyResponse(originalOID int64, newOID *int64, price, size decimal.Decimal, statusText string) {
	order, ok := s.byOID[originalOID]
	if !ok {
		return
	}

	if isCannotModify(statusText) {
		s.removeFromIndices(order)
		return
	}

	order.Price = price
	order.Size = size

	if newOID != nil && *newOID != originalOID {
		delete(s.byOID, originalOID)
		order.OID = *newOID
		s.byOID[*newOID] = order
	}
}

// OnFill applies a fill, deduped by trade id. Returns nil if the tid was
// already seen or oid is untracked. A fill that consumes the remaining size
// (within epsilon) fully removes the order and reports fully_filled=true;
// otherwise the order's resting size is reduced.
func (s *OrderState) OnFill(tid string, oid int64, fillSize decimal.Decimal) *core.FillResult {
	if _, seen := s.seenTids[tid]; seen {
		return nil
	}
	s.recordTid(tid)

	order, ok := s.byOID[oid]
	if !ok {
		return nil
	}

	if fillSize.GreaterThanOrEqual(order.Size.Sub(epsilon)) {
		s.removeFromIndices(order)
		return &core.FillResult{Side: order.Side, Price: order.Price, FillSize: fillSize, FullyFilled: true}
	}

	order.Size = order.Size.Sub(fillSize)
	return &core.FillResult{Side: order.Side, Price: order.Price, FillSize: fillSize, FullyFilled: false}
}

// Reconcile compares the tracked OID set against the exchange's reported
// open-order OIDs. Orphaned: on the exchange but not tracked. Ghost: tracked
// but not on the exchange. The caller decides what to do with each.
func (s *OrderState) Reconcile(exchangeOIDs []int64) core.ReconcileResult {
	exchangeSet := make(map[int64]struct{}, len(exchangeOIDs))
	for _, oid := range exchangeOIDs {
		exchangeSet[oid] = struct{}{}
	}

	var orphaned, ghost []int64
	for _, oid := range exchangeOIDs {
		if _, tracked := s.byOID[oid]; !tracked {
			orphaned = append(orphaned, oid)
		}
	}
	for oid := range s.byOID {
		if _, onExchange := exchangeSet[oid]; !onExchange {
			ghost = append(ghost, oid)
		}
	}

	return core.ReconcileResult{Orphaned: orphaned, Ghost: ghost}
}

// RemoveGhost removes an order from both indices. Idempotent on absent OID.
func (s *OrderState) RemoveGhost(oid int64) {
	order, ok := s.byOID[oid]
	if !ok {
		return
	}
	s.removeFromIndices(order)
}

// Snapshot returns every tracked order, for diffing against desired state.
func (s *OrderState) Snapshot() []*core.TrackedOrder {
	out := make([]*core.TrackedOrder, 0, len(s.byOID))
	for _, o := range s.byOID {
		out = append(out, o)
	}
	return out
}

// ByKey returns the tracked order resting at (side, level_index), if any.
func (s *OrderState) ByKey(key core.OrderKey) (*core.TrackedOrder, bool) {
	o, ok := s.byKey[key]
	return o, ok
}

// ByOID returns the tracked order with the given OID, if any.
func (s *OrderState) ByOID(oid int64) (*core.TrackedOrder, bool) {
	o, ok := s.byOID[oid]
	return o, ok
}

// Len reports the number of tracked orders.
func (s *OrderState) Len() int {
	return len(s.byOID)
}

func (s *OrderState) removeFromIndices(order *core.TrackedOrder) {
	delete(s.byOID, order.OID)
	key := core.OrderKey{Side: order.Side, LevelIndex: order.LevelIndex}
	if current, ok := s.byKey[key]; ok && current.OID == order.OID {
		delete(s.byKey, key)
	}
}

func (s *OrderState) recordTid(tid string) {
	s.seenTids[tid] = struct{}{}
	s.seenTidsOrd = append(s.seenTidsOrd, tid)

	if len(s.seenTidsOrd) <= seenTidsCap {
		return
	}

	half := len(s.seenTidsOrd) / 2
	for _, old := range s.seenTidsOrd[:half] {
		delete(s.seenTids, old)
	}
	s.seenTidsOrd = append([]string(nil), s.seenTidsOrd[half:]...)
}

func isCannotModify(statusText string) bool {
	return strings.Contains(strings.ToLower(statusText), "cannot modify")
}
