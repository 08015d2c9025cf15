package core

import (
	"github.com/shopspring/decimal"
)

// Side is the resting-order side.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderStatus is the lifecycle state of a TrackedOrder.
type OrderStatus int

const (
	StatusResting OrderStatus = iota
	StatusPendingPlace
	StatusPendingModify
	StatusPendingCancel
)

// OrderKey is the (side, level_index) identity a resting order occupies.
// At most one TrackedOrder exists per OrderKey at any time.
type OrderKey struct {
	Side       Side
	LevelIndex int
}

// TrackedOrder is OrderState's mutable record of a resting (or pending)
// order. It is always reachable from both the by_oid and by_key indices
// while resting — the two indices must dereference the same object.
type TrackedOrder struct {
	OID        int64
	Side       Side
	LevelIndex int
	Price      decimal.Decimal
	Size       decimal.Decimal
	Status     OrderStatus
}

func (t *TrackedOrder) Key() OrderKey {
	return OrderKey{Side: t.Side, LevelIndex: t.LevelIndex}
}

// DesiredOrder is QuotingEngine's immutable, hashable output: what the book
// should look like at one grid level. Two DesiredOrders with equal fields
// are equal.
type DesiredOrder struct {
	Side       Side
	LevelIndex int
	Price      decimal.Decimal
	Size       decimal.Decimal
}

func (d DesiredOrder) Key() OrderKey {
	return OrderKey{Side: d.Side, LevelIndex: d.LevelIndex}
}

// Notional is price*size, used by the min-notional filter.
func (d DesiredOrder) Notional() decimal.Decimal {
	return d.Price.Mul(d.Size)
}

// Modification pairs a live order id with the desired state it should be
// modified to.
type Modification struct {
	OID     int64
	Desired DesiredOrder
}

// OrderDiff is OrderDiffer's immutable output: the minimum mutation set
// that turns the current book into the desired one.
type OrderDiff struct {
	Modifies []Modification
	Places   []DesiredOrder
	Cancels  []int64
}

func (d OrderDiff) IsEmpty() bool {
	return len(d.Modifies) == 0 && len(d.Places) == 0 && len(d.Cancels) == 0
}

func (d OrderDiff) MutationCount() int {
	return len(d.Modifies) + len(d.Places) + len(d.Cancels)
}

// FillResult is returned by OrderState.OnFill for a non-duplicate fill.
type FillResult struct {
	Side        Side
	Price       decimal.Decimal
	FillSize    decimal.Decimal
	FullyFilled bool
}

// ReconcileResult is OrderState.Reconcile's report: what the caller must act
// on. Orphaned orders exist on the exchange but are not tracked locally;
// ghost orders are tracked locally but absent from the exchange.
type ReconcileResult struct {
	Orphaned []int64
	Ghost    []int64
}
