// Package pricinggrid builds the immutable geometric price ladder the rest
// of the engine quotes against.
package pricinggrid

import (
	"hyperliquidity-mm/pkg/errs"

	"github.com/shopspring/decimal"
)

// RoundFunc rounds a raw price to the exchange's tradable tick size.
type RoundFunc func(decimal.Decimal) decimal.Decimal

// Grid is a strictly-increasing, immutable sequence of n_orders prices.
// p_0 = start_px, p_i = round_fn(p_{i-1} * (1 + tick)).
type Grid struct {
	levels []decimal.Decimal
}

// New constructs a Grid. Construction fails with errs.ErrDegenerateGrid if
// rounding produces any adjacent equal pair.
func New(startPx decimal.Decimal, nOrders int, tick decimal.Decimal, round RoundFunc) (*Grid, error) {
	if nOrders <= 0 {
		return nil, errs.ErrDegenerateGrid
	}

	levels := make([]decimal.Decimal, nOrders)
	levels[0] = round(startPx)

	factor := decimal.NewFromInt(1).Add(tick)
	for i := 1; i < nOrders; i++ {
		levels[i] = round(levels[i-1].Mul(factor))
		if levels[i].Equal(levels[i-1]) {
			return nil, errs.ErrDegenerateGrid
		}
	}

	return &Grid{levels: levels}, nil
}

// NOrders returns the number of levels in the grid.
func (g *Grid) NOrders() int {
	return len(g.levels)
}

// Levels returns the full ordered price array. Callers must not mutate it.
func (g *Grid) Levels() []decimal.Decimal {
	return g.levels
}

// PriceAtLevel returns the price at the given level index, or
// errs.ErrOutOfRange if i is not in [0, n_orders).
func (g *Grid) PriceAtLevel(i int) (decimal.Decimal, error) {
	if i < 0 || i >= len(g.levels) {
		return decimal.Zero, errs.ErrOutOfRange
	}
	return g.levels[i], nil
}

// LevelForPrice returns the nearest level index to px, or false if px lies
// outside the grid by more than half the nearest spacing. Ties break to the
// lower index.
func (g *Grid) LevelForPrice(px decimal.Decimal) (int, bool) {
	n := len(g.levels)
	if n == 0 {
		return 0, false
	}
	if n == 1 {
		spacing := decimal.Zero
		if px.GreaterThan(g.levels[0]) || px.LessThan(g.levels[0]) {
			return 0, false
		}
		_ = spacing
		return 0, true
	}

	// Binary search for the insertion point.
	lo, hi := 0, n-1
	for lo < hi {
		mid := (lo + hi) / 2
		if g.levels[mid].LessThan(px) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}

	candidates := []int{lo}
	if lo > 0 {
		candidates = append(candidates, lo-1)
	}

	best := -1
	var bestDist decimal.Decimal
	for _, c := range candidates {
		dist := px.Sub(g.levels[c]).Abs()
		if best == -1 || dist.LessThan(bestDist) || (dist.Equal(bestDist) && c < best) {
			best = c
			bestDist = dist
		}
	}

	if px.LessThan(g.levels[0]) || px.GreaterThan(g.levels[n-1]) {
		spacing := g.localSpacing(best)
		if bestDist.GreaterThan(spacing.Div(decimal.NewFromInt(2))) {
			return 0, false
		}
	}
	return best, true
}

// localSpacing returns the spacing adjacent to level i: the smaller of its
// two adjacent spacings for an interior level, the single adjacent spacing
// at either end.
func (g *Grid) localSpacing(i int) decimal.Decimal {
	n := len(g.levels)
	switch {
	case n < 2:
		return decimal.Zero
	case i == 0:
		return g.levels[1].Sub(g.levels[0])
	case i == n-1:
		return g.levels[n-1].Sub(g.levels[n-2])
	default:
		lower := g.levels[i].Sub(g.levels[i-1])
		upper := g.levels[i+1].Sub(g.levels[i])
		if lower.LessThan(upper) {
			return lower
		}
		return upper
	}
}
