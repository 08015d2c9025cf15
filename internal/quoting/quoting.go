// Package quoting computes the desired resting-order ladder from current
// balances. It is pure: no I/O, no dependency on order state.
package quoting

import (
	"hyperliquidity-mm/internal/core"
	"hyperliquidity-mm/internal/pricinggrid"

	"github.com/shopspring/decimal"
)

// ComputeDesired returns the full target ladder for one tick: asks ascending
// from boundaryLevel filling effToken, then bids descending from
// boundaryLevel-1 filling effUSDC, then a min-notional filter. The result is
// deterministic for identical inputs and ordered asks-then-bids.
func ComputeDesired(grid *pricinggrid.Grid, boundaryLevel int, effToken, effUSDC, orderSz, minNotional decimal.Decimal) []core.DesiredOrder {
	orders := make([]core.DesiredOrder, 0)
	orders = append(orders, computeAsks(grid, boundaryLevel, effToken, orderSz)...)
	orders = append(orders, computeBids(grid, boundaryLevel, effUSDC, orderSz)...)
	return filterMinNotional(orders, minNotional)
}

func computeAsks(grid *pricinggrid.Grid, boundaryLevel int, effToken, orderSz decimal.Decimal) []core.DesiredOrder {
	var asks []core.DesiredOrder
	if boundaryLevel >= grid.NOrders() || orderSz.IsZero() {
		return asks
	}

	nFull := int(effToken.Div(orderSz).Floor().IntPart())

	level := boundaryLevel
	for i := 0; i < nFull && level < grid.NOrders(); i, level = i+1, level+1 {
		px, _ := grid.PriceAtLevel(level)
		asks = append(asks, core.DesiredOrder{Side: core.Sell, LevelIndex: level, Price: px, Size: orderSz})
	}

	partial := effToken.Sub(orderSz.Mul(decimal.NewFromInt(int64(nFull))))
	if partial.GreaterThan(decimal.Zero) && level < grid.NOrders() {
		px, _ := grid.PriceAtLevel(level)
		asks = append(asks, core.DesiredOrder{Side: core.Sell, LevelIndex: level, Price: px, Size: partial})
	}

	return asks
}

func computeBids(grid *pricinggrid.Grid, boundaryLevel int, effUSDC, orderSz decimal.Decimal) []core.DesiredOrder {
	var bids []core.DesiredOrder
	remaining := effUSDC

	for level := boundaryLevel - 1; level >= 0; level-- {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}

		px, _ := grid.PriceAtLevel(level)
		cost := px.Mul(orderSz)

		if remaining.GreaterThanOrEqual(cost) {
			bids = append(bids, core.DesiredOrder{Side: core.Buy, LevelIndex: level, Price: px, Size: orderSz})
			remaining = remaining.Sub(cost)
			continue
		}

		// Partial: funds run out at this level, so the remaining usdc buys
		// a partial order here and the walk stops; no lower level is tried.
		bids = append(bids, core.DesiredOrder{Side: core.Buy, LevelIndex: level, Price: px, Size: remaining.Div(px)})
		remaining = decimal.Zero
		break
	}

	return bids
}

func filterMinNotional(orders []core.DesiredOrder, minNotional decimal.Decimal) []core.DesiredOrder {
	out := make([]core.DesiredOrder, 0, len(orders))
	for _, o := range orders {
		if o.Notional().LessThan(minNotional) {
			continue
		}
		out = append(out, o)
	}
	return out
}
