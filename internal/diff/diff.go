// Package diff computes the minimum set of order mutations that turns the
// current resting book into the desired one, guarded by a dead-zone check
// and per-order tolerances.
package diff

import (
	"hyperliquidity-mm/internal/core"

	"github.com/shopspring/decimal"
)

const bpsDenominator = 10_000

// ComputeDiff compares desired against current and returns the minimal
// mutation set. Pure and deterministic: the same inputs always produce the
// same OrderDiff, with stable ordering over the (side, level_index) key
// union.
func ComputeDiff(desired []core.DesiredOrder, current []*core.TrackedOrder, deadZoneBps, priceTolBps, sizeTolPct decimal.Decimal) core.OrderDiff {
	if len(desired) > 0 && len(current) > 0 {
		desiredMid := sizeWeightedMeanPrice(desired)
		currentMid := sizeWeightedMeanPriceTracked(current)
		if currentMid.IsPositive() {
			deltaBps := desiredMid.Sub(currentMid).Abs().Div(currentMid).Mul(decimal.NewFromInt(bpsDenominator))
			if deltaBps.LessThan(deadZoneBps) {
				return core.OrderDiff{}
			}
		}
	}

	desiredByKey := make(map[core.OrderKey]core.DesiredOrder, len(desired))
	for _, d := range desired {
		desiredByKey[d.Key()] = d
	}
	currentByKey := make(map[core.OrderKey]*core.TrackedOrder, len(current))
	for _, c := range current {
		currentByKey[c.Key()] = c
	}

	keys := unionKeysOrdered(desired, current)

	var out core.OrderDiff
	for _, key := range keys {
		d, inDesired := desiredByKey[key]
		c, inCurrent := currentByKey[key]

		switch {
		case inDesired && inCurrent:
			// key equality implies d.Side == c.Side: side is part of the
			// key, so a matched pair can never cross sides here. A buy that
			// disappears and a sell that appears at the same level_index
			// are different keys and fall through to cancel+place below.
			if withinTolerance(d, c, priceTolBps, sizeTolPct) {
				continue
			}
			out.Modifies = append(out.Modifies, core.Modification{OID: c.OID, Desired: d})
		case inDesired:
			out.Places = append(out.Places, d)
		case inCurrent:
			out.Cancels = append(out.Cancels, c.OID)
		}
	}

	return out
}

func withinTolerance(d core.DesiredOrder, c *core.TrackedOrder, priceTolBps, sizeTolPct decimal.Decimal) bool {
	priceDeltaBps := decimal.Zero
	if c.Price.IsPositive() {
		priceDeltaBps = d.Price.Sub(c.Price).Abs().Div(c.Price).Mul(decimal.NewFromInt(bpsDenominator))
	}
	sizeDeltaPct := decimal.Zero
	if c.Size.IsPositive() {
		sizeDeltaPct = d.Size.Sub(c.Size).Abs().Div(c.Size).Mul(decimal.NewFromInt(100))
	}
	return priceDeltaBps.LessThan(priceTolBps) && sizeDeltaPct.LessThan(sizeTolPct)
}

func sizeWeightedMeanPrice(orders []core.DesiredOrder) decimal.Decimal {
	totalSize := decimal.Zero
	weighted := decimal.Zero
	for _, o := range orders {
		weighted = weighted.Add(o.Price.Mul(o.Size))
		totalSize = totalSize.Add(o.Size)
	}
	if totalSize.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(totalSize)
}

func sizeWeightedMeanPriceTracked(orders []*core.TrackedOrder) decimal.Decimal {
	totalSize := decimal.Zero
	weighted := decimal.Zero
	for _, o := range orders {
		weighted = weighted.Add(o.Price.Mul(o.Size))
		totalSize = totalSize.Add(o.Size)
	}
	if totalSize.IsZero() {
		return decimal.Zero
	}
	return weighted.Div(totalSize)
}

// unionKeysOrdered returns every (side, level_index) key appearing in either
// list, ordered by side then level_index for stable output.
func unionKeysOrdered(desired []core.DesiredOrder, current []*core.TrackedOrder) []core.OrderKey {
	seen := make(map[core.OrderKey]bool)
	var keys []core.OrderKey

	add := func(k core.OrderKey) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, d := range desired {
		add(d.Key())
	}
	for _, c := range current {
		add(c.Key())
	}

	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keyLess(keys[j], keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func keyLess(a, b core.OrderKey) bool {
	if a.Side != b.Side {
		return a.Side < b.Side
	}
	return a.LevelIndex < b.LevelIndex
}
