// Package inventory tracks allocated/account/effective balances for the
// base token and quote USDC.
package inventory

import (
	"github.com/shopspring/decimal"
)

// Inventory holds the three-layer balance view for one asset pair:
// allocated (operator ceiling), account (exchange truth), and effective
// (min of the two — the only view exported downstream).
type Inventory struct {
	allocatedToken decimal.Decimal
	allocatedUSDC  decimal.Decimal
	accountToken   decimal.Decimal
	accountUSDC    decimal.Decimal
	effectiveToken decimal.Decimal
	effectiveUSDC  decimal.Decimal
}

// New constructs an Inventory with zero balances.
func New() *Inventory {
	return &Inventory{
		allocatedToken: decimal.Zero,
		allocatedUSDC:  decimal.Zero,
		accountToken:   decimal.Zero,
		accountUSDC:    decimal.Zero,
		effectiveToken: decimal.Zero,
		effectiveUSDC:  decimal.Zero,
	}
}

// UpdateAllocation sets the operator-controlled ceilings and recomputes
// effective balances.
func (inv *Inventory) UpdateAllocation(token, usdc decimal.Decimal) {
	inv.allocatedToken = token
	inv.allocatedUSDC = usdc
	inv.recomputeEffective()
}

// OnAskFill applies a sell fill: token decreases, USDC increases by
// px*sz.
func (inv *Inventory) OnAskFill(px, sz decimal.Decimal) {
	inv.accountToken = inv.accountToken.Sub(sz)
	inv.accountUSDC = inv.accountUSDC.Add(px.Mul(sz))
	inv.recomputeEffective()
}

// OnBidFill applies a buy fill: the mirror of OnAskFill.
func (inv *Inventory) OnBidFill(px, sz decimal.Decimal) {
	inv.accountToken = inv.accountToken.Add(sz)
	inv.accountUSDC = inv.accountUSDC.Sub(px.Mul(sz))
	inv.recomputeEffective()
}

// OnBalanceUpdate overwrites the account balances with exchange truth and
// recomputes effective balances.
func (inv *Inventory) OnBalanceUpdate(token, usdc decimal.Decimal) {
	inv.accountToken = token
	inv.accountUSDC = usdc
	inv.recomputeEffective()
}

func (inv *Inventory) recomputeEffective() {
	inv.effectiveToken = decimal.Min(inv.allocatedToken, inv.accountToken)
	inv.effectiveUSDC = decimal.Min(inv.allocatedUSDC, inv.accountUSDC)
}

// EffectiveToken returns the effective base-token balance.
func (inv *Inventory) EffectiveToken() decimal.Decimal {
	return inv.effectiveToken
}

// EffectiveUSDC returns the effective quote balance.
func (inv *Inventory) EffectiveUSDC() decimal.Decimal {
	return inv.effectiveUSDC
}

// AllocatedToken returns the operator-set token ceiling.
func (inv *Inventory) AllocatedToken() decimal.Decimal {
	return inv.allocatedToken
}

// AllocatedUSDC returns the operator-set USDC ceiling.
func (inv *Inventory) AllocatedUSDC() decimal.Decimal {
	return inv.allocatedUSDC
}

// AccountToken returns the exchange-reported token balance.
func (inv *Inventory) AccountToken() decimal.Decimal {
	return inv.accountToken
}

// AccountUSDC returns the exchange-reported USDC balance.
func (inv *Inventory) AccountUSDC() decimal.Decimal {
	return inv.accountUSDC
}
