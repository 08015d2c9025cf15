// Package ratelimit tracks the exchange's rate-limit budget formula and
// exposes health/emergency predicates.
package ratelimit

import (
	"github.com/shopspring/decimal"
)

// SafetyMargin is the buffer below which Budget.IsEmergency reports true.
const SafetyMargin = 500

// Budget is pure state; no I/O. budget = 10_000 + cum_vlm - n_requests.
type Budget struct {
	cumVlm    decimal.Decimal
	nRequests int64
}

// New constructs a Budget with zero accumulated volume and requests.
func New() *Budget {
	return &Budget{cumVlm: decimal.Zero}
}

// OnRequest records n (default 1) consumed requests.
func (b *Budget) OnRequest(n int64) {
	if n <= 0 {
		n = 1
	}
	b.nRequests += n
}

// OnFill records fill volume in USD, restoring budget.
func (b *Budget) OnFill(volumeUSD decimal.Decimal) {
	b.cumVlm = b.cumVlm.Add(volumeUSD)
}

// SyncFromExchange overwrites local state with exchange-reported truth.
func (b *Budget) SyncFromExchange(cumVlm decimal.Decimal, nRequests int64) {
	b.cumVlm = cumVlm
	b.nRequests = nRequests
}

func (b *Budget) value() decimal.Decimal {
	return decimal.NewFromInt(10_000).Add(b.cumVlm).Sub(decimal.NewFromInt(b.nRequests))
}

// Remaining returns max(0, budget).
func (b *Budget) Remaining() decimal.Decimal {
	v := b.value()
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// Ratio returns cum_vlm / max(n_requests, 1).
func (b *Budget) Ratio() decimal.Decimal {
	denom := b.nRequests
	if denom < 1 {
		denom = 1
	}
	return b.cumVlm.Div(decimal.NewFromInt(denom))
}

// IsHealthy reports ratio >= 1.0.
func (b *Budget) IsHealthy() bool {
	return b.Ratio().GreaterThanOrEqual(decimal.NewFromInt(1))
}

// IsEmergency reports remaining < SafetyMargin.
func (b *Budget) IsEmergency() bool {
	return b.Remaining().LessThan(decimal.NewFromInt(SafetyMargin))
}

// CumVlm returns the cumulative traded volume.
func (b *Budget) CumVlm() decimal.Decimal {
	return b.cumVlm
}

// NRequests returns the consumed request count.
func (b *Budget) NRequests() int64 {
	return b.nRequests
}
