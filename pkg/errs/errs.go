// Package errs provides the sentinel error kinds named in the engine's
// error handling design. Most of these are never returned as Go errors —
// they are handled locally and surfaced only as EmitResult counters or log
// lines — but giving them named sentinels keeps call sites and tests
// readable and lets tests assert on errors.Is.
package errs

import "errors"

var (
	// ErrDegenerateGrid is fatal: grid construction produced an adjacent
	// equal pair after rounding.
	ErrDegenerateGrid = errors.New("degenerate grid: adjacent levels equal after rounding")

	// ErrOutOfRange is returned by PricingGrid.PriceAtLevel for an
	// out-of-bounds level index.
	ErrOutOfRange = errors.New("level index out of range")

	// ErrCrossSideModify is fatal: the emitter detected a modify whose
	// tracked side does not match the desired side.
	ErrCrossSideModify = errors.New("cross-side modify attempt")

	// ErrBudgetExhausted signals the emitter entered cancel-only mode.
	// Soft — callers log it, they do not abort.
	ErrBudgetExhausted = errors.New("rate limit budget exhausted, entering cancel-only mode")

	// ErrTransport wraps a failed batch or REST call left for the next
	// reconciliation to absorb.
	ErrTransport = errors.New("exchange transport error")
)
