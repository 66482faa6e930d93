// Package xdecimal collects the fixed-point helpers used throughout the
// backtest engine. All monetary and size arithmetic in this module goes
// through shopspring/decimal rather than float64 — fees, P&L, and equity
// must never drift from rounding error.
package xdecimal

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// Zero and One are shared constants to avoid re-parsing literals on hot paths.
var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// PctChange returns (b-a)/a, or zero if a is zero (avoids divide-by-zero
// panics on the first bar of a series).
func PctChange(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() {
		return Zero
	}
	return b.Sub(a).Div(a)
}

// Clamp restricts d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// VWAPUpdate folds a new fill into a volume-weighted average price.
// Used when an opening order adds to an existing direction bucket.
func VWAPUpdate(oldPrice, oldSize, fillPrice, fillSize decimal.Decimal) decimal.Decimal {
	newSize := oldSize.Add(fillSize)
	if newSize.IsZero() {
		return oldPrice
	}
	num := oldPrice.Mul(oldSize).Add(fillPrice.Mul(fillSize))
	return num.Div(newSize)
}

// idCounter backs NextID; monotonic within a process, matching the
// teacher's plain atomic-counter style for request IDs.
var idCounter int64

// NextID returns a monotonically increasing int64, starting at 1.
func NextID() int64 {
	return atomic.AddInt64(&idCounter, 1)
}

// ResetIDCounter is exposed for tests that need deterministic IDs across runs.
func ResetIDCounter() {
	atomic.StoreInt64(&idCounter, 0)
}
