package models

import "github.com/shopspring/decimal"

// DirectionBucket tracks the size and volume-weighted average entry price
// of one side (long or short) of a hedge-mode position.
type DirectionBucket struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Position is per-contract: a leverage setting shared by both buckets, and
// two independent DirectionBucket accumulators. A contract may
// simultaneously hold long and short size (hedge mode) — they are never
// netted against each other.
type Position struct {
	Code  string          `json:"code"`
	Lever decimal.Decimal `json:"lever"` // >= 1
	Long  DirectionBucket `json:"long"`
	Short DirectionBucket `json:"short"`
}

// NewPosition returns a flat position with the given leverage.
func NewPosition(code string, lever decimal.Decimal) *Position {
	return &Position{Code: code, Lever: lever}
}

// Bucket returns a pointer to the long or short bucket.
func (p *Position) Bucket(dir Direction) *DirectionBucket {
	if dir == Long {
		return &p.Long
	}
	return &p.Short
}

// UnrealizedPnL computes upl for this position at the given mark price:
// (mark - long.price)*long.size + (short.price - mark)*short.size.
func (p *Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	longPnL := mark.Sub(p.Long.Price).Mul(p.Long.Size)
	shortPnL := p.Short.Price.Sub(mark).Mul(p.Short.Size)
	return longPnL.Add(shortPnL)
}

// PositionFrozen is mark*size/lever summed across both buckets — the
// capital locked by carrying this position, per the §3 avail_cash formula.
func (p *Position) PositionFrozen(mark decimal.Decimal) decimal.Decimal {
	if p.Lever.IsZero() {
		return decimal.Zero
	}
	total := p.Long.Size.Add(p.Short.Size)
	return mark.Mul(total).Div(p.Lever)
}

// IsFlat reports whether both buckets are empty.
func (p *Position) IsFlat() bool {
	return p.Long.Size.IsZero() && p.Short.Size.IsZero()
}
