// Package table is a thin, read-mostly facade over an in-memory columnar
// bar table. The real data-frame engine this mirrors (Polars' LazyFrame /
// Series, used by the original source) is out of scope per the spec; this
// package exposes the minimal column-getter/slice/lazy-expression contract
// a strategy or the engine needs, backed by parallel slices rather than an
// external data-frame library.
package table

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Table holds one contract's OHLCV-plus-microstructure columns, schema
// (time:ms, open, high, low, close, size, cash, trades, taker_size,
// taker_cash), indexed by contiguous 1-minute timestamps.
type Table struct {
	Time      []int64
	OpenCol   []decimal.Decimal
	HighCol   []decimal.Decimal
	LowCol    []decimal.Decimal
	CloseCol  []decimal.Decimal
	SizeCol   []decimal.Decimal
	CashCol   []decimal.Decimal
	Trades    []int64
	TakerSize []decimal.Decimal
	TakerCash []decimal.Decimal
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// AppendRow adds one bar to every column. Callers are responsible for
// maintaining 1-minute contiguity; internal/candles/store validates it on
// load.
func (t *Table) AppendRow(timeMs int64, open, high, low, close, size, cash decimal.Decimal, trades int64, takerSize, takerCash decimal.Decimal) {
	t.Time = append(t.Time, timeMs)
	t.OpenCol = append(t.OpenCol, open)
	t.HighCol = append(t.HighCol, high)
	t.LowCol = append(t.LowCol, low)
	t.CloseCol = append(t.CloseCol, close)
	t.SizeCol = append(t.SizeCol, size)
	t.CashCol = append(t.CashCol, cash)
	t.Trades = append(t.Trades, trades)
	t.TakerSize = append(t.TakerSize, takerSize)
	t.TakerCash = append(t.TakerCash, takerCash)
}

// Len returns the number of bars.
func (t *Table) Len() int { return len(t.Time) }

func (t *Table) Open(i int) decimal.Decimal  { return t.OpenCol[i] }
func (t *Table) High(i int) decimal.Decimal  { return t.HighCol[i] }
func (t *Table) Low(i int) decimal.Decimal   { return t.LowCol[i] }
func (t *Table) Close(i int) decimal.Decimal { return t.CloseCol[i] }
func (t *Table) Size(i int) decimal.Decimal  { return t.SizeCol[i] }
func (t *Table) Cash(i int) decimal.Decimal  { return t.CashCol[i] }
func (t *Table) TimeAt(i int) int64          { return t.Time[i] }

// Slice returns a new Table covering bar indices [from, to).
func (t *Table) Slice(from, to int) (*Table, error) {
	if from < 0 || to > t.Len() || from > to {
		return nil, fmt.Errorf("table: slice [%d, %d) out of range for length %d", from, to, t.Len())
	}
	return &Table{
		Time:      append([]int64{}, t.Time[from:to]...),
		OpenCol:   append([]decimal.Decimal{}, t.OpenCol[from:to]...),
		HighCol:   append([]decimal.Decimal{}, t.HighCol[from:to]...),
		LowCol:    append([]decimal.Decimal{}, t.LowCol[from:to]...),
		CloseCol:  append([]decimal.Decimal{}, t.CloseCol[from:to]...),
		SizeCol:   append([]decimal.Decimal{}, t.SizeCol[from:to]...),
		CashCol:   append([]decimal.Decimal{}, t.CashCol[from:to]...),
		Trades:    append([]int64{}, t.Trades[from:to]...),
		TakerSize: append([]decimal.Decimal{}, t.TakerSize[from:to]...),
		TakerCash: append([]decimal.Decimal{}, t.TakerCash[from:to]...),
	}, nil
}

// Series is a lazily-evaluated single column, mirroring the shape of the
// out-of-scope data-frame library's expression objects closely enough for
// a strategy to compute rolling statistics without touching raw slices.
type Series struct {
	values []decimal.Decimal
}

// Column returns the named column as a Series, or an error if the name is
// unknown.
func (t *Table) Column(name string) (Series, error) {
	switch name {
	case "open":
		return Series{values: t.OpenCol}, nil
	case "high":
		return Series{values: t.HighCol}, nil
	case "low":
		return Series{values: t.LowCol}, nil
	case "close":
		return Series{values: t.CloseCol}, nil
	case "size":
		return Series{values: t.SizeCol}, nil
	case "cash":
		return Series{values: t.CashCol}, nil
	default:
		return Series{}, fmt.Errorf("table: unknown column %q", name)
	}
}

// Get returns the value at index i.
func (s Series) Get(i int) decimal.Decimal {
	return s.values[i]
}

// Len returns the series length.
func (s Series) Len() int { return len(s.values) }

// Mean computes the arithmetic mean of the series over [from, to).
func (s Series) Mean(from, to int) decimal.Decimal {
	if to <= from {
		return decimal.Zero
	}
	sum := decimal.Zero
	for i := from; i < to; i++ {
		sum = sum.Add(s.values[i])
	}
	return sum.Div(decimal.NewFromInt(int64(to - from)))
}

// Max returns the maximum value in [from, to).
func (s Series) Max(from, to int) decimal.Decimal {
	max := s.values[from]
	for i := from + 1; i < to; i++ {
		if s.values[i].GreaterThan(max) {
			max = s.values[i]
		}
	}
	return max
}

// Min returns the minimum value in [from, to).
func (s Series) Min(from, to int) decimal.Decimal {
	min := s.values[from]
	for i := from + 1; i < to; i++ {
		if s.values[i].LessThan(min) {
			min = s.values[i]
		}
	}
	return min
}
