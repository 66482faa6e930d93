package models

import "github.com/shopspring/decimal"

// Context owns all engine-mutable state for one backtest run: cash, the
// ordered symbol/position/order tables, per-code bar tables, and a signals
// table sized to the bar count. The strategy never holds a Context
// directly — it is exposed through the script runtime's EngineProvider
// only for the duration of a callback.
type Context struct {
	Cash decimal.Decimal

	Symbols   *OrderedMap[string, *Symbol]
	Positions *OrderedMap[string, *Position]
	Orders    *OrderedMap[int64, *Order]

	Trades []Trade

	// Bars holds, per code, the column getters the strategy and engine
	// read from (see internal/candles/table.Table). Declared as an
	// interface here to avoid an import cycle; internal/backtest reads
	// bars only through the BarSource methods.
	Bars map[string]BarSource

	// Signals is a flat per-bar-index slice, one float64 column per
	// signal name, set via set_signals from script.
	Signals map[string][]float64
}

// BarSource is the minimal read surface Context needs from a bar table —
// kept here, rather than importing internal/candles/table, to avoid
// pkg/models depending on an internal package.
type BarSource interface {
	Len() int
	Open(i int) decimal.Decimal
	High(i int) decimal.Decimal
	Low(i int) decimal.Decimal
	Close(i int) decimal.Decimal
}

// NewContext builds an empty Context with the given starting cash.
func NewContext(cash decimal.Decimal) *Context {
	return &Context{
		Cash:      cash,
		Symbols:   NewOrderedMap[string, *Symbol](),
		Positions: NewOrderedMap[string, *Position](),
		Orders:    NewOrderedMap[int64, *Order](),
		Bars:      make(map[string]BarSource),
		Signals:   make(map[string][]float64),
	}
}

// Equity computes cash + upl, summing unrealized P&L across every
// position at its symbol's current mark price.
func (c *Context) Equity() decimal.Decimal {
	equity := c.Cash
	for _, code := range c.Positions.Keys() {
		pos, _ := c.Positions.Get(code)
		sym, ok := c.Symbols.Get(code)
		if !ok {
			continue
		}
		equity = equity.Add(pos.UnrealizedPnL(sym.MarkPrice))
	}
	return equity
}

// OrderFrozen sums price*unfilled/lever across open opening orders — the
// cash locked by resting orders that would add to a position.
func (c *Context) OrderFrozen() decimal.Decimal {
	frozen := decimal.Zero
	for _, id := range c.Orders.Keys() {
		o, _ := c.Orders.Get(id)
		if !o.IsOpening() {
			continue
		}
		if o.Status != StatusNew && o.Status != StatusPending {
			continue
		}
		pos, ok := c.Positions.Get(o.Code)
		if !ok || pos.Lever.IsZero() {
			continue
		}
		unfilled := o.Size.Sub(o.Filled)
		price := o.Price
		if o.Type == Market {
			if sym, ok := c.Symbols.Get(o.Code); ok {
				price = sym.MarkPrice
			}
		}
		frozen = frozen.Add(price.Mul(unfilled).Div(pos.Lever))
	}
	return frozen
}

// PositionFrozen sums mark*size/lever across every position's two
// direction buckets.
func (c *Context) PositionFrozen() decimal.Decimal {
	frozen := decimal.Zero
	for _, code := range c.Positions.Keys() {
		pos, _ := c.Positions.Get(code)
		sym, ok := c.Symbols.Get(code)
		if !ok {
			continue
		}
		frozen = frozen.Add(pos.PositionFrozen(sym.MarkPrice))
	}
	return frozen
}

// AvailCash is max(0, equity - order_frozen - position_frozen).
func (c *Context) AvailCash() decimal.Decimal {
	avail := c.Equity().Sub(c.OrderFrozen()).Sub(c.PositionFrozen())
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// AvailSize is pos.size - sum(unfilled closing orders) for one
// (code, direction) bucket — the size a new closing order may still use.
func (c *Context) AvailSize(code string, dir Direction) decimal.Decimal {
	pos, ok := c.Positions.Get(code)
	if !ok {
		return decimal.Zero
	}
	avail := pos.Bucket(dir).Size
	for _, id := range c.Orders.Keys() {
		o, _ := c.Orders.Get(id)
		if o.Code != code || o.Direction != dir || !o.IsClosing() {
			continue
		}
		if o.Status != StatusNew && o.Status != StatusPending {
			continue
		}
		avail = avail.Sub(o.Size.Sub(o.Filled))
	}
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// RefreshMarks sets every symbol's mark_price/price to its bar's open at
// the given bar index — step (a) of the time loop.
func (c *Context) RefreshMarks(barIdx int) {
	for _, code := range c.Symbols.Keys() {
		sym, _ := c.Symbols.Get(code)
		bars, ok := c.Bars[code]
		if !ok || barIdx >= bars.Len() {
			continue
		}
		sym.RefreshMark(bars.Open(barIdx))
	}
}

// AppendTrade appends an immutable Trade to the ledger.
func (c *Context) AppendTrade(t Trade) {
	c.Trades = append(c.Trades, t)
}
