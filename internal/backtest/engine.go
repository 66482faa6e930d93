// Package backtest implements the event-driven futures backtest engine:
// the minute time loop, order crossing, maker/taker fee accounting, and
// the performance Report. The loop shape (prime → step → finalize) and
// the Market/Limit fill-branch structure are grounded on the teacher's
// internal/backtest/engine.go Run/processPendingOrders/tryFill, regrounded
// onto fixed-point decimal hedge-mode accounting.
package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fuxihub/fuxiquant-go/pkg/models"
	"github.com/fuxihub/fuxiquant-go/pkg/xdecimal"
	"github.com/fuxihub/fuxiquant-go/pkg/xtime"
)

// SymbolSpec seeds one contract's Symbol at construction time.
type SymbolSpec struct {
	Code      string
	PriceTick decimal.Decimal
	SizeTick  decimal.Decimal
	MinSize   decimal.Decimal
	MinCash   decimal.Decimal
	MaxLever  decimal.Decimal
	FaceVal   decimal.Decimal
}

// Config holds every constructor input named in §4.4.
type Config struct {
	Symbols        []SymbolSpec
	Start          int64 // minute-aligned, ms since epoch
	End            int64 // exclusive
	InitialCash    decimal.Decimal
	HistoryBarLen  int // H: bars visible before Start
	MakerFeeRate   decimal.Decimal
	TakerFeeRate   decimal.Decimal
	Slippage       decimal.Decimal
	Session        *xtime.Session
}

// Validate checks the §4.4 construction preconditions: fails if end < start,
// codes empty, cash negative, or slippage negative. (Missing bars are
// reported by internal/candles/store at load time, not here.)
func (c Config) Validate() error {
	if c.End < c.Start {
		return fmt.Errorf("backtest: end (%d) is before start (%d)", c.End, c.Start)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("backtest: no contracts configured")
	}
	if c.InitialCash.IsNegative() {
		return fmt.Errorf("backtest: initial cash must not be negative")
	}
	if c.Slippage.IsNegative() {
		return fmt.Errorf("backtest: slippage must not be negative")
	}
	return nil
}

// Engine drives the minute time loop over a fixed set of contracts,
// dispatching strategy callbacks and crossing orders against each bar's
// OHLC. It implements EngineProvider itself; the strategy only ever sees
// the engine through that interface.
type Engine struct {
	cfg      Config
	ctx      *models.Context
	strategy Strategy

	barIdx  int
	currTime int64

	equitySeries []decimal.Decimal
}

// New constructs an Engine. bars must hold an already-loaded table for
// every configured symbol (see internal/candles/store); New copies them
// into the Context and fails if any symbol's bars are missing.
func New(cfg Config, strategy Strategy, bars map[string]models.BarSource) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx := models.NewContext(cfg.InitialCash)
	for _, spec := range cfg.Symbols {
		b, ok := bars[spec.Code]
		if !ok {
			return nil, fmt.Errorf("backtest: no bars loaded for contract %q", spec.Code)
		}
		ctx.Bars[spec.Code] = b
		sym := models.NewSymbol(spec.Code, spec.PriceTick, spec.SizeTick, spec.MinSize, spec.MinCash, spec.MaxLever, spec.FaceVal, decimal.Zero)
		ctx.Symbols.Set(spec.Code, sym)
		ctx.Positions.Set(spec.Code, models.NewPosition(spec.Code, spec.MaxLever))
	}
	return &Engine{cfg: cfg, ctx: ctx, strategy: strategy, barIdx: cfg.HistoryBarLen, currTime: cfg.Start}, nil
}

// Run executes the full prime → step → finalize loop and returns the
// Report.
func (e *Engine) Run() (*models.Report, error) {
	if err := e.prime(); err != nil {
		return nil, err
	}
	initialEquity := e.ctx.Equity()

	for e.currTime < e.cfg.End {
		if err := e.step(); err != nil {
			return nil, err
		}
	}

	if err := e.strategy.OnStop(e); err != nil {
		return nil, fmt.Errorf("backtest: on_stop: %w", err)
	}
	return computeReport(initialEquity, e.equitySeries, e.ctx.Trades, e.cfg.Start, e.cfg.End)
}

// prime implements §4.4 step 1: set every symbol's mark/price to the open
// at bar_idx, push initial equity, call on_start then on_bar per contract.
func (e *Engine) prime() error {
	e.ctx.RefreshMarks(e.barIdx)
	e.equitySeries = append(e.equitySeries, e.ctx.Equity())

	if err := e.strategy.OnStart(e); err != nil {
		return fmt.Errorf("backtest: on_start: %w", err)
	}
	for _, code := range e.ctx.Symbols.Keys() {
		if err := e.strategy.OnBar(e, code); err != nil {
			return fmt.Errorf("backtest: on_bar(%s): %w", code, err)
		}
	}
	return nil
}

// step implements §4.4 step 2 (a-f).
func (e *Engine) step() error {
	e.ctx.RefreshMarks(e.barIdx)

	if err := e.crossOrders(); err != nil {
		return err
	}

	e.barIdx++
	e.currTime += 60_000 // one minute, in ms

	e.equitySeries = append(e.equitySeries, e.ctx.Equity())

	if err := e.strategy.OnSignal(e); err != nil {
		return fmt.Errorf("backtest: on_signal: %w", err)
	}

	return e.fireTimers()
}

// fireTimers implements §4.4 step 2.f's timer fan-out.
func (e *Engine) fireTimers() error {
	minute := (e.currTime / 60000) % 60
	hour := (e.currTime / 3600000) % 24

	if err := e.strategy.OnTimer(e, TimerSecondly); err != nil {
		return fmt.Errorf("backtest: on_timer(secondly): %w", err)
	}
	if err := e.strategy.OnTimer(e, TimerMinutely); err != nil {
		return fmt.Errorf("backtest: on_timer(minutely): %w", err)
	}
	if minute == 0 {
		if err := e.strategy.OnTimer(e, TimerHourly); err != nil {
			return fmt.Errorf("backtest: on_timer(hourly): %w", err)
		}
	}
	if hour == 0 && minute == 0 {
		if err := e.strategy.OnTimer(e, TimerDaily); err != nil {
			return fmt.Errorf("backtest: on_timer(daily): %w", err)
		}
	}
	return nil
}

// crossOrders implements §4.4's cross_order: group New|Pending|Canceling
// orders by code, in orders' insertion order, and match each against the
// contract's OHLC at bar_idx.
func (e *Engine) crossOrders() error {
	for _, id := range append([]int64{}, e.ctx.Orders.Keys()...) {
		order, ok := e.ctx.Orders.Get(id)
		if !ok {
			continue // removed by an earlier fill in this same pass
		}
		switch order.Status {
		case models.StatusNew, models.StatusPending, models.StatusCanceling:
		default:
			continue
		}
		if err := e.crossOne(order); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) crossOne(order *models.Order) error {
	bars, ok := e.ctx.Bars[order.Code]
	if !ok || e.barIdx >= bars.Len() {
		return nil
	}
	open, high, low := bars.Open(e.barIdx), bars.High(e.barIdx), bars.Low(e.barIdx)

	if order.Status == models.StatusCanceling {
		e.ctx.Orders.Delete(order.ID)
		order.Status = models.StatusCanceled
		return e.strategy.OnOrder(e, order)
	}

	wasPending := order.Status == models.StatusPending

	fillPrice, filled := matchFill(order, open, high, low, e.cfg.Slippage)
	if !filled {
		if order.Status == models.StatusNew {
			order.Status = models.StatusPending
		}
		return nil
	}

	feeRate := e.cfg.TakerFeeRate
	if wasPending {
		feeRate = e.cfg.MakerFeeRate
	}
	return e.executeFill(order, fillPrice, feeRate)
}

// matchFill implements the Market/Limit branch structure of cross_order.
func matchFill(order *models.Order, open, high, low, slippage decimal.Decimal) (decimal.Decimal, bool) {
	if order.Type == models.Market {
		sign := decimal.NewFromInt(1)
		if order.Side == models.Sell {
			sign = decimal.NewFromInt(-1)
		}
		return open.Mul(decimal.NewFromInt(1).Add(slippage.Mul(sign))), true
	}

	limit := order.Price
	if order.Side == models.Buy {
		if limit.GreaterThanOrEqual(open) {
			return open, true
		}
		if limit.GreaterThanOrEqual(low) {
			return limit, true
		}
		return decimal.Zero, false
	}
	// Sell: symmetric.
	if limit.LessThanOrEqual(open) {
		return open, true
	}
	if limit.LessThanOrEqual(high) {
		return limit, true
	}
	return decimal.Zero, false
}

// executeFill applies a fill: opening adds to the direction bucket and
// updates the VWAP entry; closing realizes P&L. Either way it appends a
// Trade, fires on_order then on_position, and removes the order.
func (e *Engine) executeFill(order *models.Order, fillPrice, feeRate decimal.Decimal) error {
	pos, ok := e.ctx.Positions.Get(order.Code)
	if !ok {
		return fmt.Errorf("backtest: no position bucket for %q", order.Code)
	}
	size := order.Size.Sub(order.Filled)
	fee := fillPrice.Mul(size).Mul(feeRate)

	var rpl decimal.Decimal
	bucket := pos.Bucket(order.Direction)

	if order.IsOpening() {
		bucket.Price = xdecimal.VWAPUpdate(bucket.Price, bucket.Size, fillPrice, size)
		bucket.Size = bucket.Size.Add(size)
		e.ctx.Cash = e.ctx.Cash.Sub(fee)
	} else {
		if order.Direction == models.Long {
			rpl = fillPrice.Sub(bucket.Price).Mul(size).Sub(fee)
		} else {
			rpl = bucket.Price.Sub(fillPrice).Mul(size).Sub(fee)
		}
		bucket.Size = bucket.Size.Sub(size)
		e.ctx.Cash = e.ctx.Cash.Add(rpl)
	}

	order.Filled = order.Size
	order.Status = models.StatusFilled

	e.ctx.AppendTrade(models.Trade{
		ID:        xdecimal.NextID(),
		Time:      e.currTime,
		Code:      order.Code,
		Direction: order.Direction,
		Side:      order.Side,
		Price:     fillPrice,
		Size:      size,
		Fee:       fee,
		RPL:       rpl,
	})

	e.ctx.Orders.Delete(order.ID)

	if err := e.strategy.OnOrder(e, order); err != nil {
		return fmt.Errorf("backtest: on_order: %w", err)
	}
	if err := e.strategy.OnPosition(e, pos); err != nil {
		return fmt.Errorf("backtest: on_position: %w", err)
	}
	return nil
}

// ─── EngineProvider implementation ──────────────────────────────────────

func (e *Engine) Cash() decimal.Decimal   { return e.ctx.Cash }
func (e *Engine) Equity() decimal.Decimal { return e.ctx.Equity() }
func (e *Engine) BarIndex() int           { return e.barIdx }
func (e *Engine) CurrentTimeMs() int64    { return e.currTime }

func (e *Engine) Symbol(code string) (*models.Symbol, bool) {
	return e.ctx.Symbols.Get(code)
}

func (e *Engine) Position(code string) (*models.Position, bool) {
	return e.ctx.Positions.Get(code)
}

func (e *Engine) Bars(code string) (models.BarSource, bool) {
	b, ok := e.ctx.Bars[code]
	return b, ok
}

func (e *Engine) Signals(name string) []float64 {
	return e.ctx.Signals[name]
}

func (e *Engine) SetSignals(name string, values []float64) {
	e.ctx.Signals[name] = values
}

func (e *Engine) OpenOrders(code string) []*models.Order {
	var open []*models.Order
	for _, id := range e.ctx.Orders.Keys() {
		o, _ := e.ctx.Orders.Get(id)
		if o.Code == code {
			open = append(open, o)
		}
	}
	return open
}

func (e *Engine) PlaceOrder(req models.OrderRequest) (*models.Order, error) {
	sym, ok := e.ctx.Symbols.Get(req.Code)
	if !ok {
		return nil, fmt.Errorf("backtest: unknown contract %q", req.Code)
	}
	avail := e.ctx.AvailSize(req.Code, req.Direction)
	if err := models.ValidateOrder(req, sym, e.ctx.AvailCash(), avail); err != nil {
		return nil, err
	}
	order := &models.Order{
		ID:        xdecimal.NextID(),
		Code:      req.Code,
		Type:      req.Type,
		Direction: req.Direction,
		Side:      req.Side,
		Price:     req.Price,
		Size:      req.Size,
		Status:    models.StatusNew,
		Time:      e.currTime,
	}
	e.ctx.Orders.Set(order.ID, order)
	return order, nil
}

func (e *Engine) CancelOrder(id int64) error {
	order, ok := e.ctx.Orders.Get(id)
	if !ok {
		return fmt.Errorf("backtest: no such order %d", id)
	}
	order.Status = models.StatusCanceling
	return nil
}

func (e *Engine) Buy(code string, size decimal.Decimal) (*models.Order, error) {
	return e.PlaceOrder(models.OrderRequest{Code: code, Type: models.Market, Direction: models.Long, Side: models.Buy, Size: size})
}

func (e *Engine) Sell(code string, size decimal.Decimal) (*models.Order, error) {
	return e.PlaceOrder(models.OrderRequest{Code: code, Type: models.Market, Direction: models.Long, Side: models.Sell, Size: size})
}

func (e *Engine) Short(code string, size decimal.Decimal) (*models.Order, error) {
	return e.PlaceOrder(models.OrderRequest{Code: code, Type: models.Market, Direction: models.Short, Side: models.Sell, Size: size})
}

func (e *Engine) Cover(code string, size decimal.Decimal) (*models.Order, error) {
	return e.PlaceOrder(models.OrderRequest{Code: code, Type: models.Market, Direction: models.Short, Side: models.Buy, Size: size})
}

var _ EngineProvider = (*Engine)(nil)
