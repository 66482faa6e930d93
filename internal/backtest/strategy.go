package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fuxihub/fuxiquant-go/pkg/models"
)

// Timer identifies which periodic callback fan-out fired this step. The
// backtest fires Secondly and Minutely once per minute step — a
// deliberate simplification the spec confirms rather than simulating 60
// sub-minute ticks (see DESIGN.md's Open Question entry).
type Timer string

const (
	TimerSecondly Timer = "SECONDLY"
	TimerMinutely Timer = "MINUTELY"
	TimerHourly   Timer = "HOURLY"
	TimerDaily    Timer = "DAILY"
)

// EngineProvider is the curated API surface the script runtime bridge
// (internal/script) and any native Go strategy call through. It is the
// engine facade named in §1 and §4.5 — callbacks never see the underlying
// Context directly.
type EngineProvider interface {
	Cash() decimal.Decimal
	Equity() decimal.Decimal
	Symbol(code string) (*models.Symbol, bool)
	Position(code string) (*models.Position, bool)
	Bars(code string) (models.BarSource, bool)
	Signals(name string) []float64
	SetSignals(name string, values []float64)
	OpenOrders(code string) []*models.Order

	PlaceOrder(req models.OrderRequest) (*models.Order, error)
	CancelOrder(id int64) error

	Buy(code string, size decimal.Decimal) (*models.Order, error)
	Sell(code string, size decimal.Decimal) (*models.Order, error)
	Short(code string, size decimal.Decimal) (*models.Order, error)
	Cover(code string, size decimal.Decimal) (*models.Order, error)

	BarIndex() int
	CurrentTimeMs() int64
}

// Strategy is the set of callbacks the engine drives, matching §1's
// on_start/on_bar/on_signal/on_timer/on_order/on_position/on_stop list.
// Native Go strategies implement this directly; script-authored
// strategies are adapted into it by internal/script.Strategy.
type Strategy interface {
	OnStart(e EngineProvider) error
	OnBar(e EngineProvider, code string) error
	OnSignal(e EngineProvider) error
	OnTimer(e EngineProvider, timer Timer) error
	OnOrder(e EngineProvider, order *models.Order) error
	OnPosition(e EngineProvider, pos *models.Position) error
	OnStop(e EngineProvider) error
}

// BaseStrategy provides no-op implementations of every callback so a
// strategy can embed it and override only what it needs — matching the
// teacher's habit of giving strategies a minimal required surface.
type BaseStrategy struct{}

func (BaseStrategy) OnStart(EngineProvider) error                     { return nil }
func (BaseStrategy) OnBar(EngineProvider, string) error                { return nil }
func (BaseStrategy) OnSignal(EngineProvider) error                     { return nil }
func (BaseStrategy) OnTimer(EngineProvider, Timer) error                { return nil }
func (BaseStrategy) OnOrder(EngineProvider, *models.Order) error        { return nil }
func (BaseStrategy) OnPosition(EngineProvider, *models.Position) error  { return nil }
func (BaseStrategy) OnStop(EngineProvider) error                       { return nil }

// ErrCallbackMissing is returned by script compilation when a required
// callback is absent, per §4.5 "a missing callback is a compile-time
// error."
type ErrCallbackMissing struct {
	Name string
}

func (e *ErrCallbackMissing) Error() string {
	return fmt.Sprintf("backtest: strategy callback %q is not defined", e.Name)
}
