package script

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fuxihub/fuxiquant-go/internal/backtest"
	"github.com/fuxihub/fuxiquant-go/internal/candles/table"
	"github.com/fuxihub/fuxiquant-go/pkg/models"
)

const minimalStrategy = `
function on_start()
end
function on_bar(code)
end
function on_signal()
end
function on_timer(timer)
end
function on_order(id)
end
function on_position(code)
end
function on_stop()
end
`

func TestCompileRequiresAllCallbacks(t *testing.T) {
	_, err := Compile(`function on_start() end`, "", 100000)
	if err == nil {
		t.Fatal("expected error for missing callbacks")
	}
	if _, ok := err.(*backtest.ErrCallbackMissing); !ok {
		t.Fatalf("expected *backtest.ErrCallbackMissing, got %T (%v)", err, err)
	}
}

func TestCompileSucceedsWithAllCallbacks(t *testing.T) {
	strat, err := Compile(minimalStrategy, "", 100000)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	defer strat.Close()
}

func dec(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func buildBars() *table.Table {
	tbl := table.New()
	tbl.AppendRow(0, dec("100"), dec("100"), dec("100"), dec("100"), dec("1"), dec("1"), 1, dec("1"), dec("1"))
	tbl.AppendRow(60000, dec("110"), dec("110"), dec("110"), dec("110"), dec("1"), dec("1"), 1, dec("1"), dec("1"))
	return tbl
}

func TestStrategyBuysThroughLua(t *testing.T) {
	source := `
local bought = false
function on_start() end
function on_bar(code)
  if not bought then
    bought = true
    buy(code, 1)
  end
end
function on_signal() end
function on_timer(timer) end
function on_order(id) end
function on_position(code) end
function on_stop() end
`
	strat, err := Compile(source, "", 1000000)
	if err != nil {
		t.Fatal(err)
	}
	defer strat.Close()

	cfg := backtest.Config{
		Symbols: []backtest.SymbolSpec{{
			Code: "BTC", PriceTick: dec("0.01"), SizeTick: dec("0.001"),
			MinSize: dec("0.001"), MinCash: dec("1"), MaxLever: dec("10"), FaceVal: dec("1"),
		}},
		Start: 0, End: 60000, InitialCash: dec("1000"),
	}
	e, err := backtest.New(cfg, strat, map[string]models.BarSource{"BTC": buildBars()})
	if err != nil {
		t.Fatal(err)
	}
	report, err := e.Run()
	if err != nil {
		t.Fatal(err)
	}
	if report.TradeCount != 1 {
		t.Fatalf("TradeCount = %d, want 1", report.TradeCount)
	}
}

func TestGasMeterAbortsRunawayLoop(t *testing.T) {
	source := `
function on_start()
  local i = 0
  while true do
    i = i + 1
  end
end
function on_bar(code) end
function on_signal() end
function on_timer(timer) end
function on_order(id) end
function on_position(code) end
function on_stop() end
`
	strat, err := Compile(source, "", 1000)
	if err != nil {
		t.Fatal(err)
	}
	defer strat.Close()

	cfg := backtest.Config{
		Symbols: []backtest.SymbolSpec{{
			Code: "BTC", PriceTick: dec("0.01"), SizeTick: dec("0.001"),
			MinSize: dec("0.001"), MinCash: dec("1"), MaxLever: dec("10"), FaceVal: dec("1"),
		}},
		Start: 0, End: 60000, InitialCash: dec("1000"),
	}
	e, err := backtest.New(cfg, strat, map[string]models.BarSource{"BTC": buildBars()})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Run()
	if err == nil {
		t.Fatal("expected gas exhaustion error")
	}
	if !strings.Contains(err.Error(), "gas usage exceeds the limit") {
		t.Errorf("error = %v, want gas exhaustion message", err)
	}
}
