package backtest

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fuxihub/fuxiquant-go/internal/candles/table"
	"github.com/fuxihub/fuxiquant-go/pkg/models"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func buildBars(opens, highs, lows, closes []string) *table.Table {
	tbl := table.New()
	for i := range opens {
		tbl.AppendRow(int64(i)*60000, dec(opens[i]), dec(highs[i]), dec(lows[i]), dec(closes[i]), dec("1"), dec("1"), 1, dec("1"), dec("1"))
	}
	return tbl
}

func defaultSymbol(code string) SymbolSpec {
	return SymbolSpec{
		Code: code, PriceTick: dec("0.01"), SizeTick: dec("0.001"),
		MinSize: dec("0.001"), MinCash: dec("1"), MaxLever: dec("10"), FaceVal: dec("1"),
	}
}

// scenario 1: market long open/close.
type buyThenSellOnSignal struct {
	BaseStrategy
	boughtOnBar bool
	sold        bool
}

func (s *buyThenSellOnSignal) OnBar(e EngineProvider, code string) error {
	if !s.boughtOnBar {
		s.boughtOnBar = true
		_, err := e.Buy(code, dec("1"))
		return err
	}
	return nil
}

func (s *buyThenSellOnSignal) OnSignal(e EngineProvider) error {
	if !s.sold {
		s.sold = true
		_, err := e.Sell("BTC", dec("1"))
		return err
	}
	return nil
}

func TestScenarioMarketLongOpenClose(t *testing.T) {
	tbl := buildBars([]string{"100", "110"}, []string{"100", "110"}, []string{"100", "110"}, []string{"100", "110"})
	cfg := Config{
		Symbols:     []SymbolSpec{defaultSymbol("BTC")},
		Start:       0,
		End:         120000,
		InitialCash: dec("1000"),
	}
	strat := &buyThenSellOnSignal{}
	e, err := New(cfg, strat, map[string]models.BarSource{"BTC": tbl})
	if err != nil {
		t.Fatal(err)
	}
	report, err := e.Run()
	if err != nil {
		t.Fatal(err)
	}
	if report.TradeCount != 2 {
		t.Fatalf("TradeCount = %d, want 2 (got trades=%v)", report.TradeCount, report.Trades)
	}
	if !report.FinalEquity.Equal(dec("1010")) {
		t.Errorf("FinalEquity = %s, want 1010", report.FinalEquity)
	}
	if !report.Ret.Equal(dec("0.01")) {
		t.Errorf("Ret = %s, want 0.01", report.Ret)
	}
}

// scenario 2: limit buy with price improvement.
type limitBuyOnStart struct {
	BaseStrategy
	price decimal.Decimal
}

func (s *limitBuyOnStart) OnStart(e EngineProvider) error {
	_, err := e.PlaceOrder(models.OrderRequest{
		Code: "BTC", Type: models.Limit, Direction: models.Long, Side: models.Buy,
		Price: s.price, Size: dec("1"),
	})
	return err
}

func TestScenarioLimitBuyPriceImprovement(t *testing.T) {
	tbl := buildBars([]string{"105", "105"}, []string{"110", "110"}, []string{"95", "95"}, []string{"105", "105"})
	cfg := Config{
		Symbols:     []SymbolSpec{defaultSymbol("BTC")},
		Start:       0,
		End:         60000,
		InitialCash: dec("1000"),
	}
	strat := &limitBuyOnStart{price: dec("108")}
	e, err := New(cfg, strat, map[string]models.BarSource{"BTC": tbl})
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
	if !report.Trades[0].Price.Equal(dec("105")) {
		t.Errorf("fill price = %s, want 105 (price-improved, not 108)", report.Trades[0].Price)
	}
}

func TestScenarioLimitBuySitsOnBookThenFillsAtMaker(t *testing.T) {
	tbl := buildBars(
		[]string{"95", "94"},
		[]string{"100", "98"},
		[]string{"93", "91"},
		[]string{"95", "94"},
	)
	cfg := Config{
		Symbols:      []SymbolSpec{defaultSymbol("BTC")},
		Start:        0,
		End:          120000,
		InitialCash:  dec("1000"),
		MakerFeeRate: dec("0.001"),
		TakerFeeRate: dec("0.002"),
	}
	strat := &limitBuyOnStart{price: dec("92")}
	e, err := New(cfg, strat, map[string]models.BarSource{"BTC": tbl})
	if err != nil {
		t.Fatal(err)
	}
	report, err := e.Run()
	if err != nil {
		t.Fatal(err)
	}
	if report.TradeCount != 1 {
		t.Fatalf("TradeCount = %d, want 1 (no fill on bar 0, fill on bar 1)", report.TradeCount)
	}
	trade := report.Trades[0]
	if !trade.Price.Equal(dec("92")) {
		t.Errorf("fill price = %s, want 92", trade.Price)
	}
	wantFee := dec("92").Mul(dec("1")).Mul(dec("0.001"))
	if !trade.Fee.Equal(wantFee) {
		t.Errorf("fee = %s, want %s (maker rate, order rested one bar)", trade.Fee, wantFee)
	}
}

// scenario 4: cancel pending order.
type placeThenCancel struct {
	BaseStrategy
	orderID    int64
	canceled   bool
}

func (s *placeThenCancel) OnStart(e EngineProvider) error {
	o, err := e.PlaceOrder(models.OrderRequest{
		Code: "BTC", Type: models.Limit, Direction: models.Long, Side: models.Buy,
		Price: dec("0.01"), Size: dec("1"),
	})
	if err != nil {
		return err
	}
	s.orderID = o.ID
	return nil
}

func (s *placeThenCancel) OnSignal(e EngineProvider) error {
	if !s.canceled {
		s.canceled = true
		return e.CancelOrder(s.orderID)
	}
	return nil
}

func TestScenarioCancelPendingOrder(t *testing.T) {
	tbl := buildBars([]string{"100", "100"}, []string{"100", "100"}, []string{"100", "100"}, []string{"100", "100"})
	sym := defaultSymbol("BTC")
	sym.MinCash = dec("0.01") // the resting order's notional is 0.01 x 1
	cfg := Config{
		Symbols:     []SymbolSpec{sym},
		Start:       0,
		End:         120000,
		InitialCash: dec("1000"),
	}
	strat := &placeThenCancel{}
	e, err := New(cfg, strat, map[string]models.BarSource{"BTC": tbl})
	if err != nil {
		t.Fatal(err)
	}
	report, err := e.Run()
	if err != nil {
		t.Fatal(err)
	}
	if report.TradeCount != 0 {
		t.Errorf("TradeCount = %d, want 0 (never filled)", report.TradeCount)
	}
}

func TestConfigValidateRejectsEndBeforeStart(t *testing.T) {
	cfg := Config{Symbols: []SymbolSpec{defaultSymbol("BTC")}, Start: 1000, End: 0, InitialCash: dec("100")}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when end < start")
	}
}

func TestConfigValidateRejectsNegativeCash(t *testing.T) {
	cfg := Config{Symbols: []SymbolSpec{defaultSymbol("BTC")}, Start: 0, End: 60000, InitialCash: dec("-1")}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative initial cash")
	}
}
