package models

import "github.com/shopspring/decimal"

// Report is the performance summary produced at the end of a backtest
// run, per §4.4's Report computation.
type Report struct {
	Ret decimal.Decimal `json:"ret"`
	AR  decimal.Decimal `json:"ar"`  // annualized return
	MDD decimal.Decimal `json:"mdd"` // max drawdown, in [0,1]
	SR  decimal.Decimal `json:"sr"`  // Sharpe-style ratio: ar/vol
	SOR decimal.Decimal `json:"sor"` // Sortino-style ratio: ar/downside_vol
	CR  decimal.Decimal `json:"cr"`  // Calmar-style ratio: ar/mdd

	WinRate decimal.Decimal `json:"win_rate"`
	PLRatio decimal.Decimal `json:"pl_ratio"`

	InitialEquity decimal.Decimal   `json:"initial_equity"`
	FinalEquity   decimal.Decimal   `json:"final_equity"`
	EquitySeries  []decimal.Decimal `json:"equity_series"`

	TradeCount int     `json:"trade_count"`
	Trades     []Trade `json:"-"`
}
