package models

import "github.com/shopspring/decimal"

// Trade is an append-only ledger entry created when an Order fills.
// Trades are immutable once appended — the engine never edits or removes
// them, only appends.
type Trade struct {
	ID        int64           `json:"id"`
	Time      int64           `json:"time"`
	Code      string          `json:"code"`
	Direction Direction       `json:"direction"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Fee       decimal.Decimal `json:"fee"`
	RPL       decimal.Decimal `json:"rpl"` // realized P&L; zero on opening trades
}
