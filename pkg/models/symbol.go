// Package models holds the domain types shared by the backtest engine, the
// script runtime bridge, and the report generator: Symbol, Order, Position,
// Trade, Context, and Report. Struct tags and field grouping follow the
// teacher's pkg/models conventions, generalized from cash-equity/F&O
// semantics to perpetual-futures hedge-mode semantics.
package models

import "github.com/shopspring/decimal"

// Symbol describes one tradeable contract. mark_price and price are
// refreshed every bar to the current open (see Context.RefreshMarks).
type Symbol struct {
	Code        string          `json:"code"`
	PriceTick   decimal.Decimal `json:"price_tick"`
	SizeTick    decimal.Decimal `json:"size_tick"`
	MinSize     decimal.Decimal `json:"min_size"`
	MinCash     decimal.Decimal `json:"min_cash"`
	MaxLever    decimal.Decimal `json:"max_lever"`
	FaceVal     decimal.Decimal `json:"face_val"`
	MarkPrice   decimal.Decimal `json:"mark_price"`
	Price       decimal.Decimal `json:"price"`
	FundingRate decimal.Decimal `json:"funding_rate"`
}

// NewSymbol builds a Symbol with mark_price and price seeded to the same
// starting value; funding_rate defaults to zero.
func NewSymbol(code string, priceTick, sizeTick, minSize, minCash, maxLever, faceVal, startPrice decimal.Decimal) *Symbol {
	return &Symbol{
		Code:        code,
		PriceTick:   priceTick,
		SizeTick:    sizeTick,
		MinSize:     minSize,
		MinCash:     minCash,
		MaxLever:    maxLever,
		FaceVal:     faceVal,
		MarkPrice:   startPrice,
		Price:       startPrice,
		FundingRate: decimal.Zero,
	}
}

// RefreshMark updates both mark_price and price to a new open, as the
// engine does at the start of every step.
func (s *Symbol) RefreshMark(open decimal.Decimal) {
	s.MarkPrice = open
	s.Price = open
}
