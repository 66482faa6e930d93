package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side is the execution side of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Direction is which bucket of a hedge-mode Position an order affects.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// OrderType distinguishes limit orders (require Price) from market orders
// (must not carry one).
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// OrderStatus is the order's position in its lifecycle. New and Pending
// orders sit on the book; Filled/Canceled orders are removed from it.
type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusPending   OrderStatus = "PENDING"
	StatusFilled    OrderStatus = "FILLED"
	StatusCanceling OrderStatus = "CANCELING"
	StatusCanceled  OrderStatus = "CANCELED"
	StatusRejected  OrderStatus = "REJECTED"
)

// Order is a resting or just-placed instruction against one Symbol.
//
// Semantics of (Direction, Side): (Long, Buy) opens long, (Long, Sell)
// closes long, (Short, Sell) opens short, (Short, Buy) closes short. No
// other combination is legal — enforced in ValidateOrder.
type Order struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Type      OrderType       `json:"type"`
	Direction Direction       `json:"direction"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price,omitempty"`
	Size      decimal.Decimal `json:"size"`
	Filled    decimal.Decimal `json:"filled"`
	Status    OrderStatus     `json:"status"`
	Time      int64           `json:"time"` // ms since epoch, matches the bar clock
}

// IsOpening reports whether this order adds to (rather than reduces) its
// direction bucket.
func (o *Order) IsOpening() bool {
	return (o.Direction == Long && o.Side == Buy) || (o.Direction == Short && o.Side == Sell)
}

// IsClosing is the complement of IsOpening for the two legal combinations.
func (o *Order) IsClosing() bool {
	return (o.Direction == Long && o.Side == Sell) || (o.Direction == Short && o.Side == Buy)
}

// ValidOrderCombo reports whether (direction, side) is one of the two
// legal opening or closing pairs.
func ValidOrderCombo(dir Direction, side Side) bool {
	switch {
	case dir == Long && side == Buy:
		return true
	case dir == Long && side == Sell:
		return true
	case dir == Short && side == Sell:
		return true
	case dir == Short && side == Buy:
		return true
	default:
		return false
	}
}

// ValidationError mirrors the teacher's broker.ValidationError shape: a
// single field/message pair describing one precondition failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// OrderRequest is the input to backtest.Engine.PlaceOrder, validated against the
// §3 invariants before an Order is created.
type OrderRequest struct {
	Code      string
	Type      OrderType
	Direction Direction
	Side      Side
	Price     decimal.Decimal // required iff Type == Limit
	Size      decimal.Decimal
}

// ValidateOrder checks an OrderRequest against a Symbol and the account's
// available cash/size, per §3's precondition list: insufficient cash,
// insufficient closing size, size < min_size, price*size < min_cash,
// missing price on Limit, present price on Market.
func ValidateOrder(req OrderRequest, sym *Symbol, availCash, availSize decimal.Decimal) *ValidationError {
	if !ValidOrderCombo(req.Direction, req.Side) {
		return &ValidationError{Field: "direction/side", Message: fmt.Sprintf("illegal combination (%s, %s)", req.Direction, req.Side)}
	}
	if req.Type == Limit && !req.Price.IsPositive() {
		return &ValidationError{Field: "price", Message: "limit orders require a positive price"}
	}
	if req.Type == Market && !req.Price.IsZero() {
		return &ValidationError{Field: "price", Message: "market orders must not carry a price"}
	}
	if req.Size.LessThan(sym.MinSize) {
		return &ValidationError{Field: "size", Message: fmt.Sprintf("size %s below symbol min_size %s", req.Size, sym.MinSize)}
	}
	notionalPrice := req.Price
	if req.Type == Market {
		notionalPrice = sym.MarkPrice
	}
	if notionalPrice.Mul(req.Size).LessThan(sym.MinCash) {
		return &ValidationError{Field: "price*size", Message: fmt.Sprintf("notional below symbol min_cash %s", sym.MinCash)}
	}

	isOpening := (req.Direction == Long && req.Side == Buy) || (req.Direction == Short && req.Side == Sell)
	if isOpening {
		notional := notionalPrice.Mul(req.Size)
		required := notional.Div(sym.MaxLever)
		if availCash.LessThan(required) {
			return &ValidationError{Field: "cash", Message: fmt.Sprintf("available cash %s below required %s", availCash, required)}
		}
	} else {
		if availSize.LessThan(req.Size) {
			return &ValidationError{Field: "size", Message: fmt.Sprintf("available closing size %s below requested %s", availSize, req.Size)}
		}
	}
	return nil
}
