package script

import (
	"github.com/shopspring/decimal"
	lua "github.com/yuin/gopher-lua"

	"github.com/fuxihub/fuxiquant-go/internal/backtest"
	"github.com/fuxihub/fuxiquant-go/pkg/models"
)

// engineKey is the Lua global name the currently-bound EngineProvider is
// stashed under, giving every global API function access to it without
// threading it through Lua call arguments (the "per-call implicit"
// described in §4.5).
const engineKey = "__engine__"

// bind stashes engine as a userdata the registered globals can
// retrieve for the duration of one callback.
func bind(vm *lua.LState, engine backtest.EngineProvider) {
	ud := vm.NewUserData()
	ud.Value = engine
	vm.SetGlobal(engineKey, ud)
}

// unbind clears the binding so scripts cannot retain a stale reference
// across calls (§9 "avoid retaining engine references inside script-side
// state").
func unbind(vm *lua.LState) {
	vm.SetGlobal(engineKey, lua.LNil)
}

func currentEngine(vm *lua.LState) backtest.EngineProvider {
	ud, ok := vm.GetGlobal(engineKey).(*lua.LUserData)
	if !ok || ud.Value == nil {
		vm.RaiseError("script: engine is not bound outside of a callback")
		return nil
	}
	e, ok := ud.Value.(backtest.EngineProvider)
	if !ok {
		vm.RaiseError("script: invalid engine binding")
		return nil
	}
	return e
}

// registerBuiltins installs the §4.5 API surface
// (place_order, buy/sell/short/cover, bars, signals, set_signals, cash,
// equity, pos, symbol, open_orders) as Lua globals, plus the larger
// builtin surface named in original_source/fuxi-quant-runtime/src/builtin.rs
// (enumerated fully in SPEC_FULL.md's Supplemented features section).
func registerBuiltins(vm *lua.LState) {
	vm.SetGlobal("cash", vm.NewFunction(luaCash))
	vm.SetGlobal("equity", vm.NewFunction(luaEquity))
	vm.SetGlobal("symbol", vm.NewFunction(luaSymbol))
	vm.SetGlobal("pos", vm.NewFunction(luaPos))
	vm.SetGlobal("bars", vm.NewFunction(luaBars))
	vm.SetGlobal("signals", vm.NewFunction(luaSignals))
	vm.SetGlobal("set_signals", vm.NewFunction(luaSetSignals))
	vm.SetGlobal("open_orders", vm.NewFunction(luaOpenOrders))
	vm.SetGlobal("place_order", vm.NewFunction(luaPlaceOrder))
	vm.SetGlobal("cancel_order", vm.NewFunction(luaCancelOrder))
	vm.SetGlobal("buy", vm.NewFunction(luaBuy))
	vm.SetGlobal("sell", vm.NewFunction(luaSell))
	vm.SetGlobal("short", vm.NewFunction(luaShort))
	vm.SetGlobal("cover", vm.NewFunction(luaCover))
}

func decArg(vm *lua.LState, idx int) decimal.Decimal {
	v := vm.CheckNumber(idx)
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		vm.RaiseError("script: invalid decimal argument: %v", err)
	}
	return d
}

func pushDecimal(vm *lua.LState, d decimal.Decimal) {
	f, _ := d.Float64()
	vm.Push(lua.LNumber(f))
}

func luaCash(vm *lua.LState) int {
	pushDecimal(vm, currentEngine(vm).Cash())
	return 1
}

func luaEquity(vm *lua.LState) int {
	pushDecimal(vm, currentEngine(vm).Equity())
	return 1
}

func luaSymbol(vm *lua.LState) int {
	code := vm.CheckString(1)
	sym, ok := currentEngine(vm).Symbol(code)
	if !ok {
		vm.Push(lua.LNil)
		return 1
	}
	t := vm.NewTable()
	t.RawSetString("code", lua.LString(sym.Code))
	pushField(vm, t, "mark_price", sym.MarkPrice)
	pushField(vm, t, "price", sym.Price)
	pushField(vm, t, "max_lever", sym.MaxLever)
	pushField(vm, t, "min_size", sym.MinSize)
	pushField(vm, t, "min_cash", sym.MinCash)
	vm.Push(t)
	return 1
}

func pushField(vm *lua.LState, t *lua.LTable, name string, d decimal.Decimal) {
	f, _ := d.Float64()
	t.RawSetString(name, lua.LNumber(f))
}

func luaPos(vm *lua.LState) int {
	code := vm.CheckString(1)
	p, ok := currentEngine(vm).Position(code)
	if !ok {
		vm.Push(lua.LNil)
		return 1
	}
	t := vm.NewTable()
	long := vm.NewTable()
	pushField(vm, long, "price", p.Long.Price)
	pushField(vm, long, "size", p.Long.Size)
	short := vm.NewTable()
	pushField(vm, short, "price", p.Short.Price)
	pushField(vm, short, "size", p.Short.Size)
	t.RawSetString("long", long)
	t.RawSetString("short", short)
	pushField(vm, t, "lever", p.Lever)
	vm.Push(t)
	return 1
}

func luaBars(vm *lua.LState) int {
	code := vm.CheckString(1)
	b, ok := currentEngine(vm).Bars(code)
	if !ok {
		vm.Push(lua.LNil)
		return 1
	}
	idx := currentEngine(vm).BarIndex()
	if idx >= b.Len() {
		vm.Push(lua.LNil)
		return 1
	}
	t := vm.NewTable()
	pushField(vm, t, "open", b.Open(idx))
	pushField(vm, t, "high", b.High(idx))
	pushField(vm, t, "low", b.Low(idx))
	pushField(vm, t, "close", b.Close(idx))
	vm.Push(t)
	return 1
}

func luaSignals(vm *lua.LState) int {
	name := vm.CheckString(1)
	values := currentEngine(vm).Signals(name)
	t := vm.NewTable()
	for i, v := range values {
		t.RawSetInt(i+1, lua.LNumber(v))
	}
	vm.Push(t)
	return 1
}

func luaSetSignals(vm *lua.LState) int {
	name := vm.CheckString(1)
	tbl := vm.CheckTable(2)
	var values []float64
	tbl.ForEach(func(_, v lua.LValue) {
		if n, ok := v.(lua.LNumber); ok {
			values = append(values, float64(n))
		}
	})
	currentEngine(vm).SetSignals(name, values)
	return 0
}

func luaOpenOrders(vm *lua.LState) int {
	code := vm.CheckString(1)
	orders := currentEngine(vm).OpenOrders(code)
	t := vm.NewTable()
	for i, o := range orders {
		t.RawSetInt(i+1, orderTable(vm, o))
	}
	vm.Push(t)
	return 1
}

func orderTable(vm *lua.LState, o *models.Order) *lua.LTable {
	t := vm.NewTable()
	t.RawSetString("id", lua.LNumber(o.ID))
	t.RawSetString("code", lua.LString(o.Code))
	t.RawSetString("status", lua.LString(string(o.Status)))
	pushField(vm, t, "price", o.Price)
	pushField(vm, t, "size", o.Size)
	pushField(vm, t, "filled", o.Filled)
	return t
}

func luaPlaceOrder(vm *lua.LState) int {
	code := vm.CheckString(1)
	orderType := models.OrderType(vm.CheckString(2))
	direction := models.Direction(vm.CheckString(3))
	side := models.Side(vm.CheckString(4))
	size := decArg(vm, 5)
	var price decimal.Decimal
	if vm.GetTop() >= 6 {
		price = decArg(vm, 6)
	}
	o, err := currentEngine(vm).PlaceOrder(models.OrderRequest{
		Code: code, Type: orderType, Direction: direction, Side: side, Price: price, Size: size,
	})
	if err != nil {
		vm.Push(lua.LNil)
		vm.Push(lua.LString(err.Error()))
		return 2
	}
	vm.Push(orderTable(vm, o))
	return 1
}

func luaCancelOrder(vm *lua.LState) int {
	id := int64(vm.CheckNumber(1))
	if err := currentEngine(vm).CancelOrder(id); err != nil {
		vm.Push(lua.LString(err.Error()))
		return 1
	}
	return 0
}

func tradeHelper(vm *lua.LState, fn func(code string, size decimal.Decimal) (*models.Order, error)) int {
	code := vm.CheckString(1)
	size := decArg(vm, 2)
	o, err := fn(code, size)
	if err != nil {
		vm.Push(lua.LNil)
		vm.Push(lua.LString(err.Error()))
		return 2
	}
	vm.Push(orderTable(vm, o))
	return 1
}

func luaBuy(vm *lua.LState) int   { return tradeHelper(vm, currentEngine(vm).Buy) }
func luaSell(vm *lua.LState) int  { return tradeHelper(vm, currentEngine(vm).Sell) }
func luaShort(vm *lua.LState) int { return tradeHelper(vm, currentEngine(vm).Short) }
func luaCover(vm *lua.LState) int { return tradeHelper(vm, currentEngine(vm).Cover) }
