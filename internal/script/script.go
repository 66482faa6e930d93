// Package script compiles and runs strategy source against the backtest
// engine facade. It is the one component in this module whose core
// dependency, github.com/yuin/gopher-lua, is not grounded in the
// retrieved example corpus — no repo there embeds a scripting VM. It is
// the de-facto standard pure-Go Lua implementation and is the only
// embeddable-language library available in the wider Go ecosystem that
// exposes the instruction-count hook the gas meter needs (see
// DESIGN.md).
package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/fuxihub/fuxiquant-go/internal/backtest"
	"github.com/fuxihub/fuxiquant-go/pkg/models"
)

// requiredCallbacks are resolved at compile time; a strategy missing any
// of them fails to load, per §4.5 "a missing callback is a compile-time
// error (they are resolved at load)."
var requiredCallbacks = []string{
	"on_start", "on_bar", "on_signal", "on_timer", "on_order", "on_position", "on_stop",
}

// Strategy adapts a compiled Lua script into backtest.Strategy. The
// engine is injected as a per-call implicit userdata (see bind.go);
// scripts must not retain a reference between calls (§4.5's
// "closure-style injection" design note).
type Strategy struct {
	vm          *lua.LState
	gasMax      int64
	lastGas     int64
	gasCounter  *int64
}

// Compile loads strategy source (or, if source is empty, reads path) into
// a fresh Lua VM, verifies every required callback is defined, and records
// gasMax for the gas meter each callback arms. Compilation errors propagate with Lua's own position
// info, matching "compilation errors propagate with position."
func Compile(source string, path string, gasMax int64) (*Strategy, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	registerBuiltins(vm)

	var err error
	if source != "" {
		err = vm.DoString(source)
	} else {
		err = vm.DoFile(path)
	}
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("script: compile error: %w", err)
	}

	for _, name := range requiredCallbacks {
		if vm.GetGlobal(name) == lua.LNil {
			vm.Close()
			return nil, &backtest.ErrCallbackMissing{Name: name}
		}
	}

	return &Strategy{vm: vm, gasMax: gasMax}, nil
}

// Close releases the Lua VM.
func (s *Strategy) Close() {
	s.vm.Close()
}

// LastGas returns the instruction count consumed by the most recent
// callback invocation, per §4.5 "per-callback gas usage is observable."
func (s *Strategy) LastGas() int64 {
	return s.lastGas
}

// installGasMeter arms SetHook to count VM instructions (count-mode hook,
// firing every instruction) and abort with the exact §4.5 wording once
// gasMax is exceeded.
func (s *Strategy) installGasMeter() {
	count := new(int64)
	s.gasCounter = count
	s.vm.SetHook(func(vm *lua.LState, ar *lua.Debug) {
		*count++
		if s.gasMax > 0 && *count > s.gasMax {
			vm.RaiseError("gas usage exceeds the limit: %d", s.gasMax)
		}
	}, lua.MaskCount, 1)
}

func (s *Strategy) call(name string, engine backtest.EngineProvider, args ...lua.LValue) error {
	s.installGasMeter()
	defer func() {
		if s.gasCounter != nil {
			s.lastGas = *s.gasCounter
		}
		s.vm.SetHook(nil, lua.MaskCount, 0)
	}()

	bind(s.vm, engine)
	defer unbind(s.vm)

	fn := s.vm.GetGlobal(name)
	if fn == lua.LNil {
		return &backtest.ErrCallbackMissing{Name: name}
	}

	if err := s.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...); err != nil {
		return fmt.Errorf("script: %s: %w", name, err)
	}
	return nil
}

// The methods below give *Strategy the exact signatures backtest.Strategy
// requires, fulfilling §4.5's "Callbacks invoked by the engine are free
// functions with a well-known signature."

func (s *Strategy) OnStart(e backtest.EngineProvider) error {
	return s.call("on_start", e)
}

func (s *Strategy) OnBar(e backtest.EngineProvider, code string) error {
	return s.call("on_bar", e, lua.LString(code))
}

func (s *Strategy) OnSignal(e backtest.EngineProvider) error {
	return s.call("on_signal", e)
}

func (s *Strategy) OnTimer(e backtest.EngineProvider, timer backtest.Timer) error {
	return s.call("on_timer", e, lua.LString(string(timer)))
}

func (s *Strategy) OnOrder(e backtest.EngineProvider, order *models.Order) error {
	return s.call("on_order", e, lua.LNumber(order.ID))
}

func (s *Strategy) OnPosition(e backtest.EngineProvider, pos *models.Position) error {
	return s.call("on_position", e, lua.LString(pos.Code))
}

func (s *Strategy) OnStop(e backtest.EngineProvider) error {
	return s.call("on_stop", e)
}

var _ backtest.Strategy = (*Strategy)(nil)
