package lua

import (
	"context"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

// Runtime is the shared Lua session exposed to packages as core.Runtime.
type Runtime struct {
	state  *State
	bridge *Bridge
}

// NewRuntime creates the shared session. Lua print output goes to logger
// when it is not nil.
func NewRuntime(logger *log.Logger, opts ...StateOption) *Runtime {
	if logger != nil {
		opts = append([]StateOption{WithPrint(func(line string) {
			logger.Info(line)
		})}, opts...)
	}
	state := NewState(append([]StateOption{WithName("runtime")}, opts...)...)
	return &Runtime{state: state, bridge: NewBridge(state.L)}
}

// Name implements core.Runtime.
func (r *Runtime) Name() string {
	return "lua"
}

// Eval implements core.Runtime. code is evaluated as an expression when it
// parses as one, otherwise as a statement block. It returns the first
// result converted to Go.
func (r *Runtime) Eval(ctx context.Context, code string) (any, error) {
	var fn *lua.LFunction
	err := r.state.Do(ctx, func(L *lua.LState) error {
		var err error
		if fn, err = L.LoadString("return " + code); err == nil {
			return nil
		}
		fn, err = L.LoadString(code)
		return err
	})
	if err != nil {
		return nil, err
	}

	results, err := r.state.Call(ctx, fn)
	if err != nil || len(results) == 0 {
		return nil, err
	}

	var v any
	_ = r.state.Do(ctx, func(*lua.LState) error {
		v = r.bridge.ToGoValue(results[0])
		return nil
	})
	return v, nil
}

// Set assigns a global in the session.
func (r *Runtime) Set(ctx context.Context, name string, value any) error {
	return r.state.Do(ctx, func(L *lua.LState) error {
		L.SetGlobal(name, r.bridge.ToLuaValue(value))
		return nil
	})
}

// State returns the session state.
func (r *Runtime) State() *State {
	return r.state
}

// Close closes the session.
func (r *Runtime) Close() error {
	return r.state.Close()
}
