package lua

import (
	"context"
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luashell/internal/core"
)

// Module is a Lua entry module: a State and the functions it exports.
type Module struct {
	name    string
	dir     string
	state   *State
	bridge  *Bridge
	exports map[string]*lua.LFunction
}

// Name returns the package name.
func (m *Module) Name() string {
	return m.name
}

// State returns the module's Lua state.
func (m *Module) State() *State {
	return m.state
}

// Exports returns the exported function names in sorted order.
func (m *Module) Exports() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry implements core.Module.
func (m *Module) Entry(symbol string) (core.EntryPoint, bool) {
	fn, ok := m.exports[symbol]
	if !ok {
		return nil, false
	}

	return func(ctx context.Context, svc *core.Services) (core.Completion, error) {
		var api *lua.LTable
		err := m.state.Do(ctx, func(L *lua.LState) error {
			api = newCoreAPI(m, svc).table(L)
			return nil
		})
		if err != nil {
			return nil, err
		}

		results, err := m.state.Call(ctx, fn, api)
		if err != nil {
			return nil, err
		}
		return m.completion(ctx, results)
	}, true
}

// Call calls an exported function with Go arguments and returns Go values.
func (m *Module) Call(ctx context.Context, symbol string, args ...any) ([]any, error) {
	fn, ok := m.exports[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: function %q not exported", m.name, symbol)
	}

	var largs []lua.LValue
	if err := m.state.Do(ctx, func(*lua.LState) error {
		largs = m.bridge.ToLuaValues(args)
		return nil
	}); err != nil {
		return nil, err
	}

	results, err := m.state.Call(ctx, fn, largs...)
	if err != nil {
		return nil, err
	}

	var out []any
	_ = m.state.Do(ctx, func(*lua.LState) error {
		out = m.bridge.ToGoValues(results)
		return nil
	})
	return out, nil
}

// Close closes the module's state.
func (m *Module) Close() error {
	return m.state.Close()
}

// completion interprets an entry point's results. A returned function runs
// on its own goroutine as the asynchronous part of the initialization, with
// no deadline.
func (m *Module) completion(ctx context.Context, results []lua.LValue) (core.Completion, error) {
	if len(results) == 0 {
		return nil, nil
	}

	if fn, ok := results[0].(*lua.LFunction); ok {
		ctx = Unbounded(context.WithoutCancel(ctx))
		return core.Go(func() error {
			res, err := m.state.Call(ctx, fn)
			if err != nil {
				return err
			}
			return resultError(res)
		}), nil
	}
	return nil, resultError(results)
}

// resultError maps a "false[, message]" result to an error.
func resultError(results []lua.LValue) error {
	if len(results) == 0 || results[0] != lua.LFalse {
		return nil
	}
	if len(results) > 1 && results[1] != lua.LNil {
		return fmt.Errorf("%w: %s", ErrInitReturnedFalse, results[1].String())
	}
	return ErrInitReturnedFalse
}
