package lua

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestStateLoadAndCall(t *testing.T) {
	ctx := context.Background()
	s := NewState()
	defer s.Close()

	require.NoError(t, s.DoString(ctx, `function add(a, b) return a + b end`))

	results, err := s.CallGlobal(ctx, "add", lua.LNumber(1), lua.LNumber(2))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, lua.LNumber(3), results[0])

	results, err = s.Load(ctx, `return 1, "two"`)
	require.NoError(t, err)
	assert.Equal(t, []lua.LValue{lua.LNumber(1), lua.LString("two")}, results)

	results, err = s.Load(ctx, `local x = 1`)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestStateErrors(t *testing.T) {
	ctx := context.Background()
	s := NewState(WithName("broken.lua"))

	_, err := s.Load(ctx, `function (`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.lua")

	_, err = s.Load(ctx, `error("boom")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = s.CallGlobal(ctx, "missing")
	assert.Error(t, err)

	_, err = s.Call(ctx, lua.LString("not a function"))
	assert.ErrorIs(t, err, ErrNotFunction)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.IsClosed())
	assert.ErrorIs(t, s.DoString(ctx, `x = 1`), ErrStateClosed)
}

func TestStateExecutionTimeout(t *testing.T) {
	s := NewState(WithExecutionTimeout(50 * time.Millisecond))
	defer s.Close()

	_, err := s.Load(context.Background(), `while true do end`)
	assert.ErrorIs(t, err, ErrExecutionTimeout)
}

func TestStateUnboundedCall(t *testing.T) {
	ctx := context.Background()
	s := NewState(WithExecutionTimeout(20 * time.Millisecond))
	defer s.Close()

	require.NoError(t, s.Do(ctx, func(L *lua.LState) error {
		L.SetGlobal("pause", L.NewFunction(func(L *lua.LState) int {
			time.Sleep(80 * time.Millisecond)
			return 0
		}))
		return nil
	}))
	require.NoError(t, s.DoString(ctx, `function slow() pause() return 1 end`))

	_, err := s.CallGlobal(ctx, "slow")
	assert.ErrorIs(t, err, ErrExecutionTimeout)

	results, err := s.CallGlobal(Unbounded(ctx), "slow")
	require.NoError(t, err)
	assert.Equal(t, []lua.LValue{lua.LNumber(1)}, results)
}

func TestStateReentrantCall(t *testing.T) {
	ctx := context.Background()
	s := NewState()
	defer s.Close()

	require.NoError(t, s.DoString(ctx, `function inner(x) return x * 2 end`))
	require.NoError(t, s.Do(ctx, func(L *lua.LState) error {
		L.SetGlobal("outer", L.NewFunction(func(L *lua.LState) int {
			res, err := s.CallGlobal(s.Context(), "inner", L.Get(1))
			if err != nil {
				L.RaiseError("%v", err)
				return 0
			}
			L.Push(res[0])
			return 1
		}))
		return nil
	}))

	done := make(chan []lua.LValue, 1)
	go func() {
		results, err := s.Load(ctx, `return outer(21)`)
		assert.NoError(t, err)
		done <- results
	}()

	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.Equal(t, lua.LNumber(42), results[0])
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant call blocked")
	}

	assert.Equal(t, context.Background(), s.Context())
}

func TestStateGlobals(t *testing.T) {
	ctx := context.Background()
	s := NewState()
	defer s.Close()

	before := s.Globals(ctx)
	assert.True(t, before["string"])
	assert.False(t, before["greeting"])

	require.NoError(t, s.SetGlobal(ctx, "greeting", lua.LString("hi")))
	assert.Equal(t, lua.LString("hi"), s.GetGlobal(ctx, "greeting"))
	assert.True(t, s.Globals(ctx)["greeting"])
}

func TestSandbox(t *testing.T) {
	ctx := context.Background()
	var printed []string
	s := NewState(WithPrint(func(line string) {
		printed = append(printed, line)
	}))
	defer s.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "io", "os", "debug"} {
		assert.Equal(t, lua.LNil, s.GetGlobal(ctx, name), name)
	}

	require.NoError(t, s.DoString(ctx, `print("a", 1, true)`))
	assert.Equal(t, []string{"a\t1\ttrue"}, printed)

	results, err := s.Load(ctx, `return require("string").upper("x")`)
	require.NoError(t, err)
	assert.Equal(t, lua.LString("X"), results[0])

	_, err = s.Load(ctx, `return require("os")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `module "os" is not available`)

	require.NoError(t, s.Preload("greet", func(L *lua.LState) int {
		mod := L.NewTable()
		L.SetField(mod, "name", lua.LString("greet"))
		L.Push(mod)
		return 1
	}))
	assert.True(t, s.Sandbox().IsAllowed("greet"))

	results, err = s.Load(ctx, `return require("greet").name`)
	require.NoError(t, err)
	assert.Equal(t, lua.LString("greet"), results[0])
}
