package lua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single top-level call into a State.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua with a mutex, a sandbox and per-call contexts.
//
// gopher-lua's LState is not goroutine-safe. Every method locks the State,
// except calls whose context marks the State as already running on the
// calling goroutine (see Context).
type State struct {
	L *lua.LState

	mu sync.Mutex

	// Configuration
	name             string
	executionTimeout time.Duration
	print            func(string)

	sandbox *Sandbox

	// ctx is the context of the running call, nil when idle.
	ctx    context.Context
	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithName sets the chunk name used in Lua error messages.
func WithName(name string) StateOption {
	return func(s *State) {
		s.name = name
	}
}

// WithExecutionTimeout sets the timeout of top-level calls. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithPrint routes Lua print output to fn.
func WithPrint(fn func(string)) StateOption {
	return func(s *State) {
		s.print = fn
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	state := &State{
		name:             "chunk",
		executionTimeout: DefaultExecutionTimeout,
	}

	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true, // opened selectively below
	})
	state.L = L

	openSafeLibraries(L)

	state.sandbox = NewSandbox(L, state.print)
	state.sandbox.Install()

	return state
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage}, // require; restricted by the sandbox
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	// io, os, debug and channel stay closed.
}

// Name returns the chunk name.
func (s *State) Name() string {
	return s.name
}

// Context returns the context of the call currently running in the State.
// Go functions called from Lua pass it on so that calls back into the same
// State re-enter it instead of blocking on its lock. It returns
// context.Background when the State is idle.
func (s *State) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Load compiles and runs src as a chunk and returns its results.
func (s *State) Load(ctx context.Context, src string) ([]lua.LValue, error) {
	var fn *lua.LFunction
	err := s.Do(ctx, func(L *lua.LState) error {
		var err error
		fn, err = L.Load(strings.NewReader(src), s.name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Call(ctx, fn)
}

// DoString runs code and discards its results.
func (s *State) DoString(ctx context.Context, code string) error {
	_, err := s.Load(ctx, code)
	return err
}

// Do runs fn with exclusive access to the underlying LState.
func (s *State) Do(ctx context.Context, fn func(L *lua.LState) error) error {
	if isActive(ctx, s) {
		return fn(s.L)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return fn(s.L)
}

// Call calls fn with args and returns its results.
// It returns an empty slice (not nil) if the function returns no values.
func (s *State) Call(ctx context.Context, fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%w (got %s)", ErrNotFunction, fn.Type())
	}

	if isActive(ctx, s) {
		return s.call(ctx, fn, args)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	if s.executionTimeout > 0 && !isUnbounded(ctx) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}
	return s.call(ctx, fn, args)
}

type unboundedKey struct{}

// Unbounded returns a context whose Calls are not limited by the State's
// execution timeout. Cancellation of ctx still stops the call.
func Unbounded(ctx context.Context) context.Context {
	return context.WithValue(ctx, unboundedKey{}, true)
}

func isUnbounded(ctx context.Context) bool {
	v, _ := ctx.Value(unboundedKey{}).(bool)
	return v
}

// CallGlobal calls a global Lua function.
func (s *State) CallGlobal(ctx context.Context, name string, args ...lua.LValue) ([]lua.LValue, error) {
	fn := s.GetGlobal(ctx, name)
	if fn == lua.LNil {
		return nil, fmt.Errorf("function %q not found", name)
	}
	return s.Call(ctx, fn, args...)
}

// call runs fn with the lock held (or re-entered).
func (s *State) call(ctx context.Context, fn lua.LValue, args []lua.LValue) (results []lua.LValue, err error) {
	prevCtx := s.ctx
	prevLctx := s.L.Context()
	s.ctx = withActive(ctx, s)
	s.L.SetContext(ctx)
	defer func() {
		s.ctx = prevCtx
		if prevLctx != nil {
			s.L.SetContext(prevLctx)
		} else {
			s.L.RemoveContext()
		}
	}()

	// Record stack top before pushing anything
	stackTop := s.L.GetTop()

	s.L.Push(fn)
	for _, arg := range args {
		s.L.Push(arg)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("lua panic: %v", r)
				s.L.SetTop(stackTop)
			}
		}()
		err = s.L.PCall(len(args), lua.MultRet, nil)
	}()

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return nil, err
	}

	// Collect return values (only the new values added after the call)
	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results = make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)

	return results, nil
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(ctx context.Context, name string) lua.LValue {
	v := lua.LValue(lua.LNil)
	_ = s.Do(ctx, func(L *lua.LState) error {
		v = L.GetGlobal(name)
		return nil
	})
	return v
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(ctx context.Context, name string, value lua.LValue) error {
	return s.Do(ctx, func(L *lua.LState) error {
		L.SetGlobal(name, value)
		return nil
	})
}

// Preload makes a module available to require.
func (s *State) Preload(name string, loader lua.LGFunction) error {
	s.sandbox.Allow(name)
	return s.Do(context.Background(), func(L *lua.LState) error {
		L.PreloadModule(name, loader)
		return nil
	})
}

// Globals returns the names of the global variables currently set.
func (s *State) Globals(ctx context.Context) map[string]bool {
	names := make(map[string]bool)
	_ = s.Do(ctx, func(L *lua.LState) error {
		L.G.Global.ForEach(func(k, _ lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				names[string(ks)] = true
			}
		})
		return nil
	})
	return names
}

// Sandbox returns the state's sandbox.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}

// activeKey marks, in a context, the States running on the current call chain.
type activeKey struct{}

type activeStates struct {
	state  *State
	parent *activeStates
}

func withActive(ctx context.Context, s *State) context.Context {
	if isActive(ctx, s) {
		return ctx
	}
	parent, _ := ctx.Value(activeKey{}).(*activeStates)
	return context.WithValue(ctx, activeKey{}, &activeStates{state: s, parent: parent})
}

func isActive(ctx context.Context, s *State) bool {
	if ctx == nil {
		return false
	}
	for a, _ := ctx.Value(activeKey{}).(*activeStates); a != nil; a = a.parent {
		if a.state == s {
			return true
		}
	}
	return false
}
