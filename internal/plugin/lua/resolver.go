package lua

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luashell/internal/plugin"
)

// Resolver loads ".lua" entry modules, each into its own State.
type Resolver struct {
	fs      plugin.FileSystem
	logger  *log.Logger
	timeout time.Duration
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger receiving package print output.
func WithResolverLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithCallTimeout sets the execution timeout of each call into a module.
func WithCallTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// NewResolver creates a resolver reading entry files through fsys.
func NewResolver(fsys plugin.FileSystem, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fs:      fsys,
		timeout: DefaultExecutionTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve implements plugin.ModuleResolver.
func (r *Resolver) Resolve(ctx context.Context, desc *plugin.Descriptor) (plugin.Module, error) {
	src, err := r.fs.ReadFile(desc.MainPath())
	if err != nil {
		return nil, err
	}

	state := NewState(
		WithName(desc.Main),
		WithExecutionTimeout(r.timeout),
		WithPrint(r.printer(desc.Name)),
	)

	before := state.Globals(ctx)
	results, err := state.Load(ctx, string(src))
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("%s: %w", desc.Main, err)
	}

	mod := &Module{
		name:    desc.Name,
		dir:     desc.Dir(),
		state:   state,
		bridge:  NewBridge(state.L),
		exports: make(map[string]*lua.LFunction),
	}

	_ = state.Do(ctx, func(L *lua.LState) error {
		if len(results) > 0 {
			if tbl, ok := results[0].(*lua.LTable); ok {
				tbl.ForEach(func(k, v lua.LValue) {
					ks, kok := k.(lua.LString)
					fn, fok := v.(*lua.LFunction)
					if kok && fok {
						mod.exports[string(ks)] = fn
					}
				})
				return nil
			}
		}

		// No export table: the functions the chunk defined globally.
		L.G.Global.ForEach(func(k, v lua.LValue) {
			ks, kok := k.(lua.LString)
			fn, fok := v.(*lua.LFunction)
			if kok && fok && !before[string(ks)] {
				mod.exports[string(ks)] = fn
			}
		})
		return nil
	})

	return mod, nil
}

func (r *Resolver) printer(pkg string) func(string) {
	if r.logger == nil {
		return nil
	}
	logger := r.logger.With("package", pkg)
	return func(line string) {
		logger.Info(line)
	}
}
