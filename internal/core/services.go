package core

import (
	"context"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/dshills/luashell/internal/plugin/hook"
	"github.com/dshills/luashell/internal/settings"
)

// Runtime is the embedded interpreter session shared by the host and all
// packages. The loader treats it as opaque.
type Runtime interface {
	// Name identifies the interpreter (e.g. "lua").
	Name() string

	// Eval evaluates code in the shared session and returns its first result.
	Eval(ctx context.Context, code string) (any, error)
}

// EntryPoint is a package initializer.
type EntryPoint func(ctx context.Context, svc *Services) (Completion, error)

// Module is a loaded implementation unit. It exposes named entry points.
type Module interface {
	// Entry returns the entry point exported under symbol.
	Entry(symbol string) (EntryPoint, bool)
}

// PackageView is the read-only view of loaded packages handed to entry
// points. Packages must not mutate the registry behind it.
type PackageView interface {
	// Has reports whether a package is registered.
	Has(name string) bool

	// Names returns registered package names in initialization order.
	Names() []string

	// Module returns the module registered under name.
	Module(name string) (Module, bool)
}

// Constants is a shared table of host constants.
type Constants map[string]any

// Get returns a constant and whether it exists.
func (c Constants) Get(key string) (any, bool) {
	v, ok := c[key]
	return v, ok
}

// String returns a string constant, or "" when absent or not a string.
func (c Constants) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Keys returns constant names in sorted order.
func (c Constants) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Services is the core services bundle injected into every entry point.
type Services struct {
	Runtime   Runtime
	Settings  *settings.Store
	Hooks     *hook.Registry
	Constants Constants
	Utils     *Utils
	Packages  PackageView
	Logger    *log.Logger
}

// WithLogger returns a shallow copy of the bundle whose Logger is replaced.
// The initializer uses it to hand each package a logger tagged with its name.
func (s *Services) WithLogger(logger *log.Logger) *Services {
	clone := *s
	clone.Logger = logger
	return &clone
}
