package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ModuleResolver turns a descriptor's entry reference into a Module.
// Resolvers that do not handle a package return ErrNoResolver.
type ModuleResolver interface {
	Resolve(ctx context.Context, desc *Descriptor) (Module, error)
}

// ResolverFunc adapts a function to ModuleResolver.
type ResolverFunc func(ctx context.Context, desc *Descriptor) (Module, error)

// Resolve implements ModuleResolver.
func (f ResolverFunc) Resolve(ctx context.Context, desc *Descriptor) (Module, error) {
	return f(ctx, desc)
}

// Factory builds the module of a Go package.
type Factory func(desc *Descriptor) (Module, error)

// FactoryResolver resolves packages to Go factories registered by package name.
type FactoryResolver struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactoryResolver creates an empty FactoryResolver.
func NewFactoryResolver() *FactoryResolver {
	return &FactoryResolver{factories: make(map[string]Factory)}
}

// Register adds a factory for the named package.
func (r *FactoryResolver) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("factory: name and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFactory, name)
	}
	r.factories[name] = f
	return nil
}

// RegisterExports adds a factory returning fixed exports.
func (r *FactoryResolver) RegisterExports(name string, exports Exports) error {
	return r.Register(name, func(*Descriptor) (Module, error) {
		return exports, nil
	})
}

// Resolve implements ModuleResolver.
func (r *FactoryResolver) Resolve(_ context.Context, desc *Descriptor) (Module, error) {
	r.mu.RLock()
	f, ok := r.factories[desc.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNoResolver
	}
	return f(desc)
}

// ExtResolver dispatches on the lower-cased extension of the entry module
// (".lua", ".go", ...).
type ExtResolver map[string]ModuleResolver

// Resolve implements ModuleResolver.
func (r ExtResolver) Resolve(ctx context.Context, desc *Descriptor) (Module, error) {
	ext := strings.ToLower(filepath.Ext(desc.Main))
	res, ok := r[ext]
	if !ok {
		return nil, ErrNoResolver
	}
	return res.Resolve(ctx, desc)
}

// ChainResolver tries resolvers in order, moving on when one returns
// ErrNoResolver.
type ChainResolver []ModuleResolver

// Resolve implements ModuleResolver.
func (c ChainResolver) Resolve(ctx context.Context, desc *Descriptor) (Module, error) {
	for _, r := range c {
		mod, err := r.Resolve(ctx, desc)
		if errors.Is(err, ErrNoResolver) {
			continue
		}
		return mod, err
	}
	return nil, fmt.Errorf("%w for %s", ErrNoResolver, desc.Main)
}
