package plugin

import (
	"fmt"
	"sync"

	"github.com/dshills/luashell/internal/core"
)

// Module is a loaded entry module.
type Module = core.Module

// EntryPoint is a package initializer.
type EntryPoint = core.EntryPoint

// Exports is a Module backed by a map of entry points. Go packages
// registered through a FactoryResolver usually return one.
type Exports map[string]EntryPoint

// Entry implements Module.
func (e Exports) Entry(symbol string) (EntryPoint, bool) {
	fn, ok := e[symbol]
	return fn, ok && fn != nil
}

// Descriptor is a manifest plus its runtime state.
type Descriptor struct {
	*Manifest

	mu     sync.RWMutex
	module Module
	state  State
	err    error
}

func newDescriptor(m *Manifest) *Descriptor {
	return &Descriptor{Manifest: m, state: StateUnresolved}
}

// Module returns the attached module, nil before a successful load.
func (d *Descriptor) Module() Module {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.module
}

// State returns the current state.
func (d *Descriptor) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Err returns the error that moved the package to StateFailed, if any.
func (d *Descriptor) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

func (d *Descriptor) transition(next State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transitionLocked(next)
}

func (d *Descriptor) transitionLocked(next State) error {
	if !d.state.CanTransition(next) {
		return fmt.Errorf("%w: %s: %s -> %s", ErrIllegalTransition, d.Name, d.state, next)
	}
	d.state = next
	return nil
}

func (d *Descriptor) attach(mod Module) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(StateLoaded); err != nil {
		return err
	}
	d.module = mod
	return nil
}

func (d *Descriptor) fail(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if terr := d.transitionLocked(StateFailed); terr != nil {
		return terr
	}
	d.err = err
	return nil
}
