package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Errors returned by Install.
var (
	ErrEmptyHook = errors.New("hook: hook name is required")
	ErrNilFunc   = errors.New("hook: function is required")
)

// Func is a hook subscriber.
type Func func(ctx context.Context, args ...any) (any, error)

// Result is one subscriber's outcome from Exec.
type Result struct {
	ID    string
	Name  string
	Value any
	Err   error
}

// entry is an installed subscriber.
type entry struct {
	id   string
	name string
	fn   Func
}

// Registry holds installed hooks. It is safe for concurrent use; Exec
// calls subscribers outside the lock so they may install or remove hooks.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string][]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string][]entry)}
}

// Install adds fn under hook. name identifies the installer (typically the
// package name) and may be empty. The returned ID removes exactly this
// installation.
func (r *Registry) Install(hook, name string, fn Func) (string, error) {
	if hook == "" {
		return "", ErrEmptyHook
	}
	if fn == nil {
		return "", ErrNilFunc
	}

	id := uuid.NewString()

	r.mu.Lock()
	r.hooks[hook] = append(r.hooks[hook], entry{id: id, name: name, fn: fn})
	r.mu.Unlock()

	return id, nil
}

// Remove removes the first installation under hook with the given name.
func (r *Registry) Remove(hook, name string) bool {
	if name == "" {
		return false
	}
	return r.removeWhere(hook, func(e entry) bool { return e.name == name })
}

// RemoveID removes the installation with the given ID from any hook.
func (r *Registry) RemoveID(id string) bool {
	r.mu.RLock()
	var hook string
	for h, entries := range r.hooks {
		for _, e := range entries {
			if e.id == id {
				hook = h
			}
		}
	}
	r.mu.RUnlock()

	if hook == "" {
		return false
	}
	return r.removeWhere(hook, func(e entry) bool { return e.id == id })
}

// RemoveAll removes every installation made under name and returns how
// many were removed.
func (r *Registry) RemoveAll(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for hook, entries := range r.hooks {
		kept := entries[:0]
		for _, e := range entries {
			if e.name == name {
				count++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.hooks, hook)
		} else {
			r.hooks[hook] = kept
		}
	}
	return count
}

func (r *Registry) removeWhere(hook string, match func(entry) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.hooks[hook]
	for i, e := range entries {
		if !match(e) {
			continue
		}
		// Copy so a concurrent Exec iterating the old slice is unaffected.
		next := make([]entry, 0, len(entries)-1)
		next = append(next, entries[:i]...)
		next = append(next, entries[i+1:]...)
		if len(next) == 0 {
			delete(r.hooks, hook)
		} else {
			r.hooks[hook] = next
		}
		return true
	}
	return false
}

// Exec calls every subscriber of hook in installation order. The boolean
// is false when nothing is installed under hook. A subscriber error or
// panic is captured in its Result and does not stop the others.
func (r *Registry) Exec(ctx context.Context, hook string, args ...any) ([]Result, bool) {
	r.mu.RLock()
	entries := append([]entry(nil), r.hooks[hook]...)
	r.mu.RUnlock()

	if len(entries) == 0 {
		return nil, false
	}

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		res := Result{ID: e.id, Name: e.name}
		res.Value, res.Err = call(ctx, e.fn, args)
		results = append(results, res)
	}
	return results, true
}

func call(ctx context.Context, fn Func, args []any) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook panic: %v", p)
		}
	}()
	return fn(ctx, args...)
}

// First returns the first successful non-nil value among results.
func First(results []Result) (any, bool) {
	for _, res := range results {
		if res.Err == nil && res.Value != nil {
			return res.Value, true
		}
	}
	return nil, false
}

// Has reports whether anything is installed under hook.
func (r *Registry) Has(hook string) bool {
	return r.Count(hook) > 0
}

// Count returns the number of installations under hook.
func (r *Registry) Count(hook string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[hook])
}

// Names returns hook names with at least one installation, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
