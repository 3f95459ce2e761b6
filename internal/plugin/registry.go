package plugin

import (
	"sync"
)

// Registry holds the packages known to one Manager: registered modules in
// initialization order, their descriptors, and the pending queue.
// Only the Manager mutates it; entry points read it through core.PackageView.
type Registry struct {
	mu sync.RWMutex

	packages map[string]Module
	order    []string
	spec     map[string]*Descriptor

	pending    []*Descriptor
	unresolved []*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		packages: make(map[string]Module),
		spec:     make(map[string]*Descriptor),
	}
}

// Has reports whether a package is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.packages[name]
	return ok
}

// Names returns registered package names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Module returns the module registered under name.
func (r *Registry) Module(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.packages[name]
	return mod, ok
}

// Spec returns the descriptor registered under name.
func (r *Registry) Spec(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.spec[name]
	return d, ok
}

// Specs returns registered descriptors in registration order.
func (r *Registry) Specs() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.spec[name])
	}
	return out
}

// Len returns the number of registered packages.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.packages)
}

// Pending returns the packages waiting for dependencies, in queue order.
func (r *Registry) Pending() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, len(r.pending))
	copy(out, r.pending)
	return out
}

// Unresolved returns the packages left pending by the last load.
func (r *Registry) Unresolved() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, len(r.unresolved))
	copy(out, r.unresolved)
	return out
}

// Preferences returns the flat preferences of every registered package in
// registration order.
func (r *Registry) Preferences() []Preference {
	var out []Preference
	for _, d := range r.Specs() {
		out = append(out, d.Preferences...)
	}
	return out
}

// PreferenceGroups returns the preference groups of every registered package
// in registration order.
func (r *Registry) PreferenceGroups() []PreferenceGroup {
	var out []PreferenceGroup
	for _, d := range r.Specs() {
		out = append(out, d.PreferenceGroups...)
	}
	return out
}

// Missing returns the dependencies of d that are not registered.
func (r *Registry) Missing(d *Descriptor) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.missingLocked(d)
}

func (r *Registry) missingLocked(d *Descriptor) []string {
	var missing []string
	for _, dep := range d.Dependencies {
		if _, ok := r.packages[dep]; !ok {
			missing = append(missing, dep)
		}
	}
	return missing
}

// register makes d visible. A re-registered name keeps its original position.
// It returns the descriptor d replaced, if any.
func (r *Registry) register(d *Descriptor) *Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.packages[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	prev := r.spec[d.Name]
	r.packages[d.Name] = d.Module()
	r.spec[d.Name] = d
	if prev == d {
		return nil
	}
	return prev
}

func (r *Registry) enqueue(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, d)
}

// takeSatisfied removes and returns the first pending descriptor whose
// dependencies are all registered, or nil.
func (r *Registry) takeSatisfied() *Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.pending {
		if len(r.missingLocked(d)) == 0 {
			r.pending = append(r.pending[:i:i], r.pending[i+1:]...)
			return d
		}
	}
	return nil
}

// drainPending empties the queue, recording what was left as unresolved.
func (r *Registry) drainPending() []*Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	left := r.pending
	r.pending = nil
	r.unresolved = left
	out := make([]*Descriptor, len(left))
	copy(out, left)
	return out
}
