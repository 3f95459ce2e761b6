package plugin

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Failure is a package that failed to load or initialize.
type Failure struct {
	Dir     string
	Package string
	Err     error
}

// UnresolvedPackage is a package still pending when loading ended.
type UnresolvedPackage struct {
	Name    string
	Dir     string
	Missing []string
}

// Report describes the outcome of a LoadPackages call. A report with
// failures is not an error: partial package sets are expected.
type Report struct {
	// Order lists packages in the order their entry points were invoked.
	Order []string

	// Skipped lists packages not loaded because the name was already registered.
	Skipped []string

	// Unresolved lists packages whose dependencies never became available.
	Unresolved []UnresolvedPackage

	// Cycles lists dependency cycles among the unresolved packages.
	Cycles [][]string

	// Interrupted is set when the context ended the load early.
	Interrupted error

	mu       sync.Mutex
	failures []Failure
}

func (r *Report) addFailure(dir, pkg string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, Failure{Dir: dir, Package: pkg, Err: err})
}

// Failures returns load and initialization failures. Initialization failures
// of detached loads may be added after LoadPackages returns.
func (r *Report) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Err joins every failure, unresolved package and interruption into one
// error, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Failures() {
		errs = append(errs, f.Err)
	}
	for _, u := range r.Unresolved {
		errs = append(errs, &PackageError{
			Dir:     u.Dir,
			Package: u.Name,
			Op:      "resolve",
			Err:     fmt.Errorf("%w: missing %s", ErrDependencyUnresolved, strings.Join(u.Missing, ", ")),
		})
	}
	if r.Interrupted != nil {
		errs = append(errs, r.Interrupted)
	}
	return errors.Join(errs...)
}

// OK reports whether every package loaded and initialized.
func (r *Report) OK() bool {
	return r.Err() == nil
}
