package plugin

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/luashell/internal/core"
)

// LoadOptions controls a LoadPackages call.
type LoadOptions struct {
	// AllowOverride reloads and reinitializes a package whose name is
	// already registered instead of skipping it.
	AllowOverride bool

	// RegisterOnCompletion registers a package only after its completion is
	// delivered successfully. The driver then waits for each completion
	// before moving on. By default packages are registered when their entry
	// point is invoked.
	RegisterOnCompletion bool

	// Detach returns from LoadPackages without waiting for outstanding
	// completions. Use Manager.Wait to wait for them later.
	Detach bool
}

// Manager drives package loading: discovery order, the pending queue,
// initialization and registration.
type Manager struct {
	loader   *Loader
	registry *Registry
	services *core.Services
	logger   *log.Logger
	metrics  *Metrics

	// load serializes LoadPackages calls.
	load sync.Mutex

	// wg tracks outstanding completions.
	wg sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger. Packages receive children of it.
func WithLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a manager. The services bundle is copied and its
// Packages view set to the manager's registry.
func NewManager(loader *Loader, svc *core.Services, opts ...ManagerOption) *Manager {
	if svc == nil {
		svc = &core.Services{}
	}

	m := &Manager{
		loader:   loader,
		registry: NewRegistry(),
		logger:   svc.Logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}

	services := *svc
	services.Packages = m.registry
	services.Logger = m.logger
	m.services = &services

	return m
}

// Registry returns the manager's registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Services returns the services bundle handed to entry points.
func (m *Manager) Services() *core.Services {
	return m.services
}

// Metrics returns the metrics collector, or nil.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// ListPackages returns the package directories under root in the order the
// file system lists them. Files and dot-entries are ignored. A missing root
// yields no directories.
func (m *Manager) ListPackages(root string) ([]string, error) {
	entries, err := m.loader.FileSystem().ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dirs = append(dirs, filepath.Join(root, entry.Name()))
	}
	return dirs, nil
}

// LoadDir lists root and loads every package directory in it.
func (m *Manager) LoadDir(ctx context.Context, root string, opts LoadOptions) (*Report, error) {
	dirs, err := m.ListPackages(root)
	if err != nil {
		return nil, err
	}
	return m.LoadPackages(ctx, dirs, opts), nil
}

// LoadPackages loads the packages in dirs, in order.
//
// Packages whose dependencies are registered are initialized as they are
// found; the others wait in the pending queue. Once dirs are exhausted the
// queue is rescanned from the start for the first satisfied package, which
// is initialized before the scan restarts. Packages still pending after a
// scan without progress are reported unresolved.
//
// Per-package failures never stop the load. Unless opts.Detach is set,
// LoadPackages returns after every outstanding completion is delivered.
func (m *Manager) LoadPackages(ctx context.Context, dirs []string, opts LoadOptions) *Report {
	m.load.Lock()
	defer m.load.Unlock()

	report := &Report{}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			report.Interrupted = err
			break
		}
		m.loadOne(ctx, dir, opts, report)
	}

	if report.Interrupted == nil {
		m.retryPending(ctx, opts, report)
	}
	m.finishPending(report)

	if !opts.Detach {
		if err := m.Wait(ctx); err != nil && report.Interrupted == nil {
			report.Interrupted = err
		}
	}

	m.logger.Info("packages loaded",
		"initialized", len(report.Order),
		"failed", len(report.Failures()),
		"unresolved", len(report.Unresolved),
	)
	return report
}

// Wait blocks until every outstanding completion has been delivered or ctx
// ends.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loadOne(ctx context.Context, dir string, opts LoadOptions, report *Report) {
	d, err := m.loader.LoadPackage(ctx, dir)
	if err != nil {
		name := ""
		if d != nil {
			name = d.Name
		}
		m.logger.Error("failed to load package", "dir", dir, "err", err)
		report.addFailure(dir, name, err)
		m.metrics.recordResult(ResultFailed)
		return
	}

	if m.skip(d, opts, report) {
		return
	}

	if missing := m.registry.Missing(d); len(missing) > 0 {
		if err := d.transition(StatePending); err != nil {
			m.logger.Error("cannot defer package", "package", d.Name, "err", err)
			return
		}
		m.registry.enqueue(d)
		m.metrics.setPending(len(m.registry.Pending()))
		m.logger.Debug("package waiting for dependencies", "package", d.Name, "missing", missing)
		return
	}

	m.initPackage(ctx, d, opts, report)
}

// skip reports whether d names an already registered package that must not
// be overridden.
func (m *Manager) skip(d *Descriptor, opts LoadOptions, report *Report) bool {
	if opts.AllowOverride || !m.registry.Has(d.Name) {
		return false
	}
	m.logger.Debug("package already loaded", "package", d.Name, "dir", d.Dir())
	report.Skipped = append(report.Skipped, d.Name)
	m.metrics.recordResult(ResultSkipped)
	m.closeModule(d, m.logger)
	return true
}

// register registers d and closes the module of the package it overrides.
func (m *Manager) register(d *Descriptor, logger *log.Logger) {
	if prev := m.registry.register(d); prev != nil {
		logger.Debug("package overridden", "previous", prev.Dir())
		m.closeModule(prev, logger)
	}
}

// closeModule releases d's module if it holds resources.
func (m *Manager) closeModule(d *Descriptor, logger *log.Logger) {
	c, ok := d.Module().(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("closing package module", "package", d.Name, "err", err)
	}
}

func (m *Manager) retryPending(ctx context.Context, opts LoadOptions, report *Report) {
	for {
		if err := ctx.Err(); err != nil {
			report.Interrupted = err
			return
		}

		d := m.registry.takeSatisfied()
		if d == nil {
			return
		}
		m.metrics.setPending(len(m.registry.Pending()))

		if m.skip(d, opts, report) {
			continue
		}
		m.initPackage(ctx, d, opts, report)
	}
}

// finishPending reports whatever is left in the pending queue.
func (m *Manager) finishPending(report *Report) {
	left := m.registry.drainPending()
	m.metrics.setPending(0)
	if len(left) == 0 {
		return
	}

	for _, d := range left {
		missing := m.registry.Missing(d)
		_ = d.transition(StateUnresolvable)
		report.Unresolved = append(report.Unresolved, UnresolvedPackage{
			Name:    d.Name,
			Dir:     d.Dir(),
			Missing: missing,
		})
		m.logger.Warn("package has unresolved dependencies",
			"package", d.Name,
			"missing", strings.Join(missing, ", "),
		)
		m.metrics.recordResult(ResultUnresolved)
	}

	report.Cycles = FindCycles(left)
	for _, cycle := range report.Cycles {
		m.logger.Warn("dependency cycle", "packages", strings.Join(cycle, " -> "))
	}
	m.metrics.recordCycles(len(report.Cycles))
}
