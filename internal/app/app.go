// Package app wires the luashell host together: configuration, logging,
// settings, hooks, the shared Lua runtime and the package manager.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/dshills/luashell/internal/config"
	"github.com/dshills/luashell/internal/plugin"
	"github.com/dshills/luashell/internal/plugin/hook"
	"github.com/dshills/luashell/internal/plugin/lua"
	"github.com/dshills/luashell/internal/settings"
)

// Application owns every host component and the package load lifecycle.
type Application struct {
	mu sync.Mutex

	cfg    *config.Config
	logger *log.Logger
	fs     plugin.FileSystem

	settings  *settings.Store
	hooks     *hook.Registry
	runtime   *lua.Runtime
	factories *plugin.FactoryResolver
	metrics   *plugin.Metrics
	manager   *plugin.Manager

	stopWatch context.CancelFunc
	running   atomic.Bool

	opts Options
}

// Options configures the application.
type Options struct {
	// Config is the host configuration. Nil uses config.Default.
	Config *config.Config

	// Logger replaces the logger built from Config.Logging.
	Logger *log.Logger

	// LogOutput receives log output when Logger is nil. Defaults to stderr.
	LogOutput io.Writer

	// FileSystem reads packages. Defaults to the operating system.
	FileSystem plugin.FileSystem

	// Factories are native packages keyed by manifest name. They take
	// precedence over entry files.
	Factories map[string]plugin.Factory
}

// New creates an Application with the given options.
func New(opts Options) (*Application, error) {
	app := &Application{
		cfg:  opts.Config,
		fs:   opts.FileSystem,
		opts: opts,
	}
	if app.cfg == nil {
		app.cfg = config.Default()
	}
	if app.fs == nil {
		app.fs = plugin.OSFS{}
	}

	if err := newBootstrapper(app).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Config returns the host configuration.
func (app *Application) Config() *config.Config { return app.cfg }

// Logger returns the host logger.
func (app *Application) Logger() *log.Logger { return app.logger }

// Settings returns the settings store.
func (app *Application) Settings() *settings.Store { return app.settings }

// Hooks returns the hook registry.
func (app *Application) Hooks() *hook.Registry { return app.hooks }

// Runtime returns the shared Lua session.
func (app *Application) Runtime() *lua.Runtime { return app.runtime }

// Manager returns the package manager.
func (app *Application) Manager() *plugin.Manager { return app.manager }

// Metrics returns the loader metrics, or nil when disabled.
func (app *Application) Metrics() *plugin.Metrics { return app.metrics }

// IsRunning reports whether Start has completed and Shutdown has not.
func (app *Application) IsRunning() bool { return app.running.Load() }

// RegisterFactory adds a native package before Start.
func (app *Application) RegisterFactory(name string, f plugin.Factory) error {
	return app.factories.Register(name, f)
}

// PackageDirs lists the package directories of every configured packages
// directory, in configuration order.
func (app *Application) PackageDirs() ([]string, error) {
	var all []string
	for _, root := range app.cfg.Packages.Dirs {
		dirs, err := app.manager.ListPackages(root)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", root, err)
		}
		all = append(all, dirs...)
	}
	return all, nil
}

// Start starts the settings watcher and loads every package. Package
// failures are reported, not returned; the error is reserved for failures
// of the host itself.
func (app *Application) Start(ctx context.Context) (*plugin.Report, error) {
	if !app.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}

	if app.cfg.Settings.Watch {
		wctx, cancel := context.WithCancel(context.Background())
		if err := app.settings.Watch(wctx, app.cfg.Settings.Debounce.Duration); err != nil {
			cancel()
			app.logger.Warn("settings watch disabled", "path", app.cfg.Settings.Path, "err", err)
		} else {
			app.mu.Lock()
			app.stopWatch = cancel
			app.mu.Unlock()
		}
	}

	dirs, err := app.PackageDirs()
	if err != nil {
		app.running.Store(false)
		return nil, err
	}

	report := app.manager.LoadPackages(ctx, dirs, plugin.LoadOptions{
		AllowOverride:        app.cfg.Packages.AllowOverride,
		RegisterOnCompletion: app.cfg.Packages.RegisterOnCompletion,
		Detach:               true,
	})

	wctx := ctx
	if d := app.cfg.Packages.WaitTimeout.Duration; d > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err := app.manager.Wait(wctx); err != nil && report.Interrupted == nil {
		app.logger.Warn("package completions still outstanding", "err", err)
		report.Interrupted = err
	}
	return report, nil
}

// Shutdown stops the watcher, waits for outstanding completions and closes
// every package module and the shared runtime.
func (app *Application) Shutdown(ctx context.Context) error {
	if !app.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}

	app.mu.Lock()
	if app.stopWatch != nil {
		app.stopWatch()
		app.stopWatch = nil
	}
	app.mu.Unlock()

	var errs []error
	if err := app.manager.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrShutdownTimeout, err))
	}

	errs = append(errs, app.closeModules()...)
	if err := app.runtime.Close(); err != nil {
		errs = append(errs, err)
	}

	app.logger.Debug("shutdown complete")
	return errors.Join(errs...)
}

// closeModules closes the modules of registered and unresolved packages.
func (app *Application) closeModules() []error {
	reg := app.manager.Registry()
	descs := append(reg.Specs(), reg.Unresolved()...)

	var errs []error
	for _, d := range descs {
		c, ok := d.Module().(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", d.Name, err))
		}
	}
	return errs
}
