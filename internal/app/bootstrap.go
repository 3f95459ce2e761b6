package app

import (
	"github.com/dshills/luashell/internal/core"
	"github.com/dshills/luashell/internal/plugin"
	"github.com/dshills/luashell/internal/plugin/hook"
	"github.com/dshills/luashell/internal/plugin/lua"
	"github.com/dshills/luashell/internal/settings"
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app       *Application
	initOrder []string
}

// newBootstrapper creates a new bootstrapper for the application.
func newBootstrapper(app *Application) *bootstrapper {
	return &bootstrapper{
		app:       app,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap initializes all components in dependency order.
// On failure, it cleans up already-initialized components.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initLogger,   // 1. Logger - everything below logs through it
		b.initSettings, // 2. Settings store
		b.initHooks,    // 3. Hook registry
		b.initRuntime,  // 4. Shared Lua session
		b.initManager,  // 5. Resolvers, metrics and the package manager
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	return nil
}

// initLogger builds the host logger unless one was supplied.
func (b *bootstrapper) initLogger() error {
	if b.app.opts.Logger != nil {
		b.app.logger = b.app.opts.Logger
	} else {
		logger, err := NewLogger(b.app.cfg.Logging, b.app.opts.LogOutput)
		if err != nil {
			return &InitError{Component: "logger", Err: err}
		}
		b.app.logger = logger
	}
	b.initOrder = append(b.initOrder, "logger")
	return nil
}

// initSettings opens the settings store. A missing file starts empty.
func (b *bootstrapper) initSettings() error {
	opts := []settings.Option{settings.WithLogger(b.app.logger.WithPrefix("settings"))}
	if path := b.app.cfg.Settings.Path; path != "" {
		opts = append(opts, settings.WithBackend(settings.NewFileBackend(path)))
	}

	store := settings.New(opts...)
	if err := store.Load(); err != nil {
		return &InitError{Component: "settings", Err: err}
	}
	b.app.settings = store
	b.initOrder = append(b.initOrder, "settings")
	return nil
}

func (b *bootstrapper) initHooks() error {
	b.app.hooks = hook.NewRegistry()
	b.initOrder = append(b.initOrder, "hooks")
	return nil
}

func (b *bootstrapper) initRuntime() error {
	b.app.runtime = lua.NewRuntime(
		b.app.logger.WithPrefix("lua"),
		lua.WithExecutionTimeout(b.app.cfg.Lua.CallTimeout.Duration),
	)
	b.initOrder = append(b.initOrder, "runtime")
	return nil
}

// initManager builds the resolver chain: native factories first, then
// entry files by extension.
func (b *bootstrapper) initManager() error {
	app := b.app

	app.factories = plugin.NewFactoryResolver()
	for name, f := range app.opts.Factories {
		if err := app.factories.Register(name, f); err != nil {
			return &InitError{Component: "package factories", Err: err}
		}
	}

	resolver := plugin.ChainResolver{
		app.factories,
		plugin.ExtResolver{
			".lua": lua.NewResolver(app.fs,
				lua.WithResolverLogger(app.logger),
				lua.WithCallTimeout(app.cfg.Lua.CallTimeout.Duration),
			),
		},
	}

	var root string
	if len(app.cfg.Packages.Dirs) > 0 {
		root = app.cfg.Packages.Dirs[0]
	}

	constants := make(core.Constants, len(app.cfg.Constants))
	for k, v := range app.cfg.Constants {
		constants[k] = v
	}

	svc := &core.Services{
		Runtime:   app.runtime,
		Settings:  app.settings,
		Hooks:     app.hooks,
		Constants: constants,
		Utils:     core.NewUtils(app.fs, root),
		Logger:    app.logger,
	}

	mopts := []plugin.ManagerOption{plugin.WithLogger(app.logger)}
	if app.cfg.Metrics.Enabled {
		app.metrics = plugin.NewMetrics(app.cfg.Metrics.Namespace)
		mopts = append(mopts, plugin.WithMetrics(app.metrics))
	}

	loader := plugin.NewLoader(resolver, plugin.WithFileSystem(app.fs))
	app.manager = plugin.NewManager(loader, svc, mopts...)
	b.initOrder = append(b.initOrder, "manager")
	return nil
}

// cleanup performs cleanup in reverse initialization order.
// Called when bootstrap fails partway through.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

// cleanupComponent cleans up a single component.
func (b *bootstrapper) cleanupComponent(component string) {
	switch component {
	case "runtime":
		if b.app.runtime != nil {
			_ = b.app.runtime.Close()
			b.app.runtime = nil
		}
	case "hooks":
		b.app.hooks = nil
	case "settings":
		b.app.settings = nil
	}
}
