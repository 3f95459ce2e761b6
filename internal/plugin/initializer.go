package plugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/luashell/internal/core"
	"github.com/dshills/luashell/internal/settings"
)

// ApplyDefaults writes the declared default of every preference, flat then
// grouped, whose key is not set yet. It returns the keys it wrote.
func ApplyDefaults(store *settings.Store, m *Manifest) ([]string, error) {
	if store == nil {
		return nil, nil
	}

	var written []string
	var errs []error
	for _, p := range m.AllPreferences() {
		if !p.HasDefault {
			continue
		}
		ok, err := store.SetDefault(p.Key, p.Default)
		if err != nil {
			errs = append(errs, fmt.Errorf("preference %q: %w", p.Key, err))
		}
		if ok {
			written = append(written, p.Key)
		}
	}
	return written, errors.Join(errs...)
}

// initPackage applies preference defaults, registers d and invokes its entry
// point. Unless opts.RegisterOnCompletion is set, d is registered before the
// entry point runs and its completion is awaited on a tracked goroutine.
func (m *Manager) initPackage(ctx context.Context, d *Descriptor, opts LoadOptions, report *Report) {
	logger := m.logger.With("package", d.Name)

	if written, err := ApplyDefaults(m.services.Settings, d.Manifest); err != nil {
		logger.Warn("applying preference defaults", "err", err)
	} else if len(written) > 0 {
		logger.Debug("applied preference defaults", "keys", written)
	}

	if err := d.transition(StateInitializing); err != nil {
		logger.Error("cannot initialize package", "err", err)
		report.addFailure(d.Dir(), d.Name, err)
		return
	}
	report.Order = append(report.Order, d.Name)

	if !opts.RegisterOnCompletion {
		m.register(d, logger)
	}

	entry, ok := d.Module().Entry(d.InitSymbol())
	if !ok {
		logger.Debug("no entry point", "symbol", d.InitSymbol())
		m.finishInit(d, nil, time.Time{}, opts, logger, report)
		return
	}

	start := time.Now()
	done, err := invoke(ctx, entry, m.services.WithLogger(logger))
	if err != nil || done == nil {
		m.finishInit(d, err, start, opts, logger, report)
		return
	}

	if opts.RegisterOnCompletion {
		m.finishInit(d, await(ctx, done), start, opts, logger, report)
		return
	}

	m.wg.Add(1)
	m.metrics.addOutstanding(1)
	go func() {
		defer m.wg.Done()
		defer m.metrics.addOutstanding(-1)
		m.finishInit(d, await(context.Background(), done), start, opts, logger, report)
	}()
}

// finishInit records the result of an entry point.
func (m *Manager) finishInit(d *Descriptor, err error, start time.Time, opts LoadOptions, logger *log.Logger, report *Report) {
	if !start.IsZero() {
		m.metrics.recordInit(time.Since(start), err)
	}

	if err != nil {
		perr := &PackageError{
			Dir:     d.Dir(),
			Package: d.Name,
			Op:      "initialize",
			Err:     fmt.Errorf("%w: %w", ErrInitialization, err),
		}
		logger.Error("package initialization failed", "err", err)
		_ = d.fail(perr)
		report.addFailure(d.Dir(), d.Name, perr)
		m.metrics.recordResult(ResultFailed)
		return
	}

	if terr := d.transition(StateInitialized); terr != nil {
		logger.Error("cannot complete package", "err", terr)
		return
	}
	if opts.RegisterOnCompletion {
		m.register(d, logger)
	}
	logger.Debug("package initialized")
	m.metrics.recordResult(ResultInitialized)
}

// invoke calls an entry point, converting a panic into an error.
func invoke(ctx context.Context, entry EntryPoint, svc *core.Services) (done core.Completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			done, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return entry(ctx, svc)
}

// await receives the value of a Completion. A closed channel with no value
// counts as success.
func await(ctx context.Context, done core.Completion) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
