package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/luashell/internal/core"
	"github.com/dshills/luashell/internal/settings"
)

// testEnv is an in-memory packages directory with Go modules.
type testEnv struct {
	fsys     fstest.MapFS
	resolver *FactoryResolver

	mu    sync.Mutex
	calls []string
}

func newTestEnv() *testEnv {
	return &testEnv{
		fsys:     fstest.MapFS{},
		resolver: NewFactoryResolver(),
	}
}

func (e *testEnv) record(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, name)
}

func (e *testEnv) invoked() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.calls))
	copy(out, e.calls)
	return out
}

// recordingEntry records the package name and finishes synchronously.
func (e *testEnv) recordingEntry(name string) EntryPoint {
	return func(context.Context, *core.Services) (core.Completion, error) {
		e.record(name)
		return nil, nil
	}
}

// writeManifest stores a manifest document for dir.
func (e *testEnv) writeManifest(t *testing.T, dir string, manifest map[string]any) {
	t.Helper()
	data, err := json.Marshal(manifest)
	require.NoError(t, err)
	e.fsys[path.Join("packages", dir, ManifestFile)] = &fstest.MapFile{Data: data}
	e.fsys[path.Join("packages", dir, "main.go")] = &fstest.MapFile{Data: []byte("package main\n")}
}

// addPackage adds a package in dir whose init records its name.
func (e *testEnv) addPackage(t *testing.T, dir, name string, deps ...string) {
	t.Helper()
	e.addPackageWith(t, dir, name, e.recordingEntry(name), deps...)
}

func (e *testEnv) addPackageWith(t *testing.T, dir, name string, entry EntryPoint, deps ...string) {
	t.Helper()
	if deps == nil {
		deps = []string{}
	}
	e.writeManifest(t, dir, map[string]any{
		"name":                name,
		"main":                "main.go",
		"packageDependencies": deps,
	})
	err := e.resolver.RegisterExports(name, Exports{DefaultInitSymbol: entry})
	if !errors.Is(err, ErrDuplicateFactory) {
		require.NoError(t, err)
	}
}

func (e *testEnv) manager(svc *core.Services, opts ...ManagerOption) *Manager {
	return NewManager(NewLoader(e.resolver, WithFileSystem(e.fsys)), svc, opts...)
}

func dirs(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = path.Join("packages", n)
	}
	return out
}

func TestLoadPackagesDiscoveryOrder(t *testing.T) {
	env := newTestEnv()
	names := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, n := range names {
		env.addPackage(t, n, n)
	}

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs(names...), LoadOptions{})

	assert.Equal(t, names, env.invoked())
	assert.Equal(t, names, report.Order)
	assert.Equal(t, names, m.Registry().Names())
	assert.True(t, report.OK())
}

func TestLoadPackagesDeferredDependency(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "a", "A", "B")
	env.addPackage(t, "b", "B")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("a", "b"), LoadOptions{})

	assert.Equal(t, []string{"B", "A"}, env.invoked())
	assert.True(t, report.OK())
	assert.Empty(t, m.Registry().Pending())

	d, ok := m.Registry().Spec("A")
	require.True(t, ok)
	assert.Equal(t, StateInitialized, d.State())
}

func TestLoadPackagesUnresolvableIsNotFatal(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "a", "A", "ghost")
	env.addPackage(t, "b", "B")
	env.addPackage(t, "c", "C", "B")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("a", "b", "c"), LoadOptions{})

	assert.Equal(t, []string{"B", "C"}, env.invoked())
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "A", report.Unresolved[0].Name)
	assert.Equal(t, []string{"ghost"}, report.Unresolved[0].Missing)
	assert.False(t, m.Registry().Has("A"))
	assert.Empty(t, report.Failures())

	err := report.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyUnresolved)

	unresolved := m.Registry().Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, StateUnresolvable, unresolved[0].State())
}

func TestLoadPackagesCycleTerminates(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "a", "A", "B")
	env.addPackage(t, "b", "B", "A")
	env.addPackage(t, "c", "C")

	m := env.manager(nil)

	done := make(chan *Report, 1)
	go func() {
		done <- m.LoadPackages(context.Background(), dirs("a", "b", "c"), LoadOptions{})
	}()

	var report *Report
	select {
	case report = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LoadPackages did not terminate")
	}

	assert.Equal(t, []string{"C"}, env.invoked())
	require.Len(t, report.Unresolved, 2)
	assert.Equal(t, "A", report.Unresolved[0].Name)
	assert.Equal(t, "B", report.Unresolved[1].Name)
	assert.Equal(t, [][]string{{"A", "B", "A"}}, report.Cycles)
}

func TestLoadPackagesSkipsDuplicateName(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "first", "dup")
	env.addPackage(t, "second", "dup")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("first", "second"), LoadOptions{})

	assert.Equal(t, []string{"dup"}, env.invoked())
	assert.Equal(t, []string{"dup"}, report.Skipped)
	assert.True(t, report.OK())

	d, ok := m.Registry().Spec("dup")
	require.True(t, ok)
	assert.Equal(t, path.Join("packages", "first"), d.Dir())

	// A second load of the same directory is a no-op.
	report = m.LoadPackages(context.Background(), dirs("first"), LoadOptions{})
	assert.Equal(t, []string{"dup"}, env.invoked())
	assert.Equal(t, []string{"dup"}, report.Skipped)
	assert.Empty(t, report.Order)
}

func TestLoadPackagesAllowOverride(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "first", "dup")
	env.addPackage(t, "other", "other")
	env.addPackage(t, "second", "dup")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("first", "other", "second"), LoadOptions{AllowOverride: true})

	assert.Equal(t, []string{"dup", "other", "dup"}, env.invoked())
	assert.Empty(t, report.Skipped)

	// The reloaded package keeps its registration position.
	assert.Equal(t, []string{"dup", "other"}, m.Registry().Names())
	d, ok := m.Registry().Spec("dup")
	require.True(t, ok)
	assert.Equal(t, path.Join("packages", "second"), d.Dir())
}

// closingModule records Close calls by package directory.
type closingModule struct {
	Exports
	dir    string
	closed *sync.Map
}

func (c *closingModule) Close() error {
	c.closed.Store(c.dir, true)
	return nil
}

func (e *testEnv) addClosingPackages(t *testing.T, name string, closed *sync.Map, pkgDirs ...string) {
	t.Helper()
	for _, dir := range pkgDirs {
		e.writeManifest(t, dir, map[string]any{"name": name, "main": "main.go"})
	}
	require.NoError(t, e.resolver.Register(name, func(d *Descriptor) (Module, error) {
		return &closingModule{
			Exports: Exports{DefaultInitSymbol: e.recordingEntry(name)},
			dir:     d.Dir(),
			closed:  closed,
		}, nil
	}))
}

func TestLoadPackagesClosesReplacedModules(t *testing.T) {
	t.Run("skipped duplicate", func(t *testing.T) {
		env := newTestEnv()
		var closed sync.Map
		env.addClosingPackages(t, "dup", &closed, "first", "second")

		m := env.manager(nil)
		report := m.LoadPackages(context.Background(), dirs("first", "second"), LoadOptions{})
		assert.Equal(t, []string{"dup"}, report.Skipped)

		_, firstClosed := closed.Load(path.Join("packages", "first"))
		_, secondClosed := closed.Load(path.Join("packages", "second"))
		assert.False(t, firstClosed)
		assert.True(t, secondClosed)
	})

	t.Run("override", func(t *testing.T) {
		env := newTestEnv()
		var closed sync.Map
		env.addClosingPackages(t, "dup", &closed, "first", "second")

		m := env.manager(nil)
		report := m.LoadPackages(context.Background(), dirs("first", "second"), LoadOptions{AllowOverride: true})
		assert.Equal(t, []string{"dup", "dup"}, report.Order)

		_, firstClosed := closed.Load(path.Join("packages", "first"))
		_, secondClosed := closed.Load(path.Join("packages", "second"))
		assert.True(t, firstClosed)
		assert.False(t, secondClosed)
	})
}

func TestDefaultsAppliedBeforeInit(t *testing.T) {
	env := newTestEnv()
	store := settings.New(settings.WithValues(map[string]any{"kept": "user"}))

	var seen, kept any
	env.writeManifest(t, "p", map[string]any{
		"name": "P",
		"main": "main.go",
		"preferences": map[string]any{
			"X":    map[string]any{"default": 5, "label": "X value"},
			"kept": map[string]any{"default": "package"},
		},
		"preferenceGroups": map[string]any{
			"Layout": map[string]any{
				"layout.width": map[string]any{"type": "size", "default": map[string]any{"width": 80, "height": 24}},
			},
		},
	})
	require.NoError(t, env.resolver.RegisterExports("P", Exports{
		"init": func(_ context.Context, svc *core.Services) (core.Completion, error) {
			seen, _ = svc.Settings.Get("X")
			kept, _ = svc.Settings.Get("kept")
			return nil, nil
		},
	}))

	m := env.manager(&core.Services{Settings: store})
	report := m.LoadPackages(context.Background(), dirs("p"), LoadOptions{})
	require.True(t, report.OK())

	assert.Equal(t, float64(5), seen)
	assert.Equal(t, "user", kept)
	assert.True(t, store.Has("layout.width"))
}

func TestLoadPackagesInitializesSatisfiedOnDiscovery(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "pkgC", "pkgC", "pkgA")
	env.addPackage(t, "pkgA", "pkgA")
	env.addPackage(t, "pkgB", "pkgB", "pkgA")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("pkgC", "pkgA", "pkgB"), LoadOptions{})

	// pkgB's dependency is registered by the time pkgB is found, so it
	// does not wait behind pkgC.
	assert.Equal(t, []string{"pkgA", "pkgB", "pkgC"}, env.invoked())
	assert.Equal(t, []string{"pkgA", "pkgB", "pkgC"}, report.Order)
	assert.True(t, report.OK())
}

func TestLoadPackagesRetryFIFO(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "c", "C", "A")
	env.addPackage(t, "b", "B", "A")
	env.addPackage(t, "a", "A")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("c", "b", "a"), LoadOptions{})

	assert.Equal(t, []string{"A", "C", "B"}, env.invoked())
	assert.Equal(t, []string{"A", "C", "B"}, report.Order)
	assert.True(t, report.OK())
}

func TestLoadPackagesSelfDependency(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "a", "A", "A")
	env.addPackage(t, "b", "B")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("a", "b"), LoadOptions{})

	assert.Equal(t, []string{"B"}, env.invoked())
	assert.Empty(t, report.Failures())
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "A", report.Unresolved[0].Name)
	assert.Equal(t, []string{"A"}, report.Unresolved[0].Missing)
	assert.Equal(t, [][]string{{"A", "A"}}, report.Cycles)
	assert.ErrorIs(t, report.Err(), ErrDependencyUnresolved)
}

func TestLoadPackagesManifestWithoutName(t *testing.T) {
	env := newTestEnv()
	env.writeManifest(t, "pkgX", map[string]any{"main": "main.go"})
	env.addPackage(t, "pkgY", "pkgY")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("pkgX", "pkgY"), LoadOptions{})

	assert.Equal(t, []string{"pkgY"}, env.invoked())
	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, path.Join("packages", "pkgX"), failures[0].Dir)
	assert.ErrorIs(t, failures[0].Err, ErrManifestIncomplete)
	assert.Equal(t, []string{"pkgY"}, m.Registry().Names())

	var perr *PackageError
	require.True(t, errors.As(failures[0].Err, &perr))
	assert.Equal(t, "read manifest", perr.Op)
}

func TestLoadPackagesManifestErrors(t *testing.T) {
	env := newTestEnv()
	env.fsys["packages/empty/readme.txt"] = &fstest.MapFile{Data: []byte("no manifest")}
	env.fsys["packages/broken/package.json"] = &fstest.MapFile{Data: []byte(`{"name": `)}
	env.addPackage(t, "ok", "ok")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("empty", "broken", "ok"), LoadOptions{})

	failures := report.Failures()
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0].Err, ErrManifestMissing)
	assert.ErrorIs(t, failures[1].Err, ErrManifestMalformed)
	assert.Equal(t, []string{"ok"}, env.invoked())
}

func TestLoadPackagesModuleLoadFailure(t *testing.T) {
	env := newTestEnv()
	env.writeManifest(t, "bad", map[string]any{"name": "bad", "main": "main.go"})
	require.NoError(t, env.resolver.Register("bad", func(*Descriptor) (Module, error) {
		return nil, errors.New("syntax error")
	}))
	env.writeManifest(t, "boom", map[string]any{"name": "boom", "main": "main.go"})
	require.NoError(t, env.resolver.Register("boom", func(*Descriptor) (Module, error) {
		panic("evaluation failed")
	}))
	env.writeManifest(t, "nobody", map[string]any{"name": "nobody", "main": "main.go"})
	env.addPackage(t, "dep", "dep", "bad")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("bad", "boom", "nobody", "dep"), LoadOptions{})

	failures := report.Failures()
	require.Len(t, failures, 3)
	for _, f := range failures {
		assert.ErrorIs(t, f.Err, ErrModuleLoad)
	}
	assert.Equal(t, "bad", failures[0].Package)
	assert.ErrorIs(t, failures[2].Err, ErrNoResolver)

	// A failed package is never retried, so its dependents stay unresolved.
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "dep", report.Unresolved[0].Name)
	assert.Empty(t, env.invoked())
}

func TestLoadPackagesInitFailureContinues(t *testing.T) {
	env := newTestEnv()
	env.addPackageWith(t, "fails", "fails", func(context.Context, *core.Services) (core.Completion, error) {
		return nil, errors.New("no terminal")
	})
	env.addPackageWith(t, "panics", "panics", func(context.Context, *core.Services) (core.Completion, error) {
		panic("nil map")
	})
	env.addPackageWith(t, "rejects", "rejects", func(context.Context, *core.Services) (core.Completion, error) {
		return core.Fail(errors.New("rejected")), nil
	})
	env.addPackage(t, "after", "after", "fails")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("fails", "panics", "rejects", "after"), LoadOptions{})

	assert.Equal(t, []string{"after"}, env.invoked())
	failures := report.Failures()
	require.Len(t, failures, 3)
	for _, f := range failures {
		assert.ErrorIs(t, f.Err, ErrInitialization)
	}

	// Registration happens at invocation, so failed packages stay visible.
	assert.True(t, m.Registry().Has("fails"))
	d, _ := m.Registry().Spec("fails")
	assert.Equal(t, StateFailed, d.State())
	assert.ErrorIs(t, d.Err(), ErrInitialization)
}

func TestLoadPackagesCustomInitSymbol(t *testing.T) {
	env := newTestEnv()
	env.writeManifest(t, "p", map[string]any{"name": "p", "main": "main.go", "init": "start"})
	require.NoError(t, env.resolver.RegisterExports("p", Exports{
		"init":  env.recordingEntry("wrong"),
		"start": env.recordingEntry("start"),
	}))
	env.writeManifest(t, "q", map[string]any{"name": "q", "main": "main.go"})
	require.NoError(t, env.resolver.RegisterExports("q", Exports{}))

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("p", "q"), LoadOptions{})

	assert.Equal(t, []string{"start"}, env.invoked())
	assert.True(t, report.OK())
	d, _ := m.Registry().Spec("q")
	assert.Equal(t, StateInitialized, d.State())
}

func TestLoadPackagesDependentSeesRegisteredDependency(t *testing.T) {
	env := newTestEnv()
	release := make(chan struct{})
	env.addPackageWith(t, "slow", "slow", func(context.Context, *core.Services) (core.Completion, error) {
		return core.Go(func() error {
			<-release
			return nil
		}), nil
	})

	var sawSlow bool
	env.addPackageWith(t, "fast", "fast", func(_ context.Context, svc *core.Services) (core.Completion, error) {
		sawSlow = svc.Packages.Has("slow")
		return nil, nil
	}, "slow")

	m := env.manager(nil)

	loaded := make(chan *Report, 1)
	go func() {
		loaded <- m.LoadPackages(context.Background(), dirs("fast", "slow"), LoadOptions{})
	}()

	require.Eventually(t, func() bool {
		d, ok := m.Registry().Spec("fast")
		return ok && d.State() == StateInitialized
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case <-loaded:
		t.Fatal("LoadPackages returned before the outstanding completion")
	default:
	}

	close(release)
	report := <-loaded
	assert.True(t, report.OK())
	assert.True(t, sawSlow)

	d, _ := m.Registry().Spec("slow")
	assert.Equal(t, StateInitialized, d.State())
}

func TestLoadPackagesDetach(t *testing.T) {
	env := newTestEnv()
	release := make(chan struct{})
	env.addPackageWith(t, "slow", "slow", func(context.Context, *core.Services) (core.Completion, error) {
		return core.Go(func() error {
			<-release
			return errors.New("late failure")
		}), nil
	})

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("slow"), LoadOptions{Detach: true})
	assert.Empty(t, report.Failures())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, m.Wait(context.Background()))
	require.Len(t, report.Failures(), 1)
	assert.ErrorIs(t, report.Failures()[0].Err, ErrInitialization)
}

func TestLoadPackagesRegisterOnCompletion(t *testing.T) {
	env := newTestEnv()
	env.addPackageWith(t, "base", "base", func(context.Context, *core.Services) (core.Completion, error) {
		return core.Fail(errors.New("not ready")), nil
	})
	env.addPackage(t, "ext", "ext", "base")

	var sawBase bool
	env.addPackageWith(t, "good", "good", func(context.Context, *core.Services) (core.Completion, error) {
		return core.Done(), nil
	})
	env.addPackageWith(t, "user", "user", func(_ context.Context, svc *core.Services) (core.Completion, error) {
		sawBase = svc.Packages.Has("good")
		return nil, nil
	}, "good")

	m := env.manager(nil)
	report := m.LoadPackages(context.Background(), dirs("ext", "base", "user", "good"), LoadOptions{RegisterOnCompletion: true})

	assert.False(t, m.Registry().Has("base"))
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "ext", report.Unresolved[0].Name)
	assert.True(t, sawBase)
	assert.Equal(t, []string{"good", "user"}, m.Registry().Names())
}

func TestLoadPackagesContextCancelled(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "a", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := env.manager(nil)
	report := m.LoadPackages(ctx, dirs("a"), LoadOptions{})

	assert.ErrorIs(t, report.Interrupted, context.Canceled)
	assert.Empty(t, env.invoked())
	assert.ErrorIs(t, report.Err(), context.Canceled)
}

func TestListPackages(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "beta", "beta")
	env.addPackage(t, "alpha", "alpha")
	env.fsys["packages/.git/config"] = &fstest.MapFile{Data: []byte("x")}
	env.fsys["packages/notes.txt"] = &fstest.MapFile{Data: []byte("x")}

	m := env.manager(nil)
	got, err := m.ListPackages("packages")
	require.NoError(t, err)
	assert.Equal(t, dirs("alpha", "beta"), got)

	got, err = m.ListPackages("missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadDir(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "b", "b", "a")
	env.addPackage(t, "a", "a")

	m := env.manager(nil)
	report, err := m.LoadDir(context.Background(), "packages", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, report.Order)
}

func TestLoadPackagesMetrics(t *testing.T) {
	env := newTestEnv()
	env.addPackage(t, "a", "a")
	env.addPackage(t, "b", "b", "ghost")
	env.addPackage(t, "c", "a")
	env.writeManifest(t, "d", map[string]any{"main": "main.go"})

	metrics := NewMetrics("")
	m := env.manager(nil, WithMetrics(metrics))
	m.LoadPackages(context.Background(), dirs("a", "b", "c", "d"), LoadOptions{})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packages.WithLabelValues(ResultInitialized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packages.WithLabelValues(ResultUnresolved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packages.WithLabelValues(ResultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packages.WithLabelValues(ResultFailed)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.pending))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.outstanding))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `luashell_packages_total{result="initialized"} 1`)
}

func TestRegistryPreferences(t *testing.T) {
	env := newTestEnv()
	env.writeManifest(t, "p", map[string]any{
		"name":        "p",
		"main":        "main.go",
		"preferences": map[string]any{"p.show": map[string]any{"label": "Show", "invert": true}},
		"preferenceGroups": map[string]any{
			"P": map[string]any{"p.mode": map[string]any{"type": "choice", "options": []string{"a", "b"}}},
		},
	})
	require.NoError(t, env.resolver.RegisterExports("p", Exports{}))

	m := env.manager(nil)
	m.LoadPackages(context.Background(), dirs("p"), LoadOptions{})

	prefs := m.Registry().Preferences()
	require.Len(t, prefs, 1)
	assert.Equal(t, "p.show", prefs[0].Key)
	assert.True(t, prefs[0].Invert)

	groups := m.Registry().PreferenceGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "P", groups[0].Name)
	assert.Equal(t, []string{"a", "b"}, groups[0].Preferences[0].Options)
}
