package lua

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luashell/internal/core"
	"github.com/dshills/luashell/internal/plugin/hook"
	"github.com/dshills/luashell/internal/plugin/security"
)

// coreAPI builds the core table handed to a Lua entry point.
//
//	core.package                      -- package name
//	core.settings.get(key)            -> value or nil
//	core.settings.set(key, value)     -- nil deletes
//	core.settings.has(key)            -> bool
//	core.settings.keys()              -> {key...}
//	core.hooks.install(hook, fn[, name]) -> id
//	core.hooks.remove(hook[, name])   -> bool
//	core.hooks.exec(hook, ...)        -> {result...} or false
//	core.packages.has(name)           -> bool
//	core.packages.names()             -> {name...}
//	core.constants                    -- table
//	core.runtime.name, core.runtime.eval(code) -> value
//	core.utils.resolve(rel), core.utils.read(path), core.utils.root()
//	                                  -- read is confined to the package dir and packages root
//	core.log.debug|info|warn|error(msg, key, value, ...)
type coreAPI struct {
	module *Module
	svc    *core.Services
	logger *log.Logger
	reads  *security.PathPolicy
}

func newCoreAPI(m *Module, svc *core.Services) *coreAPI {
	logger := svc.Logger
	if logger == nil {
		logger = log.Default().With("package", m.name)
	}

	reads := security.NewPathPolicy(m.name)
	reads.Allow(m.dir)
	if svc.Utils != nil {
		reads.Allow(svc.Utils.PackagesRoot())
	}
	return &coreAPI{module: m, svc: svc, logger: logger, reads: reads}
}

func (a *coreAPI) table(L *lua.LState) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "package", lua.LString(a.module.name))

	L.SetField(tbl, "settings", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":  a.settingsGet,
		"set":  a.settingsSet,
		"has":  a.settingsHas,
		"keys": a.settingsKeys,
	}))

	L.SetField(tbl, "hooks", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"install": a.hooksInstall,
		"remove":  a.hooksRemove,
		"exec":    a.hooksExec,
	}))

	L.SetField(tbl, "packages", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"has":   a.packagesHas,
		"names": a.packagesNames,
	}))

	consts := L.NewTable()
	for _, k := range a.svc.Constants.Keys() {
		consts.RawSetString(k, a.module.bridge.ToLuaValue(a.svc.Constants[k]))
	}
	L.SetField(tbl, "constants", consts)

	runtime := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"eval": a.runtimeEval,
	})
	if a.svc.Runtime != nil {
		L.SetField(runtime, "name", lua.LString(a.svc.Runtime.Name()))
	}
	L.SetField(tbl, "runtime", runtime)

	L.SetField(tbl, "utils", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"resolve": a.utilsResolve,
		"read":    a.utilsRead,
		"root":    a.utilsRoot,
	}))

	L.SetField(tbl, "log", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"debug": a.logAt(log.DebugLevel),
		"info":  a.logAt(log.InfoLevel),
		"warn":  a.logAt(log.WarnLevel),
		"error": a.logAt(log.ErrorLevel),
	}))

	return tbl
}

// settings.get(key) -> value or nil
func (a *coreAPI) settingsGet(L *lua.LState) int {
	key := L.CheckString(1)
	if a.svc.Settings == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := a.svc.Settings.Get(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(a.module.bridge.ToLuaValue(v))
	return 1
}

// settings.set(key, value)
func (a *coreAPI) settingsSet(L *lua.LState) int {
	key := L.CheckString(1)
	if a.svc.Settings == nil {
		L.RaiseError("settings.set: no settings store")
		return 0
	}
	value := a.module.bridge.ToGoValue(L.Get(2))
	if err := a.svc.Settings.SetFrom(key, value, a.module.name); err != nil {
		L.RaiseError("settings.set: %v", err)
	}
	return 0
}

// settings.has(key) -> bool
func (a *coreAPI) settingsHas(L *lua.LState) int {
	key := L.CheckString(1)
	L.Push(lua.LBool(a.svc.Settings != nil && a.svc.Settings.Has(key)))
	return 1
}

// settings.keys() -> {key...}
func (a *coreAPI) settingsKeys(L *lua.LState) int {
	var keys []string
	if a.svc.Settings != nil {
		keys = a.svc.Settings.Keys()
	}
	L.Push(a.module.bridge.StringsToTable(keys))
	return 1
}

// hooks.install(hook, fn[, name]) -> id
func (a *coreAPI) hooksInstall(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	owner := L.OptString(3, a.module.name)

	if a.svc.Hooks == nil {
		L.RaiseError("hooks.install: no hook registry")
		return 0
	}

	id, err := a.svc.Hooks.Install(name, owner, a.hookFunc(fn))
	if err != nil {
		L.RaiseError("hooks.install: %v", err)
		return 0
	}
	L.Push(lua.LString(id))
	return 1
}

// hookFunc adapts a Lua function to a hook subscriber. The first result is
// the hook value; a Lua error becomes the hook error.
func (a *coreAPI) hookFunc(fn *lua.LFunction) hook.Func {
	state := a.module.state
	bridge := a.module.bridge
	return func(ctx context.Context, args ...any) (any, error) {
		var largs []lua.LValue
		if err := state.Do(ctx, func(*lua.LState) error {
			largs = bridge.ToLuaValues(args)
			return nil
		}); err != nil {
			return nil, err
		}

		results, err := state.Call(ctx, fn, largs...)
		if err != nil || len(results) == 0 {
			return nil, err
		}

		var v any
		_ = state.Do(ctx, func(*lua.LState) error {
			v = bridge.ToGoValue(results[0])
			return nil
		})
		return v, nil
	}
}

// hooks.remove(hook[, name]) -> bool
func (a *coreAPI) hooksRemove(L *lua.LState) int {
	name := L.CheckString(1)
	owner := L.OptString(2, a.module.name)
	removed := a.svc.Hooks != nil && a.svc.Hooks.Remove(name, owner)
	L.Push(lua.LBool(removed))
	return 1
}

// hooks.exec(hook, ...) -> {result...} or false
// Failed subscribers contribute nil.
func (a *coreAPI) hooksExec(L *lua.LState) int {
	name := L.CheckString(1)
	if a.svc.Hooks == nil {
		L.Push(lua.LFalse)
		return 1
	}

	args := make([]any, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, a.module.bridge.ToGoValue(L.Get(i)))
	}

	results, ok := a.svc.Hooks.Exec(a.module.state.Context(), name, args...)
	if !ok {
		L.Push(lua.LFalse)
		return 1
	}

	out := L.NewTable()
	for i, r := range results {
		if r.Err != nil {
			a.logger.Warn("hook failed", "hook", name, "installer", r.Name, "err", r.Err)
			out.RawSetInt(i+1, lua.LNil)
			continue
		}
		out.RawSetInt(i+1, a.module.bridge.ToLuaValue(r.Value))
	}
	L.Push(out)
	return 1
}

// packages.has(name) -> bool
func (a *coreAPI) packagesHas(L *lua.LState) int {
	name := L.CheckString(1)
	L.Push(lua.LBool(a.svc.Packages != nil && a.svc.Packages.Has(name)))
	return 1
}

// packages.names() -> {name...}
func (a *coreAPI) packagesNames(L *lua.LState) int {
	var names []string
	if a.svc.Packages != nil {
		names = a.svc.Packages.Names()
	}
	L.Push(a.module.bridge.StringsToTable(names))
	return 1
}

// runtime.eval(code) -> value
func (a *coreAPI) runtimeEval(L *lua.LState) int {
	code := L.CheckString(1)
	if a.svc.Runtime == nil {
		L.RaiseError("runtime.eval: no runtime")
		return 0
	}
	v, err := a.svc.Runtime.Eval(a.module.state.Context(), code)
	if err != nil {
		L.RaiseError("runtime.eval: %v", err)
		return 0
	}
	L.Push(a.module.bridge.ToLuaValue(v))
	return 1
}

// utils.resolve(rel) -> path relative to the package directory
func (a *coreAPI) utilsResolve(L *lua.LState) int {
	rel := L.CheckString(1)
	if a.svc.Utils == nil {
		L.Push(lua.LString(rel))
		return 1
	}
	L.Push(lua.LString(a.svc.Utils.ResolvePath(a.module.dir, rel)))
	return 1
}

// utils.read(path) -> contents or nil, error
func (a *coreAPI) utilsRead(L *lua.LState) int {
	p := L.CheckString(1)
	if a.svc.Utils == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("no utils"))
		return 2
	}
	path := a.svc.Utils.ResolvePath(a.module.dir, p)
	if err := a.reads.CheckRead(path); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	data, err := a.svc.Utils.ReadFile(path)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LString(data))
	return 1
}

// utils.root() -> packages root directory
func (a *coreAPI) utilsRoot(L *lua.LState) int {
	if a.svc.Utils == nil {
		L.Push(lua.LString(""))
		return 1
	}
	L.Push(lua.LString(a.svc.Utils.PackagesRoot()))
	return 1
}

// log.<level>(msg, key, value, ...)
func (a *coreAPI) logAt(level log.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		var kv []any
		for i := 2; i <= L.GetTop(); i++ {
			v := a.module.bridge.ToGoValue(L.Get(i))
			if i%2 == 0 {
				kv = append(kv, fmt.Sprint(v))
				continue
			}
			kv = append(kv, v)
		}
		a.logger.Log(level, msg, kv...)
		return 0
	}
}
