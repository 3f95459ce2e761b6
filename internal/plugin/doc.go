// Package plugin implements the luashell package loader.
//
// A package is a directory holding a package.json manifest and an entry
// module:
//
//	packages/pager/
//	├── package.json
//	└── pager.lua
//
// The manifest names the package, its entry module and the packages it
// depends on:
//
//	{
//	  "name": "pager",
//	  "main": "pager.lua",
//	  "packageDependencies": ["stacked-pane"],
//	  "preferences": {
//	    "pager.lines": {"default": 40, "label": "Lines per page"}
//	  }
//	}
//
// # Loading
//
// Manager.LoadPackages walks the package directories in the order given.
// Each package is read (manifest + module) and then either initialized at
// once, when every dependency is already registered, or parked in the
// pending queue. After the walk the pending queue is rescanned from the
// start, initializing the first package whose dependencies are now present,
// until a full scan makes no progress. Whatever remains is reported as
// unresolvable. No per-package failure stops the walk.
//
// # Package states
//
//	StateUnresolved -> StateLoaded -> StateInitializing -> StateInitialized
//	                        \-> StatePending -/
//	StateUnresolved -> StateFailed
//	StatePending    -> StateUnresolvable
//
// # Modules
//
// Entry modules are produced by a ModuleResolver. FactoryResolver maps
// package names to Go factories; the lua subpackage resolves ".lua" entry
// files into sandboxed Lua states. ChainResolver and ExtResolver combine
// them.
package plugin
