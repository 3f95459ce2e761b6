// Package lua resolves Lua entry modules for the package loader and
// provides the shared Lua session used as the host runtime.
//
// A Lua package's main file is evaluated in its own sandboxed State. The
// module exports either the table the chunk returns or, when it returns
// nothing, the global functions it defines:
//
//	-- pager.lua
//	local M = {}
//
//	function M.init(core)
//	    local lines = core.settings.get("pager.lines")
//	    core.hooks.install("page", function(text)
//	        return text:sub(1, lines)
//	    end)
//	end
//
//	return M
//
// The entry point receives the core table (settings, hooks, packages,
// constants, runtime, log). It finishes synchronously unless it returns a
// function, which then runs as the package's asynchronous completion.
// Returning false (optionally followed by a message) fails the
// initialization, as does raising a Lua error.
//
// # Sandbox
//
// States open only the base, table, string, math and package libraries.
// dofile, loadfile, load and loadstring are removed, require only serves
// the safe built-in libraries and modules preloaded by the host, and print
// is routed to the package logger.
//
// # Concurrency
//
// A State serializes calls with a mutex. Calls made from Go callbacks that
// run inside the same State (a hook installed by a package and executed by
// that package) re-enter it without locking; the context handed to those
// callbacks carries the marker that allows it.
package lua
