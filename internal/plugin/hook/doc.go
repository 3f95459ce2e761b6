// Package hook provides the named multi-subscriber hook registry packages
// use to extend host behavior.
//
// A hook is a name such as "update" or "browser". Any number of functions
// may be installed under a hook; Exec calls them in installation order and
// returns every result so the caller decides whether to use the first, all,
// or none of them.
//
//	id, _ := hooks.Install("browser", "my-package", func(ctx context.Context, args ...any) (any, error) {
//	    return openURL(args[0].(string)), nil
//	})
//	results, ok := hooks.Exec(ctx, "browser", "https://example.com")
package hook
