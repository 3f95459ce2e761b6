// Package core defines the contract between the luashell host and its
// packages.
//
// Every package entry point receives a *Services bundle. The bundle carries
// the embedded interpreter session, the settings store, the hook registry,
// a shared constants table, utility helpers and a read-only view of the
// packages loaded so far.
//
// An entry point looks like:
//
//	func initPackage(ctx context.Context, svc *core.Services) (core.Completion, error) {
//	    svc.Hooks.Install("update", "my-package", onUpdate)
//	    return nil, nil // nil Completion: initialization finished synchronously
//	}
//
// Entry points that finish asynchronously return a Completion that delivers
// exactly one value (nil on success) and is then closed. core.Go builds one
// from a function.
package core
