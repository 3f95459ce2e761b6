package plugin

import (
	"errors"
	"fmt"
)

// Package loader errors.
var (
	// ErrManifestMissing is returned when a package directory has no manifest.
	ErrManifestMissing = errors.New("manifest missing")

	// ErrManifestMalformed is returned when a manifest cannot be parsed.
	ErrManifestMalformed = errors.New("manifest malformed")

	// ErrManifestIncomplete is returned when name or main is absent.
	ErrManifestIncomplete = errors.New("manifest incomplete")

	// ErrModuleLoad is returned when a package's entry module cannot be loaded.
	ErrModuleLoad = errors.New("module load failed")

	// ErrDependencyUnresolved marks packages left pending when loading ends.
	ErrDependencyUnresolved = errors.New("dependency unresolved")

	// ErrInitialization is returned when an entry point fails.
	ErrInitialization = errors.New("initialization failed")

	// ErrNoResolver is returned by a ModuleResolver that does not handle a package.
	ErrNoResolver = errors.New("no module resolver")

	// ErrIllegalTransition is returned when a package state would regress.
	ErrIllegalTransition = errors.New("illegal package state transition")

	// ErrDuplicateFactory is returned when a factory name is registered twice.
	ErrDuplicateFactory = errors.New("factory already registered")
)

// PackageError describes a failure contained to one package.
type PackageError struct {
	Dir     string // package directory
	Package string // package name, empty if the manifest was unreadable
	Op      string // "read manifest", "load module", "initialize", "resolve"
	Err     error
}

func (e *PackageError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("package %q: %s: %v", e.Package, e.Op, e.Err)
	}
	return fmt.Sprintf("package dir %s: %s: %v", e.Dir, e.Op, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}
