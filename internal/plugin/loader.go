package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileSystem is the file access the loader needs.
// fstest.MapFS satisfies it.
type FileSystem interface {
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
}

// OSFS reads the real filesystem.
type OSFS struct{}

// ReadDir implements FileSystem.
func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Loader reads a package directory into a Descriptor with its module attached.
type Loader struct {
	fs       FileSystem
	resolver ModuleResolver
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFileSystem sets the file system packages are read from.
func WithFileSystem(fsys FileSystem) LoaderOption {
	return func(l *Loader) {
		l.fs = fsys
	}
}

// NewLoader creates a loader resolving modules with resolver.
func NewLoader(resolver ModuleResolver, opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:       OSFS{},
		resolver: resolver,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// FileSystem returns the loader's file system.
func (l *Loader) FileSystem() FileSystem {
	return l.fs
}

// LoadPackage reads the manifest in dir and resolves its module.
// A manifest failure returns a nil descriptor. A module failure returns the
// descriptor in StateFailed together with the error.
func (l *Loader) LoadPackage(ctx context.Context, dir string) (*Descriptor, error) {
	m, err := ReadManifest(l.fs, dir)
	if err != nil {
		return nil, err
	}

	d := newDescriptor(m)
	mod, err := l.resolve(ctx, d)
	if err == nil && mod == nil {
		err = errors.New("resolver returned no module")
	}
	if err != nil {
		perr := &PackageError{
			Dir:     dir,
			Package: m.Name,
			Op:      "load module",
			Err:     fmt.Errorf("%w: %w", ErrModuleLoad, err),
		}
		_ = d.fail(perr)
		return d, perr
	}

	if err := d.attach(mod); err != nil {
		return d, err
	}
	return d, nil
}

// resolve calls the resolver, converting a panic during module evaluation
// into an error.
func (l *Loader) resolve(ctx context.Context, d *Descriptor) (mod Module, err error) {
	if l.resolver == nil {
		return nil, ErrNoResolver
	}
	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return l.resolver.Resolve(ctx, d)
}
