package core

import "path/filepath"

// FileReader reads whole files. plugin.FileSystem satisfies it.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// Utils bundles helpers shared with packages.
type Utils struct {
	files FileReader
	root  string
}

// NewUtils creates helpers that read through files and know the packages
// root directory.
func NewUtils(files FileReader, root string) *Utils {
	return &Utils{files: files, root: root}
}

// PackagesRoot returns the directory packages were discovered in.
func (u *Utils) PackagesRoot() string {
	return u.root
}

// ResolvePath joins rel onto dir unless rel is already absolute.
func (u *Utils) ResolvePath(dir, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(dir, rel)
}

// ReadFile reads a file through the host file system.
func (u *Utils) ReadFile(path string) ([]byte, error) {
	return u.files.ReadFile(path)
}
