// Package security confines package file access.
//
// A PathPolicy holds allowed and blocked directory trees. Blocked trees take
// precedence; with no allowed trees every unblocked path is permitted.
//
//	policy := security.NewPathPolicy("theme")
//	policy.Allow("/home/me/.config/luashell/packages/theme")
//	if err := policy.CheckRead(path); err != nil {
//	    // access denied
//	}
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ErrAccessDenied is wrapped by every AccessError.
var ErrAccessDenied = errors.New("access denied")

// AccessError reports a refused file operation.
type AccessError struct {
	Package   string
	Operation string
	Path      string
	Reason    string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", e.Package, e.Operation, e.Path, e.Reason)
}

// Unwrap returns ErrAccessDenied.
func (e *AccessError) Unwrap() error {
	return ErrAccessDenied
}

// PathPolicy decides which paths a package may read.
type PathPolicy struct {
	mu      sync.RWMutex
	pkg     string
	allowed []string
	blocked []string
}

// NewPathPolicy creates an empty policy for the named package.
func NewPathPolicy(pkg string) *PathPolicy {
	return &PathPolicy{pkg: pkg}
}

// Allow adds a directory tree to the allowed list. Empty paths are ignored.
func (p *PathPolicy) Allow(path string) {
	if path == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowed = append(p.allowed, normalizePath(path))
}

// Block adds a directory tree to the blocked list.
func (p *PathPolicy) Block(path string) {
	if path == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked = append(p.blocked, normalizePath(path))
}

// CheckRead returns an *AccessError when reading path is not permitted.
func (p *PathPolicy) CheckRead(path string) error {
	return p.check(path, "read")
}

func (p *PathPolicy) check(path, operation string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	target := normalizePath(path)

	for _, b := range p.blocked {
		if isWithinPath(target, b) {
			return &AccessError{Package: p.pkg, Operation: operation, Path: path, Reason: "path is blocked"}
		}
	}

	if len(p.allowed) == 0 {
		return nil
	}
	for _, a := range p.allowed {
		if isWithinPath(target, a) {
			return nil
		}
	}
	return &AccessError{Package: p.pkg, Operation: operation, Path: path, Reason: "path not in allowed list"}
}

// normalizePath returns an absolute, clean path.
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// isWithinPath checks if target is within or equal to base.
// "/tmp/blocked" does not contain "/tmp/blockedfile".
func isWithinPath(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
