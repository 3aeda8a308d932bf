// Package pathsafe validates template-supplied paths before any
// filesystem operation touches them. A Guard is bound to one root
// directory; every candidate relative path is normalized, bounded, and
// symlink-resolved, and must land inside that root.
package pathsafe

import (
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrPathTraversal is returned when a candidate path would resolve
	// outside the guard's root without involving a symlink.
	ErrPathTraversal = errors.Base("path escapes root")

	// ErrUnsafeSymlink is returned when a symlink along the candidate
	// path resolves outside the guard's root.
	ErrUnsafeSymlink = errors.Base("symlink resolves outside root")
)

// DefaultMaxComponents bounds the number of path components a candidate
// path may have. It caps traversal recursion on pathological inputs.
const DefaultMaxComponents = 64

// Guard validates candidate relative paths against a single root
// directory. The root must exist when the guard is created.
type Guard struct {
	root          string // absolute, cleaned
	resolvedRoot  string // root with symlinks resolved
	maxComponents int
}

// Option configures a Guard.
type Option func(*Guard)

// WithMaxComponents overrides the component-count bound.
func WithMaxComponents(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxComponents = n
		}
	}
}

// NewGuard creates a guard for the given root directory.
func NewGuard(root string, opts ...Option) (*Guard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Errorf("resolving root %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.Errorf("resolving root symlinks %q: %w", abs, err)
	}
	g := &Guard{
		root:          abs,
		resolvedRoot:  resolved,
		maxComponents: DefaultMaxComponents,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Root returns the guard's absolute root path.
func (g *Guard) Root() string {
	return g.root
}

// Resolve validates rel against the root and returns the absolute path
// it designates. It fails with ErrPathTraversal when rel is absolute,
// contains a ".." segment after normalization, or exceeds the component
// bound, and with ErrUnsafeSymlink when an existing symlink along the
// path points outside the root.
func (g *Guard) Resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return g.root, nil
	}
	if filepath.IsAbs(filepath.FromSlash(rel)) {
		return "", errors.Errorf("%w: absolute path %q supplied as relative", ErrPathTraversal, rel)
	}

	clean := filepath.Clean(filepath.FromSlash(rel))
	segments := strings.Split(clean, string(filepath.Separator))
	if len(segments) > g.maxComponents {
		return "", errors.Errorf("%w: path %q exceeds %d components", ErrPathTraversal, rel, g.maxComponents)
	}
	for _, seg := range segments {
		if seg == ".." {
			return "", errors.Errorf("%w: path %q contains a parent-directory segment", ErrPathTraversal, rel)
		}
	}

	abs := filepath.Join(g.root, clean)

	// Resolve any symlinks in the portion of the path that already
	// exists and re-check containment against the resolved root.
	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", errors.Errorf("resolving %q: %w", abs, err)
	}
	if !within(resolved, g.resolvedRoot) {
		return "", errors.Errorf("%w: %q resolves to %q", ErrUnsafeSymlink, rel, resolved)
	}
	return abs, nil
}

// ResolveSymlink validates a symlink at rel by fully resolving its
// target and checking the target is still inside the root. It returns
// the resolved target path.
func (g *Guard) ResolveSymlink(rel string) (string, error) {
	abs, err := g.Resolve(rel)
	if err != nil {
		return "", err
	}
	target, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", errors.Errorf("resolving symlink %q: %w", abs, err)
	}
	if !within(target, g.resolvedRoot) {
		return "", errors.Errorf("%w: symlink %q targets %q", ErrUnsafeSymlink, rel, target)
	}
	return target, nil
}

// resolveExisting resolves symlinks over the longest existing prefix of
// abs and rejoins the non-existing remainder unchanged. EvalSymlinks
// alone fails on paths that do not exist yet, which is the normal case
// for sync targets.
func resolveExisting(abs string) (string, error) {
	remainder := ""
	current := abs
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Walked off the top without finding an existing prefix.
			return filepath.Join(abs), nil
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// within reports whether p equals root or sits beneath it.
func within(p, root string) bool {
	if p == root {
		return true
	}
	return strings.HasPrefix(p, root+string(filepath.Separator))
}
