package pathsafe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestGuard_Resolve(t *testing.T) {
	root := t.TempDir()
	guard, err := NewGuard(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		rel     string
		wantErr error
	}{
		{name: "empty_is_root", rel: ""},
		{name: "dot_is_root", rel: "."},
		{name: "simple_file", rel: "README.md"},
		{name: "nested_path", rel: "docs/guide/intro.md"},
		{name: "nonexistent_path_is_fine", rel: "not/created/yet.txt"},
		{name: "interior_dotdot_that_stays_inside", rel: "docs/../README.md"},
		{name: "absolute_rejected", rel: "/etc/passwd", wantErr: ErrPathTraversal},
		{name: "parent_escape_rejected", rel: "../outside", wantErr: ErrPathTraversal},
		{name: "deep_escape_rejected", rel: "docs/../../outside", wantErr: ErrPathTraversal},
		{name: "dotdot_only", rel: "..", wantErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, err := guard.Resolve(tt.rel)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "error should wrap %v, got %v", tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(abs, root), "resolved path should stay under root")
		})
	}
}

func TestGuard_Resolve_ComponentBound(t *testing.T) {
	root := t.TempDir()
	guard, err := NewGuard(root, WithMaxComponents(3))
	require.NoError(t, err)

	_, err = guard.Resolve("a/b/c")
	require.NoError(t, err)

	_, err = guard.Resolve("a/b/c/d")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathTraversal))
}

func TestGuard_Resolve_SymlinkEscape(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0644))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	guard, err := NewGuard(root)
	require.NoError(t, err)

	// Paths through an escaping symlink are rejected even when the
	// final component does not exist yet.
	_, err = guard.Resolve("link/secret.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeSymlink), "expected unsafe symlink error, got %v", err)

	_, err = guard.Resolve("link/new-file.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeSymlink))
}

func TestGuard_Resolve_SymlinkInsideRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "real"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")))

	guard, err := NewGuard(root)
	require.NoError(t, err)

	_, err = guard.Resolve("alias/file.txt")
	assert.NoError(t, err, "symlink staying inside root should be allowed")
}

func TestGuard_ResolveSymlink(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(root, 0755))
	require.NoError(t, os.MkdirAll(outside, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inner"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(root, "inner"), filepath.Join(root, "good")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "bad")))

	guard, err := NewGuard(root)
	require.NoError(t, err)

	target, err := guard.ResolveSymlink("good")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(target, root))

	_, err = guard.ResolveSymlink("bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsafeSymlink))
}

func TestNewGuard_MissingRoot(t *testing.T) {
	_, err := NewGuard(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
