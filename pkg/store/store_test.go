package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/pkg/structure"
)

func testModel() *structure.Model {
	root := structure.NewNode("proj", ".")
	docs := structure.NewNode("docs", "docs")
	root.Subdirs = append(root.Subdirs, docs)
	root.Files = append(root.Files,
		structure.NewFileEntry("README.md", []byte("# {project_name}"), time.Unix(100, 0).UTC()),
	)
	docs.Files = append(docs.Files,
		structure.NewFileEntry("docs/guide.md", []byte("guide"), time.Unix(100, 0).UTC()),
	)
	m := structure.NewModel("proj", root)
	m.Description = "a test template"
	return m
}

func rewriteDocument(t *testing.T, path, old, replacement string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), old)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), old, replacement, 1)), 0644))
}

func TestStore_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		saveAs   string
		wantFile string
	}{
		{name: "default_json", saveAs: "proj", wantFile: "proj.json"},
		{name: "explicit_yaml", saveAs: "proj.yaml", wantFile: "proj.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := New(t.TempDir())

			path, err := s.Save(ctx, testModel(), tt.saveAs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, filepath.Base(path))

			loaded, err := s.Load(ctx, tt.saveAs)
			require.NoError(t, err)
			assert.True(t, testModel().Equal(loaded), "loaded template should equal the saved one")
			assert.Equal(t, structure.FormatVersion, loaded.FormatVersion)
			assert.Equal(t, "a test template", loaded.Description)
		})
	}
}

func TestStore_LoadByBareName(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	_, err := s.Save(ctx, testModel(), "proj.yaml")
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, "proj", loaded.Name)
}

func TestStore_NotFound(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	err = s.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestStore_InvalidNames(t *testing.T) {
	s := New(t.TempDir())
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := s.Load(context.Background(), name)
		assert.Error(t, err, "name %q should be rejected", name)
	}
}

func TestStore_UnsupportedFormatVersion(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	path, err := s.Save(ctx, testModel(), "proj")
	require.NoError(t, err)

	rewriteDocument(t, path, `"format_version": "1.0"`, `"format_version": "2.0"`)

	_, err = s.Load(ctx, "proj")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateFormat))
	assert.Contains(t, err.Error(), "2.0")
}

func TestStore_MinorVersionAccepted(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	path, err := s.Save(ctx, testModel(), "proj")
	require.NoError(t, err)

	rewriteDocument(t, path, `"format_version": "1.0"`, `"format_version": "1.7"`)

	_, err = s.Load(ctx, "proj")
	assert.NoError(t, err, "same major version should load")
}

func TestStore_ChecksumTamperDetected(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	path, err := s.Save(ctx, testModel(), "proj")
	require.NoError(t, err)

	rewriteDocument(t, path, "# {project_name}", "# tampered")

	_, err = s.Load(ctx, "proj")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateFormat))
	assert.Contains(t, err.Error(), "checksum mismatch")

	// Verification can be switched off for forensic loads.
	loaded, err := New(s.dir, WithoutChecksumVerify()).Load(ctx, "proj")
	require.NoError(t, err)
	assert.Equal(t, "# tampered", loaded.FileIndex()["README.md"].Content)
}

func TestStore_MalformedDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	_, err := New(dir).Load(context.Background(), "broken")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateFormat))
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir)

	_, err := s.Save(ctx, testModel(), "zeta")
	require.NoError(t, err)
	second := testModel()
	second.Name = "alpha"
	_, err = s.Save(ctx, second, "alpha")
	require.NoError(t, err)

	// Broken documents are listed rather than hidden.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))
	// Files the store does not understand are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)

	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "broken", infos[1].Name)
	assert.Equal(t, "zeta", infos[2].Name)

	assert.Equal(t, 2, infos[0].Files)
	assert.Equal(t, 1, infos[0].Subdirs)
	assert.Equal(t, "a test template", infos[0].Description)
	assert.Contains(t, infos[1].Description, "error:")
}

func TestStore_ListEmptyDir(t *testing.T) {
	infos, err := New(filepath.Join(t.TempDir(), "nothing-here")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())

	_, err := s.Save(ctx, testModel(), "proj")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "proj"))

	_, err = s.Load(ctx, "proj")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestStore_SaveRejectsInvalidModel(t *testing.T) {
	root := structure.NewNode("proj", ".")
	root.Files = append(root.Files,
		structure.NewFileEntry("wrong/place.txt", nil, time.Now()),
	)
	model := structure.NewModel("proj", root)

	_, err := New(t.TempDir()).Save(context.Background(), model, "proj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating model")
}
