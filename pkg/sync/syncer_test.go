package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/pkg/config"
	"github.com/walteh/structsync/pkg/pathsafe"
	"github.com/walteh/structsync/pkg/structure"
)

func testRules() config.SyncRules {
	rules := config.DefaultSyncRules()
	rules.ExcludePatterns = nil
	return rules
}

// projectModel builds the canonical template: a README with a variable
// token plus an empty docs directory.
func projectModel() *structure.Model {
	root := structure.NewNode("proj", ".")
	root.Files = append(root.Files,
		structure.NewFileEntry("README.md", []byte("# {project_name}"), time.Unix(100, 0).UTC()),
	)
	root.Subdirs = append(root.Subdirs, structure.NewNode("docs", "docs"))
	return structure.NewModel("proj", root)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSync_Materialize(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	vars := map[string]string{"project_name": "Acme"}

	report, err := New(testRules()).Sync(context.Background(), projectModel(), target, vars)
	require.NoError(t, err)

	assert.Equal(t, "# Acme", readFile(t, filepath.Join(target, "README.md")))
	assert.DirExists(t, filepath.Join(target, "docs"))

	assert.Equal(t, 2, report.Created, "one file and one directory created")
	assert.Zero(t, report.Overwritten)
	assert.Zero(t, report.Failed)
	assert.Empty(t, report.UnresolvedVars)
	assert.True(t, report.Ok())
}

func TestSync_IdempotentWithPreserve(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	vars := map[string]string{"project_name": "Acme"}
	syncer := New(testRules())

	_, err := syncer.Sync(context.Background(), projectModel(), target, vars)
	require.NoError(t, err)

	report, err := syncer.Sync(context.Background(), projectModel(), target, vars)
	require.NoError(t, err)

	assert.Zero(t, report.Overwritten, "second run must not overwrite")
	assert.Zero(t, report.Created)
	assert.Equal(t, 1, report.Preserved)
	assert.Equal(t, "# Acme", readFile(t, filepath.Join(target, "README.md")))
}

func TestSync_OverwriteWithBackup(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "out")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "README.md"), []byte("original"), 0644))

	rules := testRules()
	rules.PreserveExisting = false
	rules.BackupBeforeSync = true

	report, err := New(rules).Sync(context.Background(), projectModel(), target,
		map[string]string{"project_name": "Acme"})
	require.NoError(t, err)

	assert.Equal(t, "# Acme", readFile(t, filepath.Join(target, "README.md")))
	assert.Equal(t, 1, report.Overwritten)
	assert.Equal(t, 1, report.BackedUp)
	require.NotEmpty(t, report.BackupDir)
	assert.Equal(t, "original", readFile(t, filepath.Join(report.BackupDir, "README.md")))
}

func TestSync_OverwriteWithoutBackup(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "README.md"), []byte("original"), 0644))

	rules := testRules()
	rules.PreserveExisting = false
	rules.BackupBeforeSync = false

	report, err := New(rules).Sync(context.Background(), projectModel(), target,
		map[string]string{"project_name": "Acme"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Overwritten)
	assert.Zero(t, report.BackedUp)
	assert.Empty(t, report.BackupDir)
}

func TestSync_UnresolvedVariablesAreWarnings(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")

	report, err := New(testRules()).Sync(context.Background(), projectModel(), target, nil)
	require.NoError(t, err)

	// The file is still written, tokens intact.
	assert.Equal(t, "# {project_name}", readFile(t, filepath.Join(target, "README.md")))
	assert.Equal(t, []string{"project_name"}, report.UnresolvedVars)
	assert.True(t, report.Ok())
}

func TestSync_TemplatedPaths(t *testing.T) {
	root := structure.NewNode("proj", ".")
	root.Files = append(root.Files,
		structure.NewFileEntry("{project_name}.md", []byte("doc"), time.Unix(100, 0).UTC()),
	)
	model := structure.NewModel("proj", root)

	target := filepath.Join(t.TempDir(), "out")
	_, err := New(testRules()).Sync(context.Background(), model, target,
		map[string]string{"project_name": "Acme"})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(target, "Acme.md"))
}

func TestSync_PathTraversalThroughVariableAborts(t *testing.T) {
	root := structure.NewNode("proj", ".")
	root.Files = append(root.Files,
		structure.NewFileEntry("{name}.txt", []byte("evil"), time.Unix(100, 0).UTC()),
	)
	model := structure.NewModel("proj", root)

	base := t.TempDir()
	target := filepath.Join(base, "out")

	report, err := New(testRules()).Sync(context.Background(), model, target,
		map[string]string{"name": "../escape"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, pathsafe.ErrPathTraversal))
	assert.Equal(t, 1, report.Failed)
	assert.NoFileExists(t, filepath.Join(base, "escape.txt"))
}

func TestSync_SkipsOmittedContent(t *testing.T) {
	root := structure.NewNode("proj", ".")
	root.Files = append(root.Files, structure.NewOmittedFileEntry("huge.bin", time.Unix(100, 0).UTC()))
	model := structure.NewModel("proj", root)

	target := filepath.Join(t.TempDir(), "out")
	report, err := New(testRules()).Sync(context.Background(), model, target, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.NoFileExists(t, filepath.Join(target, "huge.bin"))
}

func TestSync_StrictModeFailsOnEntryError(t *testing.T) {
	root := structure.NewNode("proj", ".")
	root.Files = append(root.Files,
		structure.NewFileEntry("blocked/file.txt", []byte("x"), time.Unix(100, 0).UTC()),
	)
	sub := structure.NewNode("blocked", "blocked")
	root.Subdirs = append(root.Subdirs, sub)
	model := structure.NewModel("proj", root)

	// A regular file where the model wants a directory forces a write
	// failure on everything beneath it.
	target := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "blocked"), []byte("wall"), 0644))

	report, err := New(testRules(), WithStrict()).Sync(context.Background(), model, target, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed entries")
	assert.NotZero(t, report.Failed)

	// Best-effort mode surfaces the same failures only via the report.
	report, err = New(testRules()).Sync(context.Background(), model, target, nil)
	require.NoError(t, err)
	assert.False(t, report.Ok())
}

func TestSync_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := filepath.Join(t.TempDir(), "out")
	report, err := New(testRules()).Sync(ctx, projectModel(), target, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, report)
}

func TestSync_InvalidModelRejected(t *testing.T) {
	root := structure.NewNode("proj", ".")
	root.Files = append(root.Files,
		structure.NewFileEntry("wrong/place.txt", []byte("x"), time.Unix(100, 0).UTC()),
	)
	model := structure.NewModel("proj", root)

	target := filepath.Join(t.TempDir(), "out")
	_, err := New(testRules()).Sync(context.Background(), model, target, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating model")
}
