// Package scan walks a real directory tree and produces a structure
// model, applying exclusion rules, symlink policy, and size bounds.
package scan

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/pkg/config"
	"github.com/walteh/structsync/pkg/pathsafe"
	"github.com/walteh/structsync/pkg/structure"
	"github.com/walteh/structsync/pkg/text"
)

// EntryError records a non-fatal failure on a single entry during a
// scan. The scan continues past these; they are surfaced alongside the
// model so a caller can decide remediation.
type EntryError struct {
	Path string `json:"path" yaml:"path"`
	Err  string `json:"error" yaml:"error"`
}

// Scanner walks directories into structure models.
type Scanner struct {
	rules config.SyncRules
}

// New creates a scanner with the given rules.
func New(rules config.SyncRules) *Scanner {
	return &Scanner{rules: rules}
}

// Scan walks root depth-first and returns the resulting model plus any
// non-fatal per-entry errors. It fails outright only when root itself is
// inaccessible, when ctx is cancelled, or when a security-relevant path
// violation is found: a symlink escaping the root, or any symlink at all
// under the "error" policy.
func (s *Scanner) Scan(ctx context.Context, root string) (*structure.Model, []EntryError, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("root", root).Msg("scanning structure")

	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, errors.Errorf("scanning root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, nil, errors.Errorf("scanning root %q: not a directory", root)
	}

	guard, err := pathsafe.NewGuard(root)
	if err != nil {
		return nil, nil, errors.Errorf("creating path guard: %w", err)
	}

	w := &walker{
		scanner: s,
		guard:   guard,
		logger:  logger,
	}
	rootNode, err := w.walkDir(ctx, ".", path.Base(filepath.ToSlash(root)), 0)
	if err != nil {
		return nil, w.entryErrors, err
	}
	rootNode.Sort()

	model := structure.NewModel(rootNode.Name, rootNode)
	annotate(model)
	return model, w.entryErrors, nil
}

// walker carries per-scan state so Scanner itself stays reusable.
type walker struct {
	scanner     *Scanner
	guard       *pathsafe.Guard
	logger      *zerolog.Logger
	entryErrors []EntryError
}

func (w *walker) recordError(rel string, err error) {
	w.logger.Warn().Str("path", rel).Err(err).Msg("skipping entry")
	w.entryErrors = append(w.entryErrors, EntryError{Path: rel, Err: err.Error()})
}

// walkDir scans one directory into a node. rel is slash-separated and
// relative to the scan root; "." denotes the root itself.
func (w *walker) walkDir(ctx context.Context, rel, name string, depth int) (*structure.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("scan cancelled at %q: %w", rel, err)
	}

	abs, err := w.guard.Resolve(rel)
	if err != nil {
		return nil, err
	}

	node := structure.NewNode(name, rel)

	entries, err := os.ReadDir(abs)
	if err != nil {
		if rel == "." {
			return nil, errors.Errorf("reading scan root: %w", err)
		}
		w.recordError(rel, err)
		return node, nil
	}

	rules := w.scanner.rules
	for _, entry := range entries {
		childRel := joinRel(rel, entry.Name())

		excluded, err := w.excluded(childRel, entry.Name())
		if err != nil {
			return nil, err
		}
		if excluded {
			continue
		}

		entryType := entry.Type()
		isDir := entry.IsDir()

		if entryType&os.ModeSymlink != 0 {
			switch rules.SymlinkPolicy {
			case config.SymlinkSkip:
				continue
			case config.SymlinkError:
				return nil, errors.Errorf("%w: symlink %q encountered under error policy",
					pathsafe.ErrUnsafeSymlink, childRel)
			case config.SymlinkFollow:
				target, err := w.guard.ResolveSymlink(childRel)
				if err != nil {
					return nil, err
				}
				targetInfo, err := os.Stat(target)
				if err != nil {
					w.recordError(childRel, err)
					continue
				}
				isDir = targetInfo.IsDir()
			}
		}

		if isDir {
			if rules.MaxDepth > 0 && depth+1 >= rules.MaxDepth {
				continue
			}
			sub, err := w.walkDir(ctx, childRel, entry.Name(), depth+1)
			if err != nil {
				return nil, err
			}
			node.Subdirs = append(node.Subdirs, sub)
			continue
		}

		file, err := w.readFile(childRel)
		if err != nil {
			w.recordError(childRel, err)
			continue
		}
		node.Files = append(node.Files, file)
	}

	return node, nil
}

// excluded matches the entry against the exclusion patterns, both by its
// path relative to the root and by its base name. A matching directory
// is pruned without descending into it.
func (w *walker) excluded(rel, name string) (bool, error) {
	for _, pattern := range w.scanner.rules.ExcludePatterns {
		for _, candidate := range []string{rel, name} {
			ok, err := doublestar.Match(pattern, candidate)
			if err != nil {
				return false, errors.Errorf("matching pattern %q: %w", pattern, err)
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// readFile captures a regular file as a file entry. Files beyond the
// size bound keep their place in the model with content omitted; files
// that are not valid UTF-8 are reported as per-entry errors since the
// template document format is text.
func (w *walker) readFile(rel string) (*structure.FileEntry, error) {
	abs, err := w.guard.Resolve(rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Errorf("stat: %w", err)
	}

	if info.Size() > w.scanner.rules.EffectiveMaxFileSize() {
		return structure.NewOmittedFileEntry(rel, info.ModTime().UTC()), nil
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.Errorf("reading: %w", err)
	}
	if !utf8.Valid(content) {
		return nil, errors.Errorf("not valid UTF-8 text")
	}

	entry := structure.NewFileEntry(rel, content, info.ModTime().UTC())
	for _, v := range text.ExtractVariables(string(content)) {
		entry.TemplateVars[v] = ""
	}
	return entry, nil
}

// annotate records scan statistics in the model's node metadata, the
// same counters the persisted documents have always carried.
func annotate(m *structure.Model) {
	created := m.CreatedAt.Format(time.RFC3339)
	_ = m.Root.Walk(func(n *structure.Node) error {
		n.Metadata["scanned_at"] = created
		n.Metadata["total_files"] = strconv.Itoa(len(n.Files))
		n.Metadata["total_subdirs"] = strconv.Itoa(len(n.Subdirs))
		return nil
	})
}

func joinRel(parent, name string) string {
	if parent == "." || parent == "" {
		return name
	}
	return path.Join(parent, name)
}
