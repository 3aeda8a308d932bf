// Package diff computes structural deltas between structure models, or
// between a model and a live directory. Comparison always operates on
// raw, pre-substitution content; to diff materialized output, re-scan
// the target and compare the fresh model.
package diff

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/pkg/config"
	"github.com/walteh/structsync/pkg/scan"
	"github.com/walteh/structsync/pkg/structure"
)

// Change describes a file present on both sides with differing content.
type Change struct {
	Path           string `json:"path" yaml:"path"`
	BeforeChecksum string `json:"before_checksum" yaml:"before_checksum"`
	AfterChecksum  string `json:"after_checksum" yaml:"after_checksum"`
}

// Result is the structural delta from model A to model B. Paths are
// sorted; a fresh Result is produced per comparison.
type Result struct {
	FilesAdded    []string `json:"files_added" yaml:"files_added"`
	FilesRemoved  []string `json:"files_removed" yaml:"files_removed"`
	FilesModified []Change `json:"files_modified" yaml:"files_modified"`
	DirsAdded     []string `json:"dirs_added" yaml:"dirs_added"`
	DirsRemoved   []string `json:"dirs_removed" yaml:"dirs_removed"`
	Unchanged     int      `json:"unchanged" yaml:"unchanged"`
}

// Empty reports whether the two sides are structurally identical.
func (r *Result) Empty() bool {
	return len(r.FilesAdded) == 0 &&
		len(r.FilesRemoved) == 0 &&
		len(r.FilesModified) == 0 &&
		len(r.DirsAdded) == 0 &&
		len(r.DirsRemoved) == 0
}

// Compare computes the delta from a to b. A path present only in b is
// added, only in a is removed, and present in both with differing
// checksums is modified. Directory presence is compared by path set,
// which also covers explicitly empty directories.
//
// Entries whose content was omitted at scan time carry no checksum, so
// two omitted entries at the same path always compare as unchanged even
// when the underlying oversized files differ; an omitted entry against
// a captured one compares as modified.
func Compare(a, b *structure.Model) *Result {
	result := &Result{
		FilesAdded:    []string{},
		FilesRemoved:  []string{},
		FilesModified: []Change{},
		DirsAdded:     []string{},
		DirsRemoved:   []string{},
	}

	filesA, filesB := a.FileIndex(), b.FileIndex()

	for path, fa := range filesA {
		fb, ok := filesB[path]
		if !ok {
			result.FilesRemoved = append(result.FilesRemoved, path)
			continue
		}
		if fa.Checksum != fb.Checksum {
			result.FilesModified = append(result.FilesModified, Change{
				Path:           path,
				BeforeChecksum: fa.Checksum,
				AfterChecksum:  fb.Checksum,
			})
			continue
		}
		result.Unchanged++
	}
	for path := range filesB {
		if _, ok := filesA[path]; !ok {
			result.FilesAdded = append(result.FilesAdded, path)
		}
	}

	dirsA, dirsB := pathSet(a.DirPaths()), pathSet(b.DirPaths())
	for d := range dirsA {
		if !dirsB[d] {
			result.DirsRemoved = append(result.DirsRemoved, d)
		}
	}
	for d := range dirsB {
		if !dirsA[d] {
			result.DirsAdded = append(result.DirsAdded, d)
		}
	}

	sort.Strings(result.FilesAdded)
	sort.Strings(result.FilesRemoved)
	sort.Strings(result.DirsAdded)
	sort.Strings(result.DirsRemoved)
	sort.Slice(result.FilesModified, func(i, j int) bool {
		return result.FilesModified[i].Path < result.FilesModified[j].Path
	})

	return result
}

// CompareWithDirectory scans dir with the given rules and compares model
// against the fresh scan. Non-fatal scan errors are passed through.
func CompareWithDirectory(ctx context.Context, model *structure.Model, dir string, rules config.SyncRules) (*Result, []scan.EntryError, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("template", model.Name).Str("dir", dir).Msg("comparing structure with directory")

	scanned, entryErrs, err := scan.New(rules).Scan(ctx, dir)
	if err != nil {
		return nil, entryErrs, errors.Errorf("scanning %q: %w", dir, err)
	}
	return Compare(model, scanned), entryErrs, nil
}

func pathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
