// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sync materializes a structure model into a target directory,
// applying variable substitution, preserve/backup rules, and path safety
// checks before every write.
package sync

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/pkg/config"
	"github.com/walteh/structsync/pkg/log"
	"github.com/walteh/structsync/pkg/pathsafe"
	"github.com/walteh/structsync/pkg/structure"
	"github.com/walteh/structsync/pkg/text"
)

// Reporter receives per-entry progress while a sync runs. The console
// logger in pkg/log satisfies it.
type Reporter interface {
	LogFileOperation(ctx context.Context, op log.FileOperation)
}

// Syncer materializes structure models. Two Syncs against different
// targets may run concurrently; two Syncs against the same target must
// be serialized by the caller.
type Syncer struct {
	rules    config.SyncRules
	strict   bool
	reporter Reporter
	now      func() time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithStrict makes Sync return an error when any entry fails. Without
// it, per-entry failures are only surfaced through the report.
func WithStrict() Option {
	return func(s *Syncer) { s.strict = true }
}

// WithReporter attaches a per-entry progress reporter.
func WithReporter(r Reporter) Option {
	return func(s *Syncer) { s.reporter = r }
}

// New creates a syncer with the given rules.
func New(rules config.SyncRules, opts ...Option) *Syncer {
	s := &Syncer{
		rules: rules,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync writes model into target, depth-first with directories created
// before their contents. Every path is variable-substituted and then
// validated against target before any write. I/O failures on individual
// entries are recorded in the report and traversal continues; path
// traversal and unsafe symlink violations abort immediately with the
// partial report. The returned report is non-nil in every case.
func (s *Syncer) Sync(ctx context.Context, model *structure.Model, target string, vars map[string]string) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("template", model.Name).Str("target", target).Msg("syncing structure")

	report := &Report{
		Template:  model.Name,
		Target:    target,
		StartedAt: s.now().UTC(),
	}

	if err := model.Validate(); err != nil {
		report.FinishedAt = s.now().UTC()
		return report, errors.Errorf("validating model: %w", err)
	}

	if err := os.MkdirAll(target, 0755); err != nil {
		report.FinishedAt = s.now().UTC()
		return report, errors.Errorf("creating target %q: %w", target, err)
	}

	guard, err := pathsafe.NewGuard(target)
	if err != nil {
		report.FinishedAt = s.now().UTC()
		return report, errors.Errorf("creating path guard: %w", err)
	}

	run := &run{
		syncer:     s,
		guard:      guard,
		vars:       vars,
		report:     report,
		unresolved: map[string]bool{},
	}

	err = model.Root.Walk(func(n *structure.Node) error {
		if cerr := ctx.Err(); cerr != nil {
			return errors.Errorf("sync cancelled at %q: %w", n.Path, cerr)
		}
		if err := run.syncDir(ctx, n); err != nil {
			return err
		}
		for _, f := range n.Files {
			if err := run.syncFile(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})

	report.UnresolvedVars = sortedKeys(run.unresolved)
	report.FinishedAt = s.now().UTC()

	if err != nil {
		return report, err
	}
	if s.strict && !report.Ok() {
		return report, errors.Errorf("sync completed with %d failed entries", report.Failed)
	}
	return report, nil
}

// run carries per-invocation state so a Syncer stays reusable.
type run struct {
	syncer     *Syncer
	guard      *pathsafe.Guard
	vars       map[string]string
	report     *Report
	unresolved map[string]bool
	backupDir  string
}

func (r *run) reportOp(ctx context.Context, op log.FileOperation) {
	if r.syncer.reporter != nil {
		r.syncer.reporter.LogFileOperation(ctx, op)
	}
}

// resolvePath substitutes variables in a template-relative path and
// validates the result against the target root. Guard violations are
// returned as-is so the caller aborts the operation.
func (r *run) resolvePath(rel string) (relResolved, abs string, err error) {
	res := text.Substitute(rel, r.vars)
	for _, name := range res.Unresolved {
		r.unresolved[name] = true
	}
	abs, err = r.guard.Resolve(res.Content)
	if err != nil {
		return "", "", err
	}
	return res.Content, abs, nil
}

// syncDir creates the directory for a node. Creating an existing
// directory is a no-op, keeping repeated syncs idempotent.
func (r *run) syncDir(ctx context.Context, n *structure.Node) error {
	if n.Path == "." || n.Path == "" {
		return nil
	}

	rel, abs, err := r.resolvePath(n.Path)
	if err != nil {
		r.report.record(Action{Path: n.Path, Type: "dir", Outcome: OutcomeFailed, Error: err.Error()})
		return err
	}

	if _, statErr := os.Stat(abs); statErr == nil {
		return nil
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		r.report.record(Action{Path: rel, Type: "dir", Outcome: OutcomeFailed, Error: err.Error()})
		return nil
	}
	r.report.record(Action{Path: rel, Type: "dir", Outcome: OutcomeCreated})
	r.reportOp(ctx, log.FileOperation{Path: rel, Type: "dir", Status: string(OutcomeCreated), IsNew: true})
	return nil
}

// syncFile materializes one file entry. I/O failures are recorded and
// swallowed so the traversal continues; guard violations propagate.
func (r *run) syncFile(ctx context.Context, f *structure.FileEntry) error {
	rel, abs, err := r.resolvePath(f.Path)
	if err != nil {
		r.report.record(Action{Path: f.Path, Type: "file", Outcome: OutcomeFailed, Error: err.Error()})
		return err
	}

	if f.ContentOmitted {
		r.report.record(Action{Path: rel, Type: "file", Outcome: OutcomeSkipped, Error: "content omitted at scan time"})
		r.reportOp(ctx, log.FileOperation{Path: rel, Type: "file", Status: string(OutcomeSkipped)})
		return nil
	}

	res := text.Substitute(f.Content, r.vars)
	for _, name := range res.Unresolved {
		r.unresolved[name] = true
	}

	_, statErr := os.Stat(abs)
	exists := statErr == nil

	if exists && r.syncer.rules.PreserveExisting {
		r.report.record(Action{Path: rel, Type: "file", Outcome: OutcomePreserved})
		r.reportOp(ctx, log.FileOperation{Path: rel, Type: "file", Status: string(OutcomePreserved), IsPreserved: true})
		return nil
	}

	if exists && r.syncer.rules.BackupBeforeSync {
		if err := r.backupFile(rel, abs); err != nil {
			r.report.record(Action{Path: rel, Type: "file", Outcome: OutcomeFailed, Error: err.Error()})
			return nil
		}
		r.report.record(Action{Path: rel, Type: "file", Outcome: OutcomeBackedUp})
	}

	if err := writeFileAtomic(abs, []byte(res.Content)); err != nil {
		r.report.record(Action{Path: rel, Type: "file", Outcome: OutcomeFailed, Error: err.Error()})
		r.reportOp(ctx, log.FileOperation{Path: rel, Type: "file", Status: string(OutcomeFailed), IsFailed: true})
		return nil
	}

	if exists {
		r.report.record(Action{Path: rel, Type: "file", Outcome: OutcomeOverwritten})
		r.reportOp(ctx, log.FileOperation{Path: rel, Type: "file", Status: string(OutcomeOverwritten), IsModified: true})
	} else {
		r.report.record(Action{Path: rel, Type: "file", Outcome: OutcomeCreated})
		r.reportOp(ctx, log.FileOperation{Path: rel, Type: "file", Status: string(OutcomeCreated), IsNew: true})
	}
	return nil
}

// backupFile copies the existing file at abs to the same relative path
// under a timestamped backup root next to the target directory. The
// backup root is created lazily on the first backup.
func (r *run) backupFile(rel, abs string) error {
	if r.backupDir == "" {
		stamp := r.syncer.now().UTC().Format("20060102_150405")
		target := r.guard.Root()
		r.backupDir = filepath.Join(filepath.Dir(target), filepath.Base(target)+"_backup_"+stamp)
		r.report.BackupDir = r.backupDir
	}
	dst := filepath.Join(r.backupDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("creating backup directory: %w", err)
	}
	if err := copyFile(abs, dst); err != nil {
		return errors.Errorf("backing up %q: %w", rel, err)
	}
	return nil
}

// writeFileAtomic writes content through a temp file and a rename, so a
// failed write never leaves a half-written target file.
func writeFileAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return errors.Errorf("opening source file: %w", err)
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return errors.Errorf("creating destination file: %w", err)
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return errors.Errorf("copying file: %w", err)
	}
	return nil
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
