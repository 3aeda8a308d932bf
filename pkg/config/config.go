// Package config defines the synchronization rules and tool settings
// consumed by the scanner, synchronizer, and template store. The core
// packages treat a loaded Config as read-only for the duration of an
// operation.
package config

import (
	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gitlab.com/tozd/go/errors"
)

// SymlinkPolicy controls how symlinks encountered during a scan are
// handled.
type SymlinkPolicy string

const (
	// SymlinkSkip omits symlinks from the scanned model.
	SymlinkSkip SymlinkPolicy = "skip"

	// SymlinkFollow treats a symlink as its target type after the path
	// guard has validated the target is inside the scan root.
	SymlinkFollow SymlinkPolicy = "follow"

	// SymlinkError aborts the scan when any symlink is encountered.
	SymlinkError SymlinkPolicy = "error"
)

// DefaultMaxFileSize bounds how much file content a scan captures.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// SyncRules configures scanning and synchronization behavior. Rules are
// constructed once from configuration and read-only afterwards.
type SyncRules struct {
	// PreserveExisting skips writes to files that already exist in the
	// sync target.
	PreserveExisting bool `json:"preserve_existing" yaml:"preserve_existing" hcl:"preserve_existing,optional"`

	// BackupBeforeSync copies an existing file to a timestamped backup
	// root before overwriting it.
	BackupBeforeSync bool `json:"backup_before_sync" yaml:"backup_before_sync" hcl:"backup_before_sync,optional"`

	// ExcludePatterns are glob patterns matched against paths relative
	// to the scan root. Matching directories are pruned without descent.
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns" hcl:"exclude_patterns,optional"`

	// MaxDepth bounds directory traversal depth. Zero means unlimited.
	MaxDepth int `json:"max_depth,omitempty" yaml:"max_depth,omitempty" hcl:"max_depth,optional"`

	// MaxFileSize bounds captured file content in bytes. Larger files
	// are recorded with their content omitted. Zero means the default.
	MaxFileSize int64 `json:"max_file_size,omitempty" yaml:"max_file_size,omitempty" hcl:"max_file_size,optional"`

	// SymlinkPolicy is one of "skip", "follow", or "error".
	SymlinkPolicy SymlinkPolicy `json:"symlink_policy" yaml:"symlink_policy" hcl:"symlink_policy,optional"`
}

// Validate checks the rules for internal consistency.
func (r *SyncRules) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SymlinkPolicy, validation.Required, validation.In(SymlinkSkip, SymlinkFollow, SymlinkError)),
		validation.Field(&r.MaxDepth, validation.Min(0)),
		validation.Field(&r.MaxFileSize, validation.Min(0)),
		validation.Field(&r.ExcludePatterns, validation.Each(validation.By(validGlobPattern))),
	)
}

// EffectiveMaxFileSize returns the configured size bound, or the default
// when unset.
func (r *SyncRules) EffectiveMaxFileSize() int64 {
	if r.MaxFileSize > 0 {
		return r.MaxFileSize
	}
	return DefaultMaxFileSize
}

// validGlobPattern rejects exclusion patterns doublestar cannot match.
func validGlobPattern(value interface{}) error {
	pattern, _ := value.(string)
	if pattern == "" {
		return errors.New("pattern must not be empty")
	}
	if !doublestar.ValidatePattern(pattern) {
		return errors.Errorf("invalid glob pattern %q", pattern)
	}
	return nil
}

// Config is the complete tool configuration.
type Config struct {
	// TemplatesDir is where named structure templates are persisted.
	TemplatesDir string `json:"templates_dir" yaml:"templates_dir"`

	// OutputDir is the default parent for materialized structures.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// SyncRules governs scanning and synchronization.
	SyncRules SyncRules `json:"sync_rules" yaml:"sync_rules"`

	// VariableGroups holds named groups of template-variable defaults,
	// surfaced to the CLI for prompting. The core does not consume them.
	VariableGroups map[string]map[string]string `json:"variable_groups,omitempty" yaml:"variable_groups,omitempty"`
}

// DefaultSyncRules returns the rules used when no configuration exists.
func DefaultSyncRules() SyncRules {
	return SyncRules{
		PreserveExisting: true,
		BackupBeforeSync: true,
		ExcludePatterns:  []string{".git", "__pycache__", "*.pyc"},
		MaxFileSize:      DefaultMaxFileSize,
		SymlinkPolicy:    SymlinkSkip,
	}
}

// DefaultConfig returns the configuration used when no config file
// exists.
func DefaultConfig() *Config {
	return &Config{
		TemplatesDir: "templates",
		OutputDir:    "output",
		SyncRules:    DefaultSyncRules(),
	}
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if cfg.TemplatesDir == "" {
		return errors.New("templates_dir is required")
	}
	if err := cfg.SyncRules.Validate(); err != nil {
		return errors.Errorf("sync_rules: %w", err)
	}
	return nil
}

// applyDefaults fills unset fields after parsing.
func (cfg *Config) applyDefaults() {
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = "templates"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.SyncRules.SymlinkPolicy == "" {
		cfg.SyncRules.SymlinkPolicy = SymlinkSkip
	}
	if cfg.SyncRules.MaxFileSize == 0 {
		cfg.SyncRules.MaxFileSize = DefaultMaxFileSize
	}
}
