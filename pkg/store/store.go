// Package store persists named structure templates to a directory on
// disk and loads them back. The store is a stateless read/write-through
// interface: every load re-reads from disk, and no in-memory cache is
// kept, so concurrent operations never see stale templates.
package store

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/structsync/pkg/structure"
)

var (
	// ErrTemplateFormat marks a malformed or incompatible persisted
	// template. Always fatal, since there is no safe partial load.
	ErrTemplateFormat = errors.Base("malformed template document")

	// ErrTemplateNotFound marks a lookup of a template name that has no
	// persisted document.
	ErrTemplateNotFound = errors.Base("template not found")
)

// Info summarizes one persisted template for listings.
type Info struct {
	Name        string `json:"name" yaml:"name"`
	Path        string `json:"path" yaml:"path"`
	Files       int    `json:"files" yaml:"files"`
	Subdirs     int    `json:"subdirs" yaml:"subdirs"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Store reads and writes template documents under one directory.
type Store struct {
	dir             string
	verifyChecksums bool
}

// Option configures a Store.
type Option func(*Store)

// WithoutChecksumVerify disables the content integrity check on load.
func WithoutChecksumVerify() Option {
	return func(s *Store) { s.verifyChecksums = false }
}

// New creates a store over the given templates directory.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:             dir,
		verifyChecksums: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists model under the given template name and returns the
// document path. The format follows the name's extension; names without
// a recognized extension get the default format. Checksums are always
// recomputed from content before encoding.
func (s *Store) Save(ctx context.Context, model *structure.Model, name string) (string, error) {
	logger := zerolog.Ctx(ctx)

	if err := validateName(name); err != nil {
		return "", err
	}
	if err := model.Validate(); err != nil {
		return "", errors.Errorf("validating model: %w", err)
	}

	filename := name
	codec := codecFor(filename)
	if codec == nil {
		filename += defaultExtension()
		codec = codecFor(filename)
	}

	if model.FormatVersion == "" {
		model.FormatVersion = structure.FormatVersion
	}
	model.Root.Sort()
	_ = model.Root.Walk(func(n *structure.Node) error {
		for _, f := range n.Files {
			f.RefreshChecksum()
		}
		return nil
	})

	data, err := codec.Encode(model)
	if err != nil {
		return "", errors.Errorf("encoding template %q: %w", name, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", errors.Errorf("creating templates directory: %w", err)
	}
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Errorf("writing template %q: %w", name, err)
	}

	logger.Debug().Str("template", name).Str("path", path).Msg("template saved")
	return path, nil
}

// Load reads the named template back from disk. Documents with an
// unsupported major format version, or whose stored checksums do not
// match their content, fail with ErrTemplateFormat.
func (s *Store) Load(ctx context.Context, name string) (*structure.Model, error) {
	logger := zerolog.Ctx(ctx)

	if err := validateName(name); err != nil {
		return nil, err
	}

	path, codec, err := s.locate(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading template %q: %w", name, err)
	}

	model, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}

	if err := checkFormatVersion(model.FormatVersion); err != nil {
		return nil, errors.Errorf("template %q: %w", name, err)
	}
	if err := model.Validate(); err != nil {
		return nil, errors.Errorf("%w: template %q: %v", ErrTemplateFormat, name, err)
	}
	if s.verifyChecksums {
		if err := verifyChecksums(model); err != nil {
			return nil, errors.Errorf("template %q: %w", name, err)
		}
	}

	logger.Debug().Str("template", name).Str("path", path).Msg("template loaded")
	return model, nil
}

// List returns a summary of every template in the store, sorted by name.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, errors.Errorf("reading templates directory: %w", err)
	}

	infos := []Info{}
	for _, entry := range entries {
		if entry.IsDir() || codecFor(entry.Name()) == nil {
			continue
		}
		name := trimExtension(entry.Name())
		info := Info{Name: name, Path: filepath.Join(s.dir, entry.Name())}

		model, err := s.Load(ctx, entry.Name())
		if err != nil {
			// Broken documents still show up in listings so the
			// operator can find and fix them.
			info.Description = "error: " + err.Error()
		} else {
			info.Files = model.CountFiles()
			info.Subdirs = model.CountDirs()
			info.Description = model.Description
			if meta := model.Root.Metadata["scanned_at"]; meta != "" {
				info.CreatedAt = meta
			}
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete removes the named template's document from the store.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	path, _, err := s.locate(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return errors.Errorf("deleting template %q: %w", name, err)
	}
	zerolog.Ctx(ctx).Debug().Str("template", name).Str("path", path).Msg("template deleted")
	return nil
}

// locate finds the document path and codec for a template name. Names
// carrying a recognized extension resolve exactly; bare names try each
// registered extension in registration order.
func (s *Store) locate(name string) (string, Codec, error) {
	if codec := codecFor(name); codec != nil {
		path := filepath.Join(s.dir, name)
		if _, err := os.Stat(path); err != nil {
			return "", nil, errors.Errorf("%w: %q", ErrTemplateNotFound, trimExtension(name))
		}
		return path, codec, nil
	}
	for _, codec := range codecs {
		for _, ext := range codec.Extensions() {
			path := filepath.Join(s.dir, name+ext)
			if _, err := os.Stat(path); err == nil {
				return path, codec, nil
			}
		}
	}
	return "", nil, errors.Errorf("%w: %q", ErrTemplateNotFound, name)
}

// validateName rejects template names that could address files outside
// the store directory.
func validateName(name string) error {
	if name == "" {
		return errors.Errorf("template name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Errorf("invalid template name %q", name)
	}
	return nil
}

// checkFormatVersion rejects documents from an unknown major version
// instead of guessing compatibility.
func checkFormatVersion(version string) error {
	if version == "" {
		return errors.Errorf("%w: missing format_version", ErrTemplateFormat)
	}
	major := version
	if i := strings.IndexByte(version, '.'); i >= 0 {
		major = version[:i]
	}
	supported := structure.FormatVersion
	if i := strings.IndexByte(supported, '.'); i >= 0 {
		supported = supported[:i]
	}
	if major != supported {
		return errors.Errorf("%w: unsupported format version %q", ErrTemplateFormat, version)
	}
	return nil
}

// verifyChecksums recomputes every entry's digest. A stored digest is
// never trusted without a content match.
func verifyChecksums(model *structure.Model) error {
	return model.Root.Walk(func(n *structure.Node) error {
		for _, f := range n.Files {
			if !f.VerifyChecksum() {
				return errors.Errorf("%w: checksum mismatch for %q", ErrTemplateFormat, f.Path)
			}
		}
		return nil
	})
}

// trimExtension strips a recognized codec extension from a filename.
func trimExtension(filename string) string {
	lower := strings.ToLower(filename)
	for _, c := range codecs {
		for _, ext := range c.Extensions() {
			if strings.HasSuffix(lower, ext) {
				return filename[:len(filename)-len(ext)]
			}
		}
	}
	return filename
}
