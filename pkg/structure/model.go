// Package structure defines the in-memory tree model for directory
// structure templates: a single root Node holding subdirectories and
// file entries, plus top-level template metadata.
package structure

import (
	"path"
	"sort"
	"time"

	"gitlab.com/tozd/go/errors"
)

// FormatVersion is the template document format version written by this
// build. Loaders reject documents whose major version differs.
const FormatVersion = "1.0"

// OmittedContentSentinel replaces the content of files that exceed the
// configured maximum file size during a scan.
const OmittedContentSentinel = "content omitted: too large"

// FileEntry represents a single file captured in a structure template.
// Content is stored raw, with any {variable} tokens left unresolved.
type FileEntry struct {
	// Path is relative to the structure root, always slash-separated.
	Path string `json:"path" yaml:"path"`

	// Content is the raw captured content, pre-substitution.
	Content string `json:"content" yaml:"content"`

	// TemplateVars maps variable names found in the content to their
	// documented default values. Informational only.
	TemplateVars map[string]string `json:"template_vars" yaml:"template_vars"`

	// Checksum is the digest of Content. Recomputed at save time.
	Checksum string `json:"checksum" yaml:"checksum"`

	// LastUpdated is the file's modification time captured at scan time.
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`

	// ContentOmitted marks entries whose content exceeded the scan size
	// limit. Content holds OmittedContentSentinel and Checksum is empty.
	ContentOmitted bool `json:"content_omitted,omitempty" yaml:"content_omitted,omitempty"`
}

// NewFileEntry creates a file entry with its checksum computed from content.
func NewFileEntry(relPath string, content []byte, lastUpdated time.Time) *FileEntry {
	return &FileEntry{
		Path:         relPath,
		Content:      string(content),
		TemplateVars: map[string]string{},
		Checksum:     Checksum(content),
		LastUpdated:  lastUpdated,
	}
}

// NewOmittedFileEntry creates an entry for a file too large to capture.
func NewOmittedFileEntry(relPath string, lastUpdated time.Time) *FileEntry {
	return &FileEntry{
		Path:           relPath,
		Content:        OmittedContentSentinel,
		TemplateVars:   map[string]string{},
		LastUpdated:    lastUpdated,
		ContentOmitted: true,
	}
}

// RefreshChecksum recomputes the checksum from the current content.
func (f *FileEntry) RefreshChecksum() {
	if f.ContentOmitted {
		f.Checksum = ""
		return
	}
	f.Checksum = Checksum([]byte(f.Content))
}

// VerifyChecksum reports whether the stored checksum matches the content.
func (f *FileEntry) VerifyChecksum() bool {
	if f.ContentOmitted {
		return f.Checksum == ""
	}
	return f.Checksum == Checksum([]byte(f.Content))
}

// Node represents a directory in a structure template.
type Node struct {
	// Name is the directory's base name.
	Name string `json:"name" yaml:"name"`

	// Path is relative to the structure root, slash-separated. The root
	// node's path is ".".
	Path string `json:"path" yaml:"path"`

	// Subdirs are the child directories, sorted by name.
	Subdirs []*Node `json:"subdirs" yaml:"subdirs"`

	// Files are the files directly inside this directory, sorted by path.
	Files []*FileEntry `json:"files" yaml:"files"`

	// Metadata holds free-form key/value annotations.
	Metadata map[string]string `json:"metadata" yaml:"metadata"`
}

// NewNode creates an empty directory node.
func NewNode(name, relPath string) *Node {
	return &Node{
		Name:     name,
		Path:     relPath,
		Subdirs:  []*Node{},
		Files:    []*FileEntry{},
		Metadata: map[string]string{},
	}
}

// Sort orders subdirectories and files by name, recursively. Repeated
// scans of an unchanged tree serialize identically only if every node is
// sorted, so every producer of a Node must call this before handing the
// tree to a caller.
func (n *Node) Sort() {
	sort.Slice(n.Subdirs, func(i, j int) bool { return n.Subdirs[i].Name < n.Subdirs[j].Name })
	sort.Slice(n.Files, func(i, j int) bool { return n.Files[i].Path < n.Files[j].Path })
	for _, sub := range n.Subdirs {
		sub.Sort()
	}
}

// Validate checks the tree invariants: every child's path is its parent's
// path joined with its name, and no two children of a node share a name.
func (n *Node) Validate() error {
	seen := map[string]bool{}
	for _, f := range n.Files {
		base := path.Base(f.Path)
		if seen[base] {
			return errors.Errorf("node %q: duplicate child name %q", n.Path, base)
		}
		seen[base] = true
		if want := joinRel(n.Path, base); f.Path != want {
			return errors.Errorf("node %q: file path %q does not match parent, want %q", n.Path, f.Path, want)
		}
	}
	for _, sub := range n.Subdirs {
		if seen[sub.Name] {
			return errors.Errorf("node %q: duplicate child name %q", n.Path, sub.Name)
		}
		seen[sub.Name] = true
		if want := joinRel(n.Path, sub.Name); sub.Path != want {
			return errors.Errorf("node %q: subdir path %q does not match parent, want %q", n.Path, sub.Path, want)
		}
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits n and every descendant node, depth-first, parents before
// children. The visit stops at the first error.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, sub := range n.Subdirs {
		if err := sub.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// joinRel joins slash-separated template-relative paths, keeping the
// root path "." out of joined results.
func joinRel(parent, name string) string {
	if parent == "" || parent == "." {
		return name
	}
	return path.Join(parent, name)
}

// Model is a complete structure template: one root node plus template
// metadata. A Model is owned by the operation that created it and must
// not be shared mutably across concurrent operations.
type Model struct {
	FormatVersion string    `json:"format_version" yaml:"format_version"`
	Name          string    `json:"name" yaml:"name"`
	Description   string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	Root          *Node     `json:"structure" yaml:"structure"`
}

// NewModel creates a model around the given root node.
func NewModel(name string, root *Node) *Model {
	return &Model{
		FormatVersion: FormatVersion,
		Name:          name,
		CreatedAt:     time.Now().UTC(),
		Root:          root,
	}
}

// Validate checks the model's tree invariants.
func (m *Model) Validate() error {
	if m.Root == nil {
		return errors.Errorf("model %q: missing root node", m.Name)
	}
	return m.Root.Validate()
}

// FileIndex returns a map of every file entry keyed by its path relative
// to the structure root.
func (m *Model) FileIndex() map[string]*FileEntry {
	index := map[string]*FileEntry{}
	_ = m.Root.Walk(func(n *Node) error {
		for _, f := range n.Files {
			index[f.Path] = f
		}
		return nil
	})
	return index
}

// DirPaths returns the sorted paths of every directory in the model,
// excluding the root itself.
func (m *Model) DirPaths() []string {
	var dirs []string
	_ = m.Root.Walk(func(n *Node) error {
		if n.Path != "." && n.Path != "" {
			dirs = append(dirs, n.Path)
		}
		return nil
	})
	sort.Strings(dirs)
	return dirs
}

// CountFiles returns the total number of file entries in the model.
func (m *Model) CountFiles() int {
	total := 0
	_ = m.Root.Walk(func(n *Node) error {
		total += len(n.Files)
		return nil
	})
	return total
}

// CountDirs returns the total number of directories, excluding the root.
func (m *Model) CountDirs() int {
	return len(m.DirPaths())
}

// Equal reports structural and content equality with other: same file
// paths with matching checksums, and the same directory set. Formatting
// of the serialized form and timestamps do not participate.
func (m *Model) Equal(other *Model) bool {
	if other == nil {
		return false
	}
	a, b := m.FileIndex(), other.FileIndex()
	if len(a) != len(b) {
		return false
	}
	for p, fa := range a {
		fb, ok := b[p]
		if !ok || fa.Checksum != fb.Checksum || fa.Content != fb.Content {
			return false
		}
	}
	ad, bd := m.DirPaths(), other.DirPaths()
	if len(ad) != len(bd) {
		return false
	}
	for i := range ad {
		if ad[i] != bd[i] {
			return false
		}
	}
	return true
}
