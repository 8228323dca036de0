// Package state holds the persisted build state: per source file
// timestamps, inferred dependencies, produced outputs and diagnostics.
package state

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ritzau/incbuild/pkg/manifest"
)

var (
	// ErrParse marks a state file whose bytes are not a valid build state
	ErrParse = errors.New("malformed build state")
	// ErrNotFound marks a lookup of a path that has no record
	ErrNotFound = errors.New("no source file record")
)

// Diagnostic is one compiler-reported issue
type Diagnostic struct {
	SourceFilePath string `json:"sourceFilePath"`
	LineNumber     int    `json:"lineNumber"`
	ColumnNumber   int    `json:"columnNumber"`
	Type           string `json:"type"`
	Message        string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.SourceFilePath, d.LineNumber, d.ColumnNumber, d.Type, d.Message)
}

// SourceFileRecord is everything remembered about one source file
type SourceFileRecord struct {
	Path         string               `json:"-"`
	LastModified time.Time            `json:"lastModified"`
	Dependencies []string             `json:"dependencies"`
	OutputFiles  map[string]time.Time `json:"outputFiles"`
	Issues       []Diagnostic         `json:"issues"`
}

// NewRecord starts a fresh record for a file scheduled for compilation
func NewRecord(p string, modified time.Time, deps []string) *SourceFileRecord {
	r := &SourceFileRecord{
		Path:         NormalizePath(p),
		LastModified: modified,
		OutputFiles:  make(map[string]time.Time),
	}
	r.SetDependencies(deps)
	return r
}

// SetDependencies normalizes, sorts and dedups deps and drops self-references
func (r *SourceFileRecord) SetDependencies(deps []string) {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		d = NormalizePath(d)
		if d == "" || d == r.Path {
			continue
		}
		out = append(out, d)
	}
	slices.Sort(out)
	r.Dependencies = slices.Compact(out)
}

// AddIssue attaches a diagnostic
func (r *SourceFileRecord) AddIssue(d Diagnostic) {
	r.Issues = append(r.Issues, d)
}

// Clone returns a deep copy
func (r *SourceFileRecord) Clone() *SourceFileRecord {
	c := *r
	c.Dependencies = slices.Clone(r.Dependencies)
	c.OutputFiles = maps.Clone(r.OutputFiles)
	if c.OutputFiles == nil {
		c.OutputFiles = make(map[string]time.Time)
	}
	c.Issues = slices.Clone(r.Issues)
	return &c
}

// BuildState is the whole persisted snapshot
type BuildState struct {
	CompilerVersion string                       `json:"compilerVersion"`
	Manifest        manifest.Manifest            `json:"manifest"`
	SourceFiles     map[string]*SourceFileRecord `json:"sourceFiles"`
}

// New returns an empty state, the state of a first build
func New() *BuildState {
	return &BuildState{SourceFiles: make(map[string]*SourceFileRecord)}
}

// DeclaredDependencies returns the dependency signatures recorded with the state
func (s *BuildState) DeclaredDependencies() []manifest.Dependency {
	return s.Manifest.Dependencies
}

// Lookup returns the record for a path, if any
func (s *BuildState) Lookup(p string) (*SourceFileRecord, bool) {
	r, ok := s.SourceFiles[NormalizePath(p)]
	return r, ok
}

// MustLookup returns the record for a path or an error wrapping ErrNotFound
func (s *BuildState) MustLookup(p string) (*SourceFileRecord, error) {
	r, ok := s.Lookup(p)
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return r, nil
}

// Put adds or replaces a record. Rooted paths are rejected.
func (s *BuildState) Put(r *SourceFileRecord) error {
	p := NormalizePath(r.Path)
	if p == "" || IsRooted(r.Path) {
		return fmt.Errorf("record path %q must be relative", r.Path)
	}
	r.Path = p
	r.SetDependencies(r.Dependencies)
	if r.OutputFiles == nil {
		r.OutputFiles = make(map[string]time.Time)
	}
	s.SourceFiles[p] = r
	return nil
}

// Paths returns the record paths in sorted order
func (s *BuildState) Paths() []string {
	return slices.Sorted(maps.Keys(s.SourceFiles))
}

// Issues returns every attached diagnostic, ordered by file path
func (s *BuildState) Issues() []Diagnostic {
	var out []Diagnostic
	for _, p := range s.Paths() {
		out = append(out, s.SourceFiles[p].Issues...)
	}
	return out
}

// NormalizePath turns a relative path into its canonical slash form.
// Rooted paths keep their root so callers can reject them.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = path.Clean(filepath.ToSlash(p))
	if p == "." {
		return ""
	}
	return strings.TrimPrefix(p, "./")
}

// IsRooted reports whether p is absolute on either slash or OS conventions
func IsRooted(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(filepath.ToSlash(p), "/")
}
