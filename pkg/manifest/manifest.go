// Package manifest reads the project manifest and resolves declared
// dependencies against a local package store.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileName is the manifest file name inside a project or store entry
const FileName = "project.json"

// keyDelim separates koanf key paths. Manifest keys are free-form JSON
// ("org.acme.main", nested per-language sections), so the delimiter is one
// that does not occur in them.
const keyDelim = "\x00"

var (
	// ErrNotFound marks a missing manifest, dependency or version
	ErrNotFound = errors.New("not found")
	// ErrParse marks a manifest that is not well-formed
	ErrParse = errors.New("parse error")
)

// Dependency is a declared external dependency signature
type Dependency struct {
	Publisher string `json:"publisher" koanf:"publisher"`
	Project   string `json:"project" koanf:"project"`
	Version   string `json:"version" koanf:"version"`
}

// Key identifies a dependency regardless of version
func (d Dependency) Key() string {
	return d.Publisher + "/" + d.Project
}

func (d Dependency) String() string {
	return d.Key() + "@" + d.Version
}

// Manifest is the project description consumed read-only by the build
type Manifest struct {
	Publisher    string            `json:"publisher" koanf:"publisher"`
	Project      string            `json:"project" koanf:"project"`
	Version      string            `json:"version" koanf:"version"`
	Dependencies []Dependency      `json:"dependencies" koanf:"dependencies"`
	Settings     map[string]any    `json:"settings,omitempty" koanf:"settings"`
}

// Name returns publisher/project@version for log output
func (m Manifest) Name() string {
	return Dependency{Publisher: m.Publisher, Project: m.Project, Version: m.Version}.String()
}

// Load reads a manifest file
func Load(path string) (Manifest, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, fmt.Errorf("manifest %s: %w", path, ErrNotFound)
		}
		return Manifest{}, fmt.Errorf("manifest %s: %w", path, err)
	}

	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w: %v", path, ErrParse, err)
	}

	var m Manifest
	if err := k.Unmarshal("", &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest %s: %w: %v", path, ErrParse, err)
	}
	for i, dep := range m.Dependencies {
		if strings.TrimSpace(dep.Publisher) == "" || strings.TrimSpace(dep.Project) == "" || strings.TrimSpace(dep.Version) == "" {
			return Manifest{}, fmt.Errorf("manifest %s: %w: dependency %d needs publisher, project and version", path, ErrParse, i)
		}
	}
	return m, nil
}

// Equal reports whether two declared dependency sets are the same,
// ignoring order and duplicates.
func Equal(a, b []Dependency) bool {
	return slices.Equal(signatures(a), signatures(b))
}

func signatures(deps []Dependency) []string {
	out := make([]string, 0, len(deps))
	for _, d := range deps {
		out = append(out, d.String())
	}
	slices.Sort(out)
	return slices.Compact(out)
}
