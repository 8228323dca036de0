package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputDirName is the published output folder inside a store entry
const OutputDirName = "out"

// Resolved is a dependency located in the package store
type Resolved struct {
	Dependency
	Chain     []string // how the dependency was reached, root first
	Dir       string   // store entry folder
	OutputDir string   // published output artifact folder
}

// ConflictError reports two resolved versions of the same dependency
type ConflictError struct {
	Key   string
	First Resolved
	Other Resolved
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting versions of %s: %s (via %s) and %s (via %s)",
		e.Key,
		e.First.Version, strings.Join(e.First.Chain, " -> "),
		e.Other.Version, strings.Join(e.Other.Chain, " -> "))
}

// Store is a local package store laid out as
// <root>/<publisher>/<project>/<version>/{project.json,out/}
type Store struct {
	Root string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{Root: dir}
}

// EntryDir returns the folder of one dependency version
func (s *Store) EntryDir(d Dependency) string {
	return filepath.Join(s.Root, d.Publisher, d.Project, d.Version)
}

// Resolve walks the declared dependencies breadth-first and returns every
// transitively required dependency once, in discovery order.
func (s *Store) Resolve(m Manifest) ([]Resolved, error) {
	type pending struct {
		dep   Dependency
		chain []string
	}

	root := m.Name()
	queue := make([]pending, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		queue = append(queue, pending{dep: d, chain: []string{root}})
	}

	seen := make(map[string]Resolved)
	var resolved []Resolved

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		chain := append(append([]string{}, next.chain...), next.dep.String())
		if prev, ok := seen[next.dep.Key()]; ok {
			if prev.Version != next.dep.Version {
				return nil, &ConflictError{
					Key:   next.dep.Key(),
					First: prev,
					Other: Resolved{Dependency: next.dep, Chain: chain},
				}
			}
			continue
		}

		dir := s.EntryDir(next.dep)
		if err := s.checkEntry(next.dep, dir); err != nil {
			return nil, err
		}

		r := Resolved{
			Dependency: next.dep,
			Chain:      chain,
			Dir:        dir,
			OutputDir:  filepath.Join(dir, OutputDirName),
		}
		seen[next.dep.Key()] = r
		resolved = append(resolved, r)

		sub, err := Load(filepath.Join(dir, FileName))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// A published entry without a manifest has no dependencies
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", next.dep, err)
		}
		for _, d := range sub.Dependencies {
			queue = append(queue, pending{dep: d, chain: chain})
		}
	}

	return resolved, nil
}

func (s *Store) checkEntry(d Dependency, dir string) error {
	projectDir := filepath.Dir(dir)
	if _, err := os.Stat(projectDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("dependency %s in %s: %w", d.Key(), s.Root, ErrNotFound)
		}
		return err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("version %s of %s in %s: %w", d.Version, d.Key(), s.Root, ErrNotFound)
		}
		return err
	}
	return nil
}
