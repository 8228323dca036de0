// Package finder enumerates project files and performs best-effort cleanup.
package finder

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ritzau/incbuild/pkg/logging"
)

// Snapshot maps each file's path relative to root (slash separated) to its
// last-modified time. Only files ending in ext are included; an empty ext
// includes everything. A missing root yields an empty snapshot.
func Snapshot(root, ext string) (map[string]time.Time, error) {
	files := make(map[string]time.Time)

	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return files, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// Skip VCS and hidden directories
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == ".git" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}

		if ext != "" && filepath.Ext(path) != ext {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			// Removed between listing and stat
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = info.ModTime()
		return nil
	})

	return files, err
}

// RemoveBestEffort deletes files given relative to root. Failures are logged
// at DEBUG and otherwise ignored. Directories left empty are pruned up to root.
func RemoveBestEffort(root string, rel ...string) {
	for _, r := range rel {
		path := filepath.Join(root, filepath.FromSlash(r))
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.Debug("could not remove stale output", "path", path, "error", err)
			}
			continue
		}
		logging.Trace("removed stale output", "path", path)
		pruneEmptyParents(root, filepath.Dir(path))
	}
}

func pruneEmptyParents(root, dir string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		// os.Remove fails on non-empty directories, which ends the walk
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
