// Package watcher turns file system notifications for the source tree and
// the project manifest into batched rebuild requests.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/incbuild/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	// ChangeTypeManifest is a change to the project manifest
	ChangeTypeManifest ChangeType = iota
	// ChangeTypeSource is a source file or source folder change
	ChangeTypeSource
)

func (t ChangeType) String() string {
	if t == ChangeTypeManifest {
		return "manifest"
	}
	return "source"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches a source tree and the project manifest
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	sourceDir string
	manifest  string
	extension string
	events    chan ChangeEvent
}

// NewFileWatcher creates a watcher for sources ending in extension below
// sourceDir and for the manifest file
func NewFileWatcher(sourceDir, manifest, extension string) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:   w,
		sourceDir: filepath.Clean(sourceDir),
		manifest:  filepath.Clean(manifest),
		extension: extension,
		events:    make(chan ChangeEvent, 100),
	}, nil
}

// Start registers the watches and processes events until ctx is done, after
// which the Events channel is closed
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watchTree(fw.sourceDir); err != nil {
		_ = fw.watcher.Close()
		return err
	}

	// The manifest is watched through its folder so editors that save by
	// rename keep being seen
	if err := fw.watcher.Add(filepath.Dir(fw.manifest)); err != nil {
		logging.Warn("failed to watch manifest folder", "path", fw.manifest, "error", err)
	}

	logging.Info("started watching", "sources", fw.sourceDir, "manifest", fw.manifest)
	go fw.processEvents(ctx)
	return nil
}

// watchTree adds every folder below root, skipping hidden ones
func (fw *FileWatcher) watchTree(root string) error {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if path == root {
					logging.Warn("source directory does not exist yet", "path", root)
				}
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			logging.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}

	logging.Debug("monitoring source directories", "root", root, "count", count)
	return nil
}

// Classify maps a notification to a change type; ok is false for paths
// that cannot affect a build
func (fw *FileWatcher) Classify(name string) (ChangeType, bool) {
	name = filepath.Clean(name)
	if name == fw.manifest {
		return ChangeTypeManifest, true
	}

	rel, err := filepath.Rel(fw.sourceDir, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return 0, false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") {
			return 0, false
		}
	}

	// Extensionless names may be folders; removing one removes sources
	if ext := filepath.Ext(name); ext == fw.extension || ext == "" {
		return ChangeTypeSource, true
	}
	return 0, false
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			changeType, relevant := fw.Classify(event.Name)
			if !relevant {
				continue
			}
			if changeType == ChangeTypeSource && event.Op.Has(fsnotify.Create) {
				// New folders need their own watches
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.watchTree(event.Name); err != nil {
						logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			logging.Trace("file event", "path", event.Name, "op", event.Op.String())

			select {
			case fw.events <- ChangeEvent{Type: changeType, Paths: []string{event.Name}, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
