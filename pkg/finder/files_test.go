package finder

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, root, rel string, mod time.Time) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshot(t *testing.T) {
	root := t.TempDir()
	mod := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	touch(t, root, "app/Main.java", mod)
	touch(t, root, "app/util/Strings.java", mod)
	touch(t, root, "app/README.md", mod)
	touch(t, root, ".git/objects/Evil.java", mod)
	touch(t, root, "app/.cache/Hidden.java", mod)

	files, err := Snapshot(root, ".java")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d: %v", len(files), files)
	}
	for _, want := range []string{"app/Main.java", "app/util/Strings.java"} {
		got, ok := files[want]
		if !ok {
			t.Errorf("Expected %s in snapshot", want)
			continue
		}
		if !got.Equal(mod) {
			t.Errorf("Expected mod time %v for %s, got %v", mod, want, got)
		}
	}

	all, err := Snapshot(root, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := all["app/README.md"]; !ok {
		t.Error("Expected empty extension to include all files")
	}
}

func TestSnapshotMissingRoot(t *testing.T) {
	files, err := Snapshot(filepath.Join(t.TempDir(), "nope"), ".java")
	if err != nil {
		t.Fatalf("Expected no error for missing root, got %v", err)
	}
	if len(files) != 0 {
		t.Errorf("Expected empty snapshot, got %v", files)
	}
}

func TestRemoveBestEffort(t *testing.T) {
	root := t.TempDir()
	mod := time.Now()
	touch(t, root, "app/A.class", mod)
	touch(t, root, "app/inner/A$1.class", mod)
	touch(t, root, "app/B.class", mod)

	// Missing entries are ignored
	RemoveBestEffort(root, "app/A.class", "app/inner/A$1.class", "app/Gone.class")

	if _, err := os.Stat(filepath.Join(root, "app", "A.class")); !os.IsNotExist(err) {
		t.Error("Expected app/A.class to be removed")
	}
	if _, err := os.Stat(filepath.Join(root, "app", "inner")); !os.IsNotExist(err) {
		t.Error("Expected empty app/inner to be pruned")
	}
	if _, err := os.Stat(filepath.Join(root, "app", "B.class")); err != nil {
		t.Errorf("Expected app/B.class to survive: %v", err)
	}
}
