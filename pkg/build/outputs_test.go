package build

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ritzau/incbuild/pkg/state"
)

func TestOwnsOutput(t *testing.T) {
	tests := []struct {
		typeName string
		output   string
		want     bool
	}{
		{"Main", "app/Main.class", true},
		{"Main", "app/Main$Inner.class", true},
		{"Main", "app/Main$1.class", true},
		{"Main", "app/MainHelper.class", false},
		{"Main", "app/Other.class", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ownsOutput(tt.typeName, tt.output), "%s owns %s", tt.typeName, tt.output)
	}
}

func TestChangedOutputs(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	changed := changedOutputs(
		map[string]time.Time{"A.class": t0, "B.class": t0},
		map[string]time.Time{"A.class": t0, "B.class": t1, "C.class": t1},
	)
	assert.Equal(t, map[string]time.Time{"B.class": t1, "C.class": t1}, changed)
}

func TestAttributeOutputs(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	compiled := map[string]*state.SourceFileRecord{
		"app/Main.java":  state.NewRecord("app/Main.java", t0, nil),
		"lib/Node.java":  state.NewRecord("lib/Node.java", t0, nil),
		"misc/Node.java": state.NewRecord("misc/Node.java", t0, nil),
		"src/Flat.java":  state.NewRecord("src/Flat.java", t0, nil),
	}
	changed := map[string]time.Time{
		"app/Main.class":       t0,
		"app/Main$Inner.class": t0,
		"app/Stray.class":      t0,
		"lib/Node.class":       t0,
		"org/Node.class":       t0,
		"com/acme/Flat.class":  t0,
	}

	attributeOutputs(context.Background(), t.TempDir(), compiled, changed)

	// The only source in app/ takes what its type name does not explain
	assert.Equal(t, map[string]time.Time{
		"app/Main.class":       t0,
		"app/Main$Inner.class": t0,
		"app/Stray.class":      t0,
	}, compiled["app/Main.java"].OutputFiles)
	assert.Equal(t, map[string]time.Time{"lib/Node.class": t0}, compiled["lib/Node.java"].OutputFiles)
	// Shared type name: no guessing across folders
	assert.Empty(t, compiled["misc/Node.java"].OutputFiles)
	// Unique type name: claimed from another folder
	assert.Equal(t, map[string]time.Time{"com/acme/Flat.class": t0}, compiled["src/Flat.java"].OutputFiles)
}

func TestAttributeOutputsBySourceFileAttribute(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	outDir := t.TempDir()
	writeClass(t, filepath.Join(outDir, "app", "AHelper.class"), "A.java")
	writeClass(t, filepath.Join(outDir, "app", "A.class"), "A.java")
	writeClass(t, filepath.Join(outDir, "app", "B.class"), "B.java")
	writeClass(t, filepath.Join(outDir, "other", "Shared.class"), "Other.java")

	compiled := map[string]*state.SourceFileRecord{
		"app/A.java":       state.NewRecord("app/A.java", t0, nil),
		"app/B.java":       state.NewRecord("app/B.java", t0, nil),
		"app/Other.java":   state.NewRecord("app/Other.java", t0, nil),
		"other/Other.java": state.NewRecord("other/Other.java", t0, nil),
	}
	changed := map[string]time.Time{
		"app/A.class":        t0,
		"app/AHelper.class":  t0,
		"app/B.class":        t0,
		"other/Shared.class": t0,
	}

	attributeOutputs(context.Background(), outDir, compiled, changed)

	assert.Equal(t, map[string]time.Time{"app/A.class": t0, "app/AHelper.class": t0}, compiled["app/A.java"].OutputFiles)
	assert.Equal(t, map[string]time.Time{"app/B.class": t0}, compiled["app/B.java"].OutputFiles)
	// Same file name in two folders: the output's own folder wins
	assert.Equal(t, map[string]time.Time{"other/Shared.class": t0}, compiled["other/Other.java"].OutputFiles)
	assert.Empty(t, compiled["app/Other.java"].OutputFiles)
}

func TestRelativize(t *testing.T) {
	b := New(Options{Root: "/work/proj", SourceDir: "src"}, nil)

	tests := map[string]string{
		"/work/proj/src/app/Main.java": "app/Main.java",
		"src/app/Main.java":            "app/Main.java",
		"./src/app/Main.java":          "app/Main.java",
		"app/Main.java":                "app/Main.java",
		"/elsewhere/Main.java":         "/elsewhere/Main.java",
	}
	for in, want := range tests {
		assert.Equal(t, want, b.relativize(in), in)
	}
}
