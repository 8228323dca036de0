package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/incbuild/pkg/state"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	// Keep the package store away from the real home folder
	t.Setenv("INCBUILD_PACKAGE_STORE", t.TempDir())

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "incbuild "+version) {
		t.Errorf("Unexpected version output %q", out)
	}
}

func TestStateCommand(t *testing.T) {
	project := t.TempDir()

	st := state.New()
	st.CompilerVersion = "17.0.2"
	rec := state.NewRecord("app/Main.java", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), []string{"app/Util.java"})
	rec.OutputFiles["app/Main.class"] = rec.LastModified
	if err := st.Put(rec); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(filepath.Join(project, ".incbuild", "state.json")); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "state", "--project", project)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	for _, want := range []string{"1 file(s)", "17.0.2", "app/Main.java", "app/Util.java"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestStateCommandWithoutState(t *testing.T) {
	_, err := execute(t, "state", "--project", t.TempDir())
	if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, state.ErrNotFound) {
		t.Errorf("Expected a not-found error, got %v", err)
	}
}

func TestBuildWithoutManifestFails(t *testing.T) {
	project := t.TempDir()
	if err := os.MkdirAll(filepath.Join(project, "src"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "build", "--project", project, "--compiler", "incbuild-missing-compiler")
	if err == nil {
		t.Fatal("Expected build to fail without a manifest")
	}
	var exit *exitCodeError
	if errors.As(err, &exit) {
		t.Errorf("Fatal errors must not surface as compiler exit codes, got %v", err)
	}
}
