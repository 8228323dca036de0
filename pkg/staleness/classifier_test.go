package staleness

import (
	"testing"
	"time"

	"github.com/ritzau/incbuild/pkg/manifest"
	"github.com/ritzau/incbuild/pkg/state"
)

var (
	t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

var utilDep = manifest.Dependency{Publisher: "acme", Project: "util", Version: "1.0.0"}

func previousState(t *testing.T) *state.BuildState {
	t.Helper()
	s := state.New()
	s.CompilerVersion = "17.0.2"
	s.Manifest = manifest.Manifest{Dependencies: []manifest.Dependency{utilDep}}

	put := func(path string, deps []string, outputs map[string]time.Time) {
		rec := state.NewRecord(path, t0, deps)
		for k, v := range outputs {
			rec.OutputFiles[k] = v
		}
		if err := s.Put(rec); err != nil {
			t.Fatal(err)
		}
	}
	put("Clean.java", nil, map[string]time.Time{"Clean.class": t0})
	put("Modified.java", []string{"Clean.java"}, map[string]time.Time{"Modified.class": t0})
	put("NoOutputs.java", []string{"Clean.java"}, nil)
	put("Tampered.java", []string{"Clean.java"}, map[string]time.Time{"Tampered.class": t0})
	put("Missing.java", nil, map[string]time.Time{"Missing.class": t0, "Missing$1.class": t0})
	put("Gone.java", nil, map[string]time.Time{"Gone.class": t0})
	return s
}

func currentInput(prev *state.BuildState) Input {
	return Input{
		Sources: map[string]time.Time{
			"Clean.java":     t0,
			"Modified.java":  t1,
			"NoOutputs.java": t0,
			"Tampered.java":  t0,
			"Missing.java":   t0,
			"Fresh.java":     t1,
		},
		Outputs: map[string]time.Time{
			"Clean.class":     t0,
			"Modified.class":  t0,
			"Tampered.class":  t1,
			"Missing$1.class": t0,
			"Gone.class":      t0,
		},
		Previous:        prev,
		CompilerVersion: "17.0.2",
		Manifest:        manifest.Manifest{Dependencies: []manifest.Dependency{utilDep}},
	}
}

func TestClassify(t *testing.T) {
	prev := previousState(t)
	r := Classify(currentInput(prev))

	want := map[string]Kind{
		"Clean.java":     KindClean,
		"Modified.java":  KindModified,
		"NoOutputs.java": KindMissingOutputs,
		"Tampered.java":  KindStaleOutputs,
		"Missing.java":   KindStaleOutputs,
		"Fresh.java":     KindNew,
	}
	for path, kind := range want {
		if got := r.Kinds[path]; got != kind {
			t.Errorf("%s: got %v, want %v", path, got, kind)
		}
	}

	if r.FullRebuild() {
		t.Error("Expected no global rebuild")
	}
	if len(r.Clean) != 1 || r.Clean["Clean.java"] == nil {
		t.Errorf("Expected only Clean.java in clean set, got %v", r.Clean)
	}
	if len(r.Compile) != 5 {
		t.Errorf("Expected 5 files in compile set, got %v", r.CompilePaths())
	}

	// Dependencies are re-inferred for new and modified files only
	if deps := r.Compile["Modified.java"].Dependencies; len(deps) != 0 {
		t.Errorf("Expected modified file dependencies to be discarded, got %v", deps)
	}
	if deps := r.Compile["NoOutputs.java"].Dependencies; len(deps) != 1 || deps[0] != "Clean.java" {
		t.Errorf("Expected missing-outputs file to keep dependencies, got %v", deps)
	}
	if got := r.NeedsInference(); len(got) != 2 || got[0] != "Fresh.java" || got[1] != "Modified.java" {
		t.Errorf("Unexpected inference set %v", got)
	}

	if !r.Deleted["Gone.java"] || len(r.Deleted) != 1 {
		t.Errorf("Expected Gone.java deleted, got %v", r.Deleted)
	}
	if len(r.DeletedOutputs) != 1 || r.DeletedOutputs[0] != "Gone.class" {
		t.Errorf("Expected Gone.class scheduled for removal, got %v", r.DeletedOutputs)
	}
}

func TestClassifyCarriesCleanRecordsByCopy(t *testing.T) {
	prev := previousState(t)
	r := Classify(currentInput(prev))

	r.Clean["Clean.java"].OutputFiles["Extra.class"] = t1
	if len(prev.SourceFiles["Clean.java"].OutputFiles) != 1 {
		t.Error("Mutating a clean record must not touch the previous state")
	}
}

func TestClassifyGlobalFlags(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Input)
		compiler bool
		deps     bool
	}{
		{
			name:     "compiler version changed",
			mutate:   func(in *Input) { in.CompilerVersion = "21.0.1" },
			compiler: true,
		},
		{
			name: "dependency set changed",
			mutate: func(in *Input) {
				in.Manifest.Dependencies = []manifest.Dependency{{Publisher: "acme", Project: "util", Version: "2.0.0"}}
			},
			deps: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := currentInput(previousState(t))
			tt.mutate(&in)
			r := Classify(in)

			if r.CompilerChanged != tt.compiler || r.DependenciesChanged != tt.deps {
				t.Errorf("flags = (%v, %v), want (%v, %v)", r.CompilerChanged, r.DependenciesChanged, tt.compiler, tt.deps)
			}
			if len(r.Clean) != 0 {
				t.Errorf("Expected empty clean set, got %v", r.Clean)
			}
			if len(r.Compile) != len(in.Sources) {
				t.Errorf("Expected every source compiled, got %v", r.CompilePaths())
			}
			if r.Kinds["Clean.java"] != KindRebuild {
				t.Errorf("Expected Clean.java to be rebuilt, got %v", r.Kinds["Clean.java"])
			}
			// Per-file kinds are still evaluated
			if r.Kinds["Fresh.java"] != KindNew || r.Kinds["Modified.java"] != KindModified {
				t.Errorf("Unexpected per-file kinds %v", r.Kinds)
			}
		})
	}
}

func TestClassifyWithoutPreviousState(t *testing.T) {
	r := Classify(Input{
		Sources:         map[string]time.Time{"A.java": t0},
		CompilerVersion: "17.0.2",
	})
	if r.Kinds["A.java"] != KindNew {
		t.Errorf("Expected A.java new, got %v", r.Kinds["A.java"])
	}
}

func TestSameVersion(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"17.0.2", "17.0.2", true},
		{"17", "17.0.0", true},
		{"v17.0.2", "17.0.2", true},
		{"17.0.2", "17.0.3", false},
		{"weird", "weird", true},
		{"weird", "other", false},
		{"", "17.0.2", false},
	}
	for _, tt := range tests {
		if got := SameVersion(tt.a, tt.b); got != tt.want {
			t.Errorf("SameVersion(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
