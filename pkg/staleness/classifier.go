// Package staleness decides which source files must be recompiled by
// comparing the current file system against the previous build state.
package staleness

import (
	"maps"
	"slices"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/ritzau/incbuild/pkg/manifest"
	"github.com/ritzau/incbuild/pkg/state"
)

// Kind is the classification of one source file
type Kind int

const (
	KindClean Kind = iota
	KindNew
	KindModified
	KindMissingOutputs
	KindStaleOutputs
	// KindRebuild is a clean file recompiled because of a global flag
	KindRebuild
	// KindDependent is a clean file pulled in by propagation
	KindDependent
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "new"
	case KindModified:
		return "modified"
	case KindMissingOutputs:
		return "missing outputs"
	case KindStaleOutputs:
		return "stale outputs"
	case KindRebuild:
		return "rebuild"
	case KindDependent:
		return "dependent"
	}
	return "clean"
}

// NeedsInference reports whether dependencies must be inferred afresh
func (k Kind) NeedsInference() bool {
	return k == KindNew || k == KindModified
}

// Input is everything the classifier looks at
type Input struct {
	Sources         map[string]time.Time // source snapshot, relative paths
	Outputs         map[string]time.Time // output directory snapshot, relative paths
	Previous        *state.BuildState
	CompilerVersion string
	Manifest        manifest.Manifest
}

// Result partitions the current source files
type Result struct {
	Kinds map[string]Kind

	// Compile holds the records scheduled for compilation. Records of new
	// and modified files carry no dependencies yet; the rest keep theirs.
	Compile map[string]*state.SourceFileRecord
	// Clean holds records carried forward unchanged
	Clean map[string]*state.SourceFileRecord

	// Deleted holds paths of previous records with no current file
	Deleted        map[string]bool
	DeletedOutputs []string

	DependenciesChanged bool
	CompilerChanged     bool
}

// FullRebuild reports whether a global flag forced every file to compile
func (r *Result) FullRebuild() bool {
	return r.DependenciesChanged || r.CompilerChanged
}

// NeedsInference returns the sorted paths that need fresh dependency inference
func (r *Result) NeedsInference() []string {
	var out []string
	for p, k := range r.Kinds {
		if k.NeedsInference() {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

// CompilePaths returns the compile set in sorted order
func (r *Result) CompilePaths() []string {
	return slices.Sorted(maps.Keys(r.Compile))
}

// Classify partitions every current source file. See Kind for the classes.
func Classify(in Input) *Result {
	prev := in.Previous
	if prev == nil {
		prev = state.New()
	}

	r := &Result{
		Kinds:               make(map[string]Kind, len(in.Sources)),
		Compile:             make(map[string]*state.SourceFileRecord),
		Clean:               make(map[string]*state.SourceFileRecord),
		Deleted:             make(map[string]bool),
		DependenciesChanged: !manifest.Equal(in.Manifest.Dependencies, prev.DeclaredDependencies()),
		CompilerChanged:     !SameVersion(in.CompilerVersion, prev.CompilerVersion),
	}

	for _, path := range slices.Sorted(maps.Keys(in.Sources)) {
		modified := in.Sources[path]
		old, ok := prev.Lookup(path)

		kind := classifyFile(old, ok, modified, in.Outputs)
		if kind == KindClean && r.FullRebuild() {
			kind = KindRebuild
		}
		r.Kinds[path] = kind

		switch kind {
		case KindClean:
			r.Clean[path] = old.Clone()
		case KindNew, KindModified:
			r.Compile[path] = state.NewRecord(path, modified, nil)
		default:
			r.Compile[path] = state.NewRecord(path, modified, old.Dependencies)
		}
	}

	for _, path := range prev.Paths() {
		if _, ok := in.Sources[path]; ok {
			continue
		}
		r.Deleted[path] = true
		r.DeletedOutputs = append(r.DeletedOutputs, slices.Sorted(maps.Keys(prev.SourceFiles[path].OutputFiles))...)
	}

	return r
}

func classifyFile(old *state.SourceFileRecord, ok bool, modified time.Time, outputs map[string]time.Time) Kind {
	switch {
	case !ok:
		return KindNew
	case !old.LastModified.Equal(modified):
		return KindModified
	case len(old.OutputFiles) == 0:
		return KindMissingOutputs
	}

	for out, recorded := range old.OutputFiles {
		current, present := outputs[out]
		if !present || !current.Equal(recorded) {
			return KindStaleOutputs
		}
	}
	return KindClean
}

// SameVersion compares compiler versions, semantically when both parse
func SameVersion(a, b string) bool {
	va, vb := "v"+strings.TrimPrefix(a, "v"), "v"+strings.TrimPrefix(b, "v")
	if semver.IsValid(va) && semver.IsValid(vb) {
		return semver.Compare(va, vb) == 0
	}
	return a == b
}
