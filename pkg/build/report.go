package build

import (
	"time"

	"github.com/ritzau/incbuild/pkg/cycles"
	"github.com/ritzau/incbuild/pkg/staleness"
	"github.com/ritzau/incbuild/pkg/state"
)

// Report summarizes one build
type Report struct {
	BuildID  string
	ExitCode int

	// Compiled is the sorted compile set; Kinds says why each file is in it
	Compiled   []string
	Kinds      map[string]staleness.Kind
	Propagated []string
	Deleted    []string

	CompilerVersion     string
	CompilerChanged     bool
	DependenciesChanged bool

	// NewIssues were reported by this compile; UnmodifiedIssues were carried
	// with clean files from earlier builds
	NewIssues              []state.Diagnostic
	UnmodifiedIssues       []state.Diagnostic
	SkippedDiagnosticLines int

	Cycles []cycles.FileCycle
	State  *state.BuildState

	Duration time.Duration
}

// UpToDate reports whether the build had nothing to compile
func (r *Report) UpToDate() bool {
	return len(r.Compiled) == 0
}

// Issues returns every issue of the new state, new ones first
func (r *Report) Issues() []state.Diagnostic {
	out := make([]state.Diagnostic, 0, len(r.NewIssues)+len(r.UnmodifiedIssues))
	out = append(out, r.NewIssues...)
	return append(out, r.UnmodifiedIssues...)
}
