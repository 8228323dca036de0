package watcher

import "fmt"

// ChangeAnalysis describes what changed and what a rebuild has to reload
type ChangeAnalysis struct {
	NeedBuild    bool
	NeedManifest bool
	ChangedFiles []string
}

// AnalyzeChanges decides how to react to a debounced change event. Every
// relevant change needs a build; the build itself works out how much to
// recompile. Manifest changes also mean the package store is resolved again.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
		NeedBuild:    len(event.Paths) > 0,
	}

	if event.Type == ChangeTypeManifest {
		analysis.NeedManifest = true
	}

	return analysis
}

// Reason summarizes an analysis for logs, e.g. "2 source file(s) changed"
func (a *ChangeAnalysis) Reason() string {
	if a.NeedManifest {
		return "manifest changed"
	}
	if len(a.ChangedFiles) == 1 {
		return a.ChangedFiles[0] + " changed"
	}
	return fmt.Sprintf("%d source file(s) changed", len(a.ChangedFiles))
}
