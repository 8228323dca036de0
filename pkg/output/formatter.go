// Package output renders build results for the console.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/incbuild/pkg/build"
	"github.com/ritzau/incbuild/pkg/diagnostics"
	"github.com/ritzau/incbuild/pkg/state"
)

// PrintBuildReport prints a build report with colors
func PrintBuildReport(w io.Writer, project string, r *build.Report) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(w, "incbuild: %s\n", project)
	if r.CompilerChanged {
		yellow.Fprintf(w, "Compiler changed to %s, rebuilding everything\n", r.CompilerVersion)
	}
	if r.DependenciesChanged {
		yellow.Fprintln(w, "Declared dependencies changed, rebuilding everything")
	}

	if len(r.Deleted) > 0 {
		fmt.Fprintf(w, "Deleted: %d file(s)\n", len(r.Deleted))
		for _, p := range r.Deleted {
			red.Fprintf(w, "  - %s\n", p)
		}
	}

	if r.UpToDate() {
		green.Fprintln(w, "Up to date, nothing to compile")
	} else {
		fmt.Fprintf(w, "Compiled: %d file(s)\n", len(r.Compiled))
		for _, p := range r.Compiled {
			cyan.Fprintf(w, "  %s", p)
			fmt.Fprintf(w, " (%s)\n", r.Kinds[p])
		}
	}

	printIssues(w, "New issues", r.NewIssues)
	printIssues(w, "Unmodified issues", r.UnmodifiedIssues)

	if len(r.Cycles) > 0 {
		fmt.Fprintf(w, "Dependency cycles: %d\n", len(r.Cycles))
	}

	summary := diagnostics.Count(r.NewIssues).Add(diagnostics.Count(r.UnmodifiedIssues))
	fmt.Fprintf(w, "Issues: %d error(s), %d warning(s)", summary.Errors, summary.Warnings)
	if summary.Unrecognized > 0 {
		fmt.Fprintf(w, ", %d other", summary.Unrecognized)
	}
	fmt.Fprintln(w)

	if r.ExitCode == 0 {
		green.Fprintf(w, "✓ Build succeeded in %s\n", r.Duration.Round(time.Millisecond))
	} else {
		red.Fprintf(w, "✗ Build failed with exit code %d\n", r.ExitCode)
	}
}

func printIssues(w io.Writer, title string, issues []state.Diagnostic) {
	if len(issues) == 0 {
		return
	}

	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	fmt.Fprintf(w, "%s: %d\n", title, len(issues))
	for _, d := range issues {
		c := yellow
		if diagnostics.Classify(d.Type) == diagnostics.SeverityError {
			c = red
		}
		c.Fprintf(w, "  %s:%d:%d: %s: ", d.SourceFilePath, d.LineNumber, d.ColumnNumber, d.Type)
		fmt.Fprintln(w, d.Message)
	}
}

// PrintStateSummary prints a persisted build state file by file
func PrintStateSummary(w io.Writer, s *state.BuildState) {
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(w, "Build state: %d file(s), compiler %s\n", len(s.SourceFiles), s.CompilerVersion)
	if len(s.Manifest.Dependencies) > 0 {
		fmt.Fprintln(w, "Declared dependencies:")
		for _, d := range s.Manifest.Dependencies {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}

	for _, p := range s.Paths() {
		rec := s.SourceFiles[p]
		cyan.Fprintln(w, p)
		fmt.Fprintf(w, "  modified:     %s\n", rec.LastModified.Format(time.RFC3339))
		fmt.Fprintf(w, "  dependencies: %d\n", len(rec.Dependencies))
		for _, d := range rec.Dependencies {
			fmt.Fprintf(w, "    %s\n", d)
		}
		fmt.Fprintf(w, "  outputs:      %d\n", len(rec.OutputFiles))
		if n := diagnostics.Count(rec.Issues); n.Total() > 0 {
			fmt.Fprintf(w, "  issues:       %d error(s), %d warning(s)\n", n.Errors, n.Warnings)
		}
	}
}
