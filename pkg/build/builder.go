// Package build runs one incremental build: it classifies source files
// against the previous build state, closes the compile set over inferred
// dependencies, invokes the compiler once and persists the new state.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ritzau/incbuild/pkg/compiler"
	"github.com/ritzau/incbuild/pkg/cycles"
	"github.com/ritzau/incbuild/pkg/deps"
	"github.com/ritzau/incbuild/pkg/diagnostics"
	"github.com/ritzau/incbuild/pkg/finder"
	"github.com/ritzau/incbuild/pkg/graph"
	"github.com/ritzau/incbuild/pkg/logging"
	"github.com/ritzau/incbuild/pkg/manifest"
	"github.com/ritzau/incbuild/pkg/pubsub"
	"github.com/ritzau/incbuild/pkg/staleness"
	"github.com/ritzau/incbuild/pkg/state"
)

const totalSteps = 5

// Options locates the project. Relative paths are resolved against Root.
type Options struct {
	Root         string
	SourceDir    string
	OutputDir    string
	StateFile    string
	ManifestPath string
	PackageStore string
	Extension    string
	Lint         []string
}

func (o Options) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.Root, p)
}

// Builder runs builds for one project
type Builder struct {
	Options  Options
	Compiler *compiler.Compiler
	// Publisher receives build status events when set
	Publisher pubsub.Publisher
}

// New creates a builder
func New(opts Options, c *compiler.Compiler) *Builder {
	return &Builder{Options: opts, Compiler: c}
}

func (b *Builder) publish(ctx context.Context, kind, message string, step int, exitCode *int) {
	if b.Publisher == nil {
		return
	}
	status := pubsub.BuildStatus{
		State:    kind,
		Message:  message,
		Step:     step,
		Total:    totalSteps,
		BuildID:  logging.GetBuildID(ctx),
		ExitCode: exitCode,
	}
	if err := b.Publisher.Publish(pubsub.TopicBuildStatus, kind, status); err != nil {
		logging.DebugContext(ctx, "could not publish build status", "error", err)
	}
}

// Build runs one build. Fatal errors are returned with a nil report; a
// compile that fails is not an error, its exit code is in the report.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	if logging.GetBuildID(ctx) == "" {
		ctx = logging.WithBuildID(ctx, uuid.NewString())
	}
	start := time.Now()

	b.publish(ctx, pubsub.EventStarted, "Loading project", 1, nil)
	report, err := b.build(ctx)
	if err != nil {
		logging.DebugContext(ctx, "build failed", "error", err)
		b.publish(ctx, pubsub.EventFailed, err.Error(), totalSteps, nil)
		return nil, err
	}

	report.BuildID = logging.GetBuildID(ctx)
	report.Duration = time.Since(start)

	exitCode := report.ExitCode
	b.publish(ctx, pubsub.EventFinished, fmt.Sprintf("Build finished with exit code %d", exitCode), totalSteps, &exitCode)
	logging.InfoContext(ctx, "build finished",
		"exitCode", report.ExitCode,
		"compiled", len(report.Compiled),
		"issues", len(report.NewIssues)+len(report.UnmodifiedIssues),
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

func (b *Builder) build(ctx context.Context) (*Report, error) {
	opts := b.Options
	srcDir := opts.resolve(opts.SourceDir)
	outDir := opts.resolve(opts.OutputDir)
	stateFile := opts.resolve(opts.StateFile)

	m, err := manifest.Load(opts.resolve(opts.ManifestPath))
	if err != nil {
		return nil, classify(err)
	}
	resolved, err := manifest.NewStore(opts.PackageStore).Resolve(m)
	if err != nil {
		return nil, fmt.Errorf("resolving dependencies of %s: %w", m.Name(), classify(err))
	}
	logging.DebugContext(ctx, "resolved dependencies", "project", m.Name(), "count", len(resolved))

	version, err := b.Compiler.Version(ctx)
	if err != nil {
		return nil, err
	}

	prev := loadPrevious(ctx, stateFile)

	b.publish(ctx, pubsub.EventClassifying, "Classifying source files", 2, nil)
	sources, err := finder.Snapshot(srcDir, opts.Extension)
	if err != nil {
		return nil, fmt.Errorf("scanning sources: %w", err)
	}
	outputs, err := finder.Snapshot(outDir, "")
	if err != nil {
		return nil, fmt.Errorf("scanning outputs: %w", err)
	}

	cls := staleness.Classify(staleness.Input{
		Sources:         sources,
		Outputs:         outputs,
		Previous:        prev,
		CompilerVersion: version,
		Manifest:        m,
	})
	if cls.FullRebuild() {
		logging.InfoContext(ctx, "rebuilding everything",
			"compilerChanged", cls.CompilerChanged,
			"dependenciesChanged", cls.DependenciesChanged)
	}
	finder.RemoveBestEffort(outDir, cls.DeletedOutputs...)

	b.publish(ctx, pubsub.EventInferring, "Inferring dependencies", 3, nil)
	inferencer := deps.NewInferencer(srcDir, slices.Collect(maps.Keys(sources)))
	inferred, err := inferencer.InferAll(ctx, cls.NeedsInference())
	if err != nil {
		return nil, fmt.Errorf("inferring dependencies: %w", err)
	}
	for _, fd := range inferred {
		cls.Compile[fd.SourceFile].SetDependencies(fd.Dependencies)
	}

	propagated := graph.Propagate(cls.Compile, cls.Clean, cls.Deleted)
	for _, p := range propagated {
		cls.Kinds[p] = staleness.KindDependent
	}

	report := &Report{
		Compiled:            cls.CompilePaths(),
		Kinds:               cls.Kinds,
		Propagated:          propagated,
		Deleted:             slices.Sorted(maps.Keys(cls.Deleted)),
		CompilerVersion:     version,
		CompilerChanged:     cls.CompilerChanged,
		DependenciesChanged: cls.DependenciesChanged,
	}
	logging.DebugContext(ctx, "compile set closed",
		"compile", len(report.Compiled),
		"propagated", len(propagated),
		"clean", len(cls.Clean),
		"deleted", len(report.Deleted))

	next := state.New()
	next.CompilerVersion = version
	next.Manifest = m
	for _, rec := range cls.Clean {
		if err := next.Put(rec); err != nil {
			return nil, err
		}
	}

	if len(report.Compiled) > 0 {
		b.publish(ctx, pubsub.EventCompiling, fmt.Sprintf("Compiling %d files", len(report.Compiled)), 4, nil)
		if err := b.compile(ctx, cls.Compile, prev, sources, resolved, next, report); err != nil {
			return nil, err
		}
	} else {
		logging.InfoContext(ctx, "all files up to date", "files", len(sources))
	}

	b.publish(ctx, pubsub.EventSaving, "Saving build state", 5, nil)
	if err := next.Save(stateFile); err != nil {
		return nil, err
	}

	for _, p := range next.Paths() {
		if _, compiled := cls.Compile[p]; !compiled {
			report.UnmodifiedIssues = append(report.UnmodifiedIssues, next.SourceFiles[p].Issues...)
		}
	}
	report.Cycles = cycles.FindFileCycles(graph.FromState(next))
	if len(report.Cycles) > 0 {
		logging.DebugContext(ctx, "dependency cycles present", "count", len(report.Cycles))
	}
	report.State = next
	return report, nil
}

// compile invokes the compiler over the compile set and attaches its
// diagnostics and outputs to the records, which are added to next
func (b *Builder) compile(
	ctx context.Context,
	compile map[string]*state.SourceFileRecord,
	prev *state.BuildState,
	sources map[string]time.Time,
	resolved []manifest.Resolved,
	next *state.BuildState,
	report *Report,
) error {
	opts := b.Options
	srcDir := opts.resolve(opts.SourceDir)
	outDir := opts.resolve(opts.OutputDir)

	// Each compiled record starts over: its outputs are regenerated and its
	// issues are whatever this compile reports
	var stale []string
	for p, rec := range compile {
		if old, ok := prev.Lookup(p); ok {
			stale = append(stale, slices.Collect(maps.Keys(old.OutputFiles))...)
		}
		rec.LastModified = sources[p]
		rec.Issues = nil
		rec.OutputFiles = make(map[string]time.Time)
		if err := next.Put(rec); err != nil {
			return err
		}
	}
	slices.Sort(stale)
	finder.RemoveBestEffort(outDir, stale...)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	before, err := finder.Snapshot(outDir, "")
	if err != nil {
		return fmt.Errorf("scanning outputs: %w", err)
	}

	classPath := []string{outDir}
	for _, r := range resolved {
		classPath = append(classPath, r.OutputDir)
	}
	files := make([]string, 0, len(report.Compiled))
	for _, p := range report.Compiled {
		files = append(files, filepath.Join(srcDir, filepath.FromSlash(p)))
	}

	res, err := b.Compiler.Compile(ctx, compiler.Invocation{
		OutputDir: outDir,
		ClassPath: classPath,
		Lint:      opts.Lint,
		Files:     files,
	})
	if err != nil {
		return err
	}
	report.ExitCode = res.ExitCode

	parser := diagnostics.NewParser(bytes.NewReader(res.Stderr))
	for d := range parser.All() {
		d.SourceFilePath = b.relativize(d.SourceFilePath)
		rec, ok := next.Lookup(d.SourceFilePath)
		if !ok {
			return &DanglingDiagnosticError{Diagnostic: d}
		}
		rec.AddIssue(d)
		report.NewIssues = append(report.NewIssues, d)
	}
	if err := parser.Err(); err != nil {
		return fmt.Errorf("reading compiler output: %w", err)
	}
	report.SkippedDiagnosticLines = parser.Skipped()
	if report.SkippedDiagnosticLines > 0 {
		logging.WarnContext(ctx, "skipped unparseable diagnostic headers", "count", report.SkippedDiagnosticLines)
	}

	if res.ExitCode != 0 {
		return nil
	}
	after, err := finder.Snapshot(outDir, "")
	if err != nil {
		return fmt.Errorf("scanning outputs: %w", err)
	}
	attributeOutputs(ctx, outDir, compile, changedOutputs(before, after))
	return nil
}

// relativize maps a compiler-reported path onto a record path
func (b *Builder) relativize(p string) string {
	p = state.NormalizePath(p)
	srcDir := b.Options.resolve(b.Options.SourceDir)

	prefixes := []string{filepath.ToSlash(srcDir)}
	if !filepath.IsAbs(b.Options.SourceDir) {
		prefixes = append(prefixes, state.NormalizePath(b.Options.SourceDir))
	}
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(p, prefix+"/"); ok {
			return rest
		}
	}
	return p
}

// loadPrevious reads the previous state. A missing or unreadable state file
// means a first build.
func loadPrevious(ctx context.Context, path string) *state.BuildState {
	prev, err := state.Load(path)
	switch {
	case err == nil:
		return prev
	case errors.Is(err, fs.ErrNotExist):
		logging.InfoContext(ctx, "no previous build state, building everything", "path", path)
	default:
		logging.WarnContext(ctx, "ignoring unreadable build state", "path", path, "error", err)
	}
	return state.New()
}

// classify tags manifest and store errors with the build error kinds
func classify(err error) error {
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, manifest.ErrParse):
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return err
}
