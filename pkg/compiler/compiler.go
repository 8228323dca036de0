// Package compiler drives the external compiler: a version query and a
// single blocking compile invocation per build.
package compiler

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/ritzau/incbuild/pkg/logging"
)

// DefaultExecutable is the compiler used when none is configured
const DefaultExecutable = "javac"

// ErrNoVersion is returned when the version query prints no version number
var ErrNoVersion = errors.New("no version in compiler output")

var versionPattern = regexp.MustCompile(`\d+(\.\d+)*`)

// Compiler runs one compiler executable through an Executor
type Compiler struct {
	Executable string
	Executor   Executor
	// Dir is the working directory of every invocation
	Dir string
}

// New creates a compiler running executable with the default executor
func New(executable, dir string) *Compiler {
	if executable == "" {
		executable = DefaultExecutable
	}
	return &Compiler{
		Executable: executable,
		Executor:   NewExecutor(),
		Dir:        dir,
	}
}

// Invocation describes one compile
type Invocation struct {
	OutputDir string
	ClassPath []string
	Lint      []string
	Files     []string
}

// Args renders the argument list: output dir, class path, lint flags and
// the sorted files
func (inv Invocation) Args() []string {
	args := []string{"-d", inv.OutputDir}
	if len(inv.ClassPath) > 0 {
		args = append(args, "-cp", strings.Join(inv.ClassPath, string(os.PathListSeparator)))
	}
	args = append(args, inv.Lint...)

	files := slices.Clone(inv.Files)
	slices.Sort(files)
	return append(args, files...)
}

// Result is the outcome of a compile. A failed compile is not an error.
type Result struct {
	ExitCode int
	Stderr   []byte
}

// Compile invokes the compiler once and blocks until it exits
func (c *Compiler) Compile(ctx context.Context, inv Invocation) (*Result, error) {
	args := inv.Args()
	logging.DebugContext(ctx, "invoking compiler", "exe", c.Executable, "files", len(inv.Files))
	logging.TraceContext(ctx, "compiler arguments", "args", args)

	_, stderr, code, err := c.Executor.Run(ctx, c.Dir, c.Executable, args)
	if err != nil {
		return nil, fmt.Errorf("compiler %s: %w", c.Executable, err)
	}

	logging.DebugContext(ctx, "compiler exited", "exitCode", code, "stderrBytes", len(stderr))
	return &Result{ExitCode: code, Stderr: stderr}, nil
}

// Version asks the compiler for its version, normalized to MAJOR.MINOR.PATCH
func (c *Compiler) Version(ctx context.Context) (string, error) {
	stdout, stderr, code, err := c.Executor.Run(ctx, c.Dir, c.Executable, []string{"-version"})
	if err != nil {
		return "", fmt.Errorf("probing %s version: %w", c.Executable, err)
	}
	if code != 0 {
		return "", fmt.Errorf("probing %s version: exit code %d", c.Executable, code)
	}

	// javac prints to stdout on recent releases, stderr on older ones
	line := firstLine(stdout)
	if line == "" {
		line = firstLine(stderr)
	}

	v, err := ParseVersion(line)
	if err != nil {
		return "", fmt.Errorf("probing %s version from %q: %w", c.Executable, line, err)
	}
	return v, nil
}

// ParseVersion extracts the first dotted number from line and normalizes it
// ("javac 17.0.2" -> "17.0.2", "javac 21" -> "21.0.0", "javac 1.8.0_392" ->
// "1.8.0")
func ParseVersion(line string) (string, error) {
	raw := versionPattern.FindString(line)
	if raw == "" {
		return "", ErrNoVersion
	}

	v := "v" + raw
	if !semver.IsValid(v) {
		// More than three components, keep the first three
		parts := strings.SplitN(raw, ".", 4)
		v = "v" + strings.Join(parts[:min(len(parts), 3)], ".")
	}
	v = semver.Canonical(v)
	if v == "" {
		return "", fmt.Errorf("%w: %q", ErrNoVersion, raw)
	}
	return strings.TrimPrefix(v, "v"), nil
}

func firstLine(b []byte) string {
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		if line := strings.TrimSpace(s.Text()); line != "" {
			return line
		}
	}
	return ""
}
