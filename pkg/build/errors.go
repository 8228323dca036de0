package build

import (
	"errors"
	"fmt"

	"github.com/ritzau/incbuild/pkg/state"
)

// ExitFailure is the exit code of a build that could not run to completion
const ExitFailure = 1

var (
	// ErrNotFound marks a missing manifest, a missing package store entry or
	// a diagnostic for an unknown source file
	ErrNotFound = errors.New("not found")
	// ErrParse marks a malformed manifest
	ErrParse = errors.New("parse error")
)

// DanglingDiagnosticError reports a compiler diagnostic for a path that has
// no source file record. It aborts the build.
type DanglingDiagnosticError struct {
	Diagnostic state.Diagnostic
}

func (e *DanglingDiagnosticError) Error() string {
	return fmt.Sprintf("diagnostic for unknown source file %q: %s", e.Diagnostic.SourceFilePath, e.Diagnostic)
}

func (e *DanglingDiagnosticError) Unwrap() error {
	return ErrNotFound
}
