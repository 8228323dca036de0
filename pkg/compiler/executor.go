package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Executor runs an external process to completion
type Executor interface {
	// Run starts name with args in dir and waits for it to exit. A non-zero
	// exit code is reported through exitCode, not err; err is reserved for
	// failing to start or wait for the process.
	Run(ctx context.Context, dir, name string, args []string) (stdout, stderr []byte, exitCode int, err error)
}

// DefaultExecutor is the default implementation of Executor that runs actual commands
type DefaultExecutor struct{}

// NewExecutor creates a new default executor
func NewExecutor() Executor {
	return &DefaultExecutor{}
}

// Run executes the command and captures both output streams. There is no
// timeout; the call returns when the process exits or ctx is cancelled.
func (e *DefaultExecutor) Run(ctx context.Context, dir, name string, args []string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
		}
		return stdout.Bytes(), stderr.Bytes(), -1, fmt.Errorf("running %s: %w", name, err)
	}

	return stdout.Bytes(), stderr.Bytes(), 0, nil
}
