package compiler

import (
	"context"
	"slices"
	"sync"
)

// Call is one recorded MockExecutor invocation
type Call struct {
	Dir  string
	Name string
	Args []string
}

// MockExecutor is a mock implementation of Executor for testing. When
// RunFunc is set it decides the outcome; otherwise the fixed fields are
// returned.
type MockExecutor struct {
	MockStdout   []byte
	MockStderr   []byte
	MockExitCode int
	MockError    error

	RunFunc func(ctx context.Context, dir, name string, args []string) ([]byte, []byte, int, error)

	mu    sync.Mutex
	calls []Call
}

func (m *MockExecutor) Run(ctx context.Context, dir, name string, args []string) ([]byte, []byte, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Dir: dir, Name: name, Args: slices.Clone(args)})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, dir, name, args)
	}
	return m.MockStdout, m.MockStderr, m.MockExitCode, m.MockError
}

// Calls returns the invocations recorded so far
func (m *MockExecutor) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}
