package executor

import (
	"context"
	"errors"
	"sync"
)

// Call records a single invocation of MockProcessRunner.Run.
type Call struct {
	Name string
	Args []string
	Dir  string
}

// MockProcessRunner is a mock implementation of ProcessRunner for testing.
type MockProcessRunner struct {
	// RunFunc allows tests to provide custom behavior
	RunFunc func(ctx context.Context, name string, args []string, dir string) (stdout, stderr []byte, err error)

	mu    sync.Mutex
	calls []Call
}

// Run executes the mock behavior.
func (m *MockProcessRunner) Run(ctx context.Context, name string, args []string, dir string) ([]byte, []byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Name: name, Args: append([]string(nil), args...), Dir: dir})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args, dir)
	}

	// Default: empty success
	return nil, nil, nil
}

// Calls returns a copy of every recorded invocation in order.
func (m *MockProcessRunner) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times Run was called.
func (m *MockProcessRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// NewMockProcessRunner creates a new mock process runner.
func NewMockProcessRunner() *MockProcessRunner {
	return &MockProcessRunner{}
}

// NewErrorMockProcessRunner creates a mock whose every command fails with errMsg on stderr.
func NewErrorMockProcessRunner(errMsg string) *MockProcessRunner {
	return &MockProcessRunner{
		RunFunc: func(_ context.Context, _ string, _ []string, _ string) ([]byte, []byte, error) {
			return nil, []byte(errMsg), errors.New(errMsg)
		},
	}
}

// NewSuccessMockProcessRunner creates a mock whose every command succeeds with stdout.
func NewSuccessMockProcessRunner(stdout []byte) *MockProcessRunner {
	return &MockProcessRunner{
		RunFunc: func(_ context.Context, _ string, _ []string, _ string) ([]byte, []byte, error) {
			return stdout, nil, nil
		},
	}
}
