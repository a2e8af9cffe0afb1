package executor

import (
	"bytes"
	"context"
	"os/exec"
)

// ProcessRunner defines an interface for running external processes.
// This abstraction allows for dependency injection and easier testing.
type ProcessRunner interface {
	// Run executes a command in dir and returns its stdout and stderr.
	// A non-zero exit is reported as an *exec.ExitError.
	Run(ctx context.Context, name string, args []string, dir string) (stdout, stderr []byte, err error)
}

// RealProcessRunner implements ProcessRunner using actual os/exec commands.
type RealProcessRunner struct{}

// Run executes a real external process.
func (r *RealProcessRunner) Run(ctx context.Context, name string, args []string, dir string) ([]byte, []byte, error) {
	// #nosec G204 -- Commands come from protocol adapters and the user's registry
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// NewRealProcessRunner creates a new real process runner.
func NewRealProcessRunner() *RealProcessRunner {
	return &RealProcessRunner{}
}
