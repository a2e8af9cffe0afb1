// Package executor runs the external commands that sync, build and diff
// plugins, and turns their output into lines for the report surfaces.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/pkg/plugin"
)

var newline = regexp.MustCompile(`\r?\n`)

// Result is the outcome of a single command.
type Result struct {
	// Success reflects the exit status only.
	Success bool

	Stdout string
	Stderr string
}

// StdoutLines splits stdout into lines. Blank lines are kept only if keepBlank is set.
func (r Result) StdoutLines(keepBlank bool) []string {
	return SplitLines(r.Stdout, keepBlank)
}

// StderrLines splits stderr into lines. Blank lines are kept only if keepBlank is set.
func (r Result) StderrLines(keepBlank bool) []string {
	return SplitLines(r.Stderr, keepBlank)
}

// Lines returns stdout lines followed by stderr lines.
func (r Result) Lines(keepBlank bool) []string {
	return append(r.StdoutLines(keepBlank), r.StderrLines(keepBlank)...)
}

// Executor runs plugin commands through a ProcessRunner.
type Executor struct {
	runner ProcessRunner
	logger hclog.Logger
}

// New creates an Executor. A nil runner uses the real os/exec runner and a
// nil logger discards everything.
func New(runner ProcessRunner, logger hclog.Logger) *Executor {
	if runner == nil {
		runner = NewRealProcessRunner()
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Executor{runner: runner, logger: logger}
}

// Run executes cmd in dir. It never fails: a non-zero exit or a command
// that cannot be started yields Success=false, with the start error
// appended to Stderr.
func (e *Executor) Run(ctx context.Context, cmd plugin.Command, dir string) Result {
	e.logger.Debug("running command", "cmd", cmd.String(), "dir", dir)

	stdout, stderr, err := e.runner.Run(ctx, cmd.Name, cmd.Args, dir)
	res := Result{
		Success: err == nil,
		Stdout:  string(stdout),
		Stderr:  string(stderr),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Not an exit status: the process never ran.
			if res.Stderr != "" && res.Stderr[len(res.Stderr)-1] != '\n' {
				res.Stderr += "\n"
			}
			res.Stderr += fmt.Sprintf("%s: %v\n", cmd.Name, err)
		}
		e.logger.Debug("command failed", "cmd", cmd.Name, "error", err)
	}

	return res
}

// ResolveDir returns path if it is an existing directory, otherwise the
// current working directory.
func ResolveDir(path string) string {
	if IsDir(path) {
		return path
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// IsDir reports whether path names an existing directory.
func IsDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SplitLines splits text on "\n" and "\r\n". The empty remainder after a
// final newline is never returned; other blank lines are dropped unless
// keepBlank is set.
func SplitLines(text string, keepBlank bool) []string {
	if text == "" {
		return nil
	}

	parts := newline.Split(text, -1)
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	if keepBlank {
		return parts
	}

	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}
