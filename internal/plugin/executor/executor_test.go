package executor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/plugsync/pkg/plugin"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		keepBlank bool
		want      []string
	}{
		{name: "empty", text: "", want: nil},
		{name: "single line no newline", text: "hello", want: []string{"hello"}},
		{name: "trailing newline", text: "a\nb\n", want: []string{"a", "b"}},
		{name: "crlf", text: "a\r\nb\r\n", want: []string{"a", "b"}},
		{name: "blank lines dropped", text: "a\n\nb\n\n", want: []string{"a", "b"}},
		{name: "blank lines kept", text: "a\n\nb\n", keepBlank: true, want: []string{"a", "", "b"}},
		{name: "mixed endings kept", text: "a\r\n\r\nb", keepBlank: true, want: []string{"a", "", "b"}},
		{name: "only newline kept", text: "\n", keepBlank: true, want: []string{""}},
		{name: "only newline dropped", text: "\n", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLines(tt.text, tt.keepBlank)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutorRunSuccess(t *testing.T) {
	mock := NewSuccessMockProcessRunner([]byte("Already up to date.\n"))
	exec := New(mock, nil)

	res := exec.Run(context.Background(), plugin.NewCommand("git", "pull"), "/tmp")

	assert.True(t, res.Success)
	assert.Equal(t, []string{"Already up to date."}, res.StdoutLines(false))
	require.Equal(t, 1, mock.CallCount())
	assert.Equal(t, Call{Name: "git", Args: []string{"pull"}, Dir: "/tmp"}, mock.Calls()[0])
}

func TestExecutorRunStartFailure(t *testing.T) {
	mock := NewErrorMockProcessRunner("boom")
	exec := New(mock, nil)

	res := exec.Run(context.Background(), plugin.NewCommand("nope"), "")

	assert.False(t, res.Success)
	assert.Equal(t, []string{"boom", "nope: boom"}, res.StderrLines(false))
}

func TestExecutorRunExitStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	exec := New(nil, nil)

	res := exec.Run(context.Background(), plugin.NewCommand("sh", "-c", "echo out; echo err >&2; exit 3"), t.TempDir())

	assert.False(t, res.Success)
	assert.Equal(t, []string{"out"}, res.StdoutLines(false))
	// An exit status is not a start failure, so stderr is passed through untouched.
	assert.Equal(t, []string{"err"}, res.StderrLines(false))
	assert.Equal(t, []string{"out", "err"}, res.Lines(false))
}

func TestExecutorRunUsesDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o600))

	res := New(nil, nil).Run(context.Background(), plugin.NewCommand("ls"), dir)

	assert.True(t, res.Success)
	assert.Contains(t, res.StdoutLines(false), "marker")
}

func TestResolveDir(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	assert.Equal(t, dir, ResolveDir(dir))
	assert.Equal(t, wd, ResolveDir(""))
	assert.Equal(t, wd, ResolveDir(filepath.Join(dir, "missing")))
	assert.Equal(t, wd, ResolveDir(file))
}
