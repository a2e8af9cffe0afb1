package builder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/report"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

func newBuilder(runner executor.ProcessRunner, progress report.Sink) *Builder {
	return New(executor.New(runner, nil), "/bin/sh", "-c", progress, nil)
}

func TestBuildRunsShellInPluginDir(t *testing.T) {
	dir := t.TempDir()
	mock := executor.NewSuccessMockProcessRunner([]byte("cc -o a a.c\n\ndone\n"))
	var progress report.Buffer

	newBuilder(mock, &progress).Build(context.Background(), &plugin.Plugin{Name: "a", Path: dir, Build: "make && make install"})

	require.Equal(t, 1, mock.CallCount())
	call := mock.Calls()[0]
	assert.Equal(t, "/bin/sh", call.Name)
	assert.Equal(t, []string{"-c", "make && make install"}, call.Args)
	assert.Equal(t, dir, call.Dir)
	assert.Equal(t, []string{"cc -o a a.c", "done"}, progress.Lines())
}

func TestBuildSkipped(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		plugin *plugin.Plugin
	}{
		{name: "no build command", plugin: &plugin.Plugin{Name: "a", Path: dir}},
		{name: "no path", plugin: &plugin.Plugin{Name: "a", Build: "make"}},
		{name: "path missing", plugin: &plugin.Plugin{Name: "a", Path: filepath.Join(dir, "missing"), Build: "make"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := executor.NewMockProcessRunner()
			var progress report.Buffer

			newBuilder(mock, &progress).Build(context.Background(), tt.plugin)

			assert.Zero(t, mock.CallCount())
			assert.Empty(t, progress.Lines())
		})
	}
}

func TestBuildFailureOnlyVisibleAsOutput(t *testing.T) {
	dir := t.TempDir()
	mock := executor.NewErrorMockProcessRunner("make: *** No targets.  Stop.")
	var progress report.Buffer

	newBuilder(mock, &progress).Build(context.Background(), &plugin.Plugin{Name: "a", Path: dir, Build: "make"})

	assert.Contains(t, progress.Lines(), "make: *** No targets.  Stop.")
}

func TestCommandWithoutShellFlag(t *testing.T) {
	b := New(executor.New(nil, nil), "cmd", "", &report.Buffer{}, nil)
	assert.Equal(t, plugin.NewCommand("cmd", "make"), b.Command(&plugin.Plugin{Build: "make"}))
}
