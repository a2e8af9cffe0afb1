// Package builder runs a plugin's declared build step through the user's shell.
package builder

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/report"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// Builder runs build commands. The build string is handed to the shell
// untouched, so quoting and pipes behave as they would interactively.
type Builder struct {
	exec      *executor.Executor
	shell     string
	shellFlag string
	progress  report.Sink
	logger    hclog.Logger
}

// New creates a Builder that runs "<shell> <shellFlag> <build>".
func New(exec *executor.Executor, shell, shellFlag string, progress report.Sink, logger hclog.Logger) *Builder {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Builder{
		exec:      exec,
		shell:     shell,
		shellFlag: shellFlag,
		progress:  progress,
		logger:    logger,
	}
}

// Build runs p.Build in p.Path. It does nothing unless the plugin is
// installed and declares a build command. Output goes to the progress
// surface; the outcome is not reported to the caller.
func (b *Builder) Build(ctx context.Context, p *plugin.Plugin) {
	if p.Build == "" || !executor.IsDir(p.Path) {
		return
	}

	b.logger.Debug("building plugin", "plugin", p.Name, "build", p.Build)

	res := b.exec.Run(ctx, b.Command(p), p.Path)
	b.progress.Append(res.Lines(false)...)

	if !res.Success {
		b.logger.Debug("build exited with failure", "plugin", p.Name)
	}
}

// Command returns the shell invocation used for p's build step.
func (b *Builder) Command(p *plugin.Plugin) plugin.Command {
	args := make([]string, 0, 2)
	if b.shellFlag != "" {
		args = append(args, b.shellFlag)
	}
	args = append(args, p.Build)
	return plugin.NewCommand(b.shell, args...)
}
