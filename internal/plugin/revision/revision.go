// Package revision tracks plugin revisions across a sync and reports what
// changed between them.
package revision

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/report"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// Tracker reads revisions from protocol adapters.
type Tracker struct {
	logger hclog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(logger hclog.Logger) *Tracker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Tracker{logger: logger}
}

// Revision returns p's current revision. An adapter error is treated as an
// unknown revision and yields "".
func (t *Tracker) Revision(ctx context.Context, adapter plugin.ProtocolAdapter, p *plugin.Plugin) string {
	rev, err := adapter.Revision(ctx, p)
	if err != nil {
		t.logger.Debug("revision unavailable", "plugin", p.Name, "error", err)
		return ""
	}
	return rev
}

// Reporter writes the change log between two revisions to a diff sink.
type Reporter struct {
	exec   *executor.Executor
	sink   report.Sink
	logger hclog.Logger
}

// NewReporter creates a Reporter appending to sink.
func NewReporter(exec *executor.Executor, sink report.Sink, logger hclog.Logger) *Reporter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Reporter{exec: exec, sink: sink, logger: logger}
}

// Report appends the output of the adapter's diff commands for
// oldRev..newRev. Nothing happens if the revisions are equal or either is
// unknown. Every output line is kept, blank ones included.
func (r *Reporter) Report(ctx context.Context, adapter plugin.ProtocolAdapter, p *plugin.Plugin, oldRev, newRev string) {
	if oldRev == "" || newRev == "" || oldRev == newRev {
		return
	}

	cmds, err := adapter.DiffCommands(ctx, p, oldRev, newRev)
	if err != nil {
		r.sink.Append(fmt.Sprintf("%s: failed to build diff commands: %v", p.Name, err))
		return
	}

	dir := executor.ResolveDir(p.Path)
	for _, cmd := range cmds {
		res := r.exec.Run(ctx, cmd, dir)
		r.sink.Append(res.StdoutLines(true)...)
		r.sink.Append(res.StderrLines(true)...)
		r.logger.Debug("diff command finished", "plugin", p.Name, "cmd", cmd.Name, "success", res.Success)
	}
}
