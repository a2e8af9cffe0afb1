// Package hook dispatches named lifecycle hooks for plugins.
package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/report"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// Dispatcher invokes a named hook for a plugin.
type Dispatcher interface {
	Dispatch(ctx context.Context, h plugin.Hook, p *plugin.Plugin) error
}

// ShellDispatcher runs the command a plugin registered for a hook through
// the user's shell, in the plugin's directory.
type ShellDispatcher struct {
	exec      *executor.Executor
	shell     string
	shellFlag string
	progress  report.Sink
	logger    hclog.Logger
}

// NewShellDispatcher creates a ShellDispatcher.
func NewShellDispatcher(exec *executor.Executor, shell, shellFlag string, progress report.Sink, logger hclog.Logger) *ShellDispatcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ShellDispatcher{
		exec:      exec,
		shell:     shell,
		shellFlag: shellFlag,
		progress:  progress,
		logger:    logger,
	}
}

// Dispatch runs p's command for h. A plugin flagged for a hook without a
// command is a no-op.
func (d *ShellDispatcher) Dispatch(ctx context.Context, h plugin.Hook, p *plugin.Plugin) error {
	command := p.HookCommand(h)
	if command == "" {
		d.logger.Debug("no command for hook", "plugin", p.Name, "hook", h)
		return nil
	}

	args := make([]string, 0, 2)
	if d.shellFlag != "" {
		args = append(args, d.shellFlag)
	}
	args = append(args, command)

	res := d.exec.Run(ctx, plugin.NewCommand(d.shell, args...), executor.ResolveDir(p.Path))
	d.progress.Append(res.Lines(false)...)

	if !res.Success {
		return fmt.Errorf("hook %s for %s failed", h, p.Name)
	}
	return nil
}

// Event is one recorded hook dispatch.
type Event struct {
	Hook   plugin.Hook
	Plugin string
}

// Recorder records dispatches instead of running anything.
type Recorder struct {
	mu     sync.Mutex
	events []Event

	// Err, if set, is returned from every Dispatch.
	Err error
}

// Dispatch records the call.
func (r *Recorder) Dispatch(_ context.Context, h plugin.Hook, p *plugin.Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Hook: h, Plugin: p.Name})
	return r.Err
}

// Events returns a copy of the recorded dispatches in order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many times h was dispatched for the named plugin.
func (r *Recorder) Count(h plugin.Hook, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Hook == h && e.Plugin == name {
			n++
		}
	}
	return n
}
