// Package update drives a sync run: it syncs each selected plugin through
// its protocol adapter, builds it, and then fires completion and
// dependency hooks and optional diff reports for everything that changed.
package update

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/internal/plugin/builder"
	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/plugin/hook"
	"github.com/jmylchreest/plugsync/internal/plugin/revision"
	"github.com/jmylchreest/plugsync/internal/plugin/selector"
	"github.com/jmylchreest/plugsync/internal/report"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

const (
	// MsgNoTargets is reported when a run selects nothing.
	MsgNoTargets = "Target plugins are not found."

	// MsgNoTargetsHint follows MsgNoTargets.
	MsgNoTargetsHint = "You may have used the wrong plugin name, or all of the plugins are already installed."
)

// ErrUnknownProtocol is returned when no adapter is registered for a plugin's protocol.
var ErrUnknownProtocol = errors.New("unknown protocol")

// Resolver looks up protocol adapters by name.
type Resolver interface {
	Adapter(name string) (plugin.ProtocolAdapter, bool)
}

// Registry is the plugin store a run reads dependencies from and notifies
// when it finishes.
type Registry interface {
	Plugins() []*plugin.Plugin
	ClearCache()
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Executor *executor.Executor
	Builder  *builder.Builder
	Tracker  *revision.Tracker
	Reporter *revision.Reporter
	Resolver Resolver
	Hooks    hook.Dispatcher
	Registry Registry
	Progress report.Surface

	// CheckDiff enables diff reports for updated plugins.
	CheckDiff bool

	Logger hclog.Logger
}

// Orchestrator runs the update pipeline. A single Orchestrator must not
// run concurrently with itself.
type Orchestrator struct {
	cfg    Config
	logger hclog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.Tracker == nil {
		cfg.Tracker = revision.NewTracker(logger)
	}
	return &Orchestrator{cfg: cfg, logger: logger}
}

// Result summarizes a run.
type Result struct {
	// Updated lists, in run order, the plugins with at least one
	// successful sync command.
	Updated []string
}

// state is scoped to one Run.
type state struct {
	revisions map[string]string
	updated   []*plugin.Plugin
	inUpdated map[string]struct{}
}

func (s *state) markUpdated(p *plugin.Plugin) {
	if _, ok := s.inUpdated[p.Name]; ok {
		return
	}
	s.inUpdated[p.Name] = struct{}{}
	s.updated = append(s.updated, p)
}

// Run syncs targets in order. Failing commands are reported and skipped;
// only an unresolvable protocol aborts the run.
func (o *Orchestrator) Run(ctx context.Context, targets []*plugin.Plugin) (*Result, error) {
	if len(targets) == 0 {
		o.cfg.Progress.Append(MsgNoTargets, MsgNoTargetsHint)
		return &Result{}, nil
	}
	defer o.cleanup()

	st := &state{
		revisions: make(map[string]string, len(targets)),
		inUpdated: make(map[string]struct{}, len(targets)),
	}

	for i, p := range targets {
		o.cfg.Progress.Append(fmt.Sprintf("[%d/%d] %s", i+1, len(targets), p.Name))
		if err := o.sync(ctx, st, p); err != nil {
			return nil, err
		}
	}

	if err := o.hookPass(ctx, st); err != nil {
		return nil, err
	}

	result := &Result{Updated: make([]string, len(st.updated))}
	for i, p := range st.updated {
		result.Updated[i] = p.Name
	}
	return result, nil
}

func (o *Orchestrator) sync(ctx context.Context, st *state, p *plugin.Plugin) error {
	adapter, err := o.adapter(p)
	if err != nil {
		return err
	}

	// Captured before any command can change the checkout.
	st.revisions[p.Name] = o.cfg.Tracker.Revision(ctx, adapter, p)

	cmds, err := adapter.SyncCommands(ctx, p)
	if err != nil {
		o.cfg.Progress.Append(fmt.Sprintf("%s: %v", p.Name, err))
		return nil
	}
	if len(cmds) == 0 {
		o.logger.Debug("no sync commands", "plugin", p.Name)
		return nil
	}

	for _, cmd := range cmds {
		res := o.cfg.Executor.Run(ctx, cmd, executor.ResolveDir(p.Path))
		o.cfg.Progress.Append(res.Lines(false)...)
		if !res.Success {
			o.logger.Debug("sync command failed", "plugin", p.Name, "cmd", cmd.String())
			continue
		}

		if p.HookPostUpdate {
			o.dispatch(ctx, plugin.HookPostUpdate, p)
		}
		o.cfg.Builder.Build(ctx, p)
		st.markUpdated(p)
	}
	return nil
}

func (o *Orchestrator) hookPass(ctx context.Context, st *state) error {
	called := make(map[string]struct{})
	all := o.cfg.Registry.Plugins()

	for _, p := range st.updated {
		if p.HookDoneUpdate {
			o.dispatch(ctx, plugin.HookDoneUpdate, p)
		}

		if len(p.Depends) > 0 {
			for _, dep := range selector.Select(all, p.Depends) {
				if _, ok := called[dep.Name]; ok || !dep.HookDependsUpdate {
					continue
				}
				o.dispatch(ctx, plugin.HookDependsUpdate, dep)
				called[dep.Name] = struct{}{}
			}
		}

		if o.cfg.CheckDiff {
			adapter, err := o.adapter(p)
			if err != nil {
				return err
			}
			newRev := o.cfg.Tracker.Revision(ctx, adapter, p)
			o.cfg.Reporter.Report(ctx, adapter, p, st.revisions[p.Name], newRev)
		}
	}
	return nil
}

func (o *Orchestrator) adapter(p *plugin.Plugin) (plugin.ProtocolAdapter, error) {
	adapter, ok := o.cfg.Resolver.Adapter(p.Protocol)
	if !ok || adapter == nil {
		return nil, fmt.Errorf("%w %q for plugin %s", ErrUnknownProtocol, p.Protocol, p.Name)
	}
	return adapter, nil
}

// dispatch fires a hook. Hook failures surface as progress text only.
func (o *Orchestrator) dispatch(ctx context.Context, h plugin.Hook, p *plugin.Plugin) {
	if err := o.cfg.Hooks.Dispatch(ctx, h, p); err != nil {
		o.cfg.Progress.Append(err.Error())
	}
}

func (o *Orchestrator) cleanup() {
	if err := o.cfg.Progress.Close(); err != nil {
		o.logger.Warn("failed to close progress", "error", err)
	}
	o.cfg.Registry.ClearCache()
}
