// Package manager provides the plugsync entry points: build, install,
// update and reinstall over a plugin registry.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/internal/config"
	"github.com/jmylchreest/plugsync/internal/plugin/builder"
	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/plugin/hook"
	"github.com/jmylchreest/plugsync/internal/plugin/protocol"
	"github.com/jmylchreest/plugsync/internal/plugin/revision"
	"github.com/jmylchreest/plugsync/internal/plugin/selector"
	"github.com/jmylchreest/plugsync/internal/plugin/update"
	"github.com/jmylchreest/plugsync/internal/report"
	"github.com/jmylchreest/plugsync/internal/security"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

var (
	// ErrNamesRequired is returned by Reinstall when no plugin names are given.
	ErrNamesRequired = errors.New("reinstall requires at least one plugin name")

	// ErrNoRegistry is returned by Builder.Build without WithRegistry.
	ErrNoRegistry = errors.New("no plugin registry configured")
)

// Builder provides a fluent interface for constructing a Manager.
type Builder struct {
	config   config.Config
	useEnv   bool
	getenv   func(string) string
	registry update.Registry
	resolver update.Resolver
	hooks    hook.Dispatcher
	progress report.Surface
	diff     report.Sink
	runner   executor.ProcessRunner
	logger   hclog.Logger
}

// NewBuilder creates a new Manager builder with default settings.
func NewBuilder() *Builder {
	return &Builder{
		config: config.Config{
			Shell:       config.DefaultShell,
			ShellFlag:   config.DefaultShellFlag,
			DiffMaxSize: config.DefaultDiffMaxSize,
		},
		getenv: os.Getenv,
	}
}

// WithConfig sets the configuration for the manager.
func (b *Builder) WithConfig(cfg config.Config) *Builder {
	b.config = cfg
	return b
}

// WithEnvConfig applies PLUGSYNC_* and SHELL environment overrides on top
// of the configuration at Build time.
func (b *Builder) WithEnvConfig() *Builder {
	b.useEnv = true
	return b
}

// WithRegistry sets the plugin registry. Required.
func (b *Builder) WithRegistry(r update.Registry) *Builder {
	b.registry = r
	return b
}

// WithResolver replaces the built-in protocol adapters.
func (b *Builder) WithResolver(r update.Resolver) *Builder {
	b.resolver = r
	return b
}

// WithHooks replaces the shell hook dispatcher.
func (b *Builder) WithHooks(d hook.Dispatcher) *Builder {
	b.hooks = d
	return b
}

// WithProgress sets the progress surface. Defaults to stdout.
func (b *Builder) WithProgress(s report.Surface) *Builder {
	b.progress = s
	return b
}

// WithDiffSink sets where diff reports go. Defaults to the diff log in the state directory.
func (b *Builder) WithDiffSink(s report.Sink) *Builder {
	b.diff = s
	return b
}

// WithRunner sets the process runner (useful for testing).
func (b *Builder) WithRunner(r executor.ProcessRunner) *Builder {
	b.runner = r
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l hclog.Logger) *Builder {
	b.logger = l
	return b
}

// Build constructs the Manager. External adapters named in the
// configuration are started here when no resolver was supplied.
func (b *Builder) Build(ctx context.Context) (*Manager, error) {
	cfg := b.config
	if b.useEnv {
		if err := cfg.ApplyEnv(b.getenv); err != nil {
			return nil, err
		}
	}
	if b.registry == nil {
		return nil, ErrNoRegistry
	}

	logger := b.logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	exec := executor.New(b.runner, logger.Named("exec"))

	m := &Manager{
		config:   cfg,
		registry: b.registry,
		exec:     exec,
		progress: b.progress,
		diff:     b.diff,
		logger:   logger,
	}

	if m.progress == nil {
		m.progress = report.NewProgress(os.Stdout)
	}
	if m.diff == nil {
		m.diff = report.NewDiffLog(cfg.StateDir,
			report.WithMaxSize(cfg.DiffMaxSize),
			report.WithLogger(logger.Named("difflog")))
	}
	if cl, ok := m.diff.(io.Closer); ok {
		m.closers = append(m.closers, cl)
	}

	resolver := b.resolver
	if resolver == nil {
		adapters, err := m.loadAdapters(ctx)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		resolver = adapters
	}

	hooks := b.hooks
	if hooks == nil {
		hooks = hook.NewShellDispatcher(exec, cfg.Shell, cfg.ShellFlag, m.progress, logger.Named("hook"))
	}

	m.builder = builder.New(exec, cfg.Shell, cfg.ShellFlag, m.progress, logger.Named("build"))
	m.orchestrator = update.New(update.Config{
		Executor:  exec,
		Builder:   m.builder,
		Reporter:  revision.NewReporter(exec, m.diff, logger.Named("diff")),
		Resolver:  resolver,
		Hooks:     hooks,
		Registry:  b.registry,
		Progress:  m.progress,
		CheckDiff: cfg.CheckDiff,
		Logger:    logger.Named("update"),
	})

	return m, nil
}

// loadAdapters registers the built-in adapters plus every configured
// external adapter binary.
func (m *Manager) loadAdapters(ctx context.Context) (*protocol.Registry, error) {
	adapters := protocol.NewDefaultRegistry(m.exec, m.logger.Named("protocol"))
	m.closers = append(m.closers, adapters)

	for name, path := range m.config.Adapters {
		ext, err := protocol.LoadExternal(ctx, path, m.exec, m.logger.Named("protocol"))
		if err != nil {
			return nil, fmt.Errorf("failed to load adapter %s: %w", name, err)
		}
		adapters.Register(name, ext)
		m.logger.Debug("loaded external adapter", "protocol", name, "path", path, "version", ext.Info().Version)
	}
	return adapters, nil
}

// Manager runs plugsync verbs against a registry. It is not safe for
// concurrent use; callers serialize runs.
type Manager struct {
	config       config.Config
	registry     update.Registry
	exec         *executor.Executor
	builder      *builder.Builder
	orchestrator *update.Orchestrator
	progress     report.Surface
	diff         report.Sink
	closers      []io.Closer
	logger       hclog.Logger
}

// Config returns the effective configuration.
func (m *Manager) Config() config.Config {
	return m.config
}

// Plugins returns every registry record.
func (m *Manager) Plugins() []*plugin.Plugin {
	return m.registry.Plugins()
}

// Build runs the build step for the selected plugins without syncing them.
func (m *Manager) Build(ctx context.Context, names []string) error {
	targets := selector.Select(m.registry.Plugins(), names)
	for _, p := range targets {
		m.builder.Build(ctx, p)
	}
	return m.progress.Close()
}

// Install syncs the selected plugins that are not installed yet.
func (m *Manager) Install(ctx context.Context, names []string) (*update.Result, error) {
	targets, err := selector.NotInstalled(ctx, selector.Select(m.registry.Plugins(), names))
	if err != nil {
		return nil, err
	}
	return m.orchestrator.Run(ctx, targets)
}

// Update syncs the selected plugins regardless of their state.
func (m *Manager) Update(ctx context.Context, names []string) (*update.Result, error) {
	return m.orchestrator.Run(ctx, selector.Select(m.registry.Plugins(), names))
}

// Reinstall deletes the named plugins' install directories and syncs them
// from scratch. Names are mandatory.
func (m *Manager) Reinstall(ctx context.Context, names []string) (*update.Result, error) {
	if len(names) == 0 {
		return nil, ErrNamesRequired
	}

	targets := selector.Select(m.registry.Plugins(), names)

	// Every target is checked before anything is removed.
	var existing []*plugin.Plugin
	for _, p := range targets {
		if !executor.IsDir(p.Path) {
			continue
		}
		if m.config.BaseDir != "" {
			if err := security.ValidateRemovalPath(p.Path, m.config.BaseDir); err != nil {
				return nil, fmt.Errorf("cannot reinstall %s: %w", p.Name, err)
			}
		}
		existing = append(existing, p)
	}

	for _, p := range existing {
		m.logger.Debug("removing plugin directory", "plugin", p.Name, "path", p.Path)
		if err := os.RemoveAll(p.Path); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", p.Path, err)
		}
	}
	return m.orchestrator.Run(ctx, targets)
}

// Close releases external adapters and the diff log.
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
