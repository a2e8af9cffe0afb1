package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/plugsync/internal/lock"
	"github.com/jmylchreest/plugsync/internal/plugin/manager"
	"github.com/jmylchreest/plugsync/internal/plugin/update"
	"github.com/jmylchreest/plugsync/internal/registry"
	"github.com/jmylchreest/plugsync/internal/report"
)

type verb string

const (
	verbInstall   verb = "install"
	verbUpdate    verb = "update"
	verbReinstall verb = "reinstall"
)

var verbHelp = map[verb][2]string{
	verbInstall: {
		"Install plugins that are not installed yet",
		`Select plugins from the registry (all of them when no names are given),
skip the ones whose install directory already exists, and sync the rest.`,
	},
	verbUpdate: {
		"Update installed and missing plugins",
		`Sync the selected plugins (all of them when no names are given),
build them, and fire their update hooks.`,
	},
	verbReinstall: {
		"Delete and freshly install the named plugins",
		`Remove the install directory of each named plugin and sync it again.
At least one plugin name is required.`,
	},
}

func newSyncCmd(opts *options, v verb) *cobra.Command {
	help := verbHelp[v]
	return &cobra.Command{
		Use:   string(v) + " [plugin...]",
		Short: help[0],
		Long:  help[1],
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				var (
					res *update.Result
					err error
				)
				switch v {
				case verbInstall:
					res, err = m.Install(ctx, args)
				case verbUpdate:
					res, err = m.Update(ctx, args)
				case verbReinstall:
					res, err = m.Reinstall(ctx, args)
				}
				if err != nil {
					return err
				}

				if len(res.Updated) > 0 {
					fmt.Fprintf(opts.output(cmd), "Updated %d plugin(s): %s\n",
						len(res.Updated), strings.Join(res.Updated, ", "))
				}
				return nil
			})
		},
	}
}

func newBuildCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "build [plugin...]",
		Short: "Run the build step of installed plugins",
		Long:  `Run each selected plugin's build command in its install directory without syncing it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withManager(cmd, func(ctx context.Context, m *manager.Manager) error {
				return m.Build(ctx, args)
			})
		},
	}
}

// withManager takes the run lock, builds a Manager from the resolved
// configuration and runs fn with it.
func (o *options) withManager(cmd *cobra.Command, fn func(context.Context, *manager.Manager) error) error {
	cfg, err := o.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger := o.newLogger()

	l, err := lock.Acquire(cfg.StateDir)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return fmt.Errorf("%w; wait for it to finish or remove the stale pid file", err)
		}
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			logger.Warn("failed to release lock", "error", err)
		}
	}()

	reg, err := registry.Load(cfg.RegistryPath, cfg.BaseDir)
	if err != nil {
		return err
	}

	diffOpts := []report.DiffOption{
		report.WithMaxSize(cfg.DiffMaxSize),
		report.WithLogger(logger.Named("difflog")),
	}
	if !o.quiet && term.IsTerminal(int(os.Stdout.Fd())) {
		diffOpts = append(diffOpts, report.WithEcho(cmd.OutOrStdout()))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	m, err := manager.NewBuilder().
		WithConfig(cfg).
		WithRegistry(reg).
		WithProgress(report.NewProgress(o.output(cmd))).
		WithDiffSink(report.NewDiffLog(cfg.StateDir, diffOpts...)).
		WithLogger(logger).
		Build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to close manager", "error", err)
		}
	}()

	return fn(ctx, m)
}
