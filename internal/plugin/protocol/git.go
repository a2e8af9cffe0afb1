package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/security"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// ErrNoPath is returned when a plugin has nowhere to be installed.
var ErrNoPath = errors.New("plugin has no install path")

// Git synchronizes plugins that live in git repositories.
type Git struct {
	exec   *executor.Executor
	logger hclog.Logger
}

// NewGit creates a git adapter. Revision queries run through exec.
func NewGit(exec *executor.Executor, logger hclog.Logger) *Git {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if exec == nil {
		exec = executor.New(nil, logger)
	}
	return &Git{exec: exec, logger: logger.Named("git")}
}

// Revision returns the commit checked out at p.Path, or "" when the
// plugin is not installed.
func (g *Git) Revision(ctx context.Context, p *plugin.Plugin) (string, error) {
	if !executor.IsDir(p.Path) {
		return "", nil
	}

	res := g.exec.Run(ctx, plugin.NewCommand("git", "rev-parse", "HEAD"), p.Path)
	if !res.Success {
		return "", fmt.Errorf("git rev-parse in %s: %s", p.Path, strings.TrimSpace(res.Stderr))
	}

	lines := res.StdoutLines(false)
	if len(lines) == 0 {
		return "", nil
	}
	return strings.TrimSpace(lines[0]), nil
}

// SyncCommands clones the plugin when it is missing and otherwise
// fast-forwards it. A pinned Rev is fetched and checked out instead.
func (g *Git) SyncCommands(_ context.Context, p *plugin.Plugin) ([]plugin.Command, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPath, p.Name)
	}

	if !executor.IsDir(p.Path) {
		if err := security.ValidateRepoURL(p.Repo); err != nil {
			return nil, fmt.Errorf("invalid repository for %s: %w", p.Name, err)
		}

		args := []string{"clone", "--recursive"}
		if p.Rev != "" {
			args = append(args, "--branch", p.Rev)
		}
		args = append(args, "--", p.Repo, p.Path)
		return []plugin.Command{plugin.NewCommand("git", args...)}, nil
	}

	if p.Rev == "" {
		return []plugin.Command{
			plugin.NewCommand("git", "pull", "--ff-only", "--recurse-submodules"),
		}, nil
	}

	return []plugin.Command{
		plugin.NewCommand("git", "fetch", "--tags", "--force", "origin"),
		plugin.NewCommand("git", "-c", "advice.detachedHead=false", "checkout", "--recurse-submodules", p.Rev),
	}, nil
}

// DiffCommands returns a one-line-per-commit graph of oldRev..newRev.
func (g *Git) DiffCommands(_ context.Context, _ *plugin.Plugin, oldRev, newRev string) ([]plugin.Command, error) {
	if oldRev == "" || newRev == "" {
		return nil, nil
	}
	return []plugin.Command{
		plugin.NewCommand("git", "log", "--graph", "--no-color", "--pretty=format:%h %s (%cr)", oldRev+".."+newRev),
	}, nil
}
