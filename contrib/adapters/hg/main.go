// plugsync-hg is an external protocol adapter for Mercurial repositories.
//
// Register it in the plugsync settings file:
//
//	[adapters]
//	hg = "/usr/local/bin/plugsync-hg"
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jmylchreest/plugsync/pkg/plugin"
)

const (
	adapterName        = "hg"
	adapterDescription = "Mercurial protocol adapter for plugsync"
	adapterVersion     = "0.1.0"
)

// Adapter builds hg commands for plugsync.
type Adapter struct {
	// run executes a command and returns its stdout.
	run func(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

func newAdapter() *Adapter {
	return &Adapter{
		run: func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Dir = dir
			return cmd.Output()
		},
	}
}

// Revision returns the full changeset id of the working directory parent.
func (a *Adapter) Revision(ctx context.Context, p *plugin.Plugin) (string, error) {
	if !isDir(p.Path) {
		return "", nil
	}
	out, err := a.run(ctx, p.Path, "hg", "log", "-r", ".", "--template", "{node}")
	if err != nil {
		return "", fmt.Errorf("hg log in %s: %w", p.Path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// SyncCommands clones a missing plugin or pulls and updates an existing one.
func (a *Adapter) SyncCommands(_ context.Context, p *plugin.Plugin) ([]plugin.Command, error) {
	if p.Path == "" {
		return nil, errors.New("plugin has no install path")
	}
	if p.Repo == "" || strings.HasPrefix(p.Repo, "-") {
		return nil, fmt.Errorf("invalid repository %q", p.Repo)
	}

	if !isDir(p.Path) {
		args := []string{"clone"}
		if p.Rev != "" {
			args = append(args, "--updaterev", p.Rev)
		}
		args = append(args, "--", p.Repo, p.Path)
		return []plugin.Command{plugin.NewCommand("hg", args...)}, nil
	}

	args := []string{"pull", "--update"}
	if p.Rev != "" {
		args = append(args, "--rev", p.Rev)
	}
	return []plugin.Command{plugin.NewCommand("hg", args...)}, nil
}

// DiffCommands lists the changesets between two revisions.
func (a *Adapter) DiffCommands(_ context.Context, _ *plugin.Plugin, oldRev, newRev string) ([]plugin.Command, error) {
	if oldRev == "" || newRev == "" {
		return nil, nil
	}
	return []plugin.Command{
		plugin.NewCommand("hg", "log", "--graph", "--color", "never",
			"--template", "{node|short} {desc|firstline} ({date|age})\n",
			"-r", oldRev+"::"+newRev+" - "+oldRev),
	}, nil
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	plugin.Serve(plugin.AdapterInfo{
		Name:        adapterName,
		Version:     adapterVersion,
		Description: adapterDescription,
	}, newAdapter())
}
