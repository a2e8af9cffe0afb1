// Package plugin provides the public API for plugsync protocol adapters.
package plugin

import (
	"slices"
	"strings"
)

// Hook names a lifecycle point at which the host may run a per-plugin callback.
type Hook string

const (
	// HookPostUpdate fires after each successful sync command, before the build step.
	HookPostUpdate Hook = "post_update"

	// HookDoneUpdate fires once per updated plugin after every plugin has been synced.
	HookDoneUpdate Hook = "done_update"

	// HookDependsUpdate fires on a plugin when something depending on it was updated.
	HookDependsUpdate Hook = "depends_update"
)

// Plugin describes one managed component as recorded in the registry.
// The orchestration core only reads these records.
type Plugin struct {
	// Name uniquely identifies the plugin.
	Name string `json:"name" toml:"name" yaml:"name"`

	// Path is the local install directory. Empty means not installed yet.
	Path string `json:"path,omitempty" toml:"path,omitempty" yaml:"path,omitempty"`

	// Protocol selects the adapter used to sync this plugin.
	Protocol string `json:"protocol,omitempty" toml:"protocol,omitempty" yaml:"protocol,omitempty"`

	// Repo is the remote source locator handed to the adapter.
	Repo string `json:"repo,omitempty" toml:"repo,omitempty" yaml:"repo,omitempty"`

	// Rev pins a branch, tag or commit.
	Rev string `json:"rev,omitempty" toml:"rev,omitempty" yaml:"rev,omitempty"`

	// Build is a shell command run in Path after a successful sync.
	Build string `json:"build,omitempty" toml:"build,omitempty" yaml:"build,omitempty"`

	// Depends lists the names of plugins this one depends on.
	Depends []string `json:"depends,omitempty" toml:"depends,omitempty" yaml:"depends,omitempty"`

	// Local plugins are never synced from a remote source.
	Local bool `json:"local,omitempty" toml:"local,omitempty" yaml:"local,omitempty"`

	HookPostUpdate    bool `json:"hook_post_update,omitempty" toml:"hook_post_update,omitempty" yaml:"hook_post_update,omitempty"`
	HookDoneUpdate    bool `json:"hook_done_update,omitempty" toml:"hook_done_update,omitempty" yaml:"hook_done_update,omitempty"`
	HookDependsUpdate bool `json:"hook_depends_update,omitempty" toml:"hook_depends_update,omitempty" yaml:"hook_depends_update,omitempty"`

	// Hooks maps hook names to the shell command the host runs for them.
	Hooks map[string]string `json:"hooks,omitempty" toml:"hooks,omitempty" yaml:"hooks,omitempty"`
}

// HasHook reports whether the plugin is flagged for the given hook.
func (p *Plugin) HasHook(h Hook) bool {
	switch h {
	case HookPostUpdate:
		return p.HookPostUpdate
	case HookDoneUpdate:
		return p.HookDoneUpdate
	case HookDependsUpdate:
		return p.HookDependsUpdate
	default:
		return false
	}
}

// HookCommand returns the shell command registered for h, if any.
func (p *Plugin) HookCommand(h Hook) string {
	return p.Hooks[string(h)]
}

// Clone returns a deep copy of the plugin record.
func (p *Plugin) Clone() *Plugin {
	c := *p
	c.Depends = slices.Clone(p.Depends)
	if p.Hooks != nil {
		c.Hooks = make(map[string]string, len(p.Hooks))
		for k, v := range p.Hooks {
			c.Hooks[k] = v
		}
	}
	return &c
}

// Command is a subprocess invocation: an executable plus its arguments.
// It carries no shell semantics.
type Command struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// NewCommand creates a Command from an executable name and arguments.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command for display.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}
