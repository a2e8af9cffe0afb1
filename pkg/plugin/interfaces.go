// Package plugin provides the public API for plugsync protocol adapters.
package plugin

import "context"

// ProtocolAdapter knows how to track and synchronize plugins for one
// source-control mechanism. Adapters build commands; plugsync runs them.
type ProtocolAdapter interface {
	// Revision returns the plugin's current revision, or "" if unknown.
	Revision(ctx context.Context, p *Plugin) (string, error)

	// SyncCommands returns the ordered commands that bring the plugin up to date.
	SyncCommands(ctx context.Context, p *Plugin) ([]Command, error)

	// DiffCommands returns the ordered commands that describe the changes
	// between two revisions.
	DiffCommands(ctx context.Context, p *Plugin, oldRev, newRev string) ([]Command, error)
}
