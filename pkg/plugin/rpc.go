// Package plugin provides the public API for plugsync protocol adapters.
package plugin

import (
	"context"
	"encoding/json"
	"net/rpc"
	"os"

	"github.com/hashicorp/go-plugin"
)

// AdapterRPC implements the go-plugin Plugin interface for protocol adapters.
type AdapterRPC struct {
	plugin.Plugin
	Impl ProtocolAdapter
}

// Server returns an RPC server for this adapter.
func (p *AdapterRPC) Server(*plugin.MuxBroker) (any, error) {
	return &AdapterRPCServer{Impl: p.Impl}, nil
}

// Client returns an RPC client for this adapter.
func (p *AdapterRPC) Client(_ *plugin.MuxBroker, c *rpc.Client) (any, error) {
	return &AdapterRPCClient{client: c}, nil
}

// DiffArgs carries the arguments of a DiffCommands call over RPC.
type DiffArgs struct {
	Plugin Plugin
	OldRev string
	NewRev string
}

// AdapterRPCServer is the RPC server implementation for protocol adapters.
type AdapterRPCServer struct {
	Impl ProtocolAdapter
}

// Revision implements the RPC method for revision queries.
func (s *AdapterRPCServer) Revision(p Plugin, resp *string) error {
	rev, err := s.Impl.Revision(context.Background(), &p)
	if err != nil {
		return err
	}
	*resp = rev
	return nil
}

// SyncCommands implements the RPC method for sync command construction.
func (s *AdapterRPCServer) SyncCommands(p Plugin, resp *[]Command) error {
	cmds, err := s.Impl.SyncCommands(context.Background(), &p)
	if err != nil {
		return err
	}
	*resp = cmds
	return nil
}

// DiffCommands implements the RPC method for diff command construction.
func (s *AdapterRPCServer) DiffCommands(args DiffArgs, resp *[]Command) error {
	cmds, err := s.Impl.DiffCommands(context.Background(), &args.Plugin, args.OldRev, args.NewRev)
	if err != nil {
		return err
	}
	*resp = cmds
	return nil
}

// AdapterRPCClient is the RPC client implementation for protocol adapters.
type AdapterRPCClient struct {
	client *rpc.Client
}

// Revision calls the remote Revision method.
func (c *AdapterRPCClient) Revision(_ context.Context, p *Plugin) (string, error) {
	var rev string
	if err := c.client.Call("Plugin.Revision", *p, &rev); err != nil {
		return "", err
	}
	return rev, nil
}

// SyncCommands calls the remote SyncCommands method.
func (c *AdapterRPCClient) SyncCommands(_ context.Context, p *Plugin) ([]Command, error) {
	var cmds []Command
	if err := c.client.Call("Plugin.SyncCommands", *p, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

// DiffCommands calls the remote DiffCommands method.
func (c *AdapterRPCClient) DiffCommands(_ context.Context, p *Plugin, oldRev, newRev string) ([]Command, error) {
	var cmds []Command
	args := DiffArgs{Plugin: *p, OldRev: oldRev, NewRev: newRev}
	if err := c.client.Call("Plugin.DiffCommands", args, &cmds); err != nil {
		return nil, err
	}
	return cmds, nil
}

// Serve runs impl as an out-of-process protocol adapter. It blocks until
// the host disconnects and is meant to be called from an adapter's main.
// When invoked with AdapterInfoFlag it prints info as JSON and returns.
func Serve(info AdapterInfo, impl ProtocolAdapter) {
	if len(os.Args) > 1 && os.Args[1] == AdapterInfoFlag {
		if info.ProtocolVersion == "" {
			info.ProtocolVersion = ProtocolVersion
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(info)
		return
	}

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap(impl),
	})
}
