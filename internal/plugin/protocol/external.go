package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// infoTimeout bounds the --adapter-info query.
const infoTimeout = 5 * time.Second

// External is a protocol adapter served by a separate binary over go-plugin.
type External struct {
	path   string
	info   plugin.AdapterInfo
	client *goplugin.Client
	impl   plugin.ProtocolAdapter
}

// QueryInfo runs the adapter binary with --adapter-info and decodes its metadata.
func QueryInfo(ctx context.Context, runner *executor.Executor, path string) (plugin.AdapterInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, infoTimeout)
	defer cancel()

	res := runner.Run(ctx, plugin.NewCommand(path, plugin.AdapterInfoFlag), executor.ResolveDir(""))
	if !res.Success {
		return plugin.AdapterInfo{}, fmt.Errorf("failed to query adapter %s: %s", path, res.Stderr)
	}

	var info plugin.AdapterInfo
	if err := json.Unmarshal([]byte(res.Stdout), &info); err != nil {
		return plugin.AdapterInfo{}, fmt.Errorf("failed to parse adapter info: %w", err)
	}
	return info, nil
}

// LoadExternal starts the adapter binary at path after checking that it
// speaks a compatible protocol version. Callers must Close it.
func LoadExternal(ctx context.Context, path string, runner *executor.Executor, logger hclog.Logger) (*External, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if runner == nil {
		runner = executor.New(nil, logger)
	}

	info, err := QueryInfo(ctx, runner, path)
	if err != nil {
		return nil, err
	}
	if ok, err := IsCompatible(info.ProtocolVersion); !ok {
		return nil, fmt.Errorf("adapter %s: %w", path, err)
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  plugin.Handshake,
		Plugins:          plugin.PluginMap(nil),
		Cmd:              exec.Command(path),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Logger:           logger.Named("adapter"),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to get RPC client: %w", err)
	}

	raw, err := rpcClient.Dispense(plugin.AdapterPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense adapter: %w", err)
	}

	impl, ok := raw.(plugin.ProtocolAdapter)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("adapter %s dispensed unexpected type %T", path, raw)
	}

	return &External{path: path, info: info, client: client, impl: impl}, nil
}

// Info returns the metadata the adapter reported.
func (e *External) Info() plugin.AdapterInfo {
	return e.info
}

// Revision implements plugin.ProtocolAdapter.
func (e *External) Revision(ctx context.Context, p *plugin.Plugin) (string, error) {
	return e.impl.Revision(ctx, p)
}

// SyncCommands implements plugin.ProtocolAdapter.
func (e *External) SyncCommands(ctx context.Context, p *plugin.Plugin) ([]plugin.Command, error) {
	return e.impl.SyncCommands(ctx, p)
}

// DiffCommands implements plugin.ProtocolAdapter.
func (e *External) DiffCommands(ctx context.Context, p *plugin.Plugin, oldRev, newRev string) ([]plugin.Command, error) {
	return e.impl.DiffCommands(ctx, p, oldRev, newRev)
}

// Close stops the adapter process.
func (e *External) Close() error {
	if e.client != nil {
		e.client.Kill()
		e.client = nil
	}
	return nil
}
