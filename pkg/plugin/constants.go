// Package plugin provides the public API for plugsync protocol adapters.
package plugin

import (
	"github.com/hashicorp/go-plugin"
)

const (
	// ProtocolVersion defines the current adapter API version.
	// Format: MAJOR.MINOR.PATCH.
	ProtocolVersion = "0.1.0"

	// AdapterPluginName is the name under which adapters are dispensed.
	AdapterPluginName = "adapter"
)

// Handshake is the handshake configuration for go-plugin protocol.
// Adapters built against a different major version are refused.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  0, // Major version from ProtocolVersion
	MagicCookieKey:   "PLUGSYNC_ADAPTER",
	MagicCookieValue: "plugsync_protocol_adapter",
}

// PluginMap is the set of plugins served and dispensed over go-plugin.
func PluginMap(impl ProtocolAdapter) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		AdapterPluginName: &AdapterRPC{Impl: impl},
	}
}
