package plugin

// AdapterInfoFlag is the argument that makes an adapter binary print its
// AdapterInfo as JSON and exit, without starting the RPC server.
const AdapterInfoFlag = "--adapter-info"

// AdapterInfo contains metadata about an external protocol adapter.
type AdapterInfo struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocol_version"`
	Description     string `json:"description"`
}
