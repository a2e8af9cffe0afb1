package protocol

import (
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

const (
	// DefaultProtocol is used for plugins that do not name a protocol.
	DefaultProtocol = "git"

	// RawProtocol names the single-file download adapter.
	RawProtocol = "raw"
)

// Registry resolves protocol adapters by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]plugin.ProtocolAdapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]plugin.ProtocolAdapter)}
}

// NewDefaultRegistry creates a registry holding the built-in git and raw adapters.
func NewDefaultRegistry(exec *executor.Executor, logger hclog.Logger) *Registry {
	r := NewRegistry()
	r.Register(DefaultProtocol, NewGit(exec, logger))
	r.Register(RawProtocol, NewRaw())
	return r
}

// Register adds or replaces the adapter for name.
func (r *Registry) Register(name string, adapter plugin.ProtocolAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = adapter
}

// Adapter returns the adapter registered for name. An empty name resolves
// to DefaultProtocol.
func (r *Registry) Adapter(name string) (plugin.ProtocolAdapter, bool) {
	if name == "" {
		name = DefaultProtocol
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Names returns the registered protocol names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases adapters that hold resources, such as external adapter processes.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, adapter := range r.adapters {
		if c, ok := adapter.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
