// Package registry loads the plugin records plugsync manages from a TOML,
// YAML or JSON file and answers installation-state queries about them.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/plugin/protocol"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// Format is a registry file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

var (
	// ErrDuplicateName is returned when two records share a name.
	ErrDuplicateName = errors.New("duplicate plugin name")

	// ErrEmptyName is returned for a record without a name.
	ErrEmptyName = errors.New("plugin name is empty")
)

// ParseError describes a registry file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing registry %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// file is the on-disk layout shared by every format.
type file struct {
	Plugins []*plugin.Plugin `json:"plugins" toml:"plugins" yaml:"plugins"`
}

// Registry holds the managed plugins in file order.
type Registry struct {
	path    string
	plugins []*plugin.Plugin
	byName  map[string]*plugin.Plugin

	mu        sync.Mutex
	installed map[string]bool
}

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported registry format: %s", path)
	}
}

// Load reads the registry at path. Plugins without a Path are placed
// under baseDir.
func Load(path, baseDir string) (*Registry, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	plugins, err := Parse(data, format)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	r, err := New(plugins, baseDir)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	r.path = path
	return r, nil
}

// Parse decodes plugin records in the given format.
func Parse(data []byte, format Format) ([]*plugin.Plugin, error) {
	var f file
	var err error

	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &f)
	case FormatYAML:
		err = yaml.Unmarshal(data, &f)
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported registry format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return f.Plugins, nil
}

// New builds a registry from records, filling in defaults. Records are
// cloned; the caller's values are not modified.
func New(plugins []*plugin.Plugin, baseDir string) (*Registry, error) {
	r := &Registry{
		plugins:   make([]*plugin.Plugin, 0, len(plugins)),
		byName:    make(map[string]*plugin.Plugin, len(plugins)),
		installed: make(map[string]bool),
	}

	for i, src := range plugins {
		if src == nil {
			continue
		}
		p := src.Clone()
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("entry %d: %w", i+1, ErrEmptyName)
		}
		if _, ok := r.byName[p.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateName, p.Name)
		}

		applyDefaults(p, baseDir)
		r.plugins = append(r.plugins, p)
		r.byName[p.Name] = p
	}

	return r, nil
}

func applyDefaults(p *plugin.Plugin, baseDir string) {
	if !p.Local && baseDir != "" {
		switch {
		case p.Path == "":
			p.Path = filepath.Join(baseDir, p.Name)
		case !filepath.IsAbs(p.Path):
			p.Path = filepath.Join(baseDir, p.Path)
		}
	}

	if p.Protocol == "" && p.Repo != "" {
		p.Protocol = protocol.DefaultProtocol
	}

	if p.HookCommand(plugin.HookPostUpdate) != "" {
		p.HookPostUpdate = true
	}
	if p.HookCommand(plugin.HookDoneUpdate) != "" {
		p.HookDoneUpdate = true
	}
	if p.HookCommand(plugin.HookDependsUpdate) != "" {
		p.HookDependsUpdate = true
	}
}

// Path returns the file the registry was loaded from, if any.
func (r *Registry) Path() string {
	return r.path
}

// Plugins returns every record in file order.
func (r *Registry) Plugins() []*plugin.Plugin {
	out := make([]*plugin.Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Get looks up a record by name.
func (r *Registry) Get(name string) (*plugin.Plugin, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Installed reports whether the named plugin's directory exists. Answers
// are cached until ClearCache.
func (r *Registry) Installed(name string) bool {
	p, ok := r.byName[name]
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.installed[name]; ok {
		return v
	}
	v := executor.IsDir(p.Path)
	r.installed[name] = v
	return v
}

// ClearCache forgets cached installation state, typically after a run
// has changed what is on disk.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.installed)
}
