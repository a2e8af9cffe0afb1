package protocol

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"

	"github.com/jmylchreest/plugsync/internal/security"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// Raw installs single-file plugins by downloading Repo into Path.
// It has no notion of revisions.
type Raw struct{}

// NewRaw creates a raw download adapter.
func NewRaw() *Raw {
	return &Raw{}
}

// Revision always reports an unknown revision.
func (r *Raw) Revision(context.Context, *plugin.Plugin) (string, error) {
	return "", nil
}

// SyncCommands downloads the file named by Repo to Path/<basename>.
func (r *Raw) SyncCommands(_ context.Context, p *plugin.Plugin) ([]plugin.Command, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPath, p.Name)
	}
	if err := security.ValidateDownloadURL(p.Repo); err != nil {
		return nil, fmt.Errorf("invalid download URL for %s: %w", p.Name, err)
	}

	target, err := r.target(p)
	if err != nil {
		return nil, err
	}
	return []plugin.Command{
		plugin.NewCommand("curl", "-fsSL", "--create-dirs", "-o", target, p.Repo),
	}, nil
}

// DiffCommands returns nothing; raw files carry no history.
func (r *Raw) DiffCommands(context.Context, *plugin.Plugin, string, string) ([]plugin.Command, error) {
	return nil, nil
}

func (r *Raw) target(p *plugin.Plugin) (string, error) {
	u, err := url.Parse(p.Repo)
	if err != nil {
		return "", fmt.Errorf("invalid download URL for %s: %w", p.Name, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("download URL for %s has no file name: %s", p.Name, p.Repo)
	}
	return filepath.Join(p.Path, name), nil
}
