// Package selector narrows the registry down to the plugins a run acts on.
package selector

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// Select returns the non-local plugins of all whose name is in names, in
// registry order. An empty names list selects every non-local plugin.
// Unknown names match nothing.
func Select(all []*plugin.Plugin, names []string) []*plugin.Plugin {
	selected := make([]*plugin.Plugin, 0, len(all))
	for _, p := range all {
		if p == nil || p.Local {
			continue
		}
		if len(names) > 0 && !slices.Contains(names, p.Name) {
			continue
		}
		selected = append(selected, p)
	}
	return selected
}

// NotInstalled returns the plugins whose install directory does not exist
// yet, preserving order. The existence checks run concurrently.
func NotInstalled(ctx context.Context, plugins []*plugin.Plugin) ([]*plugin.Plugin, error) {
	missing := make([]bool, len(plugins))

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range plugins {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			missing[i] = !executor.IsDir(p.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make([]*plugin.Plugin, 0, len(plugins))
	for i, p := range plugins {
		if missing[i] {
			result = append(result, p)
		}
	}
	return result, nil
}
