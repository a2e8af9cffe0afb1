package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/plugsync/internal/registry"
)

const (
	statusInstalled = "installed"
	statusMissing   = "missing"
	statusLocal     = "local"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List plugins in the registry",
		Long:    `List every plugin in the registry with its protocol, install state and path.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			reg, err := registry.Load(cfg.RegistryPath, cfg.BaseDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			plugins := reg.Plugins()
			if len(plugins) == 0 {
				fmt.Fprintf(out, "No plugins in %s\n", reg.Path())
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.AppendHeader(table.Row{"Name", "Protocol", "Status", "Path"})
			for _, p := range plugins {
				status := statusMissing
				switch {
				case p.Local:
					status = statusLocal
				case reg.Installed(p.Name):
					status = statusInstalled
				}
				protocol := p.Protocol
				if protocol == "" {
					protocol = "-"
				}
				t.AppendRow(table.Row{p.Name, protocol, status, p.Path})
			}
			t.SetColumnConfigs([]table.ColumnConfig{
				{Number: 4, WidthMax: 60},
			})
			style := table.StyleLight
			style.Options.DrawBorder = false
			t.SetStyle(style)
			t.Render()
			return nil
		},
	}
}
