// Package cli provides the command-line interface for plugsync.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/plugsync/internal/config"
	"github.com/jmylchreest/plugsync/internal/version"
)

// options holds the persistent flag values.
type options struct {
	configPath   string
	registryPath string
	baseDir      string
	stateDir     string
	shell        string
	shellFlag    string
	checkDiff    bool
	verbose      bool
	quiet        bool
}

// NewRootCmd builds the plugsync command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "plugsync",
		Short: "Keep externally sourced plugins in sync",
		Long: `plugsync installs and updates plugins listed in a registry file.

Each plugin is synchronized through its protocol (git, raw download or an
external adapter), built, and its lifecycle hooks are fired. With
--check-diff the change log between the old and new revision is appended
to the diff log in the state directory.`,
		Version:      version.Short(),
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "settings file (default $XDG_CONFIG_HOME/plugsync/config.toml)")
	flags.StringVar(&opts.registryPath, "registry", "", "plugin registry file (.toml, .yaml or .json)")
	flags.StringVar(&opts.baseDir, "base-dir", "", "directory plugins are installed under")
	flags.StringVar(&opts.stateDir, "state-dir", "", "directory for the diff log and run lock")
	flags.StringVar(&opts.shell, "shell", "", "shell used for build and hook commands")
	flags.StringVar(&opts.shellFlag, "shell-flag", "", "argument that makes the shell run a command string")
	flags.BoolVar(&opts.checkDiff, "check-diff", false, "record the change log of updated plugins")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.SetVersionTemplate(version.String() + "\n")

	rootCmd.AddCommand(
		newSyncCmd(opts, verbInstall),
		newSyncCmd(opts, verbUpdate),
		newSyncCmd(opts, verbReinstall),
		newBuildCmd(opts),
		newListCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig resolves settings and applies explicitly set flags last.
func (o *options) loadConfig(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(o.configPath, os.Getenv)
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("registry") {
		cfg.RegistryPath = o.registryPath
	}
	if flags.Changed("base-dir") {
		cfg.BaseDir = o.baseDir
	}
	if flags.Changed("state-dir") {
		cfg.StateDir = o.stateDir
	}
	if flags.Changed("shell") {
		cfg.Shell = o.shell
	}
	if flags.Changed("shell-flag") {
		cfg.ShellFlag = o.shellFlag
	}
	if flags.Changed("check-diff") {
		cfg.CheckDiff = o.checkDiff
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns a debug logger on stderr when verbose, otherwise one
// that discards everything.
func (o *options) newLogger() hclog.Logger {
	if o.verbose {
		return hclog.New(&hclog.LoggerOptions{
			Name:   "plugsync",
			Output: os.Stderr,
			Level:  hclog.Debug,
		})
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "plugsync",
		Output: io.Discard,
		Level:  hclog.Off,
	})
}

// output returns where user-facing text goes.
func (o *options) output(cmd *cobra.Command) io.Writer {
	if o.quiet {
		return io.Discard
	}
	return cmd.OutOrStdout()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print detailed version information including build date, commit hash, and Go version.`,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
