// Package config resolves plugsync settings from defaults, an optional
// settings file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig      = "PLUGSYNC_CONFIG"
	EnvRegistry    = "PLUGSYNC_REGISTRY"
	EnvBaseDir     = "PLUGSYNC_BASE_DIR"
	EnvStateDir    = "PLUGSYNC_STATE_DIR"
	EnvCheckDiff   = "PLUGSYNC_CHECK_DIFF"
	EnvShell       = "SHELL"
	EnvShellFlag   = "PLUGSYNC_SHELL_FLAG"
	EnvDiffMaxSize = "PLUGSYNC_DIFF_MAX_SIZE"
)

const (
	appName = "plugsync"

	// DefaultShell is used when $SHELL is unset.
	DefaultShell = "sh"

	// DefaultShellFlag makes the shell read the command from its argument.
	DefaultShellFlag = "-c"

	// DefaultDiffMaxSize is the diff log size that triggers rotation.
	DefaultDiffMaxSize int64 = 1 << 20
)

// Config holds resolved settings.
type Config struct {
	// CheckDiff enables change-log reports after updates.
	CheckDiff bool

	// Shell and ShellFlag run build and hook commands: <Shell> <ShellFlag> <command>.
	Shell     string
	ShellFlag string

	// RegistryPath is the plugin registry file.
	RegistryPath string

	// BaseDir is where plugins without an explicit path are installed.
	BaseDir string

	// StateDir holds the diff log and the run lock.
	StateDir string

	// DiffMaxSize is the diff log size that triggers rotation.
	DiffMaxSize int64

	// Adapters maps protocol names to external adapter binaries.
	Adapters map[string]string
}

// fileConfig mirrors the settings file; pointers distinguish unset from zero.
type fileConfig struct {
	CheckDiff   *bool             `toml:"check_diff"`
	Shell       string            `toml:"shell"`
	ShellFlag   *string           `toml:"shell_flag"`
	Registry    string            `toml:"registry"`
	BaseDir     string            `toml:"base_dir"`
	StateDir    string            `toml:"state_dir"`
	DiffMaxSize int64             `toml:"diff_max_size"`
	Adapters    map[string]string `toml:"adapters"`
}

// Dirs are the per-user base directories defaults are derived from.
type Dirs struct {
	Config string
	Data   string
	State  string
}

// UserDirs resolves XDG base directories, falling back to the usual
// locations under the home directory.
func UserDirs(getenv func(string) string) (Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("failed to determine home directory: %w", err)
	}

	xdg := func(key string, fallback ...string) string {
		if v := getenv(key); v != "" && filepath.IsAbs(v) {
			return v
		}
		return filepath.Join(append([]string{home}, fallback...)...)
	}

	return Dirs{
		Config: filepath.Join(xdg("XDG_CONFIG_HOME", ".config"), appName),
		Data:   filepath.Join(xdg("XDG_DATA_HOME", ".local", "share"), appName),
		State:  filepath.Join(xdg("XDG_STATE_HOME", ".local", "state"), appName),
	}, nil
}

// Defaults returns the built-in settings for dirs.
func Defaults(dirs Dirs) Config {
	return Config{
		Shell:        DefaultShell,
		ShellFlag:    DefaultShellFlag,
		RegistryPath: filepath.Join(dirs.Config, "plugins.toml"),
		BaseDir:      filepath.Join(dirs.Data, "plugins"),
		StateDir:     dirs.State,
		DiffMaxSize:  DefaultDiffMaxSize,
		Adapters:     map[string]string{},
	}
}

// DefaultPath returns the settings file location for dirs.
func DefaultPath(dirs Dirs) string {
	return filepath.Join(dirs.Config, "config.toml")
}

// Load resolves settings: defaults, then the settings file, then the
// environment. An explicit path must exist; the default one may not.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	dirs, err := UserDirs(getenv)
	if err != nil {
		return Config{}, err
	}
	cfg := Defaults(dirs)

	required := true
	if path == "" {
		path = getenv(EnvConfig)
	}
	if path == "" {
		path = DefaultPath(dirs)
		required = false
	}

	if err := cfg.LoadFile(path, required); err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile merges a TOML settings file into c. A missing file is an error
// only when required is set.
func (c *Config) LoadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if fc.CheckDiff != nil {
		c.CheckDiff = *fc.CheckDiff
	}
	if fc.Shell != "" {
		c.Shell = fc.Shell
	}
	if fc.ShellFlag != nil {
		c.ShellFlag = *fc.ShellFlag
	}
	if fc.Registry != "" {
		c.RegistryPath = resolve(dir, fc.Registry)
	}
	if fc.BaseDir != "" {
		c.BaseDir = resolve(dir, fc.BaseDir)
	}
	if fc.StateDir != "" {
		c.StateDir = resolve(dir, fc.StateDir)
	}
	if fc.DiffMaxSize > 0 {
		c.DiffMaxSize = fc.DiffMaxSize
	}
	if c.Adapters == nil {
		c.Adapters = make(map[string]string, len(fc.Adapters))
	}
	for name, bin := range fc.Adapters {
		c.Adapters[name] = resolve(dir, bin)
	}
	return nil
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvCheckDiff); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCheckDiff, err)
		}
		c.CheckDiff = b
	}
	if v := getenv(EnvRegistry); v != "" {
		c.RegistryPath = v
	}
	if v := getenv(EnvBaseDir); v != "" {
		c.BaseDir = v
	}
	if v := getenv(EnvStateDir); v != "" {
		c.StateDir = v
	}
	if v := getenv(EnvShell); v != "" {
		c.Shell = v
	}
	if v, ok := lookup(getenv, EnvShellFlag); ok {
		c.ShellFlag = v
	}
	if v := getenv(EnvDiffMaxSize); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s: %q", EnvDiffMaxSize, v)
		}
		c.DiffMaxSize = n
	}
	return nil
}

// Validate checks that the settings can drive a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Shell) == "" {
		return errors.New("shell is not set")
	}
	if c.RegistryPath == "" {
		return errors.New("registry path is not set")
	}
	if c.StateDir == "" {
		return errors.New("state directory is not set")
	}
	return nil
}

// lookup treats a value of "-" as an explicit empty string, so an empty
// shell flag can be configured from the environment.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	switch v {
	case "":
		return "", false
	case "-":
		return "", true
	default:
		return v, true
	}
}

func resolve(dir, path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
