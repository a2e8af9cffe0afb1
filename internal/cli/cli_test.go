package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/plugsync/internal/lock"
	"github.com/jmylchreest/plugsync/internal/plugin/update"
)

const testRegistry = `
[[plugins]]
name = "vim-fugitive"
repo = "https://github.com/tpope/vim-fugitive.git"

[[plugins]]
name = "mine"
path = "/srv/mine"
local = true
`

type env struct {
	registry string
	base     string
	state    string
}

func setupEnv(t *testing.T) env {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("PLUGSYNC_CONFIG", "")

	e := env{
		registry: filepath.Join(root, "plugins.toml"),
		base:     filepath.Join(root, "plugins"),
		state:    filepath.Join(root, "state"),
	}
	require.NoError(t, os.WriteFile(e.registry, []byte(testRegistry), 0o600))
	return e
}

func run(t *testing.T, e env, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--registry", e.registry,
		"--base-dir", e.base,
		"--state-dir", e.state,
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	e := setupEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(e.base, "vim-fugitive"), 0o755))

	out, err := run(t, e, "list")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `vim-fugitive\W+git\W+installed`, out)
	assert.Regexp(t, `mine\W+-\W+local\W+/srv/mine`, out)
}

func TestReinstallWithoutNames(t *testing.T) {
	e := setupEnv(t)

	out, err := run(t, e, "reinstall")
	require.Error(t, err)
	assert.Contains(t, out, "reinstall requires at least one plugin name")
	assert.NoFileExists(t, filepath.Join(e.state, lock.FileName), "lock is released")
}

func TestInstallNothingSelected(t *testing.T) {
	e := setupEnv(t)

	out, err := run(t, e, "install", "mine")
	require.NoError(t, err)
	assert.Contains(t, out, update.MsgNoTargets)
	assert.Contains(t, out, update.MsgNoTargetsHint)
}

func TestQuietSuppressesProgress(t *testing.T) {
	e := setupEnv(t)

	out, err := run(t, e, "-q", "update", "unknown-plugin")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunLockHeld(t *testing.T) {
	e := setupEnv(t)

	l, err := lock.Acquire(e.state)
	require.NoError(t, err)
	defer l.Release()

	_, err = run(t, e, "update")
	assert.ErrorIs(t, err, lock.ErrLocked)
}

func TestMissingRegistry(t *testing.T) {
	e := setupEnv(t)
	e.registry = filepath.Join(t.TempDir(), "absent.toml")

	_, err := run(t, e, "list")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	e := setupEnv(t)

	out, err := run(t, e, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "plugsync version")
}
