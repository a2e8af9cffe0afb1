package update

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/plugsync/internal/plugin/builder"
	"github.com/jmylchreest/plugsync/internal/plugin/executor"
	"github.com/jmylchreest/plugsync/internal/plugin/hook"
	"github.com/jmylchreest/plugsync/internal/plugin/revision"
	"github.com/jmylchreest/plugsync/internal/report"
	"github.com/jmylchreest/plugsync/pkg/plugin"
)

// fakeAdapter serves revisions and commands from maps. Running a "sync"
// command for a plugin moves its revision forward.
type fakeAdapter struct {
	mu        sync.Mutex
	log       *[]string
	revs      map[string]string
	sync      map[string][]plugin.Command
	syncErr   map[string]error
	diffCalls [][3]string
}

func newFakeAdapter(log *[]string) *fakeAdapter {
	return &fakeAdapter{
		log:     log,
		revs:    map[string]string{},
		sync:    map[string][]plugin.Command{},
		syncErr: map[string]error{},
	}
}

func (f *fakeAdapter) Revision(_ context.Context, p *plugin.Plugin) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.log = append(*f.log, "rev:"+p.Name+"="+f.revs[p.Name])
	return f.revs[p.Name], nil
}

func (f *fakeAdapter) SyncCommands(_ context.Context, p *plugin.Plugin) ([]plugin.Command, error) {
	return f.sync[p.Name], f.syncErr[p.Name]
}

func (f *fakeAdapter) DiffCommands(_ context.Context, p *plugin.Plugin, oldRev, newRev string) ([]plugin.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diffCalls = append(f.diffCalls, [3]string{p.Name, oldRev, newRev})
	return []plugin.Command{plugin.NewCommand("log", p.Name)}, nil
}

func (f *fakeAdapter) bump(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revs[name] += "+"
}

type resolver map[string]plugin.ProtocolAdapter

func (r resolver) Adapter(name string) (plugin.ProtocolAdapter, bool) {
	a, ok := r[name]
	return a, ok
}

type fakeRegistry struct {
	plugins []*plugin.Plugin
	clears  int
}

func (r *fakeRegistry) Plugins() []*plugin.Plugin { return r.plugins }
func (r *fakeRegistry) ClearCache()               { r.clears++ }

type harness struct {
	log      []string
	adapter  *fakeAdapter
	runner   *executor.MockProcessRunner
	hooks    *hook.Recorder
	progress *report.Buffer
	diffs    *report.Buffer
	registry *fakeRegistry
}

func newHarness(plugins ...*plugin.Plugin) *harness {
	h := &harness{
		hooks:    &hook.Recorder{},
		progress: &report.Buffer{},
		diffs:    &report.Buffer{},
		registry: &fakeRegistry{plugins: plugins},
	}
	h.adapter = newFakeAdapter(&h.log)
	h.runner = &executor.MockProcessRunner{
		RunFunc: func(_ context.Context, name string, args []string, _ string) ([]byte, []byte, error) {
			h.log = append(h.log, "run:"+plugin.NewCommand(name, args...).String())
			switch name {
			case "sync":
				h.adapter.bump(args[0])
				return []byte("synced " + args[0] + "\n\n"), nil, nil
			case "fail":
				return nil, []byte("fatal: could not read from remote\n"), errors.New("exit status 128")
			case "log":
				return []byte("* change\n\n* other\n"), nil, nil
			default:
				return nil, nil, nil
			}
		},
	}
	return h
}

func (h *harness) orchestrator(checkDiff bool) *Orchestrator {
	exec := executor.New(h.runner, nil)
	return New(Config{
		Executor:  exec,
		Builder:   builder.New(exec, "sh", "-c", h.progress, nil),
		Reporter:  revision.NewReporter(exec, h.diffs, nil),
		Resolver:  resolver{"git": h.adapter, "": h.adapter},
		Hooks:     h.hooks,
		Registry:  h.registry,
		Progress:  h.progress,
		CheckDiff: checkDiff,
	})
}

func (h *harness) runs(name string) int {
	n := 0
	for _, c := range h.runner.Calls() {
		if c.Name == name {
			n++
		}
	}
	return n
}

func TestRunEmptySelection(t *testing.T) {
	h := newHarness()

	res, err := h.orchestrator(false).Run(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, res.Updated)
	assert.Equal(t, []string{MsgNoTargets, MsgNoTargetsHint}, h.progress.Lines())
	assert.Zero(t, h.progress.Closes())
	assert.Zero(t, h.registry.clears)
}

func TestRunBuildsUpdatedPlugin(t *testing.T) {
	dir := t.TempDir()
	a := &plugin.Plugin{Name: "a", Path: dir, Build: "make", Protocol: "git"}
	h := newHarness(a)
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("noop")}

	res, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Updated)

	var build []executor.Call
	for _, c := range h.runner.Calls() {
		if c.Name == "sh" {
			build = append(build, c)
		}
	}
	require.Len(t, build, 1)
	assert.Equal(t, []string{"-c", "make"}, build[0].Args)
	assert.Equal(t, dir, build[0].Dir)

	assert.Equal(t, "[1/1] a", h.progress.Lines()[0])
	assert.Equal(t, 1, h.progress.Closes())
	assert.Equal(t, 1, h.registry.clears)
}

func TestRunFirstCommandSucceedsSecondFails(t *testing.T) {
	dir := t.TempDir()
	a := &plugin.Plugin{Name: "a", Path: dir, Build: "make", HookPostUpdate: true}
	h := newHarness(a)
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("sync", "a"), plugin.NewCommand("fail")}

	res, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Updated)
	assert.Equal(t, 1, h.hooks.Count(plugin.HookPostUpdate, "a"))
	assert.Equal(t, 1, h.runs("sh"))
	assert.Contains(t, h.progress.Lines(), "fatal: could not read from remote")
}

func TestRunEverySuccessfulCommandRetriggersPostUpdate(t *testing.T) {
	dir := t.TempDir()
	a := &plugin.Plugin{Name: "a", Path: dir, Build: "make", HookPostUpdate: true}
	h := newHarness(a)
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("sync", "a"), plugin.NewCommand("noop")}

	res, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Updated, "a plugin is recorded as updated once")
	assert.Equal(t, 2, h.hooks.Count(plugin.HookPostUpdate, "a"))
	assert.Equal(t, 2, h.runs("sh"))
}

func TestRunFailureDoesNotStopLoop(t *testing.T) {
	a := &plugin.Plugin{Name: "a"}
	b := &plugin.Plugin{Name: "b"}
	c := &plugin.Plugin{Name: "c"}
	h := newHarness(a, b, c)
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("fail")}
	h.adapter.syncErr["b"] = errors.New("no repository configured")
	h.adapter.sync["c"] = []plugin.Command{plugin.NewCommand("sync", "c")}

	res, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a, b, c})

	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, res.Updated)

	lines := h.progress.Lines()
	assert.Contains(t, lines, "[1/3] a")
	assert.Contains(t, lines, "b: no repository configured")
	assert.Contains(t, lines, "[3/3] c")
	// Blank output lines are dropped from progress.
	assert.NotContains(t, lines, "")
}

func TestRunNoSyncCommandsSkipsPlugin(t *testing.T) {
	a := &plugin.Plugin{Name: "a", HookDoneUpdate: true}
	h := newHarness(a)

	res, err := h.orchestrator(true).Run(context.Background(), []*plugin.Plugin{a})

	require.NoError(t, err)
	assert.Empty(t, res.Updated)
	assert.Empty(t, h.hooks.Events())
	assert.Empty(t, h.adapter.diffCalls)
}

func TestRunDependsUpdateFiresOnce(t *testing.T) {
	lib := &plugin.Plugin{Name: "lib", HookDependsUpdate: true}
	other := &plugin.Plugin{Name: "other", HookDependsUpdate: true}
	x := &plugin.Plugin{Name: "x", Depends: []string{"lib"}, HookDoneUpdate: true}
	y := &plugin.Plugin{Name: "y", Depends: []string{"lib"}}
	z := &plugin.Plugin{Name: "z", Depends: []string{"lib", "missing"}}
	h := newHarness(lib, other, x, y, z)
	for _, name := range []string{"x", "y", "z"} {
		h.adapter.sync[name] = []plugin.Command{plugin.NewCommand("sync", name)}
	}

	res, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{x, y, z})

	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, res.Updated)
	assert.Equal(t, 1, h.hooks.Count(plugin.HookDependsUpdate, "lib"))
	assert.Zero(t, h.hooks.Count(plugin.HookDependsUpdate, "other"), "plugins without depends must not notify unrelated plugins")
	assert.Equal(t, 1, h.hooks.Count(plugin.HookDoneUpdate, "x"))
	assert.Zero(t, h.hooks.Count(plugin.HookDoneUpdate, "y"))
}

func TestRunDependsUpdateSkipsUnflaggedAndLocal(t *testing.T) {
	plain := &plugin.Plugin{Name: "plain"}
	local := &plugin.Plugin{Name: "local", Local: true, HookDependsUpdate: true}
	a := &plugin.Plugin{Name: "a", Depends: []string{"plain", "local"}}
	h := newHarness(plain, local, a)
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("sync", "a")}

	_, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a})

	require.NoError(t, err)
	assert.Empty(t, h.hooks.Events())
}

func TestRunCheckDiffDisabled(t *testing.T) {
	a := &plugin.Plugin{Name: "a"}
	h := newHarness(a)
	h.adapter.revs["a"] = "r1"
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("sync", "a")}

	_, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a})

	require.NoError(t, err)
	assert.Empty(t, h.adapter.diffCalls)
	assert.Empty(t, h.diffs.Lines())
}

func TestRunCheckDiffUsesRevisionCapturedBeforeSync(t *testing.T) {
	a := &plugin.Plugin{Name: "a"}
	b := &plugin.Plugin{Name: "b"}
	h := newHarness(a, b)
	h.adapter.revs["a"] = "r1"
	h.adapter.revs["b"] = "s1"
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("sync", "a")}
	h.adapter.sync["b"] = []plugin.Command{plugin.NewCommand("noop")}

	_, err := h.orchestrator(true).Run(context.Background(), []*plugin.Plugin{a, b})

	require.NoError(t, err)
	// The old revision was read before the first sync command ran.
	require.GreaterOrEqual(t, len(h.log), 2)
	assert.Equal(t, "rev:a=r1", h.log[0])
	assert.Equal(t, "run:sync a", h.log[1])

	// b did not change, so only a is diffed.
	assert.Equal(t, [][3]string{{"a", "r1", "r1+"}}, h.adapter.diffCalls)
	assert.Equal(t, []string{"* change", "", "* other"}, h.diffs.Lines())
}

func TestRunUnknownProtocol(t *testing.T) {
	a := &plugin.Plugin{Name: "a", Protocol: "svn"}
	h := newHarness(a)

	_, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProtocol)
	assert.Contains(t, err.Error(), `"svn"`)
	assert.Equal(t, 1, h.progress.Closes())
}

func TestRunHookFailureIsReportedAsText(t *testing.T) {
	a := &plugin.Plugin{Name: "a", HookDoneUpdate: true}
	h := newHarness(a)
	h.hooks.Err = fmt.Errorf("hook done_update for a failed")
	h.adapter.sync["a"] = []plugin.Command{plugin.NewCommand("sync", "a")}

	res, err := h.orchestrator(false).Run(context.Background(), []*plugin.Plugin{a})

	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Updated)
	assert.Contains(t, h.progress.Lines(), "hook done_update for a failed")
}
