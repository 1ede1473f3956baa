package alias

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/records"
)

type testFormat struct{}

func (testFormat) FormatSpec() records.FormatSpec {
	return records.FormatSpec{Preamble: "#BP", PreambleColor: "@C", ErrorColor: "@R", Separator: "|"}
}

func (testFormat) Separator() string { return "|" }

type fakeMud struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeMud) Connected() bool { return true }

func (f *fakeMud) Deliver(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, string(data))
	return true
}

func (f *fakeMud) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeMud) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = nil
}

func bootAlias(t *testing.T, state plugin.StateStore) (*Engine, *plugin.Runtime, *plugin.Manager, *fakeMud) {
	t.Helper()
	rt := &plugin.Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: state,
	}
	sink := &fakeMud{}
	rt.Pipeline = pipeline.New(slog.Default(), rt.Bus, testFormat{})
	rt.Pipeline.SetMudSink(sink)

	cat := plugin.NewCatalog()
	require.NoError(t, cat.Add(settings.Definition(nil)))
	require.NoError(t, cat.Add(commands.Definition(nil)))
	require.NoError(t, cat.Add(Definition()))
	m := plugin.NewManager(slog.Default(), rt, cat)
	require.NoError(t, m.LoadAll())

	info, ok := m.Get(ID)
	require.True(t, ok)
	eng, ok := info.Instance.(*Engine)
	require.True(t, ok)
	return eng, rt, m, sink
}

func newTestAlias(t *testing.T) (*Engine, *plugin.Runtime, *plugin.Manager, *fakeMud) {
	t.Helper()
	return bootAlias(t, plugin.NewMemoryState())
}

func addAlias(t *testing.T, e *Engine, original, replacement string) {
	t.Helper()
	ok, msg, err := e.cmdAdd(plugin.CommandContext{Args: map[string]any{
		"original": original, "replacement": replacement,
	}})
	require.NoError(t, err)
	require.True(t, ok, "add failed: %v", msg)
}

func TestSimpleAliasExpansion(t *testing.T) {
	e, rt, _, sink := newTestAlias(t)

	ok, msg, err := e.cmdAdd(plugin.CommandContext{Args: map[string]any{
		"original": "gj", "replacement": "get all.junk",
	}})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, msg)
	assert.Contains(t, msg[0], "Adding alias")

	_, err = rt.Pipeline.ProcessToMud("gj", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"get all.junk\r\n"}, sink.sent())

	sink.clear()
	_, err = rt.Pipeline.ProcessToMud("gj sack", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"get all.junk sack\r\n"}, sink.sent())

	assert.Equal(t, 2, e.aliases["gj"].Hits)
	assert.Equal(t, 2, e.sessionHits["gj"])
}

func TestAliasDoesNotMatchInsideWords(t *testing.T) {
	e, rt, _, sink := newTestAlias(t)
	addAlias(t, e, "o", "open door")

	_, err := rt.Pipeline.ProcessToMud("order follow", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"order follow\r\n"}, sink.sent())
}

func TestPatternAliasMultiCommand(t *testing.T) {
	e, rt, _, sink := newTestAlias(t)
	addAlias(t, e, "port (.*)", "get {1} portbag|wear {1}")

	_, err := rt.Pipeline.ProcessToMud("port bag1", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"get \"bag1\" portbag\r\n",
		"wear \"bag1\"\r\n",
	}, sink.sent())
	assert.Equal(t, 1, e.aliases["port (.*)"].Hits)
}

func TestExpansionIsSinglePass(t *testing.T) {
	e, rt, _, sink := newTestAlias(t)
	addAlias(t, e, "a", "a b|c")

	_, err := rt.Pipeline.ProcessToMud("a", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a b\r\n", "c\r\n"}, sink.sent())
}

func TestDisabledAliasDoesNotExpand(t *testing.T) {
	e, rt, _, sink := newTestAlias(t)
	addAlias(t, e, "gj", "get all.junk")

	ok, msg, err := e.cmdToggle(plugin.CommandContext{Args: map[string]any{"alias": "gj"}})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotEmpty(t, msg)
	assert.Contains(t, msg[0], "Disabled alias")

	_, err = rt.Pipeline.ProcessToMud("gj", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"gj\r\n"}, sink.sent())

	sink.clear()
	_, msg, err = e.cmdToggle(plugin.CommandContext{Args: map[string]any{"alias": "gj"}})
	require.NoError(t, err)
	assert.Contains(t, msg[0], "Enabled alias")

	_, err = rt.Pipeline.ProcessToMud("gj", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"get all.junk\r\n"}, sink.sent())
}

func TestRemoveByNameAndNumber(t *testing.T) {
	e, _, _, _ := newTestAlias(t)
	addAlias(t, e, "gj", "get all.junk")
	addAlias(t, e, "k", "kick")

	ok, msg, err := e.cmdRemove(plugin.CommandContext{Args: map[string]any{"alias": "0"}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"@GRemoving alias@w : 'gj'"}, msg)

	_, msg, err = e.cmdRemove(plugin.CommandContext{Args: map[string]any{"alias": "k"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"@GRemoving alias@w : 'k'"}, msg)

	_, msg, err = e.cmdRemove(plugin.CommandContext{Args: map[string]any{"alias": "zz"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"@GCould not remove alias@w : 'zz'"}, msg)
	assert.Empty(t, e.aliases)
}

func TestListFormatsTable(t *testing.T) {
	e, _, _, _ := newTestAlias(t)

	ok, lines, err := e.cmdList(plugin.CommandContext{Args: map[string]any{"match": ""}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"None"}, lines)

	addAlias(t, e, "gj", "get all.junk")
	addAlias(t, e, "longone", "@G"+strings.Repeat("x", 40)+"@w")

	_, lines, err = e.cmdList(plugin.CommandContext{Args: map[string]any{"match": ""}})
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, fmt.Sprintf("%4s %2s  %-20s : %s@w", "#", "E", "Alias", "Replacement"), lines[0])
	assert.Equal(t, "@B"+strings.Repeat("-", 60)+"@w", lines[1])
	assert.Contains(t, lines[2], "gj")
	assert.Contains(t, lines[3], "...")
	assert.NotContains(t, lines[3], "@G")

	_, lines, err = e.cmdList(plugin.CommandContext{Args: map[string]any{"match": "long"}})
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "longone")
}

func TestDetailCountsHits(t *testing.T) {
	e, rt, _, _ := newTestAlias(t)
	addAlias(t, e, "gj", "get all.junk")

	for range [2]int{} {
		_, err := rt.Pipeline.ProcessToMud("gj", plugin.ClientActor("c1"))
		require.NoError(t, err)
	}

	ok, lines, err := e.cmdDetail(plugin.CommandContext{Args: map[string]any{"alias": "0"}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, lines, fmt.Sprintf("%-12s : %d", "Total Hits", 2))
	assert.Contains(t, lines, fmt.Sprintf("%-12s : %d", "Session Hits", 2))
	assert.Contains(t, lines, fmt.Sprintf("%-12s : %s", "Alias", "gj"))

	_, lines, err = e.cmdDetail(plugin.CommandContext{Args: map[string]any{"alias": "zz"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"@RAlias does not exist@w : 'zz'"}, lines)
}

func TestAddRejectsBadPattern(t *testing.T) {
	e, _, _, _ := newTestAlias(t)

	ok, msg, err := e.cmdAdd(plugin.CommandContext{Args: map[string]any{
		"original": "bad [ (.*)", "replacement": "whatever",
	}})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotEmpty(t, msg)
	assert.Contains(t, msg[0], "does not compile")

	ok, msg, err = e.cmdAdd(plugin.CommandContext{Args: map[string]any{"original": "", "replacement": ""}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"@RPlease include all arguments@w"}, msg)
}

func TestReloadKeepsAliases(t *testing.T) {
	e, rt, m, sink := newTestAlias(t)
	addAlias(t, e, "gj", "get all.junk")
	_, err := rt.Pipeline.ProcessToMud("gj", plugin.ClientActor("c1"))
	require.NoError(t, err)

	require.NoError(t, m.Reload(ID))
	info, ok := m.Get(ID)
	require.True(t, ok)
	e2, ok := info.Instance.(*Engine)
	require.True(t, ok)
	require.NotSame(t, e, e2)

	require.Contains(t, e2.aliases, "gj")
	assert.Equal(t, 1, e2.aliases["gj"].Hits)
	assert.Zero(t, e2.sessionHits["gj"])

	sink.clear()
	_, err = rt.Pipeline.ProcessToMud("gj", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"get all.junk\r\n"}, sink.sent())
}

func TestStatePersistsAcrossRestarts(t *testing.T) {
	state := plugin.NewMemoryState()

	e1, _, m1, _ := bootAlias(t, state)
	addAlias(t, e1, "gj", "get all.junk")
	m1.Shutdown()

	e2, rt2, _, sink2 := bootAlias(t, state)
	require.Contains(t, e2.aliases, "gj")

	_, err := rt2.Pipeline.ProcessToMud("gj", plugin.ClientActor("c1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"get all.junk\r\n"}, sink2.sent())
}

func TestResetClearsAliases(t *testing.T) {
	e, _, m, _ := newTestAlias(t)
	addAlias(t, e, "gj", "get all.junk")

	require.NoError(t, m.Reset(ID))
	assert.Empty(t, e.aliases)

	_, lines, err := e.cmdList(plugin.CommandContext{Args: map[string]any{"match": ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"None"}, lines)
}
