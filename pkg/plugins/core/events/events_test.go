package events

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
)

func newTestEngine(t *testing.T) (*Engine, *plugin.Runtime) {
	t.Helper()
	rt := &plugin.Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: plugin.NewMemoryState(),
	}
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
	return eng, rt
}

func TestCapabilitiesRegistered(t *testing.T) {
	_, rt := newTestEngine(t)

	for _, name := range []string{
		ID + ":add.event",
		ID + ":register.callback",
		ID + ":unregister.callback",
		ID + ":raise.event",
		ID + ":current.record",
		ID + ":event.stack",
	} {
		assert.True(t, rt.Caps.Has(name), name)
	}
}

func TestAddEventThroughCapability(t *testing.T) {
	_, rt := newTestEngine(t)
	client := rt.Caps.Client("plugins.test")

	_, err := client.Call(ID+":add.event", "ev_test_something", "plugins.test", "a test event")
	require.NoError(t, err)
	assert.True(t, rt.Bus.HasEvent("ev_test_something"))

	// redefinition is a contract violation
	_, err = client.Call(ID+":add.event", "ev_test_something", "plugins.other")
	assert.ErrorIs(t, err, bus.ErrEventExists)
}

func TestRegisterRaiseUnregisterRoundTrip(t *testing.T) {
	_, rt := newTestEngine(t)
	client := rt.Caps.Client("plugins.test")

	var seen []string
	var fn bus.CallbackFunc = func(rec *bus.Record) error {
		seen = append(seen, rec.String("word"))
		return nil
	}

	added, err := client.Call(ID+":register.callback", "ev_test_words", "plugins.test", "collect", 50, fn)
	require.NoError(t, err)
	assert.Equal(t, true, added)

	// same identity again is a no-op
	added, err = client.Call(ID+":register.callback", "ev_test_words", "plugins.test", "collect", 50, fn)
	require.NoError(t, err)
	assert.Equal(t, false, added)

	_, err = client.Call(ID+":raise.event", "ev_test_words", map[string]any{"word": "hello"}, "plugins.test")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, seen)

	removed, err := client.Call(ID+":unregister.callback", "ev_test_words", "plugins.test", "collect")
	require.NoError(t, err)
	assert.Equal(t, true, removed)

	_, err = client.Call(ID+":raise.event", "ev_test_words", map[string]any{"word": "again"}, "plugins.test")
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestCurrentRecordAndStackInsideDispatch(t *testing.T) {
	_, rt := newTestEngine(t)
	client := rt.Caps.Client("plugins.test")

	var gotStack []string
	var gotWord string
	rt.Bus.RegisterCallback("ev_test_inner", "plugins.test", "peek", 50, func(*bus.Record) error {
		res, err := client.Call(ID + ":event.stack")
		if err != nil {
			return err
		}
		gotStack = res.([]string)
		res, err = client.Call(ID + ":current.record")
		if err != nil {
			return err
		}
		gotWord = res.(*bus.Record).String("word")
		return nil
	})

	_, err := rt.Bus.Raise("ev_test_inner", map[string]any{"word": "inner"}, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"ev_test_inner"}, gotStack)
	assert.Equal(t, "inner", gotWord)

	// outside dispatch there is no current record
	res, err := client.Call(ID + ":current.record")
	require.NoError(t, err)
	assert.Nil(t, res.(*bus.Record))
}

func TestListAndDetailCommands(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, rt.Bus.AddEvent("ev_test_visible", "plugins.test",
		[]string{"a visible event"}, map[string]string{"who": "the subject"}))

	ok, out, err := e.cmdList(plugin.CommandContext{Args: map[string]any{"match": "ev_test_visible"}})
	require.NoError(t, err)
	assert.True(t, ok)
	joined := ""
	for _, l := range out {
		joined += l + "\n"
	}
	assert.Contains(t, joined, "ev_test_visible")

	ok, out, err = e.cmdDetail(plugin.CommandContext{Args: map[string]any{"event": "ev_test_visible"}})
	require.NoError(t, err)
	assert.True(t, ok)
	joined = ""
	for _, l := range out {
		joined += l + "\n"
	}
	assert.Contains(t, joined, "plugins.test")
	assert.Contains(t, joined, "a visible event")

	ok, _, err = e.cmdDetail(plugin.CommandContext{Args: map[string]any{"event": "ev_no_such"}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRaisedCommandShowsHistory(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, rt.Bus.AddEvent("ev_test_busy", "plugins.test", nil, nil))
	for range 3 {
		_, err := rt.Bus.Raise("ev_test_busy", nil, "plugins.test")
		require.NoError(t, err)
	}

	ok, out, err := e.cmdRaised(plugin.CommandContext{Args: map[string]any{"event": "ev_test_busy", "count": 2}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out[0], "Last 2 raises")
}
