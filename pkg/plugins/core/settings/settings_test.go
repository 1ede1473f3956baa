package settings

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugin"
)

func newTestEngine(t *testing.T, store Store) (*Engine, *plugin.Runtime) {
	t.Helper()
	rt := &plugin.Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: plugin.NewMemoryState(),
	}
	cat := plugin.NewCatalog()
	require.NoError(t, cat.Add(Definition(store)))
	m := plugin.NewManager(slog.Default(), rt, cat)
	require.NoError(t, m.LoadAll())

	info, ok := m.Get(ID)
	require.True(t, ok)
	eng, ok := info.Instance.(*Engine)
	require.True(t, ok)
	return eng, rt
}

func strSpec(pluginID, name, def string) plugin.SettingSpec {
	return plugin.SettingSpec{PluginID: pluginID, Name: name, Type: "str", Default: def}
}

func TestAddAndGetDefault(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(strSpec("p.one", "greeting", "hello")))

	v, err := e.Get("p.one", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	_, err = e.Get("p.one", "absent")
	assert.ErrorIs(t, err, ErrSettingNotFound)
}

func TestAddLoadsPersistedValue(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "p.one", "port", "4000"))

	e, _ := newTestEngine(t, store)
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "port", Type: "int", Default: 23}))

	v, err := e.Get("p.one", "port")
	require.NoError(t, err)
	assert.Equal(t, 4000, v)
}

func TestAddRejectsDuplicatesAndVisibleCollisions(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(strSpec("p.one", "greeting", "hi")))

	assert.ErrorIs(t, e.Add(strSpec("p.one", "greeting", "hi")), ErrSettingExists)
	assert.ErrorIs(t, e.Add(strSpec("p.two", "greeting", "yo")), ErrSettingExists)

	hidden := strSpec("p.two", "greeting", "yo")
	hidden.Hidden = true
	assert.NoError(t, e.Add(hidden))
}

func TestAddRejectsUnknownType(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	err := e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "x", Type: "complex128", Default: nil})
	assert.ErrorIs(t, err, ErrTypeUnknown)
}

func TestSetCoercesWritesAndRaises(t *testing.T) {
	store := NewMemoryStore()
	e, rt := newTestEngine(t, store)
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "port", Type: "int", Default: 23}))

	var events []map[string]any
	rt.Bus.RegisterCallback(ModifiedEventName("p.one", "port"), "test", "watch", 50, func(rec *bus.Record) error {
		events = append(events, map[string]any{
			"var": rec.String("var"), "old": rec.Int("oldvalue"), "new": rec.Int("newvalue"),
		})
		return nil
	})

	require.NoError(t, e.Set("p.one", "port", "4000", "p.one"))

	v, _ := e.Get("p.one", "port")
	assert.Equal(t, 4000, v)

	raw, ok, err := store.Get(context.Background(), "p.one", "port")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4000", raw)

	require.Len(t, events, 1)
	assert.Equal(t, "port", events[0]["var"])
	assert.Equal(t, 23, events[0]["old"])
	assert.Equal(t, 4000, events[0]["new"])

	// Setting the same value again stays silent.
	require.NoError(t, e.Set("p.one", "port", 4000, "p.one"))
	assert.Len(t, events, 1)
}

func TestSetDefaultSentinelRestores(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(strSpec("p.one", "greeting", "hello")))
	require.NoError(t, e.Set("p.one", "greeting", "howdy", "p.one"))

	require.NoError(t, e.Set("p.one", "greeting", DefaultSentinel, "p.one"))
	v, _ := e.Get("p.one", "greeting")
	assert.Equal(t, "hello", v)
}

func TestSetReadOnlyRefusesClients(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	spec := strSpec("p.one", "secret", "s")
	spec.ReadOnly = true
	require.NoError(t, e.Add(spec))

	err := e.Set("p.one", "secret", "x", plugin.ClientActor("abc"))
	assert.ErrorIs(t, err, ErrReadOnly)

	require.NoError(t, e.Set("p.one", "secret", "x", "p.one"))
	v, _ := e.Get("p.one", "secret")
	assert.Equal(t, "x", v)
}

func TestSetRejectsInvalidValues(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "port", Type: "int", Default: 23}))
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "tint", Type: "color", Default: "@C"}))

	assert.ErrorIs(t, e.Set("p.one", "port", "not-a-number", "p.one"), ErrInvalidValue)
	assert.ErrorIs(t, e.Set("p.one", "tint", "@q", "p.one"), ErrInvalidValue)
	require.NoError(t, e.Set("p.one", "tint", "@R", "p.one"))
}

func TestBoolCoercion(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "flag", Type: "bool", Default: false}))

	for _, s := range []string{"true", "yes", "on", "1", "Yes"} {
		require.NoError(t, e.Set("p.one", "flag", s, "p.one"), s)
		v, _ := e.Get("p.one", "flag")
		assert.Equal(t, true, v, s)
		require.NoError(t, e.Set("p.one", "flag", "off", "p.one"))
	}
	assert.ErrorIs(t, e.Set("p.one", "flag", "maybe", "p.one"), ErrInvalidValue)
}

func TestDurationCoercion(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "every", Type: "duration", Default: 60}))

	require.NoError(t, e.Set("p.one", "every", "90", "p.one"))
	v, _ := e.Get("p.one", "every")
	assert.Equal(t, 90, v)

	require.NoError(t, e.Set("p.one", "every", "1h30m", "p.one"))
	v, _ = e.Get("p.one", "every")
	assert.Equal(t, 5400, v)

	assert.ErrorIs(t, e.Set("p.one", "every", "soon", "p.one"), ErrInvalidValue)
}

func TestResetRestoresDefaults(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(strSpec("p.one", "greeting", "hello")))
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "port", Type: "int", Default: 23}))
	require.NoError(t, e.Set("p.one", "greeting", "howdy", "p.one"))
	require.NoError(t, e.Set("p.one", "port", 4000, "p.one"))

	require.NoError(t, e.Reset("p.one"))

	g, _ := e.Get("p.one", "greeting")
	p, _ := e.Get("p.one", "port")
	assert.Equal(t, "hello", g)
	assert.Equal(t, 23, p)
}

func TestSaveEventFlushes(t *testing.T) {
	store := NewMemoryStore()
	e, rt := newTestEngine(t, store)
	require.NoError(t, e.Add(strSpec("p.one", "greeting", "hello")))

	// Mutate the live entry without going through Set so nothing has
	// been written yet, then fire the save event.
	e.specs["p.one"]["greeting"].value = "changed"
	_, err := rt.Bus.Raise(plugin.EventPluginSave, map[string]any{"plugin_id": "p.one"}, "test")
	require.NoError(t, err)

	raw, ok, err := store.Get(context.Background(), "p.one", "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "changed", raw)
}

func TestRemoveOwnerFreesVisibleNames(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(strSpec("p.one", "greeting", "hello")))
	require.NoError(t, e.Add(strSpec("p.one", "farewell", "bye")))

	assert.Equal(t, 2, e.RemoveOwner("p.one"))
	assert.Empty(t, e.Items("p.one"))

	// The visible name is free for another plugin now.
	require.NoError(t, e.Add(strSpec("p.two", "greeting", "yo")))
}

func TestItemsKeepDeclarationOrder(t *testing.T) {
	e, _ := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(strSpec("p.one", "zeta", "z")))
	require.NoError(t, e.Add(strSpec("p.one", "alpha", "a")))

	items := e.Items("p.one")
	require.Len(t, items, 2)
	assert.Equal(t, "zeta", items[0].Name)
	assert.Equal(t, "alpha", items[1].Name)
}

func TestCapabilityGetAndSet(t *testing.T) {
	e, rt := newTestEngine(t, NewMemoryStore())
	require.NoError(t, e.Add(plugin.SettingSpec{PluginID: "p.one", Name: "port", Type: "int", Default: 23}))

	client := rt.Caps.Client("test")
	v, err := client.Call(ID+":get", "p.one", "port")
	require.NoError(t, err)
	assert.Equal(t, 23, v)

	_, err = client.Call(ID+":set", "p.one", "port", 4000)
	require.NoError(t, err)
	v, err = client.Call(ID+":get", "p.one", "port")
	require.NoError(t, err)
	assert.Equal(t, 4000, v)
}
