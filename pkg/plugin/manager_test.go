package plugin

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
)

type testPlugin struct {
	Base
	id      string
	calls   *[]string
	initErr error
	attrs   map[string]any
}

func (p *testPlugin) Init(reg *Registrar) error {
	*p.calls = append(*p.calls, p.id+":init")
	if p.initErr != nil {
		return p.initErr
	}
	reg.Callback("ev_manager_test", "probe", 50, func(*bus.Record) error { return nil })
	return nil
}

func (p *testPlugin) Initialize() error {
	*p.calls = append(*p.calls, p.id+":initialize")
	return nil
}

func (p *testPlugin) Save() error {
	*p.calls = append(*p.calls, p.id+":save")
	return nil
}

func (p *testPlugin) Uninitialize() error {
	*p.calls = append(*p.calls, p.id+":uninitialize")
	return nil
}

func (p *testPlugin) Attribute(name string) (any, bool) {
	v, ok := p.attrs[name]
	return v, ok
}

func (p *testPlugin) SetAttribute(name string, value any) bool {
	if p.attrs == nil {
		p.attrs = make(map[string]any)
	}
	p.attrs[name] = value
	return true
}

func newTestRuntime() *Runtime {
	return &Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: NewMemoryState(),
	}
}

func testDef(id string, calls *[]string, opts ...func(*Definition)) Definition {
	def := Definition{
		Manifest: Manifest{ID: id, Name: id, Version: 1},
		Factory: func(*Runtime) Plugin {
			return &testPlugin{id: id, calls: calls}
		},
	}
	for _, opt := range opts {
		opt(&def)
	}
	return def
}

func withDeps(deps ...string) func(*Definition) {
	return func(d *Definition) { d.Dependencies = deps }
}

func withRequired() func(*Definition) {
	return func(d *Definition) { d.Required = true }
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.one", &calls)))
	err := c.Add(testDef("p.one", &calls))
	assert.ErrorIs(t, err, ErrPluginExists)
}

func TestLoadAllOrdersByDependency(t *testing.T) {
	var calls []string
	c := NewCatalog()
	// Registered out of dependency order on purpose.
	require.NoError(t, c.Add(testDef("p.app", &calls, withDeps("p.base"), withRequired())))
	require.NoError(t, c.Add(testDef("p.base", &calls, withRequired())))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll())

	assert.Equal(t, []string{
		"p.base:init",
		"p.app:init",
		"p.base:initialize",
		"p.app:initialize",
	}, calls)
	assert.Equal(t, []string{"p.base", "p.app"}, m.LoadOrder())
}

func TestLoadAllRaisesLoadedEvent(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.one", &calls, withRequired())))

	rt := newTestRuntime()
	m := NewManager(slog.Default(), rt, c)

	var loaded []string
	rt.Bus.RegisterCallback(EventPluginLoaded, "test", "watch", 50, func(rec *bus.Record) error {
		loaded = append(loaded, rec.String("plugin_id"))
		return nil
	})

	require.NoError(t, m.LoadAll())
	assert.Equal(t, []string{"p.one"}, loaded)
}

func TestLoadAllMissingDependencyFailsOnlyDependent(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.ok", &calls, withRequired())))
	require.NoError(t, c.Add(testDef("p.broken", &calls, withDeps("p.absent"))))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll("p.broken"))

	assert.True(t, m.IsLoaded("p.ok"))
	assert.False(t, m.IsLoaded("p.broken"))
	info, ok := m.Get("p.broken")
	require.True(t, ok)
	assert.Equal(t, StateFailed, info.State)
	assert.ErrorIs(t, info.Err, ErrDependencyMissing)
}

func TestLoadAllCycleAbortsBatch(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.a", &calls, withDeps("p.b"), withRequired())))
	require.NoError(t, c.Add(testDef("p.b", &calls, withDeps("p.a"), withRequired())))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	err := m.LoadAll()
	require.ErrorIs(t, err, ErrDependencyCycle)
	assert.Empty(t, calls)
	assert.Empty(t, m.LoadOrder())
}

func TestLoadAllRequiredFailureReturnsError(t *testing.T) {
	var calls []string
	c := NewCatalog()
	def := testDef("p.bad", &calls, withRequired())
	boom := errors.New("boom")
	def.Factory = func(*Runtime) Plugin {
		return &testPlugin{id: "p.bad", calls: &calls, initErr: boom}
	}
	require.NoError(t, c.Add(def))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	err := m.LoadAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestLoadAllUnknownExtraErrors(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.one", &calls, withRequired())))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	err := m.LoadAll("p.typo")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestInitFailureReleasesRegistrations(t *testing.T) {
	var calls []string
	c := NewCatalog()

	boom := errors.New("boom")
	def := Definition{
		Manifest: Manifest{ID: "p.partial", Version: 1},
		Factory: func(rt *Runtime) Plugin {
			return initFailPlugin{calls: &calls, err: boom}
		},
	}
	require.NoError(t, c.Add(def))

	rt := newTestRuntime()
	m := NewManager(slog.Default(), rt, c)
	require.NoError(t, m.LoadAll("p.partial"))

	assert.False(t, m.IsLoaded("p.partial"))
	// The callback registered before the Init error must be gone.
	assert.False(t, rt.Bus.IsRegistered("ev_manager_test", "p.partial", "early"))
	info, _ := m.Get("p.partial")
	assert.Equal(t, StateFailed, info.State)
	assert.ErrorIs(t, info.Err, boom)
}

type initFailPlugin struct {
	Base
	calls *[]string
	err   error
}

func (p initFailPlugin) Init(reg *Registrar) error {
	reg.Callback("ev_manager_test", "early", 50, func(*bus.Record) error { return nil })
	return p.err
}

func TestUnloadRefusesRequired(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.core", &calls, withRequired())))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll())

	assert.ErrorIs(t, m.Unload("p.core"), ErrPluginRequired)
	assert.True(t, m.IsLoaded("p.core"))
}

func TestUnloadReleasesAndDeactivates(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.opt", &calls)))

	rt := newTestRuntime()
	m := NewManager(slog.Default(), rt, c)
	require.NoError(t, m.LoadAll("p.opt"))
	require.True(t, rt.Bus.IsRegistered("ev_manager_test", "p.opt", "probe"))

	var unloaded []string
	rt.Bus.RegisterCallback(EventPluginUnloaded, "test", "watch", 50, func(rec *bus.Record) error {
		unloaded = append(unloaded, rec.String("plugin_id"))
		return nil
	})

	require.NoError(t, m.Unload("p.opt"))

	assert.False(t, m.IsLoaded("p.opt"))
	assert.False(t, rt.Bus.IsRegistered("ev_manager_test", "p.opt", "probe"))
	assert.Contains(t, calls, "p.opt:uninitialize")
	assert.Equal(t, []string{"p.opt"}, unloaded)

	info, ok := m.Get("p.opt")
	require.True(t, ok)
	assert.Equal(t, StateRegistered, info.State)
	assert.Nil(t, info.Instance)

	assert.ErrorIs(t, m.Unload("p.opt"), ErrPluginNotLoaded)
}

func TestReloadCarriesAttributes(t *testing.T) {
	var calls []string
	c := NewCatalog()

	var instances []*testPlugin
	def := Definition{
		Manifest: Manifest{
			ID:                       "p.stateful",
			Version:                  1,
			AttributesToSaveOnReload: []string{"aliases"},
		},
		Factory: func(*Runtime) Plugin {
			p := &testPlugin{id: "p.stateful", calls: &calls}
			instances = append(instances, p)
			return p
		},
	}
	require.NoError(t, c.Add(def))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll("p.stateful"))
	require.Len(t, instances, 1)
	instances[0].SetAttribute("aliases", map[string]string{"gb": "get bread"})

	require.NoError(t, m.Reload("p.stateful"))
	require.Len(t, instances, 2)
	assert.NotSame(t, instances[0], instances[1])

	v, ok := instances[1].Attribute("aliases")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"gb": "get bread"}, v)
	assert.True(t, m.IsLoaded("p.stateful"))
}

func TestReloadWidensToDependents(t *testing.T) {
	var calls []string
	c := NewCatalog()
	base := testDef("p.base", &calls)
	base.ReloadDependents = true
	require.NoError(t, c.Add(base))
	require.NoError(t, c.Add(testDef("p.child", &calls, withDeps("p.base"))))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll("p.base", "p.child"))
	calls = nil

	require.NoError(t, m.Reload("p.base"))

	// Child goes down first, base comes back first, Initialize runs
	// after both are up again.
	assert.Equal(t, []string{
		"p.child:uninitialize",
		"p.base:uninitialize",
		"p.base:init",
		"p.child:init",
		"p.base:initialize",
		"p.child:initialize",
	}, calls)
}

func TestReloadRefusesRequired(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.core", &calls, withRequired())))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll())
	assert.ErrorIs(t, m.Reload("p.core"), ErrPluginRequired)
}

func TestSaveRunsHookAndRaisesEvent(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.one", &calls, withRequired())))

	rt := newTestRuntime()
	m := NewManager(slog.Default(), rt, c)
	require.NoError(t, m.LoadAll())

	var saved []string
	rt.Bus.RegisterCallback(EventPluginSave, "test", "watch", 50, func(rec *bus.Record) error {
		saved = append(saved, rec.String("plugin_id"))
		return nil
	})

	require.NoError(t, m.Save("p.one"))
	assert.Contains(t, calls, "p.one:save")
	assert.Equal(t, []string{"p.one"}, saved)
}

func TestShutdownUnloadsInReverseLoadOrder(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.base", &calls, withRequired())))
	require.NoError(t, c.Add(testDef("p.app", &calls, withDeps("p.base"), withRequired())))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll())
	calls = nil

	m.Shutdown()

	assert.Equal(t, []string{
		"p.base:save",
		"p.app:save",
		"p.app:uninitialize",
		"p.base:uninitialize",
	}, calls)
	assert.Empty(t, m.LoadOrder())
}

func TestListKeepsCatalogOrder(t *testing.T) {
	var calls []string
	c := NewCatalog()
	require.NoError(t, c.Add(testDef("p.z", &calls, withRequired())))
	require.NoError(t, c.Add(testDef("p.a", &calls)))

	m := NewManager(slog.Default(), newTestRuntime(), c)
	require.NoError(t, m.LoadAll())

	infos := m.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "p.z", infos[0].Manifest.ID)
	assert.Equal(t, StateLoaded, infos[0].State)
	assert.Equal(t, "p.a", infos[1].Manifest.ID)
	assert.Equal(t, StateRegistered, infos[1].State)
}
