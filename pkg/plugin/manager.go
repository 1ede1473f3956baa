package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Lifecycle events raised by the manager.
const (
	EventPluginLoaded   = "ev_plugin_loaded"
	EventPluginUnloaded = "ev_plugin_unloaded"
	EventPluginSave     = "ev_plugin_save"
	EventPluginReset    = "ev_plugin_reset"
)

const managerActor = "core.manager"

// Manager drives the plugin lifecycle over a fixed catalog: load with
// dependency ordering, unload with full registration release, hot reload
// with attribute carry-over, save and reset fan-out. It holds no locks;
// every method runs on the dispatcher goroutine.
type Manager struct {
	log       *slog.Logger
	rt        *Runtime
	catalog   *Catalog
	infos     map[string]*Info
	loadOrder []string
}

// NewManager creates a manager over the catalog, seeds an Info per
// entry, installs itself on the runtime and defines the lifecycle
// events.
func NewManager(log *slog.Logger, rt *Runtime, catalog *Catalog) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		log:     log.With("component", "plugin.manager"),
		rt:      rt,
		catalog: catalog,
		infos:   make(map[string]*Info),
	}
	for _, id := range catalog.IDs() {
		def, _ := catalog.Get(id)
		m.infos[id] = &Info{Manifest: def.Manifest, State: StateRegistered}
	}
	rt.manager = m
	m.defineEvents()
	return m
}

func (m *Manager) defineEvents() {
	idArg := map[string]string{"plugin_id": "the plugin the event is about"}
	events := []struct {
		name string
		desc []string
	}{
		{EventPluginLoaded, []string{"Raised after a plugin finished its Init phase."}},
		{EventPluginUnloaded, []string{"Raised after a plugin's registrations were released."}},
		{EventPluginSave, []string{"Raised when a plugin is asked to persist its state.", "The settings engine flushes the plugin's settings on it."}},
		{EventPluginReset, []string{"Raised when a plugin is asked to return to defaults."}},
	}
	for _, ev := range events {
		if err := m.rt.Bus.AddEvent(ev.name, managerActor, ev.desc, idArg); err != nil {
			m.log.Warn("lifecycle event already defined", "event", ev.name, "error", err)
		}
	}
}

// LoadAll loads every required plugin plus the extra ids, with their
// transitive dependencies, in topological order. It returns an error for
// a dependency cycle, an unknown requested id, or a required plugin that
// failed; optional-plugin failures are recorded on their Info and
// logged.
func (m *Manager) LoadAll(extra ...string) error {
	want := m.catalog.Required()
	want = append(want, extra...)
	return m.loadBatch(want, nil)
}

// Load loads one catalog plugin and its dependencies at runtime.
func (m *Manager) Load(id string) error {
	if _, ok := m.catalog.Get(id); !ok {
		return fmt.Errorf("load %q: %w", id, ErrPluginNotFound)
	}
	if m.IsLoaded(id) {
		return fmt.Errorf("load %q: %w", id, ErrPluginAlreadyLoaded)
	}
	if err := m.loadBatch([]string{id}, nil); err != nil {
		return err
	}
	if info := m.infos[id]; info.State == StateFailed {
		return info.Err
	}
	return nil
}

// Unload removes a loaded plugin: Uninitialize hook, release of every
// owned registration, lifecycle event. Required plugins refuse.
func (m *Manager) Unload(id string) error {
	info, ok := m.infos[id]
	if !ok {
		return fmt.Errorf("unload %q: %w", id, ErrPluginNotFound)
	}
	if info.Manifest.Required {
		return fmt.Errorf("unload %q: %w", id, ErrPluginRequired)
	}
	if !info.Loaded() {
		return fmt.Errorf("unload %q: %w", id, ErrPluginNotLoaded)
	}
	m.unload(id)
	return nil
}

// Reload tears a plugin down and rebuilds it from its factory. Manifest
// attributes listed in AttributesToSaveOnReload survive via
// AttributeSnapshotter. With ReloadDependents the reload widens to every
// loaded plugin that transitively depends on this one.
func (m *Manager) Reload(id string) error {
	info, ok := m.infos[id]
	if !ok {
		return fmt.Errorf("reload %q: %w", id, ErrPluginNotFound)
	}
	if info.Manifest.Required {
		return fmt.Errorf("reload %q: %w", id, ErrPluginRequired)
	}
	if !info.Loaded() {
		return fmt.Errorf("reload %q: %w", id, ErrPluginNotLoaded)
	}

	set := []string{id}
	if info.Manifest.ReloadDependents {
		set = append(set, m.loadedDependents(id)...)
	}

	snapshots := make(map[string]map[string]any, len(set))
	for _, pid := range set {
		if snap := m.snapshotAttributes(pid); len(snap) > 0 {
			snapshots[pid] = snap
		}
	}

	// Dependents come down first: walk the load order backwards.
	for _, pid := range reversed(m.loadOrder) {
		if slices.Contains(set, pid) {
			m.unload(pid)
		}
	}

	return m.loadBatch(set, snapshots)
}

// Save runs the plugin's Save hook and raises the save event. The event
// fires even when the hook fails, so the settings engine still flushes.
func (m *Manager) Save(id string) error {
	info, ok := m.infos[id]
	if !ok {
		return fmt.Errorf("save %q: %w", id, ErrPluginNotFound)
	}
	if !info.Loaded() {
		return fmt.Errorf("save %q: %w", id, ErrPluginNotLoaded)
	}
	err := m.runHook(id, "save", info.Instance.Save)
	if err != nil {
		m.log.Error("plugin save hook failed", "plugin", id, "error", err)
	}
	m.raise(EventPluginSave, id)
	return err
}

// SaveAll saves every loaded plugin in load order.
func (m *Manager) SaveAll() {
	for _, id := range slices.Clone(m.loadOrder) {
		_ = m.Save(id)
	}
}

// Reset runs the plugin's Reset hook and raises the reset event, on
// which the settings engine restores the plugin's defaults.
func (m *Manager) Reset(id string) error {
	info, ok := m.infos[id]
	if !ok {
		return fmt.Errorf("reset %q: %w", id, ErrPluginNotFound)
	}
	if !info.Loaded() {
		return fmt.Errorf("reset %q: %w", id, ErrPluginNotLoaded)
	}
	err := m.runHook(id, "reset", info.Instance.Reset)
	if err != nil {
		m.log.Error("plugin reset hook failed", "plugin", id, "error", err)
	}
	m.raise(EventPluginReset, id)
	return err
}

// Shutdown saves every loaded plugin and unloads them all in reverse
// load order. This is the only path that unloads required plugins.
func (m *Manager) Shutdown() {
	m.SaveAll()
	for _, id := range reversed(m.loadOrder) {
		m.unload(id)
	}
}

// IsLoaded reports whether the plugin has a live instance.
func (m *Manager) IsLoaded(id string) bool {
	info, ok := m.infos[id]
	return ok && info.Loaded()
}

// Get returns a copy of the plugin's Info.
func (m *Manager) Get(id string) (Info, bool) {
	info, ok := m.infos[id]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// List returns a snapshot of every known plugin in catalog order.
func (m *Manager) List() []Info {
	out := make([]Info, 0, len(m.infos))
	for _, id := range m.catalog.IDs() {
		if info, ok := m.infos[id]; ok {
			out = append(out, *info)
		}
	}
	return out
}

// LoadOrder returns the currently loaded ids in load completion order.
func (m *Manager) LoadOrder() []string {
	return slices.Clone(m.loadOrder)
}

// loadBatch expands, orders and loads a set of plugins, then runs the
// Initialize phase over everything the batch brought up. The restore map
// carries reload attribute snapshots, applied between Init and
// Initialize.
func (m *Manager) loadBatch(ids []string, restore map[string]map[string]any) error {
	batch, err := m.expand(ids)
	if err != nil {
		return err
	}
	order, err := m.sortBatch(batch)
	if err != nil {
		return err
	}

	var loadedNow []string
	var requiredErrs []error
	for _, id := range order {
		if m.IsLoaded(id) {
			continue
		}
		err := m.depsReady(id)
		if err == nil {
			err = m.load(id, restore[id])
		} else {
			info := m.ensureInfo(id)
			info.State = StateFailed
			info.Err = err
			m.log.Error("plugin load skipped", "plugin", id, "error", err)
		}
		if err != nil {
			if def, ok := m.catalog.Get(id); ok && def.Required {
				requiredErrs = append(requiredErrs, err)
			}
			continue
		}
		loadedNow = append(loadedNow, id)
	}

	for _, id := range loadedNow {
		info := m.infos[id]
		if err := m.runHook(id, "initialize", info.Instance.Initialize); err != nil {
			info.Err = err
			m.log.Error("plugin initialize failed", "plugin", id, "error", err)
		}
	}

	return errors.Join(requiredErrs...)
}

// load brings one plugin up: factory, Init with a fresh registrar,
// optional attribute restore, loaded event. A failure releases whatever
// the plugin managed to register.
func (m *Manager) load(id string, snapshot map[string]any) error {
	def, ok := m.catalog.Get(id)
	if !ok {
		return fmt.Errorf("load %q: %w", id, ErrPluginNotFound)
	}
	info := m.ensureInfo(id)

	inst, err := m.construct(def)
	if err != nil {
		info.State = StateFailed
		info.Err = err
		m.log.Error("plugin factory failed", "plugin", id, "error", err)
		return err
	}
	info.Instance = inst
	info.State = StateInstantiated

	if err := m.runHook(id, "init", func() error { return inst.Init(newRegistrar(m.rt, id)) }); err != nil {
		m.releaseOwned(id)
		info.Instance = nil
		info.State = StateFailed
		info.Err = err
		m.log.Error("plugin init failed", "plugin", id, "error", err)
		return err
	}

	if len(snapshot) > 0 {
		m.restoreAttributes(id, inst, snapshot)
	}

	info.State = StateLoaded
	info.Err = nil
	info.LoadedAt = time.Now().UTC()
	m.loadOrder = append(m.loadOrder, id)
	m.log.Info("plugin loaded", "plugin", id, "version", def.Version)
	m.raise(EventPluginLoaded, id)
	return nil
}

// unload assumes the plugin is loaded and validation already happened.
func (m *Manager) unload(id string) {
	info := m.infos[id]
	if err := m.runHook(id, "uninitialize", info.Instance.Uninitialize); err != nil {
		m.log.Error("plugin uninitialize failed", "plugin", id, "error", err)
	}
	m.releaseOwned(id)
	info.Instance = nil
	info.State = StateRegistered
	info.Err = nil
	info.LoadedAt = time.Time{}
	m.loadOrder = slices.DeleteFunc(m.loadOrder, func(s string) bool { return s == id })
	m.log.Info("plugin unloaded", "plugin", id)
	m.raise(EventPluginUnloaded, id)
}

// releaseOwned sweeps every registration tagged with the plugin id off
// the engines, the bus and the capability registry. Settings flush
// before they go.
func (m *Manager) releaseOwned(id string) {
	if svc := m.rt.Timers(); svc != nil {
		svc.RemoveOwner(id)
	}
	if svc := m.rt.Triggers(); svc != nil {
		svc.RemoveOwner(id)
	}
	if svc := m.rt.Commands(); svc != nil {
		svc.RemoveOwner(id)
	}
	if svc := m.rt.Settings(); svc != nil {
		if err := svc.Flush(id); err != nil {
			m.log.Error("settings flush failed at release", "plugin", id, "error", err)
		}
		svc.RemoveOwner(id)
	}
	m.rt.Bus.RemoveOwner(id)
	m.rt.Caps.Remove(id)
}

func (m *Manager) construct(def Definition) (inst Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewLifecycleError(def.ID, "factory", fmt.Errorf("panic: %v", r))
		}
	}()
	inst = def.Factory(m.rt)
	if inst == nil {
		return nil, NewLifecycleError(def.ID, "factory", errors.New("factory returned nil"))
	}
	return inst, nil
}

// runHook shields the manager from a misbehaving lifecycle hook.
func (m *Manager) runHook(id, phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewLifecycleError(id, phase, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		return NewLifecycleError(id, phase, err)
	}
	return nil
}

func (m *Manager) snapshotAttributes(id string) map[string]any {
	info := m.infos[id]
	names := info.Manifest.AttributesToSaveOnReload
	snap, ok := info.Instance.(AttributeSnapshotter)
	if !ok || len(names) == 0 {
		return nil
	}
	out := make(map[string]any, len(names))
	for _, n := range names {
		if v, ok := snap.Attribute(n); ok {
			out[n] = v
		}
	}
	return out
}

func (m *Manager) restoreAttributes(id string, inst Plugin, snapshot map[string]any) {
	snap, ok := inst.(AttributeSnapshotter)
	if !ok {
		return
	}
	for name, v := range snapshot {
		if !snap.SetAttribute(name, v) {
			m.log.Warn("attribute restore rejected", "plugin", id, "attribute", name)
		}
	}
}

// loadedDependents returns every loaded plugin that transitively depends
// on id.
func (m *Manager) loadedDependents(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	frontier := []string{id}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, cand := range m.loadOrder {
			if seen[cand] {
				continue
			}
			def, ok := m.catalog.Get(cand)
			if ok && slices.Contains(def.Dependencies, next) {
				seen[cand] = true
				out = append(out, cand)
				frontier = append(frontier, cand)
			}
		}
	}
	return out
}

// expand returns the requested ids plus their transitive catalog
// dependencies. Unknown requested ids error; an unknown dependency is
// left out and fails its dependent at load time.
func (m *Manager) expand(ids []string) ([]string, error) {
	var unknown []string
	seen := make(map[string]bool)
	var out []string
	var visit func(id string, requested bool)
	visit = func(id string, requested bool) {
		if seen[id] {
			return
		}
		def, ok := m.catalog.Get(id)
		if !ok {
			if requested {
				unknown = append(unknown, id)
			}
			return
		}
		seen[id] = true
		out = append(out, id)
		for _, dep := range def.Dependencies {
			visit(dep, false)
		}
	}
	for _, id := range ids {
		visit(id, true)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown plugins %v: %w", unknown, ErrPluginNotFound)
	}
	return out, nil
}

// sortBatch orders the batch topologically over the dependencies inside
// it, ties broken by catalog registration order. A cycle aborts the
// whole batch.
func (m *Manager) sortBatch(batch []string) ([]string, error) {
	inBatch := make(map[string]bool, len(batch))
	for _, id := range batch {
		inBatch[id] = true
	}

	indegree := make(map[string]int, len(batch))
	dependents := make(map[string][]string)
	for _, id := range batch {
		def, _ := m.catalog.Get(id)
		for _, dep := range def.Dependencies {
			if inBatch[dep] {
				indegree[id]++
				dependents[dep] = append(dependents[dep], id)
			}
		}
	}

	pos := make(map[string]int, len(m.catalog.order))
	for i, id := range m.catalog.IDs() {
		pos[id] = i
	}
	byCatalog := func(a, b string) int { return pos[a] - pos[b] }

	var ready []string
	for _, id := range batch {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	slices.SortFunc(ready, byCatalog)

	order := make([]string, 0, len(batch))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		slices.SortFunc(ready, byCatalog)
	}

	if len(order) != len(batch) {
		var stuck []string
		for _, id := range batch {
			if !slices.Contains(order, id) {
				stuck = append(stuck, id)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("plugins %v: %w", stuck, ErrDependencyCycle)
	}
	return order, nil
}

func (m *Manager) depsReady(id string) error {
	def, _ := m.catalog.Get(id)
	for _, dep := range def.Dependencies {
		if !m.IsLoaded(dep) {
			return fmt.Errorf("plugin %q needs %q: %w", id, dep, ErrDependencyMissing)
		}
	}
	return nil
}

func (m *Manager) ensureInfo(id string) *Info {
	if info, ok := m.infos[id]; ok {
		return info
	}
	def, _ := m.catalog.Get(id)
	info := &Info{Manifest: def.Manifest, State: StateRegistered}
	m.infos[id] = info
	return info
}

func (m *Manager) raise(event, id string) {
	if _, err := m.rt.Bus.Raise(event, map[string]any{"plugin_id": id}, managerActor); err != nil {
		m.log.Error("lifecycle event raise failed", "event", event, "plugin", id, "error", err)
	}
}

func reversed(ids []string) []string {
	out := slices.Clone(ids)
	slices.Reverse(out)
	return out
}
