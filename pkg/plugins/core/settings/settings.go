// Package settings implements the settings engine: typed per-plugin
// settings declared by spec, persisted through a Store, with change
// events for visible names. Installed on the runtime as the
// SettingsService.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugin"
)

// ID is the engine's plugin id.
const ID = "plugins.core.settings"

// DefaultSentinel restores a setting to its declared default when passed
// as the value of a Set.
const DefaultSentinel = "default"

// ModifiedEventName returns the event raised when a visible setting
// changes.
func ModifiedEventName(pluginID, name string) string {
	return fmt.Sprintf("ev_%s_var_%s_modified", pluginID, name)
}

// Item is one setting as listings and the admin API see it.
type Item struct {
	PluginID string
	Name     string
	Type     string
	Value    any
	Default  any
	Help     string
	ReadOnly bool
	Hidden   bool
}

type entry struct {
	spec  plugin.SettingSpec
	value any
}

// Engine is the settings engine. All access runs on the dispatcher
// goroutine.
type Engine struct {
	plugin.Base
	rt      *plugin.Runtime
	log     *slog.Logger
	store   Store
	types   map[string]TypeDef
	specs   map[string]map[string]*entry
	order   map[string][]string
	visible map[string]string
}

// New creates the engine. A nil store falls back to memory.
func New(rt *plugin.Runtime, store Store) *Engine {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Engine{
		rt:      rt,
		log:     rt.Log.With("plugin", ID),
		store:   store,
		types:   builtinTypes(),
		specs:   make(map[string]map[string]*entry),
		order:   make(map[string][]string),
		visible: make(map[string]string),
	}
}

// Definition returns the catalog entry for the settings engine. The
// store is bound here so the catalog stays wiring-free.
func Definition(store Store) plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:       ID,
			Name:     "Settings",
			Purpose:  "typed persisted plugin settings",
			Author:   "bastion",
			Version:  1,
			Required: true,
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt, store) },
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	e.rt.SetSettingsService(e)

	reg.Callback(plugin.EventPluginSave, "flush", 50, e.onPluginSave)
	reg.Callback(plugin.EventPluginReset, "reset", 50, e.onPluginReset)

	if err := reg.Capability("{plugin-id}:get", e.capGet, "read a plugin setting: (plugin, name)"); err != nil {
		return err
	}
	if err := reg.Capability("{plugin-id}:set", e.capSet, "change a plugin setting: (plugin, name, value)"); err != nil {
		return err
	}
	return nil
}

// Initialize registers the engine's commands. The command engine's Init
// has run by now.
func (e *Engine) Initialize() error {
	svc := e.rt.Commands()
	if svc == nil {
		e.log.Debug("command engine absent, settings commands skipped")
		return nil
	}
	cmds := []plugin.CommandSpec{
		{
			PluginID:  ID,
			Name:      "list",
			ShortHelp: "list settings of a plugin",
			Help:      "list settings of a plugin, or the plugins that have settings",
			Args: []plugin.CommandArg{
				{Name: "plugin", Type: "str", Default: "", Help: "plugin id, empty for the plugin list"},
			},
			Handler: e.cmdList,
		},
		{
			PluginID:  ID,
			Name:      "set",
			ShortHelp: "change a setting",
			Help:      "change a setting; the value 'default' restores the declared default",
			Args: []plugin.CommandArg{
				{Name: "plugin", Type: "str", Help: "plugin id"},
				{Name: "name", Type: "str", Help: "setting name"},
				{Name: "value", Type: "str", Rest: true, Help: "new value"},
			},
			Handler: e.cmdSet,
		},
		{
			PluginID:  ID,
			Name:      "reset",
			ShortHelp: "restore a plugin's settings to defaults",
			Help:      "restore every setting of a plugin to its declared default",
			Args: []plugin.CommandArg{
				{Name: "plugin", Type: "str", Help: "plugin id"},
			},
			Handler: e.cmdReset,
		},
	}
	for _, spec := range cmds {
		if err := svc.Add(spec); err != nil {
			return fmt.Errorf("register settings command %q: %w", spec.Name, err)
		}
	}
	return nil
}

// Uninitialize flushes everything still declared.
func (e *Engine) Uninitialize() error {
	for pid := range e.specs {
		if err := e.Flush(pid); err != nil {
			e.log.Error("flush at engine shutdown failed", "target", pid, "error", err)
		}
	}
	return nil
}

// Add declares a setting, loading its persisted value when one exists.
// Visible names are unique across all plugins.
func (e *Engine) Add(spec plugin.SettingSpec) error {
	if spec.PluginID == "" || spec.Name == "" {
		return fmt.Errorf("declare setting: empty plugin id or name")
	}
	td, ok := e.types[spec.Type]
	if !ok {
		return fmt.Errorf("setting %s.%s type %q: %w", spec.PluginID, spec.Name, spec.Type, ErrTypeUnknown)
	}
	if _, dup := e.specs[spec.PluginID][spec.Name]; dup {
		return fmt.Errorf("setting %s.%s: %w", spec.PluginID, spec.Name, ErrSettingExists)
	}
	if !spec.Hidden {
		if owner, taken := e.visible[spec.Name]; taken {
			return fmt.Errorf("setting name %q already visible from %q: %w", spec.Name, owner, ErrSettingExists)
		}
	}

	def, err := td.Coerce(spec.Default)
	if err != nil {
		return fmt.Errorf("setting %s.%s default: %w", spec.PluginID, spec.Name, err)
	}
	spec.Default = def

	value := def
	raw, found, err := e.store.Get(context.Background(), spec.PluginID, spec.Name)
	if err != nil {
		e.log.Error("persisted setting read failed", "target", spec.PluginID, "name", spec.Name, "error", err)
	} else if found {
		if v, err := td.Decode(raw); err != nil {
			e.log.Warn("persisted setting unreadable, using default", "target", spec.PluginID, "name", spec.Name, "error", err)
		} else {
			value = v
		}
	}

	if e.specs[spec.PluginID] == nil {
		e.specs[spec.PluginID] = make(map[string]*entry)
	}
	e.specs[spec.PluginID][spec.Name] = &entry{spec: spec, value: value}
	e.order[spec.PluginID] = append(e.order[spec.PluginID], spec.Name)
	if !spec.Hidden {
		e.visible[spec.Name] = spec.PluginID
		if err := e.rt.Bus.AddEvent(ModifiedEventName(spec.PluginID, spec.Name), spec.PluginID,
			[]string{fmt.Sprintf("Raised when %s.%s changes.", spec.PluginID, spec.Name)},
			map[string]string{"var": "setting name", "oldvalue": "value before", "newvalue": "value after"},
		); err != nil {
			e.log.Warn("setting event already defined", "target", spec.PluginID, "name", spec.Name, "error", err)
		}
	}
	return nil
}

// Remove drops one declaration. The persisted value stays for a future
// re-declaration.
func (e *Engine) Remove(pluginID, name string) error {
	ent, err := e.lookup(pluginID, name)
	if err != nil {
		return err
	}
	delete(e.specs[pluginID], name)
	e.order[pluginID] = deleteString(e.order[pluginID], name)
	if !ent.spec.Hidden {
		delete(e.visible, name)
	}
	return nil
}

// RemoveOwner drops every declaration of a plugin and returns how many.
func (e *Engine) RemoveOwner(pluginID string) int {
	entries := e.specs[pluginID]
	for name, ent := range entries {
		if !ent.spec.Hidden {
			delete(e.visible, name)
		}
	}
	delete(e.specs, pluginID)
	delete(e.order, pluginID)
	return len(entries)
}

// Get returns the current value coerced to the declared type.
func (e *Engine) Get(pluginID, name string) (any, error) {
	ent, err := e.lookup(pluginID, name)
	if err != nil {
		return nil, err
	}
	return ent.value, nil
}

// Set validates and applies a new value, writes it through the store and
// raises the modified event for visible settings. Client actors cannot
// change read-only settings. An unchanged value is a silent no-op.
func (e *Engine) Set(pluginID, name string, value any, actor string) error {
	ent, err := e.lookup(pluginID, name)
	if err != nil {
		return err
	}
	if ent.spec.ReadOnly && plugin.IsClientActor(actor) {
		return fmt.Errorf("setting %s.%s: %w", pluginID, name, ErrReadOnly)
	}

	td := e.types[ent.spec.Type]
	var next any
	if s, ok := value.(string); ok && s == DefaultSentinel {
		next = ent.spec.Default
	} else {
		next, err = td.Coerce(value)
		if err != nil {
			return fmt.Errorf("setting %s.%s: %w", pluginID, name, err)
		}
	}

	if next == ent.value {
		return nil
	}
	old := ent.value
	ent.value = next

	if err := e.store.Put(context.Background(), pluginID, name, td.Encode(next)); err != nil {
		e.log.Error("setting write-through failed", "target", pluginID, "name", name, "error", err)
	}
	if !ent.spec.Hidden {
		if _, err := e.rt.Bus.Raise(ModifiedEventName(pluginID, name), map[string]any{
			"var":      name,
			"oldvalue": old,
			"newvalue": next,
		}, actor); err != nil {
			e.log.Error("modified event raise failed", "target", pluginID, "name", name, "error", err)
		}
	}
	return nil
}

// Reset restores every setting of a plugin to its default, raising the
// modified events for the ones that change.
func (e *Engine) Reset(pluginID string) error {
	for _, name := range e.order[pluginID] {
		ent := e.specs[pluginID][name]
		if ent.value == ent.spec.Default {
			continue
		}
		if err := e.Set(pluginID, name, ent.spec.Default, ID); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes every current value of a plugin to the store.
func (e *Engine) Flush(pluginID string) error {
	var firstErr error
	for _, name := range e.order[pluginID] {
		ent := e.specs[pluginID][name]
		td := e.types[ent.spec.Type]
		if err := e.store.Put(context.Background(), pluginID, name, td.Encode(ent.value)); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("flush %s.%s: %w", pluginID, name, err)
			}
			e.log.Error("setting flush failed", "target", pluginID, "name", name, "error", err)
		}
	}
	return firstErr
}

// Items returns a plugin's settings in declaration order, hidden ones
// included.
func (e *Engine) Items(pluginID string) []Item {
	names := e.order[pluginID]
	out := make([]Item, 0, len(names))
	for _, name := range names {
		ent := e.specs[pluginID][name]
		out = append(out, Item{
			PluginID: pluginID,
			Name:     name,
			Type:     ent.spec.Type,
			Value:    ent.value,
			Default:  ent.spec.Default,
			Help:     ent.spec.Help,
			ReadOnly: ent.spec.ReadOnly,
			Hidden:   ent.spec.Hidden,
		})
	}
	return out
}

// Plugins returns the ids that declared settings, sorted.
func (e *Engine) Plugins() []string {
	out := make([]string, 0, len(e.specs))
	for pid := range e.specs {
		out = append(out, pid)
	}
	sort.Strings(out)
	return out
}

// RegisterType installs an additional setting type.
func (e *Engine) RegisterType(name string, def TypeDef) error {
	if _, ok := e.types[name]; ok {
		return fmt.Errorf("setting type %q: %w", name, ErrSettingExists)
	}
	if def.Coerce == nil || def.Encode == nil || def.Decode == nil {
		return fmt.Errorf("setting type %q: incomplete definition", name)
	}
	e.types[name] = def
	return nil
}

func (e *Engine) lookup(pluginID, name string) (*entry, error) {
	ent, ok := e.specs[pluginID][name]
	if !ok {
		return nil, fmt.Errorf("setting %s.%s: %w", pluginID, name, ErrSettingNotFound)
	}
	return ent, nil
}

func (e *Engine) onPluginSave(rec *bus.Record) error {
	pid := rec.String("plugin_id")
	if pid == "" {
		return nil
	}
	return e.Flush(pid)
}

func (e *Engine) onPluginReset(rec *bus.Record) error {
	pid := rec.String("plugin_id")
	if pid == "" {
		return nil
	}
	return e.Reset(pid)
}

func (e *Engine) capGet(args ...any) (any, error) {
	pid, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	name, err := capability.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	return e.Get(pid, name)
}

func (e *Engine) capSet(args ...any) (any, error) {
	pid, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	name, err := capability.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	if len(args) < 3 {
		return nil, fmt.Errorf("argument 2 missing (%d given)", len(args))
	}
	return nil, e.Set(pid, name, args[2], ID)
}

func (e *Engine) cmdList(ctx plugin.CommandContext) (bool, []string, error) {
	target, _ := ctx.Args["plugin"].(string)
	if target == "" {
		out := []string{"plugins with settings:"}
		for _, pid := range e.Plugins() {
			out = append(out, "  "+pid)
		}
		return true, out, nil
	}
	items := e.Items(target)
	if len(items) == 0 {
		return false, []string{fmt.Sprintf("no settings for %q", target)}, nil
	}
	out := []string{fmt.Sprintf("settings for %s:", target)}
	for _, it := range items {
		if it.Hidden {
			continue
		}
		flag := ""
		if it.ReadOnly {
			flag = " [read only]"
		}
		out = append(out, fmt.Sprintf("  %-18s = %-14v (%s)%s %s", it.Name, it.Value, it.Type, flag, it.Help))
	}
	return true, out, nil
}

func (e *Engine) cmdSet(ctx plugin.CommandContext) (bool, []string, error) {
	pid, _ := ctx.Args["plugin"].(string)
	name, _ := ctx.Args["name"].(string)
	value, _ := ctx.Args["value"].(string)

	actor := ID
	if ctx.ClientID != "" {
		actor = plugin.ClientActor(ctx.ClientID)
	}
	if err := e.Set(pid, name, value, actor); err != nil {
		return false, []string{err.Error()}, nil
	}

	ent, err := e.lookup(pid, name)
	if err != nil {
		return false, []string{err.Error()}, nil
	}
	msg := fmt.Sprintf("%s.%s is now %v", pid, name, ent.value)
	if ent.spec.AfterSetMessage != "" {
		msg = strings.ReplaceAll(ent.spec.AfterSetMessage, "{value}", fmt.Sprint(ent.value))
	}
	return true, []string{msg}, nil
}

func (e *Engine) cmdReset(ctx plugin.CommandContext) (bool, []string, error) {
	pid, _ := ctx.Args["plugin"].(string)
	if len(e.specs[pid]) == 0 {
		return false, []string{fmt.Sprintf("no settings for %q", pid)}, nil
	}
	if err := e.Reset(pid); err != nil {
		return false, []string{err.Error()}, nil
	}
	return true, []string{fmt.Sprintf("settings of %s restored to defaults", pid)}, nil
}

func deleteString(xs []string, s string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
