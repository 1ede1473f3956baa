// Package plugin holds the extension contract and the lifecycle manager.
// Plugins are compiled into the binary and described by a catalog of
// definitions; the manager instantiates, initializes, reloads and unloads
// them on the dispatcher goroutine. Engine-to-engine access goes through
// the small service interfaces on Runtime instead of direct imports.
package plugin

import (
	"fmt"
	"time"
)

// Plugin is the contract every extension implements. Init runs during
// the load batch and registers what the plugin owns (capabilities, event
// definitions, callbacks, commands, triggers, timers, settings) through
// the Registrar. Initialize runs after every plugin in the batch has
// registered, so wiring that depends on another plugin's surface belongs
// there. The remaining hooks bracket save, reset and unload.
type Plugin interface {
	Init(reg *Registrar) error
	Initialize() error
	Save() error
	Reset() error
	Uninitialize() error
}

// Base provides no-op lifecycle hooks so a plugin implements only the
// ones it needs. Init stays mandatory.
type Base struct{}

func (Base) Initialize() error   { return nil }
func (Base) Save() error         { return nil }
func (Base) Reset() error        { return nil }
func (Base) Uninitialize() error { return nil }

// AttributeSnapshotter lets a plugin carry named attributes across a
// reload. The manager snapshots the manifest-listed attributes before
// unloading and restores them on the fresh instance after Init, before
// Initialize.
type AttributeSnapshotter interface {
	Attribute(name string) (any, bool)
	SetAttribute(name string, value any) bool
}

// Factory builds a plugin instance bound to the shared runtime.
type Factory func(*Runtime) Plugin

// Manifest is the static metadata of a catalog entry.
type Manifest struct {
	ID      string
	Name    string
	Purpose string
	Author  string
	Version int
	// Required plugins load at startup and refuse unload and reload.
	Required bool
	// Dependencies lists plugin ids that must be loaded first. They are
	// pulled into the load batch automatically.
	Dependencies []string
	// ReloadDependents widens a reload to every loaded plugin that
	// depends on this one, transitively.
	ReloadDependents bool
	// AttributesToSaveOnReload names the attributes carried across a
	// reload via AttributeSnapshotter.
	AttributesToSaveOnReload []string
}

// Definition is one catalog entry: a manifest plus the factory that
// builds the instance.
type Definition struct {
	Manifest
	Factory Factory
}

// State tracks where a plugin is in its lifecycle.
type State string

const (
	StateRegistered   State = "registered"
	StateInstantiated State = "instantiated"
	StateLoaded       State = "loaded"
	StateFailed       State = "failed"
)

// Info is the manager's view of one plugin: metadata, lifecycle state,
// the live instance when loaded, and the last lifecycle error.
type Info struct {
	Manifest Manifest
	State    State
	Instance Plugin
	Err      error
	LoadedAt time.Time
}

// Loaded reports whether the plugin has a live instance.
func (i *Info) Loaded() bool {
	return i.State == StateLoaded && i.Instance != nil
}

// Catalog is the ordered set of plugin definitions compiled into the
// binary.
type Catalog struct {
	defs  map[string]Definition
	order []string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]Definition)}
}

// Add registers a definition. The id must be unique and the factory
// non-nil.
func (c *Catalog) Add(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("catalog add: empty plugin id")
	}
	if def.Factory == nil {
		return fmt.Errorf("catalog add %q: nil factory", def.ID)
	}
	if _, ok := c.defs[def.ID]; ok {
		return fmt.Errorf("catalog add %q: %w", def.ID, ErrPluginExists)
	}
	c.defs[def.ID] = def
	c.order = append(c.order, def.ID)
	return nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id string) (Definition, bool) {
	def, ok := c.defs[id]
	return def, ok
}

// IDs returns every catalog id in registration order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Required returns the ids of all required plugins in registration
// order.
func (c *Catalog) Required() []string {
	var out []string
	for _, id := range c.order {
		if c.defs[id].Required {
			out = append(out, id)
		}
	}
	return out
}
