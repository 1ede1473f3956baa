package plugin

import (
	"fmt"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
)

// Registrar is the registration surface a plugin sees during Init. Every
// registration is tagged with the plugin's id, so the manager can release
// the whole surface in one sweep at unload.
type Registrar struct {
	rt       *Runtime
	pluginID string
}

func newRegistrar(rt *Runtime, pluginID string) *Registrar {
	return &Registrar{rt: rt, pluginID: pluginID}
}

// PluginID returns the owning plugin's id.
func (r *Registrar) PluginID() string { return r.pluginID }

// Capability registers a callable under the plugin's ownership.
func (r *Registrar) Capability(full string, fn capability.Func, desc string, opts ...capability.AddOption) error {
	return r.rt.Caps.Add(r.pluginID, full, fn, desc, opts...)
}

// Event defines an event owned by the plugin.
func (r *Registrar) Event(name string, description []string, argDescriptions map[string]string) error {
	return r.rt.Bus.AddEvent(name, r.pluginID, description, argDescriptions)
}

// Callback subscribes the plugin to an event. Returns false when the
// (plugin, name) pair is already registered on that event.
func (r *Registrar) Callback(event, name string, priority int, fn bus.CallbackFunc) bool {
	return r.rt.Bus.RegisterCallback(event, r.pluginID, name, priority, fn)
}

// Command registers a command, forcing the spec's PluginID to the owner.
func (r *Registrar) Command(spec CommandSpec) error {
	svc := r.rt.Commands()
	if svc == nil {
		return fmt.Errorf("register command %q for %q: %w", spec.Name, r.pluginID, ErrServiceUnavailable)
	}
	spec.PluginID = r.pluginID
	return svc.Add(spec)
}

// Trigger registers a trigger, forcing the spec's Owner to the owner.
func (r *Registrar) Trigger(spec TriggerSpec) error {
	svc := r.rt.Triggers()
	if svc == nil {
		return fmt.Errorf("register trigger %q for %q: %w", spec.Name, r.pluginID, ErrServiceUnavailable)
	}
	spec.Owner = r.pluginID
	return svc.Add(spec)
}

// Timer registers a timer, forcing the spec's Owner to the owner.
func (r *Registrar) Timer(spec TimerSpec) error {
	svc := r.rt.Timers()
	if svc == nil {
		return fmt.Errorf("register timer %q for %q: %w", spec.Name, r.pluginID, ErrServiceUnavailable)
	}
	spec.Owner = r.pluginID
	return svc.Add(spec)
}

// Setting declares a setting, forcing the spec's PluginID to the owner.
func (r *Registrar) Setting(spec SettingSpec) error {
	svc := r.rt.Settings()
	if svc == nil {
		return fmt.Errorf("register setting %q for %q: %w", spec.Name, r.pluginID, ErrServiceUnavailable)
	}
	spec.PluginID = r.pluginID
	return svc.Add(spec)
}
