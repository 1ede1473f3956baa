package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrPluginNotFound indicates the id has no catalog entry.
	ErrPluginNotFound = errors.New("plugin not found in catalog")

	// ErrPluginExists indicates a duplicate catalog registration.
	ErrPluginExists = errors.New("plugin already registered")

	// ErrPluginRequired indicates an unload or reload attempt on a
	// required plugin.
	ErrPluginRequired = errors.New("plugin is required")

	// ErrPluginNotLoaded indicates the plugin has no live instance.
	ErrPluginNotLoaded = errors.New("plugin not loaded")

	// ErrPluginAlreadyLoaded indicates a load attempt on a loaded plugin.
	ErrPluginAlreadyLoaded = errors.New("plugin already loaded")

	// ErrDependencyCycle indicates the declared dependencies of a load
	// batch form a cycle. The whole batch is aborted.
	ErrDependencyCycle = errors.New("plugin dependency cycle")

	// ErrDependencyMissing indicates a declared dependency has no catalog
	// entry or failed to load. Only the dependent plugin is skipped.
	ErrDependencyMissing = errors.New("plugin dependency missing")

	// ErrServiceUnavailable indicates a registration was attempted before
	// the engine providing that service was loaded.
	ErrServiceUnavailable = errors.New("engine service not available")
)

// LifecycleError wraps a failure from one phase of one plugin's
// lifecycle.
type LifecycleError struct {
	PluginID string
	Phase    string
	Err      error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("plugin %q: %s failed: %v", e.PluginID, e.Phase, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// NewLifecycleError creates a LifecycleError for the given plugin and
// phase.
func NewLifecycleError(pluginID, phase string, err error) *LifecycleError {
	return &LifecycleError{PluginID: pluginID, Phase: phase, Err: err}
}
