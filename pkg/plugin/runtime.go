package plugin

import (
	"log/slog"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/config"
	"github.com/bastionmud/bastion/pkg/dispatch"
	"github.com/bastionmud/bastion/pkg/pipeline"
)

// Runtime is the shared capability surface handed to every plugin
// factory. The core infrastructure is wired once at startup; the engine
// service slots are filled by the core plugins as they load.
type Runtime struct {
	Log        *slog.Logger
	Bus        *bus.Bus
	Caps       *capability.Registry
	Dispatcher *dispatch.Dispatcher
	Config     *config.Config
	State      StateStore
	Pipeline   *pipeline.Pipeline

	// RequestShutdown asks the process to shut down cleanly. Wired by
	// main; nil in tests that do not care.
	RequestShutdown func()

	settings SettingsService
	commands CommandService
	triggers TriggerService
	timers   TimerService
	manager  *Manager
}

// SetSettingsService installs the settings engine's surface.
func (r *Runtime) SetSettingsService(s SettingsService) { r.settings = s }

// Settings returns the settings engine's surface, nil before the engine
// loads.
func (r *Runtime) Settings() SettingsService { return r.settings }

// SetCommandService installs the command engine's surface.
func (r *Runtime) SetCommandService(s CommandService) { r.commands = s }

// Commands returns the command engine's surface, nil before the engine
// loads.
func (r *Runtime) Commands() CommandService { return r.commands }

// SetTriggerService installs the trigger engine's surface.
func (r *Runtime) SetTriggerService(s TriggerService) { r.triggers = s }

// Triggers returns the trigger engine's surface, nil before the engine
// loads.
func (r *Runtime) Triggers() TriggerService { return r.triggers }

// SetTimerService installs the timer engine's surface.
func (r *Runtime) SetTimerService(s TimerService) { r.timers = s }

// Timers returns the timer engine's surface, nil before the engine
// loads.
func (r *Runtime) Timers() TimerService { return r.timers }

// Manager returns the lifecycle manager, set by NewManager.
func (r *Runtime) Manager() *Manager { return r.manager }
