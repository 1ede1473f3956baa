package plugin

// CommandContext carries one parsed command invocation to its handler.
type CommandContext struct {
	// ClientID identifies the originating client connection. Empty for
	// internally injected commands (timers, the rerun command).
	ClientID string
	// Args holds the parsed arguments keyed by spec name, coerced to the
	// declared types.
	Args map[string]any
	// Raw is the argument portion of the line before parsing.
	Raw string
}

// CommandHandler executes a command. The bool reports success; on
// failure the returned lines are shown together with the usage message.
type CommandHandler func(CommandContext) (bool, []string, error)

// CommandArg describes one argument in a command's grammar.
type CommandArg struct {
	Name    string
	Type    string // str, int, bool, color
	Default any
	Choices []string
	Help    string
	// Rest captures the remainder of the line, spaces included. Only
	// valid on the final argument.
	Rest bool
}

// CommandSpec registers one command with the command engine. The zero
// value of the flags gives the normal behavior: recorded in history,
// output formatted, preamble applied.
type CommandSpec struct {
	PluginID  string
	Name      string
	Help      string
	ShortHelp string
	Group     string
	Args      []CommandArg

	ExcludeFromHistory bool
	NoFormat           bool
	NoPreamble         bool

	Handler CommandHandler
}

// TriggerSpec registers one pattern watcher on client-bound output.
type TriggerSpec struct {
	Owner    string
	Name     string
	Pattern  string
	Priority int // 0 means 100
	Disabled bool
	Group    string
	// ArgTypes coerces named capture groups: int, float, bool, string.
	ArgTypes map[string]string
	// MatchColor matches against the color-coded text instead of the
	// stripped text.
	MatchColor bool
	// Omit clears the line's send flag on match.
	Omit bool
	// StopEvaluating stops lower-priority triggers for the matched line.
	StopEvaluating bool
	// Event names the event raised on match. Empty derives
	// ev_core.triggers_t_{owner}_{name}.
	Event string
}

// TimerSpec registers one recurring or one-shot timer.
type TimerSpec struct {
	Owner   string
	Name    string
	Seconds int
	Func    func() error
	OneShot bool
	// TimeOfDay anchors the timer to a daily HHMM UTC occurrence instead
	// of a free-running interval.
	TimeOfDay string
	Disabled  bool
	// Silent suppresses the per-fire debug log.
	Silent bool
}

// SettingSpec declares one persisted plugin setting.
type SettingSpec struct {
	PluginID string
	Name     string
	Type     string // str, int, bool, color, duration
	Default  any
	Help     string
	// ReadOnly rejects changes coming from clients; code may still write.
	ReadOnly bool
	// Hidden keeps the setting out of listings and exempts it from the
	// global name-uniqueness rule.
	Hidden bool
	// AfterSetMessage is shown to the setting's changer, with {value}
	// expanded.
	AfterSetMessage string
}

// SettingsService is the settings engine's surface as other plugins see
// it. The engine installs it on the Runtime during its Init.
type SettingsService interface {
	Add(spec SettingSpec) error
	Remove(pluginID, name string) error
	RemoveOwner(pluginID string) int
	Get(pluginID, name string) (any, error)
	Set(pluginID, name string, value any, actor string) error
	Reset(pluginID string) error
	Flush(pluginID string) error
}

// CommandService is the command engine's registration surface.
type CommandService interface {
	Add(spec CommandSpec) error
	Remove(pluginID, name string) error
	RemoveOwner(pluginID string) int
}

// TriggerService is the trigger engine's registration surface.
type TriggerService interface {
	Add(spec TriggerSpec) error
	Remove(owner, name string) error
	SetEnabled(owner, name string, enabled bool) error
	EnableGroup(group string, enabled bool) int
	RemoveOwner(owner string) int
}

// TimerService is the timer engine's registration surface.
type TimerService interface {
	Add(spec TimerSpec) error
	Remove(owner, name string) error
	Toggle(owner, name string, enabled bool) error
	RemoveOwner(owner string) int
}
