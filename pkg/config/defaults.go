package config

// Compiled-in defaults applied when bastion.yaml omits a value.
const (
	DefaultListenHost = "0.0.0.0"
	DefaultListenPort = 9999

	DefaultAPIHost = "127.0.0.1"
	DefaultAPIPort = 8888

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultDataDir      = "data"
	DefaultDatabaseFile = "bastion.db"

	DefaultPassword         = "defaultpass"
	DefaultViewPassword     = "defaultviewpass"
	DefaultCommandPrefix    = "#bp"
	DefaultCommandSeparator = "|"
	DefaultPreamble         = "#BP"

	// DefaultDispatchQueueSize bounds the dispatcher task queue.
	DefaultDispatchQueueSize = 1024
)

// DefaultDispatchConfig returns dispatch defaults, merged under any user
// YAML values.
func DefaultDispatchConfig() *DispatchConfig {
	return &DispatchConfig{
		QueueSize: DefaultDispatchQueueSize,
	}
}
