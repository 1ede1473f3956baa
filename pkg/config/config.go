// Package config loads and validates the bastion.yaml bootstrap
// configuration. It covers process-level settings only; values plugins
// may change at runtime (mud address, preamble, separator...) are seeded
// from here into the settings store on first run and owned by it
// afterwards.
package config

import (
	"net"
	"path/filepath"
	"strconv"
)

// Config is the umbrella configuration object returned by Initialize()
// and handed to the proxy core at startup.
type Config struct {
	configDir string

	Mud      *MudConfig
	Listen   *ListenConfig
	API      *APIConfig
	Log      *LogConfig
	Data     *DataConfig
	Proxy    *ProxyConfig
	Plugins  *PluginsConfig
	Dispatch *DispatchConfig
}

// MudConfig seeds the mud address. Empty host means the proxy starts
// without an upstream and waits for a connect command.
type MudConfig struct {
	Host string
	Port int
}

// ListenConfig is the telnet client listener address.
type ListenConfig struct {
	Host string
	Port int
}

// APIConfig is the admin HTTP/websocket server.
type APIConfig struct {
	Enabled          bool
	Host             string
	Port             int
	AllowedWSOrigins []string
}

// LogConfig controls slog setup in cmd/bastion.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// DataConfig locates persistent state on disk.
type DataConfig struct {
	Dir      string
	Database string // file name under Dir; empty disables persistence
}

// ProxyConfig holds first-run seeds for the proxy plugin's settings.
// Passwords usually arrive through {{.VAR}} env expansion.
type ProxyConfig struct {
	Password         string
	ViewPassword     string
	CommandPrefix    string
	CommandSeparator string
	Preamble         string
}

// PluginsConfig selects optional plugins. Core engines load regardless.
type PluginsConfig struct {
	Enabled []string
}

// DispatchConfig tunes the dispatcher task queue.
type DispatchConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ListenAddr returns the client listener address as host:port.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

// APIAddr returns the admin API address as host:port.
func (c *Config) APIAddr() string {
	return net.JoinHostPort(c.API.Host, strconv.Itoa(c.API.Port))
}

// DatabasePath returns the SQLite file path, or empty when persistence
// is disabled.
func (c *Config) DatabasePath() string {
	if c.Data.Database == "" {
		return ""
	}
	return filepath.Join(c.Data.Dir, c.Data.Database)
}
