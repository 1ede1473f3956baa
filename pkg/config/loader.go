package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// BastionYAMLConfig represents the complete bastion.yaml file structure.
// Every section is optional; missing sections fall back to compiled-in
// defaults.
type BastionYAMLConfig struct {
	Mud      *MudYAMLConfig     `yaml:"mud"`
	Listen   *ListenYAMLConfig  `yaml:"listen"`
	API      *APIYAMLConfig     `yaml:"api"`
	Log      *LogYAMLConfig     `yaml:"log"`
	Data     *DataYAMLConfig    `yaml:"data"`
	Proxy    *ProxyYAMLConfig   `yaml:"proxy"`
	Plugins  *PluginsYAMLConfig `yaml:"plugins"`
	Dispatch *DispatchConfig    `yaml:"dispatch"`
}

// MudYAMLConfig holds the upstream mud address from YAML.
type MudYAMLConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// ListenYAMLConfig holds the client listener address from YAML.
type ListenYAMLConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// APIYAMLConfig holds admin API settings from YAML.
type APIYAMLConfig struct {
	Enabled          *bool    `yaml:"enabled,omitempty"`
	Host             string   `yaml:"host,omitempty"`
	Port             int      `yaml:"port,omitempty"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins,omitempty"`
}

// LogYAMLConfig holds logging settings from YAML.
type LogYAMLConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// DataYAMLConfig holds data directory settings from YAML.
type DataYAMLConfig struct {
	Dir      string  `yaml:"dir,omitempty"`
	Database *string `yaml:"database,omitempty"` // explicit "" disables persistence
}

// ProxyYAMLConfig holds first-run seeds for proxy plugin settings.
type ProxyYAMLConfig struct {
	Password         string `yaml:"password,omitempty"`
	ViewPassword     string `yaml:"view_password,omitempty"`
	CommandPrefix    string `yaml:"command_prefix,omitempty"`
	CommandSeparator string `yaml:"command_separator,omitempty"`
	Preamble         string `yaml:"preamble,omitempty"`
}

// PluginsYAMLConfig selects optional plugins from YAML.
type PluginsYAMLConfig struct {
	Enabled []string `yaml:"enabled,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load bastion.yaml from configDir (absent file means pure defaults)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Resolve defaults for every omitted section
//  5. Validate the resolved configuration
//  6. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"listen", cfg.ListenAddr(),
		"mud_host", cfg.Mud.Host,
		"api_enabled", cfg.API.Enabled,
		"database", cfg.DatabasePath(),
		"extra_plugins", len(cfg.Plugins.Enabled))

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	yamlCfg, err := loader.loadBastionYAML()
	if err != nil {
		return nil, NewLoadError("bastion.yaml", err)
	}

	// Resolve dispatch config (merge user YAML over built-in defaults so
	// unset fields keep their defaults)
	dispatchCfg := DefaultDispatchConfig()
	if yamlCfg.Dispatch != nil {
		if err := mergo.Merge(dispatchCfg, yamlCfg.Dispatch, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge dispatch config: %w", err)
		}
	}

	return &Config{
		configDir: configDir,
		Mud:       resolveMudConfig(yamlCfg.Mud),
		Listen:    resolveListenConfig(yamlCfg.Listen),
		API:       resolveAPIConfig(yamlCfg.API),
		Log:       resolveLogConfig(yamlCfg.Log),
		Data:      resolveDataConfig(yamlCfg.Data),
		Proxy:     resolveProxyConfig(yamlCfg.Proxy),
		Plugins:   resolvePluginsConfig(yamlCfg.Plugins),
		Dispatch:  dispatchCfg,
	}, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes the original data through on parse/execution
	// errors so the YAML parser produces the error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadBastionYAML() (*BastionYAMLConfig, error) {
	var config BastionYAMLConfig

	if err := l.loadYAML("bastion.yaml", &config); err != nil {
		// the proxy runs fine on pure defaults, a missing file is not fatal
		if errors.Is(err, ErrConfigNotFound) {
			slog.Warn("No bastion.yaml found, using built-in defaults",
				"config_dir", l.configDir)
			return &config, nil
		}
		return nil, err
	}

	return &config, nil
}

// resolveMudConfig resolves the mud address from YAML. An empty host and
// zero port are valid and mean "not configured yet".
func resolveMudConfig(y *MudYAMLConfig) *MudConfig {
	cfg := &MudConfig{}
	if y == nil {
		return cfg
	}
	cfg.Host = y.Host
	cfg.Port = y.Port
	return cfg
}

// resolveListenConfig resolves the listener address from YAML, applying defaults.
func resolveListenConfig(y *ListenYAMLConfig) *ListenConfig {
	cfg := &ListenConfig{
		Host: DefaultListenHost,
		Port: DefaultListenPort,
	}
	if y == nil {
		return cfg
	}
	if y.Host != "" {
		cfg.Host = y.Host
	}
	if y.Port != 0 {
		cfg.Port = y.Port
	}
	return cfg
}

// resolveAPIConfig resolves admin API configuration from YAML, applying defaults.
func resolveAPIConfig(y *APIYAMLConfig) *APIConfig {
	cfg := &APIConfig{
		Enabled: true,
		Host:    DefaultAPIHost,
		Port:    DefaultAPIPort,
	}
	if y == nil {
		return cfg
	}
	if y.Enabled != nil {
		cfg.Enabled = *y.Enabled
	}
	if y.Host != "" {
		cfg.Host = y.Host
	}
	if y.Port != 0 {
		cfg.Port = y.Port
	}
	cfg.AllowedWSOrigins = y.AllowedWSOrigins
	return cfg
}

// resolveLogConfig resolves logging configuration from YAML, applying defaults.
func resolveLogConfig(y *LogYAMLConfig) *LogConfig {
	cfg := &LogConfig{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
	}
	if y == nil {
		return cfg
	}
	if y.Level != "" {
		cfg.Level = y.Level
	}
	if y.Format != "" {
		cfg.Format = y.Format
	}
	return cfg
}

// resolveDataConfig resolves data directory configuration from YAML,
// applying defaults. database: "" in YAML explicitly disables persistence.
func resolveDataConfig(y *DataYAMLConfig) *DataConfig {
	cfg := &DataConfig{
		Dir:      DefaultDataDir,
		Database: DefaultDatabaseFile,
	}
	if y == nil {
		return cfg
	}
	if y.Dir != "" {
		cfg.Dir = y.Dir
	}
	if y.Database != nil {
		cfg.Database = *y.Database
	}
	return cfg
}

// resolveProxyConfig resolves proxy setting seeds from YAML, applying defaults.
func resolveProxyConfig(y *ProxyYAMLConfig) *ProxyConfig {
	cfg := &ProxyConfig{
		Password:         DefaultPassword,
		ViewPassword:     DefaultViewPassword,
		CommandPrefix:    DefaultCommandPrefix,
		CommandSeparator: DefaultCommandSeparator,
		Preamble:         DefaultPreamble,
	}
	if y == nil {
		return cfg
	}
	if y.Password != "" {
		cfg.Password = y.Password
	}
	if y.ViewPassword != "" {
		cfg.ViewPassword = y.ViewPassword
	}
	if y.CommandPrefix != "" {
		cfg.CommandPrefix = y.CommandPrefix
	}
	if y.CommandSeparator != "" {
		cfg.CommandSeparator = y.CommandSeparator
	}
	if y.Preamble != "" {
		cfg.Preamble = y.Preamble
	}
	return cfg
}

// resolvePluginsConfig resolves the optional plugin list from YAML.
func resolvePluginsConfig(y *PluginsYAMLConfig) *PluginsConfig {
	cfg := &PluginsConfig{}
	if y != nil {
		cfg.Enabled = y.Enabled
	}
	return cfg
}
