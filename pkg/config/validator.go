package config

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast, stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	if err := v.validateNetwork(); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}

	if err := v.validateLog(); err != nil {
		return fmt.Errorf("log validation failed: %w", err)
	}

	if err := v.validateData(); err != nil {
		return fmt.Errorf("data validation failed: %w", err)
	}

	if err := v.validateProxy(); err != nil {
		return fmt.Errorf("proxy validation failed: %w", err)
	}

	if err := v.validateDispatch(); err != nil {
		return fmt.Errorf("dispatch validation failed: %w", err)
	}

	if err := v.validatePlugins(); err != nil {
		return fmt.Errorf("plugin validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateNetwork() error {
	// mud port 0 means not configured yet, set later through the proxy plugin
	if v.cfg.Mud.Port < 0 || v.cfg.Mud.Port > 65535 {
		return NewValidationError("mud", "port",
			fmt.Errorf("%w: %d (must be 0-65535)", ErrInvalidValue, v.cfg.Mud.Port))
	}

	if v.cfg.Listen.Port < 1 || v.cfg.Listen.Port > 65535 {
		return NewValidationError("listen", "port",
			fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidValue, v.cfg.Listen.Port))
	}
	if v.cfg.Listen.Host == "" {
		return NewValidationError("listen", "host", ErrMissingRequiredField)
	}

	if v.cfg.API.Enabled {
		if v.cfg.API.Port < 1 || v.cfg.API.Port > 65535 {
			return NewValidationError("api", "port",
				fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidValue, v.cfg.API.Port))
		}
		if v.cfg.API.Host == "" {
			return NewValidationError("api", "host", ErrMissingRequiredField)
		}
		if v.cfg.API.Port == v.cfg.Listen.Port && v.cfg.API.Host == v.cfg.Listen.Host {
			return NewValidationError("api", "port",
				fmt.Errorf("%w: collides with the client listener address", ErrInvalidValue))
		}
	}

	return nil
}

func (v *ConfigValidator) validateLog() error {
	if !slices.Contains(validLogLevels, v.cfg.Log.Level) {
		return NewValidationError("log", "level",
			fmt.Errorf("%w: '%s' (must be one of %v)", ErrInvalidValue, v.cfg.Log.Level, validLogLevels))
	}
	if !slices.Contains(validLogFormats, v.cfg.Log.Format) {
		return NewValidationError("log", "format",
			fmt.Errorf("%w: '%s' (must be one of %v)", ErrInvalidValue, v.cfg.Log.Format, validLogFormats))
	}
	return nil
}

func (v *ConfigValidator) validateData() error {
	if v.cfg.Data.Dir == "" {
		return NewValidationError("data", "dir", ErrMissingRequiredField)
	}
	return nil
}

func (v *ConfigValidator) validateProxy() error {
	p := v.cfg.Proxy

	if p.CommandPrefix == "" {
		return NewValidationError("proxy", "command_prefix", ErrMissingRequiredField)
	}
	if utf8.RuneCountInString(p.CommandSeparator) != 1 {
		return NewValidationError("proxy", "command_separator",
			fmt.Errorf("%w: '%s' (must be a single character)", ErrInvalidValue, p.CommandSeparator))
	}
	if p.Preamble == "" {
		return NewValidationError("proxy", "preamble", ErrMissingRequiredField)
	}
	if p.Password == "" {
		return NewValidationError("proxy", "password", ErrMissingRequiredField)
	}
	if p.Password == p.ViewPassword {
		return NewValidationError("proxy", "view_password",
			fmt.Errorf("%w: must differ from the main password", ErrInvalidValue))
	}

	return nil
}

func (v *ConfigValidator) validateDispatch() error {
	if v.cfg.Dispatch.QueueSize < 1 {
		return NewValidationError("dispatch", "queue_size",
			fmt.Errorf("%w: %d (must be at least 1)", ErrInvalidValue, v.cfg.Dispatch.QueueSize))
	}
	return nil
}

func (v *ConfigValidator) validatePlugins() error {
	seen := make(map[string]bool)
	for _, name := range v.cfg.Plugins.Enabled {
		if name == "" {
			return NewValidationError("plugins", "enabled",
				fmt.Errorf("%w: empty plugin name", ErrInvalidValue))
		}
		if seen[name] {
			return NewValidationError("plugins", "enabled",
				fmt.Errorf("%w: duplicate plugin '%s'", ErrInvalidValue, name))
		}
		seen[name] = true
	}
	return nil
}
