package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configDir := t.TempDir()
	err := os.WriteFile(filepath.Join(configDir, "bastion.yaml"), []byte(content), 0644)
	require.NoError(t, err)
	return configDir
}

func TestInitialize(t *testing.T) {
	configDir := writeConfig(t, `
mud:
  host: mud.example.org
  port: 4000
listen:
  port: 9999
api:
  port: 8899
log:
  level: debug
proxy:
  password: sekrit
  view_password: watcher
plugins:
  enabled: [alias]
dispatch:
  queue_size: 256
`)

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "mud.example.org", cfg.Mud.Host)
	assert.Equal(t, 4000, cfg.Mud.Port)
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddr())
	assert.Equal(t, "127.0.0.1:8899", cfg.APIAddr())
	assert.True(t, cfg.API.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "sekrit", cfg.Proxy.Password)
	assert.Equal(t, "watcher", cfg.Proxy.ViewPassword)
	assert.Equal(t, []string{"alias"}, cfg.Plugins.Enabled)
	assert.Equal(t, 256, cfg.Dispatch.QueueSize)
	assert.Equal(t, filepath.Join("data", "bastion.db"), cfg.DatabasePath())
	assert.Equal(t, configDir, cfg.ConfigDir())
}

func TestInitializeMissingFileUsesDefaults(t *testing.T) {
	configDir := t.TempDir()

	cfg, err := Initialize(context.Background(), configDir)

	require.NoError(t, err)
	assert.Equal(t, "", cfg.Mud.Host)
	assert.Equal(t, 0, cfg.Mud.Port)
	assert.Equal(t, DefaultListenPort, cfg.Listen.Port)
	assert.Equal(t, DefaultAPIPort, cfg.API.Port)
	assert.Equal(t, DefaultPassword, cfg.Proxy.Password)
	assert.Equal(t, DefaultCommandPrefix, cfg.Proxy.CommandPrefix)
	assert.Equal(t, DefaultDispatchQueueSize, cfg.Dispatch.QueueSize)
	assert.Empty(t, cfg.Plugins.Enabled)
}

func TestInitializeInvalidYAML(t *testing.T) {
	configDir := writeConfig(t, `listen: [not: a: mapping`)

	_, err := Initialize(context.Background(), configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitializeEnvExpansion(t *testing.T) {
	t.Setenv("TEST_BASTION_PW", "from-env")
	configDir := writeConfig(t, `
proxy:
  password: "{{.TEST_BASTION_PW}}"
`)

	cfg, err := Initialize(context.Background(), configDir)

	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Proxy.Password)
}

func TestInitializeValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "listen port out of range",
			yaml:    "listen:\n  port: 70000\n",
			wantErr: "listen: field 'port'",
		},
		{
			name:    "mud port negative",
			yaml:    "mud:\n  host: x\n  port: -1\n",
			wantErr: "mud: field 'port'",
		},
		{
			name:    "bad log level",
			yaml:    "log:\n  level: loud\n",
			wantErr: "log: field 'level'",
		},
		{
			name:    "bad log format",
			yaml:    "log:\n  format: xml\n",
			wantErr: "log: field 'format'",
		},
		{
			name:    "multi-character separator",
			yaml:    "proxy:\n  command_separator: '||'\n",
			wantErr: "proxy: field 'command_separator'",
		},
		{
			name:    "view password equals password",
			yaml:    "proxy:\n  password: same\n  view_password: same\n",
			wantErr: "proxy: field 'view_password'",
		},
		{
			name:    "api collides with listener",
			yaml:    "listen:\n  host: 127.0.0.1\n  port: 9999\napi:\n  host: 127.0.0.1\n  port: 9999\n",
			wantErr: "api: field 'port'",
		},
		{
			name:    "duplicate plugin",
			yaml:    "plugins:\n  enabled: [alias, alias]\n",
			wantErr: "plugins: field 'enabled'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configDir := writeConfig(t, tt.yaml)

			_, err := Initialize(context.Background(), configDir)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestDatabaseExplicitlyDisabled(t *testing.T) {
	configDir := writeConfig(t, `
data:
  database: ""
`)

	cfg, err := Initialize(context.Background(), configDir)

	require.NoError(t, err)
	assert.Equal(t, "", cfg.DatabasePath())
}

func TestDispatchMergePreservesDefaults(t *testing.T) {
	configDir := writeConfig(t, "dispatch: {}\n")

	cfg, err := Initialize(context.Background(), configDir)

	require.NoError(t, err)
	assert.Equal(t, DefaultDispatchQueueSize, cfg.Dispatch.QueueSize)
}
