package database

import (
	"context"
	"fmt"

	"github.com/bastionmud/bastion/ent"
	"github.com/bastionmud/bastion/ent/commandhistory"
	"github.com/bastionmud/bastion/ent/pluginstate"
	"github.com/bastionmud/bastion/ent/setting"
)

// SettingsStore persists plugin settings. It satisfies the settings
// engine's Store interface.
type SettingsStore struct {
	client *ent.Client
}

// NewSettingsStore creates a settings store backed by the database.
func NewSettingsStore(c *Client) *SettingsStore {
	return &SettingsStore{client: c.Client}
}

// Get returns the stored value and whether one exists.
func (s *SettingsStore) Get(ctx context.Context, pluginID, name string) (string, bool, error) {
	row, err := s.client.Setting.Query().
		Where(setting.PluginIDEQ(pluginID), setting.NameEQ(name)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get setting: %w", err)
	}
	return row.Value, true, nil
}

// Put creates or updates a setting value.
func (s *SettingsStore) Put(ctx context.Context, pluginID, name, value string) error {
	row, err := s.client.Setting.Query().
		Where(setting.PluginIDEQ(pluginID), setting.NameEQ(name)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			_, err = s.client.Setting.Create().
				SetPluginID(pluginID).
				SetName(name).
				SetValue(value).
				Save(ctx)
			if err != nil {
				return fmt.Errorf("failed to create setting: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to look up setting: %w", err)
	}

	_, err = s.client.Setting.UpdateOne(row).
		SetValue(value).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to update setting: %w", err)
	}
	return nil
}

// All returns every stored setting of a plugin as name→value.
func (s *SettingsStore) All(ctx context.Context, pluginID string) (map[string]string, error) {
	rows, err := s.client.Setting.Query().
		Where(setting.PluginIDEQ(pluginID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Name] = row.Value
	}
	return values, nil
}

// DeletePlugin removes every stored setting of a plugin.
func (s *SettingsStore) DeletePlugin(ctx context.Context, pluginID string) error {
	_, err := s.client.Setting.Delete().
		Where(setting.PluginIDEQ(pluginID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	return nil
}

// HistoryStore persists the proxy command history. It satisfies the
// command engine's HistoryStore interface.
type HistoryStore struct {
	client *ent.Client
}

// NewHistoryStore creates a command history store backed by the database.
func NewHistoryStore(c *Client) *HistoryStore {
	return &HistoryStore{client: c.Client}
}

// Append stores one command line.
func (s *HistoryStore) Append(ctx context.Context, command string) error {
	_, err := s.client.CommandHistory.Create().
		SetCommand(command).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// List returns up to limit most recent commands, oldest first. A
// non-positive limit returns everything.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]string, error) {
	q := s.client.CommandHistory.Query().
		Order(ent.Desc(commandhistory.FieldID))
	if limit > 0 {
		q = q.Limit(limit)
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	commands := make([]string, len(rows))
	for i, row := range rows {
		commands[len(rows)-1-i] = row.Command
	}
	return commands, nil
}

// Trim keeps only the most recent keep rows.
func (s *HistoryStore) Trim(ctx context.Context, keep int) error {
	if keep < 1 {
		return s.Clear(ctx)
	}

	boundary, err := s.client.CommandHistory.Query().
		Order(ent.Desc(commandhistory.FieldID)).
		Offset(keep - 1).
		Limit(1).
		All(ctx)
	if err != nil {
		return fmt.Errorf("failed to find history boundary: %w", err)
	}
	if len(boundary) == 0 {
		return nil
	}

	_, err = s.client.CommandHistory.Delete().
		Where(commandhistory.IDLT(boundary[0].ID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	return nil
}

// Clear removes all history rows.
func (s *HistoryStore) Clear(ctx context.Context) error {
	_, err := s.client.CommandHistory.Delete().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// StateStore persists per-plugin key/value state blobs. It satisfies the
// plugin manager's StateStore interface.
type StateStore struct {
	client *ent.Client
}

// NewStateStore creates a plugin state store backed by the database.
func NewStateStore(c *Client) *StateStore {
	return &StateStore{client: c.Client}
}

// Get returns the stored value and whether one exists.
func (s *StateStore) Get(ctx context.Context, pluginID, key string) (string, bool, error) {
	row, err := s.client.PluginState.Query().
		Where(pluginstate.PluginIDEQ(pluginID), pluginstate.KeyEQ(key)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get plugin state: %w", err)
	}
	return row.Value, true, nil
}

// Put creates or updates a state value.
func (s *StateStore) Put(ctx context.Context, pluginID, key, value string) error {
	row, err := s.client.PluginState.Query().
		Where(pluginstate.PluginIDEQ(pluginID), pluginstate.KeyEQ(key)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			_, err = s.client.PluginState.Create().
				SetPluginID(pluginID).
				SetKey(key).
				SetValue(value).
				Save(ctx)
			if err != nil {
				return fmt.Errorf("failed to create plugin state: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to look up plugin state: %w", err)
	}

	_, err = s.client.PluginState.UpdateOne(row).
		SetValue(value).
		Save(ctx)
	if err != nil {
		return fmt.Errorf("failed to update plugin state: %w", err)
	}
	return nil
}

// All returns every stored key of a plugin as key→value.
func (s *StateStore) All(ctx context.Context, pluginID string) (map[string]string, error) {
	rows, err := s.client.PluginState.Query().
		Where(pluginstate.PluginIDEQ(pluginID)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin state: %w", err)
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// Delete removes one key.
func (s *StateStore) Delete(ctx context.Context, pluginID, key string) error {
	_, err := s.client.PluginState.Delete().
		Where(pluginstate.PluginIDEQ(pluginID), pluginstate.KeyEQ(key)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete plugin state: %w", err)
	}
	return nil
}

// DeletePlugin removes every key of a plugin.
func (s *StateStore) DeletePlugin(ctx context.Context, pluginID string) error {
	_, err := s.client.PluginState.Delete().
		Where(pluginstate.PluginIDEQ(pluginID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete plugin state: %w", err)
	}
	return nil
}
