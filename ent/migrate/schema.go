// Code generated by ent, DO NOT EDIT.

package migrate

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// CommandHistoriesColumns holds the columns for the "command_histories" table.
	CommandHistoriesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "command", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
	}
	// CommandHistoriesTable holds the schema information for the "command_histories" table.
	CommandHistoriesTable = &schema.Table{
		Name:       "command_histories",
		Columns:    CommandHistoriesColumns,
		PrimaryKey: []*schema.Column{CommandHistoriesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "commandhistory_created_at",
				Unique:  false,
				Columns: []*schema.Column{CommandHistoriesColumns[2]},
			},
		},
	}
	// PluginStatesColumns holds the columns for the "plugin_states" table.
	PluginStatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "plugin_id", Type: field.TypeString},
		{Name: "key", Type: field.TypeString},
		{Name: "value", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// PluginStatesTable holds the schema information for the "plugin_states" table.
	PluginStatesTable = &schema.Table{
		Name:       "plugin_states",
		Columns:    PluginStatesColumns,
		PrimaryKey: []*schema.Column{PluginStatesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "pluginstate_plugin_id_key",
				Unique:  true,
				Columns: []*schema.Column{PluginStatesColumns[1], PluginStatesColumns[2]},
			},
		},
	}
	// SettingsColumns holds the columns for the "settings" table.
	SettingsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "plugin_id", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "value", Type: field.TypeString, Default: ""},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// SettingsTable holds the schema information for the "settings" table.
	SettingsTable = &schema.Table{
		Name:       "settings",
		Columns:    SettingsColumns,
		PrimaryKey: []*schema.Column{SettingsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "setting_plugin_id_name",
				Unique:  true,
				Columns: []*schema.Column{SettingsColumns[1], SettingsColumns[2]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		CommandHistoriesTable,
		PluginStatesTable,
		SettingsTable,
	}
)

func init() {
}
