// Code generated by ent, DO NOT EDIT.

package ent

import (
	"time"

	"github.com/bastionmud/bastion/ent/commandhistory"
	"github.com/bastionmud/bastion/ent/pluginstate"
	"github.com/bastionmud/bastion/ent/schema"
	"github.com/bastionmud/bastion/ent/setting"
)

// The init function reads all schema descriptors with runtime code
// (default values, validators, hooks and policies) and stitches it
// to their package variables.
func init() {
	commandhistoryFields := schema.CommandHistory{}.Fields()
	_ = commandhistoryFields
	// commandhistoryDescCreatedAt is the schema descriptor for created_at field.
	commandhistoryDescCreatedAt := commandhistoryFields[1].Descriptor()
	// commandhistory.DefaultCreatedAt holds the default value on creation for the created_at field.
	commandhistory.DefaultCreatedAt = commandhistoryDescCreatedAt.Default.(func() time.Time)
	pluginstateFields := schema.PluginState{}.Fields()
	_ = pluginstateFields
	// pluginstateDescValue is the schema descriptor for value field.
	pluginstateDescValue := pluginstateFields[2].Descriptor()
	// pluginstate.DefaultValue holds the default value on creation for the value field.
	pluginstate.DefaultValue = pluginstateDescValue.Default.(string)
	// pluginstateDescUpdatedAt is the schema descriptor for updated_at field.
	pluginstateDescUpdatedAt := pluginstateFields[3].Descriptor()
	// pluginstate.DefaultUpdatedAt holds the default value on creation for the updated_at field.
	pluginstate.DefaultUpdatedAt = pluginstateDescUpdatedAt.Default.(func() time.Time)
	// pluginstate.UpdateDefaultUpdatedAt holds the default value on update for the updated_at field.
	pluginstate.UpdateDefaultUpdatedAt = pluginstateDescUpdatedAt.UpdateDefault.(func() time.Time)
	settingFields := schema.Setting{}.Fields()
	_ = settingFields
	// settingDescValue is the schema descriptor for value field.
	settingDescValue := settingFields[2].Descriptor()
	// setting.DefaultValue holds the default value on creation for the value field.
	setting.DefaultValue = settingDescValue.Default.(string)
	// settingDescUpdatedAt is the schema descriptor for updated_at field.
	settingDescUpdatedAt := settingFields[3].Descriptor()
	// setting.DefaultUpdatedAt holds the default value on creation for the updated_at field.
	setting.DefaultUpdatedAt = settingDescUpdatedAt.Default.(func() time.Time)
	// setting.UpdateDefaultUpdatedAt holds the default value on update for the updated_at field.
	setting.UpdateDefaultUpdatedAt = settingDescUpdatedAt.UpdateDefault.(func() time.Time)
}
