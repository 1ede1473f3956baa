// Code generated by ent, DO NOT EDIT.

package predicate

import (
	"entgo.io/ent/dialect/sql"
)

// CommandHistory is the predicate function for commandhistory builders.
type CommandHistory func(*sql.Selector)

// PluginState is the predicate function for pluginstate builders.
type PluginState func(*sql.Selector)

// Setting is the predicate function for setting builders.
type Setting func(*sql.Selector)
