package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PluginState holds the schema definition for the PluginState entity:
// arbitrary key/value state a plugin persists across restarts (alias
// tables, ban lists, counters).
type PluginState struct {
	ent.Schema
}

// Fields of the PluginState.
func (PluginState) Fields() []ent.Field {
	return []ent.Field{
		field.String("plugin_id").
			Comment("Owning plugin"),
		field.String("key"),
		field.Text("value").
			Default("").
			Comment("Opaque value, usually JSON"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the PluginState.
func (PluginState) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("plugin_id", "key").
			Unique(),
	}
}
