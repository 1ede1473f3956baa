package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Setting holds the schema definition for the Setting entity. One row per
// plugin setting; values are stored in string form and coerced by the
// settings engine on read.
type Setting struct {
	ent.Schema
}

// Fields of the Setting.
func (Setting) Fields() []ent.Field {
	return []ent.Field{
		field.String("plugin_id").
			Comment("Owning plugin, e.g. 'plugins.core.proxy'"),
		field.String("name").
			Comment("Setting name, unique within the plugin"),
		field.String("value").
			Default("").
			Comment("Current value in string form"),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the Setting.
func (Setting) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("plugin_id", "name").
			Unique(),
	}
}
