package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CommandHistory holds the schema definition for the CommandHistory
// entity, one row per remembered proxy command. The command engine trims
// the table to its history size on append.
type CommandHistory struct {
	ent.Schema
}

// Fields of the CommandHistory.
func (CommandHistory) Fields() []ent.Field {
	return []ent.Field{
		field.String("command").
			Comment("Full command line as typed, including the prefix"),
		field.Time("created_at").
			Default(time.Now),
	}
}

// Indexes of the CommandHistory.
func (CommandHistory) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("created_at"),
	}
}
