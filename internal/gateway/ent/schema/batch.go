package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Batch holds the schema definition for the Batch entity.
type Batch struct {
	ent.Schema
}

// Fields of the Batch.
func (Batch) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("batch_id").
			Unique().
			Immutable(),
		field.String("status").
			Default("active"),
		field.Int("current_index").
			Default(0).
			NonNegative(),
		field.Int("total").
			NonNegative(),
		field.Time("created_at").
			Default(time.Now),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Batch.
func (Batch) Edges() []ent.Edge {
	return nil
}

func (Batch) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status"),
		index.Fields("updated_at"),
	}
}
