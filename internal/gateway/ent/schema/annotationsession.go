package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AnnotationSession holds the per-artifact conversation state inside a batch.
type AnnotationSession struct {
	ent.Schema
}

// Fields of the AnnotationSession.
func (AnnotationSession) Fields() []ent.Field {
	return []ent.Field{
		field.Int("id").
			Unique().
			Immutable(),
		field.String("batch_id").
			NotEmpty(),
		field.String("artifact_id").
			NotEmpty(),
		field.String("step").
			Default("await_field_confirmation"),
		field.JSON("answers", []map[string]any{}).
			Default([]map[string]any{}),
		field.JSON("annotation", map[string]any{}).
			Optional(),
		field.String("failure_cause").
			Optional(),
		field.Time("created_at").
			Default(time.Now),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the AnnotationSession.
func (AnnotationSession) Edges() []ent.Edge {
	return nil
}

func (AnnotationSession) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("batch_id", "artifact_id").Unique(),
		index.Fields("batch_id"),
	}
}
