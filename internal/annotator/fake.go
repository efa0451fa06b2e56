package annotator

import (
	"context"
	"encoding/json"
	"strings"
)

// FakeClient returns deterministic, minimal JSON payloads per task for
// offline use and testing. Role assignment is a naming heuristic: fields
// that look like identifiers become primary_id, codes and keys become
// join_field, everything else is a reporting field.
type FakeClient struct{}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Name() string { return "FakeAnnotator" }
func (f *FakeClient) Close() error { return nil }

func (f *FakeClient) GenerateJSON(ctx context.Context, _ string, input any) (json.RawMessage, error) {
	in, _ := input.(callInput)
	env := annotationEnvelope{Fields: map[string]fieldSpec{}}

	switch TaskFrom(ctx) {
	case "confirm_fields":
		for name, typ := range in.Fields {
			env.Fields[name] = fieldSpec{Type: typ, Role: guessRole(name)}
		}
	case "incorporate_purpose":
		env.Purpose = in.Reply
		if in.Working != nil {
			for name, fa := range in.Working.Fields {
				env.Fields[name] = fieldSpec{Type: fa.Type, Role: string(fa.Role)}
			}
		}
	}
	b, _ := json.Marshal(env)
	return json.RawMessage(b), nil
}

func guessRole(field string) string {
	f := strings.ToLower(field)
	switch {
	case f == "id" || strings.HasSuffix(f, " id") || strings.HasSuffix(f, "_id"):
		return "primary_id"
	case strings.Contains(f, "code") || strings.Contains(f, "key"):
		return "join_field"
	default:
		return "reporting_field"
	}
}
