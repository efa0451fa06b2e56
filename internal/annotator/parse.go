package annotator

import (
	"encoding/json"
	"fmt"
	"strings"

	"annotify/internal/engine"
)

// annotationEnvelope tolerates both the current and the legacy response
// shapes; some models answer with "file_purpose" instead of "purpose".
type annotationEnvelope struct {
	Purpose     string               `json:"purpose"`
	FilePurpose string               `json:"file_purpose"`
	Fields      map[string]fieldSpec `json:"fields"`
}

type fieldSpec struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

// parseAnnotation decodes the model's JSON into an annotation for the
// request's artifact. Unknown fields survive here; the engine drops them
// during normalization.
func parseAnnotation(req engine.AnnotateRequest, raw json.RawMessage) (*engine.Annotation, error) {
	var env annotationEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("annotator: invalid JSON from model: %w", err)
	}
	purpose := strings.TrimSpace(env.Purpose)
	if purpose == "" {
		purpose = strings.TrimSpace(env.FilePurpose)
	}
	out := &engine.Annotation{
		ArtifactID: req.Artifact.ID,
		Purpose:    purpose,
		Fields:     make(map[string]engine.FieldAnnotation, len(env.Fields)),
	}
	for name, spec := range env.Fields {
		out.Fields[name] = engine.FieldAnnotation{
			Type: strings.TrimSpace(spec.Type),
			Role: engine.FieldRole(strings.TrimSpace(spec.Role)),
		}
	}
	// Carry roles forward when the model echoes only the purpose.
	if req.Task == engine.TaskIncorporatePurpose && len(out.Fields) == 0 && req.Working != nil {
		for name, fa := range req.Working.Fields {
			out.Fields[name] = fa
		}
	}
	return out, nil
}
