package annotator

import (
	"fmt"
	"strings"

	"annotify/internal/engine"
)

const systemPreamble = `You are an Excel data analysis specialist working on ONE file at a time.
Identify key reporting fields (metrics like Cost, Quantity, Revenue), join
fields that link to other files (like Company Code, Product ID), and primary
identifiers. Guide non-technical users through data modeling.
Respond with JSON only, using this shape:
{
  "purpose": "Monthly inventory tracking",
  "fields": {
    "Company Code": {"type": "string", "role": "join_field"},
    "Product Cost": {"type": "float", "role": "reporting_field"}
  }
}
Valid roles: join_field, reporting_field, primary_id.`

// promptFor renders the task-specific instruction block sent ahead of the
// JSON input payload.
func promptFor(req engine.AnnotateRequest) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")
	switch req.Task {
	case engine.TaskConfirmFields:
		fmt.Fprintf(&b, "Task: confirm or correct the detected field list for %s using the user's reply. Assign a role to every field.", req.Artifact.Name)
	case engine.TaskIncorporatePurpose:
		fmt.Fprintf(&b, "Task: incorporate the user's purpose description for %s into the working annotation. Keep the field roles unless the reply corrects them, and fill in \"purpose\".", req.Artifact.Name)
	default:
		fmt.Fprintf(&b, "Task: %s for %s.", req.Task, req.Artifact.Name)
	}
	return b.String()
}

// callInput is the structured input payload serialized after the prompt.
type callInput struct {
	Artifact     string             `json:"artifact"`
	Fields       map[string]string  `json:"fields"`
	Reply        string             `json:"reply"`
	Working      *engine.Annotation `json:"working_annotation,omitempty"`
	PriorAnswers []engine.Answer    `json:"prior_answers,omitempty"`
}

func inputFor(req engine.AnnotateRequest) callInput {
	return callInput{
		Artifact:     req.Artifact.Name,
		Fields:       req.Artifact.Fields,
		Reply:        req.Reply,
		Working:      req.Working,
		PriorAnswers: req.PriorAnswers,
	}
}
