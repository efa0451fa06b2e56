package engine

import "context"

// Task discriminates what the annotator is asked to do with a reply.
type Task string

const (
	TaskConfirmFields      Task = "confirm_fields"
	TaskIncorporatePurpose Task = "incorporate_purpose"
)

// AnnotateRequest is the input to the external annotation capability: the
// artifact's field/type mapping, the user's reply, and the accumulated prior
// answers for context.
type AnnotateRequest struct {
	Artifact *Artifact
	Task     Task
	Reply    string

	// Working is the role mapping produced by the confirm-fields task; set
	// only for TaskIncorporatePurpose.
	Working *Annotation

	PriorAnswers []Answer
}

// Annotator is the engine's only I/O boundary: an opaque call to a
// language-model-backed service. Latency and failure modes are the
// collaborator's contract; the controller bounds each call with a timeout.
type Annotator interface {
	Annotate(ctx context.Context, req AnnotateRequest) (*Annotation, error)
}
