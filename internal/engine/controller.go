package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultAnnotateTimeout = 60 * time.Second

// Transition is the outcome of one advance: the step to enter plus the data
// to record. It is applied to the session by Store.Apply.
type Transition struct {
	Step    Step
	Answer  Answer // zero when the transition records a failure
	Working *Annotation
	Derived *Annotation
	Cause   error // non-nil only for Step == StepFailed
}

// Controller is the pure transition function from (session, user reply) to
// the next session state. It holds no per-session state itself.
type Controller struct {
	annotator Annotator
	timeout   time.Duration
}

func NewController(annotator Annotator, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = defaultAnnotateTimeout
	}
	return &Controller{annotator: annotator, timeout: timeout}
}

// Prompt renders the text to display for the session's current step. The
// step alone selects the prompt, so the caller UI stays deterministic.
func (c *Controller) Prompt(s *Session) string {
	if s == nil || s.Artifact == nil {
		return ""
	}
	switch s.Step {
	case StepAwaitFieldConfirmation:
		return fmt.Sprintf(
			"Detected fields in %s: %s. Confirm this field list or describe any corrections.",
			s.Artifact.Name, strings.Join(s.Artifact.FieldList(), ", "))
	case StepAwaitPurposeDescription:
		return fmt.Sprintf(
			"Describe what %s represents (e.g. \"inventory data\", \"sales records\") and which fields are identifiers, measures, or join keys.",
			s.Artifact.Name)
	default:
		return ""
	}
}

// Advance runs one conversation turn. On a precondition failure
// (terminal session, blank reply) it returns a nil transition and the error;
// the session must not be mutated and no turn is consumed. On an annotation
// failure it returns a transition into StepFailed together with the wrapped
// error; answers already recorded stay intact.
func (c *Controller) Advance(ctx context.Context, s *Session, reply string) (*Transition, error) {
	if s == nil || s.Artifact == nil {
		return nil, newError(KindNotFound, "", "", "session is required")
	}
	if s.Status() != StatusInProgress {
		return nil, newError(KindInvalidState, s.Artifact.ID, s.Step, "session is terminal")
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, newError(KindEmptyReply, s.Artifact.ID, s.Step, "reply is empty")
	}

	req := AnnotateRequest{
		Artifact:     s.Artifact,
		Reply:        reply,
		PriorAnswers: append([]Answer(nil), s.Answers...),
	}
	switch s.Step {
	case StepAwaitFieldConfirmation:
		req.Task = TaskConfirmFields
	case StepAwaitPurposeDescription:
		req.Task = TaskIncorporatePurpose
		req.Working = s.Working.clone()
	default:
		return nil, newError(KindInvalidState, s.Artifact.ID, s.Step, "unknown step")
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	result, err := c.annotator.Annotate(callCtx, req)
	if err != nil {
		cause := wrapError(KindAnnotationCall, s.Artifact.ID, s.Step, "annotation call failed", err)
		return &Transition{Step: StepFailed, Cause: cause}, cause
	}

	answer := Answer{Prompt: c.Prompt(s), Reply: reply}
	switch req.Task {
	case TaskConfirmFields:
		return &Transition{
			Step:    StepAwaitPurposeDescription,
			Answer:  answer,
			Working: normalizeAnnotation(s.Artifact, result),
		}, nil
	default:
		return &Transition{
			Step:    StepCompleted,
			Answer:  answer,
			Derived: normalizeAnnotation(s.Artifact, result),
		}, nil
	}
}

// normalizeAnnotation drops fields the artifact does not declare and fills
// the role/type for declared fields the annotator omitted. Omitted roles
// default to reporting_field, the common case for measures.
func normalizeAnnotation(artifact *Artifact, in *Annotation) *Annotation {
	out := &Annotation{
		ArtifactID: artifact.ID,
		Fields:     make(map[string]FieldAnnotation, len(artifact.Fields)),
	}
	if in != nil {
		out.Purpose = strings.TrimSpace(in.Purpose)
	}
	for name, typ := range artifact.Fields {
		fa := FieldAnnotation{Type: typ, Role: RoleReportingField}
		if in != nil {
			if got, ok := in.Fields[name]; ok {
				if ValidRole(got.Role) {
					fa.Role = got.Role
				}
				if strings.TrimSpace(got.Type) != "" {
					fa.Type = got.Type
				}
			}
		}
		out.Fields[name] = fa
	}
	return out
}
