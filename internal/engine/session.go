package engine

// Step identifies where a session is in the guided conversation. The order is
// fixed: field confirmation, then purpose description, then a terminal state.
type Step string

const (
	StepAwaitFieldConfirmation  Step = "await_field_confirmation"
	StepAwaitPurposeDescription Step = "await_purpose_description"
	StepCompleted               Step = "completed"
	StepFailed                  Step = "failed"
)

// Terminal reports whether no further input is accepted at this step.
func (s Step) Terminal() bool {
	return s == StepCompleted || s == StepFailed
}

// Status is the coarse session state derived from Step.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Step) Status() Status {
	switch s {
	case StepCompleted:
		return StatusCompleted
	case StepFailed:
		return StatusFailed
	default:
		return StatusInProgress
	}
}

// FieldRole tags what a field is for in the derived data model.
type FieldRole string

const (
	RoleJoinField      FieldRole = "join_field"
	RoleReportingField FieldRole = "reporting_field"
	RolePrimaryID      FieldRole = "primary_id"
)

// ValidRole reports whether r is one of the closed role vocabulary values.
func ValidRole(r FieldRole) bool {
	switch r {
	case RoleJoinField, RoleReportingField, RolePrimaryID:
		return true
	}
	return false
}

// FieldAnnotation is the per-field result: the inferred type plus the role
// the user's replies assigned to it.
type FieldAnnotation struct {
	Type string    `json:"type"`
	Role FieldRole `json:"role"`
}

// Annotation is the structured output produced for one artifact.
type Annotation struct {
	ArtifactID string                     `json:"artifact_id"`
	Purpose    string                     `json:"purpose,omitempty"`
	Fields     map[string]FieldAnnotation `json:"fields"`
}

func (a *Annotation) clone() *Annotation {
	if a == nil {
		return nil
	}
	fields := make(map[string]FieldAnnotation, len(a.Fields))
	for k, v := range a.Fields {
		fields[k] = v
	}
	return &Annotation{ArtifactID: a.ArtifactID, Purpose: a.Purpose, Fields: fields}
}

// Answer is one (prompt, user reply) exchange. Recorded only for successful
// transitions.
type Answer struct {
	Prompt string `json:"prompt"`
	Reply  string `json:"reply"`
}

// Session is the conversation state for one artifact. Mutated only through
// Store.Apply.
type Session struct {
	Artifact *Artifact
	Step     Step
	Answers  []Answer

	// Working holds the role mapping accepted by the field-confirmation step
	// while the purpose step is still pending.
	Working *Annotation

	// Derived is non-nil exactly when Step == StepCompleted.
	Derived *Annotation

	// Cause records the wrapped annotation-call error when Step == StepFailed.
	Cause error
}

func (s *Session) Status() Status {
	if s == nil {
		return StatusFailed
	}
	return s.Step.Status()
}
