package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type annotatorFunc func(ctx context.Context, req AnnotateRequest) (*Annotation, error)

func (f annotatorFunc) Annotate(ctx context.Context, req AnnotateRequest) (*Annotation, error) {
	return f(ctx, req)
}

func testArtifact(id string) *Artifact {
	return &Artifact{
		ID:   id,
		Name: id + ".xlsx",
		Fields: map[string]string{
			"Company Code": "string",
			"Product Cost": "float",
			"Quantity":     "integer",
		},
	}
}

func confirmResult(artifactID string) *Annotation {
	return &Annotation{
		ArtifactID: artifactID,
		Fields: map[string]FieldAnnotation{
			"Company Code": {Type: "string", Role: RoleJoinField},
			"Product Cost": {Type: "float", Role: RoleReportingField},
			"Quantity":     {Type: "integer", Role: RoleReportingField},
		},
	}
}

func TestAdvanceConfirmFields(t *testing.T) {
	var gotReq AnnotateRequest
	ctrl := NewController(annotatorFunc(func(_ context.Context, req AnnotateRequest) (*Annotation, error) {
		gotReq = req
		return confirmResult(req.Artifact.ID), nil
	}), time.Second)

	st := NewStore()
	sess, err := st.Create(testArtifact("inv"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tr, err := ctrl.Advance(context.Background(), sess, "  yes, those are right  ")
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if tr.Step != StepAwaitPurposeDescription {
		t.Fatalf("Advance() step = %q, want %q", tr.Step, StepAwaitPurposeDescription)
	}
	if gotReq.Task != TaskConfirmFields {
		t.Fatalf("annotate task = %q, want %q", gotReq.Task, TaskConfirmFields)
	}
	if gotReq.Reply != "yes, those are right" {
		t.Fatalf("annotate reply = %q, want trimmed reply", gotReq.Reply)
	}
	if tr.Answer.Reply != "yes, those are right" {
		t.Fatalf("answer reply = %q", tr.Answer.Reply)
	}
	if !strings.Contains(tr.Answer.Prompt, "Company Code (string)") {
		t.Fatalf("answer prompt %q does not list fields", tr.Answer.Prompt)
	}
	if tr.Working == nil || tr.Derived != nil {
		t.Fatalf("confirm step: working = %v, derived = %v", tr.Working, tr.Derived)
	}

	if _, err := st.Apply(sess.Artifact.ID, tr); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if sess.Step != StepAwaitPurposeDescription || len(sess.Answers) != 1 {
		t.Fatalf("after apply: step = %q answers = %d", sess.Step, len(sess.Answers))
	}
}

func TestAdvanceIncorporatePurposeCompletes(t *testing.T) {
	ctrl := NewController(annotatorFunc(func(_ context.Context, req AnnotateRequest) (*Annotation, error) {
		if req.Task == TaskConfirmFields {
			return confirmResult(req.Artifact.ID), nil
		}
		if req.Working == nil {
			t.Errorf("incorporate_purpose: missing working annotation")
		}
		if len(req.PriorAnswers) != 1 {
			t.Errorf("incorporate_purpose: prior answers = %d, want 1", len(req.PriorAnswers))
		}
		out := req.Working.clone()
		out.Purpose = "Monthly inventory tracking"
		return out, nil
	}), time.Second)

	st := NewStore()
	sess, _ := st.Create(testArtifact("inv"))
	tr, err := ctrl.Advance(context.Background(), sess, "yes")
	if err != nil {
		t.Fatalf("Advance(confirm) error = %v", err)
	}
	if _, err := st.Apply(sess.Artifact.ID, tr); err != nil {
		t.Fatalf("Apply(confirm) error = %v", err)
	}

	tr, err = ctrl.Advance(context.Background(), sess, "monthly inventory per company")
	if err != nil {
		t.Fatalf("Advance(purpose) error = %v", err)
	}
	if tr.Step != StepCompleted {
		t.Fatalf("Advance(purpose) step = %q, want %q", tr.Step, StepCompleted)
	}
	if _, err := st.Apply(sess.Artifact.ID, tr); err != nil {
		t.Fatalf("Apply(purpose) error = %v", err)
	}

	if sess.Status() != StatusCompleted {
		t.Fatalf("status = %q, want %q", sess.Status(), StatusCompleted)
	}
	if sess.Derived == nil {
		t.Fatalf("derived annotation is nil after completion")
	}
	if sess.Derived.Purpose != "Monthly inventory tracking" {
		t.Fatalf("derived purpose = %q", sess.Derived.Purpose)
	}
	if len(sess.Answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(sess.Answers))
	}
	want := map[string]FieldAnnotation{
		"Company Code": {Type: "string", Role: RoleJoinField},
		"Product Cost": {Type: "float", Role: RoleReportingField},
		"Quantity":     {Type: "integer", Role: RoleReportingField},
	}
	if diff := cmp.Diff(want, sess.Derived.Fields); diff != "" {
		t.Fatalf("derived fields mismatch (-want +got):\n%s", diff)
	}
}

func TestAdvanceBlankReplyDoesNotConsumeTurn(t *testing.T) {
	calls := 0
	ctrl := NewController(annotatorFunc(func(context.Context, AnnotateRequest) (*Annotation, error) {
		calls++
		return confirmResult("inv"), nil
	}), time.Second)
	st := NewStore()
	sess, _ := st.Create(testArtifact("inv"))

	tr, err := ctrl.Advance(context.Background(), sess, "   \n\t ")
	if tr != nil {
		t.Fatalf("Advance(blank) transition = %+v, want nil", tr)
	}
	if !IsEmptyReply(err) {
		t.Fatalf("Advance(blank) error = %v, want EmptyReply", err)
	}
	if calls != 0 {
		t.Fatalf("annotate called %d times on blank reply", calls)
	}
	if sess.Step != StepAwaitFieldConfirmation || len(sess.Answers) != 0 {
		t.Fatalf("blank reply mutated session: step=%q answers=%d", sess.Step, len(sess.Answers))
	}
}

func TestAdvanceTerminalSessionIsRejected(t *testing.T) {
	ctrl := NewController(annotatorFunc(func(context.Context, AnnotateRequest) (*Annotation, error) {
		return confirmResult("inv"), nil
	}), time.Second)
	st := NewStore()
	sess, _ := st.Create(testArtifact("inv"))
	sess.Step = StepCompleted
	sess.Answers = []Answer{{Prompt: "p", Reply: "r"}}

	for i := 0; i < 3; i++ {
		tr, err := ctrl.Advance(context.Background(), sess, "more input")
		if tr != nil {
			t.Fatalf("Advance() on terminal session returned a transition")
		}
		if !IsInvalidState(err) {
			t.Fatalf("Advance() error = %v, want InvalidState", err)
		}
	}
	if len(sess.Answers) != 1 {
		t.Fatalf("terminal advance mutated answers: %d", len(sess.Answers))
	}
}

func TestAdvanceAnnotationFailureKeepsAnswers(t *testing.T) {
	boom := errors.New("upstream timeout")
	step := 0
	ctrl := NewController(annotatorFunc(func(_ context.Context, req AnnotateRequest) (*Annotation, error) {
		step++
		if req.Task == TaskConfirmFields {
			return confirmResult(req.Artifact.ID), nil
		}
		return nil, boom
	}), time.Second)

	st := NewStore()
	sess, _ := st.Create(testArtifact("inv"))
	tr, _ := ctrl.Advance(context.Background(), sess, "yes")
	if _, err := st.Apply(sess.Artifact.ID, tr); err != nil {
		t.Fatalf("Apply(confirm) error = %v", err)
	}

	tr, err := ctrl.Advance(context.Background(), sess, "cost by vendor")
	if !IsAnnotationCall(err) {
		t.Fatalf("Advance() error = %v, want AnnotationCall", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Advance() error does not wrap the cause: %v", err)
	}
	if tr == nil || tr.Step != StepFailed {
		t.Fatalf("Advance() transition = %+v, want failed", tr)
	}
	if _, err := st.Apply(sess.Artifact.ID, tr); err != nil {
		t.Fatalf("Apply(failed) error = %v", err)
	}
	if sess.Status() != StatusFailed {
		t.Fatalf("status = %q, want failed", sess.Status())
	}
	if len(sess.Answers) != 1 {
		t.Fatalf("answers = %d, want the confirm answer retained", len(sess.Answers))
	}
	if sess.Derived != nil {
		t.Fatalf("derived annotation set on failed session")
	}
}

func TestAdvanceTimesOutSlowAnnotator(t *testing.T) {
	ctrl := NewController(annotatorFunc(func(ctx context.Context, _ AnnotateRequest) (*Annotation, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), 20*time.Millisecond)
	st := NewStore()
	sess, _ := st.Create(testArtifact("inv"))

	tr, err := ctrl.Advance(context.Background(), sess, "yes")
	if !IsAnnotationCall(err) {
		t.Fatalf("Advance() error = %v, want AnnotationCall", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Advance() error does not wrap deadline: %v", err)
	}
	if tr == nil || tr.Step != StepFailed {
		t.Fatalf("Advance() transition = %+v, want failed", tr)
	}
}

func TestNormalizeAnnotationDefaultsAndDrops(t *testing.T) {
	artifact := testArtifact("inv")
	got := normalizeAnnotation(artifact, &Annotation{
		Purpose: "  costs  ",
		Fields: map[string]FieldAnnotation{
			"Company Code": {Role: RolePrimaryID},
			"Quantity":     {Role: FieldRole("made_up_role")},
			"Ghost Field":  {Role: RoleJoinField},
		},
	})
	if got.Purpose != "costs" {
		t.Fatalf("purpose = %q", got.Purpose)
	}
	if _, ok := got.Fields["Ghost Field"]; ok {
		t.Fatalf("undeclared field kept")
	}
	if got.Fields["Company Code"].Role != RolePrimaryID {
		t.Fatalf("Company Code role = %q", got.Fields["Company Code"].Role)
	}
	if got.Fields["Company Code"].Type != "string" {
		t.Fatalf("Company Code type = %q, want artifact type kept", got.Fields["Company Code"].Type)
	}
	for _, name := range []string{"Quantity", "Product Cost"} {
		if got.Fields[name].Role != RoleReportingField {
			t.Fatalf("%s role = %q, want default reporting_field", name, got.Fields[name].Role)
		}
	}
}

func TestErrorCarriesContext(t *testing.T) {
	err := newError(KindInvalidState, "inv-1", StepCompleted, "session is terminal")
	var ee *Error
	if !errors.As(err, &ee) {
		t.Fatalf("errors.As failed")
	}
	if ee.Kind() != KindInvalidState || ee.ArtifactID() != "inv-1" || ee.Step() != StepCompleted {
		t.Fatalf("error context = %q/%q/%q", ee.Kind(), ee.ArtifactID(), ee.Step())
	}
	msg := err.Error()
	for _, want := range []string{"inv-1", string(StepCompleted)} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
	_ = fmt.Sprintf("%v", err)
}
