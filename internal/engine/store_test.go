package engine

import "testing"

func TestStoreCreateRejectsDuplicate(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(testArtifact("a")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err := st.Create(testArtifact("a"))
	if !IsDuplicateSession(err) {
		t.Fatalf("Create(duplicate) error = %v, want DuplicateSession", err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	st := NewStore()
	_, err := st.Get("nope")
	if !IsNotFound(err) {
		t.Fatalf("Get(missing) error = %v, want NotFound", err)
	}
}

func TestStoreCreateCopiesArtifact(t *testing.T) {
	st := NewStore()
	src := testArtifact("a")
	sess, err := st.Create(src)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	src.Fields["Injected"] = "string"
	if _, ok := sess.Artifact.Fields["Injected"]; ok {
		t.Fatalf("session artifact shares the caller's field map")
	}
}

func TestStoreApplyRejectsTerminal(t *testing.T) {
	st := NewStore()
	sess, _ := st.Create(testArtifact("a"))
	if _, err := st.Apply("a", &Transition{Step: StepFailed, Cause: newError(KindAnnotationCall, "a", StepAwaitFieldConfirmation, "boom")}); err != nil {
		t.Fatalf("Apply(fail) error = %v", err)
	}
	if sess.Step != StepFailed {
		t.Fatalf("step = %q", sess.Step)
	}
	_, err := st.Apply("a", &Transition{Step: StepCompleted})
	if !IsInvalidState(err) {
		t.Fatalf("Apply(terminal) error = %v, want InvalidState", err)
	}
}
