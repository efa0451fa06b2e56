package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxArtifacts matches the upstream upload-validation limit. The
// engine re-checks it rather than assuming the caller enforced it.
const DefaultMaxArtifacts = 5

// Failure describes a session that ended in StepFailed, reported separately
// from the successful annotations.
type Failure struct {
	ArtifactID string
	Step       Step // step at which the annotation call failed
	Err        error
}

// SubmitResult is what one Submit call tells the caller: the next prompt to
// display and whether the current artifact / the whole batch finished.
type SubmitResult struct {
	ArtifactID       string // artifact the reply was applied to
	ArtifactComplete bool
	BatchComplete    bool

	// Failure is set when this reply's annotation call failed; the batch has
	// already advanced past the failed artifact.
	Failure *Failure

	// NextArtifact/Prompt describe the session now accepting input; empty
	// once the batch is complete.
	NextArtifact *Artifact
	Prompt       string

	// Annotations and Failures are populated when BatchComplete is true.
	Annotations []*Annotation
	Failures    []Failure
}

// Batch drives the controller across an ordered list of artifacts, advancing
// to the next artifact when the current one reaches a terminal state. At most
// one Submit may be in flight per batch.
type Batch struct {
	mu      sync.Mutex
	busy    bool
	store   *Store
	ctrl    *Controller
	order   []*Artifact
	current int
}

// NewBatch creates one session per artifact in upload order.
func NewBatch(ctrl *Controller, artifacts []*Artifact, maxArtifacts int) (*Batch, error) {
	if maxArtifacts <= 0 {
		maxArtifacts = DefaultMaxArtifacts
	}
	if len(artifacts) == 0 {
		return nil, newError(KindEmptyBatch, "", "", "at least one artifact is required")
	}
	if len(artifacts) > maxArtifacts {
		return nil, newError(KindTooManyArtifacts, "", "",
			fmt.Sprintf("%d artifacts exceed the maximum of %d", len(artifacts), maxArtifacts))
	}
	b := &Batch{store: NewStore(), ctrl: ctrl}
	for _, a := range artifacts {
		s, err := b.store.Create(a)
		if err != nil {
			return nil, err
		}
		b.order = append(b.order, s.Artifact)
	}
	return b, nil
}

func (b *Batch) begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy {
		return newError(KindBatchBusy, "", "", "a submit is already in flight for this batch")
	}
	b.busy = true
	return nil
}

func (b *Batch) end() {
	b.mu.Lock()
	b.busy = false
	b.mu.Unlock()
}

// Submit applies one user reply to the session currently accepting input.
// Precondition failures (blank reply, complete batch, concurrent submit)
// return an error and leave the batch untouched. An annotation-call failure
// is not returned as an error: the session moves to StepFailed, the batch
// advances past it, and the failure is reported in the result.
func (b *Batch) Submit(ctx context.Context, reply string) (*SubmitResult, error) {
	if err := b.begin(); err != nil {
		return nil, err
	}
	defer b.end()

	b.mu.Lock()
	if b.current >= len(b.order) {
		b.mu.Unlock()
		return nil, newError(KindInvalidState, "", "", "batch is already complete")
	}
	artifact := b.order[b.current]
	b.mu.Unlock()

	sess, err := b.store.Get(artifact.ID)
	if err != nil {
		return nil, err
	}

	// The annotation call may block; only the busy flag guards this section.
	tr, advErr := b.ctrl.Advance(ctx, sess, reply)
	if tr == nil {
		return nil, advErr
	}
	sess, err = b.store.Apply(artifact.ID, tr)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	res := &SubmitResult{ArtifactID: artifact.ID}
	if sess.Step.Terminal() {
		res.ArtifactComplete = true
		b.current++
	}
	if tr.Cause != nil {
		res.Failure = &Failure{ArtifactID: artifact.ID, Step: failedAt(sess), Err: tr.Cause}
	}
	if b.current >= len(b.order) {
		res.BatchComplete = true
		res.Annotations, res.Failures = b.collectLocked()
		return res, nil
	}
	next, err := b.store.Get(b.order[b.current].ID)
	if err != nil {
		return nil, err
	}
	res.NextArtifact = next.Artifact
	res.Prompt = b.ctrl.Prompt(next)
	return res, nil
}

// failedAt recovers the step a failed session was at when the call failed.
func failedAt(s *Session) Step {
	var ee *Error
	if errors.As(s.Cause, &ee) {
		return ee.Step()
	}
	return s.Step
}

// CurrentArtifact returns the artifact awaiting input, or nil iff the batch
// is complete.
func (b *Batch) CurrentArtifact() *Artifact {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current >= len(b.order) {
		return nil
	}
	return b.order[b.current]
}

// Prompt returns the prompt for the session currently accepting input.
func (b *Batch) Prompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current >= len(b.order) {
		return ""
	}
	s, err := b.store.Get(b.order[b.current].ID)
	if err != nil {
		return ""
	}
	return b.ctrl.Prompt(s)
}

// Complete reports whether every session reached a terminal state.
func (b *Batch) Complete() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current >= len(b.order)
}

// Results returns the derived annotations of completed sessions in batch
// order, with failed sessions reported separately.
func (b *Batch) Results() ([]*Annotation, []Failure) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.collectLocked()
}

func (b *Batch) collectLocked() ([]*Annotation, []Failure) {
	var annotations []*Annotation
	var failures []Failure
	for _, a := range b.order {
		s, err := b.store.Get(a.ID)
		if err != nil {
			continue
		}
		switch s.Step {
		case StepCompleted:
			annotations = append(annotations, s.Derived)
		case StepFailed:
			failures = append(failures, Failure{ArtifactID: a.ID, Step: failedAt(s), Err: s.Cause})
		}
	}
	return annotations, failures
}

// Session exposes a batch session for snapshots and transcripts.
func (b *Batch) Session(artifactID string) (*Session, error) {
	return b.store.Get(artifactID)
}

// Artifacts returns the batch's artifacts in upload order.
func (b *Batch) Artifacts() []*Artifact {
	return append([]*Artifact(nil), b.order...)
}

// Snapshot describes batch progress for callers rendering state.
type Snapshot struct {
	CurrentIndex int
	Total        int
	Complete     bool
	Artifact     *Artifact
	Step         Step
	Prompt       string
	AnswerCount  int
}

func (b *Batch) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{CurrentIndex: b.current, Total: len(b.order)}
	if b.current >= len(b.order) {
		snap.Complete = true
		return snap
	}
	s, err := b.store.Get(b.order[b.current].ID)
	if err != nil {
		return snap
	}
	snap.Artifact = s.Artifact
	snap.Step = s.Step
	snap.Prompt = b.ctrl.Prompt(s)
	snap.AnswerCount = len(s.Answers)
	return snap
}
