package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// scriptAnnotator answers confirm_fields with a fixed role mapping and
// incorporate_purpose with the reply as the purpose.
func scriptAnnotator() Annotator {
	return annotatorFunc(func(_ context.Context, req AnnotateRequest) (*Annotation, error) {
		if req.Task == TaskConfirmFields {
			return confirmResult(req.Artifact.ID), nil
		}
		out := req.Working.clone()
		out.Purpose = req.Reply
		return out, nil
	})
}

func TestNewBatchEmpty(t *testing.T) {
	_, err := NewBatch(NewController(scriptAnnotator(), time.Second), nil, 0)
	if !IsEmptyBatch(err) {
		t.Fatalf("NewBatch(nil) error = %v, want EmptyBatch", err)
	}
}

func TestNewBatchTooManyArtifacts(t *testing.T) {
	var artifacts []*Artifact
	for i := 0; i < 6; i++ {
		artifacts = append(artifacts, testArtifact(fmt.Sprintf("a%d", i)))
	}
	_, err := NewBatch(NewController(scriptAnnotator(), time.Second), artifacts, 5)
	if !IsTooManyArtifacts(err) {
		t.Fatalf("NewBatch(6) error = %v, want TooManyArtifacts", err)
	}
	if _, err := NewBatch(NewController(scriptAnnotator(), time.Second), artifacts[:5], 5); err != nil {
		t.Fatalf("NewBatch(5) error = %v", err)
	}
}

func TestBatchDrivesTwoArtifactsInOrder(t *testing.T) {
	ctrl := NewController(scriptAnnotator(), time.Second)
	b, err := NewBatch(ctrl, []*Artifact{testArtifact("inv"), testArtifact("sales")}, 0)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	if got := b.CurrentArtifact().ID; got != "inv" {
		t.Fatalf("CurrentArtifact() = %q, want inv", got)
	}

	res, err := b.Submit(context.Background(), "yes")
	if err != nil {
		t.Fatalf("Submit(1) error = %v", err)
	}
	if res.ArtifactComplete || res.BatchComplete {
		t.Fatalf("Submit(1) completed early: %+v", res)
	}
	if res.NextArtifact.ID != "inv" {
		t.Fatalf("Submit(1) next artifact = %q, want inv still in progress", res.NextArtifact.ID)
	}

	res, err = b.Submit(context.Background(), "monthly cost by vendor")
	if err != nil {
		t.Fatalf("Submit(2) error = %v", err)
	}
	if !res.ArtifactComplete {
		t.Fatalf("Submit(2) artifact not complete")
	}
	if res.BatchComplete {
		t.Fatalf("Submit(2) batch complete with one artifact left")
	}
	if res.NextArtifact.ID != "sales" {
		t.Fatalf("Submit(2) next artifact = %q, want sales", res.NextArtifact.ID)
	}
	if b.Snapshot().CurrentIndex != 1 {
		t.Fatalf("currentIndex = %d, want 1", b.Snapshot().CurrentIndex)
	}
	// Artifact 2 was never prompted before its turn.
	sales, _ := b.Session("sales")
	if len(sales.Answers) != 0 || sales.Step != StepAwaitFieldConfirmation {
		t.Fatalf("artifact 2 touched early: %+v", sales)
	}

	if _, err := b.Submit(context.Background(), "ok"); err != nil {
		t.Fatalf("Submit(3) error = %v", err)
	}
	res, err = b.Submit(context.Background(), "sales records by region")
	if err != nil {
		t.Fatalf("Submit(4) error = %v", err)
	}
	if !res.BatchComplete {
		t.Fatalf("batch not complete after both artifacts")
	}
	if len(res.Annotations) != 2 {
		t.Fatalf("annotations = %d, want 2", len(res.Annotations))
	}
	if res.Annotations[0].ArtifactID != "inv" || res.Annotations[1].ArtifactID != "sales" {
		t.Fatalf("annotations out of upload order: %s, %s",
			res.Annotations[0].ArtifactID, res.Annotations[1].ArtifactID)
	}
	if b.CurrentArtifact() != nil {
		t.Fatalf("CurrentArtifact() != nil on complete batch")
	}
}

func TestBatchCurrentIndexMonotonic(t *testing.T) {
	ctrl := NewController(scriptAnnotator(), time.Second)
	b, _ := NewBatch(ctrl, []*Artifact{testArtifact("a"), testArtifact("b")}, 0)

	last := b.Snapshot().CurrentIndex
	replies := []string{"", "yes", "purpose a", "  ", "yes", "purpose b", "late"}
	for _, reply := range replies {
		_, _ = b.Submit(context.Background(), reply)
		now := b.Snapshot().CurrentIndex
		if now < last {
			t.Fatalf("currentIndex decreased: %d -> %d", last, now)
		}
		last = now
	}
	if !b.Complete() {
		t.Fatalf("batch not complete")
	}
}

func TestBatchBlankReplyLeavesStateUnchanged(t *testing.T) {
	ctrl := NewController(scriptAnnotator(), time.Second)
	b, _ := NewBatch(ctrl, []*Artifact{testArtifact("a")}, 0)

	before := b.Snapshot()
	_, err := b.Submit(context.Background(), "   ")
	if !IsEmptyReply(err) {
		t.Fatalf("Submit(blank) error = %v, want EmptyReply", err)
	}
	after := b.Snapshot()
	if after.Step != before.Step || after.AnswerCount != before.AnswerCount || after.CurrentIndex != before.CurrentIndex {
		t.Fatalf("blank reply changed state: before=%+v after=%+v", before, after)
	}
}

func TestBatchSubmitAfterCompleteFails(t *testing.T) {
	ctrl := NewController(scriptAnnotator(), time.Second)
	b, _ := NewBatch(ctrl, []*Artifact{testArtifact("a")}, 0)
	if _, err := b.Submit(context.Background(), "yes"); err != nil {
		t.Fatalf("Submit(1) error = %v", err)
	}
	if _, err := b.Submit(context.Background(), "purpose"); err != nil {
		t.Fatalf("Submit(2) error = %v", err)
	}
	_, err := b.Submit(context.Background(), "extra")
	if !IsInvalidState(err) {
		t.Fatalf("Submit(complete) error = %v, want InvalidState", err)
	}
}

func TestBatchFailedArtifactDoesNotBlockTheRest(t *testing.T) {
	boom := errors.New("annotate timed out")
	ann := annotatorFunc(func(_ context.Context, req AnnotateRequest) (*Annotation, error) {
		if req.Artifact.ID == "bad" && req.Task == TaskIncorporatePurpose {
			return nil, boom
		}
		if req.Task == TaskConfirmFields {
			return confirmResult(req.Artifact.ID), nil
		}
		out := req.Working.clone()
		out.Purpose = req.Reply
		return out, nil
	})
	ctrl := NewController(ann, time.Second)
	b, _ := NewBatch(ctrl, []*Artifact{testArtifact("bad"), testArtifact("good")}, 0)

	if _, err := b.Submit(context.Background(), "yes"); err != nil {
		t.Fatalf("Submit(confirm bad) error = %v", err)
	}
	res, err := b.Submit(context.Background(), "purpose for bad")
	if err != nil {
		t.Fatalf("Submit(fail bad) error = %v (failures are reported in the result)", err)
	}
	if res.Failure == nil {
		t.Fatalf("Submit(fail bad) result has no failure: %+v", res)
	}
	if res.Failure.Step != StepAwaitPurposeDescription {
		t.Fatalf("failure step = %q, want purpose step", res.Failure.Step)
	}
	if !errors.Is(res.Failure.Err, boom) {
		t.Fatalf("failure err = %v, want wrapped cause", res.Failure.Err)
	}
	if !res.ArtifactComplete || res.BatchComplete {
		t.Fatalf("failure did not advance correctly: %+v", res)
	}
	if res.NextArtifact.ID != "good" {
		t.Fatalf("next artifact = %q, want good", res.NextArtifact.ID)
	}

	// The failed session keeps its confirm answer.
	bad, _ := b.Session("bad")
	if bad.Status() != StatusFailed || len(bad.Answers) != 1 {
		t.Fatalf("bad session: status=%q answers=%d", bad.Status(), len(bad.Answers))
	}

	if _, err := b.Submit(context.Background(), "yes"); err != nil {
		t.Fatalf("Submit(confirm good) error = %v", err)
	}
	res, err = b.Submit(context.Background(), "purpose for good")
	if err != nil {
		t.Fatalf("Submit(complete good) error = %v", err)
	}
	if !res.BatchComplete {
		t.Fatalf("batch not complete")
	}
	if len(res.Annotations) != 1 || res.Annotations[0].ArtifactID != "good" {
		t.Fatalf("annotations = %+v, want only good", res.Annotations)
	}
	if len(res.Failures) != 1 || res.Failures[0].ArtifactID != "bad" {
		t.Fatalf("failures = %+v, want only bad", res.Failures)
	}
}

func TestBatchConcurrentSubmitFailsFast(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	ann := annotatorFunc(func(ctx context.Context, _ AnnotateRequest) (*Annotation, error) {
		close(started)
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return confirmResult("a"), nil
	})
	b, _ := NewBatch(NewController(ann, time.Second), []*Artifact{testArtifact("a")}, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = b.Submit(context.Background(), "yes")
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("first submit never reached the annotator")
	}
	_, err := b.Submit(context.Background(), "interleaved")
	if !IsBatchBusy(err) {
		t.Fatalf("concurrent Submit() error = %v, want BatchBusy", err)
	}
	close(block)
	wg.Wait()
}
