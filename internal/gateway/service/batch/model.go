package batch

import (
	"fmt"
	"sync"
	"time"

	"annotify/internal/engine"
	archiverepo "annotify/internal/gateway/repository/archive"
	artifactrepo "annotify/internal/gateway/repository/artifact"
)

const defaultTranscriptArtifactPath = "interaction/conversation_history.json"
const reportArtifactPath = "report/annotations.json"

type Service struct {
	mu      sync.Mutex
	batches map[string]*batchState

	ctrl     *engine.Controller
	artifact artifactrepo.Store
	archive  archiverepo.Repository

	maxArtifacts   int
	ttl            time.Duration
	transcriptPath string
}

type batchState struct {
	id         string
	batch      *engine.Batch
	transcript []transcriptMessage
	archived   bool
	createdAt  time.Time
	updatedAt  time.Time
	changed    chan struct{}
}

type transcriptMessage struct {
	Seq             int    `json:"seq"`
	Role            string `json:"role"`
	Content         string `json:"content"`
	ArtifactID      string `json:"artifact_id,omitempty"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms"`
}

type transcriptArtifact struct {
	BatchID  string              `json:"batch_id"`
	Messages []transcriptMessage `json:"messages"`
}

// BatchView is the wire shape of a batch snapshot.
type BatchView struct {
	BatchID      string `json:"batch_id"`
	Status       string `json:"status"`
	CurrentIndex int    `json:"current_index"`
	Total        int    `json:"total"`
	ArtifactID   string `json:"artifact_id,omitempty"`
	Step         string `json:"step,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	AnswerCount  int    `json:"answer_count"`
}

// SubmitView is the wire shape of one submit outcome.
type SubmitView struct {
	BatchID          string       `json:"batch_id"`
	ArtifactID       string       `json:"artifact_id"`
	ArtifactComplete bool         `json:"artifact_complete"`
	BatchComplete    bool         `json:"batch_complete"`
	Failure          *FailureView `json:"failure,omitempty"`
	NextArtifactID   string       `json:"next_artifact_id,omitempty"`
	Prompt           string       `json:"prompt,omitempty"`
	Results          *ResultsView `json:"results,omitempty"`
}

// FailureView reports one artifact whose annotation call failed.
type FailureView struct {
	ArtifactID string `json:"artifact_id"`
	Step       string `json:"step"`
	Message    string `json:"message"`
}

// ResultsView is the terminal output of a batch: annotations in upload order
// plus the artifacts that failed. ReportURL points at the persisted report
// when the artifact backend can serve one.
type ResultsView struct {
	BatchID     string               `json:"batch_id"`
	Status      string               `json:"status"`
	Annotations []*engine.Annotation `json:"annotations"`
	Failures    []FailureView        `json:"failures"`
	ReportURL   string               `json:"report_url,omitempty"`
}

// BatchSummary is one row of the recent-batches listing. Live batches report
// no completion time.
type BatchSummary struct {
	BatchID     string     `json:"batch_id"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type SubscriptionEventKind string

const (
	SubscriptionEventSnapshot SubscriptionEventKind = "snapshot"
	SubscriptionEventClosed   SubscriptionEventKind = "closed"
)

type SubscriptionEvent struct {
	Kind     SubscriptionEventKind `json:"kind"`
	Snapshot *BatchView            `json:"snapshot,omitempty"`
}

func notifyLocked(st *batchState) {
	if st == nil {
		return
	}
	close(st.changed)
	st.changed = make(chan struct{})
}

func pushEvent(out chan *SubscriptionEvent, ev *SubscriptionEvent) {
	if out == nil || ev == nil {
		return
	}
	select {
	case out <- ev:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- ev:
	default:
	}
}

func newBatchID() string {
	return fmt.Sprintf("batch-%d", time.Now().UnixNano())
}

func batchStatus(b *engine.Batch) string {
	if !b.Complete() {
		return "active"
	}
	annotations, failures := b.Results()
	if len(annotations) == 0 && len(failures) > 0 {
		return "failed"
	}
	return "completed"
}

func (s *Service) viewLocked(st *batchState) *BatchView {
	snap := st.batch.Snapshot()
	view := &BatchView{
		BatchID:      st.id,
		Status:       batchStatus(st.batch),
		CurrentIndex: snap.CurrentIndex,
		Total:        snap.Total,
		Prompt:       snap.Prompt,
		AnswerCount:  snap.AnswerCount,
	}
	if snap.Artifact != nil {
		view.ArtifactID = snap.Artifact.ID
		view.Step = string(snap.Step)
	}
	return view
}
