package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"annotify/internal/engine"
	archiverepo "annotify/internal/gateway/repository/archive"
	artifactrepo "annotify/internal/gateway/repository/artifact"
)

var ErrNotFound = errors.New("batch not found")

const defaultBatchTTL = 2 * time.Hour

// Options tune batch limits and retention; zero values take the defaults.
type Options struct {
	MaxArtifacts   int
	TTL            time.Duration
	TranscriptPath string
}

func New(ctrl *engine.Controller, artifact artifactrepo.Store, archive archiverepo.Repository, opts Options) *Service {
	path := strings.TrimSpace(opts.TranscriptPath)
	if path == "" {
		path = defaultTranscriptArtifactPath
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultBatchTTL
	}
	max := opts.MaxArtifacts
	if max <= 0 {
		max = engine.DefaultMaxArtifacts
	}
	return &Service{
		batches:        make(map[string]*batchState),
		ctrl:           ctrl,
		artifact:       artifact,
		archive:        archive,
		maxArtifacts:   max,
		ttl:            ttl,
		transcriptPath: path,
	}
}

// CreateBatch opens a new batch over the uploaded artifacts and returns the
// first prompt.
func (s *Service) CreateBatch(ctx context.Context, artifacts []*engine.Artifact) (*BatchView, error) {
	b, err := engine.NewBatch(s.ctrl, artifacts, s.maxArtifacts)
	if err != nil {
		return nil, err
	}

	st := &batchState{
		id:        newBatchID(),
		batch:     b,
		createdAt: time.Now(),
		updatedAt: time.Now(),
		changed:   make(chan struct{}),
	}

	s.mu.Lock()
	s.batches[st.id] = st
	st.appendTranscriptLocked("assistant", b.Prompt(), firstArtifactID(b))
	raw := s.buildTranscriptSnapshotLocked(st)
	view := s.viewLocked(st)
	s.mu.Unlock()

	s.persistTranscript(ctx, st.id, raw)
	return view, nil
}

func firstArtifactID(b *engine.Batch) string {
	if a := b.CurrentArtifact(); a != nil {
		return a.ID
	}
	return ""
}

// Submit applies one user reply to the batch's current artifact.
func (s *Service) Submit(ctx context.Context, batchID, reply string) (*SubmitView, error) {
	s.mu.Lock()
	st, ok := s.batches[strings.TrimSpace(batchID)]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	b := st.batch
	s.mu.Unlock()

	// The engine's busy flag turns a concurrent submit into BatchBusy, so the
	// annotate call runs outside the service lock.
	res, err := b.Submit(ctx, reply)
	if err != nil {
		return nil, err
	}

	view := &SubmitView{
		BatchID:          st.id,
		ArtifactID:       res.ArtifactID,
		ArtifactComplete: res.ArtifactComplete,
		BatchComplete:    res.BatchComplete,
		Prompt:           res.Prompt,
	}
	if res.NextArtifact != nil {
		view.NextArtifactID = res.NextArtifact.ID
	}
	if res.Failure != nil {
		view.Failure = &FailureView{
			ArtifactID: res.Failure.ArtifactID,
			Step:       string(res.Failure.Step),
			Message:    res.Failure.Err.Error(),
		}
	}

	s.mu.Lock()
	st.updatedAt = time.Now()
	st.appendTranscriptLocked("user", reply, res.ArtifactID)
	if res.Failure != nil {
		st.appendTranscriptLocked("assistant", fmt.Sprintf("annotation failed: %v", res.Failure.Err), res.ArtifactID)
	}
	if res.Prompt != "" {
		st.appendTranscriptLocked("assistant", res.Prompt, view.NextArtifactID)
	}
	raw := s.buildTranscriptSnapshotLocked(st)
	notifyLocked(st)
	s.mu.Unlock()

	s.persistTranscript(ctx, st.id, raw)

	if res.BatchComplete {
		view.Results = &ResultsView{
			BatchID:     st.id,
			Status:      batchStatus(b),
			Annotations: res.Annotations,
			Failures:    failureViews(res.Failures),
		}
		s.finishBatch(ctx, st, view.Results)
		view.Results.ReportURL = s.reportURL(ctx, st.id)
	}
	return view, nil
}

// Snapshot returns the batch's current position and prompt.
func (s *Service) Snapshot(batchID string) (*BatchView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.batches[strings.TrimSpace(batchID)]
	if !ok {
		return nil, ErrNotFound
	}
	return s.viewLocked(st), nil
}

// Results returns the terminal outcome. For a live batch it reports whatever
// has finished so far; evicted batches fall back to the archive.
func (s *Service) Results(ctx context.Context, batchID string) (*ResultsView, error) {
	batchID = strings.TrimSpace(batchID)
	s.mu.Lock()
	st, ok := s.batches[batchID]
	s.mu.Unlock()
	if ok {
		annotations, failures := st.batch.Results()
		view := &ResultsView{
			BatchID:     st.id,
			Status:      batchStatus(st.batch),
			Annotations: annotations,
			Failures:    failureViews(failures),
		}
		if st.batch.Complete() {
			view.ReportURL = s.reportURL(ctx, st.id)
		}
		return view, nil
	}

	if s.archive == nil {
		return nil, ErrNotFound
	}
	rec, err := s.archive.GetBatch(ctx, batchID)
	if errors.Is(err, archiverepo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load archived batch: %w", err)
	}
	view := &ResultsView{BatchID: rec.ID, Status: rec.Status}
	for i := range rec.Annotations {
		view.Annotations = append(view.Annotations, &rec.Annotations[i])
	}
	for _, f := range rec.Failures {
		view.Failures = append(view.Failures, FailureView(f))
	}
	view.ReportURL = s.reportURL(ctx, batchID)
	return view, nil
}

// ListRecent merges live batches with recently archived ones, newest first.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*BatchSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.Lock()
	out := make([]*BatchSummary, 0, len(s.batches))
	seen := make(map[string]bool, len(s.batches))
	for _, st := range s.batches {
		out = append(out, &BatchSummary{
			BatchID:   st.id,
			Status:    batchStatus(st.batch),
			CreatedAt: st.createdAt,
		})
		seen[st.id] = true
	}
	s.mu.Unlock()

	if s.archive != nil {
		recs, err := s.archive.ListRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("list archived batches: %w", err)
		}
		for _, rec := range recs {
			if seen[rec.ID] {
				continue
			}
			completed := rec.CompletedAt
			out = append(out, &BatchSummary{
				BatchID:     rec.ID,
				Status:      rec.Status,
				CreatedAt:   rec.CreatedAt,
				CompletedAt: &completed,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) reportURL(ctx context.Context, batchID string) string {
	if s.artifact == nil {
		return ""
	}
	url, err := s.artifact.GetURL(ctx, batchID, reportArtifactPath)
	if err != nil {
		log.Printf("report URL for batch %s: %v", batchID, err)
		return ""
	}
	return url
}

// Subscribe emits batch snapshots until ctx is canceled or the batch is gone.
func (s *Service) Subscribe(ctx context.Context, batchID string) (<-chan *SubscriptionEvent, error) {
	batchID = strings.TrimSpace(batchID)
	s.mu.Lock()
	_, ok := s.batches[batchID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	out := make(chan *SubscriptionEvent, 8)

	go func() {
		defer close(out)
		for {
			s.mu.Lock()
			st, ok := s.batches[batchID]
			if !ok {
				s.mu.Unlock()
				pushEvent(out, &SubscriptionEvent{Kind: SubscriptionEventClosed})
				return
			}
			view := s.viewLocked(st)
			ch := st.changed
			s.mu.Unlock()

			pushEvent(out, &SubscriptionEvent{Kind: SubscriptionEventSnapshot, Snapshot: view})

			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()

	return out, nil
}

// CleanupExpired evicts terminal batches idle past the TTL, archiving any
// that have not been archived yet. It returns the number evicted.
func (s *Service) CleanupExpired(ctx context.Context) int {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*batchState
	for id, st := range s.batches {
		if st.batch.Complete() && st.updatedAt.Before(cutoff) {
			expired = append(expired, st)
			delete(s.batches, id)
			notifyLocked(st)
		}
	}
	s.mu.Unlock()

	for _, st := range expired {
		if !st.archived {
			annotations, failures := st.batch.Results()
			s.archiveBatch(ctx, st, &ResultsView{
				BatchID:     st.id,
				Status:      batchStatus(st.batch),
				Annotations: annotations,
				Failures:    failureViews(failures),
			})
		}
	}
	if s.archive != nil {
		if _, err := s.archive.CleanupExpired(ctx, 30*24*time.Hour); err != nil {
			log.Printf("archive cleanup failed: %v", err)
		}
	}
	return len(expired)
}

// StartEviction runs CleanupExpired on a ticker until ctx is canceled.
func (s *Service) StartEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.CleanupExpired(ctx); n > 0 {
					log.Printf("evicted %d expired batches", n)
				}
			}
		}
	}()
}

func failureViews(failures []engine.Failure) []FailureView {
	out := make([]FailureView, 0, len(failures))
	for _, f := range failures {
		out = append(out, FailureView{
			ArtifactID: f.ArtifactID,
			Step:       string(f.Step),
			Message:    f.Err.Error(),
		})
	}
	return out
}
