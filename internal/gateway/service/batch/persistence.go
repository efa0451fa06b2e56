package batch

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	archiverepo "annotify/internal/gateway/repository/archive"
)

func (st *batchState) appendTranscriptLocked(role, content, artifactID string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	st.transcript = append(st.transcript, transcriptMessage{
		Seq:             len(st.transcript) + 1,
		Role:            role,
		Content:         content,
		ArtifactID:      artifactID,
		CreatedAtUnixMs: time.Now().UnixMilli(),
	})
}

func (s *Service) buildTranscriptSnapshotLocked(st *batchState) []byte {
	if s == nil || s.artifact == nil || st == nil {
		return nil
	}
	doc := transcriptArtifact{
		BatchID:  st.id,
		Messages: append([]transcriptMessage(nil), st.transcript...),
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Printf("transcript snapshot marshal failed for batch %s: %v", st.id, err)
		return nil
	}
	return raw
}

func (s *Service) persistTranscript(ctx context.Context, batchID string, raw []byte) {
	if s == nil || s.artifact == nil || len(raw) == 0 || strings.TrimSpace(batchID) == "" {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.artifact.Put(ctx, batchID, s.transcriptPath, raw); err != nil {
		log.Printf("persist transcript artifact failed for batch %s: %v", batchID, err)
	}
}

// finishBatch writes the report artifact and archives the terminal outcome.
func (s *Service) finishBatch(ctx context.Context, st *batchState, results *ResultsView) {
	if s.artifact != nil {
		raw, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			log.Printf("report marshal failed for batch %s: %v", st.id, err)
		} else if err := s.artifact.Put(ctx, st.id, reportArtifactPath, raw); err != nil {
			log.Printf("persist report artifact failed for batch %s: %v", st.id, err)
		}
	}
	s.archiveBatch(ctx, st, results)
}

func (s *Service) archiveBatch(ctx context.Context, st *batchState, results *ResultsView) {
	if s.archive == nil {
		return
	}
	rec := &archiverepo.BatchRecord{
		ID:          st.id,
		Status:      results.Status,
		CreatedAt:   st.createdAt,
		CompletedAt: time.Now(),
	}
	for _, a := range results.Annotations {
		rec.Annotations = append(rec.Annotations, *a)
	}
	for _, f := range results.Failures {
		rec.Failures = append(rec.Failures, archiverepo.FailureRecord(f))
	}
	if err := s.archive.SaveBatch(ctx, rec); err != nil {
		log.Printf("archive batch %s failed: %v", st.id, err)
		return
	}
	s.mu.Lock()
	st.archived = true
	s.mu.Unlock()
}
