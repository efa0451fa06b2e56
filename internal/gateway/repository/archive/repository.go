package archive

import (
	"context"
	"errors"
	"time"

	"annotify/internal/engine"
)

var ErrNotFound = errors.New("archive: batch not found")

// BatchRecord is the durable summary of a finished (or evicted) batch.
type BatchRecord struct {
	ID          string
	Status      string
	Annotations []engine.Annotation
	Failures    []FailureRecord
	CreatedAt   time.Time
	CompletedAt time.Time
}

// FailureRecord captures a per-artifact annotation failure inside a batch.
type FailureRecord struct {
	ArtifactID string `json:"artifact_id"`
	Step       string `json:"step"`
	Message    string `json:"message"`
}

// Repository archives batch outcomes beyond the in-memory session TTL.
type Repository interface {
	SaveBatch(ctx context.Context, rec *BatchRecord) error
	GetBatch(ctx context.Context, batchID string) (*BatchRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*BatchRecord, error)
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)
	Close() error
}
