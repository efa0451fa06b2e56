package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"annotify/internal/engine"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &BatchRecord{
		ID:     "b1",
		Status: "completed",
		Annotations: []engine.Annotation{{
			ArtifactID: "orders.csv",
			Purpose:    "daily order export",
			Fields: map[string]engine.FieldAnnotation{
				"order_id": {Type: "string", Role: engine.RolePrimaryID},
			},
		}},
		CreatedAt:   time.Now().Add(-time.Minute),
		CompletedAt: time.Now(),
	}
	if err := store.SaveBatch(ctx, rec); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}

	got, err := store.GetBatch(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if got.Status != "completed" {
		t.Fatalf("GetBatch() status = %q, want %q", got.Status, "completed")
	}
	if len(got.Annotations) != 1 || got.Annotations[0].Purpose != "daily order export" {
		t.Fatalf("GetBatch() annotations = %+v", got.Annotations)
	}
}

func TestGetBatchMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetBatch(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBatch() error = %v, want ErrNotFound", err)
	}
}

func TestSaveBatchUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := &BatchRecord{ID: "b1", Status: "active", CreatedAt: time.Now(), CompletedAt: time.Now()}
	if err := store.SaveBatch(ctx, rec); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}
	rec.Status = "completed"
	if err := store.SaveBatch(ctx, rec); err != nil {
		t.Fatalf("SaveBatch() upsert error = %v", err)
	}

	got, err := store.GetBatch(ctx, "b1")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if got.Status != "completed" {
		t.Fatalf("GetBatch() status = %q after upsert, want %q", got.Status, "completed")
	}
}

func TestCleanupExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &BatchRecord{ID: "old", Status: "completed", CreatedAt: time.Now().Add(-48 * time.Hour), CompletedAt: time.Now().Add(-48 * time.Hour)}
	fresh := &BatchRecord{ID: "fresh", Status: "completed", CreatedAt: time.Now(), CompletedAt: time.Now()}
	for _, rec := range []*BatchRecord{old, fresh} {
		if err := store.SaveBatch(ctx, rec); err != nil {
			t.Fatalf("SaveBatch(%s) error = %v", rec.ID, err)
		}
	}

	n, err := store.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("CleanupExpired() removed %d rows, want 1", n)
	}
	if _, err := store.GetBatch(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetBatch(old) error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetBatch(ctx, "fresh"); err != nil {
		t.Fatalf("GetBatch(fresh) error = %v", err)
	}
}
