package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	// WAL keeps readers from blocking the archival writes.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping archive database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize archive schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS batches (
		batch_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		annotations_json TEXT NOT NULL,
		failures_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_batches_completed ON batches(completed_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create archive schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveBatch(ctx context.Context, rec *BatchRecord) error {
	annotations, err := json.Marshal(rec.Annotations)
	if err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}
	failures, err := json.Marshal(rec.Failures)
	if err != nil {
		return fmt.Errorf("encode failures: %w", err)
	}

	query := `
	INSERT INTO batches (batch_id, status, annotations_json, failures_json, created_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(batch_id) DO UPDATE SET
		status = excluded.status,
		annotations_json = excluded.annotations_json,
		failures_json = excluded.failures_json,
		completed_at = excluded.completed_at`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Status, string(annotations), string(failures),
		rec.CreatedAt.Unix(), rec.CompletedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert batch record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*BatchRecord, error) {
	query := `
	SELECT batch_id, status, annotations_json, failures_json, created_at, completed_at
	FROM batches WHERE batch_id = ?`

	rec, err := scanBatch(s.db.QueryRowContext(ctx, query, batchID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch record: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*BatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
	SELECT batch_id, status, annotations_json, failures_json, created_at, completed_at
	FROM batches ORDER BY completed_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent batches: %w", err)
	}
	defer rows.Close()

	var recs []*BatchRecord
	for rows.Next() {
		rec, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch rows: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE completed_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired batches: %w", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*BatchRecord, error) {
	var rec BatchRecord
	var annotations, failures string
	var createdAt, completedAt int64

	if err := row.Scan(&rec.ID, &rec.Status, &annotations, &failures, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(annotations), &rec.Annotations); err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}
	if err := json.Unmarshal([]byte(failures), &rec.Failures); err != nil {
		return nil, fmt.Errorf("decode failures: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.CompletedAt = time.Unix(completedAt, 0)
	return &rec, nil
}
