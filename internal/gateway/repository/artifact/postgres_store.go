package artifact

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreDSN opens a pgx-backed store from a DSN.
func NewPostgresStoreDSN(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS artifact_files (
    id SERIAL PRIMARY KEY,
    batch_id TEXT NOT NULL,
    path TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    UNIQUE(batch_id, path)
);
CREATE INDEX IF NOT EXISTS idx_artifacts_batch_id ON artifact_files(batch_id);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, batchID, path string, content []byte) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	batchID = strings.TrimSpace(batchID)
	path = strings.TrimSpace(path)
	if batchID == "" {
		return fmt.Errorf("batch_id is required")
	}
	if path == "" {
		return fmt.Errorf("path is required")
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	size := int64(len(content))
	_, err := s.db.ExecContext(ctx, `
INSERT INTO artifact_files (batch_id, path, content, size, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (batch_id, path)
DO UPDATE SET content=EXCLUDED.content, size=EXCLUDED.size, updated_at=EXCLUDED.updated_at
`, batchID, path, content, size, time.Now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, batchID, path string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	batchID = strings.TrimSpace(batchID)
	path = strings.TrimSpace(path)
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	var content []byte
	err := s.db.QueryRowContext(ctx, `SELECT content FROM artifact_files WHERE batch_id=$1 AND path=$2`, batchID, path).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return content, err
}

func (s *PostgresStore) List(ctx context.Context, batchID string) ([]string, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("batch_id is required")
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM artifact_files WHERE batch_id=$1 ORDER BY path`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			continue
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (s *PostgresStore) GetURL(ctx context.Context, batchID, path string) (string, error) {
	// Postgres store doesn't support URLs (content is stored as BLOB).
	return "", nil
}
