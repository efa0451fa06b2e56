package artifact

import (
	"context"
	"errors"
	"mime"
	"path/filepath"
	"strings"
)

// Store defines operations for persisting batch artifacts: conversation
// transcripts, annotation reports, and any payloads the caller attaches.
type Store interface {
	Put(ctx context.Context, batchID, path string, content []byte) error
	Get(ctx context.Context, batchID, path string) ([]byte, error)
	GetURL(ctx context.Context, batchID, path string) (string, error)
	List(ctx context.Context, batchID string) ([]string, error)
}

var ErrNotFound = errors.New("artifact not found")

// cleanKey normalizes and validates the (batch, path) pair every backend
// keys artifacts by. Paths are slash-separated and never absolute.
func cleanKey(batchID, path string) (string, string, error) {
	batchID = strings.TrimSpace(batchID)
	path = strings.Trim(strings.TrimSpace(path), "/")
	if batchID == "" {
		return "", "", errors.New("batch id is required")
	}
	if path == "" {
		return "", "", errors.New("artifact path is required")
	}
	return batchID, path, nil
}

// contentTypeFor maps an artifact path to its MIME type. Transcripts and
// annotation reports are JSON documents; anything unrecognized is stored as
// an opaque blob.
func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
