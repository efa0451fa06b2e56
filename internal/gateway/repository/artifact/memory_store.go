package artifact

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps batch artifacts in process memory, grouped per batch the
// way the S3 backend groups objects under a batch prefix. It backs local
// development and tests; contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{batches: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, batchID, path string, content []byte) error {
	batchID, path, err := cleanKey(batchID, path)
	if err != nil {
		return err
	}
	buf := make([]byte, len(content))
	copy(buf, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	objects := s.batches[batchID]
	if objects == nil {
		objects = make(map[string][]byte)
		s.batches[batchID] = objects
	}
	objects[path] = buf
	return nil
}

func (s *MemoryStore) Get(_ context.Context, batchID, path string) ([]byte, error) {
	batchID, path, err := cleanKey(batchID, path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.batches[batchID][path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

// GetURL reports no URL: in-memory contents are not addressable from outside
// the process. Callers fall back to fetching the content over the API.
func (s *MemoryStore) GetURL(context.Context, string, string) (string, error) {
	return "", nil
}

func (s *MemoryStore) List(_ context.Context, batchID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects := s.batches[batchID]
	paths := make([]string, 0, len(objects))
	for path := range objects {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}
