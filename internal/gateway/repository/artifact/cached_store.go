package artifact

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore is a read-through LRU in front of another Store. Writes go to
// the backend and refresh the cache; reads hit the backend only on a miss.
type CachedStore struct {
	backend Store
	cache   *lru.Cache[string, []byte]
}

func NewCachedStore(backend Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{backend: backend, cache: cache}, nil
}

func cacheKey(batchID, path string) string {
	return strings.TrimSpace(batchID) + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

func (s *CachedStore) Put(ctx context.Context, batchID, path string, content []byte) error {
	if err := s.backend.Put(ctx, batchID, path, content); err != nil {
		return err
	}
	s.cache.Add(cacheKey(batchID, path), append([]byte(nil), content...))
	return nil
}

func (s *CachedStore) Get(ctx context.Context, batchID, path string) ([]byte, error) {
	if raw, ok := s.cache.Get(cacheKey(batchID, path)); ok {
		return append([]byte(nil), raw...), nil
	}
	raw, err := s.backend.Get(ctx, batchID, path)
	if err != nil {
		return nil, err
	}
	s.cache.Add(cacheKey(batchID, path), append([]byte(nil), raw...))
	return raw, nil
}

func (s *CachedStore) GetURL(ctx context.Context, batchID, path string) (string, error) {
	return s.backend.GetURL(ctx, batchID, path)
}

func (s *CachedStore) List(ctx context.Context, batchID string) ([]string, error) {
	return s.backend.List(ctx, batchID)
}
