package memory

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/RMahshie/hearcheck/internal/repository"
)

// MemoryKVStore keeps values in process memory; everything is lost on exit
type MemoryKVStore struct {
	c *cache.Cache
}

// NewMemoryKVStore creates an empty in-memory store
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{c: cache.New(cache.NoExpiration, 0)}
}

func (s *MemoryKVStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, repository.ErrKeyNotFound
	}
	stored := v.([]byte)
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryKVStore) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.c.Set(key, stored, cache.NoExpiration)
	return nil
}

func (s *MemoryKVStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *MemoryKVStore) Close() error {
	s.c.Flush()
	return nil
}
