// Package pebblestore stores the result list in an embedded Pebble database.
package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/RMahshie/hearcheck/internal/repository"
)

const (
	keyPrefix             = "kv|"
	defaultCacheSizeBytes = int64(8 << 20)
)

var errStoreClosed = errors.New("pebblestore: store is closed")

// PebbleKVStore implements KeyValueStore on a Pebble LSM directory
type PebbleKVStore struct {
	db    *pebble.DB
	cache *pebble.Cache // owned; unref'd on Close

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the database directory at path
func Open(path string) (*PebbleKVStore, error) {
	cache := pebble.NewCache(defaultCacheSizeBytes)
	db, err := pebble.Open(path, &pebble.Options{Cache: cache})
	if err != nil {
		cache.Unref()
		return nil, fmt.Errorf("failed to open pebble at %s: %w", path, err)
	}
	return &PebbleKVStore{db: db, cache: cache}, nil
}

func (s *PebbleKVStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}

	data, closer, err := s.db.Get(storeKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, repository.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// data is only valid until closer.Close
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *PebbleKVStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}
	return s.db.Set(storeKey(key), value, pebble.Sync)
}

func (s *PebbleKVStore) Delete(_ context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errStoreClosed
	}
	return s.db.Delete(storeKey(key), pebble.Sync)
}

func (s *PebbleKVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	s.cache.Unref()
	return err
}

func storeKey(key string) []byte {
	return []byte(keyPrefix + key)
}
