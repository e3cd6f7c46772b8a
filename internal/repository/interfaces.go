package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/hearcheck/pkg/models"
)

var (
	// ErrKeyNotFound is returned by KeyValueStore.Get for an absent key
	ErrKeyNotFound = errors.New("key not found")
	// ErrIndexOutOfRange is returned when deleting a record position that does not exist
	ErrIndexOutOfRange = errors.New("result index out of range")
)

// KeyValueStore is the durable storage the result list lives in
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ResultRepository defines the interface for finalized test result operations
type ResultRepository interface {
	Append(ctx context.Context, record models.TestResultRecord) error
	DeleteAt(ctx context.Context, index int) error
	DeleteAll(ctx context.Context) error
	ListAll(ctx context.Context) ([]models.TestResultRecord, error)
}
