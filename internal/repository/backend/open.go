// Package backend opens the key-value store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/internal/config"
	"github.com/RMahshie/hearcheck/internal/repository"
	"github.com/RMahshie/hearcheck/internal/repository/memory"
	"github.com/RMahshie/hearcheck/internal/repository/pebblestore"
	"github.com/RMahshie/hearcheck/internal/repository/postgres"
	"github.com/RMahshie/hearcheck/internal/repository/sqlite"
	"github.com/RMahshie/hearcheck/internal/storage"
)

// Open opens the configured key-value backend
func Open(ctx context.Context, cfg *config.Config) (repository.KeyValueStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		log.Warn().Msg("Using in-memory result store; results are lost on exit")
		return memory.NewMemoryKVStore(), nil
	case "postgres":
		return postgres.Open(ctx, cfg.Store.DatabaseURL)
	case "sqlite":
		return sqlite.Open(cfg.Store.SQLitePath)
	case "pebble":
		return pebblestore.Open(cfg.Store.PebblePath)
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.AWS.S3Bucket,
			Prefix:    cfg.AWS.S3Prefix,
			Endpoint:  cfg.AWS.S3Endpoint,
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKeyID,
			SecretKey: cfg.AWS.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// OpenResults opens the configured backend and wraps it in a result repository.
// The returned store must be closed by the caller.
func OpenResults(ctx context.Context, cfg *config.Config) (repository.ResultRepository, repository.KeyValueStore, error) {
	kv, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewResultRepository(kv, cfg.Store.ResultsKey), kv, nil
}
