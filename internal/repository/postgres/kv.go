package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/RMahshie/hearcheck/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresKVStore implements KeyValueStore on a single PostgreSQL table
type PostgresKVStore struct {
	db *sql.DB
}

// Open connects to databaseURL, applies migrations and returns the store
func Open(ctx context.Context, databaseURL string) (*PostgresKVStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return NewPostgresKVStore(db), nil
}

// NewPostgresKVStore wraps an already migrated database
func NewPostgresKVStore(db *sql.DB) *PostgresKVStore {
	return &PostgresKVStore{db: db}
}

// RunMigrations applies the embedded schema migrations
func RunMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Get retrieves the value stored under key
func (s *PostgresKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM kv_store WHERE key = $1`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set inserts or replaces the value under key
func (s *PostgresKVStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, key, value)
	return err
}

// Delete removes key; deleting an absent key is not an error
func (s *PostgresKVStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key)
	return err
}

// Close closes the underlying connection pool
func (s *PostgresKVStore) Close() error {
	return s.db.Close()
}
