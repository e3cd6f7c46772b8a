package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/pkg/models"
)

// DefaultResultsKey is the store key holding the JSON result list
const DefaultResultsKey = "hearingResults"

var validate = validator.New(validator.WithRequiredStructEnabled())

// entry is one element of the stored list. Records this build cannot read
// (newer schema, invalid shape) keep their raw bytes so writes preserve them,
// but they are never returned to callers.
type entry struct {
	raw    json.RawMessage
	record *models.TestResultRecord
}

// kvResultRepository keeps the whole result list as one JSON array under a
// single key. Writes are serialized in-process only; concurrent writers in
// other processes can lose updates.
type kvResultRepository struct {
	kv  KeyValueStore
	key string
	mu  sync.Mutex
}

// NewResultRepository creates a result repository over kv
func NewResultRepository(kv KeyValueStore, key string) ResultRepository {
	if key == "" {
		key = DefaultResultsKey
	}
	return &kvResultRepository{kv: kv, key: key}
}

// Append adds a record to the end of the list
func (r *kvResultRepository) Append(ctx context.Context, record models.TestResultRecord) error {
	if record.Version == 0 {
		record.Version = models.RecordVersion
	}
	if err := validate.Struct(record); err != nil {
		return fmt.Errorf("invalid result record: %w", err)
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal result record: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, entry{raw: raw, record: &record})
	return r.save(ctx, entries)
}

// DeleteAt removes the record at index (as returned by ListAll)
func (r *kvResultRepository) DeleteAt(ctx context.Context, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return err
	}

	visible := -1
	for i, e := range entries {
		if e.record == nil {
			continue
		}
		visible++
		if visible == index {
			entries = append(entries[:i], entries[i+1:]...)
			return r.save(ctx, entries)
		}
	}
	return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
}

// DeleteAll clears the stored key
func (r *kvResultRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.kv.Delete(ctx, r.key); err != nil && !errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return nil
}

// ListAll returns readable records in insertion order, most recent last
func (r *kvResultRepository) ListAll(ctx context.Context) ([]models.TestResultRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]models.TestResultRecord, 0, len(entries))
	for _, e := range entries {
		if e.record != nil {
			records = append(records, *e.record)
		}
	}
	return records, nil
}

// load reads the list. A missing or undecodable list is empty; only store
// failures are returned as errors.
func (r *kvResultRepository) load(ctx context.Context) ([]entry, error) {
	data, err := r.kv.Get(ctx, r.key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		log.Warn().Err(err).Str("key", r.key).Msg("Stored results are corrupt; treating as empty")
		return nil, nil
	}

	entries := make([]entry, 0, len(raws))
	for i, raw := range raws {
		entries = append(entries, entry{raw: raw, record: decodeRecord(r.key, i, raw)})
	}
	return entries, nil
}

func (r *kvResultRepository) save(ctx context.Context, entries []entry) error {
	raws := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		raws[i] = e.raw
	}
	data, err := json.Marshal(raws)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := r.kv.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// decodeRecord migrates unversioned records to the current schema and
// rejects anything newer or malformed
func decodeRecord(key string, i int, raw json.RawMessage) *models.TestResultRecord {
	var rec models.TestResultRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Warn().Err(err).Str("key", key).Int("index", i).Msg("Skipping undecodable result record")
		return nil
	}
	switch {
	case rec.Version == 0:
		rec.Version = models.RecordVersion
	case rec.Version > models.RecordVersion:
		log.Warn().Str("key", key).Int("index", i).Int("version", rec.Version).Msg("Skipping result record with unknown schema version")
		return nil
	}
	if err := validate.Struct(rec); err != nil {
		log.Warn().Err(err).Str("key", key).Int("index", i).Msg("Skipping invalid result record")
		return nil
	}
	return &rec
}
