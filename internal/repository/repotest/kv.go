// Package repotest holds behaviour checks shared by every KeyValueStore backend.
package repotest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/hearcheck/internal/repository"
	"github.com/RMahshie/hearcheck/pkg/models"
)

// RunKVStoreTests exercises store semantics plus a result list round trip on
// top of it. newStore must return an empty store.
func RunKVStoreTests(t *testing.T, newStore func(t *testing.T) repository.KeyValueStore) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "absent")
		assert.ErrorIs(t, err, repository.ErrKeyNotFound)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", []byte(`[1]`)))
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[1]`), got)

		require.NoError(t, s.Set(ctx, "k", []byte(`[1,2]`)))
		got, err = s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte(`[1,2]`), got)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "k", []byte(`x`)))
		require.NoError(t, s.Delete(ctx, "k"))
		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, repository.ErrKeyNotFound)

		// deleting twice is fine
		assert.NoError(t, s.Delete(ctx, "k"))
	})

	t.Run("ResultRoundTrip", func(t *testing.T) {
		repo := repository.NewResultRepository(newStore(t), "")
		ctx := context.Background()

		r1 := Record("2026-10-18T09:00:00Z", 10, 12.5)
		r2 := Record("2026-10-18T10:00:00Z", 45, 30)
		require.NoError(t, repo.Append(ctx, r1))
		require.NoError(t, repo.Append(ctx, r2))

		list, err := repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.TestResultRecord{r1, r2}, list)

		require.NoError(t, repo.DeleteAt(ctx, 0))
		list, err = repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.TestResultRecord{r2}, list)

		require.NoError(t, repo.DeleteAll(ctx))
		list, err = repo.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

// Record builds a valid current-version record
func Record(date string, left, right float64) models.TestResultRecord {
	return models.TestResultRecord{
		Version:        models.RecordVersion,
		Date:           date,
		LeftAvg:        left,
		RightAvg:       right,
		LeftCondition:  "Normal hearing",
		RightCondition: "Normal hearing",
	}
}
