package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/models"
)

func newSQLiteStore(t *testing.T, path string) Store {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), path, StoreOptions{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStore(context.Background(), "", StoreOptions{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store := newSQLiteStore(t, path)

	stored, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:     "hash-a",
		FingerprintVector:  []float64{0.25, 0.5, 0.8125},
		ProgramSource:      "package main\n\nfunc main() {}\n",
		ProgramLanguage:    models.ProgramLanguageGo,
		LastValidatedScore: 0.87,
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := newSQLiteStore(t, path)
	entries, err := reopened.Lookup(context.Background(), "hash-a")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, "hash-a", got.StructuralHash)
	assert.Equal(t, []float64{0.25, 0.5, 0.8125}, got.FingerprintVector)
	assert.Equal(t, stored.ProgramSource, got.ProgramSource)
	assert.Equal(t, models.ProgramLanguageGo, got.ProgramLanguage)
	assert.Equal(t, 0.87, got.LastValidatedScore)
	assert.True(t, got.CreatedAt.Equal(stored.CreatedAt), "created_at survives the round trip")
	assert.True(t, got.UpdatedAt.Equal(stored.UpdatedAt), "updated_at survives the round trip")
}

func TestSQLiteStore_FoldsNearDuplicate(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "catalog.db"))

	first, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:     "hash-a",
		FingerprintVector:  []float64{1, 0, 0},
		ProgramSource:      "old program",
		ProgramLanguage:    models.ProgramLanguageGo,
		LastValidatedScore: 0.80,
	})
	require.NoError(t, err)

	folded, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:     "hash-a",
		FingerprintVector:  []float64{1, 0.001, 0},
		ProgramSource:      "new program",
		ProgramLanguage:    models.ProgramLanguageGo,
		LastValidatedScore: 0.91,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, folded.ID)
	assert.Equal(t, int64(1), folded.SuccessCount)
	assert.Equal(t, "new program", folded.ProgramSource)
	assert.True(t, folded.CreatedAt.Equal(first.CreatedAt))

	entries, err := store.Lookup(context.Background(), "hash-a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new program", entries[0].ProgramSource)
	assert.Equal(t, 0.91, entries[0].LastValidatedScore)
}

func TestSQLiteStore_KeepsDistinctVectors(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "catalog.db"))

	_, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:    "hash-a",
		FingerprintVector: []float64{1, 0, 0},
	})
	require.NoError(t, err)
	_, err = store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:    "hash-a",
		FingerprintVector: []float64{0, 1, 0},
	})
	require.NoError(t, err)

	entries, err := store.Lookup(context.Background(), "hash-a")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSQLiteStore_RecordReuse(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "catalog.db"))

	stored, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:    "hash-a",
		FingerprintVector: []float64{1, 0, 0},
	})
	require.NoError(t, err)

	require.NoError(t, store.RecordReuse(context.Background(), stored.ID))

	entries, err := store.Lookup(context.Background(), "hash-a")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].SuccessCount)
	assert.True(t, entries[0].UpdatedAt.After(stored.UpdatedAt) || entries[0].UpdatedAt.Equal(stored.UpdatedAt))
}

func TestSQLiteStore_RecordReuseUnknownID(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "catalog.db"))
	err := store.RecordReuse(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSQLiteStore_Prune(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "catalog.db"))

	_, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:    "stale",
		FingerprintVector: []float64{1, 0, 0},
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(5 * time.Millisecond)

	kept, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:    "fresh",
		FingerprintVector: []float64{0, 1, 0},
	})
	require.NoError(t, err)

	removed, err := store.Prune(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	all, err := store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, kept.ID, all[0].ID)
}

func TestSQLiteStore_WorksWithMatcher(t *testing.T) {
	store := newSQLiteStore(t, filepath.Join(t.TempDir(), "catalog.db"))
	matcher := newTestMatcher(t, store, true)

	meta := sampleMetadata()
	vec, err := NewStatsEmbedder().Embed(context.Background(), meta)
	require.NoError(t, err)

	seeded, err := store.Upsert(context.Background(), &models.CatalogEntry{
		StructuralHash:     meta.StructuralHash,
		FingerprintVector:  vec,
		ProgramSource:      "package main",
		ProgramLanguage:    models.ProgramLanguageGo,
		LastValidatedScore: 0.9,
	})
	require.NoError(t, err)

	match, err := matcher.Find(context.Background(), sampleMetadata(), 1.0)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, seeded.ID, match.Entry.ID)
	assert.Equal(t, 1.0, match.Similarity)
}
