// Package catalog persists fingerprint-to-program associations and serves
// similarity lookups over them. A catalog hit means a previously validated
// generation program can be reused without calling the generation service.
//
// Three Store backends share one contract: an in-memory copy-on-write store
// for embedded use and tests, a SQLite store for single-node deployments,
// and a Postgres store for shared catalogs.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/miragedata/mirage-engine/pkg/models"
)

// DefaultDedupeThreshold is the cosine similarity at which an upsert for an
// existing structural hash folds into the entry instead of inserting a near
// duplicate.
const DefaultDedupeThreshold = 0.995

// Store is the persistence contract for catalog entries. Implementations
// must keep lookups safe against concurrent upserts: a reader never observes
// a partially written entry.
type Store interface {
	// Lookup returns all entries sharing the structural hash.
	Lookup(ctx context.Context, structuralHash string) ([]models.CatalogEntry, error)

	// All returns every entry. Serves the broad fallback scan.
	All(ctx context.Context) ([]models.CatalogEntry, error)

	// Upsert inserts the entry, or folds it into an existing entry with the
	// same structural hash whose fingerprint vector is a near duplicate
	// (success count incremented, program and score refreshed, created_at
	// kept). Returns the canonical stored entry.
	Upsert(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error)

	// RecordReuse increments the success count of an existing entry.
	RecordReuse(ctx context.Context, id uuid.UUID) error

	// Prune deletes entries not updated since the given time and returns
	// how many were removed. Maintenance only; never called by the pipeline.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}

// StoreOptions tunes backend behavior shared by all implementations.
type StoreOptions struct {
	// DedupeThreshold overrides DefaultDedupeThreshold when positive.
	DedupeThreshold float64
}

func (o StoreOptions) dedupeThreshold() float64 {
	if o.DedupeThreshold > 0 {
		return o.DedupeThreshold
	}
	return DefaultDedupeThreshold
}
