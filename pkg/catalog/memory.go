package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/models"
)

// memoryStore keeps the catalog in a copy-on-write snapshot. Readers load
// the current snapshot without locking; writers serialize on a mutex, clone
// the map, and publish the clone. An uncommitted write is never visible.
type memoryStore struct {
	dedupeThreshold float64

	mu       sync.Mutex
	snapshot atomic.Value // map[uuid.UUID]models.CatalogEntry
}

var _ Store = (*memoryStore)(nil)

// NewMemoryStore creates an empty in-memory catalog store.
func NewMemoryStore(opts StoreOptions) Store {
	s := &memoryStore{dedupeThreshold: opts.dedupeThreshold()}
	s.snapshot.Store(map[uuid.UUID]models.CatalogEntry{})
	return s
}

func (s *memoryStore) load() map[uuid.UUID]models.CatalogEntry {
	return s.snapshot.Load().(map[uuid.UUID]models.CatalogEntry)
}

func (s *memoryStore) Lookup(_ context.Context, structuralHash string) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	for _, entry := range s.load() {
		if entry.StructuralHash == structuralHash {
			entries = append(entries, copyEntry(entry))
		}
	}
	return entries, nil
}

func (s *memoryStore) All(_ context.Context) ([]models.CatalogEntry, error) {
	current := s.load()
	entries := make([]models.CatalogEntry, 0, len(current))
	for _, entry := range current {
		entries = append(entries, copyEntry(entry))
	}
	return entries, nil
}

func (s *memoryStore) Upsert(_ context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("upsert catalog entry: entry is nil")
	}
	if entry.StructuralHash == "" {
		return nil, fmt.Errorf("upsert catalog entry: structural hash is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	current := s.load()

	for id, existing := range current {
		if existing.StructuralHash != entry.StructuralHash {
			continue
		}
		if Cosine(existing.FingerprintVector, entry.FingerprintVector) < s.dedupeThreshold {
			continue
		}
		folded := foldEntry(existing, entry, now)
		next := cloneSnapshot(current)
		next[id] = folded
		s.snapshot.Store(next)
		result := copyEntry(folded)
		return &result, nil
	}

	stored := copyEntry(*entry)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	next := cloneSnapshot(current)
	next[stored.ID] = stored
	s.snapshot.Store(next)

	result := copyEntry(stored)
	return &result, nil
}

func (s *memoryStore) RecordReuse(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	entry, ok := current[id]
	if !ok {
		return fmt.Errorf("record catalog reuse %s: %w", id, apperrors.ErrNotFound)
	}
	entry.SuccessCount++
	entry.UpdatedAt = time.Now().UTC()

	next := cloneSnapshot(current)
	next[id] = entry
	s.snapshot.Store(next)
	return nil
}

func (s *memoryStore) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	next := make(map[uuid.UUID]models.CatalogEntry, len(current))
	var removed int64
	for id, entry := range current {
		if entry.UpdatedAt.Before(olderThan) {
			removed++
			continue
		}
		next[id] = entry
	}
	s.snapshot.Store(next)
	return removed, nil
}

func (s *memoryStore) Close() error {
	return nil
}

// foldEntry merges a new near-duplicate into an existing entry: the program
// and score refresh, the success count grows, and CreatedAt is kept so entry
// age reflects first validation.
func foldEntry(existing models.CatalogEntry, incoming *models.CatalogEntry, now time.Time) models.CatalogEntry {
	folded := copyEntry(existing)
	folded.ProgramSource = incoming.ProgramSource
	folded.ProgramLanguage = incoming.ProgramLanguage
	folded.LastValidatedScore = incoming.LastValidatedScore
	folded.SuccessCount++
	folded.UpdatedAt = now
	return folded
}

func copyEntry(entry models.CatalogEntry) models.CatalogEntry {
	out := entry
	if entry.FingerprintVector != nil {
		out.FingerprintVector = make([]float64, len(entry.FingerprintVector))
		copy(out.FingerprintVector, entry.FingerprintVector)
	}
	return out
}

func cloneSnapshot(current map[uuid.UUID]models.CatalogEntry) map[uuid.UUID]models.CatalogEntry {
	next := make(map[uuid.UUID]models.CatalogEntry, len(current)+1)
	for id, entry := range current {
		next[id] = entry
	}
	return next
}
