package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/database"
	"github.com/miragedata/mirage-engine/pkg/models"
)

// postgresStore persists the catalog in Postgres for shared deployments.
// Fingerprint vectors map to DOUBLE PRECISION[]. The schema is managed by
// the migrations directory, not by this store.
type postgresStore struct {
	db              *database.DB
	dedupeThreshold float64
	logger          *zap.Logger
}

var _ Store = (*postgresStore)(nil)

// NewPostgresStore creates a catalog store over an existing connection pool.
// The pool's lifecycle stays with the caller; Close is a no-op.
func NewPostgresStore(db *database.DB, opts StoreOptions, logger *zap.Logger) Store {
	return &postgresStore{
		db:              db,
		dedupeThreshold: opts.dedupeThreshold(),
		logger:          logger.Named("catalog_postgres"),
	}
}

const postgresSelectColumns = `
	SELECT id, structural_hash, fingerprint_vector, program_source,
		program_language, success_count, last_validated_score,
		created_at, updated_at
	FROM catalog_entries`

func (s *postgresStore) Lookup(ctx context.Context, structuralHash string) ([]models.CatalogEntry, error) {
	rows, err := s.db.Query(ctx, postgresSelectColumns+` WHERE structural_hash = $1`, structuralHash)
	if err != nil {
		return nil, fmt.Errorf("lookup catalog entries: %w", err)
	}
	defer rows.Close()
	return scanPostgresEntries(rows)
}

func (s *postgresStore) All(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.db.Query(ctx, postgresSelectColumns)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	defer rows.Close()
	return scanPostgresEntries(rows)
}

func (s *postgresStore) Upsert(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("upsert catalog entry: entry is nil")
	}
	if entry.StructuralHash == "" {
		return nil, fmt.Errorf("upsert catalog entry: structural hash is empty")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin catalog upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, postgresSelectColumns+` WHERE structural_hash = $1 FOR UPDATE`, entry.StructuralHash)
	if err != nil {
		return nil, fmt.Errorf("query catalog bucket: %w", err)
	}
	bucket, err := scanPostgresEntries(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("scan catalog bucket: %w", err)
	}

	now := time.Now().UTC()
	for i := range bucket {
		if Cosine(bucket[i].FingerprintVector, entry.FingerprintVector) < s.dedupeThreshold {
			continue
		}
		folded := foldEntry(bucket[i], entry, now)
		_, err := tx.Exec(ctx, `
			UPDATE catalog_entries
			SET program_source = $1, program_language = $2, success_count = $3,
				last_validated_score = $4, updated_at = $5
			WHERE id = $6`,
			folded.ProgramSource, string(folded.ProgramLanguage), folded.SuccessCount,
			folded.LastValidatedScore, folded.UpdatedAt, folded.ID)
		if err != nil {
			return nil, fmt.Errorf("fold catalog entry: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit catalog upsert: %w", err)
		}
		return &folded, nil
	}

	stored := copyEntry(*entry)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	_, err = tx.Exec(ctx, `
		INSERT INTO catalog_entries (id, structural_hash, fingerprint_vector,
			program_source, program_language, success_count,
			last_validated_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		stored.ID, stored.StructuralHash, stored.FingerprintVector,
		stored.ProgramSource, string(stored.ProgramLanguage), stored.SuccessCount,
		stored.LastValidatedScore, stored.CreatedAt, stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert catalog entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit catalog upsert: %w", err)
	}
	return &stored, nil
}

func (s *postgresStore) RecordReuse(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE catalog_entries
		SET success_count = success_count + 1, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("record catalog reuse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record catalog reuse %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (s *postgresStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM catalog_entries WHERE updated_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune catalog entries: %w", err)
	}
	removed := tag.RowsAffected()
	if removed > 0 {
		s.logger.Info("Pruned catalog entries", zap.Int64("removed", removed))
	}
	return removed, nil
}

// Close is a no-op; the connection pool belongs to the caller.
func (s *postgresStore) Close() error {
	return nil
}

func scanPostgresEntries(rows pgx.Rows) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	for rows.Next() {
		var entry models.CatalogEntry
		if err := rows.Scan(&entry.ID, &entry.StructuralHash, &entry.FingerprintVector,
			&entry.ProgramSource, &entry.ProgramLanguage, &entry.SuccessCount,
			&entry.LastValidatedScore, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog entries: %w", err)
	}
	return entries, nil
}
