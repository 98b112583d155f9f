package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS catalog_entries (
	id TEXT PRIMARY KEY,
	structural_hash TEXT NOT NULL,
	fingerprint_vector TEXT NOT NULL,
	program_source TEXT NOT NULL,
	program_language TEXT NOT NULL,
	success_count INTEGER NOT NULL DEFAULT 0,
	last_validated_score REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_catalog_entries_structural_hash
	ON catalog_entries (structural_hash);
`

// sqliteTimeLayout pads fractional seconds to fixed width so stored UTC
// timestamps compare chronologically as text. RFC3339Nano would drop
// trailing zeros and break the Prune comparison.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore persists the catalog in a single SQLite file. Fingerprint
// vectors are stored as JSON arrays; timestamps as fixed-width UTC text.
type sqliteStore struct {
	db              *sql.DB
	dedupeThreshold float64
	logger          *zap.Logger
}

var _ Store = (*sqliteStore)(nil)

// NewSQLiteStore opens (or creates) the catalog database at the given path
// and ensures the schema exists.
func NewSQLiteStore(ctx context.Context, path string, opts StoreOptions, logger *zap.Logger) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite catalog: path is empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	// A single connection serializes writers; catalog traffic is light and
	// this avoids SQLITE_BUSY during the upsert transaction.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite catalog: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable sqlite wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	logger.Info("SQLite catalog opened", zap.String("path", path))
	return &sqliteStore{
		db:              db,
		dedupeThreshold: opts.dedupeThreshold(),
		logger:          logger.Named("catalog_sqlite"),
	}, nil
}

const sqliteSelectColumns = `
	SELECT id, structural_hash, fingerprint_vector, program_source,
		program_language, success_count, last_validated_score,
		created_at, updated_at
	FROM catalog_entries`

func (s *sqliteStore) Lookup(ctx context.Context, structuralHash string) ([]models.CatalogEntry, error) {
	entries, err := s.queryEntries(ctx, sqliteSelectColumns+` WHERE structural_hash = ?`, structuralHash)
	if err != nil {
		return nil, fmt.Errorf("lookup catalog entries: %w", err)
	}
	return entries, nil
}

func (s *sqliteStore) All(ctx context.Context) ([]models.CatalogEntry, error) {
	entries, err := s.queryEntries(ctx, sqliteSelectColumns)
	if err != nil {
		return nil, fmt.Errorf("list catalog entries: %w", err)
	}
	return entries, nil
}

func (s *sqliteStore) Upsert(ctx context.Context, entry *models.CatalogEntry) (*models.CatalogEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("upsert catalog entry: entry is nil")
	}
	if entry.StructuralHash == "" {
		return nil, fmt.Errorf("upsert catalog entry: structural hash is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin catalog upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqliteSelectColumns+` WHERE structural_hash = ?`, entry.StructuralHash)
	if err != nil {
		return nil, fmt.Errorf("query catalog bucket: %w", err)
	}
	bucket, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("scan catalog bucket: %w", err)
	}

	now := time.Now().UTC()
	for i := range bucket {
		if Cosine(bucket[i].FingerprintVector, entry.FingerprintVector) < s.dedupeThreshold {
			continue
		}
		folded := foldEntry(bucket[i], entry, now)
		_, err := tx.ExecContext(ctx, `
			UPDATE catalog_entries
			SET program_source = ?, program_language = ?, success_count = ?,
				last_validated_score = ?, updated_at = ?
			WHERE id = ?`,
			folded.ProgramSource, string(folded.ProgramLanguage), folded.SuccessCount,
			folded.LastValidatedScore, encodeSQLiteTime(folded.UpdatedAt),
			folded.ID.String())
		if err != nil {
			return nil, fmt.Errorf("fold catalog entry: %w", err)
		}
		if err := tx.Commit(); err != nil {
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

	vector, err := json.Marshal(stored.FingerprintVector)
	if err != nil {
		return nil, fmt.Errorf("encode fingerprint vector: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_entries (id, structural_hash, fingerprint_vector,
			program_source, program_language, success_count,
			last_validated_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID.String(), stored.StructuralHash, string(vector),
		stored.ProgramSource, string(stored.ProgramLanguage), stored.SuccessCount,
		stored.LastValidatedScore, encodeSQLiteTime(stored.CreatedAt), encodeSQLiteTime(stored.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert catalog entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit catalog upsert: %w", err)
	}
	return &stored, nil
}

func (s *sqliteStore) RecordReuse(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE catalog_entries
		SET success_count = success_count + 1, updated_at = ?
		WHERE id = ?`,
		encodeSQLiteTime(time.Now().UTC()), id.String())
	if err != nil {
		return fmt.Errorf("record catalog reuse: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record catalog reuse: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record catalog reuse %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM catalog_entries WHERE updated_at < ?`,
		encodeSQLiteTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("prune catalog entries: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune catalog entries: %w", err)
	}
	if removed > 0 {
		s.logger.Info("Pruned catalog entries", zap.Int64("removed", removed))
	}
	return removed, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func (s *sqliteStore) queryEntries(ctx context.Context, query string, args ...any) ([]models.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]models.CatalogEntry, error) {
	defer rows.Close()

	var entries []models.CatalogEntry
	for rows.Next() {
		var entry models.CatalogEntry
		var id, vector, language, createdAt, updatedAt string
		if err := rows.Scan(&id, &entry.StructuralHash, &vector, &entry.ProgramSource,
			&language, &entry.SuccessCount, &entry.LastValidatedScore,
			&createdAt, &updatedAt); err != nil {
			return nil, err
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse entry id %q: %w", id, err)
		}
		entry.ID = parsed
		entry.ProgramLanguage = models.ProgramLanguage(language)
		if err := json.Unmarshal([]byte(vector), &entry.FingerprintVector); err != nil {
			return nil, fmt.Errorf("decode fingerprint vector: %w", err)
		}
		if entry.CreatedAt, err = decodeSQLiteTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if entry.UpdatedAt, err = decodeSQLiteTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func encodeSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func decodeSQLiteTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
