// prune-catalog removes program catalog entries that have not been validated
// recently. Stale entries encode fingerprints of datasets that no longer
// exist and only slow down the broad matching scan.
//
// Usage: go run ./scripts/prune-catalog [-dry-run=false] [-older-than 720h]
//
// The catalog backend and its connection come from the usual environment
// variables (CATALOG_BACKEND, CATALOG_SQLITE_PATH, PG*). The memory backend
// has nothing to prune and is rejected.
//
// Flags:
//
//	-dry-run      Show what would be pruned without deleting (default: true)
//	-older-than   Retention window for the last update (default: 720h)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/catalog"
	"github.com/miragedata/mirage-engine/pkg/config"
	"github.com/miragedata/mirage-engine/pkg/database"
	"github.com/miragedata/mirage-engine/pkg/logging"
)

func main() {
	dryRun := flag.Bool("dry-run", true, "Show what would be pruned without deleting")
	olderThan := flag.Duration("older-than", 30*24*time.Hour, "Retention window for the last update")
	flag.Parse()

	cfg, err := config.Default()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, "warn")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	store, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open catalog store: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cutoff := time.Now().UTC().Add(-*olderThan)
	fmt.Printf("Pruning %s catalog entries not updated since %s\n",
		cfg.Catalog.Backend, cutoff.Format(time.RFC3339))

	if *dryRun {
		fmt.Println("DRY RUN - no changes will be made")
		fmt.Println("Run with -dry-run=false to actually prune")
		fmt.Println()

		entries, err := store.All(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list entries: %v\n", err)
			os.Exit(1)
		}

		var stale int
		for _, entry := range entries {
			if !entry.UpdatedAt.Before(cutoff) {
				continue
			}
			stale++
			fmt.Printf("  %s  hash=%.12s  reuses=%d  score=%.3f  updated=%s\n",
				entry.ID, entry.StructuralHash, entry.SuccessCount,
				entry.LastValidatedScore, entry.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Printf("\nEntries that would be pruned: %d (of %d)\n", stale, len(entries))
		return
	}

	pruned, err := store.Prune(ctx, cutoff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nEntries pruned: %d\n", pruned)
}

// openStore builds the configured durable backend. The memory backend is
// process-local, so there is nothing for a maintenance script to prune.
// cleanup releases the store and, for postgres, the connection pool.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (catalog.Store, func(), error) {
	opts := catalog.StoreOptions{DedupeThreshold: cfg.Catalog.DedupeThreshold}

	switch cfg.Catalog.Backend {
	case config.BackendSQLite:
		store, err := catalog.NewSQLiteStore(ctx, cfg.Catalog.SQLitePath, opts, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.BackendPostgres:
		db, err := database.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to catalog database: %w", err)
		}
		store := catalog.NewPostgresStore(db, opts, logger)
		return store, func() { _ = store.Close(); db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("backend %q holds no durable entries", cfg.Catalog.Backend)
	}
}
