package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/models"
)

// Match is a catalog entry selected for reuse.
type Match struct {
	Entry models.CatalogEntry

	// Similarity is the cosine similarity between the query fingerprint and
	// the entry's fingerprint.
	Similarity float64

	// Broad is true when the entry came from the whole-catalog scan rather
	// than the structural hash bucket.
	Broad bool
}

// MatcherOptions tunes match behavior.
type MatcherOptions struct {
	// BroadFallback enables the whole-catalog scan when the structural hash
	// bucket yields no entry above the threshold.
	BroadFallback bool
}

// Matcher resolves dataset metadata to the best reusable catalog entry.
// Lookup runs in two phases: the structural hash bucket first, then an
// optional broad scan across all entries.
type Matcher struct {
	store         Store
	embedder      Embedder
	broadFallback bool
	logger        *zap.Logger
}

// NewMatcher creates a matcher over the given store and embedding strategy.
func NewMatcher(store Store, embedder Embedder, opts MatcherOptions, logger *zap.Logger) *Matcher {
	return &Matcher{
		store:         store,
		embedder:      embedder,
		broadFallback: opts.BroadFallback,
		logger:        logger.Named("catalog"),
	}
}

// Find returns the best entry whose fingerprint similarity meets the
// threshold, or nil when no entry qualifies. Candidates tie-break by success
// count, then last validated score, then recency.
//
// When the metadata has no fingerprint vector yet, Find computes one and
// fills it in, so the caller can persist the same vector after validation.
func (m *Matcher) Find(ctx context.Context, metadata *models.DatasetMetadata, threshold float64) (*Match, error) {
	if metadata == nil {
		return nil, fmt.Errorf("find catalog match: metadata is nil")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("find catalog match: threshold %v outside (0, 1]", threshold)
	}

	if len(metadata.FingerprintVector) == 0 {
		vec, err := m.embedder.Embed(ctx, metadata)
		if err != nil {
			return nil, fmt.Errorf("embed fingerprint: %w", err)
		}
		metadata.FingerprintVector = vec
	}

	bucket, err := m.store.Lookup(ctx, metadata.StructuralHash)
	if err != nil {
		return nil, fmt.Errorf("lookup catalog bucket: %w", err)
	}
	if match := bestMatch(bucket, metadata.FingerprintVector, threshold); match != nil {
		m.logger.Debug("Catalog hit in hash bucket",
			zap.String("entry_id", match.Entry.ID.String()),
			zap.Float64("similarity", match.Similarity))
		return match, nil
	}

	if !m.broadFallback {
		m.logger.Debug("Catalog miss", zap.String("structural_hash", metadata.StructuralHash))
		return nil, nil
	}

	all, err := m.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	// The hash bucket was already evaluated; only foreign-hash entries are
	// left to consider.
	others := make([]models.CatalogEntry, 0, len(all))
	for _, entry := range all {
		if entry.StructuralHash != metadata.StructuralHash {
			others = append(others, entry)
		}
	}
	if match := bestMatch(others, metadata.FingerprintVector, threshold); match != nil {
		match.Broad = true
		m.logger.Debug("Catalog hit via broad scan",
			zap.String("entry_id", match.Entry.ID.String()),
			zap.Float64("similarity", match.Similarity))
		return match, nil
	}

	m.logger.Debug("Catalog miss", zap.String("structural_hash", metadata.StructuralHash))
	return nil, nil
}

func bestMatch(entries []models.CatalogEntry, vec []float64, threshold float64) *Match {
	var best *Match
	for i := range entries {
		sim := Cosine(entries[i].FingerprintVector, vec)
		if sim < threshold {
			continue
		}
		cand := &Match{Entry: entries[i], Similarity: sim}
		if best == nil || betterMatch(cand, best) {
			best = cand
		}
	}
	return best
}

func betterMatch(a, b *Match) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.Entry.SuccessCount != b.Entry.SuccessCount {
		return a.Entry.SuccessCount > b.Entry.SuccessCount
	}
	if a.Entry.LastValidatedScore != b.Entry.LastValidatedScore {
		return a.Entry.LastValidatedScore > b.Entry.LastValidatedScore
	}
	return a.Entry.UpdatedAt.After(b.Entry.UpdatedAt)
}
