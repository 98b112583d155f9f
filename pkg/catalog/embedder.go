package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/llm"
	"github.com/miragedata/mirage-engine/pkg/models"
)

// Embedder maps dataset metadata to a fingerprint vector. Vectors from
// different embedders are not comparable; a catalog must be populated and
// queried with the same embedding strategy.
type Embedder interface {
	Embed(ctx context.Context, metadata *models.DatasetMetadata) ([]float64, error)
}

// ============================================================================
// Stats Embedder
// ============================================================================

// StatsEmbeddingDim is the fixed dimensionality of StatsEmbedder vectors.
const StatsEmbeddingDim = 64

// Layout of a stats embedding: dims 0-6 hold the column type histogram,
// dims 7-8 hold squashed row and column counts, and the remaining dims hold
// feature-hashed per-column statistics keyed by column name.
const (
	typeHistogramDims = 7
	shapeDimRows      = 7
	shapeDimColumns   = 8
	featureDimOffset  = 9
	featureDimCount   = StatsEmbeddingDim - featureDimOffset
)

// StatsEmbedder derives a fingerprint vector purely from disclosed statistics.
// It is deterministic, needs no external service, and is the fallback when no
// embedding endpoint is configured.
type StatsEmbedder struct{}

var _ Embedder = StatsEmbedder{}

// NewStatsEmbedder returns the deterministic statistics-based embedder.
func NewStatsEmbedder() StatsEmbedder {
	return StatsEmbedder{}
}

// Embed produces an L2-normalized vector of StatsEmbeddingDim dimensions.
// Identical metadata always yields an identical vector.
func (StatsEmbedder) Embed(_ context.Context, metadata *models.DatasetMetadata) ([]float64, error) {
	if metadata == nil {
		return nil, fmt.Errorf("embed fingerprint: metadata is nil")
	}
	if len(metadata.Columns) == 0 {
		return nil, fmt.Errorf("embed fingerprint: metadata has no columns")
	}

	vec := make([]float64, StatsEmbeddingDim)

	colWeight := 1.0 / float64(len(metadata.Columns))
	for _, col := range metadata.Columns {
		vec[typeIndex(col.Type)] += colWeight
	}
	vec[shapeDimRows] = squash(math.Log1p(float64(metadata.RowCount)))
	vec[shapeDimColumns] = squash(math.Log1p(float64(metadata.ColumnCount)))

	for _, col := range metadata.Columns {
		base := columnSeed(col.Name)
		for i, feat := range columnFeatures(col) {
			bucket := featureDimOffset + int(featureBucket(base, i))
			vec[bucket] += feat * colWeight
		}
	}

	normalize(vec)
	return vec, nil
}

func typeIndex(t models.ColumnType) int {
	switch t {
	case models.ColumnTypeBoolean:
		return 0
	case models.ColumnTypeInteger:
		return 1
	case models.ColumnTypeFloat:
		return 2
	case models.ColumnTypeCategorical:
		return 3
	case models.ColumnTypeDatetime:
		return 4
	case models.ColumnTypeIdentifier:
		return 5
	default:
		return 6
	}
}

func columnSeed(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}

func featureBucket(seed uint64, feature int) uint64 {
	// Knuth multiplicative step keeps successive features of one column from
	// landing in adjacent buckets.
	return (seed + uint64(feature)*2654435761) % featureDimCount
}

// columnFeatures returns bounded per-column features. Every feature lies in
// [0, 1] so no single column can dominate the vector.
func columnFeatures(col models.ColumnProfile) []float64 {
	feats := []float64{
		col.NullRatio,
		col.DistinctRatio,
		float64(typeIndex(col.Type)) / 6.0,
	}
	switch {
	case col.Numeric != nil:
		feats = append(feats,
			squash(math.Abs(col.Numeric.Mean)),
			squash(col.Numeric.StdDev),
			squash(col.Numeric.Max-col.Numeric.Min),
			squash(math.Abs(col.Numeric.Quantiles.P50)),
		)
	case col.Categorical != nil:
		feats = append(feats,
			squash(float64(col.Categorical.DistinctCount)),
			col.Categorical.DisclosedRatio(),
		)
	case col.Datetime != nil:
		feats = append(feats, squash(col.Datetime.Max.Sub(col.Datetime.Min).Hours()/24))
	case col.Boolean != nil:
		feats = append(feats, col.Boolean.TrueRatio)
	case col.Text != nil:
		feats = append(feats,
			squash(col.Text.AvgLength),
			squash(float64(col.Text.MaxLength-col.Text.MinLength)),
		)
	}
	return feats
}

// squash maps [0, inf) monotonically into [0, 1).
func squash(x float64) float64 {
	if x <= 0 || math.IsNaN(x) {
		return 0
	}
	return x / (1 + x)
}

func normalize(vec []float64) {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
}

// ============================================================================
// LLM Embedder
// ============================================================================

// LLMEmbedder obtains fingerprint vectors from an embedding endpoint. The
// embedding input is the JSON-encoded metadata, which by construction carries
// no raw cell values. On any service error it falls back to the stats
// embedder so catalog writes never fail on embedding availability.
//
// Mixing service vectors and fallback vectors in one catalog is safe:
// dimensionalities differ, so cross-strategy comparisons score zero instead
// of producing spurious matches.
type LLMEmbedder struct {
	client   llm.LLMClient
	model    string
	fallback StatsEmbedder
	logger   *zap.Logger
}

var _ Embedder = (*LLMEmbedder)(nil)

// NewLLMEmbedder creates an embedder backed by the given embedding client.
func NewLLMEmbedder(client llm.LLMClient, model string, logger *zap.Logger) *LLMEmbedder {
	return &LLMEmbedder{
		client:   client,
		model:    model,
		fallback: NewStatsEmbedder(),
		logger:   logger.Named("embedder"),
	}
}

// Embed requests an embedding of the metadata summary, falling back to the
// deterministic stats embedding when the service is unavailable.
func (e *LLMEmbedder) Embed(ctx context.Context, metadata *models.DatasetMetadata) ([]float64, error) {
	if metadata == nil {
		return nil, fmt.Errorf("embed fingerprint: metadata is nil")
	}

	summary, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata for embedding: %w", err)
	}

	raw, err := e.client.CreateEmbedding(ctx, string(summary), e.model)
	if err != nil {
		e.logger.Warn("Embedding service unavailable, using stats embedding",
			zap.String("model", e.model),
			zap.Error(err))
		return e.fallback.Embed(ctx, metadata)
	}
	if len(raw) == 0 {
		e.logger.Warn("Embedding service returned empty vector, using stats embedding",
			zap.String("model", e.model))
		return e.fallback.Embed(ctx, metadata)
	}

	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return vec, nil
}
