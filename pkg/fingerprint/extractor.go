// Package fingerprint turns an in-memory tabular dataset into its
// privacy-safe statistical summary: per-column profiles, a Pearson
// correlation matrix over numeric columns, and a structural hash of the
// schema. Extraction is deterministic for a fixed dataset and version and
// never retains raw cell values beyond the disclosed categorical labels
// admitted by the suppression floor.
package fingerprint

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/tabular"
)

// DefaultVersion tags metadata produced by this extractor revision.
// Bump when inference or scoring semantics change; cached programs are
// keyed per version downstream.
const DefaultVersion = "1.0.0"

// Options configures extraction thresholds.
type Options struct {
	// Version is recorded as ExtractorVersion on produced metadata.
	Version string

	// SuppressionFloor is the minimum occurrences for a categorical label
	// to be disclosed.
	SuppressionFloor int

	// MaxDisclosedCategories caps the disclosed frequency table size.
	MaxDisclosedCategories int

	// CategoricalMaxDistinct admits a column as categorical when its
	// distinct count is at or below this absolute bound.
	CategoricalMaxDistinct int

	// CategoricalMaxRatio admits a column as categorical when distinct
	// count / row count is at or below this bound.
	CategoricalMaxRatio float64

	// PatternMatchThreshold is the match rate at which a value-shape
	// pattern counts as the column's identity (identifier detection).
	PatternMatchThreshold float64
}

// DefaultOptions returns the extraction defaults.
func DefaultOptions() Options {
	return Options{
		Version:                DefaultVersion,
		SuppressionFloor:       2,
		MaxDisclosedCategories: 50,
		CategoricalMaxDistinct: 50,
		CategoricalMaxRatio:    0.05,
		PatternMatchThreshold:  0.95,
	}
}

// Extractor computes DatasetMetadata fingerprints.
type Extractor struct {
	opts   Options
	logger *zap.Logger
}

// NewExtractor creates an extractor. Zero-valued option fields fall back to
// the defaults.
func NewExtractor(opts Options, logger *zap.Logger) *Extractor {
	def := DefaultOptions()
	if opts.Version == "" {
		opts.Version = def.Version
	}
	if opts.SuppressionFloor <= 0 {
		opts.SuppressionFloor = def.SuppressionFloor
	}
	if opts.MaxDisclosedCategories <= 0 {
		opts.MaxDisclosedCategories = def.MaxDisclosedCategories
	}
	if opts.CategoricalMaxDistinct <= 0 {
		opts.CategoricalMaxDistinct = def.CategoricalMaxDistinct
	}
	if opts.CategoricalMaxRatio <= 0 {
		opts.CategoricalMaxRatio = def.CategoricalMaxRatio
	}
	if opts.PatternMatchThreshold <= 0 {
		opts.PatternMatchThreshold = def.PatternMatchThreshold
	}
	return &Extractor{opts: opts, logger: logger.Named("fingerprint")}
}

// Version returns the extractor version recorded on produced metadata.
func (e *Extractor) Version() string {
	return e.opts.Version
}

// Extract computes the metadata fingerprint for a dataset. Columns whose
// values defeat every type detector degrade to opaque text profiles and are
// logged; only an unusable dataset (nil or zero rows) fails extraction.
//
// The returned metadata is deterministic for a fixed dataset and version
// except for ExtractedAt.
func (e *Extractor) Extract(dataset *tabular.Dataset) (*models.DatasetMetadata, error) {
	if dataset == nil {
		return nil, fmt.Errorf("%w: nil dataset", apperrors.ErrExtractionFailed)
	}
	if dataset.RowCount() == 0 {
		return nil, fmt.Errorf("%w: dataset has no rows", apperrors.ErrExtractionFailed)
	}

	rowCount := dataset.RowCount()
	columns := dataset.Columns()

	profiles := make([]models.ColumnProfile, 0, len(columns))
	numericNames := make([]string, 0, len(columns))
	numericSeries := make([][]float64, 0, len(columns))

	for _, col := range columns {
		s := newSeries(col.Values)

		profile, err := e.profileColumn(col.Name, s)
		if err != nil {
			// Column-level degradation, never a dataset failure.
			e.logger.Warn("column degraded to opaque text",
				zap.String("column", col.Name),
				zap.Error(err))
			profile = e.opaqueTextProfile(col.Name, s)
		}
		profiles = append(profiles, profile)

		if profile.Type.IsNumeric() {
			numericNames = append(numericNames, col.Name)
			numericSeries = append(numericSeries, s.alignedFloats())
		}
	}

	meta := &models.DatasetMetadata{
		RowCount:         rowCount,
		ColumnCount:      len(profiles),
		Columns:          profiles,
		StructuralHash:   StructuralHash(profiles),
		ExtractorVersion: e.opts.Version,
		ExtractedAt:      time.Now().UTC(),
	}

	if len(numericNames) >= 2 {
		meta.Correlations = pearsonMatrix(numericNames, numericSeries)
	}

	e.logger.Debug("fingerprint extracted",
		zap.Int("rows", rowCount),
		zap.Int("columns", len(profiles)),
		zap.String("structural_hash", meta.StructuralHash))

	return meta, nil
}

// profileColumn runs the inference cascade and builds the matching stats
// block. Returns apperrors.ErrUnsupportedColumnType when no detector claims
// the column.
func (e *Extractor) profileColumn(name string, s *series) (models.ColumnProfile, error) {
	profile := models.ColumnProfile{
		Name:          name,
		NullRatio:     s.nullRatio(),
		DistinctRatio: s.distinctRatio(),
	}

	// All-null columns carry no evidence for any detector.
	if len(s.nonNull) == 0 {
		profile.Type = models.ColumnTypeText
		profile.Text = &models.TextStats{}
		return profile, nil
	}

	if s.hasNonScalar {
		return profile, fmt.Errorf("%w: non-scalar values", apperrors.ErrUnsupportedColumnType)
	}

	if trueRatio, ok := detectBoolean(s); ok {
		profile.Type = models.ColumnTypeBoolean
		profile.Boolean = &models.BooleanStats{TrueRatio: trueRatio}
		return profile, nil
	}

	if floats, integral, ok := coerceNumeric(s); ok {
		if integral {
			profile.Type = models.ColumnTypeInteger
		} else {
			profile.Type = models.ColumnTypeFloat
		}
		stats := populationStats(floats)
		profile.Numeric = &stats
		return profile, nil
	}

	if dt, ok := detectDatetime(s); ok {
		profile.Type = models.ColumnTypeDatetime
		profile.Datetime = dt
		return profile, nil
	}

	patterns := detectPatterns(s.strings())

	if isIdentifier(s, patterns, e.opts.PatternMatchThreshold) {
		profile.Type = models.ColumnTypeIdentifier
		profile.Text = textStats(s, patterns)
		return profile, nil
	}

	if e.isCategorical(s) {
		profile.Type = models.ColumnTypeCategorical
		profile.Categorical = models.NewCategoricalStats(
			s.labelCounts(),
			int64(len(s.nonNull)),
			e.opts.SuppressionFloor,
			e.opts.MaxDisclosedCategories,
		)
		return profile, nil
	}

	profile.Type = models.ColumnTypeText
	profile.Text = textStats(s, patterns)
	return profile, nil
}

// opaqueTextProfile is the degraded profile for unsupported columns: null
// ratio and value lengths only, no labels, no patterns.
func (e *Extractor) opaqueTextProfile(name string, s *series) models.ColumnProfile {
	return models.ColumnProfile{
		Name:          name,
		Type:          models.ColumnTypeText,
		NullRatio:     s.nullRatio(),
		DistinctRatio: s.distinctRatio(),
		Text:          lengthStats(s),
	}
}

func (e *Extractor) isCategorical(s *series) bool {
	distinct := s.distinctCount()
	if distinct <= e.opts.CategoricalMaxDistinct {
		return true
	}
	return float64(distinct) <= e.opts.CategoricalMaxRatio*float64(s.rowCount)
}
