// Package fidelity scores synthetic datasets against the fingerprint of the
// source data they stand in for. Scoring never touches source rows: the
// synthetic dataset is re-fingerprinted with the same extractor and the two
// metadata records are compared statistic by statistic.
package fidelity

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/fingerprint"
	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/tabular"
)

// Options tunes scoring. Zero fields fall back to DefaultOptions.
type Options struct {
	// CorrelationPenaltyWeight scales how hard a drifted correlation
	// matrix drags down the aggregate score.
	CorrelationPenaltyWeight float64
}

// DefaultOptions match the weights the pipeline ships with.
var DefaultOptions = Options{
	CorrelationPenaltyWeight: 0.25,
}

// Validator compares synthetic output against original dataset metadata.
type Validator struct {
	extractor *fingerprint.Extractor
	opts      Options
	logger    *zap.Logger
}

func NewValidator(extractor *fingerprint.Extractor, opts Options, logger *zap.Logger) *Validator {
	if opts.CorrelationPenaltyWeight <= 0 {
		opts.CorrelationPenaltyWeight = DefaultOptions.CorrelationPenaltyWeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		extractor: extractor,
		opts:      opts,
		logger:    logger.Named("fidelity"),
	}
}

// Validate re-extracts metadata from the synthetic dataset and scores it
// against the original. Per-column scores and the aggregate live in [0,1];
// a dataset validated against its own fingerprint scores 1.0. The report is
// returned even when the score is below minScore, so callers can inspect
// the worst columns before retrying.
func (v *Validator) Validate(original *models.DatasetMetadata, synthetic *tabular.Dataset, targetRows int, minScore float64) (*models.FidelityReport, error) {
	if original == nil || len(original.Columns) == 0 {
		return nil, fmt.Errorf("fidelity: original metadata has no columns")
	}

	synMeta, err := v.extractor.Extract(synthetic)
	if err != nil {
		return nil, fmt.Errorf("extract synthetic metadata: %w", err)
	}

	columnScores := make(map[string]float64, len(original.Columns))
	var sum float64
	for _, origCol := range original.Columns {
		synCol, ok := synMeta.Column(origCol.Name)
		if !ok {
			v.logger.Warn("synthetic dataset is missing a column",
				zap.String("column", origCol.Name))
			columnScores[origCol.Name] = 0
			continue
		}
		score := scoreColumn(origCol, *synCol)
		columnScores[origCol.Name] = score
		sum += score
	}
	aggregate := sum / float64(len(original.Columns))

	var correlationScore *float64
	if delta, ok := correlationDelta(original.Correlations, synMeta.Correlations); ok {
		cs := clampUnit(1 - delta)
		correlationScore = &cs
		aggregate -= v.opts.CorrelationPenaltyWeight * delta
	}
	aggregate = clampUnit(aggregate)

	report := &models.FidelityReport{
		ColumnScores:     columnScores,
		CorrelationScore: correlationScore,
		AggregateScore:   aggregate,
		Threshold:        minScore,
		Passed:           aggregate >= minScore,
		TargetRows:       targetRows,
		ActualRows:       synthetic.RowCount(),
	}

	v.logger.Debug("scored synthetic dataset",
		zap.Float64("aggregate", report.AggregateScore),
		zap.Bool("passed", report.Passed),
		zap.Int("rows", report.ActualRows))

	return report, nil
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
