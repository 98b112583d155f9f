package models

import (
	"slices"
	"sort"
	"time"
)

// ============================================================================
// Column Types
// ============================================================================

// ColumnType identifies the inferred statistical type of a column.
type ColumnType string

const (
	ColumnTypeBoolean     ColumnType = "boolean"
	ColumnTypeInteger     ColumnType = "integer"
	ColumnTypeFloat       ColumnType = "float"
	ColumnTypeCategorical ColumnType = "categorical"
	ColumnTypeDatetime    ColumnType = "datetime"
	ColumnTypeIdentifier  ColumnType = "identifier"
	ColumnTypeText        ColumnType = "text"
)

// ValidColumnTypes contains all valid column type values.
var ValidColumnTypes = []ColumnType{
	ColumnTypeBoolean,
	ColumnTypeInteger,
	ColumnTypeFloat,
	ColumnTypeCategorical,
	ColumnTypeDatetime,
	ColumnTypeIdentifier,
	ColumnTypeText,
}

// IsValidColumnType checks if the given type is valid.
func IsValidColumnType(t ColumnType) bool {
	return slices.Contains(ValidColumnTypes, t)
}

// IsNumeric reports whether the type carries numeric aggregates and
// participates in the correlation matrix.
func (t ColumnType) IsNumeric() bool {
	return t == ColumnTypeInteger || t == ColumnTypeFloat
}

// ============================================================================
// Column Profile
// ============================================================================

// ColumnProfile holds the disclosed statistical summary of one column.
// Exactly one of the type-specific stat blocks is populated, matching Type.
//
// Profiles never carry raw cell values. The only literals that may appear
// are categorical labels admitted by NewCategoricalStats under the
// suppression floor.
type ColumnProfile struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`

	// NullRatio is null_count / row_count (0.0 - 1.0).
	NullRatio float64 `json:"null_ratio"`

	// DistinctRatio is distinct_count / non_null_count (0.0 - 1.0).
	DistinctRatio float64 `json:"distinct_ratio"`

	Numeric     *NumericStats     `json:"numeric,omitempty"`
	Categorical *CategoricalStats `json:"categorical,omitempty"`
	Datetime    *DatetimeStats    `json:"datetime,omitempty"`
	Text        *TextStats        `json:"text,omitempty"`
	Boolean     *BooleanStats     `json:"boolean,omitempty"`
}

// NumericStats holds aggregates for integer and float columns.
type NumericStats struct {
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Quantiles Quantiles `json:"quantiles"`
}

// Quantiles holds the fixed quantile set disclosed for numeric columns.
type Quantiles struct {
	P05 float64 `json:"p05"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P95 float64 `json:"p95"`
}

// CategoricalStats holds the disclosed frequency table for a categorical
// column. Construct through NewCategoricalStats; labels below the
// suppression floor never enter TopValues.
type CategoricalStats struct {
	// DistinctCount is the total number of distinct labels, including
	// suppressed ones.
	DistinctCount int `json:"distinct_count"`

	// TopValues lists disclosed labels with relative frequencies, most
	// frequent first. Ties break by label for determinism.
	TopValues []CategoryFrequency `json:"top_values,omitempty"`

	// SuppressedLabels is the number of labels withheld by the suppression
	// floor or the disclosure cap.
	SuppressedLabels int `json:"suppressed_labels"`
}

// CategoryFrequency is one disclosed label and its relative frequency.
type CategoryFrequency struct {
	Label string  `json:"label"`
	Ratio float64 `json:"ratio"`
}

// NewCategoricalStats builds the disclosed frequency table from label counts.
// Labels occurring fewer than suppressionFloor times are withheld, as are
// labels beyond maxDisclosed. This is the only constructor; enforcing the
// floor here keeps callers out of the disclosure decision entirely.
func NewCategoricalStats(counts map[string]int64, nonNullCount int64, suppressionFloor, maxDisclosed int) *CategoricalStats {
	stats := &CategoricalStats{DistinctCount: len(counts)}
	if nonNullCount <= 0 {
		stats.SuppressedLabels = len(counts)
		return stats
	}

	type labelCount struct {
		label string
		count int64
	}
	ordered := make([]labelCount, 0, len(counts))
	for label, count := range counts {
		ordered = append(ordered, labelCount{label, count})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].label < ordered[j].label
	})

	for _, lc := range ordered {
		if lc.count < int64(suppressionFloor) {
			stats.SuppressedLabels++
			continue
		}
		if maxDisclosed > 0 && len(stats.TopValues) >= maxDisclosed {
			stats.SuppressedLabels++
			continue
		}
		stats.TopValues = append(stats.TopValues, CategoryFrequency{
			Label: lc.label,
			Ratio: float64(lc.count) / float64(nonNullCount),
		})
	}

	return stats
}

// DisclosedRatio returns the summed frequency of disclosed labels.
func (s *CategoricalStats) DisclosedRatio() float64 {
	var total float64
	for _, tv := range s.TopValues {
		total += tv.Ratio
	}
	return total
}

// Labels returns the disclosed labels in frequency order.
func (s *CategoricalStats) Labels() []string {
	labels := make([]string, len(s.TopValues))
	for i, tv := range s.TopValues {
		labels[i] = tv.Label
	}
	return labels
}

// DatetimeStats holds aggregates for datetime columns.
type DatetimeStats struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`

	// Format names the dominant source layout (see fingerprint package).
	Format string `json:"format,omitempty"`
}

// TextStats holds aggregates for text and identifier columns.
type TextStats struct {
	MinLength int     `json:"min_length"`
	MaxLength int     `json:"max_length"`
	AvgLength float64 `json:"avg_length"`

	// Patterns lists recognized shape classes with match rates.
	// Match examples are never retained.
	Patterns []DetectedPattern `json:"patterns,omitempty"`
}

// BooleanStats holds aggregates for boolean columns.
type BooleanStats struct {
	TrueRatio float64 `json:"true_ratio"`
}

// Clone returns a deep copy of the profile and its stat blocks.
func (p ColumnProfile) Clone() ColumnProfile {
	out := p
	if p.Numeric != nil {
		numeric := *p.Numeric
		out.Numeric = &numeric
	}
	if p.Categorical != nil {
		categorical := *p.Categorical
		categorical.TopValues = append([]CategoryFrequency(nil), p.Categorical.TopValues...)
		out.Categorical = &categorical
	}
	if p.Datetime != nil {
		datetime := *p.Datetime
		out.Datetime = &datetime
	}
	if p.Text != nil {
		text := *p.Text
		text.Patterns = append([]DetectedPattern(nil), p.Text.Patterns...)
		out.Text = &text
	}
	if p.Boolean != nil {
		boolean := *p.Boolean
		out.Boolean = &boolean
	}
	return out
}

// ============================================================================
// Detected Pattern
// ============================================================================

// DetectedPattern records a regex shape class matched against column values.
// Unlike a general profiler, no matched examples are carried: the name and
// rate are the entire disclosure.
type DetectedPattern struct {
	// Name identifies the pattern (e.g., "uuid", "email", "url").
	Name string `json:"name"`

	// MatchRate is the fraction of non-null values matching (0.0 - 1.0).
	MatchRate float64 `json:"match_rate"`
}

// Pattern names for recognized value shapes.
const (
	PatternUUID          = "uuid"
	PatternEmail         = "email"
	PatternURL           = "url"
	PatternPrefixedToken = "prefixed_token"
	PatternDigits        = "digits"
	PatternAlphanumeric  = "alphanumeric"
)

// MatchesPattern returns true if the named pattern was detected with a match
// rate at or above the threshold.
func (s *TextStats) MatchesPattern(name string, threshold float64) bool {
	for _, p := range s.Patterns {
		if p.Name == name && p.MatchRate >= threshold {
			return true
		}
	}
	return false
}
