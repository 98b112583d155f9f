package models

import "sort"

// ============================================================================
// Fidelity Report
// ============================================================================

// FidelityReport is the verdict of comparing synthetic output against the
// source metadata. Scores are in [0, 1]; 1.0 means the disclosed aggregates
// are indistinguishable.
type FidelityReport struct {
	// ColumnScores maps column name to its per-column fidelity score.
	ColumnScores map[string]float64 `json:"column_scores"`

	// CorrelationScore is nil when the source had no correlation matrix.
	CorrelationScore *float64 `json:"correlation_score,omitempty"`

	// AggregateScore combines column scores and the correlation penalty.
	AggregateScore float64 `json:"aggregate_score"`

	// Threshold is the acceptance bar the aggregate was compared against.
	Threshold float64 `json:"threshold"`

	Passed bool `json:"passed"`

	TargetRows int `json:"target_rows"`
	ActualRows int `json:"actual_rows"`
}

// WorstColumns returns up to n column names ordered by ascending score.
// Ties break by name so feedback prompts are stable across runs.
func (r *FidelityReport) WorstColumns(n int) []string {
	type scored struct {
		name  string
		score float64
	}
	ranked := make([]scored, 0, len(r.ColumnScores))
	for name, score := range r.ColumnScores {
		ranked = append(ranked, scored{name, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		return ranked[i].name < ranked[j].name
	})
	if n > len(ranked) {
		n = len(ranked)
	}
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = ranked[i].name
	}
	return names
}
