package pipeline

import (
	"fmt"

	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/synthesis"
)

// worstColumnLimit caps how many columns regeneration feedback calls out.
const worstColumnLimit = 3

// buildFeedback turns the last attempt into revision guidance for the
// synthesizer. Wasm programs have no source worth showing, so their failures
// restart from a clean prompt.
func (p *Pipeline) buildFeedback(r *run) *synthesis.Feedback {
	last := r.attempts[len(r.attempts)-1]
	if last.ProgramLanguage == models.ProgramLanguageWasm {
		return nil
	}

	fb := &synthesis.Feedback{PreviousSource: last.ProgramSource}
	if last.ExecutionError != "" {
		fb.Lines = append(fb.Lines, "execution failed: "+last.ExecutionError)
		return fb
	}

	report := last.Report
	fb.Lines = append(fb.Lines, fmt.Sprintf(
		"aggregate fidelity %.3f is below the required %.3f", report.AggregateScore, report.Threshold))
	for _, name := range report.WorstColumns(worstColumnLimit) {
		fb.Lines = append(fb.Lines, fmt.Sprintf(
			"column %q scored %.3f; reproduce its disclosed statistics more closely",
			name, report.ColumnScores[name]))
	}
	if report.CorrelationScore != nil && *report.CorrelationScore < report.Threshold {
		fb.Lines = append(fb.Lines, fmt.Sprintf(
			"pairwise correlations drifted (score %.3f); preserve the disclosed correlation matrix",
			*report.CorrelationScore))
	}
	return fb
}

// tightenConstraints pins the worst-scoring columns to their disclosed
// statistics: explicit numeric bounds, and for fully disclosed categorical
// columns the exact label set with target frequencies. User-supplied
// constraints are never overridden, only filled in. Sandbox failures carry
// no report and tighten nothing.
func tightenConstraints(base *models.GenerationConstraints, metadata *models.DatasetMetadata, report *models.FidelityReport) *models.GenerationConstraints {
	if report == nil {
		return base
	}

	out := cloneConstraints(base)
	for _, name := range report.WorstColumns(worstColumnLimit) {
		profile, ok := metadata.Column(name)
		if !ok {
			continue
		}
		cc := out.Columns[name]
		if cc == nil {
			cc = &models.ColumnConstraint{}
			out.Columns[name] = cc
		}

		switch {
		case profile.Numeric != nil:
			if cc.MinValue == nil {
				v := profile.Numeric.Min
				cc.MinValue = &v
			}
			if cc.MaxValue == nil {
				v := profile.Numeric.Max
				cc.MaxValue = &v
			}
		case profile.Categorical != nil && len(profile.Categorical.TopValues) > 0:
			stats := profile.Categorical
			// Restricting to disclosed labels is only sound when nothing
			// was suppressed.
			if len(cc.AllowedValues) == 0 && stats.DistinctCount == len(stats.TopValues) {
				for _, tv := range stats.TopValues {
					cc.AllowedValues = append(cc.AllowedValues, tv.Label)
				}
			}
			if len(cc.TargetFrequencies) == 0 {
				cc.TargetFrequencies = make(map[string]float64, len(stats.TopValues))
				for _, tv := range stats.TopValues {
					cc.TargetFrequencies[tv.Label] = tv.Ratio
				}
			}
		}
	}

	out.Notes = append(out.Notes, fmt.Sprintf(
		"previous attempt scored %.3f; match the disclosed statistics exactly", report.AggregateScore))
	return out
}

func cloneConstraints(base *models.GenerationConstraints) *models.GenerationConstraints {
	out := &models.GenerationConstraints{
		Columns: map[string]*models.ColumnConstraint{},
	}
	if base == nil {
		return out
	}
	for name, cc := range base.Columns {
		if cc == nil {
			continue
		}
		copied := *cc
		if cc.MinValue != nil {
			v := *cc.MinValue
			copied.MinValue = &v
		}
		if cc.MaxValue != nil {
			v := *cc.MaxValue
			copied.MaxValue = &v
		}
		if cc.MinLength != nil {
			v := *cc.MinLength
			copied.MinLength = &v
		}
		if cc.MaxLength != nil {
			v := *cc.MaxLength
			copied.MaxLength = &v
		}
		copied.AllowedValues = append([]string(nil), cc.AllowedValues...)
		if cc.TargetFrequencies != nil {
			copied.TargetFrequencies = make(map[string]float64, len(cc.TargetFrequencies))
			for k, v := range cc.TargetFrequencies {
				copied.TargetFrequencies[k] = v
			}
		}
		out.Columns[name] = &copied
	}
	out.Notes = append([]string(nil), base.Notes...)
	return out
}
