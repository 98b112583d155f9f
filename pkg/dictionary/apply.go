package dictionary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/miragedata/mirage-engine/pkg/models"
)

// ApplyToMetadata overlays dictionary rules onto extracted metadata and
// returns the merged copy. The input is never mutated: matching runs on the
// extracted original while synthesis sees the overlaid clone.
//
// Only rule fields with a profile-level counterpart are merged here. Pattern
// and uniqueness ride along in ToConstraints instead; a declared pattern is
// a generation requirement, not an observed shape class.
func (d *Dictionary) ApplyToMetadata(metadata *models.DatasetMetadata) *models.DatasetMetadata {
	if metadata == nil {
		return nil
	}
	out := metadata.Clone()
	if d == nil || len(d.Columns) == 0 {
		return out
	}

	for name, rule := range d.Columns {
		profile, ok := out.Column(name)
		if !ok {
			continue
		}
		if rule.Required {
			profile.NullRatio = 0
		}
		overlayNumericBounds(profile, rule)
		overlayAllowedValues(profile, rule)
		if rule.Format != "" && profile.Datetime != nil {
			profile.Datetime.Format = rule.Format
		}
		overlayLengths(profile, rule)
	}
	return out
}

// overlayNumericBounds replaces observed bounds with declared ones and pulls
// the remaining aggregates inside the new range.
func overlayNumericBounds(profile *models.ColumnProfile, rule *ColumnRule) {
	if profile.Numeric == nil || (rule.MinValue == nil && rule.MaxValue == nil) {
		return
	}
	n := profile.Numeric
	if rule.MinValue != nil {
		n.Min = *rule.MinValue
	}
	if rule.MaxValue != nil {
		n.Max = *rule.MaxValue
	}

	clamp := func(v float64) float64 {
		if v < n.Min {
			return n.Min
		}
		if v > n.Max {
			return n.Max
		}
		return v
	}
	n.Mean = clamp(n.Mean)
	n.Quantiles.P05 = clamp(n.Quantiles.P05)
	n.Quantiles.P25 = clamp(n.Quantiles.P25)
	n.Quantiles.P50 = clamp(n.Quantiles.P50)
	n.Quantiles.P75 = clamp(n.Quantiles.P75)
	n.Quantiles.P95 = clamp(n.Quantiles.P95)
}

// overlayAllowedValues rebuilds the frequency table around the declared
// label set. Disclosed ratios of labels that stay allowed are kept; the
// remaining probability mass spreads uniformly over allowed labels the
// profile had no ratio for. With no such labels the kept ratios are
// renormalized to a proper distribution.
func overlayAllowedValues(profile *models.ColumnProfile, rule *ColumnRule) {
	if profile.Categorical == nil || len(rule.AllowedValues) == 0 {
		return
	}

	disclosed := map[string]float64{}
	for _, tv := range profile.Categorical.TopValues {
		disclosed[tv.Label] = tv.Ratio
	}

	var kept []models.CategoryFrequency
	var leftover []string
	var knownMass float64
	for _, label := range rule.AllowedValues {
		if ratio, ok := disclosed[label]; ok {
			kept = append(kept, models.CategoryFrequency{Label: label, Ratio: ratio})
			knownMass += ratio
		} else {
			leftover = append(leftover, label)
		}
	}

	remaining := 1.0 - knownMass
	if remaining < 0 {
		remaining = 0
	}
	switch {
	case len(leftover) > 0:
		share := remaining / float64(len(leftover))
		for _, label := range leftover {
			kept = append(kept, models.CategoryFrequency{Label: label, Ratio: share})
		}
	case knownMass > 0:
		for i := range kept {
			kept[i].Ratio /= knownMass
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Ratio != kept[j].Ratio {
			return kept[i].Ratio > kept[j].Ratio
		}
		return kept[i].Label < kept[j].Label
	})

	profile.Categorical = &models.CategoricalStats{
		DistinctCount:    len(rule.AllowedValues),
		TopValues:        kept,
		SuppressedLabels: 0,
	}
}

func overlayLengths(profile *models.ColumnProfile, rule *ColumnRule) {
	if profile.Text == nil || (rule.MinLength == nil && rule.MaxLength == nil) {
		return
	}
	t := profile.Text
	if rule.MinLength != nil {
		t.MinLength = *rule.MinLength
	}
	if rule.MaxLength != nil {
		t.MaxLength = *rule.MaxLength
	}
	if t.AvgLength < float64(t.MinLength) {
		t.AvgLength = float64(t.MinLength)
	}
	if t.MaxLength > 0 && t.AvgLength > float64(t.MaxLength) {
		t.AvgLength = float64(t.MaxLength)
	}
}

// ToConstraints converts the dictionary into the constraint overlay carried
// on a GenerationSpec. Column descriptions become table-level notes so the
// synthesizer sees them even though no profile field can hold them.
func (d *Dictionary) ToConstraints() *models.GenerationConstraints {
	if d == nil || len(d.Columns) == 0 {
		return nil
	}

	out := &models.GenerationConstraints{Columns: map[string]*models.ColumnConstraint{}}
	for _, name := range d.ColumnNames() {
		rule := d.Columns[name]
		cc := &models.ColumnConstraint{
			MinValue:  copyFloatPtr(rule.MinValue),
			MaxValue:  copyFloatPtr(rule.MaxValue),
			MinLength: copyIntPtr(rule.MinLength),
			MaxLength: copyIntPtr(rule.MaxLength),
			Pattern:   rule.Pattern,
			Format:    rule.Format,
			Unique:    rule.Unique,
			NotNull:   rule.Required,
		}
		if len(rule.AllowedValues) > 0 {
			cc.AllowedValues = append([]string(nil), rule.AllowedValues...)
		}
		if hasConstraint(cc) {
			out.Columns[name] = cc
		}
		if rule.Description != "" {
			out.Notes = append(out.Notes, fmt.Sprintf("%s: %s", name, rule.Description))
		}
	}
	if len(out.Columns) == 0 && len(out.Notes) == 0 {
		return nil
	}
	return out
}

func hasConstraint(cc *models.ColumnConstraint) bool {
	return cc.MinValue != nil || cc.MaxValue != nil ||
		cc.MinLength != nil || cc.MaxLength != nil ||
		len(cc.AllowedValues) > 0 || cc.Pattern != "" ||
		cc.Format != "" || cc.Unique || cc.NotNull
}

// Describe renders one human-readable line per rule, sorted by column name.
// Prompt builders embed these lines directly.
func (d *Dictionary) Describe() []string {
	if d == nil || len(d.Columns) == 0 {
		return nil
	}

	lines := make([]string, 0, len(d.Columns))
	for _, name := range d.ColumnNames() {
		rule := d.Columns[name]
		parts := []string{}
		if rule.Type != "" {
			parts = append(parts, rule.Type)
		}
		if len(rule.AllowedValues) > 0 {
			parts = append(parts, "allowed values: "+strings.Join(rule.AllowedValues, ", "))
		}
		if rule.MinValue != nil && rule.MaxValue != nil {
			parts = append(parts, fmt.Sprintf("range %g to %g", *rule.MinValue, *rule.MaxValue))
		} else if rule.MinValue != nil {
			parts = append(parts, fmt.Sprintf("minimum %g", *rule.MinValue))
		} else if rule.MaxValue != nil {
			parts = append(parts, fmt.Sprintf("maximum %g", *rule.MaxValue))
		}
		if rule.MinLength != nil || rule.MaxLength != nil {
			parts = append(parts, lengthClause(rule.MinLength, rule.MaxLength))
		}
		if rule.Pattern != "" {
			parts = append(parts, "pattern "+rule.Pattern)
		}
		if rule.Format != "" {
			parts = append(parts, "format "+rule.Format)
		}
		if rule.Required {
			parts = append(parts, "required")
		}
		if rule.Unique {
			parts = append(parts, "unique")
		}
		if rule.Description != "" {
			parts = append(parts, rule.Description)
		}
		if len(parts) == 0 {
			parts = append(parts, "no constraints")
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(parts, "; ")))
	}
	return lines
}

func lengthClause(minLen, maxLen *int) string {
	switch {
	case minLen != nil && maxLen != nil:
		return fmt.Sprintf("length %d to %d", *minLen, *maxLen)
	case minLen != nil:
		return fmt.Sprintf("length at least %d", *minLen)
	default:
		return fmt.Sprintf("length at most %d", *maxLen)
	}
}

func copyFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
