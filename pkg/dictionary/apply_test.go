package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miragedata/mirage-engine/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func overlayMetadata() *models.DatasetMetadata {
	return &models.DatasetMetadata{
		RowCount:    1000,
		ColumnCount: 4,
		Columns: []models.ColumnProfile{
			{
				Name:          "amount",
				Type:          models.ColumnTypeFloat,
				NullRatio:     0.05,
				DistinctRatio: 0.8,
				Numeric: &models.NumericStats{
					Min: 5, Max: 200, Mean: 90, StdDev: 40,
					Quantiles: models.Quantiles{P05: 10, P25: 40, P50: 85, P75: 130, P95: 190},
				},
			},
			{
				Name:          "status",
				Type:          models.ColumnTypeCategorical,
				DistinctRatio: 0.01,
				Categorical: &models.CategoricalStats{
					DistinctCount: 5,
					TopValues: []models.CategoryFrequency{
						{Label: "active", Ratio: 0.6},
						{Label: "closed", Ratio: 0.3},
					},
					SuppressedLabels: 3,
				},
			},
			{
				Name: "note",
				Type: models.ColumnTypeText,
				Text: &models.TextStats{MinLength: 2, MaxLength: 80, AvgLength: 24},
			},
			{
				Name:     "created_at",
				Type:     models.ColumnTypeDatetime,
				Datetime: &models.DatetimeStats{Format: "iso8601"},
			},
		},
		StructuralHash: "deadbeef",
	}
}

func TestDictionary_ApplyToMetadata_NumericBounds(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"amount": {MinValue: floatPtr(0), MaxValue: floatPtr(100)},
	}}
	original := overlayMetadata()

	merged := dict.ApplyToMetadata(original)
	require.NotNil(t, merged)

	profile, ok := merged.Column("amount")
	require.True(t, ok)
	require.NotNil(t, profile.Numeric)
	assert.Equal(t, 0.0, profile.Numeric.Min)
	assert.Equal(t, 100.0, profile.Numeric.Max)
	assert.Equal(t, 90.0, profile.Numeric.Mean, "mean inside the new range is untouched")
	assert.Equal(t, 100.0, profile.Numeric.Quantiles.P75, "quantiles clamp into the declared range")
	assert.Equal(t, 100.0, profile.Numeric.Quantiles.P95)
	assert.Equal(t, 10.0, profile.Numeric.Quantiles.P05)

	// The extracted original is never mutated.
	untouched, _ := original.Column("amount")
	assert.Equal(t, 5.0, untouched.Numeric.Min)
	assert.Equal(t, 190.0, untouched.Numeric.Quantiles.P95)
}

func TestDictionary_ApplyToMetadata_AllowedValuesFillsLeftoverMass(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"status": {AllowedValues: []string{"active", "pending"}},
	}}

	merged := dict.ApplyToMetadata(overlayMetadata())
	profile, ok := merged.Column("status")
	require.True(t, ok)
	require.NotNil(t, profile.Categorical)

	assert.Equal(t, 2, profile.Categorical.DistinctCount)
	assert.Equal(t, 0, profile.Categorical.SuppressedLabels)
	require.Len(t, profile.Categorical.TopValues, 2)
	assert.Equal(t, "active", profile.Categorical.TopValues[0].Label)
	assert.InDelta(t, 0.6, profile.Categorical.TopValues[0].Ratio, 1e-12)
	assert.Equal(t, "pending", profile.Categorical.TopValues[1].Label)
	assert.InDelta(t, 0.4, profile.Categorical.TopValues[1].Ratio, 1e-12,
		"undisclosed label absorbs the leftover mass")
}

func TestDictionary_ApplyToMetadata_AllowedValuesRenormalizes(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"status": {AllowedValues: []string{"active", "closed"}},
	}}

	merged := dict.ApplyToMetadata(overlayMetadata())
	profile, _ := merged.Column("status")
	require.NotNil(t, profile.Categorical)
	require.Len(t, profile.Categorical.TopValues, 2)

	var total float64
	for _, tv := range profile.Categorical.TopValues {
		total += tv.Ratio
	}
	assert.InDelta(t, 1.0, total, 1e-12, "ratios renormalize when every allowed label had a disclosed ratio")
	assert.InDelta(t, 0.6/0.9, profile.Categorical.TopValues[0].Ratio, 1e-12)
}

func TestDictionary_ApplyToMetadata_RequiredClearsNullRatio(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"amount": {Required: true},
	}}

	merged := dict.ApplyToMetadata(overlayMetadata())
	profile, _ := merged.Column("amount")
	assert.Equal(t, 0.0, profile.NullRatio)
}

func TestDictionary_ApplyToMetadata_FormatAndLengths(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"created_at": {Format: "2006-01-02"},
		"note":       {MinLength: intPtr(30), MaxLength: intPtr(60)},
	}}

	merged := dict.ApplyToMetadata(overlayMetadata())

	createdAt, _ := merged.Column("created_at")
	assert.Equal(t, "2006-01-02", createdAt.Datetime.Format)

	note, _ := merged.Column("note")
	assert.Equal(t, 30, note.Text.MinLength)
	assert.Equal(t, 60, note.Text.MaxLength)
	assert.Equal(t, 30.0, note.Text.AvgLength, "average pulls up to the new minimum")
}

func TestDictionary_ApplyToMetadata_IgnoresUnknownColumns(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"no_such_column": {Required: true, MinValue: floatPtr(1)},
	}}
	original := overlayMetadata()

	merged := dict.ApplyToMetadata(original)
	require.NotNil(t, merged)
	assert.Equal(t, original.ColumnNames(), merged.ColumnNames())
}

func TestDictionary_ApplyToMetadata_NilReceiverClones(t *testing.T) {
	var dict *Dictionary
	original := overlayMetadata()

	merged := dict.ApplyToMetadata(original)
	require.NotNil(t, merged)
	assert.NotSame(t, original, merged)
	assert.Equal(t, original.StructuralHash, merged.StructuralHash)
}

func TestDictionary_ToConstraints(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"amount": {
			Type:        "float",
			Description: "Gross order value",
			MinValue:    floatPtr(0),
			MaxValue:    floatPtr(100),
			Required:    true,
		},
		"email": {
			Type:    "string",
			Pattern: "^[^@]+@[^@]+$",
			Unique:  true,
		},
		"status": {
			AllowedValues: []string{"active", "closed"},
		},
		"plain": {
			Type: "string",
		},
	}}

	constraints := dict.ToConstraints()
	require.NotNil(t, constraints)
	assert.False(t, constraints.IsEmpty())

	amount := constraints.Column("amount")
	require.NotNil(t, amount)
	require.NotNil(t, amount.MinValue)
	assert.Equal(t, 0.0, *amount.MinValue)
	assert.True(t, amount.NotNull)

	email := constraints.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, "^[^@]+@[^@]+$", email.Pattern)
	assert.True(t, email.Unique)

	status := constraints.Column("status")
	require.NotNil(t, status)
	assert.Equal(t, []string{"active", "closed"}, status.AllowedValues)

	assert.Nil(t, constraints.Column("plain"), "a bare type declaration is not a generation constraint")
	assert.Equal(t, []string{"amount: Gross order value"}, constraints.Notes)
}

func TestDictionary_ToConstraints_Empty(t *testing.T) {
	var dict *Dictionary
	assert.Nil(t, dict.ToConstraints())
	assert.Nil(t, (&Dictionary{}).ToConstraints())
}

func TestDictionary_Describe(t *testing.T) {
	dict := &Dictionary{Columns: map[string]*ColumnRule{
		"status": {
			Type:          "categorical",
			AllowedValues: []string{"active", "closed"},
			Required:      true,
		},
		"amount": {
			Type:     "float",
			MinValue: floatPtr(0),
			MaxValue: floatPtr(100),
		},
	}}

	lines := dict.Describe()
	require.Len(t, lines, 2)
	assert.Equal(t, "amount: float; range 0 to 100", lines[0])
	assert.Equal(t, "status: categorical; allowed values: active, closed; required", lines[1])
}
