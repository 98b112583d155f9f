package fingerprint

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/tabular"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(DefaultOptions(), zap.NewNop())
}

func mustDataset(t *testing.T, columns ...tabular.Column) *tabular.Dataset {
	t.Helper()
	ds, err := tabular.New(columns...)
	require.NoError(t, err)
	return ds
}

func TestExtract_TypeInference(t *testing.T) {
	tests := []struct {
		name     string
		values   []any
		wantType models.ColumnType
	}{
		{"native bools", []any{true, false, true}, models.ColumnTypeBoolean},
		{"yes no strings", []any{"yes", "no", "Yes", "NO"}, models.ColumnTypeBoolean},
		{"zero one ints", []any{0, 1, 1, 0}, models.ColumnTypeBoolean},
		{"native ints", []any{1, 2, 3, 4}, models.ColumnTypeInteger},
		{"integer strings", []any{"10", "20", "30"}, models.ColumnTypeInteger},
		{"native floats", []any{1.5, 2.5, 3.5}, models.ColumnTypeFloat},
		{"float strings", []any{"1.5", "2.25", "3.75"}, models.ColumnTypeFloat},
		{"integral floats are integers", []any{1.0, 2.0, 3.0}, models.ColumnTypeInteger},
		{"rfc3339 strings", []any{"2023-01-15T10:00:00Z", "2023-02-01T12:30:00Z"}, models.ColumnTypeDatetime},
		{"date strings", []any{"2023-01-15", "2023-02-01", "2023-03-10"}, models.ColumnTypeDatetime},
		{"native times", []any{time.Now(), time.Now().Add(time.Hour)}, models.ColumnTypeDatetime},
		{"uuids", []any{
			"550e8400-e29b-41d4-a716-446655440000",
			"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			"6ba7b811-9dad-11d1-80b4-00c04fd430c8",
		}, models.ColumnTypeIdentifier},
		{"prefixed tokens", []any{"cus_NffrFeUfNV2Hib", "cus_4QFJOjw2pOmqtT", "cus_9s6XKzkNRiz8i3"}, models.ColumnTypeIdentifier},
		{"repeated labels", []any{"active", "active", "inactive", "active"}, models.ColumnTypeCategorical},
		{"long distinct text", func() []any {
			values := make([]any, 120)
			for i := range values {
				values[i] = strings.Repeat("word ", i%7+1) + string(rune('a'+i%26))
			}
			return values
		}(), models.ColumnTypeText},
	}

	e := newTestExtractor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := mustDataset(t, tabular.Column{Name: "col", Values: tt.values})
			meta, err := e.Extract(ds)
			require.NoError(t, err)
			require.Len(t, meta.Columns, 1)
			assert.Equal(t, tt.wantType, meta.Columns[0].Type)
		})
	}
}

func TestExtract_NumericStats(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t, tabular.Column{Name: "amount", Values: []any{10.0, 12.5, 9.0, 11.0, 13.0}})

	meta, err := e.Extract(ds)
	require.NoError(t, err)

	col := meta.Columns[0]
	require.NotNil(t, col.Numeric)
	assert.Equal(t, 9.0, col.Numeric.Min)
	assert.Equal(t, 13.0, col.Numeric.Max)
	assert.InDelta(t, 11.1, col.Numeric.Mean, 1e-9)
	assert.InDelta(t, 1.4966629547, col.Numeric.StdDev, 1e-9)
	assert.InDelta(t, 11.0, col.Numeric.Quantiles.P50, 1e-9)
	assert.InDelta(t, 10.0, col.Numeric.Quantiles.P25, 1e-9)
	assert.InDelta(t, 12.5, col.Numeric.Quantiles.P75, 1e-9)
	assert.InDelta(t, 9.2, col.Numeric.Quantiles.P05, 1e-9)
	assert.InDelta(t, 12.9, col.Numeric.Quantiles.P95, 1e-9)
}

func TestExtract_NullHandling(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t, tabular.Column{Name: "score", Values: []any{1.5, nil, "", 2.5, "  "}})

	meta, err := e.Extract(ds)
	require.NoError(t, err)

	col := meta.Columns[0]
	assert.Equal(t, models.ColumnTypeFloat, col.Type)
	assert.InDelta(t, 0.6, col.NullRatio, 1e-9)
}

func TestExtract_AllNullColumn(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t, tabular.Column{Name: "empty", Values: []any{nil, "", nil}})

	meta, err := e.Extract(ds)
	require.NoError(t, err)

	col := meta.Columns[0]
	assert.Equal(t, models.ColumnTypeText, col.Type)
	assert.Equal(t, 1.0, col.NullRatio)
	require.NotNil(t, col.Text)
	assert.Empty(t, col.Text.Patterns)
}

func TestExtract_SuppressionFloor(t *testing.T) {
	e := newTestExtractor(t)
	// "archived" occurs once, below the floor of 2.
	ds := mustDataset(t, tabular.Column{Name: "status", Values: []any{
		"active", "active", "active", "inactive", "inactive", "archived",
	}})

	meta, err := e.Extract(ds)
	require.NoError(t, err)

	col := meta.Columns[0]
	require.Equal(t, models.ColumnTypeCategorical, col.Type)
	require.NotNil(t, col.Categorical)
	assert.Equal(t, 3, col.Categorical.DistinctCount)
	assert.Equal(t, 1, col.Categorical.SuppressedLabels)
	assert.NotContains(t, col.Categorical.Labels(), "archived")
}

func TestExtract_NoRawValuesDisclosed(t *testing.T) {
	e := newTestExtractor(t)
	secrets := []any{
		"patient zero has condition X",
		"patient one has condition Y",
		"patient two has condition Z",
	}
	ds := mustDataset(t,
		tabular.Column{Name: "note", Values: secrets},
		tabular.Column{Name: "ssn", Values: []any{"532-11-0001", "532-11-0002", "532-11-0003"}},
	)

	meta, err := e.Extract(ds)
	require.NoError(t, err)

	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	encoded := string(raw)

	for _, secret := range secrets {
		assert.NotContains(t, encoded, secret.(string))
	}
	assert.NotContains(t, encoded, "532-11-0001")
}

func TestExtract_Determinism(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t,
		tabular.Column{Name: "id", Values: []any{1, 2, 3, 4, 5}},
		tabular.Column{Name: "amount", Values: []any{10.0, 12.5, 9.0, 11.0, 13.0}},
		tabular.Column{Name: "category", Values: []any{"A", "A", "B", "A", "B"}},
	)

	first, err := e.Extract(ds)
	require.NoError(t, err)
	second, err := e.Extract(ds)
	require.NoError(t, err)

	first.ExtractedAt = time.Time{}
	second.ExtractedAt = time.Time{}
	assert.Equal(t, first, second)
}

func TestExtract_CorrelationMatrix(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t,
		tabular.Column{Name: "x", Values: []any{1.0, 2.0, 3.0, 4.0, 5.0}},
		tabular.Column{Name: "y", Values: []any{2.0, 4.0, 6.0, 8.0, 10.0}},
		tabular.Column{Name: "z", Values: []any{10.0, 8.0, 6.0, 4.0, 2.0}},
	)

	meta, err := e.Extract(ds)
	require.NoError(t, err)
	require.NotNil(t, meta.Correlations)
	assert.Equal(t, []string{"x", "y", "z"}, meta.Correlations.Columns)

	xy, ok := meta.Correlations.Pair("x", "y")
	require.True(t, ok)
	assert.InDelta(t, 1.0, xy, 1e-9)

	xz, ok := meta.Correlations.Pair("x", "z")
	require.True(t, ok)
	assert.InDelta(t, -1.0, xz, 1e-9)

	assert.Equal(t, 1.0, meta.Correlations.At(0, 0))
}

func TestExtract_CorrelationOmittedBelowTwoNumeric(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t,
		tabular.Column{Name: "amount", Values: []any{1.0, 2.0}},
		tabular.Column{Name: "label", Values: []any{"a", "b"}},
	)

	meta, err := e.Extract(ds)
	require.NoError(t, err)
	assert.Nil(t, meta.Correlations)
}

func TestExtract_StructuralHash(t *testing.T) {
	e := newTestExtractor(t)

	base := mustDataset(t,
		tabular.Column{Name: "id", Values: []any{1, 2, 3}},
		tabular.Column{Name: "name", Values: []any{"a", "a", "b"}},
	)
	sameSchema := mustDataset(t,
		tabular.Column{Name: "id", Values: []any{100, 200, 300}},
		tabular.Column{Name: "name", Values: []any{"x", "x", "y"}},
	)
	reordered := mustDataset(t,
		tabular.Column{Name: "name", Values: []any{"a", "a", "b"}},
		tabular.Column{Name: "id", Values: []any{1, 2, 3}},
	)

	baseMeta, err := e.Extract(base)
	require.NoError(t, err)
	sameMeta, err := e.Extract(sameSchema)
	require.NoError(t, err)
	reorderedMeta, err := e.Extract(reordered)
	require.NoError(t, err)

	assert.Len(t, baseMeta.StructuralHash, 64)
	assert.Equal(t, baseMeta.StructuralHash, sameMeta.StructuralHash,
		"statistics must not affect the structural hash")
	assert.NotEqual(t, baseMeta.StructuralHash, reorderedMeta.StructuralHash,
		"column order is part of the schema")
}

func TestExtract_EmptyDataset(t *testing.T) {
	e := newTestExtractor(t)

	_, err := e.Extract(nil)
	require.ErrorIs(t, err, apperrors.ErrExtractionFailed)

	empty := mustDataset(t, tabular.Column{Name: "id", Values: []any{}})
	_, err = e.Extract(empty)
	require.ErrorIs(t, err, apperrors.ErrExtractionFailed)
}

func TestExtract_NonScalarDegradesToText(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t, tabular.Column{Name: "payload", Values: []any{
		map[string]any{"nested": "secret-value"},
		map[string]any{"nested": "other-secret"},
	}})

	meta, err := e.Extract(ds)
	require.NoError(t, err, "non-scalar columns degrade, never abort")

	col := meta.Columns[0]
	assert.Equal(t, models.ColumnTypeText, col.Type)
	require.NotNil(t, col.Text)
	assert.Empty(t, col.Text.Patterns)

	raw, err := json.Marshal(meta)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-value")
}

func TestExtract_BooleanRatio(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t, tabular.Column{Name: "flag", Values: []any{true, true, false, true}})

	meta, err := e.Extract(ds)
	require.NoError(t, err)

	col := meta.Columns[0]
	require.NotNil(t, col.Boolean)
	assert.InDelta(t, 0.75, col.Boolean.TrueRatio, 1e-9)
}

func TestExtract_DatetimeRange(t *testing.T) {
	e := newTestExtractor(t)
	ds := mustDataset(t, tabular.Column{Name: "created", Values: []any{
		"2023-03-10", "2023-01-15", "2023-02-01",
	}})

	meta, err := e.Extract(ds)
	require.NoError(t, err)

	col := meta.Columns[0]
	require.NotNil(t, col.Datetime)
	assert.Equal(t, "date", col.Datetime.Format)
	assert.Equal(t, 2023, col.Datetime.Min.Year())
	assert.Equal(t, time.January, col.Datetime.Min.Month())
	assert.Equal(t, time.March, col.Datetime.Max.Month())
}
