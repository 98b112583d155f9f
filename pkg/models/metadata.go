package models

import (
	"time"
)

// ============================================================================
// Dataset Metadata
// ============================================================================

// DatasetMetadata is the complete privacy-safe summary of a source dataset.
// It is the only artifact downstream stages ever see; the source rows are
// discarded once extraction completes.
type DatasetMetadata struct {
	RowCount    int `json:"row_count"`
	ColumnCount int `json:"column_count"`

	// Columns holds one profile per source column, in declared order.
	Columns []ColumnProfile `json:"columns"`

	// Correlations is nil when fewer than two numeric columns exist.
	Correlations *CorrelationMatrix `json:"correlations,omitempty"`

	// StructuralHash fingerprints the schema (names, types, order).
	StructuralHash string `json:"structural_hash"`

	// FingerprintVector is the fixed-length numeric summary used for
	// catalog similarity search.
	FingerprintVector []float64 `json:"fingerprint_vector,omitempty"`

	ExtractorVersion string    `json:"extractor_version"`
	ExtractedAt      time.Time `json:"extracted_at"`
}

// Column returns the profile with the given name.
func (m *DatasetMetadata) Column(name string) (*ColumnProfile, bool) {
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in declared order.
func (m *DatasetMetadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		names[i] = col.Name
	}
	return names
}

// NumericColumnNames returns the names of integer and float columns in
// declared order, matching the axis order of the correlation matrix.
func (m *DatasetMetadata) NumericColumnNames() []string {
	var names []string
	for _, col := range m.Columns {
		if col.Type.IsNumeric() {
			names = append(names, col.Name)
		}
	}
	return names
}

// Clone returns a deep copy. Callers that overlay constraints onto metadata
// work on a clone so the extracted original stays untouched.
func (m *DatasetMetadata) Clone() *DatasetMetadata {
	if m == nil {
		return nil
	}
	out := *m
	out.Columns = make([]ColumnProfile, len(m.Columns))
	for i := range m.Columns {
		out.Columns[i] = m.Columns[i].Clone()
	}
	if m.Correlations != nil {
		corr := &CorrelationMatrix{
			Columns: append([]string(nil), m.Correlations.Columns...),
			Values:  make([][]float64, len(m.Correlations.Values)),
		}
		for i, row := range m.Correlations.Values {
			corr.Values[i] = append([]float64(nil), row...)
		}
		out.Correlations = corr
	}
	if m.FingerprintVector != nil {
		out.FingerprintVector = append([]float64(nil), m.FingerprintVector...)
	}
	return &out
}

// ============================================================================
// Correlation Matrix
// ============================================================================

// CorrelationMatrix holds pairwise Pearson coefficients for the numeric
// columns of a dataset. Values is symmetric with a unit diagonal; the axis
// order follows Columns.
type CorrelationMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// At returns the coefficient at the given axis indices.
func (c *CorrelationMatrix) At(i, j int) float64 {
	return c.Values[i][j]
}

// Pair returns the coefficient for a named column pair. The second return
// is false when either column is not on the axis.
func (c *CorrelationMatrix) Pair(a, b string) (float64, bool) {
	ai, bi := -1, -1
	for i, name := range c.Columns {
		if name == a {
			ai = i
		}
		if name == b {
			bi = i
		}
	}
	if ai < 0 || bi < 0 {
		return 0, false
	}
	return c.Values[ai][bi], true
}

// Size returns the number of columns on the matrix axis.
func (c *CorrelationMatrix) Size() int {
	return len(c.Columns)
}
