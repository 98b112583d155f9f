// Package tabular provides the in-memory column-oriented dataset exchanged
// between pipeline components. How a dataset got into memory (file parsing,
// upstream services) is the caller's concern.
package tabular

import (
	"fmt"
	"strings"
)

// Column is a named, ordered series of cell values. Values may be nil;
// empty strings are treated as nulls throughout the pipeline.
type Column struct {
	Name   string
	Values []any
}

// Dataset is an in-memory table. Columns share a single row count and keep
// their declared order; order is part of the dataset's structural identity.
type Dataset struct {
	columns []Column
	byName  map[string]int
}

// New builds a dataset from columns, validating structural integrity:
// at least one column, non-blank unique names, equal value counts.
func New(columns ...Column) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset needs at least one column")
	}

	byName := make(map[string]int, len(columns))
	rowCount := len(columns[0].Values)
	for i, col := range columns {
		name := strings.TrimSpace(col.Name)
		if name == "" {
			return nil, fmt.Errorf("column %d has a blank name", i)
		}
		if _, exists := byName[name]; exists {
			return nil, fmt.Errorf("duplicate column name %q", name)
		}
		byName[name] = i
		if len(col.Values) != rowCount {
			return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(col.Values), rowCount)
		}
		columns[i].Name = name
	}

	return &Dataset{columns: columns, byName: byName}, nil
}

// FromRows builds a dataset from a header and row-oriented records.
// Short rows are padded with nulls; long rows are an error.
func FromRows(header []string, rows [][]any) (*Dataset, error) {
	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: name, Values: make([]any, len(rows))}
	}

	for r, row := range rows {
		if len(row) > len(header) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", r, len(row), len(header))
		}
		for c := range header {
			if c < len(row) {
				columns[c].Values[r] = row[c]
			}
		}
	}

	return New(columns...)
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	if len(d.columns) == 0 {
		return 0
	}
	return len(d.columns[0].Values)
}

// ColumnCount returns the number of columns.
func (d *Dataset) ColumnCount() int {
	return len(d.columns)
}

// Columns returns the columns in declared order. The slice is shared;
// callers must not mutate it.
func (d *Dataset) Columns() []Column {
	return d.columns
}

// ColumnNames returns the column names in declared order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, col := range d.columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the named column, or false if absent.
func (d *Dataset) Column(name string) (Column, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Column{}, false
	}
	return d.columns[i], true
}

// Row materializes row r in column order.
func (d *Dataset) Row(r int) []any {
	row := make([]any, len(d.columns))
	for c, col := range d.columns {
		row[c] = col.Values[r]
	}
	return row
}

// IsNull reports whether a cell value counts as null: nil or empty string.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
