package tabular

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// WriteCSV writes the dataset as CSV with a header row. Nulls become empty
// fields; everything else is rendered with String.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(d.ColumnNames()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, d.ColumnCount())
	for r := 0; r < d.RowCount(); r++ {
		for c, col := range d.columns {
			record[c] = String(col.Values[r])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// MarshalRecords renders the dataset as a JSON array of row objects,
// preserving column order within each object is not guaranteed by JSON;
// use WriteCSV when order matters to the consumer.
func (d *Dataset) MarshalRecords() ([]byte, error) {
	records := make([]map[string]any, d.RowCount())
	for r := range records {
		rec := make(map[string]any, d.ColumnCount())
		for _, col := range d.columns {
			rec[col.Name] = col.Values[r]
		}
		records[r] = rec
	}
	return json.Marshal(records)
}
