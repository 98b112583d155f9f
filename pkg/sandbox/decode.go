package sandbox

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/tabular"
)

type programOutput struct {
	Columns []programColumn `json:"columns"`
}

type programColumn struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// decodeOutput parses program output and checks it against the metadata:
// column names in declared order, the target row count in every column, and
// cell values of the declared types. Nulls are allowed everywhere; the
// fidelity validator judges whether there are too many.
func decodeOutput(raw string, metadata *models.DatasetMetadata, targetRows int) (*tabular.Dataset, error) {
	var out programOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, newError(FailureSchemaMismatch, "program output is not valid JSON", err)
	}

	if len(out.Columns) != len(metadata.Columns) {
		return nil, newError(FailureSchemaMismatch,
			fmt.Sprintf("program produced %d columns, schema has %d",
				len(out.Columns), len(metadata.Columns)), nil)
	}

	columns := make([]tabular.Column, len(out.Columns))
	for i, col := range out.Columns {
		declared := metadata.Columns[i]
		if col.Name != declared.Name {
			return nil, newError(FailureSchemaMismatch,
				fmt.Sprintf("column %d is %q, schema declares %q in that position",
					i, col.Name, declared.Name), nil)
		}
		if len(col.Values) != targetRows {
			return nil, newError(FailureSchemaMismatch,
				fmt.Sprintf("column %q has %d rows, expected %d",
					col.Name, len(col.Values), targetRows), nil)
		}
		for r, v := range col.Values {
			if v == nil {
				continue
			}
			if err := checkValueType(v, declared.Type); err != nil {
				return nil, newError(FailureSchemaMismatch,
					fmt.Sprintf("column %q row %d: %v", col.Name, r, err), nil)
			}
		}
		columns[i] = tabular.Column{Name: col.Name, Values: col.Values}
	}

	dataset, err := tabular.New(columns...)
	if err != nil {
		return nil, newError(FailureSchemaMismatch, "program output is not a coherent dataset", err)
	}
	return dataset, nil
}

// checkValueType verifies one decoded JSON value against a declared column
// type. JSON numbers arrive as float64; integers must be whole.
func checkValueType(v any, t models.ColumnType) error {
	switch t {
	case models.ColumnTypeInteger:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("expected an integer, got %T", v)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("expected an integer, got %v", f)
		}
	case models.ColumnTypeFloat:
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("expected a number, got %T", v)
		}
	case models.ColumnTypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected a boolean, got %T", v)
		}
	default:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected a string, got %T", v)
		}
	}
	return nil
}
