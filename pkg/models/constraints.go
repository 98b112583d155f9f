package models

// ============================================================================
// Generation Spec
// ============================================================================

// GenerationSpec is the full request handed to program acquisition: the
// extracted metadata, the requested output size, and any user-supplied
// constraint overlay.
type GenerationSpec struct {
	Metadata    *DatasetMetadata       `json:"metadata"`
	TargetRows  int                    `json:"target_rows"`
	Constraints *GenerationConstraints `json:"constraints,omitempty"`
}

// ============================================================================
// Generation Constraints
// ============================================================================

// GenerationConstraints is the user-dictionary overlay on extracted
// metadata. Bounds and allowed values that map onto profile fields are
// merged into the metadata before synthesis; everything else here is
// surfaced to the synthesizer as additional requirements.
type GenerationConstraints struct {
	// Columns maps column name to its constraint set.
	Columns map[string]*ColumnConstraint `json:"columns,omitempty"`

	// Notes carries free-form requirements that apply to the whole table.
	Notes []string `json:"notes,omitempty"`
}

// ColumnConstraint narrows what a generator may emit for one column.
// Nil pointer fields mean "no constraint".
type ColumnConstraint struct {
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`

	// AllowedValues restricts categorical output to this label set.
	AllowedValues []string `json:"allowed_values,omitempty"`

	// TargetFrequencies requests specific label ratios. Keys must be a
	// subset of AllowedValues when both are set.
	TargetFrequencies map[string]float64 `json:"target_frequencies,omitempty"`

	// Pattern is a regular expression generated strings should match.
	Pattern string `json:"pattern,omitempty"`

	MinLength *int `json:"min_length,omitempty"`
	MaxLength *int `json:"max_length,omitempty"`

	// Format names a datetime layout the column should use.
	Format string `json:"format,omitempty"`

	// Unique requires all generated values to be distinct.
	Unique bool `json:"unique,omitempty"`

	// NotNull forbids null output even when the source column had nulls.
	NotNull bool `json:"not_null,omitempty"`
}

// IsEmpty reports whether the constraint set carries nothing.
func (c *GenerationConstraints) IsEmpty() bool {
	return c == nil || (len(c.Columns) == 0 && len(c.Notes) == 0)
}

// Column returns the constraint for a named column, or nil.
func (c *GenerationConstraints) Column(name string) *ColumnConstraint {
	if c == nil {
		return nil
	}
	return c.Columns[name]
}
