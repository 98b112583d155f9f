// Package dictionary parses user-supplied data dictionaries and applies
// their constraints to generation. A dictionary narrows what a generator may
// emit (bounds, allowed values, patterns) and lets callers validate datasets
// against declared rules.
package dictionary

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/miragedata/mirage-engine/pkg/apperrors"
	"github.com/miragedata/mirage-engine/pkg/jsonutil"
)

// Format identifies a dictionary source encoding.
type Format string

const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// Dictionary is a parsed, standardized constraint set keyed by column name.
type Dictionary struct {
	Columns map[string]*ColumnRule
}

// ColumnRule declares what a single column must look like. Nil pointer
// fields mean "no constraint".
type ColumnRule struct {
	// Type is one of string, integer, float, datetime, boolean, or empty
	// when the dictionary does not declare one. Aliases (int, numeric,
	// text, timestamp, ...) are normalized at parse time.
	Type string

	Description string

	Required bool
	Unique   bool

	MinValue *float64
	MaxValue *float64

	MinLength *int
	MaxLength *int

	// Pattern is a regular expression values should match.
	Pattern string

	// AllowedValues restricts the column to this label set.
	AllowedValues []string

	// Format names a datetime layout or other format spec.
	Format string
}

// ColumnNames returns the rule names sorted for deterministic iteration.
func (d *Dictionary) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for name := range d.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parser turns raw dictionary content into a Dictionary.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a dictionary parser.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger.Named("dictionary")}
}

// Parse parses dictionary content in the given format. FormatAuto detects
// the encoding from the content itself.
func (p *Parser) Parse(content []byte, format Format) (*Dictionary, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("parse dictionary: empty content: %w", apperrors.ErrDictionaryInvalid)
	}

	if format == FormatAuto || format == "" {
		format = detectFormat(content)
	}
	p.logger.Info("Parsing data dictionary", zap.String("format", string(format)))

	var (
		dict *Dictionary
		err  error
	)
	switch format {
	case FormatJSON:
		dict, err = parseJSONDictionary(content)
	case FormatYAML:
		dict, err = parseYAMLDictionary(content)
	case FormatCSV:
		dict, err = parseCSVDictionary(content)
	default:
		return nil, fmt.Errorf("parse dictionary: unrecognized format: %w", apperrors.ErrDictionaryInvalid)
	}
	if err != nil {
		return nil, err
	}
	if len(dict.Columns) == 0 {
		return nil, fmt.Errorf("parse dictionary: no column rules found: %w", apperrors.ErrDictionaryInvalid)
	}

	p.logger.Debug("Parsed data dictionary", zap.Int("columns", len(dict.Columns)))
	return dict, nil
}

// detectFormat guesses the encoding: valid JSON first, then YAML mapping
// shape, then a CSV header carrying dictionary keywords.
func detectFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if json.Valid([]byte(trimmed)) {
			return FormatJSON
		}
	}

	if strings.HasPrefix(trimmed, "---") {
		return FormatYAML
	}
	lines := strings.Split(trimmed, "\n")
	if strings.Contains(trimmed, ":") {
		limit := len(lines)
		if limit > 10 {
			limit = 10
		}
		for _, line := range lines[:limit] {
			if strings.HasSuffix(strings.TrimSpace(line), ":") {
				return FormatYAML
			}
		}
	}

	if len(lines) > 1 && strings.Contains(lines[0], ",") {
		header := strings.ToLower(lines[0])
		for _, keyword := range []string{"column", "field", "type", "constraint"} {
			if strings.Contains(header, keyword) {
				return FormatCSV
			}
		}
	}

	return Format("unknown")
}

// ============================================================================
// JSON
// ============================================================================

// parseJSONDictionary accepts three shapes: {"columns": {name: rule}},
// a direct {name: rule} mapping, and a list of rules carrying "name".
// Rule fields may sit flat on the rule object or under "constraints".
func parseJSONDictionary(content []byte) (*Dictionary, error) {
	trimmed := bytes.TrimSpace(content)

	if bytes.HasPrefix(trimmed, []byte("[")) {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parse dictionary list: %v: %w", err, apperrors.ErrDictionaryInvalid)
		}
		dict := &Dictionary{Columns: map[string]*ColumnRule{}}
		for _, item := range items {
			name := strings.TrimSpace(jsonutil.FlexibleStringValue(item["name"]))
			if name == "" {
				continue
			}
			delete(item, "name")
			dict.Columns[name] = ruleFromFields(item)
		}
		return dict, nil
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, fmt.Errorf("parse dictionary object: %v: %w", err, apperrors.ErrDictionaryInvalid)
	}
	if cols, ok := root["columns"]; ok {
		return parseColumnsObject(cols)
	}
	return parseColumnsObject(trimmed)
}

func parseColumnsObject(raw json.RawMessage) (*Dictionary, error) {
	var cols map[string]json.RawMessage
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("parse dictionary columns: %v: %w", err, apperrors.ErrDictionaryInvalid)
	}

	dict := &Dictionary{Columns: map[string]*ColumnRule{}}
	for name, rawRule := range cols {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rawRule, &fields); err != nil {
			// Bare value: treat it as the column type ("age": "integer").
			dict.Columns[name] = &ColumnRule{Type: normalizeType(jsonutil.FlexibleStringValue(rawRule))}
			continue
		}
		dict.Columns[name] = ruleFromFields(fields)
	}
	return dict, nil
}

func ruleFromFields(fields map[string]json.RawMessage) *ColumnRule {
	// Fields declared under "constraints" merge with flat fields; flat wins.
	if sub, ok := fields["constraints"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(sub, &nested); err == nil {
			for key, value := range nested {
				if _, exists := fields[key]; !exists {
					fields[key] = value
				}
			}
		}
	}

	rule := &ColumnRule{
		Type:        normalizeType(jsonutil.FlexibleStringValue(fields["type"])),
		Description: jsonutil.FlexibleStringValue(fields["description"]),
		Pattern:     jsonutil.FlexibleStringValue(fields["pattern"]),
		Format:      jsonutil.FlexibleStringValue(fields["format"]),
	}

	rule.AllowedValues = jsonutil.FlexibleStringSlice(fields["allowed_values"])
	if rule.AllowedValues == nil {
		rule.AllowedValues = jsonutil.FlexibleStringSlice(fields["values"])
	}

	if v, ok := jsonutil.FlexibleFloatValue(firstField(fields, "min_value", "min")); ok {
		rule.MinValue = &v
	}
	if v, ok := jsonutil.FlexibleFloatValue(firstField(fields, "max_value", "max")); ok {
		rule.MaxValue = &v
	}
	if v, ok := jsonutil.FlexibleFloatValue(fields["min_length"]); ok {
		n := int(v)
		rule.MinLength = &n
	}
	if v, ok := jsonutil.FlexibleFloatValue(fields["max_length"]); ok {
		n := int(v)
		rule.MaxLength = &n
	}

	if v, ok := jsonutil.FlexibleBoolValue(fields["required"]); ok {
		rule.Required = v
	}
	if v, ok := jsonutil.FlexibleBoolValue(fields["unique"]); ok {
		rule.Unique = v
	}
	// "nullable: false" is the inverse spelling of required.
	if v, ok := jsonutil.FlexibleBoolValue(fields["nullable"]); ok && !v {
		rule.Required = true
	}

	return rule
}

func firstField(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, key := range keys {
		if raw, ok := fields[key]; ok {
			return raw
		}
	}
	return nil
}

// normalizeType folds common type aliases into the canonical names.
func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "":
		return ""
	case "int", "integer", "bigint", "count":
		return "integer"
	case "float", "numeric", "decimal", "double", "number":
		return "float"
	case "bool", "boolean":
		return "boolean"
	case "date", "datetime", "timestamp", "time":
		return "datetime"
	case "categorical", "category", "enum":
		return "categorical"
	default:
		return "string"
	}
}

// ============================================================================
// YAML
// ============================================================================

// parseYAMLDictionary decodes YAML into a generic document and reuses the
// JSON standardization path.
func parseYAMLDictionary(content []byte) (*Dictionary, error) {
	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml dictionary: %v: %w", err, apperrors.ErrDictionaryInvalid)
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse yaml dictionary: %v: %w", err, apperrors.ErrDictionaryInvalid)
	}
	return parseJSONDictionary(encoded)
}

// ============================================================================
// CSV
// ============================================================================

// csvHeaderAliases maps recognized header names to canonical rule fields.
var csvHeaderAliases = map[string]string{
	"column":         "name",
	"field":          "name",
	"column_name":    "name",
	"field_name":     "name",
	"name":           "name",
	"type":           "type",
	"data_type":      "type",
	"datatype":       "type",
	"description":    "description",
	"constraint":     "description",
	"validation":     "description",
	"values":         "allowed_values",
	"allowed_values": "allowed_values",
	"min":            "min_value",
	"min_value":      "min_value",
	"max":            "max_value",
	"max_value":      "max_value",
	"min_length":     "min_length",
	"max_length":     "max_length",
	"required":       "required",
	"nullable":       "nullable",
	"unique":         "unique",
	"pattern":        "pattern",
	"format":         "format",
}

// parseCSVDictionary parses one rule per row. Header names are matched
// case-insensitively through csvHeaderAliases; unknown headers are ignored.
func parseCSVDictionary(content []byte) (*Dictionary, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv dictionary: %v: %w", err, apperrors.ErrDictionaryInvalid)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("parse csv dictionary: need a header and at least one rule row: %w", apperrors.ErrDictionaryInvalid)
	}

	fieldFor := make([]string, len(records[0]))
	for i, header := range records[0] {
		fieldFor[i] = csvHeaderAliases[strings.ToLower(strings.TrimSpace(header))]
	}

	dict := &Dictionary{Columns: map[string]*ColumnRule{}}
	for _, row := range records[1:] {
		fields := map[string]json.RawMessage{}
		var name string
		for i, cell := range row {
			if i >= len(fieldFor) || fieldFor[i] == "" {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if fieldFor[i] == "name" {
				name = cell
				continue
			}
			if fieldFor[i] == "allowed_values" {
				fields["allowed_values"] = mustJSON(splitList(cell))
				continue
			}
			if existing, ok := fields[fieldFor[i]]; ok && fieldFor[i] == "description" {
				// Multiple descriptive columns (description + constraint text)
				// concatenate rather than clobber.
				fields[fieldFor[i]] = mustJSON(jsonutil.FlexibleStringValue(existing) + "; " + cell)
				continue
			}
			fields[fieldFor[i]] = mustJSON(cell)
		}
		if name == "" {
			continue
		}
		dict.Columns[name] = ruleFromFields(fields)
	}
	return dict, nil
}

// splitList splits a cell like "a|b|c", "a;b" or "a, b" into labels.
func splitList(cell string) []string {
	sep := ","
	switch {
	case strings.Contains(cell, "|"):
		sep = "|"
	case strings.Contains(cell, ";"):
		sep = ";"
	}
	parts := strings.Split(cell, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func mustJSON(v any) json.RawMessage {
	encoded, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return encoded
}
