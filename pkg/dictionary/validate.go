package dictionary

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/miragedata/mirage-engine/pkg/tabular"
)

// Validate checks a dataset against the dictionary and returns violations
// keyed by column name. An empty map means every rule holds. Violation
// messages may echo a handful of offending values; the dataset under
// validation is the caller's own, so nothing disclosed here is new to them.
func (d *Dictionary) Validate(dataset *tabular.Dataset) map[string][]string {
	violations := map[string][]string{}
	if d == nil || dataset == nil {
		return violations
	}

	for _, name := range d.ColumnNames() {
		rule := d.Columns[name]
		column, ok := dataset.Column(name)
		if !ok {
			if rule.Required {
				violations[name] = []string{"required column is missing"}
			}
			continue
		}
		if issues := validateColumn(column, rule); len(issues) > 0 {
			violations[name] = issues
		}
	}
	return violations
}

func validateColumn(column tabular.Column, rule *ColumnRule) []string {
	var issues []string

	var re *regexp.Regexp
	if rule.Pattern != "" {
		compiled, err := regexp.Compile(rule.Pattern)
		if err != nil {
			issues = append(issues, fmt.Sprintf("invalid pattern %q: %v", rule.Pattern, err))
		} else {
			re = compiled
		}
	}

	allowed := map[string]bool{}
	for _, label := range rule.AllowedValues {
		allowed[label] = true
	}

	var (
		nullCount    int
		typeMismatch int
		belowMin     int
		aboveMax     int
		tooShort     int
		tooLong      int
		patternMiss  int
	)
	seen := map[string]int{}
	outsideAllowed := map[string]bool{}

	for _, v := range column.Values {
		if tabular.IsNull(v) {
			nullCount++
			continue
		}
		if rule.Type != "" && !matchesType(v, rule) {
			typeMismatch++
		}
		if f, ok := tabular.Float64(v); ok {
			if rule.MinValue != nil && f < *rule.MinValue {
				belowMin++
			}
			if rule.MaxValue != nil && f > *rule.MaxValue {
				aboveMax++
			}
		}
		if s, isString := v.(string); isString {
			if rule.MinLength != nil && len(s) < *rule.MinLength {
				tooShort++
			}
			if rule.MaxLength != nil && len(s) > *rule.MaxLength {
				tooLong++
			}
			if re != nil && !re.MatchString(s) {
				patternMiss++
			}
		}
		rendered := tabular.String(v)
		if rule.Unique {
			seen[rendered]++
		}
		if len(allowed) > 0 && !allowed[rendered] {
			outsideAllowed[rendered] = true
		}
	}

	if rule.Required && nullCount > 0 {
		issues = append(issues, fmt.Sprintf("%d null values in required column", nullCount))
	}
	if typeMismatch > 0 {
		issues = append(issues, fmt.Sprintf("%d values are not valid %s", typeMismatch, rule.Type))
	}
	if belowMin > 0 {
		issues = append(issues, fmt.Sprintf("%d values below minimum %g", belowMin, *rule.MinValue))
	}
	if aboveMax > 0 {
		issues = append(issues, fmt.Sprintf("%d values above maximum %g", aboveMax, *rule.MaxValue))
	}
	if tooShort > 0 {
		issues = append(issues, fmt.Sprintf("%d values shorter than %d characters", tooShort, *rule.MinLength))
	}
	if tooLong > 0 {
		issues = append(issues, fmt.Sprintf("%d values longer than %d characters", tooLong, *rule.MaxLength))
	}
	if patternMiss > 0 {
		issues = append(issues, fmt.Sprintf("%d values do not match pattern %q", patternMiss, rule.Pattern))
	}
	if rule.Unique {
		duplicates := 0
		for _, count := range seen {
			if count > 1 {
				duplicates += count - 1
			}
		}
		if duplicates > 0 {
			issues = append(issues, fmt.Sprintf("%d duplicate values in unique column", duplicates))
		}
	}
	if len(outsideAllowed) > 0 {
		issues = append(issues, fmt.Sprintf("%d distinct values outside the allowed set (e.g. %s)",
			len(outsideAllowed), sampleValues(outsideAllowed, 5)))
	}

	return issues
}

// matchesType reports whether a non-null cell satisfies the declared type.
// String and categorical rules accept anything renderable.
func matchesType(v any, rule *ColumnRule) bool {
	switch rule.Type {
	case "integer":
		f, ok := tabular.Float64(v)
		return ok && f == math.Trunc(f)
	case "float":
		_, ok := tabular.Float64(v)
		return ok
	case "boolean":
		_, ok := tabular.Bool(v)
		return ok
	case "datetime":
		if _, ok := v.(time.Time); ok {
			return true
		}
		s, isString := v.(string)
		if !isString {
			return false
		}
		if rule.Format != "" && !strings.Contains(rule.Format, "%") {
			if _, err := time.Parse(rule.Format, strings.TrimSpace(s)); err == nil {
				return true
			}
		}
		_, ok := tabular.Time(s)
		return ok
	default:
		return true
	}
}

// sampleValues renders up to limit offending values, sorted for stable
// messages.
func sampleValues(values map[string]bool, limit int) string {
	ordered := make([]string, 0, len(values))
	for v := range values {
		ordered = append(ordered, v)
	}
	sort.Strings(ordered)
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return strings.Join(ordered, ", ")
}
