package fingerprint

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/miragedata/mirage-engine/pkg/models"
	"github.com/miragedata/mirage-engine/pkg/tabular"
)

// series holds one column's values plus lazily computed views shared by the
// type detectors. Values are scanned once; canonical strings and label
// counts are built on first use.
type series struct {
	values       []any
	rowCount     int
	nonNull      []any
	hasNonScalar bool

	strs   []string
	counts map[string]int64
}

func newSeries(values []any) *series {
	s := &series{values: values, rowCount: len(values)}
	for _, v := range values {
		if tabular.IsNull(v) {
			continue
		}
		if !isScalar(v) {
			s.hasNonScalar = true
		}
		s.nonNull = append(s.nonNull, v)
	}
	return s
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time:
		return true
	default:
		return false
	}
}

func (s *series) nullRatio() float64 {
	if s.rowCount == 0 {
		return 0
	}
	return float64(s.rowCount-len(s.nonNull)) / float64(s.rowCount)
}

func (s *series) distinctRatio() float64 {
	if len(s.nonNull) == 0 {
		return 0
	}
	return float64(s.distinctCount()) / float64(len(s.nonNull))
}

func (s *series) distinctCount() int {
	return len(s.labelCounts())
}

// strings returns the canonical string rendering of each non-null value.
func (s *series) strings() []string {
	if s.strs == nil {
		s.strs = make([]string, len(s.nonNull))
		for i, v := range s.nonNull {
			s.strs[i] = canonicalString(v)
		}
	}
	return s.strs
}

// labelCounts returns occurrence counts keyed by canonical string.
func (s *series) labelCounts() map[string]int64 {
	if s.counts == nil {
		s.counts = make(map[string]int64)
		for _, str := range s.strings() {
			s.counts[str]++
		}
	}
	return s.counts
}

// alignedFloats returns a row-aligned numeric view with NaN at nulls, used
// to pair numeric columns for correlation.
func (s *series) alignedFloats() []float64 {
	aligned := make([]float64, s.rowCount)
	for i, v := range s.values {
		if tabular.IsNull(v) {
			aligned[i] = math.NaN()
			continue
		}
		f, _, ok := toFloat(v)
		if !ok {
			aligned[i] = math.NaN()
			continue
		}
		aligned[i] = f
	}
	return aligned
}

func canonicalString(v any) string {
	switch tv := v.(type) {
	case string:
		return strings.TrimSpace(tv)
	case bool:
		return strconv.FormatBool(tv)
	case int:
		return strconv.Itoa(tv)
	case int8:
		return strconv.FormatInt(int64(tv), 10)
	case int16:
		return strconv.FormatInt(int64(tv), 10)
	case int32:
		return strconv.FormatInt(int64(tv), 10)
	case int64:
		return strconv.FormatInt(tv, 10)
	case uint:
		return strconv.FormatUint(uint64(tv), 10)
	case uint8:
		return strconv.FormatUint(uint64(tv), 10)
	case uint16:
		return strconv.FormatUint(uint64(tv), 10)
	case uint32:
		return strconv.FormatUint(uint64(tv), 10)
	case uint64:
		return strconv.FormatUint(tv, 10)
	case float32:
		return strconv.FormatFloat(float64(tv), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64)
	case time.Time:
		return tv.UTC().Format(time.RFC3339)
	default:
		// Non-scalar values never reach disclosure paths; their rendering
		// feeds length and distinct counts only.
		return fmt.Sprintf("%v", v)
	}
}

// ============================================================================
// Boolean detector
// ============================================================================

// booleanSets are the value pairs recognized as boolean columns, matched
// case-insensitively against canonical strings.
var booleanSets = []map[string]bool{
	{"0": false, "1": true},
	{"false": false, "true": true},
	{"no": false, "yes": true},
	{"n": false, "y": true},
	{"f": false, "t": true},
}

// detectBoolean reports whether every non-null value belongs to a single
// boolean set, returning the ratio of truthy values.
func detectBoolean(s *series) (float64, bool) {
	if len(s.nonNull) == 0 || s.distinctCount() > 2 {
		return 0, false
	}

	normalized := make([]string, len(s.nonNull))
	for i, str := range s.strings() {
		normalized[i] = strings.ToLower(str)
	}

	for _, set := range booleanSets {
		trueCount := 0
		allMatch := true
		for _, val := range normalized {
			truthy, ok := set[val]
			if !ok {
				allMatch = false
				break
			}
			if truthy {
				trueCount++
			}
		}
		if allMatch {
			return float64(trueCount) / float64(len(normalized)), true
		}
	}
	return 0, false
}

// ============================================================================
// Numeric detector
// ============================================================================

// coerceNumeric reports whether every non-null value coerces to a number,
// returning the values and whether they are all integral.
func coerceNumeric(s *series) ([]float64, bool, bool) {
	if len(s.nonNull) == 0 {
		return nil, false, false
	}

	floats := make([]float64, len(s.nonNull))
	integral := true
	for i, v := range s.nonNull {
		f, isInt, ok := toFloat(v)
		if !ok {
			return nil, false, false
		}
		floats[i] = f
		if !isInt {
			integral = false
		}
	}
	return floats, integral, true
}

func toFloat(v any) (f float64, integral bool, ok bool) {
	switch tv := v.(type) {
	case int:
		return float64(tv), true, true
	case int8:
		return float64(tv), true, true
	case int16:
		return float64(tv), true, true
	case int32:
		return float64(tv), true, true
	case int64:
		return float64(tv), true, true
	case uint:
		return float64(tv), true, true
	case uint8:
		return float64(tv), true, true
	case uint16:
		return float64(tv), true, true
	case uint32:
		return float64(tv), true, true
	case uint64:
		return float64(tv), true, true
	case float32:
		f = float64(tv)
		return f, f == math.Trunc(f), true
	case float64:
		return tv, tv == math.Trunc(tv), true
	case string:
		str := strings.TrimSpace(tv)
		parsed, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return 0, false, false
		}
		// "1.0" stays a float; only plain integer literals count as integral.
		_, intErr := strconv.ParseInt(str, 10, 64)
		return parsed, intErr == nil, true
	default:
		return 0, false, false
	}
}

// ============================================================================
// Datetime detector
// ============================================================================

// datetimeFormats is the fixed layout table, tried in order. The first
// matching layout claims a value; the most-claimed layout names the column
// format.
var datetimeFormats = []struct {
	name   string
	layout string
}{
	{"rfc3339", time.RFC3339Nano},
	{"date", "2006-01-02"},
	{"datetime", "2006-01-02 15:04:05"},
	{"slash_date_us", "01/02/2006"},
	{"slash_date", "2006/01/02"},
	{"compact", "20060102"},
	{"rfc1123", time.RFC1123},
}

// detectDatetime reports whether every non-null value is a time or parses
// against the format table.
func detectDatetime(s *series) (*models.DatetimeStats, bool) {
	if len(s.nonNull) == 0 {
		return nil, false
	}

	formatCounts := make(map[string]int)
	var minT, maxT time.Time
	first := true

	record := func(t time.Time, format string) {
		formatCounts[format]++
		if first {
			minT, maxT = t, t
			first = false
			return
		}
		if t.Before(minT) {
			minT = t
		}
		if t.After(maxT) {
			maxT = t
		}
	}

	for _, v := range s.nonNull {
		switch tv := v.(type) {
		case time.Time:
			record(tv.UTC(), "rfc3339")
		case string:
			t, format, ok := parseDatetime(strings.TrimSpace(tv))
			if !ok {
				return nil, false
			}
			record(t, format)
		default:
			return nil, false
		}
	}

	return &models.DatetimeStats{
		Min:    minT,
		Max:    maxT,
		Format: dominantFormat(formatCounts),
	}, true
}

func parseDatetime(s string) (time.Time, string, bool) {
	for _, f := range datetimeFormats {
		if t, err := time.Parse(f.layout, s); err == nil {
			return t.UTC(), f.name, true
		}
	}
	return time.Time{}, "", false
}

func dominantFormat(counts map[string]int) string {
	best := ""
	bestCount := 0
	for _, f := range datetimeFormats {
		if counts[f.name] > bestCount {
			best = f.name
			bestCount = counts[f.name]
		}
	}
	return best
}

// ============================================================================
// Identifier detector
// ============================================================================

// isIdentifier recognizes columns whose values are synthetic keys: UUIDs or
// prefixed tokens at the match threshold, or fully-distinct machine strings.
func isIdentifier(s *series, patterns []models.DetectedPattern, threshold float64) bool {
	if patternRate(patterns, models.PatternUUID) >= threshold {
		return true
	}
	if patternRate(patterns, models.PatternPrefixedToken) >= threshold {
		return true
	}
	if s.distinctRatio() == 1.0 && len(s.nonNull) > 1 {
		if patternRate(patterns, models.PatternDigits) >= threshold ||
			patternRate(patterns, models.PatternAlphanumeric) >= threshold {
			return true
		}
	}
	return false
}

func patternRate(patterns []models.DetectedPattern, name string) float64 {
	for _, p := range patterns {
		if p.Name == name {
			return p.MatchRate
		}
	}
	return 0
}

// ============================================================================
// Text stats
// ============================================================================

func textStats(s *series, patterns []models.DetectedPattern) *models.TextStats {
	stats := lengthStats(s)
	stats.Patterns = patterns
	return stats
}

// lengthStats measures value lengths in runes. Lengths are the only
// disclosure an opaque column gets.
func lengthStats(s *series) *models.TextStats {
	stats := &models.TextStats{}
	if len(s.nonNull) == 0 {
		return stats
	}

	total := 0
	for i, str := range s.strings() {
		n := utf8.RuneCountInString(str)
		if i == 0 || n < stats.MinLength {
			stats.MinLength = n
		}
		if n > stats.MaxLength {
			stats.MaxLength = n
		}
		total += n
	}
	stats.AvgLength = float64(total) / float64(len(s.nonNull))
	return stats
}
