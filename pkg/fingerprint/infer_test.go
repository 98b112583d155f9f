package fingerprint

import (
	"testing"
	"time"

	"github.com/miragedata/mirage-engine/pkg/models"
)

func seriesOf(values ...any) *series {
	return newSeries(values)
}

func TestDetectBoolean(t *testing.T) {
	tests := []struct {
		name      string
		values    []any
		wantRatio float64
		wantOK    bool
	}{
		{"native bools", []any{true, false, true, true}, 0.75, true},
		{"yes no mixed case", []any{"Yes", "no", "YES"}, 2.0 / 3.0, true},
		{"t f", []any{"t", "f", "t"}, 2.0 / 3.0, true},
		{"zero one strings", []any{"0", "1", "0"}, 1.0 / 3.0, true},
		{"three distinct", []any{"yes", "no", "maybe"}, 0, false},
		{"not a boolean set", []any{"on", "off"}, 0, false},
		{"mixed sets rejected", []any{"yes", "false"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, ok := detectBoolean(seriesOf(tt.values...))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && ratio != tt.wantRatio {
				t.Errorf("ratio = %v, want %v", ratio, tt.wantRatio)
			}
		})
	}
}

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name         string
		values       []any
		wantIntegral bool
		wantOK       bool
	}{
		{"ints", []any{1, 2, 3}, true, true},
		{"floats", []any{1.5, 2.5}, false, true},
		{"integral floats", []any{1.0, 2.0}, true, true},
		{"integer strings", []any{"7", "8"}, true, true},
		{"decimal strings", []any{"7.5", "8"}, false, true},
		{"one point zero string stays float", []any{"1.0", "2.0"}, false, true},
		{"padded strings", []any{" 7 ", "8"}, true, true},
		{"mixed with words", []any{"7", "eight"}, false, false},
		{"scientific notation", []any{"1e3", "2e3"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, integral, ok := coerceNumeric(seriesOf(tt.values...))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && integral != tt.wantIntegral {
				t.Errorf("integral = %v, want %v", integral, tt.wantIntegral)
			}
		})
	}
}

func TestDetectDatetime_Formats(t *testing.T) {
	tests := []struct {
		name       string
		values     []any
		wantFormat string
		wantOK     bool
	}{
		{"rfc3339", []any{"2023-01-15T10:00:00Z", "2023-01-16T11:00:00+02:00"}, "rfc3339", true},
		{"date only", []any{"2023-01-15", "2023-01-16"}, "date", true},
		{"space separated", []any{"2023-01-15 10:00:00"}, "datetime", true},
		{"us slashes", []any{"01/15/2023", "02/20/2023"}, "slash_date_us", true},
		{"year first slashes", []any{"2023/01/15"}, "slash_date", true},
		{"rfc1123", []any{"Mon, 02 Jan 2006 15:04:05 MST"}, "rfc1123", true},
		{"dominant format wins", []any{"2023-01-15", "2023-01-16", "2023-01-17T10:00:00Z"}, "date", true},
		{"not dates", []any{"hello", "world"}, "", false},
		{"one bad value fails the column", []any{"2023-01-15", "not-a-date"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, ok := detectDatetime(seriesOf(tt.values...))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && stats.Format != tt.wantFormat {
				t.Errorf("format = %q, want %q", stats.Format, tt.wantFormat)
			}
		})
	}
}

func TestDetectDatetime_NativeTimes(t *testing.T) {
	early := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	stats, ok := detectDatetime(seriesOf(late, early))
	if !ok {
		t.Fatal("native times must be detected")
	}
	if !stats.Min.Equal(early) || !stats.Max.Equal(late) {
		t.Errorf("range = [%v, %v]", stats.Min, stats.Max)
	}
}

func TestDetectPatterns(t *testing.T) {
	values := []string{
		"550e8400-e29b-41d4-a716-446655440000",
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		"not-a-uuid-at-all",
		"6ba7b811-9dad-11d1-80b4-00c04fd430c8",
	}

	patterns := detectPatterns(values)

	rate := patternRate(patterns, models.PatternUUID)
	if rate != 0.75 {
		t.Errorf("uuid rate = %v, want 0.75", rate)
	}
	// All four are hyphenated alphanumerics.
	if patternRate(patterns, models.PatternAlphanumeric) != 1.0 {
		t.Error("alphanumeric should match all values")
	}
}

func TestDetectPatterns_FloorCutsRareMatches(t *testing.T) {
	values := []string{"user@example.com", "one", "two", "three", "four"}

	patterns := detectPatterns(values)
	if patternRate(patterns, models.PatternEmail) != 0 {
		t.Error("email at 20% must stay below the disclosure floor")
	}
}

func TestIsIdentifier(t *testing.T) {
	uuids := seriesOf(
		"550e8400-e29b-41d4-a716-446655440000",
		"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	)
	if !isIdentifier(uuids, detectPatterns(uuids.strings()), 0.95) {
		t.Error("uuid column must be an identifier")
	}

	repeated := seriesOf("abc", "abc", "def")
	if isIdentifier(repeated, detectPatterns(repeated.strings()), 0.95) {
		t.Error("repeated values are not identifiers")
	}

	unique := seriesOf("ORD-001", "ORD-002", "ORD-003")
	if !isIdentifier(unique, detectPatterns(unique.strings()), 0.95) {
		t.Error("fully distinct machine strings are identifiers")
	}
}

func TestSeries_NullAccounting(t *testing.T) {
	s := seriesOf("a", nil, "", "b", "a")

	if got := s.nullRatio(); got != 0.4 {
		t.Errorf("nullRatio = %v, want 0.4", got)
	}
	if got := s.distinctCount(); got != 2 {
		t.Errorf("distinctCount = %v, want 2", got)
	}
	if got := s.distinctRatio(); got != 2.0/3.0 {
		t.Errorf("distinctRatio = %v", got)
	}
}

func TestLengthStats(t *testing.T) {
	s := seriesOf("ab", "abcd", "abcdef")
	stats := lengthStats(s)

	if stats.MinLength != 2 || stats.MaxLength != 6 {
		t.Errorf("lengths = [%d, %d]", stats.MinLength, stats.MaxLength)
	}
	if stats.AvgLength != 4 {
		t.Errorf("avg = %v, want 4", stats.AvgLength)
	}
}
