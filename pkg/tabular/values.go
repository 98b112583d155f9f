package tabular

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Float64 coerces a cell to float64. Numeric strings coerce too, so CSV
// ingested columns behave like natively typed ones.
func Float64(v any) (float64, bool) {
	switch tv := v.(type) {
	case float64:
		return tv, true
	case float32:
		return float64(tv), true
	case int:
		return float64(tv), true
	case int32:
		return float64(tv), true
	case int64:
		return float64(tv), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Bool coerces a cell to bool. Accepts native bools, the usual string
// spellings, and 0/1 numerics.
func Bool(v any) (bool, bool) {
	switch tv := v.(type) {
	case bool:
		return tv, true
	case string:
		switch strings.ToLower(strings.TrimSpace(tv)) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0":
			return false, true
		}
		return false, false
	default:
		if f, ok := Float64(v); ok && (f == 0 || f == 1) {
			return f == 1, true
		}
		return false, false
	}
}

// timeLayouts are tried in order when coercing string cells to time.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time coerces a cell to time.Time.
func Time(v any) (time.Time, bool) {
	switch tv := v.(type) {
	case time.Time:
		return tv, true
	case string:
		s := strings.TrimSpace(tv)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// String renders a cell the way WriteCSV does. Nil renders as the empty
// string.
func String(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case bool:
		return strconv.FormatBool(tv)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(tv), 'g', -1, 32)
	case time.Time:
		return tv.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", tv)
	}
}
