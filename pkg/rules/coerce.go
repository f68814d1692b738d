package rules

import (
	"strconv"
	"strings"
	"time"

	"github.com/embarkhq/embark/pkg/template"
)

// asString coerces a scalar to its string form. Maps and slices do not
// coerce.
func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	default:
		return "", false
	}
}

// asNumber coerces numeric scalars and numeric strings to float64.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}

// asBool coerces a value to boolean leniently: "true", "1", "yes" and the
// number 1 read as true; "false", "0", "no", "" and the number 0 read as
// false. Anything else is not a boolean.
func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no", "":
			return false, true
		default:
			return false, false
		}
	case float64:
		if b == 1 {
			return true, true
		}

		if b == 0 {
			return false, true
		}

		return false, false
	case int:
		if b == 1 {
			return true, true
		}

		if b == 0 {
			return false, true
		}

		return false, false
	default:
		return false, false
	}
}

// asTime coerces a value to a timestamp. Strings accept RFC3339, plain
// dates, unix seconds and relative-date expressions resolved against now.
func asTime(v any, now time.Time) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case float64:
		return time.Unix(int64(t), 0).UTC(), true
	case int64:
		return time.Unix(t, 0).UTC(), true
	case string:
		s := strings.TrimSpace(t)

		if parsed, ok := template.RelativeDate(s, now); ok {
			return parsed, true
		}

		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return parsed, true
		}

		if parsed, err := time.Parse("2006-01-02", s); err == nil {
			return parsed, true
		}

		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(unix, 0).UTC(), true
		}

		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// isBlank reports type-specific emptiness: nil, blank strings, empty slices
// and empty maps.
func isBlank(v any) bool {
	switch b := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(b) == ""
	case []any:
		return len(b) == 0
	case map[string]any:
		return len(b) == 0
	default:
		return false
	}
}
