package template

import (
	"strconv"
	"strings"
	"time"
)

// RelativeDate resolves a relative-date expression against the given
// reference time. Supported forms:
//
//	now
//	N <unit> ago        e.g. "1 month ago", "30 days ago"
//	in N <unit>         e.g. "in 2 weeks"
//
// Units: minute, hour, day, week, month, year (singular or plural). The
// boolean return reports whether the input was a relative-date expression at
// all.
func RelativeDate(expr string, now time.Time) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(expr))

	if s == "now" {
		return now, true
	}

	future := false

	switch {
	case strings.HasSuffix(s, " ago"):
		s = strings.TrimSuffix(s, " ago")
	case strings.HasPrefix(s, "in "):
		s = strings.TrimPrefix(s, "in ")
		future = true
	default:
		return time.Time{}, false
	}

	fields := strings.Fields(s)
	if len(fields) != 2 {
		return time.Time{}, false
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, false
	}

	if !future {
		n = -n
	}

	switch strings.TrimSuffix(fields[1], "s") {
	case "minute":
		return now.Add(time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, n), true
	case "week":
		return now.AddDate(0, 0, 7*n), true
	case "month":
		return now.AddDate(0, n, 0), true
	case "year":
		return now.AddDate(n, 0, 0), true
	default:
		return time.Time{}, false
	}
}
