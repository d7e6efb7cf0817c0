package util

import (
	"strconv"
	"time"
)

// DayFormat is the canonical day key layout.
const DayFormat = "2006-01-02"

// ParseDay tries YYYY-MM-DD, RFC3339, and unix seconds, truncating to
// UTC midnight. Returns (t, true) if any worked.
func ParseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DayFormat, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Truncate(t), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return Truncate(time.Unix(ts, 0)), true
	}
	return time.Time{}, false
}

// ParseDayDefault parses a day or returns default if empty/invalid.
func ParseDayDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDay(s); ok {
		return t
	}
	return def
}

// Truncate rounds t down to UTC midnight.
func Truncate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats t as its canonical day key.
func DayKey(t time.Time) string { return Truncate(t).Format(DayFormat) }

// DaysBetween returns the whole-day distance from a to b (b after a is
// positive).
func DaysBetween(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
