// Package timeutil provides ISO calendar-date helpers shared by the
// record store and the analytics core. Dates are plain YYYY-MM-DD
// strings; all bucketing is by calendar date, not rolling 24h windows.
package timeutil

import "time"

// ISODate is the wire format for calendar dates.
const ISODate = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(ISODate, s)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD string.
func ValidDate(s string) bool {
	_, err := time.Parse(ISODate, s)
	return err == nil
}

// Date formats t as YYYY-MM-DD.
func Date(t time.Time) string {
	return t.Format(ISODate)
}

// Weekday returns the ISO day of week for t (0=Mon, 6=Sun).
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekStart returns the Monday of the ISO week containing date.
// Malformed dates are returned unchanged.
func WeekStart(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return Date(t.AddDate(0, 0, -Weekday(t)))
}

// MonthStart returns the first day of the month containing date.
func MonthStart(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("2006-01") + "-01"
}

// AddDays returns date shifted by n calendar days.
func AddDays(date string, n int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return Date(t.AddDate(0, 0, n))
}

// DaysBetween returns the number of calendar days from a to b,
// negative when b precedes a. Malformed input yields 0.
func DaysBetween(a, b string) int {
	ta, err := ParseDate(a)
	if err != nil {
		return 0
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// InRange reports whether date falls within [from, to] inclusive.
// String comparison is sufficient for ISO dates.
func InRange(date, from, to string) bool {
	return date >= from && date <= to
}

// Ptr returns a pointer to t formatted as RFC3339 UTC, or nil for
// the zero time.
func Ptr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format("2006-01-02T15:04:05.999Z07:00")
	return &s
}
