// Package dates implements the primitive operations on ISO calendar dates
// (YYYY-MM-DD strings) used throughout the holiday engine.
//
// Dates are kept as strings because ISO dates sort lexicographically in
// chronological order; range checks are plain string comparisons. Arithmetic
// converts through time.Time at UTC noon so DST never shifts the day.
package dates

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the ISO date layout used for every date string.
const Layout = "2006-01-02"

// compactLayout is the YYYYMMDD form used by ICS DATE values and calendar URLs.
const compactLayout = "20060102"

var ErrInvalidDate = errors.New("invalid date (must be YYYY-MM-DD)")

// Parse converts an ISO date into a time.Time at 12:00 UTC.
func Parse(date string) (time.Time, error) {
	t, err := time.Parse(Layout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC), nil
}

// Format renders the calendar day of t as YYYY-MM-DD, ignoring t's zone offset.
func Format(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC).Format(Layout)
}

// Valid reports whether date is a well-formed ISO date.
func Valid(date string) bool {
	_, err := Parse(date)
	return err == nil
}

// InRange reports start <= date <= end, inclusive on both ends.
func InRange(date, start, end string) bool {
	return date >= start && date <= end
}

// AddDays shifts date by n days; n may be negative.
func AddDays(date string, n int) (string, error) {
	t, err := Parse(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(Layout), nil
}

// DayOfWeek returns 0 (Sunday) through 6 (Saturday).
func DayOfWeek(date string) (int, error) {
	t, err := Parse(date)
	if err != nil {
		return 0, err
	}
	return int(t.Weekday()), nil
}

// IsWeekend reports whether date is a Saturday or Sunday. Invalid dates are
// never weekends.
func IsWeekend(date string) bool {
	d, err := DayOfWeek(date)
	if err != nil {
		return false
	}
	return d == int(time.Saturday) || d == int(time.Sunday)
}

// DaysOfYear returns every date from Jan 1 to Dec 31 of year, in order.
func DaysOfYear(year int) []string {
	start := time.Date(year, time.January, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 12, 0, 0, 0, time.UTC)

	days := make([]string, 0, 366)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(Layout))
	}
	return days
}

// DaysInMonth returns every date of the given month (1-12).
func DaysInMonth(year int, month time.Month) []string {
	start := time.Date(year, month, 1, 12, 0, 0, 0, time.UTC)
	days := make([]string, 0, 31)
	for d := start; d.Month() == month; d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(Layout))
	}
	return days
}

// YearBounds returns the first and last ISO dates of year.
func YearBounds(year int) (string, string) {
	return fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year)
}

// Compact converts YYYY-MM-DD to YYYYMMDD.
func Compact(date string) (string, error) {
	t, err := Parse(date)
	if err != nil {
		return "", err
	}
	return t.Format(compactLayout), nil
}

// FromCompact converts the leading YYYYMMDD of an ICS date or date-time value
// into YYYY-MM-DD. The time and zone part, if any, is ignored.
func FromCompact(v string) (string, error) {
	if len(v) < 8 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	t, err := time.Parse(compactLayout, v[:8])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	return t.Format(Layout), nil
}
