package util

import "time"

// Trading-day helpers use a weekday-only approximation: Monday through Friday
// count, US market holidays do not exist here. Day resolution throughout;
// times are truncated to midnight UTC.

// DateOnly truncates t to its calendar date at midnight UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LastTradingDay returns ref if it falls on a weekday, otherwise the closest
// earlier weekday.
func LastTradingDay(ref time.Time) time.Time {
	d := DateOnly(ref)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// PrevTradingDay returns the last weekday strictly before d.
func PrevTradingDay(d time.Time) time.Time {
	return LastTradingDay(DateOnly(d).AddDate(0, 0, -1))
}

// IsWeekend reports whether d falls on a Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}
