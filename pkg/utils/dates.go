package utils

import "time"

// DateLayout is the calendar-date format used across the challenge cycle
// (week bounds, proof dates, persisted state).
const DateLayout = "2006-01-02"

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DaysBetween returns the number of whole days from start to end, floored.
// Negative when end is before start.
func DaysBetween(start, end time.Time) int {
	return int(end.Sub(start).Hours() / 24)
}
