package shared

import (
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate reads a cycle boundary date. Date-only input and RFC3339
// timestamps are both accepted; the result is normalized to midnight UTC
// because cycles cover whole days.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errors.New("empty date")
	}
	if parsed, err := time.Parse(dateLayout, trimmed); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, err
	}
	utc := parsed.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatDate renders a date the way the API emits cycle boundaries.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
