package utils

import (
	"fmt"
	"time"
)

// Fixed width so text comparison orders rows chronologically on every dialect.
const dbDateTimeLayout = "2006-01-02 15:04:05.000000"

// NowUTC returns the current time truncated to the precision stored in the database.
func NowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// FormatDateTimeForDB formats a time for the text timestamp columns.
func FormatDateTimeForDB(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dbDateTimeLayout)
}

// ParseDBDate parses a timestamp read back from the database.
func ParseDBDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{dbDateTimeLayout, "2006-01-02 15:04:05", time.RFC3339Nano}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported db time format: %s", value)
}
