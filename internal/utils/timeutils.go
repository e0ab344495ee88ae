package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"
)

// ParseTimestamp accepts RFC3339 first and falls back to natural-language date
// parsing ("2024-03-01 10:02 UTC", "10 minutes ago"). relativeTo anchors relative
// expressions; a zero value means now.
func ParseTimestamp(value string, relativeTo time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	cfg := &dateparser.Configuration{DefaultTimezone: time.UTC}
	if !relativeTo.IsZero() {
		cfg.CurrentTime = relativeTo
	}
	dt, err := dateparser.Parse(cfg, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	if dt.Time.IsZero() {
		return time.Time{}, fmt.Errorf("parse time %q: no date found", value)
	}
	return dt.Time.UTC(), nil
}

// DurationSeconds converts a pair of timestamps into a non-negative second count.
func DurationSeconds(start, end time.Time) float64 {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	if end.Before(start) {
		start, end = end, start
	}
	return end.Sub(start).Seconds()
}
