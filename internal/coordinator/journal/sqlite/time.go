package sqlite

import (
	"fmt"
	"time"
)

// Fixed-width layout so TEXT ordering equals chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("journal: parse time %q: %w", s, err)
	}
	return t, nil
}
