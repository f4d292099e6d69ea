package blog

import (
	"fmt"
	"strings"
	"time"
)

// Accepted publish date layouts, all with a two-digit day.
var dateLayouts = []string{
	"Jan 02, 2006",
	"January 02, 2006",
}

// ParsePublished parses "<Month> <Day>, <Year>" into a UTC calendar date.
// Single-digit days are zero-padded first because the layouts require two digits.
func ParsePublished(text string) (time.Time, error) {
	normalized, err := padDay(text)
	if err != nil {
		return time.Time{}, err
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, normalized)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("parse published date %q: %w", text, lastErr)
}

func padDay(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return "", fmt.Errorf("published date %q: expected <Month> <Day>, <Year>", text)
	}
	month, day, year := fields[0], strings.TrimSuffix(fields[1], ","), fields[2]
	if len(day) == 1 {
		day = "0" + day
	}
	return fmt.Sprintf("%s %s, %s", month, day, year), nil
}
