package fulfillment

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of delivery dates
const DateLayout = "2006-01-02"

const minutesPerDay = 24 * 60

var clockLayouts = []string{"15:04", "15:04:05"}

// NormalizeTime converts a delivery time to 24-hour HH:MM. A nil or blank
// time normalizes to nil, never to an empty string.
func NormalizeTime(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, nil
	}
	minutes, err := parseClock(s)
	if err != nil {
		return nil, err
	}
	out := formatClock(minutes)
	return &out, nil
}

// parseClock returns minutes since midnight for H:MM, HH:MM or HH:MM:SS.
// Seconds are dropped.
func parseClock(s string) (int, error) {
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// addMinutes advances an HH:MM time, refusing to wrap into the next day
func addMinutes(clock string, delta int) (string, error) {
	base, err := parseClock(clock)
	if err != nil {
		return "", err
	}
	next := base + delta
	if next >= minutesPerDay {
		return "", fmt.Errorf("%w: %s + %d minutes", ErrExpansionPastMidnight, clock, delta)
	}
	return formatClock(next), nil
}

// validDate reports whether s is a YYYY-MM-DD calendar date
func validDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func sameTime(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
