package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// clockRegex matches 24h wall-clock times such as "9:30" or "18:05".
var clockRegex = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// TimeWindow is a date plus a start/end wall-clock pair. Clock values are
// stored as "HH:MM" strings; the date carries the day in UTC.
type TimeWindow struct {
	Date  time.Time
	Start string
	End   string
}

// IsZero reports whether the window is unset.
func (w TimeWindow) IsZero() bool {
	return w.Date.IsZero() && w.Start == "" && w.End == ""
}

// Validate checks the clock format and that the end is strictly after the
// start. Returns a non-empty reason string when the window is invalid.
func (w TimeWindow) Validate() string {
	if w.Date.IsZero() || w.Start == "" || w.End == "" {
		return "date, startTime and endTime are all required"
	}
	if !clockRegex.MatchString(w.Start) {
		return fmt.Sprintf("invalid startTime %q, expected HH:MM", w.Start)
	}
	if !clockRegex.MatchString(w.End) {
		return fmt.Sprintf("invalid endTime %q, expected HH:MM", w.End)
	}
	if clockMinutes(w.End) <= clockMinutes(w.Start) {
		return "endTime must be after startTime"
	}
	return ""
}

// StartsAt combines the window's date and start clock into a single UTC
// instant. Naive dates are normalized to UTC before combining.
func (w TimeWindow) StartsAt() time.Time {
	date := w.Date.UTC()
	h, m := splitClock(w.Start)
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, time.UTC)
}

// IsFuture reports whether the window starts strictly after now.
// Comparison happens in UTC.
func (w TimeWindow) IsFuture(now time.Time) bool {
	return w.StartsAt().After(now.UTC())
}

func clockMinutes(clock string) int {
	h, m := splitClock(clock)
	return h*60 + m
}

func splitClock(clock string) (hour, minute int) {
	for i := 0; i < len(clock); i++ {
		if clock[i] == ':' {
			hour, _ = strconv.Atoi(clock[:i])
			minute, _ = strconv.Atoi(clock[i+1:])
			return hour, minute
		}
	}
	return 0, 0
}
