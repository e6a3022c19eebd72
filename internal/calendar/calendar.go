// Package calendar provides trading calendars: bounded universes of trading
// sessions with open/close times and ordered session traversal.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNoFurtherSessions signals that the calendar has no session after the
// given one. It marks the normal end of a simulation, not a failure; callers
// branch on it with errors.Is.
var ErrNoFurtherSessions = errors.New("calendar: no further sessions")

// Calendar is a bounded universe of trading sessions. Session labels are
// midnight-UTC days.
type Calendar interface {
	Name() string

	// SessionsInRange returns the ordered session labels in [first, last],
	// clipped to the calendar's bounds.
	SessionsInRange(first, last time.Time) []time.Time

	// OpenAndCloseForSession returns the market open and close instants for
	// a session label. The label must be a session on this calendar.
	OpenAndCloseForSession(session time.Time) (open, close time.Time, err error)

	// NextSessionLabel returns the session following the given label, or
	// ErrNoFurtherSessions past the calendar's end.
	NextSessionLabel(session time.Time) (time.Time, error)
}

// Normalize truncates an instant to its midnight-UTC session label.
func Normalize(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseClock parses an "HH:MM" wall-clock string into an offset from
// midnight, for configuring session open/close times.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q (expected HH:MM)", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}
