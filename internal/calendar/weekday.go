package calendar

import (
	"fmt"
	"time"
)

// Weekday is a Monday-through-Friday calendar over a bounded date range,
// with configurable open/close clock times in UTC.
type Weekday struct {
	start time.Time
	end   time.Time
	open  time.Duration
	close time.Duration
}

// NewWeekday creates a weekday calendar bounded by [start, end]. The open
// and close offsets are measured from session midnight UTC.
func NewWeekday(start, end time.Time, open, close time.Duration) (*Weekday, error) {
	start = Normalize(start)
	end = Normalize(end)
	if end.Before(start) {
		return nil, fmt.Errorf("calendar end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if close <= open {
		return nil, fmt.Errorf("session close offset %v not after open offset %v", close, open)
	}
	return &Weekday{start: start, end: end, open: open, close: close}, nil
}

func (c *Weekday) Name() string { return "weekday" }

func (c *Weekday) isSession(day time.Time) bool {
	if day.Before(c.start) || day.After(c.end) {
		return false
	}
	wd := day.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (c *Weekday) SessionsInRange(first, last time.Time) []time.Time {
	first = Normalize(first)
	last = Normalize(last)
	if first.Before(c.start) {
		first = c.start
	}
	if last.After(c.end) {
		last = c.end
	}

	var sessions []time.Time
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if c.isSession(day) {
			sessions = append(sessions, day)
		}
	}
	return sessions
}

func (c *Weekday) OpenAndCloseForSession(session time.Time) (time.Time, time.Time, error) {
	day := Normalize(session)
	if !c.isSession(day) {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"%s is not a session on the %s calendar", day.Format("2006-01-02"), c.Name())
	}
	return day.Add(c.open), day.Add(c.close), nil
}

func (c *Weekday) NextSessionLabel(session time.Time) (time.Time, error) {
	day := Normalize(session).AddDate(0, 0, 1)
	for ; !day.After(c.end); day = day.AddDate(0, 0, 1) {
		if c.isSession(day) {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("no session after %s: %w",
		Normalize(session).Format("2006-01-02"), ErrNoFurtherSessions)
}
