package calendar

import (
	"fmt"
	"time"
)

// AllDay is a calendar where every day trades, for around-the-clock markets.
// Sessions open at midnight UTC and close one minute before the next.
type AllDay struct {
	start time.Time
	end   time.Time
}

// NewAllDay creates an all-day calendar bounded by [start, end].
func NewAllDay(start, end time.Time) (*AllDay, error) {
	start = Normalize(start)
	end = Normalize(end)
	if end.Before(start) {
		return nil, fmt.Errorf("calendar end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return &AllDay{start: start, end: end}, nil
}

func (c *AllDay) Name() string { return "allday" }

func (c *AllDay) inBounds(day time.Time) bool {
	return !day.Before(c.start) && !day.After(c.end)
}

func (c *AllDay) SessionsInRange(first, last time.Time) []time.Time {
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
		sessions = append(sessions, day)
	}
	return sessions
}

func (c *AllDay) OpenAndCloseForSession(session time.Time) (time.Time, time.Time, error) {
	day := Normalize(session)
	if !c.inBounds(day) {
		return time.Time{}, time.Time{}, fmt.Errorf(
			"%s is not a session on the %s calendar", day.Format("2006-01-02"), c.Name())
	}
	return day, day.Add(24*time.Hour - time.Minute), nil
}

func (c *AllDay) NextSessionLabel(session time.Time) (time.Time, error) {
	day := Normalize(session).AddDate(0, 0, 1)
	if day.After(c.end) {
		return time.Time{}, fmt.Errorf("no session after %s: %w",
			Normalize(session).Format("2006-01-02"), ErrNoFurtherSessions)
	}
	return day, nil
}
