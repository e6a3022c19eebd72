package calendar

import (
	"errors"
	"testing"
	"time"
)

var (
	nyseOpen  = 9*time.Hour + 30*time.Minute
	nyseClose = 16 * time.Hour
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekday_ImplementsCalendar(t *testing.T) {
	var _ Calendar = (*Weekday)(nil)
	var _ Calendar = (*AllDay)(nil)
}

func TestWeekday_SessionsInRange(t *testing.T) {
	// 2024-01-01 is a Monday.
	cal, err := NewWeekday(day(2024, 1, 1), day(2024, 1, 31), nyseOpen, nyseClose)
	if err != nil {
		t.Fatalf("NewWeekday: %v", err)
	}

	// Mon Jan 1 .. Fri Jan 12 spans two weekends-free weeks.
	sessions := cal.SessionsInRange(day(2024, 1, 1), day(2024, 1, 12))
	if len(sessions) != 10 {
		t.Fatalf("expected 10 sessions, got %d", len(sessions))
	}
	if !sessions[0].Equal(day(2024, 1, 1)) {
		t.Errorf("first session = %s, want 2024-01-01", sessions[0].Format("2006-01-02"))
	}
	if !sessions[9].Equal(day(2024, 1, 12)) {
		t.Errorf("last session = %s, want 2024-01-12", sessions[9].Format("2006-01-02"))
	}

	// Saturday/Sunday endpoints clip inward.
	weekend := cal.SessionsInRange(day(2024, 1, 6), day(2024, 1, 7))
	if len(weekend) != 0 {
		t.Errorf("expected no weekend sessions, got %d", len(weekend))
	}
}

func TestWeekday_SessionsInRange_ClipsToBounds(t *testing.T) {
	cal, _ := NewWeekday(day(2024, 1, 8), day(2024, 1, 12), nyseOpen, nyseClose)

	sessions := cal.SessionsInRange(day(2023, 12, 1), day(2024, 2, 1))
	if len(sessions) != 5 {
		t.Fatalf("expected 5 sessions after clipping, got %d", len(sessions))
	}
}

func TestWeekday_OpenAndClose(t *testing.T) {
	cal, _ := NewWeekday(day(2024, 1, 1), day(2024, 1, 31), nyseOpen, nyseClose)

	open, clos, err := cal.OpenAndCloseForSession(day(2024, 1, 2))
	if err != nil {
		t.Fatalf("OpenAndCloseForSession: %v", err)
	}
	wantOpen := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	wantClose := time.Date(2024, 1, 2, 16, 0, 0, 0, time.UTC)
	if !open.Equal(wantOpen) {
		t.Errorf("open = %s, want %s", open, wantOpen)
	}
	if !clos.Equal(wantClose) {
		t.Errorf("close = %s, want %s", clos, wantClose)
	}

	// Saturday is not a session.
	if _, _, err := cal.OpenAndCloseForSession(day(2024, 1, 6)); err == nil {
		t.Error("expected error for non-session day")
	}
}

func TestWeekday_NextSessionLabel(t *testing.T) {
	cal, _ := NewWeekday(day(2024, 1, 1), day(2024, 1, 12), nyseOpen, nyseClose)

	// Friday's next session is Monday.
	next, err := cal.NextSessionLabel(day(2024, 1, 5))
	if err != nil {
		t.Fatalf("NextSessionLabel: %v", err)
	}
	if !next.Equal(day(2024, 1, 8)) {
		t.Errorf("next = %s, want 2024-01-08", next.Format("2006-01-02"))
	}
}

func TestWeekday_NextSessionLabel_Exhausted(t *testing.T) {
	cal, _ := NewWeekday(day(2024, 1, 1), day(2024, 1, 12), nyseOpen, nyseClose)

	_, err := cal.NextSessionLabel(day(2024, 1, 12))
	if err == nil {
		t.Fatal("expected error past calendar end")
	}
	if !errors.Is(err, ErrNoFurtherSessions) {
		t.Errorf("expected ErrNoFurtherSessions, got %v", err)
	}
}

func TestNewWeekday_Validation(t *testing.T) {
	if _, err := NewWeekday(day(2024, 1, 12), day(2024, 1, 1), nyseOpen, nyseClose); err == nil {
		t.Error("expected error for end before start")
	}
	if _, err := NewWeekday(day(2024, 1, 1), day(2024, 1, 12), nyseClose, nyseOpen); err == nil {
		t.Error("expected error for close before open")
	}
}

func TestAllDay_Sessions(t *testing.T) {
	cal, err := NewAllDay(day(2024, 1, 1), day(2024, 1, 7))
	if err != nil {
		t.Fatalf("NewAllDay: %v", err)
	}

	sessions := cal.SessionsInRange(day(2024, 1, 1), day(2024, 1, 7))
	if len(sessions) != 7 {
		t.Fatalf("expected 7 sessions, got %d", len(sessions))
	}

	open, clos, err := cal.OpenAndCloseForSession(day(2024, 1, 6))
	if err != nil {
		t.Fatalf("OpenAndCloseForSession: %v", err)
	}
	if !open.Equal(day(2024, 1, 6)) {
		t.Errorf("open = %s, want midnight", open)
	}
	if !clos.Equal(time.Date(2024, 1, 6, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("close = %s, want 23:59", clos)
	}

	_, err = cal.NextSessionLabel(day(2024, 1, 7))
	if !errors.Is(err, ErrNoFurtherSessions) {
		t.Errorf("expected ErrNoFurtherSessions, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 3, 14, 15, 9, 26, 535, time.UTC)
	if got := Normalize(ts); !got.Equal(day(2024, 3, 14)) {
		t.Errorf("Normalize = %s, want midnight", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"09:30", 9*time.Hour + 30*time.Minute, false},
		{"16:00", 16 * time.Hour, false},
		{"00:00", 0, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"930", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
