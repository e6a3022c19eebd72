package benchmark

import (
	"fmt"
	"sort"
	"time"

	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
)

// SeriesSource serves precomputed return series held in memory. Daily points
// are keyed by session label; bar points, when present, by bar timestamp.
type SeriesSource struct {
	daily  []ReturnPoint
	minute []ReturnPoint
}

// NewSeriesSource builds a source from explicit return points. Both slices
// are sorted by time; minute may be nil for daily-only simulations.
func NewSeriesSource(daily, minute []ReturnPoint) *SeriesSource {
	s := &SeriesSource{
		daily:  append([]ReturnPoint(nil), daily...),
		minute: append([]ReturnPoint(nil), minute...),
	}
	sortPoints(s.daily)
	sortPoints(s.minute)
	return s
}

// DailyPoints returns a copy of the daily return series.
func (s *SeriesSource) DailyPoints() []ReturnPoint {
	return append([]ReturnPoint(nil), s.daily...)
}

// DailyReturns returns the session returns in [start, end].
func (s *SeriesSource) DailyReturns(start, end time.Time) ([]float64, error) {
	startDay := calendar.Normalize(start)
	endDay := calendar.Normalize(end)

	var out []float64
	for _, pt := range s.daily {
		d := calendar.Normalize(pt.DT)
		if d.Before(startDay) {
			continue
		}
		if d.After(endDay) {
			break
		}
		out = append(out, pt.Return)
	}
	if len(out) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no daily benchmark returns between %s and %s",
				startDay.Format("2006-01-02"), endDay.Format("2006-01-02")))
	}
	return out, nil
}

// RangeReturns returns the bar-level returns in [open, close].
func (s *SeriesSource) RangeReturns(open, close time.Time) ([]ReturnPoint, error) {
	if len(s.minute) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no bar-level benchmark returns loaded"))
	}
	var out []ReturnPoint
	for _, pt := range s.minute {
		if pt.DT.Before(open) {
			continue
		}
		if pt.DT.After(close) {
			break
		}
		out = append(out, pt)
	}
	return out, nil
}

func sortPoints(points []ReturnPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].DT.Before(points[j].DT) })
}
