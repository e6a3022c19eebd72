package benchmark

import (
	"fmt"
	"sort"
	"time"

	"github.com/aborodya/zipline/internal/core"
)

// PriceSource derives returns from a price bar history, so a benchmark can
// be configured from raw index quotes instead of precomputed returns.
type PriceSource struct {
	bars []core.OHLCV
}

// NewPriceSource builds a source from price bars, sorted by time. Bars at
// any granularity work; DailyReturns compounds them per session day.
func NewPriceSource(bars []core.OHLCV) *PriceSource {
	sorted := append([]core.OHLCV(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	return &PriceSource{bars: sorted}
}

// DailyReturns compounds bar-to-bar returns within each session day over
// [start, end]. A bar before the window, when present, seeds the first
// session's base price; otherwise the first session returns zero.
func (s *PriceSource) DailyReturns(start, end time.Time) ([]float64, error) {
	points, err := s.returnsIn(start, end.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return nil, err
	}

	var (
		out        []float64
		currentDay time.Time
		product    float64
	)
	for _, pt := range points {
		d := dayOf(pt.DT)
		if !d.Equal(currentDay) {
			if !currentDay.IsZero() {
				out = append(out, product-1)
			}
			currentDay = d
			product = 1
		}
		product *= 1 + pt.Return
	}
	if !currentDay.IsZero() {
		out = append(out, product-1)
	}
	return out, nil
}

// RangeReturns returns per-bar returns in [open, close].
func (s *PriceSource) RangeReturns(open, close time.Time) ([]ReturnPoint, error) {
	return s.returnsIn(open, close)
}

func (s *PriceSource) returnsIn(from, to time.Time) ([]ReturnPoint, error) {
	if len(s.bars) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("benchmark price history is empty"))
	}

	// First bar at or after the window start.
	first := sort.Search(len(s.bars), func(i int) bool {
		return !s.bars[i].Time.Before(from)
	})

	prevClose := 0.0
	if first > 0 {
		prevClose = s.bars[first-1].Close
	}

	var out []ReturnPoint
	for _, bar := range s.bars[first:] {
		if bar.Time.After(to) {
			break
		}
		r := 0.0
		if prevClose != 0 {
			r = bar.Close/prevClose - 1
		}
		out = append(out, ReturnPoint{DT: bar.Time, Return: r})
		prevClose = bar.Close
	}
	if len(out) == 0 {
		return nil, core.WrapError(core.ErrNoData,
			fmt.Errorf("no benchmark prices between %s and %s",
				from.Format(time.RFC3339), to.Format(time.RFC3339)))
	}
	return out, nil
}

func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PricePath compounds a return series into a synthetic close-price history
// starting from base, the inverse of what PriceSource computes. Bar i
// carries the price after applying return i at its timestamp.
func PricePath(points []ReturnPoint, base float64) []core.OHLCV {
	bars := make([]core.OHLCV, 0, len(points))
	price := base
	for _, pt := range points {
		price *= 1 + pt.Return
		bars = append(bars, core.OHLCV{
			Open:  price,
			High:  price,
			Low:   price,
			Close: price,
			Time:  pt.DT,
		})
	}
	return bars
}
