// Package benchmark provides return series for the reference index a
// simulation is measured against.
package benchmark

import "time"

// ReturnPoint is one timestamped return observation.
type ReturnPoint struct {
	DT     time.Time
	Return float64
}

// Source supplies benchmark returns to the metrics layer.
type Source interface {
	// DailyReturns returns one return per trading session in [start, end],
	// both inclusive, in session order.
	DailyReturns(start, end time.Time) ([]float64, error)

	// RangeReturns returns the bar-level returns observed in [open, close],
	// both inclusive, in time order.
	RangeReturns(open, close time.Time) ([]ReturnPoint, error)
}
