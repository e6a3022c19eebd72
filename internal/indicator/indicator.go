// Package indicator provides the rolling price statistics strategies
// trade on.
package indicator

// SMA computes the simple moving average over a price series. The result
// has len(prices)-period+1 values, one per full window; fewer prices than
// the period yields an empty slice.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	out := make([]float64, 0, len(prices)-period+1)
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

// EMA computes the exponential moving average over a price series, seeded
// with the simple average of the first window. Result length matches SMA.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	seed := 0.0
	for _, p := range prices[:period] {
		seed += p
	}
	ema := seed / float64(period)

	out := make([]float64, 0, len(prices)-period+1)
	out = append(out, ema)

	k := 2.0 / float64(period+1)
	for _, p := range prices[period:] {
		ema += (p - ema) * k
		out = append(out, ema)
	}
	return out
}

// Cross describes how a fast series moved against a slow one between two
// observations.
type Cross int

const (
	CrossNone Cross = iota
	// CrossAbove is the fast series crossing over the slow one.
	CrossAbove
	// CrossBelow is the fast series crossing under the slow one.
	CrossBelow
)

// DetectCross compares the previous and current values of a fast and a
// slow series and reports whether the fast one crossed the slow one.
func DetectCross(prevFast, prevSlow, currFast, currSlow float64) Cross {
	switch {
	case prevFast <= prevSlow && currFast > currSlow:
		return CrossAbove
	case prevFast >= prevSlow && currFast < currSlow:
		return CrossBelow
	default:
		return CrossNone
	}
}
