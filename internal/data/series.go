package data

import (
	"sort"
	"time"

	"github.com/aborodya/zipline/internal/core"
)

// SeriesPortal serves prices from in-memory OHLCV history, one series per
// asset. Lookups return the close of the most recent bar at or before the
// requested instant.
type SeriesPortal struct {
	bars map[int64][]core.OHLCV
}

// NewSeriesPortal creates an empty series portal.
func NewSeriesPortal() *SeriesPortal {
	return &SeriesPortal{bars: make(map[int64][]core.OHLCV)}
}

// SetHistory installs the bar history for an asset, replacing any previous
// series. Bars are kept sorted by time.
func (p *SeriesPortal) SetHistory(asset core.Asset, bars []core.OHLCV) {
	sorted := append([]core.OHLCV(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	p.bars[asset.Sid] = sorted
}

func (p *SeriesPortal) SpotPrice(asset core.Asset, dt time.Time) (float64, bool) {
	series := p.bars[asset.Sid]
	if len(series) == 0 {
		return 0, false
	}
	// First bar strictly after dt; the answer is the one before it.
	i := sort.Search(len(series), func(i int) bool { return series[i].Time.After(dt) })
	if i == 0 {
		return 0, false
	}
	return series[i-1].Close, true
}

// StaticPortal serves fixed per-asset prices regardless of time, keyed by
// sid. Useful for quiet simulations and tests.
type StaticPortal map[int64]float64

// NewStaticPortal creates an empty static portal.
func NewStaticPortal() StaticPortal {
	return make(StaticPortal)
}

// SetPrice fixes the price served for an asset.
func (p StaticPortal) SetPrice(asset core.Asset, price float64) {
	p[asset.Sid] = price
}

func (p StaticPortal) SpotPrice(asset core.Asset, _ time.Time) (float64, bool) {
	price, ok := p[asset.Sid]
	return price, ok
}
