package data

import (
	"fmt"
	"time"

	"github.com/aborodya/zipline/internal/core"
)

// StaticAssets is an in-memory AssetFinder.
type StaticAssets struct {
	assets map[int64]core.Asset
}

// NewStaticAssets creates a finder over the given assets.
func NewStaticAssets(assets ...core.Asset) *StaticAssets {
	m := make(map[int64]core.Asset, len(assets))
	for _, a := range assets {
		m[a.Sid] = a
	}
	return &StaticAssets{assets: m}
}

func (f *StaticAssets) Retrieve(sid int64) (core.Asset, error) {
	asset, ok := f.assets[sid]
	if !ok {
		return core.Asset{}, core.WrapError(core.ErrAssetNotFound, fmt.Errorf("sid %d", sid))
	}
	return asset, nil
}

// StaticAdjustments is an in-memory AdjustmentReader over a fixed dividend
// list.
type StaticAdjustments struct {
	dividends []core.Dividend
}

// NewStaticAdjustments creates a reader over the given dividends.
func NewStaticAdjustments(dividends ...core.Dividend) *StaticAdjustments {
	return &StaticAdjustments{dividends: append([]core.Dividend(nil), dividends...)}
}

func (r *StaticAdjustments) DividendsWithExDate(sids []int64, exDate time.Time, _ AssetFinder) ([]core.Dividend, error) {
	held := make(map[int64]bool, len(sids))
	for _, sid := range sids {
		held[sid] = true
	}

	var matched []core.Dividend
	for _, d := range r.dividends {
		if held[d.Asset.Sid] && sameDay(d.ExDate, exDate) {
			matched = append(matched, d)
		}
	}
	return matched, nil
}
