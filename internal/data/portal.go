// Package data provides the market-data access layer for simulations: spot
// price lookup, asset metadata, and corporate-action queries.
package data

import (
	"time"

	"github.com/aborodya/zipline/internal/core"
)

// Portal serves last-sale prices. The ledger queries it when syncing
// position prices at each bar or session boundary.
type Portal interface {
	// SpotPrice returns the most recent price for the asset at or before dt.
	// The second return is false when no price is known, in which case the
	// ledger keeps the position's previous last-sale price.
	SpotPrice(asset core.Asset, dt time.Time) (float64, bool)
}

// AssetFinder resolves asset metadata by sid.
type AssetFinder interface {
	Retrieve(sid int64) (core.Asset, error)
}

// AdjustmentReader looks up corporate actions for held assets.
type AdjustmentReader interface {
	// DividendsWithExDate returns cash dividends on any of the given sids
	// whose ex-date falls on the given day.
	DividendsWithExDate(sids []int64, exDate time.Time, finder AssetFinder) ([]core.Dividend, error)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
