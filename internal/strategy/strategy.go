// Package strategy defines the trading strategies the simulation runner
// can drive through a run.
package strategy

import (
	"time"

	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/ledger"
)

// Context is what a strategy sees at a session open.
type Context struct {
	// Session is the session label; Open is the market open instant, which
	// is also the fill time for returned transactions.
	Session time.Time
	Open    time.Time

	// Portal quotes prices as of Open.
	Portal data.Portal

	Portfolio ledger.Portfolio
	Positions []ledger.Position
}

// Price looks up an asset's price as of the session open.
func (c Context) Price(asset core.Asset) (float64, bool) {
	return c.Portal.SpotPrice(asset, c.Open)
}

// Strategy emits the transactions to apply at each session open. Returned
// transactions fill immediately at their stated price.
type Strategy interface {
	Name() string
	Rebalance(ctx Context) ([]core.Transaction, error)
}
