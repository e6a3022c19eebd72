package strategy

import (
	"math"

	"github.com/aborodya/zipline/internal/core"
)

// BuyAndHold invests a fixed fraction of starting cash in one asset on the
// first session and then sits on the position.
type BuyAndHold struct {
	asset  core.Asset
	weight float64
	done   bool
}

// NewBuyAndHold builds the strategy. weight is the fraction of starting
// cash to invest, clamped to (0, 1].
func NewBuyAndHold(asset core.Asset, weight float64) *BuyAndHold {
	if weight <= 0 || weight > 1 {
		weight = 1
	}
	return &BuyAndHold{asset: asset, weight: weight}
}

func (b *BuyAndHold) Name() string { return "buy_and_hold" }

func (b *BuyAndHold) Rebalance(ctx Context) ([]core.Transaction, error) {
	if b.done {
		return nil, nil
	}

	price, ok := ctx.Price(b.asset)
	if !ok || price <= 0 {
		// No quote yet; try again next session.
		return nil, nil
	}

	shares := math.Floor(ctx.Portfolio.Cash * b.weight / price)
	if shares < 1 {
		return nil, nil
	}
	b.done = true

	return []core.Transaction{{
		Asset:  b.asset,
		Amount: shares,
		Price:  price,
		DT:     ctx.Open,
	}}, nil
}
