package strategy

import (
	"fmt"
	"math"

	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/indicator"
)

// SMACross trades one asset on a fast/slow moving average crossover. It
// buys with available cash when the fast average crosses above the slow
// one and liquidates when it crosses below.
type SMACross struct {
	asset core.Asset
	fast  int
	slow  int

	history []float64
}

// NewSMACross builds the strategy from the two averaging windows.
func NewSMACross(asset core.Asset, fast, slow int) (*SMACross, error) {
	if fast <= 0 || slow <= fast {
		return nil, fmt.Errorf("sma crossover needs 0 < fast < slow, got fast=%d slow=%d", fast, slow)
	}
	return &SMACross{asset: asset, fast: fast, slow: slow}, nil
}

func (s *SMACross) Name() string { return "sma_crossover" }

func (s *SMACross) Rebalance(ctx Context) ([]core.Transaction, error) {
	price, ok := ctx.Price(s.asset)
	if !ok || price <= 0 {
		return nil, nil
	}
	s.history = append(s.history, price)

	fastMA := indicator.SMA(s.history, s.fast)
	slowMA := indicator.SMA(s.history, s.slow)
	if len(fastMA) < 2 || len(slowMA) < 2 {
		return nil, nil
	}

	cross := indicator.DetectCross(
		fastMA[len(fastMA)-2], slowMA[len(slowMA)-2],
		fastMA[len(fastMA)-1], slowMA[len(slowMA)-1],
	)

	held := 0.0
	for _, pos := range ctx.Positions {
		if pos.Asset.Sid == s.asset.Sid {
			held = pos.Amount
		}
	}

	switch cross {
	case indicator.CrossAbove:
		if held > 0 {
			return nil, nil
		}
		shares := math.Floor(ctx.Portfolio.Cash / price)
		if shares < 1 {
			return nil, nil
		}
		return []core.Transaction{{
			Asset:  s.asset,
			Amount: shares,
			Price:  price,
			DT:     ctx.Open,
		}}, nil

	case indicator.CrossBelow:
		if held <= 0 {
			return nil, nil
		}
		return []core.Transaction{{
			Asset:  s.asset,
			Amount: -held,
			Price:  price,
			DT:     ctx.Open,
		}}, nil
	}
	return nil, nil
}
