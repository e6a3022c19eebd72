package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
)

// Ledger owns portfolio state for one simulation run. Events mutate cash and
// positions immediately but the derived portfolio and account views are only
// recomputed when read, so a burst of fills inside one bar costs a single
// recompute.
type Ledger struct {
	portfolio Portfolio
	account   Account
	positions *PositionTracker

	orders []core.Order

	// Daily returns are kept in a fixed-size series, one slot per session,
	// written through an ordinal cursor as sessions close.
	dailyReturns         []float64
	sessionIx            int
	previousTotalReturns float64

	dirty bool
}

// New creates a ledger for the given session sequence and starting capital.
func New(sessions []time.Time, capitalBase float64) *Ledger {
	var start time.Time
	if len(sessions) > 0 {
		start = sessions[0]
	}
	l := &Ledger{
		portfolio: Portfolio{
			StartingCash:   capitalBase,
			PortfolioValue: capitalBase,
			Cash:           capitalBase,
			StartDate:      start,
		},
		positions:    NewPositionTracker(),
		dailyReturns: make([]float64, len(sessions)),
	}
	l.recompute()
	return l
}

func (l *Ledger) ensure() {
	if l.dirty {
		l.recompute()
	}
}

func (l *Ledger) recompute() {
	stats := l.positions.Stats()
	startValue := l.portfolio.PortfolioValue

	l.portfolio.PositionsValue = stats.NetValue
	l.portfolio.PositionsExposure = stats.NetExposure
	endValue := l.portfolio.Cash + stats.NetValue

	pnl := endValue - startValue
	var returns float64
	if startValue != 0 {
		returns = pnl / startValue
	}

	l.portfolio.PortfolioValue = endValue
	l.portfolio.PNL += pnl
	l.portfolio.Returns = (1+l.portfolio.Returns)*(1+returns) - 1

	l.deriveAccount(stats)
	l.dirty = false
}

func (l *Ledger) deriveAccount(stats PositionStats) {
	pv := l.portfolio.PortfolioValue
	cash := l.portfolio.Cash

	gross := math.Inf(1)
	net := math.Inf(1)
	cushion := math.NaN()
	if pv != 0 {
		gross = stats.GrossExposure / pv
		net = stats.NetExposure / pv
		cushion = cash / pv
	}

	l.account = Account{
		SettledCash:            cash,
		AccruedInterest:        0,
		BuyingPower:            math.Inf(1),
		EquityWithLoan:         pv,
		TotalPositionsValue:    pv - cash,
		TotalPositionsExposure: l.portfolio.PositionsExposure,
		RegTEquity:             cash,
		RegTMargin:             math.Inf(1),
		InitialMarginReq:       0,
		MaintenanceMarginReq:   0,
		AvailableFunds:         cash,
		ExcessLiquidity:        cash,
		Cushion:                cushion,
		DayTradesRemaining:     math.Inf(1),
		Leverage:               gross,
		NetLeverage:            net,
		GrossLeverage:          gross,
		NetLiquidation:         pv,
	}
}

func (l *Ledger) cashFlow(amount float64) {
	l.portfolio.CashFlow += amount
	l.portfolio.Cash += amount
	l.dirty = true
}

// ProcessTransaction applies a fill to positions and cash.
func (l *Ledger) ProcessTransaction(txn core.Transaction) {
	l.positions.Update(txn)
	l.cashFlow(-(txn.Price * txn.Amount * txn.Asset.ExposureMultiplier()))
}

// ProcessOrder records a placed order.
func (l *Ledger) ProcessOrder(o core.Order) {
	l.orders = append(l.orders, o)
}

// ProcessCommission charges a commission against cash and folds it into the
// position's cost basis.
func (l *Ledger) ProcessCommission(c core.Commission) {
	l.positions.AdjustCommission(c)
	l.cashFlow(-c.Cost)
}

// ProcessSplits applies splits to held positions, crediting cash for
// liquidated fractional shares.
func (l *Ledger) ProcessSplits(splits []core.Split) {
	leftover := l.positions.HandleSplits(splits)
	if leftover > 0 {
		l.cashFlow(leftover)
	}
	l.dirty = true
}

// ProcessDividends earns dividends going ex on the next session for held
// positions, then credits cash for dividends paying on that session.
func (l *Ledger) ProcessDividends(next time.Time, finder data.AssetFinder, reader data.AdjustmentReader) error {
	sids := l.positions.Sids()
	if len(sids) > 0 {
		dividends, err := reader.DividendsWithExDate(sids, next, finder)
		if err != nil {
			return core.WrapError(core.ErrNoData,
				fmt.Errorf("loading dividends with ex-date %s: %w", next.Format("2006-01-02"), err))
		}
		l.positions.EarnDividends(dividends)
	}

	if payment := l.positions.PayDividends(next); payment != 0 {
		l.cashFlow(payment)
	}
	return nil
}

// ClosePosition liquidates a position at the portal price, falling back to
// the last sale price when the portal has no quote.
func (l *Ledger) ClosePosition(asset core.Asset, dt time.Time, portal data.Portal) {
	pos, ok := l.positions.Get(asset.Sid)
	if !ok || pos.Amount == 0 {
		return
	}
	price, ok := portal.SpotPrice(asset, dt)
	if !ok {
		price = pos.LastSalePrice
	}
	l.ProcessTransaction(core.Transaction{
		Asset:  asset,
		Amount: -pos.Amount,
		Price:  price,
		DT:     dt,
	})
}

// SyncLastSalePrices refreshes position marks from the portal.
func (l *Ledger) SyncLastSalePrices(dt time.Time, portal data.Portal) {
	l.positions.SyncLastSalePrices(dt, portal)
	l.dirty = true
}

// todaysReturns is computed in returns space rather than from raw values so
// that mid-simulation capital changes do not distort it.
func (l *Ledger) todaysReturns() float64 {
	return (1+l.portfolio.Returns)/(1+l.previousTotalReturns) - 1
}

// EndOfBar records the partial return for the in-progress session.
func (l *Ledger) EndOfBar() error {
	l.ensure()
	if l.sessionIx >= len(l.dailyReturns) {
		return fmt.Errorf("ledger: bar close after all %d sessions have ended", len(l.dailyReturns))
	}
	l.dailyReturns[l.sessionIx] = l.todaysReturns()
	return nil
}

// EndOfSession finalizes the current session's return and advances the
// session cursor.
func (l *Ledger) EndOfSession() error {
	l.ensure()
	if l.sessionIx >= len(l.dailyReturns) {
		return fmt.Errorf("ledger: session close %d exceeds the %d configured sessions",
			l.sessionIx+1, len(l.dailyReturns))
	}
	l.dailyReturns[l.sessionIx] = l.todaysReturns()
	l.previousTotalReturns = l.portfolio.Returns
	l.sessionIx++
	return nil
}

// Portfolio returns the current portfolio snapshot.
func (l *Ledger) Portfolio() Portfolio {
	l.ensure()
	return l.portfolio
}

// Account returns the derived account view.
func (l *Ledger) Account() Account {
	l.ensure()
	return l.account
}

// PositionStats returns aggregate statistics over open positions.
func (l *Ledger) PositionStats() PositionStats {
	return l.positions.Stats()
}

// Positions returns copies of all open positions in sid order.
func (l *Ledger) Positions() []Position {
	return l.positions.Positions()
}

// HeldSids returns the sids of open positions in ascending order.
func (l *Ledger) HeldSids() []int64 {
	return l.positions.Sids()
}

// Orders returns all orders recorded so far.
func (l *Ledger) Orders() []core.Order {
	return append([]core.Order(nil), l.orders...)
}

// SessionReturn returns the finalized (or in-progress) return for a session
// ordinal.
func (l *Ledger) SessionReturn(ix int) (float64, error) {
	if ix < 0 || ix >= len(l.dailyReturns) {
		return 0, fmt.Errorf("ledger: session ordinal %d out of range [0, %d)", ix, len(l.dailyReturns))
	}
	return l.dailyReturns[ix], nil
}

// DailyReturns returns a copy of the full daily returns series. Slots for
// sessions that have not closed yet are zero.
func (l *Ledger) DailyReturns() []float64 {
	return append([]float64(nil), l.dailyReturns...)
}

// SessionCount reports how many sessions have closed.
func (l *Ledger) SessionCount() int {
	return l.sessionIx
}

// TotalSessions reports the configured session count.
func (l *Ledger) TotalSessions() int {
	return len(l.dailyReturns)
}
