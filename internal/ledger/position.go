package ledger

import (
	"math"
	"sort"
	"time"

	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
)

// Position is a single open holding. Amount is signed: positive long,
// negative short. CostBasis is the per-share volume-weighted average cost,
// adjusted for commissions and splits.
type Position struct {
	Asset         core.Asset
	Amount        float64
	CostBasis     float64
	LastSalePrice float64
	LastSaleDate  time.Time
}

func (p *Position) update(txn core.Transaction) {
	total := p.Amount + txn.Amount
	if total == 0 {
		p.CostBasis = 0
	} else {
		prevDir := math.Copysign(1, p.Amount)
		txnDir := math.Copysign(1, txn.Amount)
		if prevDir != txnDir {
			// Covering a short or closing a long; if the fill flips the
			// position through zero the new lot's basis is the fill price.
			if math.Abs(txn.Amount) > math.Abs(p.Amount) {
				p.CostBasis = txn.Price
			}
		} else {
			prevCost := p.CostBasis * p.Amount
			txnCost := txn.Amount * txn.Price
			p.CostBasis = (prevCost + txnCost) / total
		}

		if p.LastSaleDate.IsZero() || txn.DT.After(p.LastSaleDate) {
			p.LastSalePrice = txn.Price
			p.LastSaleDate = txn.DT
		}
	}
	p.Amount = total
}

// adjustCommissionCostBasis folds a commission cost into the per-share cost
// basis. No-op when the position is already flat.
func (p *Position) adjustCommissionCostBasis(cost float64) {
	if p.Amount == 0 {
		return
	}
	prevCost := p.CostBasis * p.Amount
	p.CostBasis = (prevCost + cost) / p.Amount
}

// handleSplit applies a split ratio (price ratio: 2-for-1 is 0.5). The share
// count is floored; the fractional remainder is returned as cash.
func (p *Position) handleSplit(ratio float64) float64 {
	raw := p.Amount / ratio
	full := math.Floor(raw)
	frac := raw - full

	newCostBasis := round2(p.CostBasis * ratio)
	p.CostBasis = newCostBasis
	p.Amount = full

	return round2(frac * newCostBasis)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// PositionStats is the aggregate view over all open positions, recomputed
// lazily after mutations.
type PositionStats struct {
	LongsCount  int
	ShortsCount int

	LongValue  float64
	ShortValue float64 // negative

	LongExposure  float64
	ShortExposure float64 // negative

	GrossValue    float64
	NetValue      float64
	GrossExposure float64
	NetExposure   float64
}

func computeStats(positions map[int64]*Position) PositionStats {
	var s PositionStats
	for _, pos := range positions {
		value := pos.Amount * pos.LastSalePrice
		exposure := value * pos.Asset.ExposureMultiplier()

		if pos.Amount > 0 {
			s.LongsCount++
			s.LongValue += value
			s.LongExposure += exposure
		} else if pos.Amount < 0 {
			s.ShortsCount++
			s.ShortValue += value
			s.ShortExposure += exposure
		}
	}
	s.GrossValue = s.LongValue - s.ShortValue
	s.GrossExposure = s.LongExposure - s.ShortExposure
	s.NetValue = s.LongValue + s.ShortValue
	s.NetExposure = s.LongExposure + s.ShortExposure
	return s
}

type earnedDividend struct {
	asset core.Asset
	cash  float64
}

// PositionTracker maintains open positions and the dividends they have
// earned but not yet been paid.
type PositionTracker struct {
	positions map[int64]*Position
	unpaid    map[time.Time][]earnedDividend // keyed by normalized pay date

	dirty bool
	stats PositionStats
}

// NewPositionTracker creates an empty tracker.
func NewPositionTracker() *PositionTracker {
	return &PositionTracker{
		positions: make(map[int64]*Position),
		unpaid:    make(map[time.Time][]earnedDividend),
	}
}

// Update applies a fill. Positions driven to zero are removed.
func (t *PositionTracker) Update(txn core.Transaction) {
	pos, ok := t.positions[txn.Asset.Sid]
	if !ok {
		pos = &Position{Asset: txn.Asset}
		t.positions[txn.Asset.Sid] = pos
	}
	pos.update(txn)
	if pos.Amount == 0 {
		delete(t.positions, txn.Asset.Sid)
	}
	t.dirty = true
}

// AdjustCommission folds a commission into the held position's cost basis.
func (t *PositionTracker) AdjustCommission(c core.Commission) {
	if pos, ok := t.positions[c.Asset.Sid]; ok {
		pos.adjustCommissionCostBasis(c.Cost)
		t.dirty = true
	}
}

// HandleSplits applies splits to held positions and returns the total cash
// from liquidated fractional shares.
func (t *PositionTracker) HandleSplits(splits []core.Split) float64 {
	var leftover float64
	for _, s := range splits {
		pos, ok := t.positions[s.Asset.Sid]
		if !ok {
			continue
		}
		leftover += pos.handleSplit(s.Ratio)
		if pos.Amount == 0 {
			delete(t.positions, s.Asset.Sid)
		}
		t.dirty = true
	}
	return leftover
}

// EarnDividends records dividends going ex today on held positions. Earning
// marks the cash owed on the pay date; it does not move cash yet.
func (t *PositionTracker) EarnDividends(dividends []core.Dividend) {
	for _, d := range dividends {
		pos, ok := t.positions[d.Asset.Sid]
		if !ok || pos.Amount == 0 {
			continue
		}
		key := dateKey(d.PayDate)
		t.unpaid[key] = append(t.unpaid[key], earnedDividend{
			asset: d.Asset,
			cash:  pos.Amount * d.Amount,
		})
	}
}

// PayDividends returns the cash for dividends whose pay date is the given
// session and clears them from the unpaid ledger.
func (t *PositionTracker) PayDividends(session time.Time) float64 {
	key := dateKey(session)
	var total float64
	for _, e := range t.unpaid[key] {
		total += e.cash
	}
	delete(t.unpaid, key)
	return total
}

// SyncLastSalePrices refreshes position prices from the portal. Assets with
// no price at dt keep their previous last-sale price.
func (t *PositionTracker) SyncLastSalePrices(dt time.Time, portal data.Portal) {
	for _, pos := range t.positions {
		if price, ok := portal.SpotPrice(pos.Asset, dt); ok {
			pos.LastSalePrice = price
			pos.LastSaleDate = dt
		}
	}
	t.dirty = true
}

// Stats returns the aggregate position statistics, recomputing if stale.
func (t *PositionTracker) Stats() PositionStats {
	if t.dirty {
		t.stats = computeStats(t.positions)
		t.dirty = false
	}
	return t.stats
}

// Get returns a copy of the position for a sid.
func (t *PositionTracker) Get(sid int64) (Position, bool) {
	pos, ok := t.positions[sid]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Sids returns the held sids in ascending order.
func (t *PositionTracker) Sids() []int64 {
	sids := make([]int64, 0, len(t.positions))
	for sid := range t.positions {
		sids = append(sids, sid)
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })
	return sids
}

// Positions returns copies of all open positions in sid order.
func (t *PositionTracker) Positions() []Position {
	out := make([]Position, 0, len(t.positions))
	for _, sid := range t.Sids() {
		out = append(out, *t.positions[sid])
	}
	return out
}

func dateKey(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
