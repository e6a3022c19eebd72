package metrics

import (
	"fmt"
	"time"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/ledger"
)

// PNL tracks daily and total profit-and-loss.
type PNL struct {
	history []float64
	ix      int
}

// NewPNL creates the profit-and-loss unit.
func NewPNL() *PNL {
	return &PNL{}
}

func (p *PNL) Name() string { return "pnl" }

func (p *PNL) StartOfSimulation(_ *ledger.Ledger, _ core.EmissionRate, _ calendar.Calendar, sessions []time.Time, _ benchmark.Source) error {
	if len(sessions) == 0 {
		return fmt.Errorf("pnl: simulation has no sessions")
	}
	// The cursor starts at -1 so that "previous session" wraps around to the
	// zero-initialized final slot, making the first period's delta equal the
	// raw cumulative value with no special case.
	p.history = make([]float64, len(sessions))
	p.ix = -1
	return nil
}

func (p *PNL) periodPNL(ldg *ledger.Ledger) float64 {
	n := len(p.history)
	prev := p.history[((p.ix%n)+n)%n]
	return ldg.Portfolio().PNL - prev
}

func (p *PNL) EndOfBar(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	pkt.MinutePerf.Fields["pnl"] = p.periodPNL(ldg)
	pkt.CumulativePerf["pnl"] = ldg.Portfolio().PNL
	return nil
}

func (p *PNL) EndOfSession(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	pnl := ldg.Portfolio().PNL
	pkt.DailyPerf.Fields["pnl"] = p.periodPNL(ldg)
	pkt.CumulativePerf["pnl"] = pnl

	p.ix++
	if p.ix >= len(p.history) {
		return fmt.Errorf("pnl: session close %d exceeds the %d configured sessions", p.ix+1, len(p.history))
	}
	p.history[p.ix] = pnl
	return nil
}

func (p *PNL) EndOfSimulation(pkt SummaryPacket, ldg *ledger.Ledger) error {
	pkt["total_pnl"] = ldg.Portfolio().PNL
	pkt["daily_pnl"] = append([]float64(nil), p.history...)
	return nil
}
