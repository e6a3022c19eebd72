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

// CashFlow tracks per-period capital consumption. The output field keeps its
// historical name capital_used for packet compatibility.
type CashFlow struct {
	previous float64
	history  []float64
	ix       int
}

// NewCashFlow creates the cash flow unit.
func NewCashFlow() *CashFlow {
	return &CashFlow{}
}

func (c *CashFlow) Name() string { return "cash_flow" }

func (c *CashFlow) StartOfSimulation(ldg *ledger.Ledger, _ core.EmissionRate, _ calendar.Calendar, sessions []time.Time, _ benchmark.Source) error {
	if len(sessions) == 0 {
		return fmt.Errorf("cash_flow: simulation has no sessions")
	}
	c.previous = ldg.Portfolio().CashFlow
	c.history = make([]float64, len(sessions))
	c.ix = 0
	return nil
}

// periodFlow is previous minus current, so spending cash yields a positive
// capital_used value.
func (c *CashFlow) periodFlow(ldg *ledger.Ledger) float64 {
	return c.previous - ldg.Portfolio().CashFlow
}

func (c *CashFlow) EndOfBar(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	pkt.MinutePerf.Fields["capital_used"] = c.periodFlow(ldg)
	pkt.CumulativePerf["capital_used"] = ldg.Portfolio().CashFlow
	return nil
}

func (c *CashFlow) EndOfSession(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	flow := ldg.Portfolio().CashFlow
	delta := c.previous - flow
	pkt.DailyPerf.Fields["capital_used"] = delta
	pkt.CumulativePerf["capital_used"] = flow

	if c.ix >= len(c.history) {
		return fmt.Errorf("cash_flow: session close %d exceeds the %d configured sessions", c.ix+1, len(c.history))
	}
	c.history[c.ix] = delta
	c.ix++
	c.previous = flow
	return nil
}

func (c *CashFlow) EndOfSimulation(pkt SummaryPacket, _ *ledger.Ledger) error {
	pkt["capital_used"] = append([]float64(nil), c.history...)
	return nil
}
