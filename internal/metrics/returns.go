package metrics

import (
	"time"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/ledger"
)

// Returns tracks daily and cumulative returns for the algorithm.
type Returns struct {
	previousTotal float64
	sessionIx     int
}

// NewReturns creates the algorithm returns unit.
func NewReturns() *Returns {
	return &Returns{}
}

func (r *Returns) Name() string { return "returns" }

func (r *Returns) StartOfSimulation(*ledger.Ledger, core.EmissionRate, calendar.Calendar, []time.Time, benchmark.Source) error {
	r.previousTotal = 0
	r.sessionIx = 0
	return nil
}

func (r *Returns) EndOfBar(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	// Inverse-compounded ratio, kept as the historical reporting convention
	// for intraday returns.
	current := ldg.Portfolio().Returns
	pkt.MinutePerf.Fields["returns"] = (1+r.previousTotal)/(1+current) - 1
	pkt.CumulativePerf["returns"] = current
	return nil
}

func (r *Returns) EndOfSession(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	// The session's return was finalized by the ledger; read it back rather
	// than re-deriving it.
	daily, err := ldg.SessionReturn(r.sessionIx)
	if err != nil {
		return err
	}
	pkt.DailyPerf.Fields["returns"] = daily

	total := ldg.Portfolio().Returns
	pkt.CumulativePerf["returns"] = total
	r.previousTotal = total
	r.sessionIx++
	return nil
}

func (r *Returns) EndOfSimulation(pkt SummaryPacket, ldg *ledger.Ledger) error {
	daily := ldg.DailyReturns()
	product := 1.0
	for _, v := range daily {
		product *= 1 + v
	}
	pkt["cumulative_algorithm_returns"] = product - 1
	pkt["daily_algorithm_returns"] = daily
	return nil
}
