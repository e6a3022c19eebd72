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

// SimpleLedgerField copies one ledger scalar into the period section every
// bar and session, keeping a per-session history that it emits under the
// same name in the simulation summary.
type SimpleLedgerField struct {
	field ledger.Field
	name  string

	history []float64
	ix      int
}

// NewSimpleLedgerField builds a field-copy unit emitting under name.
func NewSimpleLedgerField(field ledger.Field, name string) *SimpleLedgerField {
	return &SimpleLedgerField{field: field, name: name}
}

func (f *SimpleLedgerField) Name() string { return f.name }

func (f *SimpleLedgerField) StartOfSimulation(_ *ledger.Ledger, _ core.EmissionRate, _ calendar.Calendar, sessions []time.Time, _ benchmark.Source) error {
	if len(sessions) == 0 {
		return fmt.Errorf("%s: simulation has no sessions", f.name)
	}
	f.history = make([]float64, len(sessions))
	f.ix = 0
	return nil
}

func (f *SimpleLedgerField) EndOfBar(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	pkt.MinutePerf.Fields[f.name] = f.field(ldg)
	return nil
}

func (f *SimpleLedgerField) EndOfSession(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	v := f.field(ldg)
	pkt.DailyPerf.Fields[f.name] = v
	return f.record(v)
}

func (f *SimpleLedgerField) EndOfSimulation(pkt SummaryPacket, _ *ledger.Ledger) error {
	pkt[f.name] = append([]float64(nil), f.history...)
	return nil
}

func (f *SimpleLedgerField) record(v float64) error {
	if f.ix >= len(f.history) {
		return fmt.Errorf("%s: session close %d exceeds the %d configured sessions", f.name, f.ix+1, len(f.history))
	}
	f.history[f.ix] = v
	f.ix++
	return nil
}

// DailyLedgerField is a SimpleLedgerField that also mirrors the current
// value into cumulative_perf each period.
type DailyLedgerField struct {
	SimpleLedgerField
}

// NewDailyLedgerField builds a field-copy unit that also tracks the value
// cumulatively.
func NewDailyLedgerField(field ledger.Field, name string) *DailyLedgerField {
	return &DailyLedgerField{SimpleLedgerField{field: field, name: name}}
}

func (f *DailyLedgerField) EndOfBar(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	v := f.field(ldg)
	pkt.MinutePerf.Fields[f.name] = v
	pkt.CumulativePerf[f.name] = v
	return nil
}

func (f *DailyLedgerField) EndOfSession(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	v := f.field(ldg)
	pkt.DailyPerf.Fields[f.name] = v
	pkt.CumulativePerf[f.name] = v
	return f.record(v)
}

// StartOfPeriodLedgerField emits a ledger scalar as observed at the previous
// period boundary, so a field like starting_cash reflects the prior close
// rather than the current bar.
type StartOfPeriodLedgerField struct {
	field ledger.Field
	name  string

	initial  float64
	previous float64
}

// NewStartOfPeriodLedgerField builds a previous-boundary field unit.
func NewStartOfPeriodLedgerField(field ledger.Field, name string) *StartOfPeriodLedgerField {
	return &StartOfPeriodLedgerField{field: field, name: name}
}

func (f *StartOfPeriodLedgerField) Name() string { return f.name }

func (f *StartOfPeriodLedgerField) StartOfSimulation(ldg *ledger.Ledger, _ core.EmissionRate, _ calendar.Calendar, _ []time.Time, _ benchmark.Source) error {
	v := f.field(ldg)
	f.initial = v
	f.previous = v
	return nil
}

func (f *StartOfPeriodLedgerField) EndOfBar(pkt *Packet, _ *ledger.Ledger, _ time.Time, _ data.Portal) error {
	pkt.MinutePerf.Fields[f.name] = f.previous
	pkt.CumulativePerf[f.name] = f.initial
	return nil
}

func (f *StartOfPeriodLedgerField) EndOfSession(pkt *Packet, ldg *ledger.Ledger, _ time.Time, _ data.Portal) error {
	pkt.DailyPerf.Fields[f.name] = f.previous
	pkt.CumulativePerf[f.name] = f.initial

	// Roll the boundary cache forward after emitting, so the next session
	// starts from this session's close.
	f.previous = f.field(ldg)
	return nil
}
