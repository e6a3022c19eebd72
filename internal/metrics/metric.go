package metrics

import (
	"time"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/ledger"
)

// Metric is a named performance unit. Concrete units implement whichever of
// the lifecycle interfaces below they participate in; the tracker partitions
// the metric set by capability once at construction, so dispatch never
// re-checks interfaces per tick.
type Metric interface {
	Name() string
}

// SimulationStarter receives the simulation parameters before any other
// hook fires, exactly once, to size and seed private state.
type SimulationStarter interface {
	Metric
	StartOfSimulation(ldg *ledger.Ledger, rate core.EmissionRate, cal calendar.Calendar, sessions []time.Time, source benchmark.Source) error
}

// BarCloser writes bar-granularity fields into the packet. It fires only in
// minute emission and must not mutate the ledger.
type BarCloser interface {
	Metric
	EndOfBar(pkt *Packet, ldg *ledger.Ledger, dt time.Time, portal data.Portal) error
}

// SessionCloser writes session-granularity fields into the packet and rolls
// the unit's private history forward. It must not mutate the ledger.
type SessionCloser interface {
	Metric
	EndOfSession(pkt *Packet, ldg *ledger.Ledger, session time.Time, portal data.Portal) error
}

// SimulationEnder writes finalized whole-history fields onto the flat
// summary packet.
type SimulationEnder interface {
	Metric
	EndOfSimulation(pkt SummaryPacket, ldg *ledger.Ledger) error
}
