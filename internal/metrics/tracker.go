package metrics

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/ledger"
)

// TrackerConfig carries everything a tracker needs for one simulation run.
type TrackerConfig struct {
	Calendar     calendar.Calendar
	FirstSession time.Time
	LastSession  time.Time
	CapitalBase  float64
	EmissionRate core.EmissionRate

	// AssetFinder and AdjustmentReader feed dividend processing; both may be
	// nil for runs without corporate actions.
	AssetFinder      data.AssetFinder
	AdjustmentReader data.AdjustmentReader

	Benchmark benchmark.Source
	Metrics   []Metric
	Logger    *zap.Logger
}

// Tracker drives the registered metric units through the simulation
// lifecycle and assembles one packet per tick boundary. It owns the ledger
// and the session/time state machine.
type Tracker struct {
	cal          calendar.Calendar
	firstSession time.Time
	lastSession  time.Time
	firstOpen    time.Time
	lastClose    time.Time
	capitalBase  float64
	emissionRate core.EmissionRate

	finder data.AssetFinder
	reader data.AdjustmentReader

	sessions []time.Time

	ldg *ledger.Ledger

	currentSession time.Time
	marketOpen     time.Time
	marketClose    time.Time
	sessionCount   int
	totalSessions  int

	// Dispatch lists are partitioned once at construction; hook invocation
	// iterates them in registration order with no per-tick discovery.
	starters       []SimulationStarter
	barClosers     []BarCloser
	sessionClosers []SessionCloser
	enders         []SimulationEnder

	progress func() float64

	log *zap.Logger
}

// NewTracker builds a tracker, sizes the ledger to the session range, and
// fires start-of-simulation on every applicable metric. A start hook error
// aborts construction.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.Calendar == nil {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("metrics tracker requires a trading calendar"))
	}
	if !cfg.EmissionRate.Valid() {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown emission rate %q", cfg.EmissionRate))
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	sessions := cfg.Calendar.SessionsInRange(cfg.FirstSession, cfg.LastSession)
	if len(sessions) == 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("no trading sessions between %s and %s",
				cfg.FirstSession.Format("2006-01-02"), cfg.LastSession.Format("2006-01-02")))
	}
	first := sessions[0]
	last := sessions[len(sessions)-1]

	t := &Tracker{
		cal:            cfg.Calendar,
		firstSession:   first,
		lastSession:    last,
		capitalBase:    cfg.CapitalBase,
		emissionRate:   cfg.EmissionRate,
		finder:         cfg.AssetFinder,
		reader:         cfg.AdjustmentReader,
		sessions:       sessions,
		ldg:            ledger.New(sessions, cfg.CapitalBase),
		currentSession: first,
		totalSessions:  len(sessions),
		log:            log,
	}

	open, close, err := cfg.Calendar.OpenAndCloseForSession(first)
	if err != nil {
		return nil, err
	}
	t.marketOpen, t.marketClose = open, close
	t.firstOpen = open
	if _, lastClose, err := cfg.Calendar.OpenAndCloseForSession(last); err == nil {
		t.lastClose = lastClose
	} else {
		return nil, err
	}

	for _, m := range cfg.Metrics {
		if s, ok := m.(SimulationStarter); ok {
			t.starters = append(t.starters, s)
		}
		if b, ok := m.(BarCloser); ok {
			t.barClosers = append(t.barClosers, b)
		}
		if s, ok := m.(SessionCloser); ok {
			t.sessionClosers = append(t.sessionClosers, s)
		}
		if e, ok := m.(SimulationEnder); ok {
			t.enders = append(t.enders, e)
		}
	}

	// Bind the progress accessor once instead of comparing emission rates
	// on every tick. Progress is meaningless at minute granularity.
	if cfg.EmissionRate == core.EmissionMinute {
		t.progress = func() float64 { return 1.0 }
	} else {
		t.progress = func() float64 {
			return float64(t.sessionCount) / float64(t.totalSessions)
		}
	}

	for _, s := range t.starters {
		if err := s.StartOfSimulation(t.ldg, cfg.EmissionRate, cfg.Calendar, sessions, cfg.Benchmark); err != nil {
			return nil, fmt.Errorf("metric %s: start of simulation: %w", s.Name(), err)
		}
	}

	log.Info("metrics tracker initialized",
		zap.Int("sessions", len(sessions)),
		zap.Float64("capital_base", cfg.CapitalBase),
		zap.String("emission_rate", string(cfg.EmissionRate)),
		zap.Int("metrics", len(cfg.Metrics)))
	return t, nil
}

// HandleMinuteClose closes the bar ending at dt and returns its packet.
// Valid only in minute emission.
func (t *Tracker) HandleMinuteClose(dt time.Time, portal data.Portal) (*Packet, error) {
	if t.emissionRate != core.EmissionMinute {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("minute close is only valid in minute emission (tracker runs %q)", t.emissionRate))
	}

	t.ldg.SyncLastSalePrices(dt, portal)
	if err := t.ldg.EndOfBar(); err != nil {
		return nil, err
	}

	pkt := &Packet{
		PeriodStart:           t.firstSession,
		PeriodEnd:             t.lastSession,
		CapitalBase:           t.capitalBase,
		Progress:              t.progress(),
		MinutePerf:            NewPeriodPerf(t.marketOpen, dt),
		CumulativePerf:        make(FieldMap),
		CumulativeRiskMetrics: make(FieldMap),
	}
	for _, m := range t.barClosers {
		if err := m.EndOfBar(pkt, t.ldg, dt, portal); err != nil {
			return nil, fmt.Errorf("metric %s: end of bar: %w", m.Name(), err)
		}
	}
	return pkt, nil
}

// HandleMarketClose closes the current session and returns its packet. On
// all but the final session it also advances the tracker to the next
// session and applies dividends payable as of it.
func (t *Tracker) HandleMarketClose(dt time.Time, portal data.Portal) (*Packet, error) {
	completed := t.currentSession

	if t.emissionRate == core.EmissionDaily {
		// Minute emission syncs prices every bar; daily emission only gets
		// this one chance per session.
		t.ldg.SyncLastSalePrices(dt, portal)
	}

	t.sessionCount++

	next, err := t.cal.NextSessionLabel(completed)
	hasNext := true
	if err != nil {
		if !errors.Is(err, calendar.ErrNoFurtherSessions) {
			return nil, err
		}
		hasNext = false
	}

	pkt := &Packet{
		PeriodStart:           t.firstSession,
		PeriodEnd:             t.lastSession,
		CapitalBase:           t.capitalBase,
		Progress:              t.progress(),
		DailyPerf:             NewPeriodPerf(t.marketOpen, t.marketClose),
		CumulativePerf:        make(FieldMap),
		CumulativeRiskMetrics: make(FieldMap),
	}

	if err := t.ldg.EndOfSession(); err != nil {
		return nil, err
	}
	for _, m := range t.sessionClosers {
		if err := m.EndOfSession(pkt, t.ldg, completed, portal); err != nil {
			return nil, fmt.Errorf("metric %s: end of session: %w", m.Name(), err)
		}
	}

	// Calendar exhaustion, or a next session at or past the end of the run,
	// means this packet is the last one; the tracker state stays put.
	if !hasNext || !next.Before(t.lastSession) {
		return pkt, nil
	}

	if err := t.ProcessDividends(next); err != nil {
		return nil, err
	}

	t.currentSession = next
	open, close, err := t.cal.OpenAndCloseForSession(next)
	if err != nil {
		return nil, err
	}
	t.marketOpen, t.marketClose = open, close
	return pkt, nil
}

// HandleSimulationEnd produces the flat summary packet. Called exactly once,
// after the final HandleMarketClose.
func (t *Tracker) HandleSimulationEnd() (SummaryPacket, error) {
	t.log.Info("simulation complete",
		zap.Int("sessions", t.sessionCount),
		zap.Time("first_open", t.firstOpen),
		zap.Time("last_close", t.lastClose))

	pkt := make(SummaryPacket)
	for _, m := range t.enders {
		if err := m.EndOfSimulation(pkt, t.ldg); err != nil {
			return nil, fmt.Errorf("metric %s: end of simulation: %w", m.Name(), err)
		}
	}
	return pkt, nil
}

// ProcessTransaction applies a fill to the ledger.
func (t *Tracker) ProcessTransaction(txn core.Transaction) {
	t.ldg.ProcessTransaction(txn)
}

// ProcessOrder records an order event in the ledger.
func (t *Tracker) ProcessOrder(o core.Order) {
	t.ldg.ProcessOrder(o)
}

// ProcessCommission charges a commission in the ledger.
func (t *Tracker) ProcessCommission(c core.Commission) {
	t.ldg.ProcessCommission(c)
}

// ProcessSplits applies splits to the ledger's positions.
func (t *Tracker) ProcessSplits(splits []core.Split) {
	t.ldg.ProcessSplits(splits)
}

// ProcessDividends earns and pays dividends for the given session. It is a
// no-op when no asset finder or adjustment reader is configured.
func (t *Tracker) ProcessDividends(session time.Time) error {
	if t.finder == nil || t.reader == nil {
		return nil
	}
	return t.ldg.ProcessDividends(session, t.finder, t.reader)
}

// ClosePosition liquidates one position at the portal price.
func (t *Tracker) ClosePosition(asset core.Asset, dt time.Time, portal data.Portal) {
	t.ldg.ClosePosition(asset, dt, portal)
}

// SyncLastSalePrices refreshes the ledger's position marks.
func (t *Tracker) SyncLastSalePrices(dt time.Time, portal data.Portal) {
	t.ldg.SyncLastSalePrices(dt, portal)
}

// Portfolio returns the ledger's current portfolio snapshot.
func (t *Tracker) Portfolio() ledger.Portfolio {
	return t.ldg.Portfolio()
}

// Account returns the ledger's derived account view.
func (t *Tracker) Account() ledger.Account {
	return t.ldg.Account()
}

// Positions returns copies of the ledger's open positions.
func (t *Tracker) Positions() []ledger.Position {
	return t.ldg.Positions()
}

// Ledger exposes the underlying ledger for read access.
func (t *Tracker) Ledger() *ledger.Ledger {
	return t.ldg
}

// EmissionRate reports the configured emission rate.
func (t *Tracker) EmissionRate() core.EmissionRate {
	return t.emissionRate
}

// Sessions returns a copy of the run's session labels in order.
func (t *Tracker) Sessions() []time.Time {
	out := make([]time.Time, len(t.sessions))
	copy(out, t.sessions)
	return out
}

// Calendar returns the trading calendar the tracker was built with.
func (t *Tracker) Calendar() calendar.Calendar {
	return t.cal
}

// CurrentSession reports the session the tracker is positioned on.
func (t *Tracker) CurrentSession() time.Time {
	return t.currentSession
}

// Progress reports simulation progress via the accessor bound at
// construction.
func (t *Tracker) Progress() float64 {
	return t.progress()
}
