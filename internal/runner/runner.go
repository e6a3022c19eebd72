// Package runner drives one simulation end to end. It walks the tracker's
// session range, lets the strategy trade at each market open, feeds bar and
// session closes through the tracker, and hands every emitted packet to the
// configured sink.
package runner

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/metrics"
	"github.com/aborodya/zipline/internal/strategy"
	"github.com/aborodya/zipline/internal/telemetry"
)

// Sink receives every packet the tracker emits, in emission order.
// A sink error aborts the run.
type Sink func(*metrics.Packet) error

// BarSource yields the intraday bar close times for one session window.
// Only minute-emission runs consult it.
type BarSource interface {
	Bars(open, close time.Time) []time.Time
}

// IntervalBars is a BarSource that closes a bar every fixed interval from
// the session open through the session close.
type IntervalBars time.Duration

func (iv IntervalBars) Bars(open, close time.Time) []time.Time {
	step := time.Duration(iv)
	if step <= 0 {
		return nil
	}
	var bars []time.Time
	for dt := open.Add(step); !dt.After(close); dt = dt.Add(step) {
		bars = append(bars, dt)
	}
	return bars
}

// Config wires a runner. Tracker, Portal, and Strategy are required; the
// rest defaults sensibly.
type Config struct {
	Tracker  *metrics.Tracker
	Portal   data.Portal
	Strategy strategy.Strategy

	// Bars supplies intraday bar closes for minute-emission runs. Defaults
	// to one-minute intervals when the tracker emits minutely.
	Bars BarSource

	// Sink receives emitted packets. Nil drops them.
	Sink Sink

	// PerShareCommission, when positive, charges a flat per-share cost
	// against every fill.
	PerShareCommission float64

	Telemetry *telemetry.Registry
	Logger    *zap.Logger
}

// Runner executes one simulation. It is single-use: build a fresh tracker
// and runner per run.
type Runner struct {
	tracker    *metrics.Tracker
	portal     data.Portal
	strategy   strategy.Strategy
	bars       BarSource
	sink       Sink
	commission float64
	tele       *telemetry.Registry
	log        *zap.Logger
}

// New validates the config and builds a runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Tracker == nil {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("runner requires a metrics tracker"))
	}
	if cfg.Portal == nil {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("runner requires a data portal"))
	}
	if cfg.Strategy == nil {
		return nil, core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("runner requires a strategy"))
	}

	bars := cfg.Bars
	if bars == nil && cfg.Tracker.EmissionRate() == core.EmissionMinute {
		bars = IntervalBars(time.Minute)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Runner{
		tracker:    cfg.Tracker,
		portal:     cfg.Portal,
		strategy:   cfg.Strategy,
		bars:       bars,
		sink:       cfg.Sink,
		commission: cfg.PerShareCommission,
		tele:       cfg.Telemetry,
		log:        log,
	}, nil
}

// Run executes the simulation and returns its summary. Cancellation is
// checked between sessions and between bars.
func (r *Runner) Run(ctx context.Context) (metrics.SummaryPacket, error) {
	runID := uuid.NewString()
	log := r.log.With(
		zap.String("run_id", runID),
		zap.String("strategy", r.strategy.Name()))

	start := time.Now()
	status := "failed"
	defer func() {
		if r.tele != nil {
			r.tele.RecordRun(status, time.Since(start).Seconds())
		}
	}()

	sessions := r.tracker.Sessions()
	cal := r.tracker.Calendar()
	minutely := r.tracker.EmissionRate() == core.EmissionMinute

	log.Info("run starting",
		zap.Int("sessions", len(sessions)),
		zap.String("emission_rate", string(r.tracker.EmissionRate())),
		zap.Float64("capital_base", r.tracker.Portfolio().StartingCash))

	for _, session := range sessions {
		select {
		case <-ctx.Done():
			status = "canceled"
			log.Warn("run canceled", zap.Time("session", session))
			return nil, ctx.Err()
		default:
		}

		open, close, err := cal.OpenAndCloseForSession(session)
		if err != nil {
			return nil, err
		}

		if err := r.rebalance(session, open); err != nil {
			return nil, err
		}

		if minutely {
			if err := r.runBars(ctx, open, close); err != nil {
				if ctx.Err() != nil {
					status = "canceled"
				}
				return nil, err
			}
		}

		pkt, err := r.tracker.HandleMarketClose(close, r.portal)
		if err != nil {
			return nil, err
		}
		if err := r.emit(pkt); err != nil {
			return nil, err
		}
		if r.tele != nil {
			r.tele.RecordSession()
			r.tele.SetProgress(r.tracker.Progress())
		}
		log.Debug("session closed",
			zap.Time("session", session),
			zap.Float64("portfolio_value", r.tracker.Portfolio().PortfolioValue))
	}

	summary, err := r.tracker.HandleSimulationEnd()
	if err != nil {
		return nil, err
	}

	status = "completed"
	log.Info("run complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("portfolio_value", r.tracker.Portfolio().PortfolioValue))
	return summary, nil
}

// rebalance asks the strategy for trades at the session open and applies
// them to the tracker.
func (r *Runner) rebalance(session, open time.Time) error {
	sctx := strategy.Context{
		Session:   session,
		Open:      open,
		Portal:    r.portal,
		Portfolio: r.tracker.Portfolio(),
		Positions: r.tracker.Positions(),
	}
	txns, err := r.strategy.Rebalance(sctx)
	if err != nil {
		return fmt.Errorf("strategy %s: rebalance: %w", r.strategy.Name(), err)
	}
	for _, txn := range txns {
		r.fill(txn, open)
	}
	if r.tele != nil && len(txns) > 0 {
		r.tele.RecordTransactions(r.strategy.Name(), len(txns))
	}
	return nil
}

// fill books an order for the requested trade and applies it as an
// immediate full fill.
func (r *Runner) fill(txn core.Transaction, open time.Time) {
	order := core.Order{
		ID:     uuid.NewString(),
		Asset:  txn.Asset,
		Amount: txn.Amount,
		Filled: txn.Amount,
		DT:     open,
	}
	txn.OrderID = order.ID
	if txn.DT.IsZero() {
		txn.DT = open
	}
	r.tracker.ProcessOrder(order)
	r.tracker.ProcessTransaction(txn)
	if r.commission > 0 {
		r.tracker.ProcessCommission(core.Commission{
			Asset:   txn.Asset,
			OrderID: order.ID,
			Cost:    math.Abs(txn.Amount) * r.commission,
		})
	}
}

func (r *Runner) runBars(ctx context.Context, open, close time.Time) error {
	for _, bar := range r.bars.Bars(open, close) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := r.tracker.HandleMinuteClose(bar, r.portal)
		if err != nil {
			return err
		}
		if err := r.emit(pkt); err != nil {
			return err
		}
		if r.tele != nil {
			r.tele.RecordBar()
		}
	}
	return nil
}

func (r *Runner) emit(pkt *metrics.Packet) error {
	if r.sink == nil {
		return nil
	}
	if err := r.sink(pkt); err != nil {
		return fmt.Errorf("packet sink: %w", err)
	}
	return nil
}
