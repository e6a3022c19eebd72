package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/metrics"
	"github.com/aborodya/zipline/internal/strategy"
	"github.com/aborodya/zipline/internal/telemetry"
)

var spy = core.Asset{Sid: 1, Symbol: "SPY"}

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func newCal(t *testing.T, first, last int) *calendar.Weekday {
	t.Helper()
	cal, err := calendar.NewWeekday(day(first), day(last),
		9*time.Hour+30*time.Minute, 16*time.Hour)
	require.NoError(t, err)
	return cal
}

func flatBenchmark(sessions []time.Time, r float64) *benchmark.SeriesSource {
	points := make([]benchmark.ReturnPoint, len(sessions))
	for i, s := range sessions {
		points[i] = benchmark.ReturnPoint{DT: s, Return: r}
	}
	return benchmark.NewSeriesSource(points, nil)
}

func newDailyTracker(t *testing.T, first, last int, capital float64) *metrics.Tracker {
	t.Helper()
	cal := newCal(t, first, last)
	sessions := cal.SessionsInRange(day(first), day(last))
	tr, err := metrics.NewTracker(metrics.TrackerConfig{
		Calendar:     cal,
		FirstSession: day(first),
		LastSession:  day(last),
		CapitalBase:  capital,
		EmissionRate: core.EmissionDaily,
		Benchmark:    flatBenchmark(sessions, 0),
		Metrics:      metrics.Default(),
	})
	require.NoError(t, err)
	return tr
}

func quote(price float64) data.StaticPortal {
	portal := data.NewStaticPortal()
	portal.SetPrice(spy, price)
	return portal
}

// gatherValue sums a metric's samples across label sets.
func gatherValue(t *testing.T, reg *telemetry.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return total
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, core.ErrConfigMissing)
	assert.Contains(t, err.Error(), "metrics tracker")

	tr := newDailyTracker(t, 1, 3, 10000)
	_, err = New(Config{Tracker: tr})
	require.ErrorIs(t, err, core.ErrConfigMissing)
	assert.Contains(t, err.Error(), "data portal")

	_, err = New(Config{Tracker: tr, Portal: quote(100)})
	require.ErrorIs(t, err, core.ErrConfigMissing)
	assert.Contains(t, err.Error(), "strategy")
}

func TestRunBuyAndHoldDaily(t *testing.T) {
	tr := newDailyTracker(t, 1, 3, 10000)
	tele := telemetry.NewRegistry()

	var packets []*metrics.Packet
	r, err := New(Config{
		Tracker:   tr,
		Portal:    quote(100),
		Strategy:  strategy.NewBuyAndHold(spy, 1),
		Sink:      func(pkt *metrics.Packet) error { packets = append(packets, pkt); return nil },
		Telemetry: tele,
	})
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, packets, 3)

	first := packets[0].DailyPerf.Fields
	assert.Equal(t, 1.0, first["longs_count"])
	assert.Equal(t, 0.0, first["ending_cash"])
	assert.Equal(t, 10000.0, first["portfolio_value"])
	assert.Equal(t, 0.0, first["pnl"])
	assert.Equal(t, 10000.0, first["capital_used"])
	assert.Equal(t, 1.0, packets[2].Progress)

	assert.Equal(t, 0.0, summary["total_pnl"])
	assert.Len(t, summary["daily_pnl"], 3)

	assert.Equal(t, 1.0, gatherValue(t, tele, "zipline_runs_total"))
	assert.Equal(t, 3.0, gatherValue(t, tele, "zipline_sessions_processed_total"))
	assert.Equal(t, 0.0, gatherValue(t, tele, "zipline_bars_processed_total"))
	assert.Equal(t, 1.0, gatherValue(t, tele, "zipline_transactions_total"))
	assert.Equal(t, 1.0, gatherValue(t, tele, "zipline_run_progress"))
}

func TestRunAppliesCommission(t *testing.T) {
	tr := newDailyTracker(t, 1, 3, 10000)

	var packets []*metrics.Packet
	r, err := New(Config{
		Tracker:            tr,
		Portal:             quote(100),
		Strategy:           strategy.NewBuyAndHold(spy, 0.5),
		Sink:               func(pkt *metrics.Packet) error { packets = append(packets, pkt); return nil },
		PerShareCommission: 0.01,
	})
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	// 50 shares at 0.01 each costs half a dollar.
	first := packets[0].DailyPerf.Fields
	assert.InDelta(t, 4999.5, first["ending_cash"], 1e-9)
	assert.InDelta(t, -0.5, first["pnl"], 1e-9)
	assert.InDelta(t, -0.5, summary["total_pnl"].(float64), 1e-9)

	orders := tr.Ledger().Orders()
	require.Len(t, orders, 1)
	assert.NotEmpty(t, orders[0].ID)
	assert.Equal(t, 50.0, orders[0].Amount)
}

type fixedBars []time.Time

func (f fixedBars) Bars(open, close time.Time) []time.Time { return f }

func TestRunMinuteEmission(t *testing.T) {
	cal := newCal(t, 1, 1)
	open := day(1).Add(9*time.Hour + 30*time.Minute)
	bar1 := open.Add(time.Minute)
	bar2 := open.Add(2 * time.Minute)

	source := benchmark.NewSeriesSource(
		[]benchmark.ReturnPoint{{DT: day(1), Return: 0.002}},
		[]benchmark.ReturnPoint{{DT: bar1, Return: 0.001}, {DT: bar2, Return: 0.001}},
	)
	tr, err := metrics.NewTracker(metrics.TrackerConfig{
		Calendar:     cal,
		FirstSession: day(1),
		LastSession:  day(1),
		CapitalBase:  10000,
		EmissionRate: core.EmissionMinute,
		Benchmark:    source,
		Metrics:      metrics.Default(),
	})
	require.NoError(t, err)

	tele := telemetry.NewRegistry()
	var packets []*metrics.Packet
	r, err := New(Config{
		Tracker:   tr,
		Portal:    quote(100),
		Strategy:  strategy.NewBuyAndHold(spy, 1),
		Bars:      fixedBars{bar1, bar2},
		Sink:      func(pkt *metrics.Packet) error { packets = append(packets, pkt); return nil },
		Telemetry: tele,
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)

	// Two bar packets then the session packet.
	require.Len(t, packets, 3)
	require.NotNil(t, packets[0].MinutePerf)
	assert.Nil(t, packets[0].DailyPerf)
	assert.InDelta(t, 0.001, packets[0].MinutePerf.Fields["benchmark_returns"], 1e-12)
	assert.InDelta(t, 1.001*1.001-1, packets[1].CumulativePerf["benchmark_returns"], 1e-12)
	require.NotNil(t, packets[2].DailyPerf)

	assert.Equal(t, 2.0, gatherValue(t, tele, "zipline_bars_processed_total"))
	assert.Equal(t, 1.0, gatherValue(t, tele, "zipline_sessions_processed_total"))
}

func TestRunCanceledBeforeStart(t *testing.T) {
	tr := newDailyTracker(t, 1, 3, 10000)
	tele := telemetry.NewRegistry()
	r, err := New(Config{
		Tracker:   tr,
		Portal:    quote(100),
		Strategy:  strategy.NewBuyAndHold(spy, 1),
		Telemetry: tele,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, gatherValue(t, tele, "zipline_runs_total"))
	assert.Equal(t, 0.0, gatherValue(t, tele, "zipline_sessions_processed_total"))
}

func TestRunSinkErrorAborts(t *testing.T) {
	tr := newDailyTracker(t, 1, 3, 10000)
	r, err := New(Config{
		Tracker:  tr,
		Portal:   quote(100),
		Strategy: strategy.NewBuyAndHold(spy, 1),
		Sink:     func(*metrics.Packet) error { return errors.New("sink full") },
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "packet sink")
	assert.Contains(t, err.Error(), "sink full")
}

type errStrategy struct{}

func (errStrategy) Name() string { return "bang" }

func (errStrategy) Rebalance(strategy.Context) ([]core.Transaction, error) {
	return nil, errors.New("boom")
}

func TestRunStrategyErrorNamed(t *testing.T) {
	tr := newDailyTracker(t, 1, 3, 10000)
	r, err := New(Config{Tracker: tr, Portal: quote(100), Strategy: errStrategy{}})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy bang: rebalance")
	assert.Contains(t, err.Error(), "boom")
}

func TestIntervalBars(t *testing.T) {
	open := day(1).Add(9*time.Hour + 30*time.Minute)
	close := open.Add(3 * time.Minute)

	bars := IntervalBars(time.Minute).Bars(open, close)
	require.Len(t, bars, 3)
	assert.Equal(t, open.Add(time.Minute), bars[0])
	assert.Equal(t, close, bars[2])

	assert.Nil(t, IntervalBars(0).Bars(open, close))
}
