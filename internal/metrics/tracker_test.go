package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/ledger"
)

var testAsset = core.Asset{Sid: 1, Symbol: "AAPL"}

func testDay(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

// testWeekdayCal covers January 2024; the 1st is a Monday.
func testWeekdayCal(t *testing.T, first, last int) *calendar.Weekday {
	t.Helper()
	cal, err := calendar.NewWeekday(
		testDay(first), testDay(last),
		9*time.Hour+30*time.Minute, 16*time.Hour,
	)
	require.NoError(t, err)
	return cal
}

// flatBenchmark returns a source with one constant daily return per session.
func flatBenchmark(sessions []time.Time, r float64) *benchmark.SeriesSource {
	points := make([]benchmark.ReturnPoint, len(sessions))
	for i, s := range sessions {
		points[i] = benchmark.ReturnPoint{DT: s, Return: r}
	}
	return benchmark.NewSeriesSource(points, nil)
}

func sessionClose(d int) time.Time {
	return testDay(d).Add(16 * time.Hour)
}

func TestNewTrackerValidation(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)

	_, err := NewTracker(TrackerConfig{
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		EmissionRate: core.EmissionDaily,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfigMissing))

	_, err = NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		EmissionRate: core.EmissionRate("hourly"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	// Saturday and Sunday only: no sessions in range.
	_, err = NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(6),
		LastSession:  testDay(7),
		EmissionRate: core.EmissionDaily,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trading sessions")
}

func TestThreeSessionZeroActivity(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)
	sessions := cal.SessionsInRange(testDay(1), testDay(3))
	require.Len(t, sessions, 3)

	tr, err := NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		CapitalBase:  100000,
		EmissionRate: core.EmissionDaily,
		Benchmark:    flatBenchmark(sessions, 0),
		Metrics:      Default(),
	})
	require.NoError(t, err)

	portal := data.StaticPortal{}
	wantProgress := []float64{1.0 / 3.0, 2.0 / 3.0, 1.0}

	for i := 0; i < 3; i++ {
		pkt, err := tr.HandleMarketClose(sessionClose(1+i), portal)
		require.NoError(t, err)
		require.NotNil(t, pkt.DailyPerf)
		assert.Nil(t, pkt.MinutePerf)

		assert.Equal(t, 0.0, pkt.DailyPerf.Fields["pnl"])
		assert.Equal(t, 0.0, pkt.DailyPerf.Fields["returns"])
		assert.Equal(t, 100000.0, pkt.DailyPerf.Fields["ending_cash"])
		assert.Equal(t, 100000.0, pkt.DailyPerf.Fields["starting_cash"])
		assert.Equal(t, 100000.0, pkt.DailyPerf.Fields["portfolio_value"])
		assert.Equal(t, 0.0, pkt.DailyPerf.Fields["longs_count"])
		assert.InDelta(t, wantProgress[i], pkt.Progress, 1e-12)

		assert.True(t, pkt.PeriodStart.Equal(testDay(1)))
		assert.True(t, pkt.PeriodEnd.Equal(testDay(3)))
		assert.Equal(t, 100000.0, pkt.CapitalBase)
		assert.Empty(t, pkt.CumulativeRiskMetrics)
	}

	summary, err := tr.HandleSimulationEnd()
	require.NoError(t, err)

	assert.Equal(t, 0.0, summary["total_pnl"])
	assert.Equal(t, []float64{0, 0, 0}, summary["daily_pnl"])
	assert.Equal(t, 0.0, summary["cumulative_algorithm_returns"])
	assert.Equal(t, []float64{0, 0, 0}, summary["daily_algorithm_returns"])
	assert.Equal(t, 0.0, summary["cumulative_benchmark_returns"])
	assert.Equal(t, []float64{0, 0, 0}, summary["daily_benchmark_returns"])
	assert.Equal(t, []float64{0, 0, 0}, summary["capital_used"])
	assert.Equal(t, []float64{100000, 100000, 100000}, summary["ending_cash"])
}

func TestTradingFlowAcrossSessions(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)
	sessions := cal.SessionsInRange(testDay(1), testDay(3))

	tr, err := NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		CapitalBase:  10000,
		EmissionRate: core.EmissionDaily,
		Benchmark:    flatBenchmark(sessions, 0.001),
		Metrics:      Default(),
	})
	require.NoError(t, err)

	tr.ProcessTransaction(core.Transaction{Asset: testAsset, Amount: 10, Price: 100, DT: testDay(1)})

	closes := []float64{110, 121, 133.1}
	packets := make([]*Packet, 0, 3)
	for i, price := range closes {
		pkt, err := tr.HandleMarketClose(sessionClose(1+i), data.StaticPortal{testAsset.Sid: price})
		require.NoError(t, err)
		packets = append(packets, pkt)
	}

	// First session: the in-period PnL delta equals raw cumulative PnL.
	assert.InDelta(t, 100.0, packets[0].DailyPerf.Fields["pnl"], 1e-9)
	assert.InDelta(t, 100.0, packets[0].CumulativePerf["pnl"], 1e-9)
	assert.InDelta(t, 0.01, packets[0].DailyPerf.Fields["returns"], 1e-12)

	// Later sessions: deltas against the prior session's cumulative value.
	assert.InDelta(t, 110.0, packets[1].DailyPerf.Fields["pnl"], 1e-9)
	assert.InDelta(t, 121.0, packets[2].DailyPerf.Fields["pnl"], 1e-9)
	assert.InDelta(t, 1.021/1.01-1, packets[1].DailyPerf.Fields["returns"], 1e-12)
	assert.InDelta(t, 1.0331/1.021-1, packets[2].DailyPerf.Fields["returns"], 1e-12)

	// Capital was consumed only on the first session.
	assert.InDelta(t, 1000.0, packets[0].DailyPerf.Fields["capital_used"], 1e-9)
	assert.InDelta(t, 0.0, packets[1].DailyPerf.Fields["capital_used"], 1e-9)

	// starting_cash lags ending_cash by one session.
	assert.Equal(t, 10000.0, packets[0].DailyPerf.Fields["starting_cash"])
	assert.Equal(t, 9000.0, packets[0].DailyPerf.Fields["ending_cash"])
	assert.Equal(t, 9000.0, packets[1].DailyPerf.Fields["starting_cash"])

	summary, err := tr.HandleSimulationEnd()
	require.NoError(t, err)

	assert.InDelta(t, 331.0, summary["total_pnl"].(float64), 1e-9)

	dailyPNL := summary["daily_pnl"].([]float64)
	require.Len(t, dailyPNL, 3)
	assert.InDelta(t, 100.0, dailyPNL[0], 1e-9)
	assert.InDelta(t, 210.0, dailyPNL[1], 1e-9)
	assert.InDelta(t, 331.0, dailyPNL[2], 1e-9)

	// Compounding identity between the daily series and the total.
	dailyReturns := summary["daily_algorithm_returns"].([]float64)
	product := 1.0
	for _, r := range dailyReturns {
		product *= 1 + r
	}
	assert.InDelta(t, summary["cumulative_algorithm_returns"].(float64), product-1, 1e-12)
	assert.InDelta(t, 0.0331, summary["cumulative_algorithm_returns"].(float64), 1e-12)

	// Benchmark compounds its flat 0.1% daily return.
	assert.InDelta(t, 1.001*1.001*1.001-1, summary["cumulative_benchmark_returns"].(float64), 1e-12)
}

func TestFinalSessionKeepsPriorWindow(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)
	sessions := cal.SessionsInRange(testDay(1), testDay(3))

	tr, err := NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		CapitalBase:  1000,
		EmissionRate: core.EmissionDaily,
		Benchmark:    flatBenchmark(sessions, 0),
		Metrics:      Default(),
	})
	require.NoError(t, err)

	portal := data.StaticPortal{}

	pkt1, err := tr.HandleMarketClose(sessionClose(1), portal)
	require.NoError(t, err)
	assert.True(t, pkt1.DailyPerf.PeriodOpen.Equal(testDay(1).Add(9*time.Hour+30*time.Minute)))

	pkt2, err := tr.HandleMarketClose(sessionClose(2), portal)
	require.NoError(t, err)
	assert.True(t, pkt2.DailyPerf.PeriodOpen.Equal(testDay(2).Add(9*time.Hour+30*time.Minute)))

	// Once the next session would reach the end of the run the tracker stops
	// advancing, so the final packet reuses the prior session's window.
	pkt3, err := tr.HandleMarketClose(sessionClose(3), portal)
	require.NoError(t, err)
	assert.True(t, pkt3.DailyPerf.PeriodOpen.Equal(testDay(2).Add(9*time.Hour+30*time.Minute)))
	assert.True(t, tr.CurrentSession().Equal(testDay(2)))

	// A fourth close has no session slot left.
	_, err = tr.HandleMarketClose(sessionClose(4), portal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the 3 configured sessions")
}

func TestMinuteCloseRejectedInDailyEmission(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)
	sessions := cal.SessionsInRange(testDay(1), testDay(3))

	tr, err := NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		CapitalBase:  1000,
		EmissionRate: core.EmissionDaily,
		Benchmark:    flatBenchmark(sessions, 0),
		Metrics:      Default(),
	})
	require.NoError(t, err)

	_, err = tr.HandleMinuteClose(testDay(1).Add(10*time.Hour), data.StaticPortal{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
	assert.Contains(t, err.Error(), "minute close is only valid in minute emission")
}

func TestMinuteEmissionFlow(t *testing.T) {
	cal := testWeekdayCal(t, 1, 1)
	open := testDay(1).Add(9*time.Hour + 30*time.Minute)
	bar1 := open.Add(time.Minute)
	bar2 := open.Add(2 * time.Minute)

	source := benchmark.NewSeriesSource(
		[]benchmark.ReturnPoint{{DT: testDay(1), Return: 0.002}},
		[]benchmark.ReturnPoint{
			{DT: bar1, Return: 0.001},
			{DT: bar2, Return: 0.001},
		},
	)

	tr, err := NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(1),
		CapitalBase:  50000,
		EmissionRate: core.EmissionMinute,
		Benchmark:    source,
		Metrics:      Default(),
	})
	require.NoError(t, err)

	portal := data.StaticPortal{}

	pkt, err := tr.HandleMinuteClose(bar1, portal)
	require.NoError(t, err)
	require.NotNil(t, pkt.MinutePerf)
	assert.Nil(t, pkt.DailyPerf)
	assert.True(t, pkt.MinutePerf.PeriodOpen.Equal(open))
	assert.True(t, pkt.MinutePerf.PeriodClose.Equal(bar1))
	assert.Equal(t, 1.0, pkt.Progress)
	assert.Equal(t, 0.0, pkt.MinutePerf.Fields["returns"])
	assert.InDelta(t, 0.001, pkt.MinutePerf.Fields["benchmark_returns"], 1e-12)
	assert.InDelta(t, 0.001, pkt.CumulativePerf["benchmark_returns"], 1e-12)
	assert.Equal(t, 50000.0, pkt.MinutePerf.Fields["ending_cash"])

	pkt, err = tr.HandleMinuteClose(bar2, portal)
	require.NoError(t, err)
	assert.InDelta(t, 1.001*1.001-1, pkt.MinutePerf.Fields["benchmark_returns"], 1e-12)
	assert.InDelta(t, 1.001*1.001-1, pkt.CumulativePerf["benchmark_returns"], 1e-12)

	closePkt, err := tr.HandleMarketClose(sessionClose(1), portal)
	require.NoError(t, err)
	require.NotNil(t, closePkt.DailyPerf)
	assert.Equal(t, 1.0, closePkt.Progress)
	assert.InDelta(t, 0.002, closePkt.DailyPerf.Fields["benchmark_returns"], 1e-12)

	summary, err := tr.HandleSimulationEnd()
	require.NoError(t, err)
	assert.InDelta(t, 0.002, summary["cumulative_benchmark_returns"].(float64), 1e-12)
}

func TestDividendsAppliedOnAdvance(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)
	sessions := cal.SessionsInRange(testDay(1), testDay(3))

	finder := data.NewStaticAssets(testAsset)
	reader := data.NewStaticAdjustments(
		core.Dividend{Asset: testAsset, Amount: 0.5, ExDate: testDay(2), PayDate: testDay(3)},
	)

	tr, err := NewTracker(TrackerConfig{
		Calendar:         cal,
		FirstSession:     testDay(1),
		LastSession:      testDay(3),
		CapitalBase:      10000,
		EmissionRate:     core.EmissionDaily,
		AssetFinder:      finder,
		AdjustmentReader: reader,
		Benchmark:        flatBenchmark(sessions, 0),
		Metrics:          Default(),
	})
	require.NoError(t, err)

	tr.ProcessTransaction(core.Transaction{Asset: testAsset, Amount: 100, Price: 50, DT: testDay(1)})

	portal := data.StaticPortal{testAsset.Sid: 50}

	// Closing session 1 advances to session 2, earning the dividend that
	// goes ex on it.
	_, err = tr.HandleMarketClose(sessionClose(1), portal)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, tr.Portfolio().Cash)

	// Closing session 2 stops the advance at the end of the run, so the
	// pay date is never processed automatically.
	_, err = tr.HandleMarketClose(sessionClose(2), portal)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, tr.Portfolio().Cash)

	// Paying out for session 3 explicitly credits 100 shares at 0.50.
	require.NoError(t, tr.ProcessDividends(testDay(3)))
	assert.Equal(t, 5050.0, tr.Portfolio().Cash)
}

type recorderMetric struct {
	name string
	log  *[]string
}

func (r *recorderMetric) Name() string { return r.name }

func (r *recorderMetric) EndOfSession(*Packet, *ledger.Ledger, time.Time, data.Portal) error {
	*r.log = append(*r.log, r.name)
	return nil
}

func TestDispatchPreservesRegistrationOrder(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)

	var calls []string
	tr, err := NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		CapitalBase:  1000,
		EmissionRate: core.EmissionDaily,
		Metrics: []Metric{
			&recorderMetric{name: "alpha", log: &calls},
			&recorderMetric{name: "beta", log: &calls},
			&recorderMetric{name: "gamma", log: &calls},
		},
	})
	require.NoError(t, err)

	_, err = tr.HandleMarketClose(sessionClose(1), data.StaticPortal{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, calls)
}

type failingMetric struct {
	err error
}

func (f *failingMetric) Name() string { return "failing" }

func (f *failingMetric) EndOfSession(*Packet, *ledger.Ledger, time.Time, data.Portal) error {
	return f.err
}

func TestHookErrorNamesMetric(t *testing.T) {
	cal := testWeekdayCal(t, 1, 3)

	tr, err := NewTracker(TrackerConfig{
		Calendar:     cal,
		FirstSession: testDay(1),
		LastSession:  testDay(3),
		CapitalBase:  1000,
		EmissionRate: core.EmissionDaily,
		Metrics:      []Metric{&failingMetric{err: errors.New("boom")}},
	})
	require.NoError(t, err)

	_, err = tr.HandleMarketClose(sessionClose(1), data.StaticPortal{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metric failing: end of session")
	assert.Contains(t, err.Error(), "boom")
}
