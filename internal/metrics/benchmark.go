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

// BenchmarkReturns tracks daily and cumulative returns for the benchmark.
type BenchmarkReturns struct {
	daily           []float64
	dailyCumulative []float64
	sessionIx       int

	// minuteByDay holds per-bar returns compounded within each session day;
	// minuteCumulative compounds over the whole simulation. In daily
	// emission both are unavailable placeholders.
	minuteByDay      *minuteSeries
	minuteCumulative *minuteSeries
}

// NewBenchmarkReturns creates the benchmark returns unit.
func NewBenchmarkReturns() *BenchmarkReturns {
	return &BenchmarkReturns{}
}

func (b *BenchmarkReturns) Name() string { return "benchmark_returns" }

func (b *BenchmarkReturns) StartOfSimulation(_ *ledger.Ledger, rate core.EmissionRate, cal calendar.Calendar, sessions []time.Time, source benchmark.Source) error {
	if source == nil {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("benchmark_returns requires a benchmark source"))
	}
	if len(sessions) == 0 {
		return fmt.Errorf("benchmark_returns: simulation has no sessions")
	}
	first := sessions[0]
	last := sessions[len(sessions)-1]

	daily, err := source.DailyReturns(first, last)
	if err != nil {
		return core.WrapError(core.ErrBenchmarkFetch,
			fmt.Errorf("loading daily benchmark returns for %s to %s: %w",
				first.Format("2006-01-02"), last.Format("2006-01-02"), err))
	}
	if len(daily) != len(sessions) {
		return core.WrapError(core.ErrBenchmarkMismatch,
			fmt.Errorf("benchmark series has %d returns for %d sessions", len(daily), len(sessions)))
	}
	b.daily = daily
	b.dailyCumulative = cumulativeReturns(daily)
	b.sessionIx = 0

	if rate == core.EmissionDaily {
		// Daily emission never produces bars, so the minute series stay
		// unavailable; building them must not fail, only touching them.
		const reason = "bar-level benchmark returns are not loaded in daily emission"
		b.minuteByDay = unavailableSeries("minute_returns", reason)
		b.minuteCumulative = unavailableSeries("minute_cumulative_returns", reason)
		return nil
	}

	open, _, err := cal.OpenAndCloseForSession(first)
	if err != nil {
		return err
	}
	_, close, err := cal.OpenAndCloseForSession(last)
	if err != nil {
		return err
	}
	points, err := source.RangeReturns(open, close)
	if err != nil {
		return core.WrapError(core.ErrBenchmarkFetch,
			fmt.Errorf("loading bar-level benchmark returns: %w", err))
	}

	byDay := make(map[int64]float64, len(points))
	cumulative := make(map[int64]float64, len(points))
	var (
		currentDay time.Time
		dayProduct = 1.0
		product    = 1.0
	)
	for _, pt := range points {
		d := calendar.Normalize(pt.DT)
		if !d.Equal(currentDay) {
			currentDay = d
			dayProduct = 1
		}
		dayProduct *= 1 + pt.Return
		product *= 1 + pt.Return
		key := pt.DT.UnixNano()
		byDay[key] = dayProduct - 1
		cumulative[key] = product - 1
	}
	b.minuteByDay = availableSeries("minute_returns", byDay)
	b.minuteCumulative = availableSeries("minute_cumulative_returns", cumulative)
	return nil
}

func (b *BenchmarkReturns) EndOfBar(pkt *Packet, _ *ledger.Ledger, dt time.Time, _ data.Portal) error {
	r, err := b.minuteByDay.at(dt)
	if err != nil {
		return err
	}
	cum, err := b.minuteCumulative.at(dt)
	if err != nil {
		return err
	}
	pkt.MinutePerf.Fields["benchmark_returns"] = r
	pkt.CumulativePerf["benchmark_returns"] = cum
	return nil
}

func (b *BenchmarkReturns) EndOfSession(pkt *Packet, _ *ledger.Ledger, _ time.Time, _ data.Portal) error {
	if b.sessionIx >= len(b.daily) {
		return fmt.Errorf("benchmark_returns: session close %d exceeds the %d configured sessions",
			b.sessionIx+1, len(b.daily))
	}
	pkt.DailyPerf.Fields["benchmark_returns"] = b.daily[b.sessionIx]
	pkt.CumulativePerf["benchmark_returns"] = b.dailyCumulative[b.sessionIx]
	b.sessionIx++
	return nil
}

func (b *BenchmarkReturns) EndOfSimulation(pkt SummaryPacket, _ *ledger.Ledger) error {
	pkt["cumulative_benchmark_returns"] = b.dailyCumulative[len(b.dailyCumulative)-1]
	pkt["daily_benchmark_returns"] = append([]float64(nil), b.daily...)
	return nil
}

// cumulativeReturns turns a return series into its running compounded form:
// out[i] = prod(1+r[0..i]) - 1.
func cumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	product := 1.0
	for i, r := range returns {
		product *= 1 + r
		out[i] = product - 1
	}
	return out
}

// minuteSeries resolves bar-level benchmark values by bar timestamp. A
// series can be constructed in an unavailable state: building it always
// succeeds, and every lookup fails with the recorded reason, so a
// configuration that never touches bar data stays valid while misuse
// surfaces at the exact call site.
type minuteSeries struct {
	name   string
	reason string
	values map[int64]float64
}

func availableSeries(name string, values map[int64]float64) *minuteSeries {
	return &minuteSeries{name: name, values: values}
}

func unavailableSeries(name, reason string) *minuteSeries {
	return &minuteSeries{name: name, reason: reason}
}

func (s *minuteSeries) at(dt time.Time) (float64, error) {
	if s.reason != "" {
		return 0, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("%s: %s", s.name, s.reason))
	}
	v, ok := s.values[dt.UnixNano()]
	if !ok {
		return 0, core.WrapError(core.ErrNoData,
			fmt.Errorf("%s: no benchmark return recorded at %s", s.name, dt.Format(time.RFC3339)))
	}
	return v, nil
}
