package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/bundle"
	"github.com/aborodya/zipline/internal/calendar"
	"github.com/aborodya/zipline/internal/config"
	"github.com/aborodya/zipline/internal/core"
	"github.com/aborodya/zipline/internal/data"
	"github.com/aborodya/zipline/internal/metrics"
	"github.com/aborodya/zipline/internal/runner"
	"github.com/aborodya/zipline/internal/strategy"
	"github.com/aborodya/zipline/internal/telemetry"
)

// Synthetic price paths start from an arbitrary round base; only the
// returns along the path matter to the metrics.
const basePrice = 100.0

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Replay the configured strategy over the simulation window and emit one
metrics packet per period, then print the whole-run summary.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "-", "packet destination, '-' for stdout")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start, end, err := cfg.Simulation.Window()
	if err != nil {
		return err
	}
	cal, err := buildCalendar(cfg.Calendar, start, end)
	if err != nil {
		return err
	}

	store, err := openBundle(cfg.Bundle)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}

	bench, err := buildBenchmark(ctx, cfg, store, cal, start, end)
	if err != nil {
		return err
	}

	asset := core.Asset{Sid: 1, Symbol: strings.ToUpper(cfg.Simulation.Strategy.Symbol)}
	strat, err := buildStrategy(cfg.Simulation.Strategy, asset)
	if err != nil {
		return err
	}

	portal, err := buildPortal(ctx, cfg, store, asset, bench)
	if err != nil {
		return err
	}

	set, err := metrics.LoadSet(cfg.Simulation.MetricsSet)
	if err != nil {
		return err
	}

	tracker, err := metrics.NewTracker(metrics.TrackerConfig{
		Calendar:     cal,
		FirstSession: start,
		LastSession:  end,
		CapitalBase:  cfg.Simulation.CapitalBase,
		EmissionRate: cfg.Simulation.Rate(),
		Benchmark:    bench,
		Metrics:      set,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(runOutput)
	if err != nil {
		return err
	}
	defer closeSink()

	rcfg := runner.Config{
		Tracker:            tracker,
		Portal:             portal,
		Strategy:           strat,
		Sink:               sink,
		PerShareCommission: cfg.Simulation.PerShareCommission,
		Logger:             log,
	}
	if cfg.Simulation.Rate() == core.EmissionMinute {
		rcfg.Bars = runner.IntervalBars(cfg.Simulation.BarInterval)
	}
	if cfg.Telemetry.Enabled {
		reg := telemetry.NewRegistry()
		rcfg.Telemetry = reg
		shutdown := serveTelemetry(reg, cfg.Telemetry.Addr, log)
		defer shutdown()
	}

	run, err := runner.New(rcfg)
	if err != nil {
		return err
	}

	summary, err := run.Run(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func buildCalendar(cfg config.CalendarConfig, start, end time.Time) (calendar.Calendar, error) {
	if cfg.Name == "allday" {
		return calendar.NewAllDay(start, end)
	}
	open, err := calendar.ParseClock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("calendar open: %w", err)
	}
	close, err := calendar.ParseClock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("calendar close: %w", err)
	}
	return calendar.NewWeekday(start, end, open, close)
}

func buildBenchmark(ctx context.Context, cfg *config.Config, store bundle.Storage, cal calendar.Calendar, start, end time.Time) (*benchmark.SeriesSource, error) {
	if cfg.Benchmark.Source == "flat" {
		return benchmark.NewSeriesSource(flatReturns(cal, start, end, cfg.Benchmark.Flat), nil), nil
	}
	src, err := benchmark.Load(ctx, store, bundle.BenchmarkKey(cfg.Benchmark.Symbol))
	if err != nil {
		return nil, fmt.Errorf("loading benchmark %s (run `zipline ingest` first): %w",
			cfg.Benchmark.Symbol, err)
	}
	return src, nil
}

// flatReturns serves the same return for every session in the window.
func flatReturns(cal calendar.Calendar, start, end time.Time, r float64) []benchmark.ReturnPoint {
	sessions := cal.SessionsInRange(start, end)
	points := make([]benchmark.ReturnPoint, len(sessions))
	for i, s := range sessions {
		points[i] = benchmark.ReturnPoint{DT: s, Return: r}
	}
	return points
}

func buildStrategy(cfg config.StrategyConfig, asset core.Asset) (strategy.Strategy, error) {
	if cfg.Name == "sma_crossover" {
		return strategy.NewSMACross(asset, cfg.Fast, cfg.Slow)
	}
	return strategy.NewBuyAndHold(asset, cfg.Weight), nil
}

// buildPortal prices the traded asset by compounding a daily return series
// into a synthetic close path. The benchmark series doubles as the price
// series when the symbols match; otherwise the asset needs its own
// ingested series.
func buildPortal(ctx context.Context, cfg *config.Config, store bundle.Storage, asset core.Asset, bench *benchmark.SeriesSource) (data.Portal, error) {
	points := bench.DailyPoints()
	if cfg.Benchmark.Source != "flat" && !strings.EqualFold(cfg.Simulation.Strategy.Symbol, cfg.Benchmark.Symbol) {
		src, err := benchmark.Load(ctx, store, bundle.BenchmarkKey(asset.Symbol))
		if err != nil {
			return nil, fmt.Errorf("loading price series for %s (run `zipline ingest --symbol %s` first): %w",
				asset.Symbol, asset.Symbol, err)
		}
		points = src.DailyPoints()
	}

	portal := data.NewSeriesPortal()
	portal.SetHistory(asset, benchmark.PricePath(points, basePrice))
	return portal, nil
}

func openSink(dest string) (runner.Sink, func(), error) {
	if dest == "-" {
		enc := json.NewEncoder(os.Stdout)
		return func(p *metrics.Packet) error { return enc.Encode(p) }, func() {}, nil
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, nil, fmt.Errorf("opening packet output: %w", err)
	}
	enc := json.NewEncoder(f)
	return func(p *metrics.Packet) error { return enc.Encode(p) }, func() { f.Close() }, nil
}

// serveTelemetry exposes the run's Prometheus registry over HTTP and
// returns a shutdown func.
func serveTelemetry(reg *telemetry.Registry, addr string, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info("serving telemetry", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("telemetry server error", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
