package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aborodya/zipline/internal/benchmark"
	"github.com/aborodya/zipline/internal/bundle"
)

var (
	ingestSymbol string
	ingestFrom   string
	ingestTo     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest benchmark data into the bundle",
	Long: `Fetch daily return history for a symbol and store it in the configured
bundle for simulations to read.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSymbol, "symbol", "", "symbol to ingest (defaults to the configured benchmark)")
	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "start date YYYY-MM-DD (defaults to the simulation window)")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "end date YYYY-MM-DD (defaults to the simulation window)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	symbol := ingestSymbol
	if symbol == "" {
		symbol = cfg.Benchmark.Symbol
	}
	if symbol == "" {
		return fmt.Errorf("no symbol given and no benchmark configured")
	}

	sim := cfg.Simulation
	if ingestFrom != "" {
		sim.Start = ingestFrom
	}
	if ingestTo != "" {
		sim.End = ingestTo
	}
	start, end, err := sim.Window()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := benchmark.NewYahoo(symbol)
	if err != nil {
		return err
	}

	log.Info("fetching daily history",
		zap.String("symbol", symbol),
		zap.Time("from", start),
		zap.Time("to", end),
	)
	points, err := fetcher.FetchDailyReturns(ctx, start, end)
	if err != nil {
		return err
	}

	store, err := openBundle(cfg.Bundle)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}

	key := bundle.BenchmarkKey(symbol)
	if err := store.Write(ctx, key, benchmark.EncodeCSV(points)); err != nil {
		return fmt.Errorf("writing bundle %s: %w", key, err)
	}

	log.Info("ingested benchmark returns",
		zap.String("key", key),
		zap.Int("sessions", len(points)),
	)
	return nil
}
