package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aborodya/zipline/internal/benchmark"
)

var bundlesCmd = &cobra.Command{
	Use:   "bundles",
	Short: "List ingested bundle data",
	RunE:  runBundles,
}

func init() {
	rootCmd.AddCommand(bundlesCmd)
}

func runBundles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openBundle(cfg.Bundle)
	if err != nil {
		return fmt.Errorf("opening bundle: %w", err)
	}

	ctx := context.Background()
	keys, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("listing bundle: %w", err)
	}
	if len(keys) == 0 {
		fmt.Println("No bundle data ingested yet. Run `zipline ingest` first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tROWS\tFROM\tTO")
	for _, key := range keys {
		raw, err := store.Read(ctx, key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}
		points, err := benchmark.DecodeCSV(raw)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\n", key)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			key, len(points),
			points[0].DT.Format("2006-01-02"),
			points[len(points)-1].DT.Format("2006-01-02"),
		)
	}
	return w.Flush()
}
