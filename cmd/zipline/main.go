package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "zipline",
	Short: "Zipline - trading simulation metrics engine",
	Long: `Zipline replays a trading strategy over a market calendar and tracks its
performance period by period. Each run emits one metrics packet per session
(or per bar, at minute emission) and a final whole-run summary.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
