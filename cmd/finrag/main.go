// Package main implements the finrag CLI: an interactive chat, one-shot
// queries, filing index management, and daemon health checks.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath is the config file path, empty for the default location
	configPath string
	// serverURL is the base URL for the finragd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finrag",
	Short: "Financial assistant grounded in SEC filings and market data",
	Long: `finrag answers financial questions using SEC 10-K filings, brokerage
account state, portfolio positions, and live stock prices.

Most commands run the pipeline locally and need API keys configured in
~/.config/finrag/config.yaml; the health command probes a running finragd.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.config/finrag/config.yaml)")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(filingsCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(healthCmd)
}
