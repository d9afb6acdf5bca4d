package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/finrag/internal/app"
)

var filingsMaxYears int

var filingsCmd = &cobra.Command{
	Use:   "filings [ticker]",
	Short: "List available or indexed 10-K filings",
	Long: `Without a ticker, filings lists the locally indexed filings. With a
ticker, it queries the filings API for the fiscal years a 10-K is
available.

Examples:
  # Locally indexed filings
  finrag filings

  # Years with 10-K filings for a company
  finrag filings AAPL --years 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFilings,
}

func init() {
	filingsCmd.Flags().IntVar(&filingsMaxYears, "years", 5, "maximum number of years to list")
}

func runFilings(cmd *cobra.Command, args []string) error {
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		printIndexedFilings(a)
		return nil
	}

	if a.Filings == nil {
		return fmt.Errorf("filing retrieval is not configured: set secapi api_key")
	}

	ticker := strings.ToUpper(args[0])
	years, err := a.Filings.AvailableYears(cmd.Context(), ticker, "10-K", filingsMaxYears)
	if err != nil {
		return fmt.Errorf("listing filings for %s: %w", ticker, err)
	}
	if len(years) == 0 {
		fmt.Printf("No 10-K filings found for %s.\n", ticker)
		return nil
	}

	fmt.Printf("10-K filings available for %s:\n", ticker)
	for _, year := range years {
		fmt.Printf("- %d\n", year)
	}
	return nil
}
