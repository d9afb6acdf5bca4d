package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/finrag/internal/app"
)

var indexYear int

var indexCmd = &cobra.Command{
	Use:   "index <ticker>",
	Short: "Build the vector index for a company's 10-K filing",
	Long: `Index downloads a 10-K filing, chunks it, embeds the chunks, and
persists the resulting vector index. Answering later questions about
the filing then skips the expensive build.

Examples:
  # Index the latest filing
  finrag index AAPL

  # Index a specific fiscal year
  finrag index MSFT --year 2022`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexYear, "year", 0, "fiscal year to index (default: latest filing)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Indexes == nil {
		return fmt.Errorf("filing retrieval is not configured: set secapi api_key")
	}

	ticker := args[0]
	if indexYear != 0 {
		fmt.Printf("Indexing %s 10-K for fiscal year %d...\n", ticker, indexYear)
	} else {
		fmt.Printf("Indexing latest %s 10-K...\n", ticker)
	}

	result, err := a.Indexes.GetOrBuild(cmd.Context(), ticker, indexYear)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	fmt.Printf("Index ready: %s\n", result.Collection)
	fmt.Printf("  Company:    %s\n", result.Meta.CompanyName)
	fmt.Printf("  Form Type:  %s\n", result.Meta.FormType)
	fmt.Printf("  Filed:      %s\n", result.Meta.FiledAt)
	fmt.Printf("  Period:     %s\n", result.Meta.PeriodOfReport)

	return nil
}
