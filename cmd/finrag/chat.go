package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/finrag/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Chat starts an interactive session with the financial assistant.

Special commands inside the session:
  quit, exit, q                              end the session
  clear memory, clear history, reset memory  discard conversation history
  show filings, show embedded filings        list locally indexed filings`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("finrag Financial Assistant")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Conversation memory loaded. History size: %d\n", a.Memory.Len())

	// Connectivity probe so credential problems surface before the
	// first real question.
	if a.Market != nil {
		if price, err := a.Market.StockPrice(ctx, "AAPL"); err != nil {
			fmt.Printf("Warning: market data unavailable: %v\n", err)
		} else {
			fmt.Printf("Market data connected. AAPL: $%.2f\n", price.Price)
		}
	}

	if a.Indexes != nil {
		printIndexedFilings(a)
	}

	fmt.Println("\nYou can ask questions about:")
	fmt.Println("- SEC 10-K filings (e.g., 'What were Apple's risk factors in their latest annual report?')")
	fmt.Println("- Year-specific filings (e.g., 'What was Microsoft's revenue in 2022?')")
	fmt.Println("- Your account (e.g., 'How much cash do I have?')")
	fmt.Println("- Your positions (e.g., 'What stocks do I own?')")
	fmt.Println("- Current stock prices (e.g., 'What's the current price of MSFT?')")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println("\n" + strings.Repeat("-", 50))
		fmt.Print("Your question (or 'quit' to exit): ")

		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		switch strings.ToLower(query) {
		case "quit", "exit", "q":
			fmt.Println("\nThank you for using the finrag Financial Assistant!")
			return nil
		case "clear memory", "clear history", "reset memory":
			a.Memory.Clear()
			fmt.Println("Conversation history has been cleared.")
			continue
		case "show embedded filings", "show filings", "available filings":
			printIndexedFilings(a)
			continue
		}

		fmt.Println("\nResponse:")
		fmt.Println(strings.Repeat("-", 50))
		a.Assistant.AnswerStream(ctx, query, func(token string) error {
			fmt.Print(token)
			return nil
		})
		fmt.Println()
	}

	return scanner.Err()
}

func printIndexedFilings(a *app.App) {
	if a.Indexes == nil {
		fmt.Println("Filing retrieval is not configured (missing secapi api_key).")
		return
	}
	indexed := a.Indexes.List()
	if len(indexed) == 0 {
		fmt.Println("No indexed filings available yet.")
		return
	}
	fmt.Println("\nIndexed SEC filings available for:")
	for ticker, years := range indexed {
		strs := make([]string, len(years))
		for i, y := range years {
			strs[i] = fmt.Sprintf("%d", y)
		}
		fmt.Printf("- %s: years %s\n", ticker, strings.Join(strs, ", "))
	}
}
