package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/finrag/internal/app"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and stream the answer",
	Long: `Ask runs the full answer pipeline once and streams the response.

Examples:
  finrag ask "What were Apple's risk factors in their latest 10-K?"
  finrag ask "What was Microsoft's revenue in 2022?"
  finrag ask "How much cash do I have in my account?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")

	a.Assistant.AnswerStream(cmd.Context(), query, func(token string) error {
		fmt.Print(token)
		return nil
	})
	fmt.Println()

	return nil
}
