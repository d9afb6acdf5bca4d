package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/finrag/internal/app"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or clear the conversation history",
}

var memoryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the recorded conversation history",
	RunE:  runMemoryShow,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard the recorded conversation history",
	RunE:  runMemoryClear,
}

func init() {
	memoryCmd.AddCommand(memoryShowCmd)
	memoryCmd.AddCommand(memoryClearCmd)
}

func runMemoryShow(cmd *cobra.Command, args []string) error {
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(a.Memory.HistoryText())
	return nil
}

func runMemoryClear(cmd *cobra.Command, args []string) error {
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Memory.Clear()
	fmt.Println("Conversation history has been cleared.")
	return nil
}
