package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var searchFormat string

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Answer a question from the web",
	Long: `Answer a question by searching the web.

The query is refined into a search query, the most promising results are
selected, and their full content is aggregated into one block with source
labels.

Examples:
  # Basic search
  scout search "how does the go scheduler preempt goroutines"

  # JSON output for scripting
  scout search "raft leader election" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := args[0]
	cfg := GetConfig()

	orchestrator, err := newSearchOrchestrator(cfg)
	if err != nil {
		return err
	}

	result, err := orchestrator.Discover(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if result.Aggregated == "" {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Refined query: %s\n", result.RefinedQuery)
	fmt.Printf("Sources: %d\n\n", len(result.SelectedURLs))
	fmt.Println(result.Aggregated)

	return nil
}
