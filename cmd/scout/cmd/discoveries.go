package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlaskb/scout/internal/store"
)

var (
	discoveriesUser   string
	discoveriesMinSim float64
	discoveriesLimit  int
	discoveriesFormat string
)

var discoveriesCmd = &cobra.Command{
	Use:   "discoveries",
	Short: "List a user's ranked discoveries",
	Long: `List a user's discoveries, ranked by similarity to their knowledge base.

Examples:
  # Default threshold and page size
  scout discoveries --user alice

  # Only near-duplicates of the knowledge base
  scout discoveries --user alice --min-similarity 0.9

  # JSON output for scripting
  scout discoveries --user alice --format json`,
	RunE: runDiscoveries,
}

func init() {
	rootCmd.AddCommand(discoveriesCmd)

	discoveriesCmd.Flags().StringVar(&discoveriesUser, "user", "", "User whose discoveries to list (required)")
	discoveriesCmd.MarkFlagRequired("user")
	discoveriesCmd.Flags().Float64Var(&discoveriesMinSim, "min-similarity", 0, "Minimum knowledge-base similarity (default from config)")
	discoveriesCmd.Flags().IntVar(&discoveriesLimit, "limit", 0, "Maximum number of discoveries (default from config)")
	discoveriesCmd.Flags().StringVar(&discoveriesFormat, "format", "text", "Output format: text or json")
}

func runDiscoveries(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	minSim := discoveriesMinSim
	if !cmd.Flags().Changed("min-similarity") {
		minSim = cfg.Discovery.MinSimilarity
	}
	limit := discoveriesLimit
	if limit <= 0 {
		limit = cfg.Discovery.Limit
	}

	storageClient, err := newStorageClient(ctx, cfg)
	if err != nil {
		return err
	}

	recordStore := store.New(storageClient)
	response, err := recordStore.List(ctx, discoveriesUser, minSim, limit)
	if err != nil {
		return fmt.Errorf("failed to list discoveries: %w", err)
	}

	if discoveriesFormat == "json" {
		output, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(response.Discoveries) == 0 {
		fmt.Printf("No discoveries above similarity %.2f (%d available).\n",
			response.MinSimilarityUsed, response.TotalAvailable)
		return nil
	}

	fmt.Printf("Showing %d of %d discoveries (threshold %.2f):\n\n",
		len(response.Discoveries), response.TotalAvailable, response.MinSimilarityUsed)
	for i, d := range response.Discoveries {
		fmt.Printf("─── Discovery %d ───\n", i+1)
		fmt.Printf("Title:      %s\n", d.Title)
		fmt.Printf("URL:        %s\n", d.URL)
		fmt.Printf("KB score:   %.3f\n", d.SimilarityToKB)
		fmt.Printf("From:       %s\n", d.SourceInterestURL)
		if d.Snippet != "" {
			fmt.Printf("Snippet:\n%s\n", d.Snippet)
		}
		fmt.Println()
	}

	return nil
}
