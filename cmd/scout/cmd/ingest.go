package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlaskb/scout/pkg/models"
)

var ingestUser string

var ingestCmd = &cobra.Command{
	Use:   "ingest [interest.json]",
	Short: "Run a discovery run for an interest page",
	Long: `Run a discovery run for an interest page.

The argument is a JSON file describing the interest: the page URL, title,
and its extracted text content. The run finds similar pages on the web,
skips anything already crawled, scores the rest against your knowledge
base, and stores the ranked discoveries.

Examples:
  scout ingest --user alice interest.json`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "User whose partition receives the discoveries (required)")
	ingestCmd.MarkFlagRequired("user")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	slog.Debug("ingest command starting", "user", ingestUser, "file", args[0])

	interest, err := readInterest(args[0])
	if err != nil {
		return err
	}

	engine, _, err := newDiscoveryEngine(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Ingesting interest: %s\n", interest.URL)

	result, err := engine.Ingest(ctx, ingestUser, interest)
	if err != nil {
		return fmt.Errorf("discovery run failed: %w", err)
	}

	fmt.Printf("\nDiscovery run complete:\n")
	fmt.Printf("  Crawled:   %d\n", result.CrawledCount)
	fmt.Printf("  Top score: %.3f\n", result.TopSimilarityScore)
	fmt.Printf("  Stored:    %s\n", result.StoredPath)

	return nil
}

// readInterest loads an interest description from a JSON file, filling the
// submission time when the file does not carry one.
func readInterest(path string) (models.Interest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Interest{}, fmt.Errorf("failed to read interest file: %w", err)
	}

	var interest models.Interest
	if err := json.Unmarshal(data, &interest); err != nil {
		return models.Interest{}, fmt.Errorf("failed to parse interest file: %w", err)
	}
	if interest.URL == "" {
		return models.Interest{}, fmt.Errorf("interest file has no url")
	}
	if interest.Content.FullText == "" {
		return models.Interest{}, fmt.Errorf("interest file has no content text")
	}
	if interest.SubmittedAt.IsZero() {
		interest.SubmittedAt = time.Now().UTC()
	}
	return interest, nil
}
