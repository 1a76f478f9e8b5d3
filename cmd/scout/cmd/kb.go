package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlaskb/scout/internal/crawler"
	"github.com/atlaskb/scout/pkg/models"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge base index",
	Long: `Manage the knowledge base index that discoveries are scored against.

Examples:
  # Create the index if it does not exist
  scout kb init

  # Fetch a page and add it to the knowledge base
  scout kb add https://example.com/article`,
}

var kbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the knowledge base index",
	RunE:  runKBInit,
}

var kbAddCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Fetch a page and add it to the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runKBAdd,
}

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbInitCmd)
	kbCmd.AddCommand(kbAddCmd)
}

func runKBInit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	index, err := newKBIndex(cfg)
	if err != nil {
		return err
	}
	if err := index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	fmt.Printf("Index %q ready.\n", cfg.Elasticsearch.Index)
	return nil
}

func runKBAdd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := args[0]
	cfg := GetConfig()

	index, err := newKBIndex(cfg)
	if err != nil {
		return err
	}
	if err := index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("failed to ensure index: %w", err)
	}

	embedClient, err := newEmbeddingsClient(cfg)
	if err != nil {
		return err
	}

	fetcher := crawler.New(crawler.Config{
		Delay:     cfg.Crawler.Delay,
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.Timeout,
	})

	fmt.Printf("Fetching: %s\n", url)

	pages, err := fetcher.FetchContents(ctx, []string{url})
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("no readable content at %s", url)
	}
	page := pages[0]

	embedding, err := embedClient.Embed(ctx, page.FullText)
	if err != nil {
		return fmt.Errorf("failed to embed content: %w", err)
	}

	id := models.ContentHash(page.URL)
	if err := index.AddDocument(ctx, id, page.URL, page.Title, page.FullText, embedding); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	fmt.Printf("Added %q (%d chars) as %s\n", page.Title, len(page.FullText), id)
	return nil
}
