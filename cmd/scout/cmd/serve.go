package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atlaskb/scout/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for discovery and search.

The server communicates via stdio and provides three tools:
  - ingest_interest:  run a discovery run for an interest page
  - list_discoveries: list a user's ranked discoveries
  - web_search:       answer a question from the web

Example:
  scout serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	engine, recordStore, err := newDiscoveryEngine(ctx, cfg)
	if err != nil {
		return err
	}
	orchestrator, err := newSearchOrchestrator(cfg)
	if err != nil {
		return err
	}

	server := mcp.NewServer(mcp.Config{
		Name:          cfg.MCP.Name,
		Version:       cfg.MCP.Version,
		MinSimilarity: cfg.Discovery.MinSimilarity,
		Limit:         cfg.Discovery.Limit,
	}, engine, recordStore, orchestrator)

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
