// Package mcp exposes the discovery and search pipelines as MCP tools over
// stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/atlaskb/scout/pkg/models"
)

// Ingester runs a discovery ingestion for one interest.
type Ingester interface {
	Ingest(ctx context.Context, userID string, interest models.Interest) (models.IngestResult, error)
}

// Lister reads a user's ranked discoveries.
type Lister interface {
	List(ctx context.Context, userID string, minSimilarity float64, limit int) (models.DiscoveryResponse, error)
}

// Searcher runs the query-answering pipeline.
type Searcher interface {
	Discover(ctx context.Context, userQuery string) (models.AggregatedContext, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name          string
	Version       string
	MinSimilarity float64 // default threshold for list_discoveries
	Limit         int     // default page size for list_discoveries
}

// Server wraps the MCP server around the injected pipelines.
type Server struct {
	mcpServer *server.MCPServer
	ingester  Ingester
	lister    Lister
	searcher  Searcher
	config    Config
}

// NewServer creates an MCP server exposing the discovery and search tools.
func NewServer(config Config, ingester Ingester, lister Lister, searcher Searcher) *Server {
	if config.MinSimilarity == 0 {
		config.MinSimilarity = 0.7
	}
	if config.Limit <= 0 {
		config.Limit = 20
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		ingester:  ingester,
		lister:    lister,
		searcher:  searcher,
		config:    config,
	}

	ingestTool := mcp.NewTool("ingest_interest",
		mcp.WithDescription("Submit an interest page for discovery. Finds similar content, scores it against the knowledge base, and stores the ranked discoveries."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose partition receives the discoveries"),
		),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL of the interest page"),
		),
		mcp.WithString("title",
			mcp.Description("Title of the interest page"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Extracted readable text of the interest page"),
		),
	)
	mcpServer.AddTool(ingestTool, s.ingestHandler)

	listTool := mcp.NewTool("list_discoveries",
		mcp.WithDescription("List a user's discoveries ranked by similarity to their knowledge base."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("User whose discoveries to list"),
		),
		mcp.WithNumber("min_similarity",
			mcp.Description("Minimum knowledge-base similarity to include (default: 0.7)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of discoveries to return (default: 20)"),
		),
	)
	mcpServer.AddTool(listTool, s.listHandler)

	searchTool := mcp.NewTool("web_search",
		mcp.WithDescription("Answer a question from the web: refines the query, searches, selects the best links, and returns their aggregated content with source labels."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to research"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	return s
}

// ingestHandler handles the ingest_interest tool call.
func (s *Server) ingestHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError("content parameter is required"), nil
	}
	title := req.GetString("title", "")

	interest := models.Interest{
		URL:         url,
		Title:       title,
		SubmittedAt: time.Now().UTC(),
		Content: models.InterestContent{
			Title:    title,
			FullText: content,
			Length:   len(content),
		},
	}

	result, err := s.ingester.Ingest(ctx, userID, interest)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ingest failed: %v", err)), nil
	}

	return marshalResult(result)
}

// listHandler handles the list_discoveries tool call.
func (s *Server) listHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError("user_id parameter is required"), nil
	}
	minSimilarity := req.GetFloat("min_similarity", s.config.MinSimilarity)
	limit := req.GetInt("limit", s.config.Limit)

	response, err := s.lister.List(ctx, userID, minSimilarity, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	return marshalResult(response)
}

// searchHandler handles the web_search tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	result, err := s.searcher.Discover(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return marshalResult(result)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
