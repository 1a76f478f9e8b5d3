// Package search runs the query-answering pipeline: a raw user question is
// refined into a search query, searched, narrowed to the most promising
// links, retrieved, and aggregated into one labeled context block.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlaskb/scout/pkg/models"
)

// Refiner rewrites a user question into an effective search query and picks
// the most relevant links from a result set.
type Refiner interface {
	RefineQuery(ctx context.Context, userQuery string) (string, error)
	SelectLinks(ctx context.Context, results []models.SearchResult, userQuery string, n int) ([]string, error)
}

// ContentSource searches the web and retrieves page content.
type ContentSource interface {
	Search(ctx context.Context, query string, n int) ([]models.SearchResult, error)
	FetchContents(ctx context.Context, urls []string) ([]models.Candidate, error)
}

// Config holds pipeline tuning knobs.
type Config struct {
	SearchResults int // raw results requested from the provider
	SelectLinks   int // links the selector keeps for retrieval
}

// Orchestrator runs query-answering searches.
type Orchestrator struct {
	refiner Refiner
	source  ContentSource
	config  Config
}

// New creates a search orchestrator.
func New(refiner Refiner, source ContentSource, config Config) *Orchestrator {
	if config.SearchResults <= 0 {
		config.SearchResults = 10
	}
	if config.SelectLinks <= 0 {
		config.SelectLinks = 5
	}
	return &Orchestrator{refiner: refiner, source: source, config: config}
}

// Discover answers a user query by searching, selecting, and retrieving
// supporting content. The aggregated block labels each page with its source
// URL so downstream synthesis can cite it.
func (o *Orchestrator) Discover(ctx context.Context, userQuery string) (models.AggregatedContext, error) {
	if strings.TrimSpace(userQuery) == "" {
		return models.AggregatedContext{}, fmt.Errorf("query must not be empty")
	}

	refined, err := o.refiner.RefineQuery(ctx, userQuery)
	if err != nil {
		return models.AggregatedContext{}, fmt.Errorf("query refinement failed: %w", err)
	}
	slog.Debug("refined query", "original", userQuery, "refined", refined)

	results, err := o.source.Search(ctx, refined, o.config.SearchResults)
	if err != nil {
		return models.AggregatedContext{}, fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return models.AggregatedContext{RefinedQuery: refined}, nil
	}

	selected, err := o.refiner.SelectLinks(ctx, results, userQuery, o.config.SelectLinks)
	if err != nil {
		return models.AggregatedContext{}, fmt.Errorf("link selection failed: %w", err)
	}
	if len(selected) == 0 {
		// The selector produced nothing usable. An empty context is the
		// honest answer; substituting raw results would bypass selection.
		slog.Debug("selector returned no usable links", "query", userQuery, "results", len(results))
		return models.AggregatedContext{RefinedQuery: refined}, nil
	}

	candidates, err := o.source.FetchContents(ctx, selected)
	if err != nil {
		return models.AggregatedContext{}, fmt.Errorf("content retrieval failed: %w", err)
	}

	contextMap := make(map[string]string, len(candidates))
	for _, c := range candidates {
		contextMap[c.URL] = c.FullText
	}

	return models.AggregatedContext{
		RefinedQuery: refined,
		SelectedURLs: selected,
		ContextMap:   contextMap,
		Aggregated:   aggregate(selected, contextMap),
	}, nil
}

// aggregate joins the retrieved pages in selection order, labeling each with
// its source URL. Selected URLs whose retrieval failed are skipped.
func aggregate(selected []string, contextMap map[string]string) string {
	var parts []string
	for _, url := range selected {
		content, ok := contextMap[url]
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf("Source: %s\n\n%s", url, content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
