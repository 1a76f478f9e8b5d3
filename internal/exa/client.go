// Package exa is a client for an Exa-style content-discovery API: neural web
// search, find-similar anchored on a seed URL, and bulk full-text retrieval.
package exa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atlaskb/scout/pkg/models"
)

// ErrUnavailable wraps transport and provider-side failures, so callers can
// tell "provider is down" apart from "provider returned nothing".
var ErrUnavailable = errors.New("content provider unavailable")

// SnippetLength is how much of the full text becomes the display snippet.
const SnippetLength = 500

// Config holds provider client configuration.
type Config struct {
	BaseURL string // e.g. "https://api.exa.ai"
	APIKey  string
	Timeout time.Duration
}

// Client talks to the content-discovery provider. All three calls are
// read-only.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a new provider client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:     config.APIKey,
	}, nil
}

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
	Type       string `json:"type"`
}

type findSimilarRequest struct {
	URL        string `json:"url"`
	NumResults int    `json:"numResults"`
}

type contentsRequest struct {
	URLs []string `json:"urls"`
	Text bool     `json:"text"`
}

type resultEntry struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type providerResponse struct {
	Results []resultEntry `json:"results"`
}

// Search runs a neural web search and returns up to n raw results with
// title, URL, and snippet. Zero results is a valid empty response.
func (c *Client) Search(ctx context.Context, query string, n int) ([]models.SearchResult, error) {
	var resp providerResponse
	if err := c.post(ctx, "/search", searchRequest{Query: query, NumResults: n, Type: "neural"}, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, models.SearchResult{
			URL:     r.URL,
			Title:   titleOrURL(r.Title, r.URL),
			Snippet: snippet(r.Text),
		})
	}

	slog.Debug("provider search complete", "query", query, "results", len(results))
	return results, nil
}

// FindSimilar returns up to k URLs of content similar to the seed URL.
// An upstream with nothing to offer yields an empty slice, not an error.
func (c *Client) FindSimilar(ctx context.Context, seedURL string, k int) ([]string, error) {
	var resp providerResponse
	if err := c.post(ctx, "/findSimilar", findSimilarRequest{URL: seedURL, NumResults: k}, &resp); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		urls = append(urls, r.URL)
	}

	slog.Debug("similarity search complete", "seed", seedURL, "candidates", len(urls))
	return urls, nil
}

// FetchContents retrieves full text for a URL set. URLs that yield no
// extractable text are dropped; the returned candidates are never partial.
func (c *Client) FetchContents(ctx context.Context, urls []string) ([]models.Candidate, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	var resp providerResponse
	if err := c.post(ctx, "/contents", contentsRequest{URLs: urls, Text: true}, &resp); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.Text == "" {
			slog.Debug("dropping URL with no extractable text", "url", r.URL)
			continue
		}
		candidates = append(candidates, models.Candidate{
			URL:      r.URL,
			Title:    titleOrURL(r.Title, r.URL),
			Snippet:  snippet(r.Text),
			FullText: r.Text,
		})
	}

	slog.Debug("content retrieval complete", "requested", len(urls), "fetched", len(candidates))
	return candidates, nil
}

// post sends one JSON request and decodes the provider response into out.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API error (status %d): %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", ErrUnavailable, err)
	}

	return nil
}

func titleOrURL(title, url string) string {
	if title == "" {
		return url
	}
	return title
}

// snippet cuts the text to SnippetLength bytes without splitting a
// multi-byte rune; snippets are persisted and must stay valid UTF-8.
func snippet(text string) string {
	if len(text) <= SnippetLength {
		return text
	}
	cut := SnippetLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
