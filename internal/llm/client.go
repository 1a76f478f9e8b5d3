package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/atlaskb/scout/pkg/models"
)

// Config holds LLM client configuration.
type Config struct {
	BaseURL string // OpenAI-compatible API base, e.g. "https://api.openai.com/v1"
	APIKey  string // Bearer token; empty allowed for local gateways
	Model   string // Model name (e.g. "gpt-4o-mini")
	Timeout time.Duration
}

// Client wraps an OpenAI-compatible chat completions API. It carries the two
// single-round-trip contracts the pipelines need: query refinement and link
// selection. No retries, no validation of model output beyond trimming and
// line parsing.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// New creates a new LLM client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		model:      config.Model,
	}, nil
}

// chatRequest is the request payload for the chat completions API.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a prompt to the LLM and returns the trimmed response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response returned")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// RefineQuery transforms a free-text user query into an optimized search
// query in a single round trip.
func (c *Client) RefineQuery(ctx context.Context, userQuery string) (string, error) {
	prompt := fmt.Sprintf(`You are a search query optimization expert. Transform the user's question into a precise,
effective search query that will return the most relevant results.

User Question: %s

Return ONLY the optimized search query, nothing else.`, userQuery)

	slog.Debug("refining query", "query", userQuery)
	refined, err := c.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to refine query: %w", err)
	}
	return refined, nil
}

// SelectLinks asks the model to pick the n most relevant URLs out of a raw
// result set. The model output is parsed as a line-oriented URL list; lines
// that are not URLs are skipped, and at most n URLs are returned.
func (c *Client) SelectLinks(ctx context.Context, results []models.SearchResult, userQuery string, n int) ([]string, error) {
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. Title: %s\n   URL: %s\n   Snippet: %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}

	prompt := fmt.Sprintf(`You are an expert at identifying the most relevant sources for answering questions.

User Question: %s

Search Results:
%s
Select the %d most relevant URLs that are most likely to contain deep, comprehensive
information to answer the user's question. Consider:
- Relevance to the question
- Likely depth of content
- Authority of source

Return ONLY the URLs, one per line, nothing else.`, userQuery, sb.String(), n)

	slog.Debug("selecting links", "candidates", len(results), "want", n)
	resp, err := c.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to select links: %w", err)
	}

	var urls []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• "))
		if line == "" || !strings.HasPrefix(line, "http") {
			continue
		}
		urls = append(urls, line)
		if len(urls) == n {
			break
		}
	}

	return urls, nil
}
