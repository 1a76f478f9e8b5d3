// Package crawler is the local content fetcher: it retrieves candidate URLs
// directly instead of going through a retrieval provider, for deployments
// without one. It satisfies the same bulk-fetch contract as the provider
// client.
package crawler

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/gocolly/colly/v2"

	"github.com/atlaskb/scout/internal/processor"
	"github.com/atlaskb/scout/pkg/models"
)

// SnippetLength is how much of the extracted text becomes the snippet.
const SnippetLength = 500

// Config holds crawler configuration.
type Config struct {
	Delay     time.Duration
	UserAgent string
	Timeout   time.Duration
}

// Crawler fetches pages one URL at a time and extracts their readable text.
type Crawler struct {
	config    Config
	processor *processor.Processor
}

// New creates a new Crawler with the given configuration.
func New(config Config) *Crawler {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "scout/1.0"
	}
	return &Crawler{
		config:    config,
		processor: processor.New(),
	}
}

// FetchContents retrieves each URL and extracts title plus Markdown body.
// URLs that fail to fetch or yield no extractable text are dropped; the
// returned candidates preserve input order and are never partial.
func (c *Crawler) FetchContents(ctx context.Context, urls []string) ([]models.Candidate, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	collector := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(c.config.UserAgent),
	)
	collector.SetRequestTimeout(c.config.Timeout)
	collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      c.config.Delay,
	})

	var currentURL string
	bodies := make(map[string]string, len(urls))

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= 400 {
			slog.Debug("skipping page with error status", "url", currentURL, "status", r.StatusCode)
			return
		}
		bodies[currentURL] = string(r.Body)
	})

	// The collector is synchronous, so Visit returns after OnResponse has
	// run; currentURL tracks the URL the callbacks belong to.
	for _, url := range urls {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		currentURL = url
		if err := collector.Visit(url); err != nil {
			slog.Debug("fetch failed, dropping candidate", "url", url, "error", err)
		}
	}

	candidates := make([]models.Candidate, 0, len(urls))
	for _, url := range urls {
		body, ok := bodies[url]
		if !ok {
			continue
		}

		title, text, err := c.processor.Extract(body)
		if err != nil || text == "" {
			slog.Debug("no extractable text, dropping candidate", "url", url, "error", err)
			continue
		}
		if title == "" {
			title = url
		}

		candidates = append(candidates, models.Candidate{
			URL:      url,
			Title:    title,
			Snippet:  snippet(text),
			FullText: text,
		})
	}

	slog.Debug("crawl fetch complete", "requested", len(urls), "fetched", len(candidates))
	return candidates, nil
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
