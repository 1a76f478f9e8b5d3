package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// InterestContent is the extracted readable content of an interest page,
// produced by the capture side (browser extension or similar) before submission.
type InterestContent struct {
	Title       string `json:"title"`
	Byline      string `json:"byline,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	FullText    string `json:"text_content"`
	Length      int    `json:"content_length"`
	SiteName    string `json:"site_name,omitempty"`
	PublishedAt string `json:"published_time,omitempty"`
}

// Interest is a user-submitted seed document expressing a topic of curiosity.
// It is immutable once submitted and consumed by exactly one discovery run.
type Interest struct {
	URL              string          `json:"url"`
	Title            string          `json:"title"`
	SubmittedAt      time.Time       `json:"timestamp"`
	Content          InterestContent `json:"content"`
	ExtractionMethod string          `json:"method,omitempty"`
}

// Candidate is a not-yet-scored piece of content discovered from a seed.
// Candidates exist only in memory during a discovery run.
type Candidate struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	FullText string `json:"-"`
}

// ScoredCandidate is a candidate that survived retrieval and scoring.
// Every field is populated before persistence; candidates with a retrieval
// or embedding failure are dropped, never partially stored.
type ScoredCandidate struct {
	URL                  string    `json:"url"`
	Title                string    `json:"title"`
	Snippet              string    `json:"snippet"`
	Embedding            []float32 `json:"embedding"`
	SimilarityToKB       float64   `json:"similarity_to_kb"`
	SimilarityToInterest float64   `json:"similarity_to_interest"`
	CrawledAt            time.Time `json:"crawled_at"`
}

// InterestSummary is the persisted view of the interest that seeded a run.
type InterestSummary struct {
	Interest
	Embedding      []float32 `json:"embedding"`
	SimilarityToKB float64   `json:"similarity_to_kb"`
}

// RecordMetadata summarizes a single discovery run.
type RecordMetadata struct {
	TotalCrawled    int     `json:"total_crawled"`
	AvgSimilarity   float64 `json:"avg_similarity"`
	CrawlDurationMs int64   `json:"crawl_duration_ms"`
}

// DiscoveryRecord is the persisted unit of one discovery run: the seed
// interest plus its ranked discoveries. Records are append-only; re-ingesting
// the same interest URL produces a new record, never an update.
type DiscoveryRecord struct {
	Interest    InterestSummary   `json:"interest"`
	Discoveries []ScoredCandidate `json:"discoveries"`
	Metadata    RecordMetadata    `json:"metadata"`
}

// DiscoveryItem is the read projection of a scored candidate, flattened
// across records with its parent interest URL attached. Derived on read,
// never stored.
type DiscoveryItem struct {
	URL                  string    `json:"url"`
	Title                string    `json:"title"`
	Snippet              string    `json:"snippet"`
	SimilarityToKB       float64   `json:"similarity_to_kb"`
	SimilarityToInterest float64   `json:"similarity_to_interest"`
	SourceInterestURL    string    `json:"source_interest_url"`
	CrawledAt            time.Time `json:"crawled_at"`
}

// DiscoveryResponse is the result of a list query over a user's partition.
type DiscoveryResponse struct {
	Discoveries       []DiscoveryItem `json:"discoveries"`
	TotalAvailable    int             `json:"total_available"`
	FilteredCount     int             `json:"filtered_count"`
	MinSimilarityUsed float64         `json:"min_similarity_used"`
}

// IngestResult reports the outcome of one discovery run.
type IngestResult struct {
	Status             string  `json:"status"`
	InterestURL        string  `json:"interest_url"`
	CrawledCount       int     `json:"crawled_count"`
	StoredPath         string  `json:"stored_path"`
	TopSimilarityScore float64 `json:"top_similarity_score"`
}

// SearchResult is one raw hit from the content-discovery provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// AggregatedContext is the output of the query-answering pipeline: the
// refined query, the URLs the selector picked, and their full content
// aggregated into one labeled block. Answer synthesis consumes this
// downstream.
type AggregatedContext struct {
	RefinedQuery string            `json:"refined_query"`
	SelectedURLs []string          `json:"selected_urls"`
	ContextMap   map[string]string `json:"context_map"`
	Aggregated   string            `json:"aggregated_context"`
}

// ContentHash returns a deterministic ID for a piece of content, a SHA-256
// hash (first 16 chars) of the input. Used for record filenames so the same
// URL always hashes to the same suffix.
func ContentHash(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])[:16]
}
