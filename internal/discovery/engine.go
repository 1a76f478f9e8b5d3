// Package discovery drives the interest-ingestion pipeline: a submitted
// interest is embedded, similar content is discovered, deduplicated against
// the crawl ledger, retrieved, scored against the knowledge base, ranked,
// and persisted as one discovery record.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/atlaskb/scout/internal/similarity"
	"github.com/atlaskb/scout/pkg/models"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ContentSource discovers candidate URLs from a seed and retrieves their
// full content.
type ContentSource interface {
	FindSimilar(ctx context.Context, seedURL string, k int) ([]string, error)
	FetchContents(ctx context.Context, urls []string) ([]models.Candidate, error)
}

// KBScorer scores an embedding against the existing knowledge base.
type KBScorer interface {
	ScoreAgainstKB(ctx context.Context, embedding []float32) (float64, error)
}

// Ledger filters already-crawled URLs and records newly crawled ones.
type Ledger interface {
	FilterNew(ctx context.Context, urls []string) ([]string, error)
	RecordAll(ctx context.Context, urls []string, now time.Time) error
}

// RecordStore persists one discovery record per run.
type RecordStore interface {
	Append(ctx context.Context, userID string, record models.DiscoveryRecord) (string, error)
}

// Config holds engine tuning knobs.
type Config struct {
	SimilarResults int // candidate URLs requested per run
	Workers        int // concurrent embed+score calls per run
}

// Engine runs discovery ingestions. All collaborators are injected, so any
// of them can be swapped for a fake in tests or a different backend in
// production.
type Engine struct {
	embedder Embedder
	source   ContentSource
	kb       KBScorer
	ledger   Ledger
	store    RecordStore
	config   Config
	now      func() time.Time
}

// New creates a discovery engine.
func New(embedder Embedder, source ContentSource, kb KBScorer, ledger Ledger, store RecordStore, config Config) *Engine {
	if config.SimilarResults <= 0 {
		config.SimilarResults = 20
	}
	if config.Workers <= 0 {
		config.Workers = 5
	}
	return &Engine{
		embedder: embedder,
		source:   source,
		kb:       kb,
		ledger:   ledger,
		store:    store,
		config:   config,
		now:      time.Now,
	}
}

// Ingest runs one discovery run for the given user and interest.
//
// A failure to embed the interest itself aborts the run; there is no partial
// record. Failures on individual candidates (fetch miss, embedding error,
// dimension mismatch) drop that candidate and the run continues.
func (e *Engine) Ingest(ctx context.Context, userID string, interest models.Interest) (models.IngestResult, error) {
	start := e.now()

	slog.Info("starting discovery run", "user", userID, "interest", interest.URL)

	// The seed embedding anchors everything downstream; without it there is
	// no run.
	interestEmbedding, err := e.embedder.Embed(ctx, interest.Content.FullText)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to embed interest %q: %w", interest.URL, err)
	}

	candidateURLs, err := e.source.FindSimilar(ctx, interest.URL, e.config.SimilarResults)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("similarity search failed for %q: %w", interest.URL, err)
	}

	// A URL crawled by any prior run, for any user, is excluded.
	freshURLs, err := e.ledger.FilterNew(ctx, candidateURLs)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("ledger filter failed: %w", err)
	}

	candidates, err := e.source.FetchContents(ctx, freshURLs)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("content retrieval failed: %w", err)
	}

	scored := e.scoreCandidates(ctx, candidates, interestEmbedding)

	// Rank by knowledge-base similarity; the stable sort keeps fetch order
	// for equal scores, so parallel scoring never leaks into the ranking.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SimilarityToKB > scored[j].SimilarityToKB
	})

	interestKBScore, err := e.kb.ScoreAgainstKB(ctx, interestEmbedding)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to score interest against knowledge base: %w", err)
	}

	record := models.DiscoveryRecord{
		Interest: models.InterestSummary{
			Interest:       interest,
			Embedding:      interestEmbedding,
			SimilarityToKB: interestKBScore,
		},
		Discoveries: scored,
		Metadata: models.RecordMetadata{
			TotalCrawled:    len(scored),
			AvgSimilarity:   avgSimilarity(scored),
			CrawlDurationMs: e.now().Sub(start).Milliseconds(),
		},
	}

	storedPath, err := e.store.Append(ctx, userID, record)
	if err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to store discovery record: %w", err)
	}

	// Only URLs that survived retrieval are recorded, so a candidate that
	// failed to fetch can be re-proposed by a later run.
	urls := make([]string, len(scored))
	for i, s := range scored {
		urls[i] = s.URL
	}
	if err := e.ledger.RecordAll(ctx, urls, e.now()); err != nil {
		return models.IngestResult{}, fmt.Errorf("failed to update crawl ledger: %w", err)
	}

	result := models.IngestResult{
		Status:       "success",
		InterestURL:  interest.URL,
		CrawledCount: len(scored),
		StoredPath:   storedPath,
	}
	if len(scored) > 0 {
		result.TopSimilarityScore = scored[0].SimilarityToKB
	}

	slog.Info("discovery run complete", "user", userID, "interest", interest.URL,
		"crawled", result.CrawledCount, "top_score", result.TopSimilarityScore,
		"duration_ms", record.Metadata.CrawlDurationMs)

	return result, nil
}

// scoreCandidates embeds and scores every fetched candidate with a bounded
// worker pool. Candidates that fail any scoring step come back nil and are
// compacted out, preserving fetch order for the survivors.
func (e *Engine) scoreCandidates(ctx context.Context, candidates []models.Candidate, interestEmbedding []float32) []models.ScoredCandidate {
	// Each worker writes only its own slot, so no lock is needed.
	results := make([]*models.ScoredCandidate, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for idx, candidate := range candidates {
		g.Go(func() error {
			results[idx] = e.scoreOne(gctx, candidate, interestEmbedding)
			return nil
		})
	}
	// Workers never return errors; per-candidate failures are absorbed.
	g.Wait()

	scored := make([]models.ScoredCandidate, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			scored = append(scored, *r)
		}
	}
	return scored
}

// scoreOne produces a fully populated scored candidate, or nil when any step
// fails: a candidate is stored whole or not at all.
func (e *Engine) scoreOne(ctx context.Context, candidate models.Candidate, interestEmbedding []float32) *models.ScoredCandidate {
	embedding, err := e.embedder.Embed(ctx, candidate.FullText)
	if err != nil {
		slog.Warn("dropping candidate, embedding failed", "url", candidate.URL, "error", err)
		return nil
	}

	kbScore, err := e.kb.ScoreAgainstKB(ctx, embedding)
	if err != nil {
		slog.Warn("dropping candidate, knowledge base scoring failed", "url", candidate.URL, "error", err)
		return nil
	}

	interestScore, err := similarity.Cosine(embedding, interestEmbedding)
	if err != nil {
		slog.Warn("dropping candidate, similarity failed", "url", candidate.URL, "error", err)
		return nil
	}

	return &models.ScoredCandidate{
		URL:                  candidate.URL,
		Title:                candidate.Title,
		Snippet:              candidate.Snippet,
		Embedding:            embedding,
		SimilarityToKB:       kbScore,
		SimilarityToInterest: interestScore,
		CrawledAt:            e.now().UTC(),
	}
}

func avgSimilarity(scored []models.ScoredCandidate) float64 {
	if len(scored) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scored {
		sum += s.SimilarityToKB
	}
	return sum / float64(len(scored))
}
