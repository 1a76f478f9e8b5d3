// Package kb scores embeddings against the user's knowledge base: an
// Elasticsearch index of previously ingested content with a dense_vector
// mapping, queried via kNN.
package kb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// NeutralFallbackScore is returned when the index is unreachable: ranking
// stays degraded-but-available instead of failing the whole run. Every
// fallback is logged with fallback=true so it cannot be mistaken for a
// genuine mid-range score.
const NeutralFallbackScore = 0.5

// Config holds knowledge-base index configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
	Dimension int // embedding dimension of the dense_vector field
	TopK      int // neighbors averaged per score query
}

// Index wraps the Elasticsearch client with knowledge-base operations.
type Index struct {
	es        *elasticsearch.Client
	index     string
	dimension int
	topK      int
}

// New creates a new knowledge-base index client.
func New(config Config) (*Index, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	if config.Dimension <= 0 {
		config.Dimension = 768
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}

	return &Index{
		es:        es,
		index:     config.Index,
		dimension: config.Dimension,
		topK:      config.TopK,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (i *Index) Ping(ctx context.Context) bool {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// mapping builds the index mapping with the configured vector dimension.
func (i *Index) mapping() string {
	return fmt.Sprintf(`{
	"mappings": {
		"properties": {
			"url": { "type": "keyword" },
			"title": { "type": "text" },
			"content": { "type": "text", "analyzer": "english" },
			"added_at": { "type": "date" },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`, i.dimension)
}

// EnsureIndex creates the knowledge-base index if it doesn't exist.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.index}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = i.es.Indices.Create(
		i.index,
		i.es.Indices.Create.WithContext(ctx),
		i.es.Indices.Create.WithBody(bytes.NewReader([]byte(i.mapping()))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (i *Index) DeleteIndex(ctx context.Context) error {
	res, err := i.es.Indices.Delete([]string{i.index}, i.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// kbDocument is the indexed shape of one knowledge-base entry.
type kbDocument struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AddedAt   time.Time `json:"added_at"`
	Embedding []float32 `json:"embedding"`
}

// AddDocument indexes one piece of content with its embedding into the
// knowledge base, keyed by id.
func (i *Index) AddDocument(ctx context.Context, id, url, title, content string, embedding []float32) error {
	if len(embedding) != i.dimension {
		return fmt.Errorf("embedding has %d dimensions, index expects %d", len(embedding), i.dimension)
	}

	doc := kbDocument{
		URL:       url,
		Title:     title,
		Content:   content,
		AddedAt:   time.Now().UTC(),
		Embedding: embedding,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := i.es.Index(
		i.index,
		bytes.NewReader(data),
		i.es.Index.WithContext(ctx),
		i.es.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document (status %d): %s", res.StatusCode, res.String())
	}

	return nil
}

// Refresh forces an index refresh (useful for testing).
func (i *Index) Refresh(ctx context.Context) error {
	res, err := i.es.Indices.Refresh(
		i.es.Indices.Refresh.WithContext(ctx),
		i.es.Indices.Refresh.WithIndex(i.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// knnResponse is the slice of the ES search response scoring needs.
type knnResponse struct {
	Hits struct {
		Hits []struct {
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// ScoreAgainstKB returns the average similarity of the embedding's top-k
// nearest neighbors in the knowledge base, in [0, 1]. An empty index scores
// 0. If the index or the query fails, the neutral fallback is returned
// instead of an error, so a transiently unreachable knowledge base degrades
// ranking without sinking the run.
func (i *Index) ScoreAgainstKB(ctx context.Context, embedding []float32) (float64, error) {
	query := map[string]any{
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   embedding,
			"k":              i.topK,
			"num_candidates": i.topK * 10,
		},
		"size":    i.topK,
		"_source": false,
	}

	data, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		slog.Warn("knowledge base unreachable, using neutral score",
			"fallback", true, "score", NeutralFallbackScore, "error", err)
		return NeutralFallbackScore, nil
	}
	defer res.Body.Close()

	if res.IsError() {
		slog.Warn("knowledge base query failed, using neutral score",
			"fallback", true, "score", NeutralFallbackScore, "status", res.StatusCode)
		return NeutralFallbackScore, nil
	}

	var kr knnResponse
	if err := json.NewDecoder(res.Body).Decode(&kr); err != nil {
		slog.Warn("knowledge base response unreadable, using neutral score",
			"fallback", true, "score", NeutralFallbackScore, "error", err)
		return NeutralFallbackScore, nil
	}

	if len(kr.Hits.Hits) == 0 {
		return 0, nil
	}

	var sum float64
	for _, hit := range kr.Hits.Hits {
		sum += hit.Score
	}
	avg := sum / float64(len(kr.Hits.Hits))

	// Cosine kNN scores are already in [0, 1]; clamp anything outside.
	if avg < 0 {
		avg = 0
	}
	if avg > 1 {
		avg = 1
	}
	return avg, nil
}
