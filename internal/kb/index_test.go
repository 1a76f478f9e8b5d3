package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

// newFakeES serves canned kNN responses. go-elasticsearch verifies the
// product header, so every response carries it.
func newFakeES(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	index, err := New(Config{
		Addresses: []string{server.URL},
		Index:     "scout-kb-test",
		Dimension: 4,
		TopK:      5,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return index
}

func knnReply(scores ...float64) string {
	hits := make([]map[string]any, len(scores))
	for i, s := range scores {
		hits[i] = map[string]any{"_score": s}
	}
	reply, _ := json.Marshal(map[string]any{
		"hits": map[string]any{"hits": hits},
	})
	return string(reply)
}

func TestScoreAgainstKB_AveragesTopK(t *testing.T) {
	index := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		var query map[string]any
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			t.Fatalf("failed to decode query: %v", err)
		}
		knn, ok := query["knn"].(map[string]any)
		if !ok {
			t.Fatal("query should contain a knn clause")
		}
		if knn["field"] != "embedding" {
			t.Errorf("knn field = %v, want embedding", knn["field"])
		}
		if k, _ := knn["k"].(float64); k != 5 {
			t.Errorf("knn k = %v, want 5", knn["k"])
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, knnReply(0.9, 0.8, 0.7))
	})

	score, err := index.ScoreAgainstKB(context.Background(), []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("ScoreAgainstKB() error = %v", err)
	}
	want := (0.9 + 0.8 + 0.7) / 3
	if math.Abs(score-want) > 1e-9 {
		t.Errorf("ScoreAgainstKB() = %v, want %v", score, want)
	}
}

func TestScoreAgainstKB_EmptyIndexScoresZero(t *testing.T) {
	index := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, knnReply())
	})

	score, err := index.ScoreAgainstKB(context.Background(), []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("ScoreAgainstKB() error = %v", err)
	}
	if score != 0 {
		t.Errorf("ScoreAgainstKB() on empty index = %v, want 0", score)
	}
}

func TestScoreAgainstKB_QueryFailureFallsBackToNeutral(t *testing.T) {
	index := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	score, err := index.ScoreAgainstKB(context.Background(), []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("ScoreAgainstKB() error = %v, want nil with fallback", err)
	}
	if score != NeutralFallbackScore {
		t.Errorf("ScoreAgainstKB() = %v, want neutral fallback %v", score, NeutralFallbackScore)
	}
}

func TestScoreAgainstKB_ClampsToUnitInterval(t *testing.T) {
	index := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, knnReply(1.4, 1.2))
	})

	score, err := index.ScoreAgainstKB(context.Background(), []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("ScoreAgainstKB() error = %v", err)
	}
	if score != 1 {
		t.Errorf("ScoreAgainstKB() = %v, want clamp to 1", score)
	}
}

func TestAddDocument_RejectsWrongDimension(t *testing.T) {
	index := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be reached with a bad embedding")
	})

	err := index.AddDocument(context.Background(), "id1", "https://example.com", "t", "c", []float32{1, 2})
	if err == nil {
		t.Error("AddDocument() with wrong dimension should fail")
	}
}

// Integration tests below run only against a live Elasticsearch.

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	index, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "test-skip-check",
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !index.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

func TestIntegration_EnsureIndexIdempotent(t *testing.T) {
	skipIfNoES(t)

	index, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "scout-kb-test-create",
		Dimension: 8,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	index.DeleteIndex(ctx)

	if err := index.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if err := index.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() second call error = %v", err)
	}

	index.DeleteIndex(ctx)
}

func TestIntegration_AddAndScore(t *testing.T) {
	skipIfNoES(t)

	index, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "scout-kb-test-score",
		Dimension: 4,
		TopK:      5,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	index.DeleteIndex(ctx)
	if err := index.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	vec := []float32{0.5, 0.5, 0.5, 0.5}
	if err := index.AddDocument(ctx, "doc1", "https://example.com", "title", "content", vec); err != nil {
		t.Fatalf("AddDocument() error = %v", err)
	}
	index.Refresh(ctx)

	score, err := index.ScoreAgainstKB(ctx, vec)
	if err != nil {
		t.Fatalf("ScoreAgainstKB() error = %v", err)
	}
	if score < 0.9 {
		t.Errorf("self-similarity score = %v, want close to 1", score)
	}

	index.DeleteIndex(ctx)
}
