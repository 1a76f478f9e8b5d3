package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/atlaskb/scout/pkg/models"
)

type fakeRefiner struct {
	refined    string
	refineErr  error
	selected   []string
	selectErr  error
	selectSeen int
}

func (f *fakeRefiner) RefineQuery(_ context.Context, _ string) (string, error) {
	return f.refined, f.refineErr
}

func (f *fakeRefiner) SelectLinks(_ context.Context, results []models.SearchResult, _ string, _ int) ([]string, error) {
	f.selectSeen = len(results)
	return f.selected, f.selectErr
}

type fakeSource struct {
	results     []models.SearchResult
	searchErr   error
	searchQuery string
	contents    map[string]string
	fetchedURLs []string
}

func (f *fakeSource) Search(_ context.Context, query string, _ int) ([]models.SearchResult, error) {
	f.searchQuery = query
	return f.results, f.searchErr
}

func (f *fakeSource) FetchContents(_ context.Context, urls []string) ([]models.Candidate, error) {
	f.fetchedURLs = urls
	var out []models.Candidate
	for _, u := range urls {
		if text, ok := f.contents[u]; ok {
			out = append(out, models.Candidate{URL: u, FullText: text})
		}
	}
	return out, nil
}

func TestDiscoverAggregatesInSelectionOrder(t *testing.T) {
	refiner := &fakeRefiner{
		refined:  "go garbage collector internals",
		selected: []string{"https://example.com/b", "https://example.com/a"},
	}
	source := &fakeSource{
		results: []models.SearchResult{
			{URL: "https://example.com/a", Title: "A"},
			{URL: "https://example.com/b", Title: "B"},
		},
		contents: map[string]string{
			"https://example.com/a": "content a",
			"https://example.com/b": "content b",
		},
	}

	got, err := New(refiner, source, Config{}).Discover(context.Background(), "how does the go gc work")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if got.RefinedQuery != "go garbage collector internals" {
		t.Errorf("refined query = %q", got.RefinedQuery)
	}
	if source.searchQuery != "go garbage collector internals" {
		t.Errorf("searched with %q, want the refined query", source.searchQuery)
	}
	if refiner.selectSeen != 2 {
		t.Errorf("selector saw %d results, want 2", refiner.selectSeen)
	}

	want := "Source: https://example.com/b\n\ncontent b\n\n---\n\nSource: https://example.com/a\n\ncontent a"
	if got.Aggregated != want {
		t.Errorf("aggregated context =\n%q\nwant\n%q", got.Aggregated, want)
	}
	if len(got.ContextMap) != 2 {
		t.Errorf("context map has %d entries, want 2", len(got.ContextMap))
	}
}

func TestDiscoverEmptyQuery(t *testing.T) {
	_, err := New(&fakeRefiner{}, &fakeSource{}, Config{}).Discover(context.Background(), "   ")
	if err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestDiscoverNoSearchResults(t *testing.T) {
	refiner := &fakeRefiner{refined: "anything"}
	source := &fakeSource{}

	got, err := New(refiner, source, Config{}).Discover(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if got.Aggregated != "" || len(got.SelectedURLs) != 0 {
		t.Errorf("expected empty context when search returns nothing, got %+v", got)
	}
	if got.RefinedQuery != "anything" {
		t.Errorf("refined query = %q, want it preserved", got.RefinedQuery)
	}
}

func TestDiscoverEmptySelectionYieldsEmptyContext(t *testing.T) {
	refiner := &fakeRefiner{refined: "refined q", selected: nil}
	source := &fakeSource{
		results: []models.SearchResult{
			{URL: "https://example.com/1"},
			{URL: "https://example.com/2"},
			{URL: "https://example.com/3"},
		},
		contents: map[string]string{
			"https://example.com/1": "one",
			"https://example.com/2": "two",
			"https://example.com/3": "three",
		},
	}

	got, err := New(refiner, source, Config{SelectLinks: 2}).Discover(context.Background(), "q")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(got.SelectedURLs) != 0 {
		t.Errorf("selected %v, want none when the selector yields nothing", got.SelectedURLs)
	}
	if got.Aggregated != "" {
		t.Errorf("aggregated context = %q, want empty", got.Aggregated)
	}
	if got.RefinedQuery != "refined q" {
		t.Errorf("refined query = %q, want it preserved", got.RefinedQuery)
	}
	if len(source.fetchedURLs) != 0 {
		t.Errorf("fetched %v, want no retrieval after an empty selection", source.fetchedURLs)
	}
}

func TestDiscoverSkipsFailedRetrievals(t *testing.T) {
	refiner := &fakeRefiner{
		refined:  "q",
		selected: []string{"https://example.com/ok", "https://example.com/gone"},
	}
	source := &fakeSource{
		results:  []models.SearchResult{{URL: "https://example.com/ok"}},
		contents: map[string]string{"https://example.com/ok": "still here"},
	}

	got, err := New(refiner, source, Config{}).Discover(context.Background(), "q")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if strings.Contains(got.Aggregated, "gone") {
		t.Errorf("aggregated context includes a failed retrieval: %q", got.Aggregated)
	}
	if !strings.Contains(got.Aggregated, "Source: https://example.com/ok") {
		t.Errorf("aggregated context missing the surviving page: %q", got.Aggregated)
	}
	if strings.Contains(got.Aggregated, "---") {
		t.Errorf("single surviving page should have no delimiter: %q", got.Aggregated)
	}
}

func TestDiscoverRefineFailure(t *testing.T) {
	refiner := &fakeRefiner{refineErr: errors.New("llm down")}
	if _, err := New(refiner, &fakeSource{}, Config{}).Discover(context.Background(), "q"); err == nil {
		t.Fatal("expected error when refinement fails")
	}
}

func TestDiscoverSearchFailure(t *testing.T) {
	refiner := &fakeRefiner{refined: "q"}
	source := &fakeSource{searchErr: errors.New("provider unavailable")}
	if _, err := New(refiner, source, Config{}).Discover(context.Background(), "q"); err == nil {
		t.Fatal("expected error when search fails")
	}
}
