// Package ledger tracks every URL the system has ever crawled, across all
// users, so discovery runs never re-propose content someone already ingested.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/atlaskb/scout/internal/storage"
)

// DefaultKey is where the ledger document lives in the object store.
const DefaultKey = "crawl/urls.json"

// Entry records one URL's crawl history.
type Entry struct {
	FirstCrawled time.Time `json:"first_crawled"`
	LastCrawled  time.Time `json:"last_crawled"`
	CrawlCount   int       `json:"crawl_count"`
}

// document is the persisted shape: one JSON object mapping URL to entry.
type document struct {
	URLs map[string]Entry `json:"urls"`
}

// ObjectStore is the subset of the object-store client the ledger needs.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Ledger is the process-wide crawl ledger. The whole document is loaded,
// mutated, and written back on every update; a mutex serializes writers so
// concurrent ingestion runs never lose crawl_count increments. Fine while
// the ledger stays small; a deployment at scale would swap this for
// key-level upserts behind the same interface.
type Ledger struct {
	mu    sync.Mutex
	store ObjectStore
	key   string
}

// New creates a ledger persisted under the given object key.
// An empty key uses DefaultKey.
func New(store ObjectStore, key string) *Ledger {
	if key == "" {
		key = DefaultKey
	}
	return &Ledger{store: store, key: key}
}

// load reads the full ledger document. A missing blob is an empty ledger.
func (l *Ledger) load(ctx context.Context) (document, error) {
	data, err := l.store.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return document{URLs: map[string]Entry{}}, nil
		}
		return document{}, fmt.Errorf("failed to load crawl ledger: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("failed to parse crawl ledger: %w", err)
	}
	if doc.URLs == nil {
		doc.URLs = map[string]Entry{}
	}
	return doc, nil
}

// Has reports whether a URL has been crawled by any prior run.
func (l *Ledger) Has(ctx context.Context, url string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load(ctx)
	if err != nil {
		return false, err
	}
	_, ok := doc.URLs[url]
	return ok, nil
}

// FilterNew returns the subset of urls not yet present in the ledger,
// preserving input order.
func (l *Ledger) FilterNew(ctx context.Context, urls []string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	fresh := make([]string, 0, len(urls))
	for _, url := range urls {
		if _, seen := doc.URLs[url]; !seen {
			fresh = append(fresh, url)
		}
	}

	slog.Debug("ledger filter", "candidates", len(urls), "new", len(fresh))
	return fresh, nil
}

// RecordAll marks every URL as crawled at now: new URLs get a fresh entry,
// re-encountered URLs get last_crawled bumped and crawl_count incremented.
// The load-mutate-write cycle runs under the ledger mutex.
func (l *Ledger) RecordAll(ctx context.Context, urls []string, now time.Time) error {
	if len(urls) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load(ctx)
	if err != nil {
		return err
	}

	for _, url := range urls {
		if entry, ok := doc.URLs[url]; ok {
			entry.LastCrawled = now
			entry.CrawlCount++
			doc.URLs[url] = entry
		} else {
			doc.URLs[url] = Entry{
				FirstCrawled: now,
				LastCrawled:  now,
				CrawlCount:   1,
			}
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal crawl ledger: %w", err)
	}
	if err := l.store.Put(ctx, l.key, data); err != nil {
		return fmt.Errorf("failed to write crawl ledger: %w", err)
	}

	slog.Debug("ledger updated", "urls", len(urls), "total", len(doc.URLs))
	return nil
}
