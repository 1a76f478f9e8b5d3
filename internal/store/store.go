// Package store persists discovery records as per-user JSON objects and
// serves the flattened, filtered, ranked read projection over them.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/atlaskb/scout/internal/storage"
	"github.com/atlaskb/scout/pkg/models"
)

// Prefix is the object-store partition root for discovery records.
const Prefix = "discoveries"

// ErrNotFound is returned when a specific record key does not exist.
var ErrNotFound = errors.New("discovery record not found")

// ObjectStore is the subset of the object-store client the discovery store
// needs.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Store is the append-only discovery record store, partitioned per user.
type Store struct {
	objects ObjectStore
	now     func() time.Time
}

// New creates a discovery store.
func New(objects ObjectStore) *Store {
	return &Store{objects: objects, now: time.Now}
}

// Append writes one record into the user's partition and returns its path.
// The object name is derived from the write timestamp and a hash of the
// interest URL, so re-ingesting the same interest produces a new record
// rather than overwriting the old one.
func (s *Store) Append(ctx context.Context, userID string, record models.DiscoveryRecord) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user ID is required")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal discovery record: %w", err)
	}

	timestamp := s.now().UTC().Format("20060102_150405")
	urlHash := models.ContentHash(record.Interest.URL)[:8]
	key := path.Join(Prefix, userID, fmt.Sprintf("%s_%s.json", timestamp, urlHash))

	if err := s.objects.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to store discovery record: %w", err)
	}

	slog.Debug("discovery record stored", "user", userID, "path", key,
		"discoveries", len(record.Discoveries))
	return key, nil
}

// Get reads a single record by its object path.
func (s *Store) Get(ctx context.Context, key string) (*models.DiscoveryRecord, error) {
	data, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read discovery record %q: %w", key, err)
	}

	var record models.DiscoveryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse discovery record %q: %w", key, err)
	}
	return &record, nil
}

// List loads every record in the user's partition, flattens all discoveries
// with their parent interest URL attached, filters by minimum KB similarity,
// sorts descending (stable, so equal scores keep record order), and
// truncates to limit. TotalAvailable counts items before the filter and
// FilteredCount after it, before the limit. A user with no records gets an
// empty zero-count response, not an error.
func (s *Store) List(ctx context.Context, userID string, minSimilarity float64, limit int) (models.DiscoveryResponse, error) {
	resp := models.DiscoveryResponse{
		Discoveries:       []models.DiscoveryItem{},
		MinSimilarityUsed: minSimilarity,
	}

	keys, err := s.objects.List(ctx, path.Join(Prefix, userID))
	if err != nil {
		return resp, fmt.Errorf("failed to list discovery records: %w", err)
	}

	var all []models.DiscoveryItem
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		record, err := s.Get(ctx, key)
		if err != nil {
			// One corrupt record should not hide the rest.
			slog.Warn("skipping unreadable discovery record", "path", key, "error", err)
			continue
		}
		for _, d := range record.Discoveries {
			all = append(all, models.DiscoveryItem{
				URL:                  d.URL,
				Title:                d.Title,
				Snippet:              d.Snippet,
				SimilarityToKB:       d.SimilarityToKB,
				SimilarityToInterest: d.SimilarityToInterest,
				SourceInterestURL:    record.Interest.URL,
				CrawledAt:            d.CrawledAt,
			})
		}
	}

	resp.TotalAvailable = len(all)

	filtered := make([]models.DiscoveryItem, 0, len(all))
	for _, item := range all {
		if item.SimilarityToKB >= minSimilarity {
			filtered = append(filtered, item)
		}
	}
	resp.FilteredCount = len(filtered)

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].SimilarityToKB > filtered[j].SimilarityToKB
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	resp.Discoveries = filtered

	return resp, nil
}
