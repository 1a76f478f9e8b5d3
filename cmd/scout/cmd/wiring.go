package cmd

import (
	"context"
	"fmt"

	"github.com/atlaskb/scout/internal/config"
	"github.com/atlaskb/scout/internal/crawler"
	"github.com/atlaskb/scout/internal/discovery"
	"github.com/atlaskb/scout/internal/embeddings"
	"github.com/atlaskb/scout/internal/exa"
	"github.com/atlaskb/scout/internal/kb"
	"github.com/atlaskb/scout/internal/ledger"
	"github.com/atlaskb/scout/internal/llm"
	"github.com/atlaskb/scout/internal/search"
	"github.com/atlaskb/scout/internal/storage"
	"github.com/atlaskb/scout/internal/store"
	"github.com/atlaskb/scout/pkg/models"
)

// localFetchSource keeps provider-side similarity search but retrieves the
// candidate pages locally with the crawler.
type localFetchSource struct {
	*exa.Client
	fetcher *crawler.Crawler
}

func (s *localFetchSource) FetchContents(ctx context.Context, urls []string) ([]models.Candidate, error) {
	return s.fetcher.FetchContents(ctx, urls)
}

// newStorageClient connects to the object store and makes sure the bucket
// exists.
func newStorageClient(ctx context.Context, cfg config.Config) (*storage.Client, error) {
	client, err := storage.New(storage.Config{
		Endpoint:        cfg.Storage.Endpoint,
		Bucket:          cfg.Storage.Bucket,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}
	return client, nil
}

func newEmbeddingsClient(cfg config.Config) (*embeddings.Client, error) {
	client, err := embeddings.New(embeddings.Config{
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey,
		Model:     cfg.Embeddings.Model,
		Dimension: cfg.Embeddings.Dimension,
		Timeout:   cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	return client, nil
}

func newExaClient(cfg config.Config) (*exa.Client, error) {
	client, err := exa.New(exa.Config{
		BaseURL: cfg.Exa.BaseURL,
		APIKey:  cfg.Exa.APIKey,
		Timeout: cfg.Exa.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exa client: %w", err)
	}
	return client, nil
}

func newKBIndex(cfg config.Config) (*kb.Index, error) {
	index, err := kb.New(kb.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		Dimension: cfg.Embeddings.Dimension,
		TopK:      cfg.Elasticsearch.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge base index: %w", err)
	}
	return index, nil
}

// newDiscoveryEngine wires the full ingestion pipeline.
func newDiscoveryEngine(ctx context.Context, cfg config.Config) (*discovery.Engine, *store.Store, error) {
	storageClient, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	embedClient, err := newEmbeddingsClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	exaClient, err := newExaClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	index, err := newKBIndex(cfg)
	if err != nil {
		return nil, nil, err
	}

	recordStore := store.New(storageClient)
	crawlLedger := ledger.New(storageClient, ledger.DefaultKey)

	var source discovery.ContentSource = exaClient
	if cfg.ContentSource.Fetcher == "crawler" {
		source = &localFetchSource{
			Client: exaClient,
			fetcher: crawler.New(crawler.Config{
				Delay:     cfg.Crawler.Delay,
				UserAgent: cfg.Crawler.UserAgent,
				Timeout:   cfg.Crawler.Timeout,
			}),
		}
	}

	engine := discovery.New(embedClient, source, index, crawlLedger, recordStore, discovery.Config{
		SimilarResults: cfg.Discovery.SimilarResults,
		Workers:        cfg.Discovery.Workers,
	})
	return engine, recordStore, nil
}

// newSearchOrchestrator wires the query-answering pipeline.
func newSearchOrchestrator(cfg config.Config) (*search.Orchestrator, error) {
	llmClient, err := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	exaClient, err := newExaClient(cfg)
	if err != nil {
		return nil, err
	}

	return search.New(llmClient, exaClient, search.Config{
		SearchResults: cfg.Search.Results,
		SelectLinks:   cfg.Search.SelectLinks,
	}), nil
}
