package config

import "time"

// Config holds all application configuration.
type Config struct {
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	LLM           LLM           `mapstructure:"llm"`
	Exa           Exa           `mapstructure:"exa"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Storage       Storage       `mapstructure:"storage"`
	ContentSource ContentSource `mapstructure:"content_source"`
	Crawler       Crawler       `mapstructure:"crawler"`
	Discovery     Discovery     `mapstructure:"discovery"`
	Search        Search        `mapstructure:"search"`
	MCP           MCP           `mapstructure:"mcp"`
}

// Embeddings holds embedding-generation configuration.
type Embeddings struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	Dimension int           `mapstructure:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LLM holds configuration for query refinement and link selection.
type LLM struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Exa holds content-discovery provider configuration.
type Exa struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Elasticsearch holds knowledge-base index configuration.
type Elasticsearch struct {
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	TopK      int      `mapstructure:"top_k"`
}

// Storage holds S3/MinIO object-store configuration. Discovery records and
// the crawl ledger live here.
type Storage struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// ContentSource selects how candidate content is retrieved during discovery
// runs: "exa" uses the provider's contents endpoint, "crawler" fetches each
// URL locally.
type ContentSource struct {
	Fetcher string `mapstructure:"fetcher"`
}

// Crawler holds configuration for the local fallback fetcher.
type Crawler struct {
	Delay     time.Duration `mapstructure:"delay"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Discovery holds tuning for ingestion runs and discovery listings.
type Discovery struct {
	SimilarResults int     `mapstructure:"similar_results"`
	Workers        int     `mapstructure:"workers"`
	MinSimilarity  float64 `mapstructure:"min_similarity"`
	Limit          int     `mapstructure:"limit"`
}

// Search holds tuning for the query-answering pipeline.
type Search struct {
	Results     int `mapstructure:"results"`
	SelectLinks int `mapstructure:"select_links"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Embeddings: Embeddings{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			Dimension: 768,
			Timeout:   30 * time.Second,
		},
		LLM: LLM{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Exa: Exa{
			BaseURL: "https://api.exa.ai",
			Timeout: 30 * time.Second,
		},
		Elasticsearch: Elasticsearch{
			Addresses: []string{"http://localhost:9200"},
			Index:     "scout-kb",
			TopK:      5,
		},
		Storage: Storage{
			Endpoint:        "localhost:9000",
			Bucket:          "scout",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		ContentSource: ContentSource{
			Fetcher: "exa",
		},
		Crawler: Crawler{
			Delay:     1 * time.Second,
			UserAgent: "scout/1.0",
			Timeout:   30 * time.Second,
		},
		Discovery: Discovery{
			SimilarResults: 20,
			Workers:        5,
			MinSimilarity:  0.7,
			Limit:          20,
		},
		Search: Search{
			Results:     10,
			SelectLinks: 5,
		},
		MCP: MCP{
			Name:    "scout",
			Version: "1.0.0",
		},
	}
}
