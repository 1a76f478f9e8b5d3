package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atlaskb/scout/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Scout: personal discovery and web search pipeline",
	Long: `Scout turns pages you found interesting into new discoveries: it finds
similar content on the web, scores it against your personal knowledge base,
and keeps a ranked feed per user. It also answers ad-hoc questions by
searching the web and aggregating the best sources.

Commands:
  ingest       Run a discovery run for an interest page
  discoveries  List a user's ranked discoveries
  search       Answer a question from the web
  kb           Manage the knowledge base index
  serve        Start the MCP server`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/scout")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// SCOUT_ELASTICSEARCH_ADDRESSES -> elasticsearch.addresses
	viper.SetEnvPrefix("SCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	viper.BindEnv("embeddings.base_url", "SCOUT_EMBEDDINGS_BASE_URL")
	viper.BindEnv("embeddings.api_key", "SCOUT_EMBEDDINGS_API_KEY")
	viper.BindEnv("embeddings.model", "SCOUT_EMBEDDINGS_MODEL")
	viper.BindEnv("embeddings.dimension", "SCOUT_EMBEDDINGS_DIMENSION")
	viper.BindEnv("llm.base_url", "SCOUT_LLM_BASE_URL")
	viper.BindEnv("llm.api_key", "SCOUT_LLM_API_KEY")
	viper.BindEnv("llm.model", "SCOUT_LLM_MODEL")
	viper.BindEnv("exa.base_url", "SCOUT_EXA_BASE_URL")
	viper.BindEnv("exa.api_key", "SCOUT_EXA_API_KEY")
	viper.BindEnv("elasticsearch.addresses", "SCOUT_ELASTICSEARCH_ADDRESSES")
	viper.BindEnv("elasticsearch.index", "SCOUT_ELASTICSEARCH_INDEX")
	viper.BindEnv("elasticsearch.username", "SCOUT_ELASTICSEARCH_USERNAME")
	viper.BindEnv("elasticsearch.password", "SCOUT_ELASTICSEARCH_PASSWORD")
	viper.BindEnv("storage.endpoint", "SCOUT_STORAGE_ENDPOINT")
	viper.BindEnv("storage.bucket", "SCOUT_STORAGE_BUCKET")
	viper.BindEnv("storage.access_key_id", "SCOUT_STORAGE_ACCESS_KEY_ID")
	viper.BindEnv("storage.secret_access_key", "SCOUT_STORAGE_SECRET_ACCESS_KEY")
	viper.BindEnv("content_source.fetcher", "SCOUT_CONTENT_SOURCE_FETCHER")
	viper.BindEnv("discovery.similar_results", "SCOUT_DISCOVERY_SIMILAR_RESULTS")
	viper.BindEnv("discovery.workers", "SCOUT_DISCOVERY_WORKERS")
	viper.BindEnv("mcp.name", "SCOUT_MCP_NAME")
	viper.BindEnv("mcp.version", "SCOUT_MCP_VERSION")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("SCOUT_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
