package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ConnectionConfig declares one federated database target.
type ConnectionConfig struct {
	ID      string `json:"id"`
	Dialect string `json:"dialect"` // postgres | mysql | sqlite | sqlserver | bigquery
	DSN     string `json:"dsn,omitempty"`

	// BigQuery only
	ProjectID       string `json:"project_id,omitempty"`
	DatasetID       string `json:"dataset_id,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	Location        string `json:"location,omitempty"`

	MaxRows    int  `json:"max_rows,omitempty"`
	TimeoutSec int  `json:"timeout_sec,omitempty"`
	Disabled   bool `json:"disabled,omitempty"`
}

// RoutingConfig holds the calibration constants of the classifier and
// routing contract. The defaults are carried from the source system with no
// documented derivation; they are config fields so they can be tuned
// empirically rather than recompiled.
type RoutingConfig struct {
	ConfidenceLow  float64 `json:"confidence_low"`  // below: document search only
	ConfidenceHigh float64 `json:"confidence_high"` // above: database path only

	HeuristicScoreCutoff     int `json:"heuristic_score_cutoff"`
	HeuristicScoreCutoffLong int `json:"heuristic_score_cutoff_long"`
	ShortQueryMaxTokens      int `json:"short_query_max_tokens"`
	ShortQueryMaxChars       int `json:"short_query_max_chars"`
	MinSearchTokens          int `json:"min_search_tokens"`
	MaxSearchTokens          int `json:"max_search_tokens"`
}

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// AI / LLM
	AnthropicAPIKey  string   `json:"anthropic_api_key"`
	AnthropicBaseURL string   `json:"anthropic_base_url"`
	ModelFallbacks   []string `json:"model_fallbacks"` // tried in order
	LLMMaxRetries    int      `json:"llm_max_retries"`
	LLMTimeoutSec    int      `json:"llm_timeout_sec"`

	// Federated databases
	Connections []ConnectionConfig `json:"connections"`

	// Schema catalog
	SchemaCacheTTLSec  int `json:"schema_cache_ttl_sec"`
	SchemaSampleRows   int `json:"schema_sample_rows"`
	SchemaSampleTables int `json:"schema_sample_tables"`

	// Document search (Elasticsearch)
	ElasticsearchEnabled     bool     `json:"elasticsearch_enabled"`
	ElasticsearchAddresses   []string `json:"elasticsearch_addresses"`
	ElasticsearchUser        string   `json:"elasticsearch_user"`
	ElasticsearchPassword    string   `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool     `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int      `json:"elasticsearch_max_retries"`
	ElasticsearchIndex       string   `json:"elasticsearch_index"`

	// Routing / classification calibration
	Routing RoutingConfig `json:"routing"`

	// Security
	EnableDataMasking   bool     `json:"enable_data_masking"`
	EnablePIIDetection  bool     `json:"enable_pii_detection"`
	EnableAuditLogging  bool     `json:"enable_audit_logging"`
	SensitiveColumns    []string `json:"sensitive_columns"`
	PIIKeywords         []string `json:"pii_keywords"`
	MaxQueryBytesBilled int64    `json:"max_query_bytes_billed"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:               DefaultHost,
		Port:               DefaultPort,
		Environment:        DefaultEnvironment,
		APIPrefix:          DefaultAPIPrefix,
		LogLevel:           DefaultLogLevel,
		CORSOrigins:        DefaultCORSOrigins,
		APIKeyHeader:       "X-API-Key",
		EnableAuth:         true,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		ModelFallbacks:     DefaultModelFallbacks,
		LLMMaxRetries:      DefaultLLMMaxRetries,
		LLMTimeoutSec:      DefaultLLMTimeoutSec,
		SchemaCacheTTLSec:  DefaultSchemaCacheTTLSec,
		SchemaSampleRows:   DefaultSchemaSampleRows,
		SchemaSampleTables: DefaultSchemaSampleTables,

		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchIndex:       DefaultElasticsearchIndex,

		Routing: RoutingConfig{
			ConfidenceLow:            DefaultConfidenceLow,
			ConfidenceHigh:           DefaultConfidenceHigh,
			HeuristicScoreCutoff:     DefaultHeuristicScoreCutoff,
			HeuristicScoreCutoffLong: DefaultHeuristicScoreCutoffLong,
			ShortQueryMaxTokens:      DefaultShortQueryMaxTokens,
			ShortQueryMaxChars:       DefaultShortQueryMaxChars,
			MinSearchTokens:          DefaultMinSearchTokens,
			MaxSearchTokens:          DefaultMaxSearchTokens,
		},

		EnableDataMasking:   true,
		EnablePIIDetection:  true,
		EnableAuditLogging:  true,
		SensitiveColumns:    DefaultSensitiveColumns,
		PIIKeywords:         DefaultPIIKeywords,
		MaxQueryBytesBilled: DefaultMaxQueryBytesBilled,
	}

	if path := getEnv("QUERYFED_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	for i := range cfg.Connections {
		c := &cfg.Connections[i]
		if c.MaxRows <= 0 {
			c.MaxRows = DefaultConnectionMaxRows
		}
		if c.TimeoutSec <= 0 {
			c.TimeoutSec = DefaultConnectionTimeoutSec
		}
	}

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("QUERYFED_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("QUERYFED_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("QUERYFED_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("QUERYFED_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("QUERYFED_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("ELASTICSEARCH_ENABLED", ""); v != "" {
		cfg.ElasticsearchEnabled = v == "true" || v == "1"
	}
	if v := getEnv("ELASTICSEARCH_ADDRESSES", ""); v != "" {
		cfg.ElasticsearchAddresses = strings.Split(v, ",")
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("ELASTICSEARCH_INDEX", ""); v != "" {
		cfg.ElasticsearchIndex = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
