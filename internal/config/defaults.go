package config

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultLLMMaxRetries = 3
	DefaultLLMTimeoutSec = 60

	DefaultSchemaCacheTTLSec  = 300
	DefaultSchemaSampleRows   = 3
	DefaultSchemaSampleTables = 20

	DefaultConnectionMaxRows    = 100
	DefaultConnectionTimeoutSec = 30

	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchIndex      = "documents"

	// Routing contract band edges: above high the database path runs alone,
	// below low only document search runs, in between both run and merge.
	DefaultConfidenceLow  = 0.3
	DefaultConfidenceHigh = 0.7

	// Heuristic classification cutoffs. Long punctuation-bearing queries of
	// six or more tokens use the higher cutoff.
	DefaultHeuristicScoreCutoff     = 3
	DefaultHeuristicScoreCutoffLong = 4
	DefaultShortQueryMaxTokens      = 2
	DefaultShortQueryMaxChars       = 25

	// Token counts the AI-backed classifier is asked to produce.
	DefaultMinSearchTokens = 8
	DefaultMaxSearchTokens = 12

	DefaultMaxQueryBytesBilled = 10_000_000_000 // 10GB, BigQuery only
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultModelFallbacks = []string{
	"claude-sonnet-4-5",
	"claude-haiku-4-5",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "pin", "secret", "private key",
	"access token", "api key", "personal data",
}
