package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditLogger records pipeline events with hashed identifiers so logs never
// carry raw queries, SQL, or API keys.
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogSubQuery records one sub-query execution outcome.
func (a *AuditLogger) LogSubQuery(databaseID, sql, apiKey string, rowCount int, executionTimeMs int64, success bool, errMsg string) {
	if !a.enabled {
		return
	}
	evt := log.Info().
		Str("event", "subquery_audit").
		Str("database", databaseID).
		Str("sql_hash", hashStr(sql)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Int("row_count", rowCount).
		Int64("execution_time_ms", executionTimeMs).
		Bool("success", success)
	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// LogPipeline records one full federated request.
func (a *AuditLogger) LogPipeline(query, apiKey, bucket string, databases, documents int, executionTimeMs int64) {
	if !a.enabled {
		return
	}
	log.Info().
		Str("event", "pipeline_audit").
		Str("query_hash", hashStr(query)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Str("confidence_bucket", bucket).
		Int("database_sources", databases).
		Int("document_sources", documents).
		Int64("execution_time_ms", executionTimeMs).
		Msg("pipeline audit")
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
