package security

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

const bytesPerGB = 1_000_000_000.0
const bigQueryCostPerTB = 5.0 // USD

// ByteBudget caps per-query bytes processed on scan-billed backends
// (BigQuery). Row-count caps cover the other vendors.
type ByteBudget struct {
	maxBytes int64
}

func NewByteBudget(maxBytes int64) *ByteBudget {
	return &ByteBudget{maxBytes: maxBytes}
}

// Check returns a rejection message when a query scanned more than the
// configured budget.
func (b *ByteBudget) Check(bytesProcessed int64) (bool, string) {
	if bytesProcessed <= b.maxBytes {
		return true, ""
	}
	return false, fmt.Sprintf(
		"query byte budget exceeded: processed %.2fGB, limit %.2fGB",
		float64(bytesProcessed)/bytesPerGB, float64(b.maxBytes)/bytesPerGB,
	)
}

// LogCost records the scan cost of one executed statement.
func (b *ByteBudget) LogCost(databaseID, sql string, bytesProcessed, durationMs int64) {
	processedGB := float64(bytesProcessed) / bytesPerGB
	costUSD := processedGB / 1000.0 * bigQueryCostPerTB

	log.Info().
		Str("event", "query_cost").
		Str("database", databaseID).
		Str("sql_hash", hashStr(sql)[:16]).
		Float64("cost_gb", processedGB).
		Float64("cost_usd", costUSD).
		Int64("duration_ms", durationMs).
		Msg("query cost")
}
