// Package executor runs validated sub-queries against their target
// databases in parallel. One slow or broken database never takes down the
// pipeline: each sub-query produces its own result or its own failure.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/connector"
	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/security"
)

// ParallelExecutor fans validated intents out to their connectors, one
// goroutine per intent, and collects per-database results.
type ParallelExecutor struct {
	registry *connector.Registry
	masker   *security.DataMasker
	audit    *security.AuditLogger
}

func New(registry *connector.Registry, masker *security.DataMasker, audit *security.AuditLogger) *ParallelExecutor {
	return &ParallelExecutor{registry: registry, masker: masker, audit: audit}
}

// Execute runs every validated intent concurrently. Failed or unvalidated
// intents still get a result entry carrying their failure reason, so the
// merger can attribute every source. Results are keyed by database id.
func (e *ParallelExecutor) Execute(ctx context.Context, intents []models.DatabaseQueryIntent, maxRows int, timeout time.Duration) map[string]*models.QueryExecutionResult {
	var results sync.Map
	var wg sync.WaitGroup

	for _, intent := range intents {
		if intent.Status != models.SubQueryValidated {
			results.Store(intent.DatabaseID, &models.QueryExecutionResult{
				DatabaseID:   intent.DatabaseID,
				SQL:          intent.SQL,
				Success:      false,
				ErrorMessage: failureReason(intent),
			})
			continue
		}

		wg.Add(1)
		go func(intent models.DatabaseQueryIntent) {
			defer wg.Done()
			results.Store(intent.DatabaseID, e.runOne(ctx, intent, maxRows, timeout))
		}(intent)
	}
	wg.Wait()

	out := make(map[string]*models.QueryExecutionResult)
	results.Range(func(k, v any) bool {
		out[k.(string)] = v.(*models.QueryExecutionResult)
		return true
	})
	return out
}

func (e *ParallelExecutor) runOne(ctx context.Context, intent models.DatabaseQueryIntent, maxRows int, timeout time.Duration) *models.QueryExecutionResult {
	conn, err := e.registry.Get(intent.DatabaseID)
	if err != nil {
		return failed(intent, err.Error())
	}

	// The request's bounds never exceed the connection's configured caps.
	limits := e.registry.LimitsFor(intent.DatabaseID)
	if limits.MaxRows > 0 && limits.MaxRows < maxRows {
		maxRows = limits.MaxRows
	}
	if limits.Timeout > 0 && limits.Timeout < timeout {
		timeout = limits.Timeout
	}

	start := time.Now()
	res, err := conn.ExecuteReadOnly(ctx, intent.SQL, maxRows, timeout)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		log.Warn().
			Str("database", intent.DatabaseID).
			Err(err).
			Int64("duration_ms", elapsed).
			Msg("sub-query failed")
		e.audit.LogSubQuery(intent.DatabaseID, intent.SQL, "", 0, elapsed, false, err.Error())
		return failed(intent, err.Error())
	}

	if e.masker != nil {
		res.Rows = e.masker.MaskRows(res.Rows)
	}
	e.audit.LogSubQuery(intent.DatabaseID, intent.SQL, "", res.RowCount, elapsed, true, "")

	log.Debug().
		Str("database", intent.DatabaseID).
		Int("rows", res.RowCount).
		Int64("duration_ms", elapsed).
		Msg("sub-query done")
	return res
}

func failed(intent models.DatabaseQueryIntent, msg string) *models.QueryExecutionResult {
	return &models.QueryExecutionResult{
		DatabaseID:   intent.DatabaseID,
		SQL:          intent.SQL,
		Success:      false,
		ErrorMessage: msg,
	}
}

func failureReason(intent models.DatabaseQueryIntent) string {
	if intent.StatusReason != "" {
		return intent.StatusReason
	}
	return fmt.Sprintf("sub-query not validated (status %s)", intent.Status)
}
