// Package synthesizer turns one per-database sub-intent into one validated
// read-only SQL statement using the matching dialect strategy. Validation
// failures mark the sub-query failed; a failed sub-query is never executed.
package synthesizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/queryfed/queryfed/internal/dialect"
	"github.com/queryfed/queryfed/internal/llm"
	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/schema"
	"github.com/queryfed/queryfed/internal/security"
)

type Synthesizer struct {
	gen     llm.Generator
	catalog schema.Catalog
	guard   *security.SQLGuard
}

func New(gen llm.Generator, catalog schema.Catalog, guard *security.SQLGuard) *Synthesizer {
	return &Synthesizer{gen: gen, catalog: catalog, guard: guard}
}

// SynthesizeAll fills in SQL for every pending sub-intent concurrently, one
// task per database. Each task writes only its own slot; a failure marks
// that sub-query failed and never blocks siblings.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, intent *models.QueryIntent, tokens []string, maxRows int) {
	g, gctx := errgroup.WithContext(ctx)
	for i := range intent.Databases {
		i := i
		g.Go(func() error {
			s.synthesize(gctx, &intent.Databases[i], intent.RequiresCrossDatabaseJoin, tokens, maxRows)
			return nil
		})
	}
	_ = g.Wait() // tasks record their own failures, never return errors
}

func (s *Synthesizer) synthesize(ctx context.Context, sub *models.DatabaseQueryIntent, crossJoin bool, tokens []string, maxRows int) {
	snap, err := s.catalog.GetSchema(ctx, sub.DatabaseID)
	if err != nil {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = fmt.Sprintf("schema unavailable: %v", err)
		return
	}

	subset := restrict(snap, sub.RequiredTables)
	if len(subset.Tables) == 0 {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = "no whitelisted table survives schema validation"
		return
	}

	strategy, err := dialect.ForDialect(snap.Dialect)
	if err != nil {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = err.Error()
		return
	}

	forbidden := forbiddenKeywords(subset, tokens)
	prompt := strategy.BuildSystemPrompt(dialect.PromptInput{
		Snapshot:          subset,
		Intent:            *sub,
		ForbiddenKeywords: forbidden,
		CrossDatabaseJoin: crossJoin,
		MaxRows:           maxRows,
	})

	reply, err := s.gen.Generate(ctx, prompt, sub.Purpose)
	if err != nil {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = fmt.Sprintf("synthesis failed: %v", err)
		return
	}

	sql := extractSQL(reply)
	if sql == "" {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = "model reply contains no SQL statement"
		return
	}
	sql = strategy.EnsureLimit(sql, maxRows)

	if msg := s.guard.Check(sql); msg != "" {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = msg
		return
	}
	if err := strategy.ValidateSyntax(sql); err != nil {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = fmt.Sprintf("%s syntax: %v", strategy.Name(), err)
		return
	}
	if err := checkWhitelist(sql, subset, sub.RequiredTables, forbidden); err != nil {
		sub.Status = models.SubQueryFailed
		sub.StatusReason = err.Error()
		return
	}

	sub.SQL = sql
	sub.Status = models.SubQueryValidated
	log.Debug().Str("database", sub.DatabaseID).Str("dialect", strategy.Name()).
		Msg("sub-query validated")
}

// restrict returns a snapshot containing only the whitelisted tables.
func restrict(snap *models.SchemaSnapshot, tables []string) *models.SchemaSnapshot {
	out := &models.SchemaSnapshot{
		DatabaseID:  snap.DatabaseID,
		Dialect:     snap.Dialect,
		RefreshedAt: snap.RefreshedAt,
	}
	for _, name := range tables {
		if t := snap.Table(name); t != nil {
			out.Tables = append(out.Tables, *t)
		}
	}
	return out
}

// forbiddenKeywords returns the user-text tokens that match no table or
// column of the whitelisted subset. The prompt lists them as forbidden and
// validation rejects statements filtering on them.
func forbiddenKeywords(subset *models.SchemaSnapshot, tokens []string) []string {
	known := make(map[string]bool)
	for _, t := range subset.Tables {
		known[strings.ToLower(t.Name)] = true
		for _, c := range t.Columns {
			known[strings.ToLower(c.Name)] = true
		}
	}

	var out []string
	for _, tok := range tokens {
		low := strings.ToLower(tok)
		if len(low) < 3 || stopWords[low] || known[low] {
			continue
		}
		// substring matches cover plural/stem variants of column names
		match := false
		for k := range known {
			if strings.Contains(k, low) || strings.Contains(low, k) {
				match = true
				break
			}
		}
		if !match {
			out = append(out, low)
		}
	}
	return out
}

// stopWords are interrogatives and fillers that never belong in predicates
// but are too generic to forbid by name.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"what": true, "which": true, "when": true, "where": true, "who": true,
	"how": true, "why": true, "show": true, "list": true, "top": true,
	"give": true, "get": true, "find": true, "many": true, "much": true,
	"count": true, "total": true, "all": true, "per": true, "last": true,
}
