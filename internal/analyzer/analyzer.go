// Package analyzer maps an informational query onto the federated
// databases that plausibly hold its answer. Every table the model names is
// checked against the live schema snapshot; entries that do not exist are
// dropped, never fabricated.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/aijson"
	"github.com/queryfed/queryfed/internal/llm"
	"github.com/queryfed/queryfed/internal/models"
)

// maxColumnsPerTable bounds the schema digest embedded in the prompt.
const maxColumnsPerTable = 16

// Analyzer produces a QueryIntent from tokens plus schema snapshots.
type Analyzer struct {
	gen llm.Generator
}

func New(gen llm.Generator) *Analyzer {
	return &Analyzer{gen: gen}
}

type aiIntent struct {
	Databases []struct {
		DatabaseID string   `json:"database_id"`
		Tables     []string `json:"tables"`
		Purpose    string   `json:"purpose"`
	} `json:"databases"`
	Confidence                float64 `json:"confidence"`
	RequiresCrossDatabaseJoin bool    `json:"requires_cross_database_join"`
}

// Analyze asks the model which databases and tables satisfy the query and
// validates the reply against the snapshots. A model failure yields a
// zero-confidence intent, which the routing contract sends down the
// document-search fallback.
func (a *Analyzer) Analyze(ctx context.Context, query string, tokens []string, snapshots []*models.SchemaSnapshot) (*models.QueryIntent, error) {
	if len(snapshots) == 0 {
		return &models.QueryIntent{Query: query}, nil
	}

	reply, err := a.gen.Generate(ctx, analyzeSystemPrompt(), analyzeUserPrompt(query, tokens, snapshots))
	if err != nil {
		log.Warn().Err(err).Msg("intent analysis unavailable, falling back to document search")
		return &models.QueryIntent{Query: query}, nil
	}

	var ai aiIntent
	if aijson.Decode(reply, &ai) != aijson.ParsedStructured {
		log.Warn().Str("reply", preview(reply)).Msg("unparseable intent reply, falling back to document search")
		return &models.QueryIntent{Query: query}, nil
	}

	intent := &models.QueryIntent{
		Query:                     query,
		Confidence:                clamp01(ai.Confidence),
		RequiresCrossDatabaseJoin: ai.RequiresCrossDatabaseJoin,
	}

	byID := make(map[string]*models.SchemaSnapshot, len(snapshots))
	for _, s := range snapshots {
		byID[s.DatabaseID] = s
	}

	seen := make(map[string]bool, len(ai.Databases))
	for _, db := range ai.Databases {
		// Results are keyed by database id downstream; a duplicate entry
		// would silently overwrite its sibling.
		if seen[db.DatabaseID] {
			log.Warn().Str("database", db.DatabaseID).Msg("model repeated a database entry, dropping duplicate")
			continue
		}
		seen[db.DatabaseID] = true

		snap, ok := byID[db.DatabaseID]
		if !ok {
			log.Warn().Str("database", db.DatabaseID).Msg("model selected unknown database, dropping")
			continue
		}
		tables := validTables(snap, db.Tables)
		if len(tables) == 0 {
			log.Warn().Str("database", db.DatabaseID).Strs("requested", db.Tables).
				Msg("no requested table exists in schema, dropping sub-intent")
			continue
		}
		purpose := strings.TrimSpace(db.Purpose)
		if purpose == "" {
			purpose = query
		}
		intent.Databases = append(intent.Databases, models.DatabaseQueryIntent{
			DatabaseID:     db.DatabaseID,
			RequiredTables: tables,
			Purpose:        purpose,
			Status:         models.SubQueryPending,
		})
	}

	// Cross-database join needs at least two surviving targets.
	if len(intent.Databases) < 2 {
		intent.RequiresCrossDatabaseJoin = false
	}

	log.Debug().
		Float64("confidence", intent.Confidence).
		Int("databases", len(intent.Databases)).
		Bool("cross_join", intent.RequiresCrossDatabaseJoin).
		Msg("intent analyzed")

	return intent, nil
}

// validTables keeps only tables present in the snapshot, preserving order
// and deduplicating.
func validTables(snap *models.SchemaSnapshot, requested []string) []string {
	seen := make(map[string]struct{}, len(requested))
	var out []string
	for _, t := range requested {
		name := strings.TrimSpace(t)
		if name == "" {
			continue
		}
		low := strings.ToLower(name)
		if _, dup := seen[low]; dup {
			continue
		}
		seen[low] = struct{}{}
		if tbl := snap.Table(name); tbl != nil {
			out = append(out, tbl.Name)
		}
	}
	return out
}

func analyzeSystemPrompt() string {
	return `You route analytical questions across several independent databases.

Reply with STRICT JSON only, matching:
{"databases": [{"database_id": "...", "tables": ["..."], "purpose": "..."}],
 "confidence": 0.0-1.0,
 "requires_cross_database_join": true|false}

Rules:
- Select a database only when its tables plausibly hold part of the answer.
- Name only tables that appear in the schema listing for that database.
- "purpose" states in one sentence what that database must contribute.
- "confidence" is your certainty that the selected databases and tables satisfy the query.
- Set requires_cross_database_join when the answer needs rows from more than one database combined.
- An empty databases array with low confidence is the correct answer for document-style questions.`
}

func analyzeUserPrompt(query string, tokens []string, snapshots []*models.SchemaSnapshot) string {
	var sb strings.Builder
	sb.WriteString("AVAILABLE DATABASES:\n")
	for _, snap := range snapshots {
		fmt.Fprintf(&sb, "\n%s (dialect %s):\n", snap.DatabaseID, snap.Dialect)
		for _, t := range snap.Tables {
			cols := t.Columns
			if len(cols) > maxColumnsPerTable {
				cols = cols[:maxColumnsPerTable]
			}
			names := make([]string, len(cols))
			for i, c := range cols {
				names[i] = c.Name
			}
			fmt.Fprintf(&sb, "  %s(%s)\n", t.Name, strings.Join(names, ", "))
		}
	}
	if len(tokens) > 0 {
		sb.WriteString("\nSEARCH TOKENS: " + strings.Join(tokens, ", ") + "\n")
	}
	sb.WriteString("\nQUERY: " + query + "\n")
	return sb.String()
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func preview(s string) string {
	if len(s) <= 120 {
		return s
	}
	return s[:120] + "..."
}
