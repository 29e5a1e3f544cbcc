// Package dialect holds the per-vendor SQL strategies: synthesis prompt
// construction, syntax validation, and row-limit formatting.
package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/queryfed/queryfed/internal/models"
)

// Structural ceilings embedded in every synthesis prompt. One statement may
// not exceed these regardless of vendor.
const (
	MaxJoins           = 2
	MaxWherePredicates = 2
	MaxOrderByColumns  = 1
)

// PromptInput is everything a strategy needs to build one synthesis prompt:
// the whitelisted schema subset, the sub-intent, and the user-text keywords
// that match no known column (forbidden from filter predicates).
type PromptInput struct {
	Snapshot          *models.SchemaSnapshot // already restricted to RequiredTables
	Intent            models.DatabaseQueryIntent
	ForbiddenKeywords []string
	CrossDatabaseJoin bool
	MaxRows           int
}

// Strategy is the per-vendor contract.
type Strategy interface {
	Name() string
	BuildSystemPrompt(in PromptInput) string
	ValidateSyntax(sql string) error
	LimitClause(n int) string
	// EnsureLimit appends the vendor's row-limit clause when the
	// statement doesn't already carry one.
	EnsureLimit(sql string, n int) string
}

// ForDialect returns the strategy registered for a vendor name.
func ForDialect(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "sqlserver", "mssql":
		return SQLServer{}, nil
	case "bigquery":
		return BigQuery{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", name)
}

// buildPrompt renders the shared prompt contract; strategies contribute
// their vendor notes and limit syntax.
func buildPrompt(vendor, vendorNotes string, in PromptInput, limitClause string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert %s engineer. Write exactly ONE read-only SQL statement answering the task below.\n\n", vendor)

	sb.WriteString("ALLOWED TABLES AND COLUMNS (nothing else may appear in the SQL):\n")
	for _, t := range in.Snapshot.Tables {
		fmt.Fprintf(&sb, "- %s(", t.Name)
		for i, c := range t.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s %s", c.Name, c.Type)
		}
		sb.WriteString(")\n")
	}

	if hints := joinHints(in.Snapshot); len(hints) > 0 {
		sb.WriteString("\nJOIN HINTS (foreign keys):\n")
		for _, h := range hints {
			sb.WriteString("- " + h + "\n")
		}
	}

	if samples := sampleBlock(in.Snapshot); samples != "" {
		sb.WriteString("\nSAMPLE ROWS (for value formats only, never for answers):\n")
		sb.WriteString(samples)
	}

	if len(in.ForbiddenKeywords) > 0 {
		sorted := append([]string(nil), in.ForbiddenKeywords...)
		sort.Strings(sorted)
		sb.WriteString("\nFORBIDDEN: the following user words match no known column and MUST NOT appear in WHERE or LIKE predicates: ")
		sb.WriteString(strings.Join(sorted, ", "))
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, `
RULES:
1. SELECT statements only. No DDL, DML, or temp objects.
2. At most %d joins, at most %d WHERE predicates, at most %d ORDER BY column.
3. End the statement with: %s
4. Reference only the allowed tables and columns above.
`, MaxJoins, MaxWherePredicates, MaxOrderByColumns, limitClause)

	if in.CrossDatabaseJoin {
		sb.WriteString("5. This database holds only part of the answer. If a requested metric does not exist here, project the joinable foreign key plus one descriptive column instead of aggregating or guessing, so rows can be joined across databases later.\n")
	}

	if vendorNotes != "" {
		sb.WriteString("\nVENDOR NOTES:\n" + vendorNotes + "\n")
	}

	fmt.Fprintf(&sb, "\nTASK: %s\n", in.Intent.Purpose)
	sb.WriteString("Reply with the SQL statement only, inside a ```sql code block.\n")
	return sb.String()
}

func joinHints(snap *models.SchemaSnapshot) []string {
	var hints []string
	for _, t := range snap.Tables {
		for _, fk := range t.ForeignKeys {
			hints = append(hints, fmt.Sprintf("%s.%s = %s.%s",
				t.Name, fk.Column, fk.ReferencedTable, fk.ReferencedColumn))
		}
	}
	return hints
}

func sampleBlock(snap *models.SchemaSnapshot) string {
	var sb strings.Builder
	for _, t := range snap.Tables {
		if len(t.SampleRows) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "%s:\n", t.Name)
		for _, row := range t.SampleRows {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			parts := make([]string, 0, len(keys))
			for _, k := range keys {
				parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
			}
			sb.WriteString("  " + strings.Join(parts, ", ") + "\n")
		}
	}
	return sb.String()
}
