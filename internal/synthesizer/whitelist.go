package synthesizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/queryfed/queryfed/internal/models"
)

// SQL vocabulary that may appear in a statement without being a schema
// identifier.
var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "OUTER": true,
	"FULL": true, "CROSS": true, "ON": true, "AND": true, "OR": true,
	"NOT": true, "IN": true, "EXISTS": true, "BETWEEN": true,
	"LIKE": true, "ILIKE": true, "IS": true, "NULL": true,
	"ORDER": true, "BY": true, "GROUP": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "TOP": true, "FETCH": true,
	"FIRST": true, "NEXT": true, "ROWS": true, "ONLY": true,
	"ASC": true, "DESC": true, "DISTINCT": true, "AS": true,
	"WITH": true, "CASE": true, "WHEN": true, "THEN": true,
	"ELSE": true, "END": true, "COUNT": true, "SUM": true,
	"AVG": true, "MIN": true, "MAX": true, "ARRAY_AGG": true,
	"STRING_AGG": true, "GROUP_CONCAT": true, "COALESCE": true,
	"CAST": true, "EXTRACT": true, "DATE": true, "INTERVAL": true,
	"YEAR": true, "MONTH": true, "DAY": true, "TRUE": true,
	"FALSE": true, "ALL": true, "UNION": true, "ROUND": true,
	"LOWER": true, "UPPER": true, "TRIM": true, "SUBSTR": true,
	"CONCAT": true, "LENGTH": true, "ABS": true, "NULLIF": true,
}

var (
	reTableRef   = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([\w.\x60"\[\]]+)`)
	reCTEName    = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s+AS\s*\(`)
	reIdentifier = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	reStringLit  = regexp.MustCompile(`'[^']*'`)
)

// checkWhitelist enforces the hallucination guard: every table referenced
// after FROM/JOIN must be in RequiredTables, every bare identifier must be
// a known table, column, alias, or SQL keyword, and no forbidden user
// keyword may appear inside WHERE/LIKE predicates.
func checkWhitelist(sql string, snap *models.SchemaSnapshot, requiredTables, forbidden []string) error {
	allowedTables := make(map[string]bool, len(requiredTables))
	for _, t := range requiredTables {
		allowedTables[strings.ToLower(t)] = true
	}

	allowedColumns := make(map[string]bool)
	for _, tname := range requiredTables {
		if tbl := snap.Table(tname); tbl != nil {
			for _, c := range tbl.Columns {
				allowedColumns[strings.ToLower(c.Name)] = true
			}
		}
	}

	// CTE names act as table refs for the rest of the statement.
	aliases := map[string]bool{}
	for _, m := range reCTEName.FindAllStringSubmatch(sql, -1) {
		aliases[strings.ToLower(m[1])] = true
	}

	// Pass 1: table references. A snapshot may name tables bare ("orders")
	// or dataset-qualified ("sales.orders", BigQuery); either form of the
	// ref must match either form of the whitelist entry.
	for _, m := range reTableRef.FindAllStringSubmatch(sql, -1) {
		ref := strings.Trim(m[1], "`\"[]")
		lowRef := strings.ToLower(ref)
		if aliases[lowRef] {
			continue
		}
		parts := strings.Split(ref, ".")
		table := parts[len(parts)-1]
		if !allowedTables[lowRef] && !allowedTables[strings.ToLower(table)] {
			return fmt.Errorf("table %q is not in the whitelist", ref)
		}
		// segments of a validated ref are fine in pass 2
		for _, p := range parts {
			aliases[strings.ToLower(p)] = true
		}
	}

	// Collect aliases: "FROM orders o", "JOIN customers AS c".
	for _, m := range regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+[\w.\x60"\[\]]+\s+(?:AS\s+)?([A-Za-z_][A-Za-z0-9_]*)`).FindAllStringSubmatch(sql, -1) {
		al := strings.ToUpper(m[1])
		if !sqlKeywords[al] {
			aliases[strings.ToLower(m[1])] = true
		}
	}
	// Projection aliases: "... AS total".
	for _, m := range regexp.MustCompile(`(?i)\bAS\s+([A-Za-z_][A-Za-z0-9_]*)`).FindAllStringSubmatch(sql, -1) {
		aliases[strings.ToLower(m[1])] = true
	}

	// Pass 2: every bare identifier outside string literals must be known.
	stripped := reStringLit.ReplaceAllString(sql, "''")
	for _, id := range reIdentifier.FindAllString(stripped, -1) {
		low := strings.ToLower(id)
		if sqlKeywords[strings.ToUpper(id)] || allowedTables[low] || allowedColumns[low] || aliases[low] {
			continue
		}
		return fmt.Errorf("identifier %q matches no whitelisted table or column", id)
	}

	// Pass 3: forbidden user keywords must not appear in filter predicates,
	// including inside string literals. A hallucinated LIKE '%keyword%' is
	// the exact failure mode this guards against.
	lowSQL := strings.ToLower(sql)
	if idx := indexFilterStart(lowSQL); idx != -1 {
		pred := lowSQL[idx:]
		for _, kw := range forbidden {
			if kw != "" && strings.Contains(pred, strings.ToLower(kw)) {
				return fmt.Errorf("keyword %q matches no known column and may not appear in a filter predicate", kw)
			}
		}
	}

	return nil
}

func indexFilterStart(lowSQL string) int {
	where := strings.Index(lowSQL, " where ")
	having := strings.Index(lowSQL, " having ")
	switch {
	case where == -1:
		return having
	case having == -1:
		return where
	case where < having:
		return where
	default:
		return having
	}
}
