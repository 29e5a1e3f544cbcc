package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	reLimitClause = regexp.MustCompile(`(?i)\bLIMIT\s+\d+`)
	reTopClause   = regexp.MustCompile(`(?i)\bSELECT\s+TOP\s+\d+`)
	reFetchClause = regexp.MustCompile(`(?i)\bFETCH\s+(FIRST|NEXT)\s+\d+\s+ROWS?\s+ONLY`)
)

// validateCommon holds the vendor-independent syntax rules: read-only verb,
// a FROM clause, balanced parentheses and quotes, single statement.
func validateCommon(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return fmt.Errorf("empty statement")
	}
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	if !strings.Contains(upper, "FROM") {
		return fmt.Errorf("statement has no FROM clause")
	}
	if rest := strings.TrimSpace(strings.TrimSuffix(trimmed, ";")); strings.Contains(rest, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}

	depth := 0
	inSingle, inDouble, inBacktick := false, false, false
	for _, r := range trimmed {
		switch {
		case r == '\'' && !inDouble && !inBacktick:
			inSingle = !inSingle
		case r == '"' && !inSingle && !inBacktick:
			inDouble = !inDouble
		case r == '`' && !inSingle && !inDouble:
			inBacktick = !inBacktick
		case inSingle || inDouble || inBacktick:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced parentheses")
	}
	if inSingle || inDouble || inBacktick {
		return fmt.Errorf("unterminated quoted literal")
	}
	return nil
}

func hasRowLimit(sql string) bool {
	return reLimitClause.MatchString(sql) || reTopClause.MatchString(sql) || reFetchClause.MatchString(sql)
}

func appendClause(sql, clause string) string {
	return strings.TrimSuffix(strings.TrimSpace(sql), ";") + " " + clause
}
