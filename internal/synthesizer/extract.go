package synthesizer

import (
	"regexp"
	"strings"
)

// extractSQL pulls SQL from model output using four strategies in order:
// 1. ```sql ... ``` code block (preferred)
// 2. generic ``` ... ``` block containing SELECT/WITH
// 3. SELECT/WITH statement spanning multiple lines
// 4. single-line SELECT as last resort
var (
	reCTEBlock    = regexp.MustCompile(`(?is)(WITH\s+\w+\s+AS\s*\(.+?(?:LIMIT\s+\d+|;\s*$|\z))`)
	reSelectBlock = regexp.MustCompile(`(?is)(SELECT\s+.+?FROM\s+.+?(?:LIMIT\s+\d+|;\s*$|\z))`)
	reSingleSQL   = regexp.MustCompile(`(?i)(SELECT\s+\S.+?\bFROM\b\s+\S+)`)
)

func extractSQL(text string) string {
	lower := strings.ToLower(text)
	if idx := strings.Index(lower, "```sql"); idx != -1 {
		body := text[idx+len("```sql"):]
		if len(body) > 0 && body[0] == '\n' {
			body = body[1:]
		}
		if end := strings.Index(body, "```"); end != -1 {
			if sql := strings.TrimSpace(body[:end]); sql != "" {
				return strings.TrimSuffix(sql, ";")
			}
		}
	}

	parts := strings.Split(text, "```")
	for i := 1; i < len(parts); i += 2 {
		candidate := strings.TrimSpace(parts[i])
		// strip a language tag line if present
		if nl := strings.Index(candidate, "\n"); nl != -1 {
			first := strings.ToUpper(strings.TrimSpace(candidate[:nl]))
			if !strings.Contains(first, "SELECT") && !strings.Contains(first, "WITH") {
				candidate = strings.TrimSpace(candidate[nl:])
			}
		}
		up := strings.ToUpper(candidate)
		if strings.HasPrefix(up, "SELECT") || strings.HasPrefix(up, "WITH") {
			return strings.TrimSuffix(strings.TrimSpace(candidate), ";")
		}
	}

	if m := reCTEBlock.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";")
	}
	if m := reSelectBlock.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";")
	}
	if m := reSingleSQL.FindString(text); m != "" {
		return strings.TrimSuffix(strings.TrimSpace(m), ";")
	}
	return ""
}
