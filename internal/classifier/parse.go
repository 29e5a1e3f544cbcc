package classifier

import (
	"strings"

	"github.com/queryfed/queryfed/internal/aijson"
)

type aiVerdict struct {
	Type   string   `json:"type"`
	Tokens []string `json:"tokens"`
	Answer string   `json:"answer"`
}

// parseVerdict applies the lenient parse chain. When no JSON object
// survives, the raw text is scanned for the literal CONVERSATION /
// INFORMATION verdicts before giving up.
func parseVerdict(raw string) (aiVerdict, aijson.Outcome) {
	var v aiVerdict
	outcome := aijson.Decode(raw, &v)
	if outcome == aijson.ParsedStructured && v.Type != "" {
		v.Type = strings.ToUpper(strings.TrimSpace(v.Type))
		return v, aijson.ParsedStructured
	}

	upper := strings.ToUpper(raw)
	if strings.Contains(upper, "INFORMATION") {
		return aiVerdict{Type: "INFORMATION"}, aijson.ParsedPlainText
	}
	if strings.Contains(upper, "CONVERSATION") {
		return aiVerdict{Type: "CONVERSATION"}, aijson.ParsedPlainText
	}

	return aiVerdict{}, aijson.ParseFailed
}
