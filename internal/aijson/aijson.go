// Package aijson decodes JSON out of untrusted generative-model replies.
// Models wrap JSON in markdown fences, prepend prose, or return plain text;
// shape is never trusted without parsing.
package aijson

import (
	"encoding/json"
	"strings"
)

// Outcome tags how much structure survived the reply.
type Outcome int

const (
	ParsedStructured Outcome = iota
	ParsedPlainText
	ParseFailed
)

// Decode strips markdown fences, extracts the outermost {...} substring,
// and unmarshals into v. ParsedPlainText means no JSON object was found but
// the raw text is available for keyword scanning; ParseFailed means the
// reply was empty.
func Decode(raw string, v any) Outcome {
	if strings.TrimSpace(raw) == "" {
		return ParseFailed
	}
	body := StripFences(raw)
	obj := OutermostObject(body)
	if obj == "" {
		return ParsedPlainText
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return ParsedPlainText
	}
	return ParsedStructured
}

// StripFences removes a surrounding ``` block, including a language tag
// line like "json".
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl != -1 {
		first := strings.TrimSpace(s[:nl])
		if first != "" && !strings.HasPrefix(first, "{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// OutermostObject returns the substring from the first '{' to the last '}',
// or "" when the text holds no object.
func OutermostObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}
