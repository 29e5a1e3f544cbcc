package security

import (
	"fmt"
	"strings"

	"regexp"
)

const MaxQueryLength = 2000

// Patterns for prompt injection and smuggled command/code execution. A
// natural-language question has no business containing any of these.
var queryDangerousPatterns = []*regexp.Regexp{
	// Command execution
	regexp.MustCompile(`(?i)\brm\s+-`),
	regexp.MustCompile(`(?i)\brm\s+/`),
	regexp.MustCompile(`(?i)\bcurl\s+`),
	regexp.MustCompile(`(?i)\bwget\s+`),
	regexp.MustCompile(`(?i)\bsudo\s+`),
	regexp.MustCompile(`(?i)\bbash\s+-`),
	regexp.MustCompile(`(?i)\bsh\s+-`),

	// File operations / path traversal
	regexp.MustCompile(`\.\.\/`),
	regexp.MustCompile(`/etc/passwd`),
	regexp.MustCompile(`/etc/shadow`),
	regexp.MustCompile(`id_rsa`),
	regexp.MustCompile(`\.ssh/`),

	// Code execution
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
	regexp.MustCompile(`(?i)system\s*\(`),
	regexp.MustCompile(`(?i)__import__\s*\(`),
	regexp.MustCompile(`(?i)os\.system`),

	// Prompt injection
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)override\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)new\s+context\s*:`),
	regexp.MustCompile(`(?i)instead\s+of\s+the\s+above`),
}

// QueryGuard validates inbound natural-language queries before they reach
// classification or any model call.
type QueryGuard struct{}

func NewQueryGuard() *QueryGuard {
	return &QueryGuard{}
}

type GuardResult struct {
	Valid   bool
	Message string
}

func (g *QueryGuard) Validate(query string) GuardResult {
	if len(query) > MaxQueryLength {
		return GuardResult{
			Message: fmt.Sprintf("query too long: %d chars (max %d)", len(query), MaxQueryLength),
		}
	}
	if strings.TrimSpace(query) == "" {
		return GuardResult{Message: "query cannot be empty"}
	}

	for _, pattern := range queryDangerousPatterns {
		if pattern.MatchString(query) {
			return GuardResult{
				Message: fmt.Sprintf("dangerous pattern detected: %s", pattern.String()),
			}
		}
	}
	return GuardResult{Valid: true, Message: "ok"}
}
