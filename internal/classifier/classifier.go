// Package classifier decides whether a raw query is smalltalk or a data
// request. A pure heuristic pass resolves the clear cases; only ambiguous
// queries cost an AI call.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/aijson"
	"github.com/queryfed/queryfed/internal/config"
	"github.com/queryfed/queryfed/internal/llm"
	"github.com/queryfed/queryfed/internal/models"
)

// Command is a slash command recognized before classification. Commands
// bypass both passes entirely.
type Command string

const (
	CommandNone              Command = ""
	CommandNewConversation   Command = "new"
	CommandForceConversation Command = "chat"
)

// ParseCommand recognizes the supported slash commands and returns the
// remaining query text.
func ParseCommand(query string) (Command, string) {
	trimmed := strings.TrimSpace(query)
	switch {
	case trimmed == "/new" || strings.HasPrefix(trimmed, "/new "):
		return CommandNewConversation, strings.TrimSpace(strings.TrimPrefix(trimmed, "/new"))
	case trimmed == "/chat" || strings.HasPrefix(trimmed, "/chat "):
		return CommandForceConversation, strings.TrimSpace(strings.TrimPrefix(trimmed, "/chat"))
	}
	return CommandNone, trimmed
}

// Classifier runs the two-stage intent decision.
type Classifier struct {
	gen     llm.Generator
	routing config.RoutingConfig
}

func New(gen llm.Generator, routing config.RoutingConfig) *Classifier {
	return &Classifier{gen: gen, routing: routing}
}

// Classify decides Conversation vs. Information for a raw query. The
// history snippet, when present, is passed to the AI pass for context. A
// query that cannot be tokenized at all is the one catastrophic failure
// that surfaces as an error.
func (c *Classifier) Classify(ctx context.Context, query string, history []models.HistoryEntry) (*models.Classification, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", models.ErrClassification)
	}

	decision, signals := Heuristic(query, c.routing)
	switch decision {
	case DecisionInformation:
		return &models.Classification{
			Kind:          models.IntentInformation,
			Tokens:        Tokenize(query),
			HeuristicOnly: true,
		}, nil
	case DecisionConversation:
		return &models.Classification{
			Kind:          models.IntentConversation,
			HeuristicOnly: true,
		}, nil
	}

	log.Debug().Int("score", signals.Score()).Str("query", truncate(query, 60)).
		Msg("heuristic pass inconclusive, invoking model")

	return c.aiClassify(ctx, query, history)
}

func (c *Classifier) aiClassify(ctx context.Context, query string, history []models.HistoryEntry) (*models.Classification, error) {
	reply, err := c.gen.Generate(ctx, classifySystemPrompt(c.routing), classifyUserPrompt(query, history))
	if err != nil {
		// Availability over precision: the conversation path is cheap
		// and safe, the information path triggers database load.
		log.Warn().Err(err).Msg("ai classification unavailable, degrading to conversation")
		return &models.Classification{Kind: models.IntentConversation}, nil
	}

	verdict, outcome := parseVerdict(reply)
	if outcome == aijson.ParseFailed {
		log.Warn().Str("reply", truncate(reply, 120)).Msg("unparseable classification reply, degrading to conversation")
		return &models.Classification{Kind: models.IntentConversation}, nil
	}

	if verdict.Type == "INFORMATION" || dataRequestShape(query) {
		tokens := normalizeTokens(verdict.Tokens)
		if len(tokens) == 0 {
			tokens = Tokenize(query)
		}
		return &models.Classification{
			Kind:   models.IntentInformation,
			Tokens: tokens,
		}, nil
	}

	return &models.Classification{
		Kind:         models.IntentConversation,
		DirectAnswer: strings.TrimSpace(verdict.Answer),
	}, nil
}

func classifySystemPrompt(rc config.RoutingConfig) string {
	return fmt.Sprintf(`You classify user queries for a data assistant.

Reply with STRICT JSON only, no prose, matching:
{"type": "CONVERSATION" or "INFORMATION", "tokens": [...], "answer": "..."}

For INFORMATION queries the tokens array MUST:
- use only words taken from the query itself, keeping their language and casing rules (no translation)
- include every interrogative/question word present in the query
- include grammatical variants of the key terms (singular/plural, stems)
- contain at least %d and up to %d entries

For CONVERSATION queries, put a short friendly reply in "answer" and leave tokens empty.`,
		rc.MinSearchTokens, rc.MaxSearchTokens)
}

func classifyUserPrompt(query string, history []models.HistoryEntry) string {
	var sb strings.Builder
	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, h := range history {
			sb.WriteString(h.Role)
			sb.WriteString(": ")
			sb.WriteString(truncate(h.Content, 200))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Query: ")
	sb.WriteString(query)
	return sb.String()
}

func normalizeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		low := strings.ToLower(strings.TrimSpace(t))
		if low == "" {
			continue
		}
		if _, ok := seen[low]; ok {
			continue
		}
		seen[low] = struct{}{}
		out = append(out, low)
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
