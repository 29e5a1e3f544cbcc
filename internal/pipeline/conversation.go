package pipeline

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/models"
)

const converseSystemPrompt = `You are the conversational side of a data assistant. Reply briefly and warmly. If the user seems to want data, suggest asking a concrete question about the connected databases. Never invent data.`

// Smalltalk caught by the heuristic pass is answered from a fixed set, so a
// plain greeting costs zero model calls end to end.
var cannedReplies = []string{
	"Hi there! Ask me anything about your connected data.",
	"Hello! What would you like to look up?",
	"Hey! I can answer questions about your databases and documents.",
}

func cannedReply(query string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return cannedReplies[h.Sum32()%uint32(len(cannedReplies))]
}

// conversationReply picks the cheapest reply available: the model's own
// direct answer from classification, a canned line for heuristic
// smalltalk, or a dedicated conversational call.
func (p *Pipeline) conversationReply(ctx context.Context, query string, history []models.HistoryEntry, cls *models.Classification) string {
	if cls.DirectAnswer != "" {
		return cls.DirectAnswer
	}
	if cls.HeuristicOnly {
		return cannedReply(query)
	}
	return p.converse(ctx, query, history, converseSystemPrompt)
}

func (p *Pipeline) converse(ctx context.Context, query string, history []models.HistoryEntry, system string) string {
	if system == "" {
		system = converseSystemPrompt
	}
	var sb strings.Builder
	for _, h := range history {
		sb.WriteString(h.Role)
		sb.WriteString(": ")
		sb.WriteString(h.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("user: ")
	sb.WriteString(query)

	reply, err := p.gen.Generate(ctx, system, sb.String())
	if err != nil {
		log.Warn().Err(err).Msg("conversational reply failed, using canned line")
		return cannedReply(query)
	}
	return strings.TrimSpace(reply)
}
