// Package merger composes the final answer from database results and
// document chunks. Every contributing source is attributed; failures are
// surfaced as degraded sources rather than dropped.
package merger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/queryfed/queryfed/internal/llm"
	"github.com/queryfed/queryfed/internal/models"
)

const maxRowsInPrompt = 20
const maxChunkExcerpt = 300

// Merger turns raw execution output into one coherent answer.
type Merger struct {
	gen llm.Generator
}

func New(gen llm.Generator) *Merger {
	return &Merger{gen: gen}
}

// Merge builds the answer for one pipeline run. Empty inputs on both sides
// produce an explicit no-data answer, never a hallucinated one.
func (m *Merger) Merge(ctx context.Context, query string, bucket models.ConfidenceBucket, dbResults map[string]*models.QueryExecutionResult, chunks []models.DocumentChunk) (*models.MergedAnswer, error) {
	sources := collectSources(dbResults, chunks)

	if !hasData(dbResults) && len(chunks) == 0 {
		return &models.MergedAnswer{
			Answer:           noDataAnswer(dbResults),
			Sources:          sources,
			ConfidenceBucket: bucket,
		}, nil
	}

	prompt := buildMergePrompt(query, dbResults, chunks)
	answer, err := m.gen.Generate(ctx, mergeSystemPrompt, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("answer composition failed, falling back to summary")
		answer = fallbackAnswer(dbResults, chunks)
	}

	return &models.MergedAnswer{
		Answer:           strings.TrimSpace(answer),
		Sources:          sources,
		ConfidenceBucket: bucket,
	}, nil
}

const mergeSystemPrompt = `You compose answers from query results. You receive a user question, tabular results from one or more databases, and optionally text excerpts from documents.

Rules:
1. Answer ONLY from the provided results. Never invent numbers, names, or facts.
2. If a database failed, mention that its data is unavailable.
3. If only documents are available, say the answer is based on documents alone.
4. Be concise. Lead with the direct answer, then supporting detail.
5. Do not mention SQL, queries, or internal mechanics.`

func buildMergePrompt(query string, dbResults map[string]*models.QueryExecutionResult, chunks []models.DocumentChunk) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n")

	for _, id := range sortedIDs(dbResults) {
		res := dbResults[id]
		sb.WriteString(fmt.Sprintf("\n## Database: %s\n", id))
		if !res.Success {
			sb.WriteString(fmt.Sprintf("UNAVAILABLE: %s\n", res.ErrorMessage))
			continue
		}
		if res.RowCount == 0 {
			sb.WriteString("No matching rows.\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("%d rows", res.RowCount))
		if res.RowCount > maxRowsInPrompt {
			sb.WriteString(fmt.Sprintf(" (showing first %d)", maxRowsInPrompt))
		}
		sb.WriteString(":\n")
		rows := res.Rows
		if len(rows) > maxRowsInPrompt {
			rows = rows[:maxRowsInPrompt]
		}
		data, err := json.Marshal(rows)
		if err != nil {
			sb.WriteString("(rows could not be rendered)\n")
			continue
		}
		sb.Write(data)
		sb.WriteString("\n")
	}

	if len(chunks) > 0 {
		sb.WriteString("\n## Documents\n")
		for i, chunk := range chunks {
			excerpt := chunk.Content
			if len(excerpt) > maxChunkExcerpt {
				excerpt = excerpt[:maxChunkExcerpt] + "..."
			}
			sb.WriteString(fmt.Sprintf("[%d] %s: %s\n", i+1, chunk.Source, excerpt))
		}
	}
	return sb.String()
}

// collectSources attributes every database and document that took part in
// the run, including the ones that failed.
func collectSources(dbResults map[string]*models.QueryExecutionResult, chunks []models.DocumentChunk) []models.Source {
	var sources []models.Source
	for _, id := range sortedIDs(dbResults) {
		res := dbResults[id]
		src := models.Source{
			Type:       models.SourceDatabase,
			Identifier: id,
			RowCount:   res.RowCount,
		}
		if !res.Success {
			src.Error = res.ErrorMessage
		}
		sources = append(sources, src)
	}
	for _, chunk := range chunks {
		excerpt := chunk.Content
		if len(excerpt) > maxChunkExcerpt {
			excerpt = excerpt[:maxChunkExcerpt] + "..."
		}
		sources = append(sources, models.Source{
			Type:       models.SourceDocument,
			Identifier: chunk.Source,
			Excerpt:    excerpt,
			Relevance:  chunk.Relevance,
		})
	}
	return sources
}

func hasData(dbResults map[string]*models.QueryExecutionResult) bool {
	for _, res := range dbResults {
		if res.Success && res.RowCount > 0 {
			return true
		}
	}
	return false
}

func noDataAnswer(dbResults map[string]*models.QueryExecutionResult) string {
	var failures []string
	for _, id := range sortedIDs(dbResults) {
		if !dbResults[id].Success {
			failures = append(failures, id)
		}
	}
	if len(failures) > 0 {
		return fmt.Sprintf("No data found for this question. Note: the following databases were unavailable: %s.", strings.Join(failures, ", "))
	}
	return "No data found for this question in the connected databases or documents."
}

// fallbackAnswer is used when the composition call itself fails: a plain
// summary of what was retrieved, so the caller still gets the data.
func fallbackAnswer(dbResults map[string]*models.QueryExecutionResult, chunks []models.DocumentChunk) string {
	var parts []string
	for _, id := range sortedIDs(dbResults) {
		res := dbResults[id]
		if res.Success {
			parts = append(parts, fmt.Sprintf("%s returned %d rows", id, res.RowCount))
		} else {
			parts = append(parts, fmt.Sprintf("%s was unavailable", id))
		}
	}
	if len(chunks) > 0 {
		parts = append(parts, fmt.Sprintf("%d document excerpts matched", len(chunks)))
	}
	return "Results were retrieved but could not be summarized: " + strings.Join(parts, "; ") + ". See the attached sources."
}

func sortedIDs(dbResults map[string]*models.QueryExecutionResult) []string {
	ids := make([]string, 0, len(dbResults))
	for id := range dbResults {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
