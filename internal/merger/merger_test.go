package merger_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/queryfed/queryfed/internal/merger"
	"github.com/queryfed/queryfed/internal/models"
)

type fakeGen struct {
	reply      string
	err        error
	lastPrompt string
	calls      int
}

func (g *fakeGen) Generate(_ context.Context, _, prompt string) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	return g.reply, g.err
}

func okResult(id string, rows []map[string]any) *models.QueryExecutionResult {
	return &models.QueryExecutionResult{
		DatabaseID: id,
		Rows:       rows,
		RowCount:   len(rows),
		Success:    true,
	}
}

func failedResult(id, msg string) *models.QueryExecutionResult {
	return &models.QueryExecutionResult{DatabaseID: id, Success: false, ErrorMessage: msg}
}

func TestMergeComposesFromAllSources(t *testing.T) {
	gen := &fakeGen{reply: "Acme Corp is your top customer with 42 orders."}
	m := merger.New(gen)

	dbResults := map[string]*models.QueryExecutionResult{
		"sales": okResult("sales", []map[string]any{{"customer": "Acme Corp", "orders": 42}}),
	}
	chunks := []models.DocumentChunk{
		{ID: "d1", Source: "contracts/acme.pdf", Content: "Acme contract renews yearly.", Relevance: 0.9},
	}

	ans, err := m.Merge(context.Background(), "who is our top customer?", models.ConfidenceMedium, dbResults, chunks)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if ans.Answer != "Acme Corp is your top customer with 42 orders." {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(ans.Sources))
	}
	if ans.Sources[0].Type != models.SourceDatabase || ans.Sources[0].Identifier != "sales" {
		t.Errorf("source[0] = %+v", ans.Sources[0])
	}
	if ans.Sources[1].Type != models.SourceDocument || ans.Sources[1].Identifier != "contracts/acme.pdf" {
		t.Errorf("source[1] = %+v", ans.Sources[1])
	}
	if !strings.Contains(gen.lastPrompt, "Acme Corp") {
		t.Error("prompt should carry the database rows")
	}
	if !strings.Contains(gen.lastPrompt, "Acme contract renews yearly.") {
		t.Error("prompt should carry the document excerpts")
	}
}

// A failed database is still attributed, with its error, never dropped.
func TestMergeAttributesFailedDatabase(t *testing.T) {
	gen := &fakeGen{reply: "Sales data shows 10 orders; HR data was unavailable."}
	m := merger.New(gen)

	dbResults := map[string]*models.QueryExecutionResult{
		"sales": okResult("sales", []map[string]any{{"orders": 10}}),
		"hr":    failedResult("hr", "connection refused"),
	}

	ans, err := m.Merge(context.Background(), "orders and staff?", models.ConfidenceHigh, dbResults, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	var hrSource *models.Source
	for i := range ans.Sources {
		if ans.Sources[i].Identifier == "hr" {
			hrSource = &ans.Sources[i]
		}
	}
	if hrSource == nil {
		t.Fatal("failed database missing from sources")
	}
	if hrSource.Error != "connection refused" {
		t.Errorf("hr source error = %q", hrSource.Error)
	}
	if !strings.Contains(gen.lastPrompt, "UNAVAILABLE") {
		t.Error("prompt should flag the unavailable database")
	}
}

// Both paths empty: explicit no-data answer, no model call.
func TestMergeNoData(t *testing.T) {
	gen := &fakeGen{}
	m := merger.New(gen)

	ans, err := m.Merge(context.Background(), "anything?", models.ConfidenceLow,
		map[string]*models.QueryExecutionResult{}, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !strings.Contains(ans.Answer, "No data found") {
		t.Errorf("answer = %q, want explicit no-data statement", ans.Answer)
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times with nothing to compose", gen.calls)
	}
}

func TestMergeNoDataMentionsFailures(t *testing.T) {
	m := merger.New(&fakeGen{})

	dbResults := map[string]*models.QueryExecutionResult{
		"sales": failedResult("sales", "timeout"),
	}
	ans, err := m.Merge(context.Background(), "orders?", models.ConfidenceHigh, dbResults, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !strings.Contains(ans.Answer, "sales") {
		t.Errorf("answer = %q, want the unavailable database named", ans.Answer)
	}
}

// Composition failure degrades to a plain summary, not an error.
func TestMergeFallbackOnModelError(t *testing.T) {
	m := merger.New(&fakeGen{err: errors.New("overloaded")})

	dbResults := map[string]*models.QueryExecutionResult{
		"sales": okResult("sales", []map[string]any{{"orders": 10}}),
	}
	ans, err := m.Merge(context.Background(), "orders?", models.ConfidenceHigh, dbResults, nil)
	if err != nil {
		t.Fatalf("Merge should degrade, got: %v", err)
	}
	if !strings.Contains(ans.Answer, "sales") || !strings.Contains(ans.Answer, "1 rows") {
		t.Errorf("fallback answer = %q", ans.Answer)
	}
	if len(ans.Sources) != 1 {
		t.Errorf("sources = %d, want 1", len(ans.Sources))
	}
}

func TestMergeBucketCarried(t *testing.T) {
	m := merger.New(&fakeGen{reply: "ok"})
	dbResults := map[string]*models.QueryExecutionResult{
		"sales": okResult("sales", []map[string]any{{"n": 1}}),
	}
	ans, err := m.Merge(context.Background(), "q", models.ConfidenceMedium, dbResults, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if ans.ConfidenceBucket != models.ConfidenceMedium {
		t.Errorf("bucket = %s, want medium", ans.ConfidenceBucket)
	}
}

func TestMergeLongChunkExcerptTruncated(t *testing.T) {
	m := merger.New(&fakeGen{reply: "ok"})
	long := strings.Repeat("policy text ", 100)
	chunks := []models.DocumentChunk{{ID: "d1", Source: "handbook.pdf", Content: long, Relevance: 1}}

	ans, err := m.Merge(context.Background(), "policy?", models.ConfidenceLow,
		map[string]*models.QueryExecutionResult{}, chunks)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	excerpt := ans.Sources[0].Excerpt
	if len(excerpt) > 320 {
		t.Errorf("excerpt length = %d, want truncated", len(excerpt))
	}
	if !strings.HasSuffix(excerpt, "...") {
		t.Error("truncated excerpt should end with ellipsis")
	}
}
