package analyzer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/queryfed/queryfed/internal/analyzer"
	"github.com/queryfed/queryfed/internal/models"
)

type fakeGen struct {
	reply string
	err   error
}

func (g *fakeGen) Generate(_ context.Context, _, _ string) (string, error) {
	return g.reply, g.err
}

func salesSnapshot() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		DatabaseID: "sales",
		Dialect:    "postgres",
		Tables: []models.Table{
			{Name: "orders", Columns: []models.Column{{Name: "id"}, {Name: "customer_id"}, {Name: "total"}}},
			{Name: "customers", Columns: []models.Column{{Name: "id"}, {Name: "name"}}},
		},
	}
}

func hrSnapshot() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		DatabaseID: "hr",
		Dialect:    "sqlite",
		Tables: []models.Table{
			{Name: "employees", Columns: []models.Column{{Name: "id"}, {Name: "name"}}},
		},
	}
}

func TestAnalyzeSelectsExistingTables(t *testing.T) {
	gen := &fakeGen{reply: `{"databases":[{"database_id":"sales","tables":["orders","customers"],"purpose":"order totals per customer"}],"confidence":0.9}`}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "top customers by spend", nil,
		[]*models.SchemaSnapshot{salesSnapshot(), hrSnapshot()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(intent.Databases) != 1 {
		t.Fatalf("databases = %d, want 1", len(intent.Databases))
	}
	sub := intent.Databases[0]
	if sub.DatabaseID != "sales" || len(sub.RequiredTables) != 2 {
		t.Errorf("sub-intent = %+v, want sales with 2 tables", sub)
	}
	if sub.Status != models.SubQueryPending {
		t.Errorf("status = %s, want pending", sub.Status)
	}
	if intent.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", intent.Confidence)
	}
}

// A repeated database entry must collapse to one sub-intent; execution
// results are keyed by database id and a duplicate would overwrite its
// sibling.
func TestAnalyzeDropsDuplicateDatabases(t *testing.T) {
	gen := &fakeGen{reply: `{"databases":[
		{"database_id":"sales","tables":["orders"],"purpose":"order totals"},
		{"database_id":"sales","tables":["customers"],"purpose":"customer names"}
	],"confidence":0.8}`}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "orders per customer", nil,
		[]*models.SchemaSnapshot{salesSnapshot()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(intent.Databases) != 1 {
		t.Fatalf("databases = %d, want 1", len(intent.Databases))
	}
	if got := intent.Databases[0].RequiredTables; len(got) != 1 || got[0] != "orders" {
		t.Errorf("tables = %v, want first entry kept", got)
	}
}

// Tables the model invents must be dropped, and a sub-intent with no real
// tables left must vanish entirely.
func TestAnalyzeDropsHallucinatedTables(t *testing.T) {
	gen := &fakeGen{reply: `{"databases":[
		{"database_id":"sales","tables":["orders","order_items_v2"],"purpose":"orders"},
		{"database_id":"hr","tables":["payroll_secret"],"purpose":"payroll"}
	],"confidence":0.8}`}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "orders and payroll", nil,
		[]*models.SchemaSnapshot{salesSnapshot(), hrSnapshot()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(intent.Databases) != 1 {
		t.Fatalf("databases = %d, want 1 (hr dropped entirely)", len(intent.Databases))
	}
	sub := intent.Databases[0]
	if len(sub.RequiredTables) != 1 || sub.RequiredTables[0] != "orders" {
		t.Errorf("tables = %v, want only orders", sub.RequiredTables)
	}
}

func TestAnalyzeDropsUnknownDatabase(t *testing.T) {
	gen := &fakeGen{reply: `{"databases":[{"database_id":"warehouse","tables":["orders"]}],"confidence":0.8}`}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "orders", nil, []*models.SchemaSnapshot{salesSnapshot()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(intent.Databases) != 0 {
		t.Errorf("databases = %d, want 0", len(intent.Databases))
	}
}

func TestAnalyzeTableNameCaseInsensitive(t *testing.T) {
	gen := &fakeGen{reply: `{"databases":[{"database_id":"sales","tables":["ORDERS"]}],"confidence":0.75}`}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "orders", nil, []*models.SchemaSnapshot{salesSnapshot()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(intent.Databases) != 1 || intent.Databases[0].RequiredTables[0] != "orders" {
		t.Errorf("intent = %+v, want canonical table name orders", intent.Databases)
	}
}

// Cross-database join with fewer than two surviving targets is meaningless.
func TestAnalyzeCrossJoinNeedsTwoDatabases(t *testing.T) {
	gen := &fakeGen{reply: `{"databases":[{"database_id":"sales","tables":["orders"]}],"confidence":0.8,"requires_cross_database_join":true}`}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "orders", nil, []*models.SchemaSnapshot{salesSnapshot()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if intent.RequiresCrossDatabaseJoin {
		t.Error("cross-database join should be cleared with a single target")
	}
}

func TestAnalyzeModelFailureFallsBack(t *testing.T) {
	a := analyzer.New(&fakeGen{err: errors.New("overloaded")})

	intent, err := a.Analyze(context.Background(), "orders", nil, []*models.SchemaSnapshot{salesSnapshot()})
	if err != nil {
		t.Fatalf("Analyze should degrade, got: %v", err)
	}
	if intent.Confidence != 0 || len(intent.Databases) != 0 {
		t.Errorf("intent = %+v, want zero-confidence empty intent", intent)
	}
}

func TestAnalyzeGarbageReplyFallsBack(t *testing.T) {
	a := analyzer.New(&fakeGen{reply: "the sales database looks relevant"})

	intent, err := a.Analyze(context.Background(), "orders", nil, []*models.SchemaSnapshot{salesSnapshot()})
	if err != nil {
		t.Fatalf("Analyze should degrade, got: %v", err)
	}
	if intent.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", intent.Confidence)
	}
}

func TestAnalyzeNoSnapshots(t *testing.T) {
	gen := &fakeGen{}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "orders", nil, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if intent.Confidence != 0 || len(intent.Databases) != 0 {
		t.Errorf("intent = %+v, want empty", intent)
	}
}

func TestAnalyzeConfidenceClamped(t *testing.T) {
	gen := &fakeGen{reply: `{"databases":[{"database_id":"sales","tables":["orders"]}],"confidence":1.7}`}
	a := analyzer.New(gen)

	intent, err := a.Analyze(context.Background(), "orders", nil, []*models.SchemaSnapshot{salesSnapshot()})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if intent.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", intent.Confidence)
	}
}

func TestBucketBoundaries(t *testing.T) {
	tests := []struct {
		confidence float64
		want       models.ConfidenceBucket
	}{
		{0.95, models.ConfidenceHigh},
		{0.71, models.ConfidenceHigh},
		{0.7, models.ConfidenceMedium},
		{0.5, models.ConfidenceMedium},
		{0.3, models.ConfidenceMedium},
		{0.29, models.ConfidenceLow},
		{0, models.ConfidenceLow},
	}
	for _, tt := range tests {
		qi := models.QueryIntent{Confidence: tt.confidence}
		if got := qi.Bucket(0.3, 0.7); got != tt.want {
			t.Errorf("Bucket(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}
