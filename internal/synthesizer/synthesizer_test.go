package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/schema"
	"github.com/queryfed/queryfed/internal/security"
)

type fakeGen struct {
	replies map[string]string // keyed by prompt substring
	reply   string
	err     error
}

func (g *fakeGen) Generate(_ context.Context, system, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	for key, reply := range g.replies {
		if strings.Contains(system, key) {
			return reply, nil
		}
	}
	return g.reply, nil
}

func salesSnapshot() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		DatabaseID: "sales",
		Dialect:    "postgres",
		Tables: []models.Table{
			{Name: "orders", Columns: []models.Column{
				{Name: "id", Type: "bigint"},
				{Name: "customer_id", Type: "bigint"},
				{Name: "total", Type: "numeric"},
			}},
			{Name: "customers", Columns: []models.Column{
				{Name: "id", Type: "bigint"},
				{Name: "name", Type: "text"},
			}},
		},
	}
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"sql code block",
			"Here you go:\n```sql\nSELECT id FROM orders;\n```\nHope that helps.",
			"SELECT id FROM orders",
		},
		{
			"generic code block",
			"```\nSELECT id FROM orders\n```",
			"SELECT id FROM orders",
		},
		{
			"generic block with language tag",
			"```postgresql\nSELECT id FROM orders\n```",
			"SELECT id FROM orders",
		},
		{
			"bare multiline statement",
			"The query is:\nSELECT id, total\nFROM orders\nWHERE total > 5\nLIMIT 10",
			"SELECT id, total\nFROM orders\nWHERE total > 5\nLIMIT 10",
		},
		{
			"inline statement with limit",
			"Use SELECT id FROM orders LIMIT 3 and you are done",
			"SELECT id FROM orders LIMIT 3",
		},
		{
			"cte",
			"```sql\nWITH t AS (SELECT id FROM orders) SELECT * FROM t LIMIT 5\n```",
			"WITH t AS (SELECT id FROM orders) SELECT * FROM t LIMIT 5",
		},
		{
			"no sql at all",
			"I cannot answer that question from the given schema.",
			"",
		},
	}
	for _, tt := range tests {
		if got := extractSQL(tt.in); got != tt.want {
			t.Errorf("%s: extractSQL = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCheckWhitelistTableNotAllowed(t *testing.T) {
	snap := salesSnapshot()
	err := checkWhitelist("SELECT id FROM invoices LIMIT 10", snap, []string{"orders"}, nil)
	if err == nil || !strings.Contains(err.Error(), "invoices") {
		t.Errorf("expected table whitelist error, got %v", err)
	}
}

func TestCheckWhitelistUnknownColumn(t *testing.T) {
	snap := salesSnapshot()
	err := checkWhitelist("SELECT salary FROM orders LIMIT 10", snap, []string{"orders"}, nil)
	if err == nil || !strings.Contains(err.Error(), "salary") {
		t.Errorf("expected identifier error, got %v", err)
	}
}

func TestCheckWhitelistAliasesAllowed(t *testing.T) {
	snap := salesSnapshot()
	sql := "SELECT o.total AS amount FROM orders o JOIN customers AS c ON o.customer_id = c.id ORDER BY amount DESC LIMIT 5"
	if err := checkWhitelist(sql, snap, []string{"orders", "customers"}, nil); err != nil {
		t.Errorf("aliased statement should pass, got %v", err)
	}
}

func TestCheckWhitelistQualifiedTableNames(t *testing.T) {
	snap := salesSnapshot()
	sql := "SELECT id FROM analytics.orders LIMIT 5"
	if err := checkWhitelist(sql, snap, []string{"orders"}, nil); err != nil {
		t.Errorf("dataset-qualified table should pass, got %v", err)
	}
}

// BigQuery snapshots name tables dataset-qualified; a statement quoting the
// full name must match the qualified whitelist entry.
func TestCheckWhitelistDottedWhitelistEntry(t *testing.T) {
	snap := &models.SchemaSnapshot{
		DatabaseID: "warehouse",
		Dialect:    "bigquery",
		Tables: []models.Table{
			{Name: "sales.orders", Columns: []models.Column{
				{Name: "id", Type: "INT64"},
				{Name: "total", Type: "NUMERIC"},
			}},
		},
	}
	sql := "SELECT id, total FROM `sales.orders` LIMIT 5"
	if err := checkWhitelist(sql, snap, []string{"sales.orders"}, nil); err != nil {
		t.Errorf("fully qualified table should pass, got %v", err)
	}
}

func TestCheckWhitelistCTE(t *testing.T) {
	snap := salesSnapshot()
	sql := "WITH recent AS (SELECT customer_id FROM orders LIMIT 100) SELECT customer_id FROM recent LIMIT 5"
	if err := checkWhitelist(sql, snap, []string{"orders"}, nil); err != nil {
		t.Errorf("CTE statement should pass, got %v", err)
	}
}

// A forbidden user keyword smuggled into a LIKE literal must be caught.
func TestCheckWhitelistForbiddenKeywordInPredicate(t *testing.T) {
	snap := salesSnapshot()
	sql := "SELECT id FROM orders WHERE name LIKE '%acme%' LIMIT 5"
	err := checkWhitelist(sql, snap, []string{"orders", "customers"}, []string{"acme"})
	if err == nil || !strings.Contains(err.Error(), "acme") {
		t.Errorf("expected forbidden-keyword error, got %v", err)
	}
}

func TestCheckWhitelistForbiddenKeywordOutsidePredicateOK(t *testing.T) {
	snap := salesSnapshot()
	// keyword appears only before WHERE; projection is clean
	sql := "SELECT id, total FROM orders WHERE total > 100 LIMIT 5"
	if err := checkWhitelist(sql, snap, []string{"orders"}, []string{"acme"}); err != nil {
		t.Errorf("keyword absent from predicates should pass, got %v", err)
	}
}

func TestForbiddenKeywords(t *testing.T) {
	subset := salesSnapshot()
	tokens := []string{"show", "total", "orders", "acme", "ltd", "customer"}
	got := forbiddenKeywords(subset, tokens)

	// "show" is a stop word, "total"/"orders" are schema words, "customer"
	// stem-matches customers and customer_id. Only acme and ltd remain.
	if len(got) != 2 || got[0] != "acme" || got[1] != "ltd" {
		t.Errorf("forbiddenKeywords = %v, want [acme ltd]", got)
	}
}

func TestSynthesizeAllValidates(t *testing.T) {
	gen := &fakeGen{reply: "```sql\nSELECT customer_id, SUM(total) AS spend FROM orders GROUP BY customer_id ORDER BY spend DESC LIMIT 5\n```"}
	s := New(gen, schema.NewStaticCatalog(salesSnapshot()), security.NewSQLGuard())

	intent := &models.QueryIntent{
		Query: "top customers by spend",
		Databases: []models.DatabaseQueryIntent{{
			DatabaseID:     "sales",
			RequiredTables: []string{"orders"},
			Purpose:        "total spend per customer",
			Status:         models.SubQueryPending,
		}},
	}
	s.SynthesizeAll(context.Background(), intent, nil, 100)

	sub := intent.Databases[0]
	if sub.Status != models.SubQueryValidated {
		t.Fatalf("status = %s (%s), want validated", sub.Status, sub.StatusReason)
	}
	if !strings.Contains(sub.SQL, "SUM(total)") {
		t.Errorf("SQL = %q", sub.SQL)
	}
}

func TestSynthesizeAppendsLimit(t *testing.T) {
	gen := &fakeGen{reply: "```sql\nSELECT id FROM orders\n```"}
	s := New(gen, schema.NewStaticCatalog(salesSnapshot()), security.NewSQLGuard())

	intent := &models.QueryIntent{Databases: []models.DatabaseQueryIntent{{
		DatabaseID:     "sales",
		RequiredTables: []string{"orders"},
		Purpose:        "order ids",
	}}}
	s.SynthesizeAll(context.Background(), intent, nil, 25)

	if got := intent.Databases[0].SQL; !strings.HasSuffix(got, "LIMIT 25") {
		t.Errorf("SQL = %q, want trailing LIMIT 25", got)
	}
}

func TestSynthesizeRejectsWrites(t *testing.T) {
	gen := &fakeGen{reply: "```sql\nDELETE FROM orders\n```"}
	s := New(gen, schema.NewStaticCatalog(salesSnapshot()), security.NewSQLGuard())

	intent := &models.QueryIntent{Databases: []models.DatabaseQueryIntent{{
		DatabaseID:     "sales",
		RequiredTables: []string{"orders"},
		Purpose:        "cleanup",
	}}}
	s.SynthesizeAll(context.Background(), intent, nil, 100)

	sub := intent.Databases[0]
	if sub.Status != models.SubQueryFailed {
		t.Fatalf("status = %s, want failed", sub.Status)
	}
	if sub.SQL != "" {
		t.Errorf("failed sub-query must carry no SQL, got %q", sub.SQL)
	}
}

func TestSynthesizeRejectsHallucinatedTable(t *testing.T) {
	gen := &fakeGen{reply: "```sql\nSELECT id FROM invoices LIMIT 10\n```"}
	s := New(gen, schema.NewStaticCatalog(salesSnapshot()), security.NewSQLGuard())

	intent := &models.QueryIntent{Databases: []models.DatabaseQueryIntent{{
		DatabaseID:     "sales",
		RequiredTables: []string{"orders"},
		Purpose:        "invoices",
	}}}
	s.SynthesizeAll(context.Background(), intent, nil, 100)

	if intent.Databases[0].Status != models.SubQueryFailed {
		t.Errorf("status = %s, want failed", intent.Databases[0].Status)
	}
}

// One sub-intent failing must not prevent a sibling from validating.
func TestSynthesizeAllFailureIsolation(t *testing.T) {
	hr := &models.SchemaSnapshot{
		DatabaseID: "hr",
		Dialect:    "sqlite",
		Tables:     []models.Table{{Name: "employees", Columns: []models.Column{{Name: "id"}, {Name: "name"}}}},
	}
	gen := &fakeGen{replies: map[string]string{
		"PostgreSQL": "no sql here, sorry",
		"SQLite":     "```sql\nSELECT id, name FROM employees LIMIT 10\n```",
	}}
	s := New(gen, schema.NewStaticCatalog(salesSnapshot(), hr), security.NewSQLGuard())

	intent := &models.QueryIntent{Databases: []models.DatabaseQueryIntent{
		{DatabaseID: "sales", RequiredTables: []string{"orders"}, Purpose: "orders"},
		{DatabaseID: "hr", RequiredTables: []string{"employees"}, Purpose: "employees"},
	}}
	s.SynthesizeAll(context.Background(), intent, nil, 100)

	if intent.Databases[0].Status != models.SubQueryFailed {
		t.Errorf("sales status = %s, want failed", intent.Databases[0].Status)
	}
	if intent.Databases[1].Status != models.SubQueryValidated {
		t.Errorf("hr status = %s (%s), want validated", intent.Databases[1].Status, intent.Databases[1].StatusReason)
	}
}

func TestSynthesizeModelError(t *testing.T) {
	s := New(&fakeGen{err: errors.New("overloaded")}, schema.NewStaticCatalog(salesSnapshot()), security.NewSQLGuard())

	intent := &models.QueryIntent{Databases: []models.DatabaseQueryIntent{{
		DatabaseID:     "sales",
		RequiredTables: []string{"orders"},
		Purpose:        "orders",
	}}}
	s.SynthesizeAll(context.Background(), intent, nil, 100)

	sub := intent.Databases[0]
	if sub.Status != models.SubQueryFailed || sub.StatusReason == "" {
		t.Errorf("sub = %+v, want failed with reason", sub)
	}
}
