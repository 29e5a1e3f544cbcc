package dialect

import (
	"fmt"
	"regexp"
	"strings"
)

// Postgres targets PostgreSQL 12+.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) BuildSystemPrompt(in PromptInput) string {
	return buildPrompt("PostgreSQL", `- Quote mixed-case identifiers with double quotes.
- Use ILIKE for case-insensitive matching.`, in, p.LimitClause(in.MaxRows))
}

func (Postgres) ValidateSyntax(sql string) error {
	if err := validateCommon(sql); err != nil {
		return err
	}
	if strings.Contains(sql, "`") {
		return fmt.Errorf("backtick identifiers are not valid PostgreSQL")
	}
	if reTopClause.MatchString(sql) {
		return fmt.Errorf("SELECT TOP is not valid PostgreSQL, use LIMIT")
	}
	return nil
}

func (Postgres) LimitClause(n int) string { return fmt.Sprintf("LIMIT %d", n) }

func (p Postgres) EnsureLimit(sql string, n int) string {
	if hasRowLimit(sql) {
		return sql
	}
	return appendClause(sql, p.LimitClause(n))
}

// MySQL targets MySQL 8 / MariaDB.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (m MySQL) BuildSystemPrompt(in PromptInput) string {
	return buildPrompt("MySQL", `- Quote identifiers with backticks when needed.
- Date arithmetic uses DATE_SUB/DATE_ADD, not interval literals.`, in, m.LimitClause(in.MaxRows))
}

func (MySQL) ValidateSyntax(sql string) error {
	if err := validateCommon(sql); err != nil {
		return err
	}
	if reTopClause.MatchString(sql) {
		return fmt.Errorf("SELECT TOP is not valid MySQL, use LIMIT")
	}
	if regexp.MustCompile(`(?i)\bILIKE\b`).MatchString(sql) {
		return fmt.Errorf("ILIKE is not valid MySQL, use LIKE")
	}
	return nil
}

func (MySQL) LimitClause(n int) string { return fmt.Sprintf("LIMIT %d", n) }

func (m MySQL) EnsureLimit(sql string, n int) string {
	if hasRowLimit(sql) {
		return sql
	}
	return appendClause(sql, m.LimitClause(n))
}

// SQLite targets SQLite 3.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (s SQLite) BuildSystemPrompt(in PromptInput) string {
	return buildPrompt("SQLite", `- Dates are stored as TEXT; compare with string functions or date().
- No RIGHT or FULL OUTER JOIN.`, in, s.LimitClause(in.MaxRows))
}

func (SQLite) ValidateSyntax(sql string) error {
	if err := validateCommon(sql); err != nil {
		return err
	}
	upper := strings.ToUpper(sql)
	if strings.Contains(upper, "RIGHT JOIN") || strings.Contains(upper, "FULL OUTER JOIN") {
		return fmt.Errorf("RIGHT/FULL OUTER JOIN is not supported by SQLite")
	}
	return nil
}

func (SQLite) LimitClause(n int) string { return fmt.Sprintf("LIMIT %d", n) }

func (s SQLite) EnsureLimit(sql string, n int) string {
	if hasRowLimit(sql) {
		return sql
	}
	return appendClause(sql, s.LimitClause(n))
}

// SQLServer targets SQL Server 2019+.
type SQLServer struct{}

func (SQLServer) Name() string { return "sqlserver" }

func (s SQLServer) BuildSystemPrompt(in PromptInput) string {
	return buildPrompt("SQL Server (T-SQL)", `- Row limiting uses SELECT TOP (n), never LIMIT.
- Quote identifiers with [brackets] when needed.
- String concatenation uses +.`, in, s.LimitClause(in.MaxRows))
}

func (SQLServer) ValidateSyntax(sql string) error {
	if err := validateCommon(sql); err != nil {
		return err
	}
	if reLimitClause.MatchString(sql) {
		return fmt.Errorf("LIMIT is not valid T-SQL, use TOP")
	}
	if strings.Contains(sql, "`") {
		return fmt.Errorf("backtick identifiers are not valid T-SQL")
	}
	return nil
}

func (SQLServer) LimitClause(n int) string { return fmt.Sprintf("TOP %d", n) }

// EnsureLimit injects TOP after the first SELECT since T-SQL has no
// trailing limit clause.
func (s SQLServer) EnsureLimit(sql string, n int) string {
	if hasRowLimit(sql) {
		return sql
	}
	re := regexp.MustCompile(`(?i)^(\s*SELECT)(\s+DISTINCT)?`)
	return re.ReplaceAllString(strings.TrimSuffix(strings.TrimSpace(sql), ";"),
		fmt.Sprintf("${1}${2} TOP %d", n))
}

// BigQuery targets GoogleSQL.
type BigQuery struct{}

func (BigQuery) Name() string { return "bigquery" }

func (b BigQuery) BuildSystemPrompt(in PromptInput) string {
	return buildPrompt("BigQuery GoogleSQL", "- Use fully qualified `dataset.table` names.\n- Quote identifiers with backticks when needed.", in, b.LimitClause(in.MaxRows))
}

func (BigQuery) ValidateSyntax(sql string) error {
	if err := validateCommon(sql); err != nil {
		return err
	}
	if reTopClause.MatchString(sql) {
		return fmt.Errorf("SELECT TOP is not valid GoogleSQL, use LIMIT")
	}
	return nil
}

func (BigQuery) LimitClause(n int) string { return fmt.Sprintf("LIMIT %d", n) }

func (b BigQuery) EnsureLimit(sql string, n int) string {
	if hasRowLimit(sql) {
		return sql
	}
	return appendClause(sql, b.LimitClause(n))
}
