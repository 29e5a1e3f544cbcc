package models

import "time"

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey records join adjacency between two tables of the same database.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Table is one table of a schema snapshot, with bounded sample rows for
// value-format grounding in synthesis prompts.
type Table struct {
	Name        string           `json:"name"`
	Columns     []Column         `json:"columns"`
	ForeignKeys []ForeignKey     `json:"foreign_keys,omitempty"`
	SampleRows  []map[string]any `json:"sample_rows,omitempty"`
	RowCount    int64            `json:"row_count,omitempty"`
}

// SchemaSnapshot is a read-only view of one database's schema. Ownership
// (creation, periodic refresh) belongs to the schema catalog.
type SchemaSnapshot struct {
	DatabaseID  string    `json:"database_id"`
	Dialect     string    `json:"dialect"`
	Tables      []Table   `json:"tables"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// HasTable reports whether the snapshot contains the named table.
// Matching is case-insensitive since vendors disagree on identifier folding.
func (s *SchemaSnapshot) HasTable(name string) bool {
	return s.Table(name) != nil
}

// Table returns the named table or nil.
func (s *SchemaSnapshot) Table(name string) *Table {
	for i := range s.Tables {
		if equalFold(s.Tables[i].Name, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns the snapshot's table names in declaration order.
func (s *SchemaSnapshot) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// HasColumn reports whether any table in the snapshot has the named column.
func (s *SchemaSnapshot) HasColumn(name string) bool {
	for i := range s.Tables {
		for _, c := range s.Tables[i].Columns {
			if equalFold(c.Name, name) {
				return true
			}
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
