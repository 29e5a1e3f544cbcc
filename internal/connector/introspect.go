package connector

import (
	"context"
	"fmt"

	"github.com/queryfed/queryfed/internal/models"
)

// listTables returns base table names using the vendor's catalog.
func (c *SQLConnector) listTables(ctx context.Context) ([]string, error) {
	var query string
	switch c.dialect {
	case "postgres", "postgresql":
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
			ORDER BY table_name`
	case "mysql":
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
			ORDER BY table_name`
	case "sqlserver", "mssql":
		query = `SELECT table_name FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY table_name`
	case "sqlite", "sqlite3":
		query = `SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	default:
		return nil, fmt.Errorf("no introspection for dialect %q", c.dialect)
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c *SQLConnector) describeTable(ctx context.Context, table string) (*models.Table, error) {
	columns, err := c.listColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	fks, err := c.listForeignKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	tbl := &models.Table{Name: table, Columns: columns, ForeignKeys: fks}

	if c.sampleRows > 0 {
		sample, err := c.sampleTable(ctx, table)
		if err == nil {
			tbl.SampleRows = sample
		}
	}
	return tbl, nil
}

func (c *SQLConnector) listColumns(ctx context.Context, table string) ([]models.Column, error) {
	if c.dialect == "sqlite" || c.dialect == "sqlite3" {
		return c.sqliteColumns(ctx, table)
	}

	query := `SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_name = $1 ORDER BY ordinal_position`
	args := []any{table}
	switch c.dialect {
	case "mysql":
		query = `SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`
	case "sqlserver", "mssql":
		query = `SELECT column_name, data_type, is_nullable
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE table_name = @p1 ORDER BY ordinal_position`
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		var name, typ, nullable string
		if err := rows.Scan(&name, &typ, &nullable); err != nil {
			return nil, err
		}
		cols = append(cols, models.Column{
			Name:     name,
			Type:     typ,
			Nullable: nullable == "YES",
		})
	}
	return cols, rows.Err()
}

func (c *SQLConnector) sqliteColumns(ctx context.Context, table string) ([]models.Column, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []models.Column
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, models.Column{Name: name, Type: typ, Nullable: notNull == 0})
	}
	return cols, rows.Err()
}

func (c *SQLConnector) listForeignKeys(ctx context.Context, table string) ([]models.ForeignKey, error) {
	switch c.dialect {
	case "sqlite", "sqlite3":
		return c.sqliteForeignKeys(ctx, table)
	case "postgres", "postgresql":
		return c.pgForeignKeys(ctx, table)
	case "mysql":
		return c.mysqlForeignKeys(ctx, table)
	default:
		// SQL Server FK introspection needs sys.* views; skipped until a
		// driver ships with the binary.
		return nil, nil
	}
}

func (c *SQLConnector) pgForeignKeys(ctx context.Context, table string) ([]models.ForeignKey, error) {
	query := `SELECT kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_name = $1`
	return c.scanForeignKeys(ctx, query, table)
}

func (c *SQLConnector) mysqlForeignKeys(ctx context.Context, table string) ([]models.ForeignKey, error) {
	query := `SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND table_name = ?
		AND referenced_table_name IS NOT NULL`
	return c.scanForeignKeys(ctx, query, table)
}

func (c *SQLConnector) scanForeignKeys(ctx context.Context, query, table string) ([]models.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []models.ForeignKey
	for rows.Next() {
		var fk models.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (c *SQLConnector) sqliteForeignKeys(ctx context.Context, table string) ([]models.ForeignKey, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []models.ForeignKey
	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fks = append(fks, models.ForeignKey{
			Column:           from,
			ReferencedTable:  refTable,
			ReferencedColumn: to,
		})
	}
	return fks, rows.Err()
}

func (c *SQLConnector) sampleTable(ctx context.Context, table string) ([]map[string]any, error) {
	var query string
	switch c.dialect {
	case "sqlserver", "mssql":
		query = fmt.Sprintf("SELECT TOP %d * FROM %s", c.sampleRows, quoteIdent(c.dialect, table))
	default:
		query = fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(c.dialect, table), c.sampleRows)
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func quoteIdent(dialect, name string) string {
	switch dialect {
	case "mysql":
		return "`" + name + "`"
	case "sqlserver", "mssql":
		return "[" + name + "]"
	default:
		return `"` + name + `"`
	}
}
