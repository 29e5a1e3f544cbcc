package connector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	// Drivers for the vendors shipped with this service. MySQL and SQL
	// Server connections accept any driver the embedding binary registers.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/queryfed/queryfed/internal/models"
)

// driverFor maps a dialect to its default database/sql driver name.
func driverFor(dialect string) (string, error) {
	switch strings.ToLower(dialect) {
	case "postgres", "postgresql":
		return "pgx", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "mysql":
		return "mysql", nil
	case "sqlserver", "mssql":
		return "sqlserver", nil
	}
	return "", fmt.Errorf("no database/sql driver mapping for dialect %q", dialect)
}

// SQLConnector runs read-only queries over database/sql. One instance per
// configured connection.
type SQLConnector struct {
	id         string
	dialect    string
	db         *sql.DB
	sampleRows int
	maxTables  int
}

func NewSQLConnector(id, dialect, dsn string, sampleRows, maxTables int) (*SQLConnector, error) {
	driver, err := driverFor(dialect)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", id, driver, err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &SQLConnector{
		id:         id,
		dialect:    strings.ToLower(dialect),
		db:         db,
		sampleRows: sampleRows,
		maxTables:  maxTables,
	}, nil
}

func (c *SQLConnector) DatabaseID() string { return c.id }
func (c *SQLConnector) Dialect() string    { return c.dialect }

func (c *SQLConnector) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *SQLConnector) Close() error { return c.db.Close() }

// ExecuteReadOnly runs one validated SELECT bounded by timeout and maxRows.
func (c *SQLConnector) ExecuteReadOnly(ctx context.Context, query string, maxRows int, timeout time.Duration) (*models.QueryExecutionResult, error) {
	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := c.db.QueryContext(qCtx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.id, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", c.id, err)
	}

	var data []map[string]any
	for rows.Next() {
		if maxRows > 0 && len(data) >= maxRows {
			break
		}
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.id, err)
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.id, err)
	}

	return &models.QueryExecutionResult{
		DatabaseID:      c.id,
		SQL:             query,
		Columns:         columns,
		Rows:            data,
		RowCount:        len(data),
		Success:         true,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(map[string]any, len(columns))
	for i, col := range columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[col] = v
	}
	return row, nil
}

// Snapshot introspects tables, columns, foreign keys, and bounded sample
// rows. The vendor-specific catalog queries live in introspect.go.
func (c *SQLConnector) Snapshot(ctx context.Context) (*models.SchemaSnapshot, error) {
	tables, err := c.listTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", c.id, err)
	}
	if c.maxTables > 0 && len(tables) > c.maxTables {
		tables = tables[:c.maxTables]
	}

	snap := &models.SchemaSnapshot{
		DatabaseID:  c.id,
		Dialect:     c.dialect,
		RefreshedAt: time.Now().UTC(),
	}
	for _, name := range tables {
		tbl, err := c.describeTable(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("database", c.id).Str("table", name).Msg("describe table failed, skipping")
			continue
		}
		snap.Tables = append(snap.Tables, *tbl)
	}
	return snap, nil
}
