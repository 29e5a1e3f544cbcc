package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/queryfed/queryfed/internal/models"
	"github.com/queryfed/queryfed/internal/security"
)

// BigQueryConnector executes read-only GoogleSQL against one dataset. Scan
// cost is capped by the byte budget instead of a row count alone.
type BigQueryConnector struct {
	id         string
	client     *bigquery.Client
	projectID  string
	datasetID  string
	location   string
	budget     *security.ByteBudget
	sampleRows int
	maxTables  int
}

func NewBigQueryConnector(ctx context.Context, id, projectID, datasetID, credentialsFile, location string, budget *security.ByteBudget, sampleRows, maxTables int) (*BigQueryConnector, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery.NewClient: %w", err)
	}
	return &BigQueryConnector{
		id:         id,
		client:     client,
		projectID:  projectID,
		datasetID:  datasetID,
		location:   location,
		budget:     budget,
		sampleRows: sampleRows,
		maxTables:  maxTables,
	}, nil
}

func (c *BigQueryConnector) DatabaseID() string { return c.id }
func (c *BigQueryConnector) Dialect() string    { return "bigquery" }

func (c *BigQueryConnector) Close() error { return c.client.Close() }

func (c *BigQueryConnector) Ping(ctx context.Context) error {
	q := c.client.Query("SELECT 1")
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("job wait: %w", err)
	}
	return status.Err()
}

// ExecuteReadOnly runs one validated statement bounded by timeout, maxRows,
// and the byte budget.
func (c *BigQueryConnector) ExecuteReadOnly(ctx context.Context, sql string, maxRows int, timeout time.Duration) (*models.QueryExecutionResult, error) {
	qCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := c.client.Query(sql)
	q.Location = c.location

	start := time.Now()
	job, err := q.Run(qCtx)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	status, err := job.Wait(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job wait: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var bytesProcessed int64
	if stats := job.LastStatus().Statistics; stats != nil {
		bytesProcessed = stats.TotalBytesProcessed
	}
	if c.budget != nil {
		if ok, msg := c.budget.Check(bytesProcessed); !ok {
			return nil, fmt.Errorf("%s", msg)
		}
	}

	it, err := job.Read(qCtx)
	if err != nil {
		return nil, fmt.Errorf("job read: %w", err)
	}

	var rows []map[string]any
	var columns []string
	for {
		if maxRows > 0 && len(rows) >= maxRows {
			break
		}
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if columns == nil && it.Schema != nil {
			for _, f := range it.Schema {
				columns = append(columns, f.Name)
			}
		}
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		rows = append(rows, m)
	}

	elapsed := time.Since(start).Milliseconds()
	if c.budget != nil {
		c.budget.LogCost(c.id, sql, bytesProcessed, elapsed)
	}

	return &models.QueryExecutionResult{
		DatabaseID:      c.id,
		SQL:             sql,
		Columns:         columns,
		Rows:            rows,
		RowCount:        len(rows),
		Success:         true,
		ExecutionTimeMs: elapsed,
	}, nil
}

// Snapshot lists the dataset's tables with schema and bounded sample rows.
func (c *BigQueryConnector) Snapshot(ctx context.Context) (*models.SchemaSnapshot, error) {
	snap := &models.SchemaSnapshot{
		DatabaseID:  c.id,
		Dialect:     "bigquery",
		RefreshedAt: time.Now().UTC(),
	}

	it := c.client.Dataset(c.datasetID).Tables(ctx)
	count := 0
	for {
		if c.maxTables > 0 && count >= c.maxTables {
			break
		}
		tbl, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		meta, err := tbl.Metadata(ctx)
		if err != nil {
			log.Warn().Err(err).Str("table", tbl.TableID).Msg("table metadata failed, skipping")
			continue
		}
		t := models.Table{
			Name:     fmt.Sprintf("%s.%s", c.datasetID, tbl.TableID),
			RowCount: int64(meta.NumRows),
		}
		for _, f := range meta.Schema {
			t.Columns = append(t.Columns, models.Column{
				Name:     f.Name,
				Type:     string(f.Type),
				Nullable: !f.Required,
			})
		}
		if c.sampleRows > 0 {
			if sample, err := c.sampleTable(ctx, tbl.TableID); err == nil {
				t.SampleRows = sample
			}
		}
		snap.Tables = append(snap.Tables, t)
		count++
	}
	return snap, nil
}

func (c *BigQueryConnector) sampleTable(ctx context.Context, tableID string) ([]map[string]any, error) {
	sql := fmt.Sprintf("SELECT * FROM `%s.%s` LIMIT %d", c.datasetID, tableID, c.sampleRows)
	res, err := c.ExecuteReadOnly(ctx, sql, c.sampleRows, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// SchemaToString renders a snapshot digest for logging.
func SchemaToString(snap *models.SchemaSnapshot) string {
	var sb strings.Builder
	for _, t := range snap.Tables {
		sb.WriteString(t.Name + "(")
		for i, col := range t.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(col.Name)
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}
