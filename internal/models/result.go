package models

// QueryExecutionResult is the outcome of one sub-query against one database.
// Exactly one instance is written per sub-query, by its own execution task.
type QueryExecutionResult struct {
	DatabaseID      string           `json:"database_id"`
	SQL             string           `json:"sql"`
	Columns         []string         `json:"columns,omitempty"`
	Rows            []map[string]any `json:"rows,omitempty"`
	RowCount        int              `json:"row_count"`
	Success         bool             `json:"success"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}

// DocumentChunk is one document-search hit.
type DocumentChunk struct {
	ID        string  `json:"id"`
	Source    string  `json:"source"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

// SourceType tags a merged-answer source as tabular or document.
type SourceType string

const (
	SourceDatabase SourceType = "database"
	SourceDocument SourceType = "document"
)

// Source attributes one contributor (database or document chunk) of the
// final answer. No contributing source is silently dropped.
type Source struct {
	Type       SourceType `json:"type"`
	Identifier string     `json:"identifier"`
	Excerpt    string     `json:"excerpt,omitempty"`
	RowCount   int        `json:"row_count,omitempty"`
	Relevance  float64    `json:"relevance,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// MergedAnswer is the pipeline's final product.
type MergedAnswer struct {
	Answer           string           `json:"answer"`
	Sources          []Source         `json:"sources"`
	ConfidenceBucket ConfidenceBucket `json:"confidence_bucket"`
	ExecutionTimeMs  int64            `json:"execution_time_ms"`
}
