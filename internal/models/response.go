package models

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// AskResponse is returned by POST /api/v1/ask
type AskResponse struct {
	Status           string           `json:"status"`
	Query            string           `json:"query"`
	Answer           string           `json:"answer"`
	Sources          []Source         `json:"sources"`
	ConfidenceBucket ConfidenceBucket `json:"confidence_bucket,omitempty"`
	ExecutionTimeMs  int64            `json:"execution_time_ms"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}

// SchemaListResponse is returned by GET /api/v1/schemas
type SchemaListResponse struct {
	Status    string           `json:"status"`
	Databases []SchemaSnapshot `json:"databases"`
}
