package models

// IntentKind distinguishes smalltalk from data requests.
type IntentKind string

const (
	IntentConversation IntentKind = "conversation"
	IntentInformation  IntentKind = "information"
)

// Classification is the classifier's output for one raw query.
type Classification struct {
	Kind IntentKind `json:"kind"`
	// Tokens holds ordered, unique, lowercased search tokens.
	// Populated only for IntentInformation.
	Tokens []string `json:"tokens,omitempty"`
	// DirectAnswer carries the model's own conversational reply when the
	// AI-backed pass answered the query itself. Optional.
	DirectAnswer string `json:"direct_answer,omitempty"`
	// HeuristicOnly is true when the decision was made without an AI call.
	HeuristicOnly bool `json:"heuristic_only"`
}

// ConfidenceBucket drives the routing contract: high runs the database path
// (or documents when no intent survived), medium runs both paths, low runs
// document search only.
type ConfidenceBucket string

const (
	ConfidenceHigh   ConfidenceBucket = "high"
	ConfidenceMedium ConfidenceBucket = "medium"
	ConfidenceLow    ConfidenceBucket = "low"
)

// SubQueryStatus tracks a DatabaseQueryIntent through synthesis and validation.
type SubQueryStatus string

const (
	SubQueryPending   SubQueryStatus = "pending"
	SubQueryValidated SubQueryStatus = "validated"
	SubQueryFailed    SubQueryStatus = "failed"
)

// DatabaseQueryIntent is the portion of a federated intent targeting one
// database. RequiredTables is always a subset of that database's schema;
// entries that fail schema validation are dropped, never fabricated.
type DatabaseQueryIntent struct {
	DatabaseID     string         `json:"database_id"`
	RequiredTables []string       `json:"required_tables"`
	Purpose        string         `json:"purpose"`
	SQL            string         `json:"sql,omitempty"`
	Status         SubQueryStatus `json:"status"`
	StatusReason   string         `json:"status_reason,omitempty"`
}

// QueryIntent is the analyzer's output: which databases plausibly hold the
// answer, with a self-reported certainty in [0,1]. Request-scoped, never
// persisted here; callers may cache and replay it for identical queries.
type QueryIntent struct {
	Query                     string                `json:"query"`
	Confidence                float64               `json:"confidence"`
	Databases                 []DatabaseQueryIntent `json:"databases"`
	RequiresCrossDatabaseJoin bool                  `json:"requires_cross_database_join"`
}

// Bucket maps the confidence score onto the routing contract using the
// configured band edges.
func (qi *QueryIntent) Bucket(low, high float64) ConfidenceBucket {
	switch {
	case qi.Confidence > high:
		return ConfidenceHigh
	case qi.Confidence >= low:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
