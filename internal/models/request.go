package models

// HistoryEntry is one turn of prior conversation, passed through to the
// classifier and merger. Persistence lives outside this service.
type HistoryEntry struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// AskRequest for POST /api/v1/ask
type AskRequest struct {
	Query      string         `json:"query"`
	History    []HistoryEntry `json:"history,omitempty"`
	MaxRows    int            `json:"max_rows,omitempty"`
	MaxChunks  int            `json:"max_chunks,omitempty"`
	TimeoutSec int            `json:"timeout_sec,omitempty"`
}

const maxHistoryEntries = 10

func (r *AskRequest) SetDefaults() {
	if r.MaxRows <= 0 {
		r.MaxRows = 100
	}
	if r.MaxRows > 1000 {
		r.MaxRows = 1000
	}
	if r.MaxChunks <= 0 {
		r.MaxChunks = 5
	}
	if r.MaxChunks > 20 {
		r.MaxChunks = 20
	}
	if r.TimeoutSec <= 0 {
		r.TimeoutSec = 120
	}
	if r.TimeoutSec > 600 {
		r.TimeoutSec = 600
	}
	if len(r.History) > maxHistoryEntries {
		r.History = r.History[len(r.History)-maxHistoryEntries:]
	}
}
