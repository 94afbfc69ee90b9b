package types

import "time"

// QueryRequest is the canonical internal representation of a single-answer
// request entering the orchestrator.
type QueryRequest struct {
	RequestID    string       `json:"request_id"`
	Query        string       `json:"query"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	Context      QueryContext `json:"context"`
	SkipCache    bool         `json:"skip_cache,omitempty"`

	// Internal tracking
	ReceivedAt time.Time `json:"-"`
}

// IntelligenceRequest asks for a comprehensive, multi-source answer.
type IntelligenceRequest struct {
	RequestID string       `json:"request_id"`
	Query     string       `json:"query"`
	Context   QueryContext `json:"context"`

	ReceivedAt time.Time `json:"-"`
}

// DedupeResult is the outcome of routing an operation through the
// deduplicator.
type DedupeResult struct {
	Payload      string  `json:"payload"`
	WasDuplicate bool    `json:"was_duplicate"`
	CostSavedUSD float64 `json:"cost_saved_usd"`
}
