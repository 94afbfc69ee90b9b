package types

import "time"

// ValidationStatus classifies cross-source agreement for an aggregated answer.
type ValidationStatus string

const (
	ValidationConfirmed   ValidationStatus = "confirmed"   // 3+ agreeing sources
	ValidationUncertain   ValidationStatus = "uncertain"   // 1-2 sources
	ValidationConflicting ValidationStatus = "conflicting" // disagreement detected
)

// Insight is one sub-analysis result inside an aggregated answer.
type Insight struct {
	Source     string    `json:"source"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	Evidence   []string  `json:"evidence,omitempty"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// AggregatedInsight is the merged result of a comprehensive fan-out.
type AggregatedInsight struct {
	Primary          Insight          `json:"primary_insight"`
	Supporting       []Insight        `json:"supporting_insights"`
	ActionableSteps  []string         `json:"actionable_steps"`
	RiskAssessment   string           `json:"risk_assessment,omitempty"`
	Confidence       float64          `json:"confidence"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	SourcesConsulted int              `json:"sources_consulted"`
	SourcesFailed    int              `json:"sources_failed"`
	ResponseTimeMs   int64            `json:"response_time_ms"`
	DataFreshness    time.Time        `json:"data_freshness"`
	Degraded         bool             `json:"degraded"`
}

// QueryResponse is the orchestrator's answer on the single-call path.
type QueryResponse struct {
	RequestID      string              `json:"request_id"`
	Answer         string              `json:"answer"`
	Model          string              `json:"model"`
	Classification QueryClassification `json:"classification"`
	FromCache      bool                `json:"from_cache"`
	WasDuplicate   bool                `json:"was_duplicate"`
	CostSavedUSD   float64             `json:"cost_saved_usd"`
	DurationMs     int64               `json:"duration_ms"`
}

// IntelligenceResponse wraps an aggregated insight for the caller.
type IntelligenceResponse struct {
	RequestID string            `json:"request_id"`
	Insight   AggregatedInsight `json:"insight"`
}

// AnalyticsSnapshot is the observability surface for external dashboards.
type AnalyticsSnapshot struct {
	TotalSavedUSD   float64  `json:"total_saved_usd"`
	CacheHitRate    float64  `json:"cache_hit_rate"`
	DedupRate       float64  `json:"dedup_rate"`
	FallbackRate    float64  `json:"fallback_rate"`
	Recommendations []string `json:"recommendations"`
}
