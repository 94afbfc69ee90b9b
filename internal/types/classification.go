package types

// Complexity buckets queries by how much reasoning they demand.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Level returns a numeric level for comparison. Higher means more demanding.
func (c Complexity) Level() int {
	switch c {
	case ComplexitySimple:
		return 0
	case ComplexityModerate:
		return 1
	case ComplexityComplex:
		return 2
	default:
		return -1
	}
}

// Domain is the subject area a query falls into.
type Domain string

const (
	DomainGeneral        Domain = "general"
	DomainMarketAnalysis Domain = "market_analysis"
	DomainNegotiation    Domain = "negotiation"
	DomainLegal          Domain = "legal"
	DomainCalculation    Domain = "calculation"
)

// Accuracy is how correct the answer has to be before cost matters.
type Accuracy string

const (
	AccuracyLow    Accuracy = "low"
	AccuracyMedium Accuracy = "medium"
	AccuracyHigh   Accuracy = "high"
)

// Level returns a numeric level for comparison. Higher means stricter.
func (a Accuracy) Level() int {
	switch a {
	case AccuracyLow:
		return 0
	case AccuracyMedium:
		return 1
	case AccuracyHigh:
		return 2
	default:
		return -1
	}
}

// ModelTier identifies a capability/cost tier, not a concrete model id.
// The concrete model per tier comes from routing config.
type ModelTier string

const (
	TierEconomy     ModelTier = "economy"
	TierLongContext ModelTier = "long_context"
	TierTop         ModelTier = "top"
)

// Level returns a numeric level for comparison. Higher means more capable.
func (t ModelTier) Level() int {
	switch t {
	case TierEconomy:
		return 0
	case TierLongContext:
		return 1
	case TierTop:
		return 2
	default:
		return -1
	}
}

func ParseModelTier(s string) (ModelTier, bool) {
	switch ModelTier(s) {
	case TierEconomy, TierLongContext, TierTop:
		return ModelTier(s), true
	default:
		return "", false
	}
}

// QueryClassification is the classifier's verdict for one query.
// Ephemeral: recomputed per request, never persisted.
type QueryClassification struct {
	Complexity       Complexity `json:"complexity"`
	Domain           Domain     `json:"domain"`
	Accuracy         Accuracy   `json:"accuracy_required"`
	RecommendedTier  ModelTier  `json:"recommended_tier"`
	RecommendedModel string     `json:"recommended_model"`
	Confidence       float64    `json:"confidence"`
	EstimatedCostUSD float64    `json:"estimated_cost_usd"`
	EstimatedSaved   float64    `json:"estimated_saved_usd"`
}

// QueryContext carries conversational signals that influence classification
// and routing. All fields are optional.
type QueryContext struct {
	UserID            string `json:"user_id,omitempty"`
	Location          string `json:"location,omitempty"`
	ActiveNegotiation bool   `json:"active_negotiation,omitempty"`
	HasLeaseAttached  bool   `json:"has_lease_attached,omitempty"`
	PrioritizeCost    bool   `json:"prioritize_cost,omitempty"`
}
