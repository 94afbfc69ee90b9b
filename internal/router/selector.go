package router

import (
	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/similarity"
	"github.com/rentora-labs/atlas/internal/types"
)

// assumedOutputTokens is the flat completion-size assumption used for cost
// estimates. An analytics signal, not a billing source of truth.
const assumedOutputTokens = 300

// Selector picks the cheapest model tier meeting a query's accuracy bar.
type Selector struct {
	cfg func() config.RoutingConfig
}

func NewSelector(cfg func() config.RoutingConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select applies the routing policy in order, first match wins:
//
//  1. high accuracy, complex, or legal -> top tier, never downgraded
//  2. prompt longer than the long-context threshold -> long-context tier
//  3. simple and low accuracy -> economy tier
//  4. moderate with a cost-priority caller -> economy tier, reduced confidence
//  5. otherwise -> top tier (safe default)
//
// The returned classification carries the chosen tier, concrete model and
// estimated cost/savings versus always using the top tier.
func (s *Selector) Select(query string, cls types.QueryClassification, qctx types.QueryContext) types.QueryClassification {
	cfg := s.cfg()

	var tier types.ModelTier
	switch {
	case cls.Accuracy == types.AccuracyHigh ||
		cls.Complexity == types.ComplexityComplex ||
		cls.Domain == types.DomainLegal:
		// Hard invariant: never downgraded, even under an aggressive
		// cost preference.
		tier = types.TierTop
	case len(query) > cfg.LongContextThreshold:
		tier = types.TierLongContext
	case cls.Complexity == types.ComplexitySimple && cls.Accuracy == types.AccuracyLow:
		tier = types.TierEconomy
	case cls.Complexity == types.ComplexityModerate && qctx.PrioritizeCost:
		tier = types.TierEconomy
		cls.Confidence *= 0.8
	default:
		tier = types.TierTop
	}

	cls.RecommendedTier = tier
	cls.RecommendedModel = cfg.Tiers[string(tier)].Model

	tokens := similarity.EstimateTokens(query)
	chosen := s.estimateCost(cfg, cls.RecommendedModel, tokens)
	top := s.estimateCost(cfg, cfg.Tiers[string(types.TierTop)].Model, tokens)
	cls.EstimatedCostUSD = chosen
	if saved := top - chosen; saved > 0 {
		cls.EstimatedSaved = saved
	}
	return cls
}

// ModelFor returns the concrete model id configured for a tier.
func (s *Selector) ModelFor(tier types.ModelTier) string {
	return s.cfg().Tiers[string(tier)].Model
}

// CostFor estimates the USD cost of running a query on a tier's model.
func (s *Selector) CostFor(tier types.ModelTier, query string) float64 {
	cfg := s.cfg()
	return s.estimateCost(cfg, cfg.Tiers[string(tier)].Model, similarity.EstimateTokens(query))
}

func (s *Selector) estimateCost(cfg config.RoutingConfig, model string, inputTokens int) float64 {
	price, ok := cfg.Pricing[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)*price.Input + assumedOutputTokens*price.Output) / 1000
}
