package router

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/types"
)

func testSelector() *Selector {
	cfg := config.DefaultConfig().Routing
	return NewSelector(func() config.RoutingConfig { return cfg })
}

func TestSelect_HighAccuracyGetsTopTier(t *testing.T) {
	s := testSelector()
	cls := types.QueryClassification{
		Complexity: types.ComplexitySimple,
		Domain:     types.DomainGeneral,
		Accuracy:   types.AccuracyHigh,
	}
	got := s.Select("short question", cls, types.QueryContext{PrioritizeCost: true})
	if got.RecommendedTier != types.TierTop {
		t.Errorf("tier = %s, want top (high accuracy overrides cost preference)", got.RecommendedTier)
	}
	if got.EstimatedSaved != 0 {
		t.Errorf("top tier must claim zero savings, got %v", got.EstimatedSaved)
	}
}

func TestSelect_LegalDomainNeverDowngraded_Fuzz(t *testing.T) {
	s := testSelector()
	rng := rand.New(rand.NewSource(42))

	complexities := []types.Complexity{types.ComplexitySimple, types.ComplexityModerate, types.ComplexityComplex}
	accuracies := []types.Accuracy{types.AccuracyLow, types.AccuracyMedium, types.AccuracyHigh}

	for i := 0; i < 500; i++ {
		cls := types.QueryClassification{
			Complexity: complexities[rng.Intn(len(complexities))],
			Accuracy:   accuracies[rng.Intn(len(accuracies))],
			Domain:     types.DomainLegal,
		}
		qctx := types.QueryContext{PrioritizeCost: rng.Intn(2) == 0}
		query := strings.Repeat("w ", rng.Intn(5000))

		got := s.Select(query, cls, qctx)
		if got.RecommendedTier != types.TierTop {
			t.Fatalf("legal domain routed to %s (cls=%+v, cost=%v, len=%d)",
				got.RecommendedTier, cls, qctx.PrioritizeCost, len(query))
		}
	}
}

func TestSelect_HighAccuracyNeverDowngraded_Fuzz(t *testing.T) {
	s := testSelector()
	rng := rand.New(rand.NewSource(7))

	domains := []types.Domain{types.DomainGeneral, types.DomainMarketAnalysis, types.DomainNegotiation, types.DomainCalculation}
	complexities := []types.Complexity{types.ComplexitySimple, types.ComplexityModerate, types.ComplexityComplex}

	for i := 0; i < 500; i++ {
		cls := types.QueryClassification{
			Complexity: complexities[rng.Intn(len(complexities))],
			Accuracy:   types.AccuracyHigh,
			Domain:     domains[rng.Intn(len(domains))],
		}
		qctx := types.QueryContext{PrioritizeCost: rng.Intn(2) == 0}
		got := s.Select("anything at all", cls, qctx)
		if got.RecommendedTier != types.TierTop {
			t.Fatalf("high accuracy routed to %s (cls=%+v)", got.RecommendedTier, cls)
		}
	}
}

func TestSelect_LongPromptGetsLongContextTier(t *testing.T) {
	s := testSelector()
	cls := types.QueryClassification{
		Complexity: types.ComplexityModerate,
		Domain:     types.DomainGeneral,
		Accuracy:   types.AccuracyMedium,
	}
	long := strings.Repeat("lorem ipsum ", 1000) // > 6000 chars

	got := s.Select(long, cls, types.QueryContext{})
	if got.RecommendedTier != types.TierLongContext {
		t.Errorf("tier = %s, want long_context", got.RecommendedTier)
	}
}

func TestSelect_LegalOverridesLengthRouting(t *testing.T) {
	// "Summarize this 5-page lease in detail": legal domain and long text.
	// Domain must win over the length-based long-context route.
	s := testSelector()
	query := "Summarize this lease in detail: " + strings.Repeat("clause text ", 1000)
	cls := Classify(query, types.QueryContext{})
	if cls.Domain != types.DomainLegal {
		t.Fatalf("expected legal domain, got %s", cls.Domain)
	}

	got := s.Select(query, cls, types.QueryContext{})
	if got.RecommendedTier != types.TierTop {
		t.Errorf("tier = %s, want top (domain overrides length)", got.RecommendedTier)
	}
}

func TestSelect_SimpleLowAccuracyGetsEconomy(t *testing.T) {
	s := testSelector()
	cls := types.QueryClassification{
		Complexity: types.ComplexitySimple,
		Domain:     types.DomainGeneral,
		Accuracy:   types.AccuracyLow,
	}
	got := s.Select("whats a nice area", cls, types.QueryContext{})
	if got.RecommendedTier != types.TierEconomy {
		t.Errorf("tier = %s, want economy", got.RecommendedTier)
	}
	if got.EstimatedSaved <= 0 {
		t.Error("economy routing should report positive estimated savings")
	}
}

func TestSelect_ModerateCostPriorityReducesConfidence(t *testing.T) {
	s := testSelector()
	cls := types.QueryClassification{
		Complexity: types.ComplexityModerate,
		Domain:     types.DomainGeneral,
		Accuracy:   types.AccuracyMedium,
		Confidence: 0.8,
	}
	got := s.Select("a moderately involved question about neighborhoods", cls, types.QueryContext{PrioritizeCost: true})
	if got.RecommendedTier != types.TierEconomy {
		t.Errorf("tier = %s, want economy under cost priority", got.RecommendedTier)
	}
	if got.Confidence >= 0.8 {
		t.Errorf("confidence should be reduced, got %v", got.Confidence)
	}
}

func TestSelect_ModerateWithoutCostPriorityDefaultsTop(t *testing.T) {
	s := testSelector()
	cls := types.QueryClassification{
		Complexity: types.ComplexityModerate,
		Domain:     types.DomainGeneral,
		Accuracy:   types.AccuracyMedium,
	}
	got := s.Select("a moderately involved question about neighborhoods", cls, types.QueryContext{})
	if got.RecommendedTier != types.TierTop {
		t.Errorf("tier = %s, want top (safe default)", got.RecommendedTier)
	}
}
