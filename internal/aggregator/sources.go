package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rentora-labs/atlas/internal/marketdata"
	"github.com/rentora-labs/atlas/internal/types"
)

const (
	strategySystemPrompt = "You are a rental negotiation strategist. Given a renter's question, produce a short numbered list of concrete next steps. Be specific and practical."
	propertySystemPrompt = "You are a rental property analyst. Assess the property and lease context behind the question: condition signals, lease terms to watch, and anything unusual. Be concise."
	riskSystemPrompt     = "You are a rental risk assessor. In two or three sentences, state the main financial and contractual risks in this situation and how severe they are."
)

func (e *Engine) marketData(ctx context.Context, req types.IntelligenceRequest) (types.Insight, float64, error) {
	location := req.Context.Location
	if location == "" {
		return types.Insight{}, 0, fmt.Errorf("no location in request context")
	}

	records, err := e.store.QueryMarketData(ctx, location, "standard")
	if err != nil {
		return types.Insight{}, 0, err
	}
	if len(records) == 0 {
		return types.Insight{}, 0, fmt.Errorf("no market records for %s", location)
	}

	median, samples, newest := summarize(records)
	evidence := make([]string, 0, len(records))
	for _, r := range records {
		evidence = append(evidence, fmt.Sprintf("%s %dbr median $%.0f (%d samples, %s)",
			r.Location, r.Bedrooms, r.MedianRent, r.SampleSize, r.RecordedAt.Format("2006-01-02")))
	}

	return types.Insight{
		Source: SourceMarketData,
		Content: fmt.Sprintf("Median asking rent in %s is $%.0f across %d recent listings.",
			location, median, samples),
		Confidence: sampleConfidence(samples),
		Evidence:   evidence,
		FetchedAt:  newest,
	}, median, nil
}

func (e *Engine) comparables(ctx context.Context, req types.IntelligenceRequest) (types.Insight, float64, error) {
	location := req.Context.Location
	if location == "" {
		return types.Insight{}, 0, fmt.Errorf("no location in request context")
	}

	records, err := e.store.QueryMarketData(ctx, location, "commercial_index")
	if err != nil {
		return types.Insight{}, 0, err
	}
	if len(records) == 0 {
		return types.Insight{}, 0, fmt.Errorf("no comparables for %s", location)
	}

	median, samples, newest := summarize(records)
	return types.Insight{
		Source: SourceComparables,
		Content: fmt.Sprintf("Commercial index shows %d comparable units in %s around $%.0f.",
			samples, location, median),
		Confidence: sampleConfidence(samples) * 0.9,
		FetchedAt:  newest,
	}, median, nil
}

func (e *Engine) personalization(ctx context.Context, req types.IntelligenceRequest) (types.Insight, float64, error) {
	if req.Context.UserID == "" {
		return types.Insight{}, 0, fmt.Errorf("no user id in request context")
	}

	profile, err := e.store.GetUserContext(ctx, req.Context.UserID)
	if err != nil {
		return types.Insight{}, 0, err
	}
	if profile == nil {
		return types.Insight{}, 0, fmt.Errorf("no profile for user %s", req.Context.UserID)
	}

	var content strings.Builder
	fmt.Fprintf(&content, "Your search profile targets %dbr units with a budget of $%.0f/mo.", profile.Bedrooms, profile.BudgetUSD)
	if len(profile.PreferredLocations) > 0 {
		fmt.Fprintf(&content, " Preferred areas: %s.", strings.Join(profile.PreferredLocations, ", "))
	}

	return types.Insight{
		Source:     SourcePersonalization,
		Content:    content.String(),
		Confidence: 0.8,
		FetchedAt:  profile.UpdatedAt,
	}, 0, nil
}

func (e *Engine) strategy(ctx context.Context, req types.IntelligenceRequest) (types.Insight, float64, error) {
	return e.completeInsight(ctx, SourceStrategy, req.Query, strategySystemPrompt, 0.75)
}

func (e *Engine) propertyContext(ctx context.Context, req types.IntelligenceRequest) (types.Insight, float64, error) {
	prompt := req.Query
	if req.Context.HasLeaseAttached {
		prompt += "\n\nThe renter has attached their lease; flag clauses worth reviewing."
	}
	return e.completeInsight(ctx, SourcePropertyContext, prompt, propertySystemPrompt, 0.7)
}

func (e *Engine) riskAssessment(ctx context.Context, req types.IntelligenceRequest) (types.Insight, float64, error) {
	return e.completeInsight(ctx, SourceRiskAssessment, req.Query, riskSystemPrompt, 0.7)
}

func (e *Engine) completeInsight(ctx context.Context, source, prompt, systemPrompt string, confidence float64) (types.Insight, float64, error) {
	text, err := e.llm.Complete(ctx, prompt, systemPrompt)
	if err != nil {
		return types.Insight{}, 0, err
	}
	return types.Insight{
		Source:     source,
		Content:    text,
		Confidence: confidence,
		FetchedAt:  time.Now(),
	}, 0, nil
}

// summarize reduces records to their median rent, total sample size and
// newest observation time.
func summarize(records []marketdata.Record) (median float64, samples int, newest time.Time) {
	rents := make([]float64, 0, len(records))
	for _, r := range records {
		rents = append(rents, r.MedianRent)
		samples += r.SampleSize
		if r.RecordedAt.After(newest) {
			newest = r.RecordedAt
		}
	}
	median = medianOf(rents)
	return median, samples, newest
}

func medianOf(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// sampleConfidence scales with observation count: thin data caps low.
func sampleConfidence(samples int) float64 {
	switch {
	case samples >= 50:
		return 0.9
	case samples >= 20:
		return 0.8
	case samples >= 5:
		return 0.65
	default:
		return 0.5
	}
}
