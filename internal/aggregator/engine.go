// Package aggregator fans a comprehensive query into concurrent
// sub-analyses and merges the survivors into one confidence-scored
// answer. One sub-analysis failing never aborts its siblings, and the
// caller always gets a response, degraded at worst.
package aggregator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/marketdata"
	"github.com/rentora-labs/atlas/internal/telemetry"
	"github.com/rentora-labs/atlas/internal/types"
)

// Sub-analysis source names, also used as metric labels.
const (
	SourceMarketData      = "market_data"
	SourceStrategy        = "strategy"
	SourcePropertyContext = "property_context"
	SourceComparables     = "comparable_search"
	SourcePersonalization = "personalization"
	SourceRiskAssessment  = "risk_assessment"
)

const (
	degradedConfidence = 0.1
	maxConfidence      = 0.95
	// Rent estimates further apart than this ratio count as a conflict.
	conflictRatio = 1.3
)

// dataBackedSources corroborate an answer with observed data. The
// generative sub-analyses produce guidance, not verification, so they
// never count toward cross-source agreement.
var dataBackedSources = map[string]bool{
	SourceMarketData:      true,
	SourceComparables:     true,
	SourcePersonalization: true,
}

// ModelCaller is the LLM surface the engine fans out to for the
// generative sub-analyses.
type ModelCaller interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Engine runs the parallel intelligence fan-out.
type Engine struct {
	store   marketdata.Store
	llm     ModelCaller
	cfg     config.AggregatorConfig
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func New(store marketdata.Store, llm ModelCaller, cfg config.AggregatorConfig, metrics *telemetry.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, llm: llm, cfg: cfg, metrics: metrics, logger: logger}
}

// subResult is one settled sub-analysis. rentEstimate is set by the
// numeric sources and drives conflict detection.
type subResult struct {
	source       string
	insight      types.Insight
	rentEstimate float64
	err          error
}

type subAnalysis struct {
	source string
	run    func(ctx context.Context, req types.IntelligenceRequest) (types.Insight, float64, error)
}

// Aggregate fans out all sub-analyses, waits until they settle or the
// deadline elapses, and merges whatever arrived. It never returns an
// error for aggregation shortfall; the degraded path is a response.
func (e *Engine) Aggregate(ctx context.Context, req types.IntelligenceRequest) types.AggregatedInsight {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Deadline)
	defer cancel()

	analyses := e.analyses()
	// Buffered so abandoned sub-analyses can settle without a reader.
	results := make(chan subResult, len(analyses))

	for _, a := range analyses {
		a := a
		go func() {
			subCtx, subCancel := context.WithTimeout(ctx, e.cfg.SourceTimeout)
			defer subCancel()
			insight, rent, err := a.run(subCtx, req)
			results <- subResult{source: a.source, insight: insight, rentEstimate: rent, err: err}
		}()
	}

	var settled []subResult
	var failed []string
	remaining := len(analyses)

collect:
	for remaining > 0 {
		select {
		case r := <-results:
			remaining--
			if r.err != nil {
				failed = append(failed, r.source)
				e.logger.Warn("sub-analysis failed",
					"source", r.source,
					"request_id", req.RequestID,
					"error", r.err)
				continue
			}
			settled = append(settled, r)
		case <-ctx.Done():
			// Late results are discarded; the buffer absorbs their sends.
			break collect
		}
	}

	insight := e.merge(req, settled, len(analyses), failed)
	insight.ResponseTimeMs = time.Since(start).Milliseconds()

	if e.metrics != nil {
		e.metrics.RecordAggregation(float64(insight.ResponseTimeMs), failed)
	}
	return insight
}

func (e *Engine) analyses() []subAnalysis {
	return []subAnalysis{
		{SourceMarketData, e.marketData},
		{SourceStrategy, e.strategy},
		{SourcePropertyContext, e.propertyContext},
		{SourceComparables, e.comparables},
		{SourcePersonalization, e.personalization},
		{SourceRiskAssessment, e.riskAssessment},
	}
}

// merge builds the aggregated answer from settled sub-analyses.
// Confidence divides the recency-weighted sum of source confidences by
// the total planned sources, so every failure strictly removes weight.
func (e *Engine) merge(req types.IntelligenceRequest, settled []subResult, planned int, failed []string) types.AggregatedInsight {
	out := types.AggregatedInsight{
		SourcesConsulted: planned,
		SourcesFailed:    planned - len(settled),
		ValidationStatus: types.ValidationUncertain,
	}

	if len(settled) == 0 {
		out.Degraded = true
		out.Confidence = degradedConfidence
		out.Primary = types.Insight{
			Source:     "fallback",
			Content:    "We could not complete a full analysis right now. Try again shortly, or narrow the question to a specific property or neighborhood.",
			Confidence: degradedConfidence,
			FetchedAt:  time.Now(),
		}
		out.ActionableSteps = []string{"Retry the request in a few minutes"}
		out.DataFreshness = time.Now()
		return out
	}

	sort.Slice(settled, func(i, j int) bool {
		return settled[i].insight.Confidence > settled[j].insight.Confidence
	})

	var weighted float64
	agreeing := 0
	oldest := settled[0].insight.FetchedAt
	for _, r := range settled {
		weighted += recencyWeight(r.insight.FetchedAt) * r.insight.Confidence
		if dataBackedSources[r.source] {
			agreeing++
		}
		if r.insight.FetchedAt.Before(oldest) {
			oldest = r.insight.FetchedAt
		}
		switch r.source {
		case SourceRiskAssessment:
			out.RiskAssessment = r.insight.Content
		case SourceStrategy:
			out.ActionableSteps = extractSteps(r.insight.Content)
		}
	}

	out.Primary = settled[0].insight
	for _, r := range settled[1:] {
		out.Supporting = append(out.Supporting, r.insight)
	}
	out.Confidence = min(weighted/float64(planned), maxConfidence)
	out.DataFreshness = oldest

	switch {
	case hasConflict(settled):
		out.ValidationStatus = types.ValidationConflicting
	case agreeing >= 3:
		out.ValidationStatus = types.ValidationConfirmed
	default:
		out.ValidationStatus = types.ValidationUncertain
	}

	if len(out.ActionableSteps) == 0 {
		out.ActionableSteps = []string{"Review the market summary before making an offer"}
	}
	return out
}

// recencyWeight discounts stale sources: full weight under an hour,
// linearly down to half weight at 24 hours, floor of 0.5.
func recencyWeight(fetchedAt time.Time) float64 {
	age := time.Since(fetchedAt)
	if age <= time.Hour {
		return 1.0
	}
	if age >= 24*time.Hour {
		return 0.5
	}
	return 1.0 - 0.5*float64(age-time.Hour)/float64(23*time.Hour)
}

// hasConflict reports whether two numeric sources disagree on the rent
// level by more than conflictRatio.
func hasConflict(settled []subResult) bool {
	var lo, hi float64
	for _, r := range settled {
		if r.rentEstimate <= 0 {
			continue
		}
		if lo == 0 || r.rentEstimate < lo {
			lo = r.rentEstimate
		}
		if r.rentEstimate > hi {
			hi = r.rentEstimate
		}
	}
	return lo > 0 && hi/lo > conflictRatio
}

// extractSteps pulls list items out of a strategy completion.
func extractSteps(content string) []string {
	var steps []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		trimmed := strings.TrimLeft(line, "-*0123456789. )")
		if trimmed != line && trimmed != "" {
			steps = append(steps, strings.TrimSpace(trimmed))
		}
	}
	return steps
}

// Preload speculatively warms the market-data cache for a location the
// user is browsing. Failures are logged and swallowed; this is purely
// advisory.
func (e *Engine) Preload(ctx context.Context, location, userID string) {
	if location != "" {
		if _, err := e.store.QueryMarketData(ctx, location, "standard"); err != nil {
			e.logger.Debug("preload market data failed", "location", location, "error", err)
		}
	}
	if userID != "" {
		if _, err := e.store.GetUserContext(ctx, userID); err != nil {
			e.logger.Debug("preload user context failed", "user_id", userID, "error", err)
		}
	}
}
