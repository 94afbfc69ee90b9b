// Package orchestrator composes the cost-optimization layers into one
// request pipeline: dedup and cache in front, classification and tier
// routing in the middle, providers (or the intelligence fan-out) behind.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rentora-labs/atlas/internal/aggregator"
	"github.com/rentora-labs/atlas/internal/analytics"
	"github.com/rentora-labs/atlas/internal/cache"
	"github.com/rentora-labs/atlas/internal/config"
	"github.com/rentora-labs/atlas/internal/dedup"
	"github.com/rentora-labs/atlas/internal/embedding"
	"github.com/rentora-labs/atlas/internal/marketdata"
	"github.com/rentora-labs/atlas/internal/provider"
	"github.com/rentora-labs/atlas/internal/router"
	"github.com/rentora-labs/atlas/internal/similarity"
	"github.com/rentora-labs/atlas/internal/telemetry"
	"github.com/rentora-labs/atlas/internal/types"
)

// Service owns every orchestration component. Constructed once in main;
// losing its in-memory state on restart is safe, it rebuilds from traffic.
type Service struct {
	cfg      func() *config.Config
	cache    *cache.ResponseCache
	embCache *embedding.Cache
	batcher  *embedding.Batcher
	dedup    *dedup.Deduplicator
	router   *router.Router
	registry *provider.Registry
	engine   *aggregator.Engine
	tracker  *analytics.Tracker
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// New wires the orchestration pipeline. store may be nil when no market
// database is configured; intelligence aggregation is then unavailable
// and GetComprehensiveIntelligence reports that as an error.
func New(cfg func() *config.Config, registry *provider.Registry, store marketdata.Store, tracker *analytics.Tracker, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		registry: registry,
		tracker:  tracker,
		metrics:  metrics,
		logger:   logger,
	}

	s.cache = cache.New(func() config.CacheConfig { return cfg().Cache })
	s.embCache = embedding.NewCache(func() config.EmbeddingConfig { return cfg().Embedding })
	s.batcher = embedding.NewBatcher(
		func() config.EmbeddingConfig { return cfg().Embedding },
		s.embedUpstream,
		s.embCache,
		logger,
	)
	s.dedup = dedup.New(func() config.DedupConfig { return cfg().Dedup }, logger)

	cb := cfg().Routing.CircuitBreaker
	health := router.NewHealthTracker(cb.FailureThreshold, cb.RecoveryProbeInterval)
	s.router = router.New(func() config.RoutingConfig { return cfg().Routing }, health, logger)

	if store != nil {
		s.engine = aggregator.New(store, routedCaller{s}, cfg().Aggregator, metrics, logger)
	}
	return s
}

// Classify runs classification and tier selection without executing.
func (s *Service) Classify(query string, qctx types.QueryContext) types.QueryClassification {
	return s.router.Route(query, qctx)
}

// Analytics returns the cumulative cost-optimization snapshot.
func (s *Service) Analytics() types.AnalyticsSnapshot {
	return s.tracker.Snapshot()
}

// GetCached checks the response cache without side effects beyond hit
// accounting. The fingerprint is model-agnostic so a cached answer
// survives routing changes.
func (s *Service) GetCached(query, systemPrompt string, estimatedCostUSD float64) (string, bool) {
	fp := similarity.Fingerprint(query, systemPrompt, "")
	return s.cache.Lookup(fp, query, systemPrompt, estimatedCostUSD)
}

// StoreCached inserts an answer with a TTL derived from its content.
func (s *Service) StoreCached(query, systemPrompt, payload, contentClass string) {
	fp := similarity.Fingerprint(query, systemPrompt, "")
	s.cache.Store(fp, query, systemPrompt, payload, contentClass)
}

// Dedupe routes an arbitrary operation through the request deduplicator.
func (s *Service) Dedupe(ctx context.Context, key, query string, exec dedup.Executor) (types.DedupeResult, error) {
	return s.dedup.Do(ctx, key, query, exec)
}

// Embed returns the embedding vector for text, batched and cached.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.batcher.Embed(ctx, text)
}

// Query answers a single-model request. The deduplicator is the front
// gate: in-flight and just-completed duplicates coalesce before the
// response cache is even consulted. On a genuine miss the query is
// classified, routed and executed with tier fallback; an error reaches
// the caller only after every fallback tier is exhausted.
func (s *Service) Query(ctx context.Context, req types.QueryRequest) (*types.QueryResponse, error) {
	start := time.Now()
	cls := s.router.Route(req.Query, req.Context)
	fp := similarity.Fingerprint(req.Query, req.SystemPrompt, "")

	var fromCache bool
	var usedTier types.ModelTier
	var usedModel string
	result, err := s.dedup.Do(ctx, fp, req.Query, func(ctx context.Context) (string, float64, error) {
		if !req.SkipCache {
			if payload, ok := s.cache.Lookup(fp, req.Query, req.SystemPrompt, cls.EstimatedCostUSD); ok {
				fromCache = true
				return payload, cls.EstimatedCostUSD, nil
			}
			s.tracker.RecordCacheLookup(false)
			s.metrics.RecordCacheLookup("miss")
		}

		text, tier, err := s.router.ExecuteWithFallback(ctx, cls.RecommendedTier, s.completionCall(req.Query, req.SystemPrompt, &usedModel), s.cfg().Routing.MaxRetries)
		if err != nil {
			return "", 0, err
		}
		usedTier = tier
		if !req.SkipCache {
			s.cache.Store(fp, req.Query, req.SystemPrompt, text, "")
		}
		return text, s.router.Selector().CostFor(tier, req.Query), nil
	})
	if err != nil {
		s.metrics.RecordQuery(telemetry.QueryLabels{
			Tier:       string(cls.RecommendedTier),
			Model:      cls.RecommendedModel,
			Status:     "error",
			DurationMs: float64(time.Since(start).Milliseconds()),
		})
		return nil, err
	}

	s.tracker.RecordDedup(result.WasDuplicate)
	switch {
	case result.WasDuplicate:
		s.metrics.RecordDedup("coalesced")
		s.tracker.RecordSaving(ctx, analytics.SourceDedup, result.CostSavedUSD)
		s.metrics.RecordSaving(analytics.SourceDedup, result.CostSavedUSD)
	case fromCache:
		s.metrics.RecordDedup("executed")
		s.recordCacheHit(ctx, cls.EstimatedCostUSD)
	default:
		s.metrics.RecordDedup("executed")
		escalated := usedTier.Level() > cls.RecommendedTier.Level()
		s.tracker.RecordRoute(escalated)
		if escalated {
			s.metrics.RecordFallback(string(cls.RecommendedTier), string(usedTier))
		}
		if cls.EstimatedSaved > 0 {
			s.tracker.RecordSaving(ctx, analytics.SourceRoute, cls.EstimatedSaved)
			s.metrics.RecordSaving(analytics.SourceRoute, cls.EstimatedSaved)
		}
	}

	model := usedModel
	if model == "" {
		model = cls.RecommendedModel
	}
	s.metrics.RecordQuery(telemetry.QueryLabels{
		Tier:       string(cls.RecommendedTier),
		Model:      model,
		Status:     "ok",
		DurationMs: float64(time.Since(start).Milliseconds()),
		CostUSD:    cls.EstimatedCostUSD,
	})

	costSaved := result.CostSavedUSD
	if fromCache && !result.WasDuplicate {
		costSaved = cls.EstimatedCostUSD
	}
	return &types.QueryResponse{
		RequestID:      req.RequestID,
		Answer:         result.Payload,
		Model:          model,
		Classification: cls,
		FromCache:      fromCache && !result.WasDuplicate,
		WasDuplicate:   result.WasDuplicate,
		CostSavedUSD:   costSaved,
		DurationMs:     time.Since(start).Milliseconds(),
	}, nil
}

// intelligenceScope keys and scopes cached aggregated insights so their
// JSON payloads never similarity-match plain chat lookups.
const intelligenceScope = "intelligence"

// GetComprehensiveIntelligence answers through the parallel fan-out.
// It never returns an error for aggregation shortfall; degraded answers
// are responses. The merged insight is cached like any other payload but
// in its own cache scope.
func (s *Service) GetComprehensiveIntelligence(ctx context.Context, req types.IntelligenceRequest) (*types.IntelligenceResponse, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("intelligence aggregation is not configured")
	}

	fp := similarity.Fingerprint(req.Query, intelligenceScope, "")
	topCost := s.router.Selector().CostFor(types.TierTop, req.Query)

	if payload, ok := s.cache.Lookup(fp, req.Query, intelligenceScope, topCost); ok {
		var insight types.AggregatedInsight
		if err := json.Unmarshal([]byte(payload), &insight); err == nil {
			s.recordCacheHit(ctx, topCost)
			return &types.IntelligenceResponse{RequestID: req.RequestID, Insight: insight}, nil
		}
	}
	s.tracker.RecordCacheLookup(false)
	s.metrics.RecordCacheLookup("miss")

	insight := s.engine.Aggregate(ctx, req)

	if !insight.Degraded {
		if data, err := json.Marshal(insight); err == nil {
			s.cache.Store(fp, req.Query, intelligenceScope, string(data), "")
		}
	}

	return &types.IntelligenceResponse{RequestID: req.RequestID, Insight: insight}, nil
}

// Preload warms market-data lookups for anticipated context.
func (s *Service) Preload(ctx context.Context, location, userID string) {
	if s.engine != nil {
		s.engine.Preload(ctx, location, userID)
	}
}

// FlushEmbeddings forces any pending embedding batch upstream.
func (s *Service) FlushEmbeddings() {
	s.batcher.Flush()
}

func (s *Service) recordCacheHit(ctx context.Context, savedUSD float64) {
	s.tracker.RecordCacheLookup(true)
	s.tracker.RecordSaving(ctx, analytics.SourceCache, savedUSD)
	s.metrics.RecordCacheLookup("hit")
	s.metrics.RecordSaving(analytics.SourceCache, savedUSD)
}

// completionCall builds the CallFunc the fallback loop drives. usedModel
// reports the model that actually answered.
func (s *Service) completionCall(prompt, systemPrompt string, usedModel *string) router.CallFunc {
	return func(ctx context.Context, tier types.ModelTier, model string) (string, error) {
		route, ok := s.cfg().Routing.Tiers[string(tier)]
		if !ok {
			return "", fmt.Errorf("no route for tier %s", tier)
		}
		p, err := provider.Resolve(s.registry, route)
		if err != nil {
			return "", err
		}
		comp, err := p.Complete(ctx, prompt, systemPrompt, model)
		if err != nil {
			return "", err
		}
		*usedModel = comp.Model
		return comp.Text, nil
	}
}

// embedUpstream is the batcher's upstream call.
func (s *Service) embedUpstream(ctx context.Context, texts []string) ([][]float32, error) {
	cfg := s.cfg().Embedding
	p, ok := s.registry.Get(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("embedding provider %q not configured", cfg.Provider)
	}
	vectors, err := p.Embed(ctx, texts, cfg.Model)
	if err == nil {
		s.metrics.EmbeddingBatchSize.Observe(float64(len(texts)))
	}
	return vectors, err
}

// routedCaller adapts routed execution to the aggregator's LLM surface.
// Generative sub-analyses start on the economy tier and escalate only on
// failure.
type routedCaller struct {
	s *Service
}

func (c routedCaller) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var usedModel string
	call := c.s.completionCall(prompt, systemPrompt, &usedModel)
	text, _, err := c.s.router.ExecuteWithFallback(ctx, types.TierEconomy, call, c.s.cfg().Routing.MaxRetries)
	return text, err
}
