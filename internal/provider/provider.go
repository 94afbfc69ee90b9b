// Package provider contains the upstream LLM client interface and its
// HTTP implementations. Providers are assumed per-token billed; everything
// above this package exists to call them less often.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rentora-labs/atlas/internal/config"
)

// Completion is one model answer with its token accounting.
type Completion struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Provider is the upstream LLM surface the orchestrator mediates.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt, systemPrompt, model string) (*Completion, error)
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)
}

// Registry manages providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Replace swaps the full provider set for the one in next. Request
// goroutines resolve through Get concurrently, so the swap happens under
// the write lock and in one step; no caller ever observes a partial set.
func (r *Registry) Replace(next *Registry) {
	next.mu.RLock()
	providers := make(map[string]Provider, len(next.providers))
	for name, p := range next.providers {
		providers[name] = p
	}
	next.mu.RUnlock()

	r.mu.Lock()
	r.providers = providers
	r.mu.Unlock()
}

// BuildFromConfig builds providers from the providers config.
func BuildFromConfig(provCfg *config.ProvidersConfig) *Registry {
	registry := NewRegistry()
	for name, cfg := range provCfg.Providers {
		client := &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxConcurrent,
				MaxIdleConnsPerHost: cfg.MaxConcurrent,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}

		var p Provider
		switch cfg.Type {
		case "anthropic":
			p = NewAnthropic(cfg, client)
		default:
			// OpenAI-compatible is the lingua franca for unknown types.
			p = NewOpenAI(cfg, client)
		}
		registry.Register(name, p)
	}
	return registry
}

// Resolve returns the provider configured for a tier route.
func Resolve(registry *Registry, route config.TierRoute) (Provider, error) {
	p, ok := registry.Get(route.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", route.Provider)
	}
	return p, nil
}
