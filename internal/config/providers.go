package config

import "time"

// ProvidersConfig holds the upstream LLM provider catalog loaded from
// providers.yaml. Keys are the provider names referenced by routing tiers.
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one upstream API endpoint.
type ProviderConfig struct {
	// Type selects the wire adapter: "openai" or "anthropic".
	Type       string `yaml:"type"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version,omitempty"`
	// MaxConcurrent sizes the HTTP connection pool per provider.
	MaxConcurrent int               `yaml:"max_concurrent"`
	Timeout       time.Duration     `yaml:"timeout"`
	Headers       map[string]string `yaml:"headers,omitempty"`
}
