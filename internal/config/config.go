package config

import "time"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Cache      CacheConfig      `yaml:"cache"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Routing    RoutingConfig    `yaml:"routing"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	// RPMLimit caps requests per minute per client. Zero disables limiting.
	RPMLimit int `yaml:"rpm_limit"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + itoa(d.Port) + "/" + d.Name + "?sslmode=disable"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	s := ""
	for i > 0 {
		s = string(rune('0'+i%10)) + s
		i /= 10
	}
	return s
}

type RedisConfig struct {
	Addresses []string `yaml:"addresses"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	PoolSize  int      `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// CacheConfig controls the response cache. TTLs reflect content volatility.
// The thresholds and TTL values are untuned product constants, kept
// configurable for empirical re-tuning.
type CacheConfig struct {
	MaxEntries          int                      `yaml:"max_entries"`
	SimilarityThreshold float64                  `yaml:"similarity_threshold"`
	DefaultTTL          time.Duration            `yaml:"default_ttl"`
	MarketTTL           time.Duration            `yaml:"market_ttl"`
	NegotiationTTL      time.Duration            `yaml:"negotiation_ttl"`
	DatasetTTLs         map[string]time.Duration `yaml:"dataset_ttls"`
}

type DedupConfig struct {
	CoalescingWindow    time.Duration `yaml:"coalescing_window"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	PartialCredit       float64       `yaml:"partial_credit"`
	MaxPending          int           `yaml:"max_pending"`
}

type EmbeddingConfig struct {
	Provider            string        `yaml:"provider"`
	Model               string        `yaml:"model"`
	BatchWindow         time.Duration `yaml:"batch_window"`
	MaxBatchSize        int           `yaml:"max_batch_size"`
	MaxEntries          int           `yaml:"max_entries"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
}

type RoutingConfig struct {
	Tiers                map[string]TierRoute  `yaml:"tiers"`
	Pricing              map[string]PriceEntry `yaml:"pricing"`
	LongContextThreshold int                   `yaml:"long_context_threshold"`
	MaxRetries           int                   `yaml:"max_retries"`
	CircuitBreaker       CircuitBreakerConfig  `yaml:"circuit_breaker"`
}

// TierRoute binds a capability tier to a concrete provider and model.
type TierRoute struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// PriceEntry is USD per 1K tokens.
type PriceEntry struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

type CircuitBreakerConfig struct {
	FailureThreshold      int           `yaml:"failure_threshold"`
	RecoveryProbeInterval time.Duration `yaml:"recovery_probe_interval"`
}

type AggregatorConfig struct {
	Deadline      time.Duration `yaml:"deadline"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
			RPMLimit:         120,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "atlas",
			User:            "atlas",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addresses: []string{"localhost:6379"},
			DB:        0,
			PoolSize:  50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Cache: CacheConfig{
			MaxEntries:          2000,
			SimilarityThreshold: 0.8,
			DefaultTTL:          15 * time.Minute,
			MarketTTL:           2 * time.Hour,
			NegotiationTTL:      30 * time.Minute,
			DatasetTTLs: map[string]time.Duration{
				"predictions":            24 * time.Hour,
				"authoritative_baseline": 7 * 24 * time.Hour,
				"commercial_index":       6 * time.Hour,
			},
		},
		Dedup: DedupConfig{
			CoalescingWindow:    5 * time.Second,
			SimilarityThreshold: 0.9,
			PartialCredit:       0.70,
			MaxPending:          500,
		},
		Embedding: EmbeddingConfig{
			Provider:            "openai",
			Model:               "text-embedding-3-small",
			BatchWindow:         500 * time.Millisecond,
			MaxBatchSize:        32,
			MaxEntries:          1000,
			SimilarityThreshold: 0.95,
		},
		Routing: RoutingConfig{
			Tiers: map[string]TierRoute{
				"economy":      {Provider: "openai", Model: "gpt-4o-mini"},
				"long_context": {Provider: "anthropic", Model: "claude-3-5-haiku"},
				"top":          {Provider: "anthropic", Model: "claude-sonnet-4"},
			},
			Pricing: map[string]PriceEntry{
				"gpt-4o-mini":      {Input: 0.00015, Output: 0.0006},
				"claude-3-5-haiku": {Input: 0.0008, Output: 0.004},
				"claude-sonnet-4":  {Input: 0.003, Output: 0.015},
			},
			LongContextThreshold: 6000,
			MaxRetries:           2,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:      5,
				RecoveryProbeInterval: 15 * time.Second,
			},
		},
		Aggregator: AggregatorConfig{
			Deadline:      8 * time.Second,
			SourceTimeout: 5 * time.Second,
		},
	}
}
