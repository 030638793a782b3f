package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RAGConfig represents the main query-service configuration.
type RAGConfig struct {
	// Service configuration
	Service ServiceConfig `json:"service" yaml:"service"`

	// Database configuration (Postgres audit store)
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Circuit breaker configurations
	CircuitBreakers CircuitBreakersConfig `json:"circuit_breakers" yaml:"circuit_breakers"`

	// Health check configuration
	Health HealthConfig `json:"health" yaml:"health"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Vector/embedding retrieval configuration
	Vector VectorConfig `json:"vector" yaml:"vector"`

	// Embeddings service configuration
	Embeddings EmbeddingsConfig `json:"embeddings" yaml:"embeddings"`

	// Generation (LLM) service configuration
	Generation GenerationConfig `json:"generation" yaml:"generation"`

	// Tracing configuration
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Per-user rate limiting configuration
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Analytics summary cache configuration
	Analytics AnalyticsConfig `json:"analytics" yaml:"analytics"`
}

// ServiceConfig contains basic HTTP server configuration
type ServiceConfig struct {
	Port            int           `json:"port" yaml:"port"`
	HealthPort      int           `json:"health_port" yaml:"health_port"`
	GracefulTimeout time.Duration `json:"graceful_timeout" yaml:"graceful_timeout"`
	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout"`
	MaxHeaderBytes  int           `json:"max_header_bytes" yaml:"max_header_bytes"`
}

// DatabaseConfig contains Postgres connection pool configuration
type DatabaseConfig struct {
	DSN             string        `json:"dsn" yaml:"dsn"`
	MaxConnections  int           `json:"max_connections" yaml:"max_connections"`
	IdleConnections int           `json:"idle_connections" yaml:"idle_connections"`
	MaxLifetime     time.Duration `json:"max_lifetime" yaml:"max_lifetime"`
	SSLMode         string        `json:"ssl_mode" yaml:"ssl_mode"`
	WriteWorkers    int           `json:"write_workers" yaml:"write_workers"`
}

// CircuitBreakersConfig contains all circuit breaker configurations
type CircuitBreakersConfig struct {
	Redis     CircuitBreakerConfig `json:"redis" yaml:"redis"`
	Database  CircuitBreakerConfig `json:"database" yaml:"database"`
	Generator CircuitBreakerConfig `json:"generator" yaml:"generator"`
}

// CircuitBreakerConfig represents circuit breaker settings
type CircuitBreakerConfig struct {
	MaxRequests   uint32        `json:"max_requests" yaml:"max_requests"`
	Interval      time.Duration `json:"interval" yaml:"interval"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	MaxFailures   uint32        `json:"max_failures" yaml:"max_failures"`
	OnStateChange bool          `json:"on_state_change" yaml:"on_state_change"`
	Enabled       bool          `json:"enabled" yaml:"enabled"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Enabled       bool          `json:"enabled" yaml:"enabled"`
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
	Port          int           `json:"port" yaml:"port"`

	Checks map[string]HealthCheckConfig `json:"checks" yaml:"checks"`
}

// HealthCheckConfig represents individual health check settings
type HealthCheckConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Critical bool          `json:"critical" yaml:"critical"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
	Encoding    string `json:"encoding" yaml:"encoding"` // "json" or "console"

	OutputPaths      []string `json:"output_paths" yaml:"output_paths"`
	ErrorOutputPaths []string `json:"error_output_paths" yaml:"error_output_paths"`
}

// VectorConfig contains vector index retrieval settings
type VectorConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Host      string        `json:"host" yaml:"host"`
	Port      int           `json:"port" yaml:"port"`
	Chunks    string        `json:"chunks" yaml:"chunks"`
	TopK      int           `json:"top_k" yaml:"top_k"`
	Threshold float64       `json:"threshold" yaml:"threshold"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout"`

	ExpectedEmbeddingDim int `json:"expected_embedding_dim" yaml:"expected_embedding_dim"`

	// Overfetch multiplier applied before in-memory chapter/book filtering
	FilterPoolMultiplier int `json:"filter_pool_multiplier" yaml:"filter_pool_multiplier"`

	// MMR re-ranking (diversity)
	MmrEnabled        bool    `json:"mmr_enabled" yaml:"mmr_enabled"`
	MmrLambda         float64 `json:"mmr_lambda" yaml:"mmr_lambda"`
	MmrPoolMultiplier int     `json:"mmr_pool_multiplier" yaml:"mmr_pool_multiplier"`
}

// EmbeddingsConfig contains embeddings service settings
type EmbeddingsConfig struct {
	Provider     string                   `json:"provider" yaml:"provider"` // "cohere" | "google"
	APIKey       string                   `json:"api_key" yaml:"api_key"`
	BaseURL      string                   `json:"base_url" yaml:"base_url"`
	DefaultModel string                   `json:"default_model" yaml:"default_model"`
	Dimensions   int                      `json:"dimensions" yaml:"dimensions"`
	Timeout      time.Duration            `json:"timeout" yaml:"timeout"`
	CacheTTL     time.Duration            `json:"cache_ttl" yaml:"cache_ttl"`
	MaxLRU       int                      `json:"max_lru" yaml:"max_lru"`
	UseRedisCache bool                    `json:"use_redis_cache" yaml:"use_redis_cache"`
	RedisAddr    string                   `json:"redis_addr" yaml:"redis_addr"`
	Chunking     EmbeddingsChunkingConfig `json:"chunking" yaml:"chunking"`
}

// EmbeddingsChunkingConfig contains chunking settings for book ingestion
type EmbeddingsChunkingConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	MaxTokens     int  `json:"max_tokens" yaml:"max_tokens"`
	OverlapTokens int  `json:"overlap_tokens" yaml:"overlap_tokens"`
}

// GenerationConfig contains LLM generator settings
type GenerationConfig struct {
	Provider    string        `json:"provider" yaml:"provider"` // "openai" | "anthropic"
	APIKey      string        `json:"api_key" yaml:"api_key"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
}

// TracingConfig contains OpenTelemetry tracing settings
type TracingConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	ServiceName  string `json:"service_name" yaml:"service_name"`
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// RateLimitConfig contains per-user sliding-window rate limit settings
type RateLimitConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	MaxRequests    int           `json:"max_requests" yaml:"max_requests"`
	Window         time.Duration `json:"window" yaml:"window"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// AnalyticsConfig contains the analytics summary cache settings
type AnalyticsConfig struct {
	CacheTTL      time.Duration `json:"cache_ttl" yaml:"cache_ttl"`
	MaxCacheSize  int           `json:"max_cache_size" yaml:"max_cache_size"`
	EvictionCount int           `json:"eviction_count" yaml:"eviction_count"`
}

// DefaultRAGConfig returns the default configuration
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Service: ServiceConfig{
			Port:            8000,
			HealthPort:      8081,
			GracefulTimeout: 30 * time.Second,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
		},
		Database: DatabaseConfig{
			MaxConnections:  25,
			IdleConnections: 5,
			MaxLifetime:     5 * time.Minute,
			SSLMode:         "require",
			WriteWorkers:    4,
		},
		CircuitBreakers: CircuitBreakersConfig{
			Redis: CircuitBreakerConfig{
				MaxRequests:   5,
				Interval:      30 * time.Second,
				Timeout:       60 * time.Second,
				MaxFailures:   5,
				OnStateChange: true,
				Enabled:       true,
			},
			Database: CircuitBreakerConfig{
				MaxRequests:   3,
				Interval:      30 * time.Second,
				Timeout:       60 * time.Second,
				MaxFailures:   3,
				OnStateChange: true,
				Enabled:       true,
			},
			Generator: CircuitBreakerConfig{
				MaxRequests:   1,
				Interval:      60 * time.Second,
				Timeout:       60 * time.Second,
				MaxFailures:   5,
				OnStateChange: true,
				Enabled:       true,
			},
		},
		Health: HealthConfig{
			Enabled:       true,
			CheckInterval: 30 * time.Second,
			Timeout:       5 * time.Second,
			Port:          8081,
			Checks: map[string]HealthCheckConfig{
				"redis": {
					Enabled:  true,
					Critical: false,
					Timeout:  2 * time.Second,
					Interval: 30 * time.Second,
				},
				"database": {
					Enabled:  true,
					Critical: true,
					Timeout:  2 * time.Second,
					Interval: 30 * time.Second,
				},
				"vector_index": {
					Enabled:  true,
					Critical: true,
					Timeout:  2 * time.Second,
					Interval: 30 * time.Second,
				},
				"llm_service": {
					Enabled:  true,
					Critical: true,
					Timeout:  2 * time.Second,
					Interval: 30 * time.Second,
				},
			},
		},
		Logging: LoggingConfig{
			Level:            "info",
			Development:      false,
			Encoding:         "json",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
		Vector: VectorConfig{
			Enabled:              true,
			Host:                 "qdrant",
			Port:                 6333,
			Chunks:               "book_chunks",
			TopK:                 5,
			Threshold:            0.5,
			Timeout:              5 * time.Second,
			FilterPoolMultiplier: 4,
			MmrEnabled:           false,
			MmrLambda:            0.5,
			MmrPoolMultiplier:    3,
		},
		Embeddings: EmbeddingsConfig{
			Provider: "cohere",
			Timeout:  5 * time.Second,
			CacheTTL: time.Hour,
			MaxLRU:   2048,
			Chunking: EmbeddingsChunkingConfig{
				Enabled:       true,
				MaxTokens:     500,
				OverlapTokens: 50,
			},
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.3,
			MaxTokens:   800,
			Timeout:     30 * time.Second,
			MaxRetries:  2,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "bookrag-query-service",
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			MaxRequests:     60,
			Window:          time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			CacheTTL:      5 * time.Minute,
			MaxCacheSize:  1000,
			EvictionCount: 100,
		},
	}
}

// ValidateRAGConfig validates a raw configuration map loaded from file.
func ValidateRAGConfig(config map[string]interface{}) error {
	if service, ok := config["service"].(map[string]interface{}); ok {
		if port, ok := service["port"].(float64); ok {
			if port <= 0 || port > 65535 {
				return fmt.Errorf("service.port must be between 1 and 65535, got %v", port)
			}
		}
	}
	if rl, ok := config["rate_limit"].(map[string]interface{}); ok {
		if max, ok := rl["max_requests"].(float64); ok && max < 0 {
			return fmt.Errorf("rate_limit.max_requests must be non-negative, got %v", max)
		}
	}
	return nil
}

// RAGConfigManager wraps a ConfigManager to expose a typed, hot-reloadable
// RAGConfig built from the raw config file contents.
type RAGConfigManager struct {
	configManager *ConfigManager
	config        *RAGConfig
	logger        *zap.Logger
}

// NewRAGConfigManager creates a new RAG config manager
func NewRAGConfigManager(configManager *ConfigManager, logger *zap.Logger) *RAGConfigManager {
	return &RAGConfigManager{
		configManager: configManager,
		config:        DefaultRAGConfig(),
		logger:        logger,
	}
}

// GetConfig returns the current typed configuration
func (rcm *RAGConfigManager) GetConfig() *RAGConfig {
	return rcm.config
}

// Initialize registers the validator/change handler and loads the initial config
func (rcm *RAGConfigManager) Initialize() error {
	rcm.configManager.RegisterValidator("config.yaml", ValidateRAGConfig)
	rcm.configManager.RegisterHandler("config.yaml", rcm.handleConfigChange)

	if raw, exists := rcm.configManager.GetConfig("config.yaml"); exists {
		if err := rcm.updateConfigFromMap(raw); err != nil {
			return fmt.Errorf("failed to apply initial config: %w", err)
		}
	}

	return nil
}

func (rcm *RAGConfigManager) handleConfigChange(event ChangeEvent) error {
	rcm.logger.Info("RAG configuration changed", zap.String("file", event.File), zap.String("action", event.Action))
	return rcm.updateConfigFromMap(event.Config)
}

// updateConfigFromMap merges a raw map (as loaded from YAML/JSON) into the
// typed RAGConfig, leaving fields the map doesn't mention untouched.
func (rcm *RAGConfigManager) updateConfigFromMap(raw map[string]interface{}) error {
	newConfig := *rcm.config

	if v, ok := raw["vector"].(map[string]interface{}); ok {
		updateVectorConfig(v, &newConfig.Vector)
	}
	if v, ok := raw["embeddings"].(map[string]interface{}); ok {
		updateEmbeddingsConfig(v, &newConfig.Embeddings)
	}
	if v, ok := raw["logging"].(map[string]interface{}); ok {
		updateLoggingConfig(v, &newConfig.Logging)
	}
	if v, ok := raw["circuit_breakers"].(map[string]interface{}); ok {
		updateCircuitBreakerConfigs(v, &newConfig.CircuitBreakers)
	}
	if v, ok := raw["rate_limit"].(map[string]interface{}); ok {
		updateRateLimitConfig(v, &newConfig.RateLimit)
	}

	rcm.config = &newConfig
	return nil
}

func updateVectorConfig(v map[string]interface{}, cfg *VectorConfig) {
	if b, ok := v["enabled"].(bool); ok {
		cfg.Enabled = b
	}
	if s, ok := v["host"].(string); ok {
		cfg.Host = s
	}
	if s, ok := v["chunks"].(string); ok {
		cfg.Chunks = s
	}
	if n, ok := v["top_k"].(float64); ok {
		cfg.TopK = int(n)
	}
	if n, ok := v["threshold"].(float64); ok {
		cfg.Threshold = n
	}
}

func updateEmbeddingsConfig(v map[string]interface{}, cfg *EmbeddingsConfig) {
	if s, ok := v["provider"].(string); ok {
		cfg.Provider = s
	}
	if s, ok := v["default_model"].(string); ok {
		cfg.DefaultModel = s
	}
	if n, ok := v["dimensions"].(float64); ok {
		cfg.Dimensions = int(n)
	}
	if n, ok := v["max_lru"].(float64); ok {
		cfg.MaxLRU = int(n)
	}
}

func updateLoggingConfig(v map[string]interface{}, cfg *LoggingConfig) {
	if s, ok := v["level"].(string); ok {
		cfg.Level = s
	}
	if s, ok := v["encoding"].(string); ok {
		cfg.Encoding = s
	}
	if b, ok := v["development"].(bool); ok {
		cfg.Development = b
	}
}

func updateCircuitBreakerConfigs(v map[string]interface{}, cfg *CircuitBreakersConfig) {
	if m, ok := v["redis"].(map[string]interface{}); ok {
		updateSingleCircuitBreakerConfig(m, &cfg.Redis)
	}
	if m, ok := v["database"].(map[string]interface{}); ok {
		updateSingleCircuitBreakerConfig(m, &cfg.Database)
	}
	if m, ok := v["generator"].(map[string]interface{}); ok {
		updateSingleCircuitBreakerConfig(m, &cfg.Generator)
	}
}

func updateSingleCircuitBreakerConfig(v map[string]interface{}, cfg *CircuitBreakerConfig) {
	if b, ok := v["enabled"].(bool); ok {
		cfg.Enabled = b
	}
	if n, ok := v["max_failures"].(float64); ok {
		cfg.MaxFailures = uint32(n)
	}
	if n, ok := v["max_requests"].(float64); ok {
		cfg.MaxRequests = uint32(n)
	}
}

func updateRateLimitConfig(v map[string]interface{}, cfg *RateLimitConfig) {
	if b, ok := v["enabled"].(bool); ok {
		cfg.Enabled = b
	}
	if n, ok := v["max_requests"].(float64); ok {
		cfg.MaxRequests = int(n)
	}
}
