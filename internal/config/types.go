package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig             `yaml:"server"`
	Logging        LoggingConfig            `yaml:"logging"`
	Gateway        GatewayConfig            `yaml:"gateway"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
	HealthCheck    HealthCheckConfig        `yaml:"health_check"`
	Facilitator    FacilitatorConfig        `yaml:"facilitator"`
	Batch          BatchConfig              `yaml:"batch"`
	Oracle         OracleConfig             `yaml:"oracle"`
	RateLimit      RateLimitConfig          `yaml:"rate_limit"`
	APIKey         APIKeyConfig             `yaml:"api_key"`
	CircuitBreaker CircuitBreakerConfig     `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout         Duration `yaml:"read_timeout"`
	WriteTimeout        Duration `yaml:"write_timeout"`
	IdleTimeout         Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins  []string `yaml:"cors_allowed_origins"`
	RoutePrefix         string   `yaml:"route_prefix"`          // Optional prefix for all routes (e.g., "/api")
	AdminMetricsAPIKey  string   `yaml:"admin_metrics_api_key"` // Optional API key to protect /metrics endpoint (leave empty to disable protection)
}

// GatewayConfig holds top-level gateway identity and x402 protocol defaults.
type GatewayConfig struct {
	Wallet             string   `yaml:"wallet"`              // payTo address used in challenges
	DefaultChain       string   `yaml:"default_chain"`       // e.g. "solana"
	Network            string   `yaml:"network"`              // e.g. "mainnet-beta"
	DefaultAsset       string   `yaml:"default_asset"`        // e.g. "USDC"
	TokenDecimals      uint8    `yaml:"token_decimals"`
	MaxTimeoutSeconds  int      `yaml:"max_timeout_seconds"`  // default per-challenge timeout, default 60
	AllowedProxyMethods []string `yaml:"allowed_proxy_methods"` // allowlist for /chain-rpc-proxy
}

// ProviderConfig describes one upstream RPC provider.
type ProviderConfig struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Chains         []string `yaml:"chains"`
	Endpoint       string   `yaml:"endpoint"`
	HealthCheckURL string   `yaml:"health_check_url"`
	CostPerCall    float64  `yaml:"cost_per_call"`
	BatchCalls     int      `yaml:"batch_calls"`
	BatchPrice     float64  `yaml:"batch_price"`
	Priority       int      `yaml:"priority"`
	MaxLatencyMs   int64    `yaml:"max_latency_ms"`
}

// HealthCheckConfig controls the ProviderRegistry's health probe loop.
type HealthCheckConfig struct {
	Interval Duration `yaml:"interval"` // default 60s
	Timeout  Duration `yaml:"timeout"`  // default 5s
}

// FacilitatorConfig selects and configures the payment facilitator backends.
type FacilitatorConfig struct {
	Type           string               `yaml:"type"` // self-hosted | remoteA | remoteB | remoteC | auto
	EnableFallback bool                 `yaml:"enable_fallback"`
	FallbackType   string               `yaml:"fallback_type"`
	SelfHosted     SelfHostedConfig     `yaml:"self_hosted"`
	RemoteA        RemoteFacilitatorConfig `yaml:"remote_a"` // CodeNut-style
	RemoteB        RemoteFacilitatorConfig `yaml:"remote_b"` // Corbits-style
	RemoteC        RemoteFacilitatorConfig `yaml:"remote_c"` // PayAI-style
}

// SelfHostedConfig configures the in-process signer-backed facilitator.
type SelfHostedConfig struct {
	PrivateKey    string   `yaml:"-"` // loaded from GATEWAY_SIGNER_KEY env only
	RPCURL        string   `yaml:"rpc_url"`
	TokenMint     string   `yaml:"token_mint"`
	Commitment    string   `yaml:"commitment"`
	SkipPreflight bool     `yaml:"skip_preflight"`
}

// RemoteFacilitatorConfig configures one remote HTTP facilitator adapter.
type RemoteFacilitatorConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"-"` // loaded from env only
	Timeout Duration `yaml:"timeout"`
}

// BatchConfig controls batch issuance and expiry sweeping.
type BatchConfig struct {
	TTL            Duration `yaml:"ttl"`             // default 30 days
	SweepInterval  Duration `yaml:"sweep_interval"`  // default 1h
}

// OracleConfig controls the price oracle's cache and fallback behavior.
type OracleConfig struct {
	SourceURL      string             `yaml:"source_url"`
	CacheTTL       Duration           `yaml:"cache_ttl"`       // default 30s
	StaleTTL       Duration           `yaml:"stale_ttl"`       // default 5m
	RequestTimeout Duration           `yaml:"request_timeout"` // default 5s
	StaticFallback map[string]float64 `yaml:"static_fallback"` // asset -> USD price
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// RateLimitConfig holds rate limiting configuration.
// Provides multi-tier rate limiting to prevent spam while allowing legitimate use.
type RateLimitConfig struct {
	// Global rate limiting (across all callers)
	GlobalEnabled bool     `yaml:"global_enabled"`
	GlobalLimit   int      `yaml:"global_limit"`
	GlobalWindow  Duration `yaml:"global_window"`

	// Per-payer rate limiting (identified by X-Wallet / X-Signer header)
	PerPayerEnabled bool     `yaml:"per_payer_enabled"`
	PerPayerLimit   int      `yaml:"per_payer_limit"`
	PerPayerWindow  Duration `yaml:"per_payer_window"`

	// Per-IP rate limiting (fallback when payer not identified)
	PerIPEnabled bool     `yaml:"per_ip_enabled"`
	PerIPLimit   int      `yaml:"per_ip_limit"`
	PerIPWindow  Duration `yaml:"per_ip_window"`
}

// APIKeyConfig holds API key authentication and tier configuration.
// Allows trusted partners to bypass rate limits via X-API-Key header.
type APIKeyConfig struct {
	Enabled bool              `yaml:"enabled"`
	Keys    map[string]string `yaml:"keys"` // Map of API key -> tier (free, pro, enterprise, partner)
}

// CircuitBreakerConfig holds circuit breaker configuration for external services.
// Prevents cascading failures by failing fast when external services are degraded.
type CircuitBreakerConfig struct {
	Enabled     bool                 `yaml:"enabled"`
	UpstreamRPC BreakerServiceConfig `yaml:"upstream_rpc"`
	Facilitator BreakerServiceConfig `yaml:"facilitator"`
	Oracle      BreakerServiceConfig `yaml:"oracle"`
}

// BreakerServiceConfig configures a circuit breaker for a specific external service.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`         // Max requests in half-open state (default: 3)
	Interval            Duration `yaml:"interval"`             // Stats reset interval in closed state (default: 60s)
	Timeout             Duration `yaml:"timeout"`              // Open state timeout before half-open (default: 30s)
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // Consecutive failures to trip (default: 5)
	FailureRatio        float64  `yaml:"failure_ratio"`        // Failure ratio to trip 0.0-1.0 (default: 0.5)
	MinRequests         uint32   `yaml:"min_requests"`         // Minimum requests before checking ratio (default: 10)
}
