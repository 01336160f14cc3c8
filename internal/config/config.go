package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := cfg.parseFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  Duration{Duration: 15 * time.Second},
			WriteTimeout: Duration{Duration: 15 * time.Second},
			IdleTimeout:  Duration{Duration: 60 * time.Second},
		},
		Gateway: GatewayConfig{
			DefaultChain:      "solana",
			Network:           "mainnet-beta",
			DefaultAsset:      "USDC",
			TokenDecimals:     6,
			MaxTimeoutSeconds: 60,
			AllowedProxyMethods: []string{
				"getSlot", "getBlockHeight", "getVersion", "getHealth",
				"eth_blockNumber", "eth_chainId", "eth_gasPrice",
			},
		},
		Providers: map[string]ProviderConfig{},
		HealthCheck: HealthCheckConfig{
			Interval: Duration{Duration: 60 * time.Second},
			Timeout:  Duration{Duration: 5 * time.Second},
		},
		Facilitator: FacilitatorConfig{
			Type:           "auto",
			EnableFallback: true,
			SelfHosted: SelfHostedConfig{
				Commitment: "confirmed",
			},
			RemoteA: RemoteFacilitatorConfig{Timeout: Duration{Duration: 20 * time.Second}},
			RemoteB: RemoteFacilitatorConfig{Timeout: Duration{Duration: 20 * time.Second}},
			RemoteC: RemoteFacilitatorConfig{Timeout: Duration{Duration: 20 * time.Second}},
		},
		Batch: BatchConfig{
			TTL:           Duration{Duration: 30 * 24 * time.Hour},
			SweepInterval: Duration{Duration: 1 * time.Hour},
		},
		Oracle: OracleConfig{
			CacheTTL:       Duration{Duration: 30 * time.Second},
			StaleTTL:       Duration{Duration: 5 * time.Minute},
			RequestTimeout: Duration{Duration: 5 * time.Second},
			StaticFallback: map[string]float64{
				"SOL": 150.0,
				"ETH": 3000.0,
			},
		},
		RateLimit: RateLimitConfig{
			// Generous limits - designed to prevent spam, not restrict legitimate use
			GlobalEnabled:   true,
			GlobalLimit:     1000,
			GlobalWindow:    Duration{Duration: 1 * time.Minute},
			PerPayerEnabled: true,
			PerPayerLimit:   60,
			PerPayerWindow:  Duration{Duration: 1 * time.Minute},
			PerIPEnabled:    true,
			PerIPLimit:      120,
			PerIPWindow:     Duration{Duration: 1 * time.Minute},
		},
		APIKey: APIKeyConfig{
			Enabled: false,
			Keys:    make(map[string]string),
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled: true,
			UpstreamRPC: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			Facilitator: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 30 * time.Second},
				ConsecutiveFailures: 5,
				FailureRatio:        0.5,
				MinRequests:         10,
			},
			Oracle: BreakerServiceConfig{
				MaxRequests:         3,
				Interval:            Duration{Duration: 60 * time.Second},
				Timeout:             Duration{Duration: 10 * time.Second},
				ConsecutiveFailures: 3,
				FailureRatio:        0.6,
				MinRequests:         5,
			},
		},
	}
}

// parseFile reads and unmarshals a YAML configuration file.
func (c *Config) parseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}
