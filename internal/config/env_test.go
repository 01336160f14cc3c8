package config

import (
	"os"
	"testing"
)

func TestEnvOverrides_ServerConfig(t *testing.T) {
	defer os.Clearenv()

	tests := []struct {
		name      string
		envVars   map[string]string
		checkFunc func(*testing.T, *Config)
	}{
		{
			name: "PORT overrides address with colon prefix",
			envVars: map[string]string{
				"PORT": "3000",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != ":3000" {
					t.Errorf("Expected :3000, got %s", cfg.Server.Address)
				}
			},
		},
		{
			name: "GATEWAY_SERVER_ADDRESS override",
			envVars: map[string]string{
				"GATEWAY_SERVER_ADDRESS": "0.0.0.0:9000",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Server.Address != "0.0.0.0:9000" {
					t.Errorf("Expected 0.0.0.0:9000, got %s", cfg.Server.Address)
				}
			},
		},
		{
			name: "GATEWAY_ROUTE_PREFIX override gets normalized",
			envVars: map[string]string{
				"GATEWAY_ROUTE_PREFIX": "api/",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Server.RoutePrefix != "/api" {
					t.Errorf("Expected /api, got %s", cfg.Server.RoutePrefix)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg := defaultConfig()
			cfg.applyEnvOverrides()
			tt.checkFunc(t, cfg)
		})
	}
}

func TestEnvOverrides_GatewayConfig(t *testing.T) {
	defer os.Clearenv()

	tests := []struct {
		name      string
		envVars   map[string]string
		checkFunc func(*testing.T, *Config)
	}{
		{
			name: "GATEWAY_WALLET override",
			envVars: map[string]string{
				"GATEWAY_WALLET": "test-wallet-address",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Gateway.Wallet != "test-wallet-address" {
					t.Errorf("Expected test-wallet-address, got %s", cfg.Gateway.Wallet)
				}
			},
		},
		{
			name: "GATEWAY_DEFAULT_CHAIN override",
			envVars: map[string]string{
				"GATEWAY_DEFAULT_CHAIN": "base",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Gateway.DefaultChain != "base" {
					t.Errorf("Expected base, got %s", cfg.Gateway.DefaultChain)
				}
			},
		},
		{
			name: "GATEWAY_NETWORK override",
			envVars: map[string]string{
				"GATEWAY_NETWORK": "devnet",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Gateway.Network != "devnet" {
					t.Errorf("Expected devnet, got %s", cfg.Gateway.Network)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg := defaultConfig()
			cfg.applyEnvOverrides()
			tt.checkFunc(t, cfg)
		})
	}
}

func TestEnvOverrides_FacilitatorConfig(t *testing.T) {
	defer os.Clearenv()

	tests := []struct {
		name      string
		envVars   map[string]string
		checkFunc func(*testing.T, *Config)
	}{
		{
			name: "FACILITATOR_TYPE override",
			envVars: map[string]string{
				"FACILITATOR_TYPE": "self-hosted",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Facilitator.Type != "self-hosted" {
					t.Errorf("Expected self-hosted, got %s", cfg.Facilitator.Type)
				}
			},
		},
		{
			name: "FACILITATOR_ENABLE_FALLBACK boolean (false)",
			envVars: map[string]string{
				"FACILITATOR_ENABLE_FALLBACK": "false",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Facilitator.EnableFallback {
					t.Error("Expected EnableFallback to be false")
				}
			},
		},
		{
			name: "GATEWAY_SIGNER_KEY and SOLANA_RPC_URL override self-hosted config",
			envVars: map[string]string{
				"GATEWAY_SIGNER_KEY": "base58-private-key",
				"SOLANA_RPC_URL":     "https://custom-rpc.solana.com",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Facilitator.SelfHosted.PrivateKey != "base58-private-key" {
					t.Errorf("Expected private key override, got %s", cfg.Facilitator.SelfHosted.PrivateKey)
				}
				if cfg.Facilitator.SelfHosted.RPCURL != "https://custom-rpc.solana.com" {
					t.Errorf("Expected custom RPC URL, got %s", cfg.Facilitator.SelfHosted.RPCURL)
				}
			},
		},
		{
			name: "FACILITATOR_REMOTE_A_URL and API key override",
			envVars: map[string]string{
				"FACILITATOR_REMOTE_A_URL":     "https://facilitator-a.example.com",
				"FACILITATOR_REMOTE_A_API_KEY": "key-a",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.Facilitator.RemoteA.BaseURL != "https://facilitator-a.example.com" {
					t.Errorf("Expected remote A URL override, got %s", cfg.Facilitator.RemoteA.BaseURL)
				}
				if cfg.Facilitator.RemoteA.APIKey != "key-a" {
					t.Errorf("Expected remote A api key override, got %s", cfg.Facilitator.RemoteA.APIKey)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg := defaultConfig()
			cfg.applyEnvOverrides()
			tt.checkFunc(t, cfg)
		})
	}
}

func TestEnvOverrides_ProviderEndpoint(t *testing.T) {
	defer os.Clearenv()
	os.Clearenv()

	os.Setenv("GATEWAY_PROVIDER_HELIUS_URL", "https://new-helius.example.com")

	cfg := defaultConfig()
	cfg.Providers["helius"] = ProviderConfig{ID: "helius", Endpoint: "https://old.example.com"}
	cfg.applyEnvOverrides()

	if cfg.Providers["helius"].Endpoint != "https://new-helius.example.com" {
		t.Errorf("Expected overridden endpoint, got %s", cfg.Providers["helius"].Endpoint)
	}
}

func TestEnvOverrides_APIKeyConfig(t *testing.T) {
	defer os.Clearenv()

	tests := []struct {
		name      string
		envVars   map[string]string
		checkFunc func(*testing.T, *Config)
	}{
		{
			name: "GATEWAY_API_KEY_ENABLED boolean (true)",
			envVars: map[string]string{
				"GATEWAY_API_KEY_ENABLED": "true",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if !cfg.APIKey.Enabled {
					t.Error("Expected APIKey.Enabled to be true")
				}
			},
		},
		{
			name: "GATEWAY_API_KEY_ENABLED boolean (false)",
			envVars: map[string]string{
				"GATEWAY_API_KEY_ENABLED": "false",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if cfg.APIKey.Enabled {
					t.Error("Expected APIKey.Enabled to be false")
				}
			},
		},
		{
			name: "GATEWAY_API_KEY_* env vars create key-tier mappings",
			envVars: map[string]string{
				"GATEWAY_API_KEY_ENABLED":      "true",
				"GATEWAY_API_KEY_PARTNER_ABC":  "partner",
				"GATEWAY_API_KEY_ENTERPRISE_X": "enterprise",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				if !cfg.APIKey.Enabled {
					t.Error("Expected APIKey.Enabled to be true")
				}
				if len(cfg.APIKey.Keys) != 2 {
					t.Errorf("Expected 2 API keys, got %d", len(cfg.APIKey.Keys))
				}
				if cfg.APIKey.Keys["partner_abc"] != "partner" {
					t.Errorf("Expected partner_abc=partner, got %s", cfg.APIKey.Keys["partner_abc"])
				}
				if cfg.APIKey.Keys["enterprise_x"] != "enterprise" {
					t.Errorf("Expected enterprise_x=enterprise, got %s", cfg.APIKey.Keys["enterprise_x"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg := defaultConfig()
			cfg.applyEnvOverrides()
			tt.checkFunc(t, cfg)
		})
	}
}

// TestNormalizeRoutePrefix exists in config_test.go
