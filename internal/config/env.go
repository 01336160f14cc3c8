package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "PORT")
	if addr := os.Getenv("PORT"); addr != "" && !strings.HasPrefix(addr, ":") {
		c.Server.Address = ":" + addr
	}
	setIfEnv(&c.Server.Address, "GATEWAY_SERVER_ADDRESS")
	setIfEnv(&c.Server.RoutePrefix, "GATEWAY_ROUTE_PREFIX")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "ADMIN_METRICS_API_KEY")

	if c.Server.RoutePrefix != "" {
		c.Server.RoutePrefix = normalizeRoutePrefix(c.Server.RoutePrefix)
	}

	// Gateway/x402 config
	setIfEnv(&c.Gateway.Wallet, "GATEWAY_WALLET")
	setIfEnv(&c.Gateway.DefaultChain, "GATEWAY_DEFAULT_CHAIN")
	setIfEnv(&c.Gateway.Network, "GATEWAY_NETWORK")
	setIfEnv(&c.Gateway.DefaultAsset, "GATEWAY_DEFAULT_ASSET")

	// Facilitator selection
	setIfEnv(&c.Facilitator.Type, "FACILITATOR_TYPE")
	setBoolIfEnv(&c.Facilitator.EnableFallback, "FACILITATOR_ENABLE_FALLBACK")
	setIfEnv(&c.Facilitator.FallbackType, "FACILITATOR_FALLBACK_TYPE")

	// Self-hosted signer
	setIfEnv(&c.Facilitator.SelfHosted.PrivateKey, "GATEWAY_SIGNER_KEY")
	setIfEnv(&c.Facilitator.SelfHosted.RPCURL, "SOLANA_RPC_URL")
	setIfEnv(&c.Facilitator.SelfHosted.TokenMint, "GATEWAY_TOKEN_MINT")
	setIfEnv(&c.Facilitator.SelfHosted.Commitment, "SOLANA_COMMITMENT")
	setBoolIfEnv(&c.Facilitator.SelfHosted.SkipPreflight, "SOLANA_SKIP_PREFLIGHT")

	// Remote facilitator base URL overrides
	setIfEnv(&c.Facilitator.RemoteA.BaseURL, "FACILITATOR_REMOTE_A_URL")
	setIfEnv(&c.Facilitator.RemoteA.APIKey, "FACILITATOR_REMOTE_A_API_KEY")
	setIfEnv(&c.Facilitator.RemoteB.BaseURL, "FACILITATOR_REMOTE_B_URL")
	setIfEnv(&c.Facilitator.RemoteB.APIKey, "FACILITATOR_REMOTE_B_API_KEY")
	setIfEnv(&c.Facilitator.RemoteC.BaseURL, "FACILITATOR_REMOTE_C_URL")
	setIfEnv(&c.Facilitator.RemoteC.APIKey, "FACILITATOR_REMOTE_C_API_KEY")

	// Per-provider endpoint overrides: GATEWAY_PROVIDER_<ID>_URL
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "GATEWAY_PROVIDER_") || !strings.HasSuffix(beforeEquals(env), "_URL") {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(parts[0], "GATEWAY_PROVIDER_"), "_URL")
		if name == "" {
			continue
		}
		id := strings.ToLower(name)
		if p, ok := c.Providers[id]; ok {
			p.Endpoint = parts[1]
			c.Providers[id] = p
		}
	}

	// API Key config
	setBoolIfEnv(&c.APIKey.Enabled, "GATEWAY_API_KEY_ENABLED")
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "GATEWAY_API_KEY_") {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimPrefix(parts[0], "GATEWAY_API_KEY_")
		if name == "" || name == "ENABLED" {
			continue
		}
		if c.APIKey.Keys == nil {
			c.APIKey.Keys = make(map[string]string)
		}
		key := strings.ToLower(name)
		tier := strings.TrimSpace(parts[1])
		c.APIKey.Keys[key] = tier
	}
}

func beforeEquals(env string) string {
	if i := strings.Index(env, "="); i >= 0 {
		return env[:i]
	}
	return env
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}

// setFloatIfEnv sets a float64 pointer from an environment variable.
func setFloatIfEnv(target *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

// normalizeRoutePrefix ensures the prefix starts with / and doesn't end with /.
// Examples: "api" -> "/api", "/api/" -> "/api"
func normalizeRoutePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return prefix
}
