package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cedrospay/x402-gateway/internal/money"
	"github.com/gagliardetto/solana-go/rpc"
)

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Gateway.DefaultChain == "" {
		c.Gateway.DefaultChain = "solana"
	}
	if c.Gateway.DefaultAsset == "" {
		c.Gateway.DefaultAsset = "USDC"
	}
	if c.Gateway.MaxTimeoutSeconds <= 0 {
		c.Gateway.MaxTimeoutSeconds = 60
	}

	if c.HealthCheck.Interval.Duration == 0 {
		c.HealthCheck.Interval = Duration{Duration: 60 * time.Second}
	}
	if c.HealthCheck.Timeout.Duration == 0 {
		c.HealthCheck.Timeout = Duration{Duration: 5 * time.Second}
	}

	if c.Facilitator.Type == "" {
		c.Facilitator.Type = "auto"
	}
	if c.Facilitator.SelfHosted.Commitment == "" {
		c.Facilitator.SelfHosted.Commitment = string(rpc.CommitmentConfirmed)
	}
	switch strings.ToLower(c.Facilitator.SelfHosted.Commitment) {
	case "processed", "confirmed", "finalized", "finalised":
	default:
		c.Facilitator.SelfHosted.Commitment = string(rpc.CommitmentConfirmed)
	}
	for _, remote := range []*RemoteFacilitatorConfig{&c.Facilitator.RemoteA, &c.Facilitator.RemoteB, &c.Facilitator.RemoteC} {
		if remote.Timeout.Duration == 0 {
			remote.Timeout = Duration{Duration: 20 * time.Second}
		}
	}

	if c.Batch.TTL.Duration == 0 {
		c.Batch.TTL = Duration{Duration: 30 * 24 * time.Hour}
	}
	if c.Batch.SweepInterval.Duration == 0 {
		c.Batch.SweepInterval = Duration{Duration: time.Hour}
	}

	if c.Oracle.CacheTTL.Duration == 0 {
		c.Oracle.CacheTTL = Duration{Duration: 30 * time.Second}
	}
	if c.Oracle.StaleTTL.Duration == 0 {
		c.Oracle.StaleTTL = Duration{Duration: 5 * time.Minute}
	}
	if c.Oracle.RequestTimeout.Duration == 0 {
		c.Oracle.RequestTimeout = Duration{Duration: 5 * time.Second}
	}
	if c.Oracle.StaticFallback == nil {
		c.Oracle.StaticFallback = map[string]float64{"SOL": 150.0, "ETH": 3000.0}
	}

	// Normalize provider ids and fill id from map key when unset.
	for key, p := range c.Providers {
		if p.ID == "" {
			p.ID = key
		}
		if p.Name == "" {
			p.Name = key
		}
		c.Providers[key] = p
	}

	if c.APIKey.Keys == nil {
		c.APIKey.Keys = make(map[string]string)
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	if c.Gateway.Wallet == "" {
		errs = append(errs, "gateway.wallet (payTo address) is required")
	}
	if c.Facilitator.SelfHosted.TokenMint != "" {
		if err := validateStablecoinMint(c.Facilitator.SelfHosted.TokenMint); err != nil {
			errs = append(errs, fmt.Sprintf("facilitator.self_hosted.token_mint validation failed: %v", err))
		}
	}

	switch c.Facilitator.Type {
	case "auto", "self-hosted", "remoteA", "remoteB", "remoteC":
	default:
		errs = append(errs, fmt.Sprintf("facilitator.type %q is not one of auto, self-hosted, remoteA, remoteB, remoteC", c.Facilitator.Type))
	}

	if len(c.Providers) == 0 {
		errs = append(errs, "providers must define at least one upstream RPC provider")
	}
	for id, p := range c.Providers {
		if p.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.endpoint is required", id))
		}
		if len(p.Chains) == 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.chains must list at least one supported chain", id))
		}
		if p.CostPerCall < 0 {
			errs = append(errs, fmt.Sprintf("providers.%s.cost_per_call must be non-negative", id))
		}
	}

	if c.Facilitator.SelfHosted.RPCURL != "" {
		if _, err := deriveWebsocketURL(c.Facilitator.SelfHosted.RPCURL); err != nil {
			errs = append(errs, fmt.Sprintf("facilitator.self_hosted.rpc_url: %v", err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// deriveWebsocketURL converts an HTTP(S) RPC URL to WS(S) format.
func deriveWebsocketURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("rpc url empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
		return raw, nil
	case "":
		return "", errors.New("rpc url missing scheme")
	default:
		return "", fmt.Errorf("unsupported rpc url scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// validateStablecoinMint validates that a token mint address is a known stablecoin.
// A typo here routes settlement to the wrong token, so it fails config loading
// rather than surfacing at settlement time.
func validateStablecoinMint(mintAddress string) error {
	_, err := money.ValidateStablecoinMint(mintAddress)
	if err != nil {
		return fmt.Errorf("%w (supported: USDC, USDT, PYUSD, CASH)", err)
	}
	return nil
}
