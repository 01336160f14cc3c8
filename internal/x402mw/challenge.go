package x402mw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/cedrospay/x402-gateway/internal/facilitator"
	"github.com/cedrospay/x402-gateway/internal/money"
	"github.com/cedrospay/x402-gateway/internal/oracle"
	"github.com/cedrospay/x402-gateway/internal/provider"
)

// Challenge is the body of a 402 response: x402Version plus one accepted
// payment method. Extra fields are nested under accepts[0].extra per spec.
type Challenge struct {
	X402Version int              `json:"x402Version"`
	Error       string           `json:"error,omitempty"`
	Accepts     []ChallengeAccept `json:"accepts"`
}

// ChallengeAccept is accepts[0] of a PaymentChallenge.
type ChallengeAccept struct {
	Scheme            string        `json:"scheme"`
	Network           string        `json:"network"`
	MaxAmountRequired string        `json:"maxAmountRequired"`
	Resource          string        `json:"resource"`
	Description       string        `json:"description"`
	MimeType          string        `json:"mimeType"`
	PayTo             string        `json:"payTo"`
	MaxTimeoutSeconds int           `json:"maxTimeoutSeconds"`
	Asset             string        `json:"asset"`
	Extra             ChallengeExtra `json:"extra"`
}

// ChallengeExtra carries gateway-specific metadata the client needs to build
// and submit a payment.
type ChallengeExtra struct {
	Provider    string           `json:"provider"`
	ProviderID  string           `json:"providerId"`
	Nonce       string           `json:"nonce"`
	Facilitator FacilitatorExtra `json:"facilitator"`
	BatchOption *BatchOption     `json:"batchOption,omitempty"`
}

// FacilitatorExtra reflects the manager's current primary/fallback state.
type FacilitatorExtra struct {
	Primary  string `json:"primary"`
	Type     string `json:"type"`
	Fallback string `json:"fallback,omitempty"`
}

// BatchOption advertises a provider's discounted pre-paid bundle.
type BatchOption struct {
	Calls   int64   `json:"calls"`
	Price   float64 `json:"price"`
	Savings float64 `json:"savings"` // percent, e.g. 20.0 for 20%
}

// ChallengeParams bundles everything buildChallenge needs beyond the
// provider/amount pair, so the function stays a pure transform of its
// inputs and is trivial to unit test.
type ChallengeParams struct {
	Provider       provider.Provider
	Resource       string
	USDAmount      float64
	FacilitatorOut facilitator.Info
	GatewayConfig  config.GatewayConfig
	Oracle         *oracle.Cached
	ErrorMessage   string
}

// buildChallenge constructs a PaymentChallenge for a provider/amount pair,
// converting USDAmount into the base unit of the gateway's configured
// settlement asset. On an unresolvable asset price, amount falls back to
// "0" and the degraded pricing is left for the caller to log.
func buildChallenge(ctx context.Context, p ChallengeParams) Challenge {
	asset := p.GatewayConfig.DefaultAsset
	maxAmount := "0"

	if a, err := money.GetAsset(asset); err == nil {
		switch a.Type {
		case money.AssetTypeSPL:
			// USDC-style: already USD-pegged, 1:1 atomic conversion.
			if units, err := money.USDToBaseUnits(p.USDAmount, 1.0, a); err == nil {
				maxAmount = fmt.Sprintf("%d", units)
			}
		default:
			quote := p.Oracle.Quote(ctx, asset)
			if quote.Price > 0 {
				if units, err := money.USDToBaseUnits(p.USDAmount, quote.Price, a); err == nil {
					maxAmount = fmt.Sprintf("%d", units)
				}
			}
		}
	}

	extra := ChallengeExtra{
		Provider:   p.Provider.Name,
		ProviderID: p.Provider.ID,
		Nonce:      generateNonce(),
		Facilitator: FacilitatorExtra{
			Primary: p.FacilitatorOut.Primary.Name,
			Type:    string(p.FacilitatorOut.Primary.Type),
		},
	}
	if p.FacilitatorOut.Fallback != nil {
		extra.Facilitator.Fallback = p.FacilitatorOut.Fallback.Name
	}
	if p.Provider.BatchCost != nil {
		extra.BatchOption = batchOptionFor(p.Provider)
	}

	maxTimeout := p.GatewayConfig.MaxTimeoutSeconds
	if maxTimeout <= 0 {
		maxTimeout = 60
	}

	return Challenge{
		X402Version: 1,
		Error:       p.ErrorMessage,
		Accepts: []ChallengeAccept{{
			Scheme:            "exact",
			Network:           p.GatewayConfig.Network,
			MaxAmountRequired: maxAmount,
			Resource:          p.Resource,
			Description:       fmt.Sprintf("RPC access via %s", p.Provider.Name),
			MimeType:          "application/json",
			PayTo:             p.GatewayConfig.Wallet,
			MaxTimeoutSeconds: maxTimeout,
			Asset:             asset,
			Extra:             extra,
		}},
	}
}

// batchOptionFor computes the advertised savings percent for a provider's
// batch offer relative to paying per-call at costPerCall.
func batchOptionFor(p provider.Provider) *BatchOption {
	bc := p.BatchCost
	perCallTotal := p.CostPerCall * float64(bc.Calls)
	savings := 0.0
	if perCallTotal > 0 {
		savings = (1 - (bc.Price / perCallTotal)) * 100
	}
	return &BatchOption{Calls: bc.Calls, Price: bc.Price, Savings: savings}
}

// generateNonce returns "<unix-ms>-<random-hex>"; uniqueness is not enforced
// by the gateway, replay protection is the facilitator's responsibility.
func generateNonce() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}
