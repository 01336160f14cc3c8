// Package x402mw implements the x402 payment pipeline: challenge
// construction, payment-header parsing, verify+settle against the
// configured FacilitatorManager, batch-ledger fast path, and request
// decoration for the gateway handler that forwards to the selected
// upstream provider.
package x402mw

import (
	"context"

	"github.com/cedrospay/x402-gateway/internal/facilitator"
	"github.com/cedrospay/x402-gateway/internal/provider"
)

type contextKey string

const contextKeyOutcome contextKey = "x402mw.outcome"

// Outcome is the per-request decoration the gateway handler reads after the
// middleware has run: which provider was selected and how payment for this
// call was satisfied.
type Outcome struct {
	Provider    provider.Provider
	Fallbacks   []provider.Provider
	Valid       bool
	Facilitator string
	TxHash      string
	Payer       string
	Chain       string
	BatchID     string
	Amount      float64
}

// WithOutcome attaches o to ctx for retrieval by the gateway handler.
func WithOutcome(ctx context.Context, o Outcome) context.Context {
	return context.WithValue(ctx, contextKeyOutcome, o)
}

// OutcomeFromContext retrieves the Outcome decorated by the middleware.
func OutcomeFromContext(ctx context.Context) (Outcome, bool) {
	o, ok := ctx.Value(contextKeyOutcome).(Outcome)
	return o, ok
}

// RPCRequest is the decoded body of POST /rpc.
type RPCRequest struct {
	Method      string         `json:"method"`
	Params      []any          `json:"params"`
	Chain       string         `json:"chain"`
	Preferences *PreferencesIn `json:"preferences,omitempty"`
	Facilitator string         `json:"facilitator,omitempty"`
}

// PreferencesIn is the wire shape of RoutingPreferences on the request body.
type PreferencesIn struct {
	Strategy           string   `json:"strategy,omitempty"`
	MaxLatencyMs       int64    `json:"maxLatencyMs,omitempty"`
	MaxCostPerCall     float64  `json:"maxCostPerCall,omitempty"`
	PreferredProviders []string `json:"preferredProviders,omitempty"`
	ExcludeProviders   []string `json:"excludeProviders,omitempty"`
	RequireHealthy     *bool    `json:"requireHealthy,omitempty"`
}

// batchHeader is the wire shape of the x402-batch request header.
type batchHeader struct {
	BatchID string `json:"batchId"`
}

// wireRequirements is the wire shape of paymentRequirements inside the
// x402-payment header, matching PaymentChallenge.accepts[0] field-for-field.
type wireRequirements struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	PayTo             string         `json:"payTo"`
	MaxAmountRequired string         `json:"maxAmountRequired"`
	Asset             string         `json:"asset"`
	Resource          string         `json:"resource"`
	Description       string         `json:"description"`
	MimeType          string         `json:"mimeType"`
	MaxTimeoutSeconds int            `json:"maxTimeoutSeconds"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// wirePayload is the wire shape of paymentPayload inside the x402-payment
// header.
type wirePayload struct {
	X402Version int               `json:"x402Version"`
	Scheme      string            `json:"scheme"`
	Network     string            `json:"network"`
	Signature   string            `json:"signature,omitempty"`
	Transaction string            `json:"transaction,omitempty"`
	FeePayer    string            `json:"feePayer,omitempty"`
	Memo        string            `json:"memo,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// paymentSubmission is the decoded x402-payment header body.
type paymentSubmission struct {
	PaymentPayload      wirePayload      `json:"paymentPayload"`
	PaymentRequirements wireRequirements `json:"paymentRequirements"`
	BatchPurchase       bool             `json:"batchPurchase,omitempty"`
}

func (p wirePayload) toFacilitatorPayload() facilitator.Payload {
	return facilitator.Payload{
		X402Version: p.X402Version,
		Scheme:      p.Scheme,
		Network:     p.Network,
		Signature:   p.Signature,
		Transaction: p.Transaction,
		FeePayer:    p.FeePayer,
		Memo:        p.Memo,
		Metadata:    p.Metadata,
	}
}

func (r wireRequirements) toFacilitatorRequirements() facilitator.Requirements {
	return facilitator.Requirements{
		Scheme:            r.Scheme,
		Network:           r.Network,
		PayTo:             r.PayTo,
		MaxAmountRequired: r.MaxAmountRequired,
		Asset:             r.Asset,
		Resource:          r.Resource,
		Description:       r.Description,
		MimeType:          r.MimeType,
		MaxTimeoutSeconds: r.MaxTimeoutSeconds,
		Extra:             r.Extra,
	}
}
