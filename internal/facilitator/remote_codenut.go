package facilitator

import (
	"context"
	"net/http"

	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/cedrospay/x402-gateway/internal/httputil"
)

// RemoteCodeNut is the CodeNut-style remote facilitator: GET /supported,
// POST /verify, POST /settle, all sharing the {x402Version, paymentPayload,
// paymentRequirements} envelope.
type RemoteCodeNut struct {
	baseURL string
	client  *http.Client
}

func NewRemoteCodeNut(cfg config.RemoteFacilitatorConfig) *RemoteCodeNut {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	return &RemoteCodeNut{
		baseURL: cfg.BaseURL,
		client:  httputil.NewClient(timeout),
	}
}

func (r *RemoteCodeNut) Name() string    { return "remoteA" }
func (r *RemoteCodeNut) Type() Type      { return TypeRemoteA }
func (r *RemoteCodeNut) Available() bool { return r.baseURL != "" }

type codeNutRequest struct {
	X402Version         int                `json:"x402Version"`
	PaymentPayload      wirePaymentPayload `json:"paymentPayload"`
	PaymentRequirements wireRequirements   `json:"paymentRequirements"`
}

type codeNutVerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	Payer         string `json:"payer"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

type codeNutSettleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	ErrorReason string `json:"errorReason,omitempty"`
}

func (r *RemoteCodeNut) Verify(ctx context.Context, payload Payload, req Requirements) (VerifyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultVerifyTimeout)
	defer cancel()

	body := codeNutRequest{
		X402Version:         1,
		PaymentPayload:      toWirePayload(payload),
		PaymentRequirements: toWireRequirements(req),
	}
	var resp codeNutVerifyResponse
	if err := postJSON(ctx, r.client, r.baseURL+"/verify", body, &resp); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Valid: resp.IsValid, Payer: resp.Payer, InvalidReason: resp.InvalidReason}, nil
}

func (r *RemoteCodeNut) Settle(ctx context.Context, payload Payload, req Requirements) (SettleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultSettleTimeout)
	defer cancel()

	body := codeNutRequest{
		X402Version:         1,
		PaymentPayload:      toWirePayload(payload),
		PaymentRequirements: toWireRequirements(req),
	}
	var resp codeNutSettleResponse
	if err := postJSON(ctx, r.client, r.baseURL+"/settle", body, &resp); err != nil {
		return SettleResult{}, err
	}
	return SettleResult{Settled: resp.Success, TxHash: resp.Transaction, ErrorReason: resp.ErrorReason}, nil
}

type codeNutSupportedKind struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type codeNutSupportedResponse struct {
	Kinds []codeNutSupportedKind `json:"kinds"`
}

// Supported queries GET /supported and returns the per-(network,scheme)
// extras the facilitator advertises, e.g. a required feePayer address.
func (r *RemoteCodeNut) Supported(ctx context.Context) (map[string]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultVerifyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/supported", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed codeNutSupportedResponse
	if err := decodeJSONBody(resp, &parsed); err != nil {
		return nil, err
	}

	out := make(map[string]map[string]any, len(parsed.Kinds))
	for _, kind := range parsed.Kinds {
		out[kind.Network+"-"+kind.Scheme] = kind.Extra
	}
	return out, nil
}
