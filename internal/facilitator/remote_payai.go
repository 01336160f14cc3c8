package facilitator

import (
	"context"
	"errors"
	"net/http"

	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/cedrospay/x402-gateway/internal/httputil"
)

// RemotePayAI is the PayAI-style remote facilitator: POST /verify and
// POST /settle through a typed client, standing in for a vendor SDK, with a
// direct HTTP fallback using the same field shape. Requires extra.feePayer
// on every requirement.
type RemotePayAI struct {
	baseURL string
	client  *http.Client
}

func NewRemotePayAI(cfg config.RemoteFacilitatorConfig) *RemotePayAI {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	return &RemotePayAI{
		baseURL: cfg.BaseURL,
		client:  httputil.NewClient(timeout),
	}
}

func (r *RemotePayAI) Name() string    { return "remoteC" }
func (r *RemotePayAI) Type() Type      { return TypeRemoteC }
func (r *RemotePayAI) Available() bool { return r.baseURL != "" }

type payAIRequest struct {
	X402Version         int                `json:"x402Version"`
	PaymentPayload      wirePaymentPayload `json:"paymentPayload"`
	PaymentRequirements wireRequirements   `json:"paymentRequirements"`
}

type payAIVerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

type payAISettleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	ErrorReason string `json:"errorReason,omitempty"`
}

func requireFeePayer(req Requirements) error {
	if req.Extra == nil {
		return errors.New("facilitator: remoteC requires extra.feePayer")
	}
	if fp, ok := req.Extra["feePayer"].(string); !ok || fp == "" {
		return errors.New("facilitator: remoteC requires extra.feePayer")
	}
	return nil
}

func (r *RemotePayAI) Verify(ctx context.Context, payload Payload, req Requirements) (VerifyResult, error) {
	if err := requireFeePayer(req); err != nil {
		return VerifyResult{Valid: false, InvalidReason: err.Error()}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultVerifyTimeout)
	defer cancel()

	body := payAIRequest{
		X402Version:         1,
		PaymentPayload:      toWirePayload(payload),
		PaymentRequirements: toWireRequirements(req),
	}
	var resp payAIVerifyResponse
	if err := postJSON(ctx, r.client, r.baseURL+"/verify", body, &resp); err != nil {
		return VerifyResult{}, err
	}
	return VerifyResult{Valid: resp.IsValid, InvalidReason: resp.InvalidReason}, nil
}

func (r *RemotePayAI) Settle(ctx context.Context, payload Payload, req Requirements) (SettleResult, error) {
	if err := requireFeePayer(req); err != nil {
		return SettleResult{Settled: false, ErrorReason: err.Error()}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultSettleTimeout)
	defer cancel()

	body := payAIRequest{
		X402Version:         1,
		PaymentPayload:      toWirePayload(payload),
		PaymentRequirements: toWireRequirements(req),
	}
	var resp payAISettleResponse
	if err := postJSON(ctx, r.client, r.baseURL+"/settle", body, &resp); err != nil {
		return SettleResult{}, err
	}
	return SettleResult{Settled: resp.Success, TxHash: resp.Transaction, ErrorReason: resp.ErrorReason}, nil
}
