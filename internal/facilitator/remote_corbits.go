package facilitator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/cedrospay/x402-gateway/internal/httputil"
)

// RemoteCorbits is the Corbits-style remote facilitator. It exposes no
// /verify endpoint: verification is optimistic and purely structural on our
// side, and the real check happens when /settle runs.
type RemoteCorbits struct {
	baseURL string
	client  *http.Client
}

func NewRemoteCorbits(cfg config.RemoteFacilitatorConfig) *RemoteCorbits {
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = defaultSettleTimeout
	}
	return &RemoteCorbits{
		baseURL: cfg.BaseURL,
		client:  httputil.NewClient(timeout),
	}
}

func (r *RemoteCorbits) Name() string    { return "remoteB" }
func (r *RemoteCorbits) Type() Type      { return TypeRemoteB }
func (r *RemoteCorbits) Available() bool { return r.baseURL != "" }

// Verify deserializes the transaction to extract the fee payer as the payer,
// and declares the payload valid if its structural shape parses. Corbits
// performs the substantive check itself at settle time.
func (r *RemoteCorbits) Verify(ctx context.Context, payload Payload, req Requirements) (VerifyResult, error) {
	if payload.Transaction == "" {
		return VerifyResult{Valid: false, InvalidReason: "missing transaction"}, nil
	}
	tx, err := solanago.TransactionFromBase64(payload.Transaction)
	if err != nil {
		return VerifyResult{Valid: false, InvalidReason: "malformed transaction: " + err.Error()}, nil
	}
	if len(tx.Message.AccountKeys) == 0 {
		return VerifyResult{Valid: false, InvalidReason: "transaction missing account keys"}, nil
	}
	return VerifyResult{Valid: true, Payer: tx.Message.AccountKeys[0].String()}, nil
}

type corbitsSettleRequest struct {
	X402Version         int              `json:"x402Version"`
	PaymentHeader       string           `json:"paymentHeader"`
	PaymentRequirements wireRequirements `json:"paymentRequirements"`
}

type corbitsSettleResponse struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction"`
	ErrorReason string `json:"errorReason,omitempty"`
}

func (r *RemoteCorbits) Settle(ctx context.Context, payload Payload, req Requirements) (SettleResult, error) {
	if !r.Available() {
		return SettleResult{}, errors.New("facilitator: remoteB base url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultSettleTimeout)
	defer cancel()

	header, err := encodePaymentHeader(toWirePayload(payload))
	if err != nil {
		return SettleResult{}, err
	}

	body := corbitsSettleRequest{
		X402Version:         1,
		PaymentHeader:       header,
		PaymentRequirements: toWireRequirements(req),
	}
	var resp corbitsSettleResponse
	if err := postJSON(ctx, r.client, r.baseURL+"/settle", body, &resp); err != nil {
		return SettleResult{}, err
	}
	return SettleResult{Settled: resp.Success, TxHash: resp.Transaction, ErrorReason: resp.ErrorReason}, nil
}

// decodePaymentHeader is the inverse of encodePaymentHeader, exercised by
// tests asserting the header round-trips the way ParsePaymentProof expects.
func decodePaymentHeader(header string) (wirePaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return wirePaymentPayload{}, err
	}
	var p wirePaymentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return wirePaymentPayload{}, err
	}
	return p, nil
}
