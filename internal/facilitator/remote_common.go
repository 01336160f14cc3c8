package facilitator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// wirePaymentPayload is the x402 envelope shared by every remote adapter:
// {x402Version, scheme, network, payload}. payload carries the Solana
// SPL-transfer fields our gateway currently supports.
type wirePaymentPayload struct {
	X402Version int                 `json:"x402Version"`
	Scheme      string              `json:"scheme"`
	Network     string              `json:"network"`
	Payload     wireSolanaSubfields `json:"payload"`
}

type wireSolanaSubfields struct {
	Signature   string            `json:"signature,omitempty"`
	Transaction string            `json:"transaction"`
	FeePayer    string            `json:"feePayer,omitempty"`
	Memo        string            `json:"memo,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// wireRequirements is the shared requirement shape every remote facilitator
// expects, one entry per supported payment option.
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

func toWirePayload(p Payload) wirePaymentPayload {
	return wirePaymentPayload{
		X402Version: p.X402Version,
		Scheme:      p.Scheme,
		Network:     p.Network,
		Payload: wireSolanaSubfields{
			Signature:   p.Signature,
			Transaction: p.Transaction,
			FeePayer:    p.FeePayer,
			Memo:        p.Memo,
			Metadata:    p.Metadata,
		},
	}
}

func toWireRequirements(r Requirements) wireRequirements {
	return wireRequirements{
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

// postJSON marshals body, POSTs it to url and decodes the response into out.
// A non-2xx status is returned as an error carrying the response body.
func postJSON(ctx context.Context, client *http.Client, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("facilitator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("facilitator returned status %d: %s", resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeJSONBody decodes an already-received HTTP response body, checking
// the status code first.
func decodeJSONBody(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("facilitator returned status %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// encodePaymentHeader base64-encodes the JSON payment payload the way
// ParsePaymentProof's X-PAYMENT header decoding expects on the way in.
func encodePaymentHeader(p wirePaymentPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
