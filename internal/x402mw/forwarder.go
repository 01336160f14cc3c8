package x402mw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cedrospay/x402-gateway/internal/circuitbreaker"
	"github.com/cedrospay/x402-gateway/internal/provider"
)

// jsonRPCRequest is the envelope forwarded to an upstream provider.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// jsonRPCError is embedded in the response envelope on an upstream failure.
type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// jsonRPCResponse is the envelope an upstream provider replies with.
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// ForwardResult carries the upstream response, split into its result and
// JSON-RPC-level error, plus which provider answered, for the gateway
// handler's receipt construction. UpstreamError is a normal JSON-RPC reply
// (still HTTP 200); RPCErrorResult is set only when the call itself could
// not be completed against either provider (HTTP 500).
type ForwardResult struct {
	Result         json.RawMessage
	UpstreamError  *jsonRPCError
	UsedFallback   bool
	AnsweringID    string
	RPCErrorResult *jsonRPCError
}

// Forwarder posts a JSON-RPC call to a provider's endpoint, retrying once
// against the first fallback provider on transport error or non-2xx.
type Forwarder struct {
	client  *http.Client
	breaker *circuitbreaker.Manager
}

// NewForwarder builds a Forwarder using client, or a default client if nil.
// A nil breaker disables circuit-breaker protection on upstream calls.
func NewForwarder(client *http.Client, breaker *circuitbreaker.Manager) *Forwarder {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Forwarder{client: client, breaker: breaker}
}

// Forward posts method/params to primary; if that fails it tries the first
// entry of fallbacks once before giving up with a JSON-RPC -32603 envelope.
func (f *Forwarder) Forward(ctx context.Context, primary provider.Provider, fallbacks []provider.Provider, method string, params []any) ForwardResult {
	result, upstreamErr, err := f.post(ctx, primary, method, params)
	if err == nil {
		return ForwardResult{Result: result, UpstreamError: upstreamErr, AnsweringID: primary.ID}
	}

	if len(fallbacks) > 0 {
		fb := fallbacks[0]
		fbResult, fbUpstreamErr, fbErr := f.post(ctx, fb, method, params)
		if fbErr == nil {
			return ForwardResult{Result: fbResult, UpstreamError: fbUpstreamErr, UsedFallback: true, AnsweringID: fb.ID}
		}
	}

	return ForwardResult{
		AnsweringID:    primary.ID,
		RPCErrorResult: &jsonRPCError{Code: -32603, Message: "upstream RPC call failed"},
	}
}

func (f *Forwarder) post(ctx context.Context, p provider.Provider, method string, params []any) (json.RawMessage, *jsonRPCError, error) {
	if p.Endpoint == "" {
		return nil, nil, fmt.Errorf("forwarder: provider %s has no endpoint", p.ID)
	}

	deadline := time.Duration(p.MaxLatencyMs) * time.Millisecond
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	payload, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, nil, fmt.Errorf("forwarder: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("forwarder: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	parsed, err := f.doWithBreaker(httpReq, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return parsed.Result, parsed.Error, nil
}

// doWithBreaker executes httpReq under the upstream-RPC circuit breaker,
// isolating a failing provider from tripping the facilitator or oracle breakers.
func (f *Forwarder) doWithBreaker(httpReq *http.Request, providerID string) (jsonRPCResponse, error) {
	call := func() (interface{}, error) {
		resp, err := f.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("forwarder: do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("forwarder: provider %s returned status %d", providerID, resp.StatusCode)
		}

		var parsed jsonRPCResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, fmt.Errorf("forwarder: decode response: %w", err)
		}
		return parsed, nil
	}

	var out interface{}
	var err error
	if f.breaker != nil {
		out, err = f.breaker.Execute(circuitbreaker.ServiceUpstreamRPC, call)
	} else {
		out, err = call()
	}
	if err != nil {
		return jsonRPCResponse{}, err
	}
	return out.(jsonRPCResponse), nil
}
