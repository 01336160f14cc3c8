package gateway

import (
	"net/http"

	apierrors "github.com/cedrospay/x402-gateway/internal/errors"
	"github.com/cedrospay/x402-gateway/internal/router"
	"github.com/cedrospay/x402-gateway/pkg/responders"
)

type proxyRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	Chain  string `json:"chain"`
}

// chainRPCProxy forwards an allowlisted read-only RPC call to the best
// provider for chain, with no payment required. The allowlist is the
// gateway's configured AllowedProxyMethods, falling back to the declared
// per-chain-family read methods if unconfigured.
func (h *handlers) chainRPCProxy(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "malformed request body")
		return
	}
	if req.Method == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "method is required")
		return
	}
	if req.Chain == "" {
		req.Chain = h.cfg.Gateway.DefaultChain
	}

	if !h.methodAllowed(req.Chain, req.Method) {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMethodNotFound, "method not allowed on chain-rpc-proxy")
		return
	}

	primary, fallbacks, err := h.router.SelectWithFallback(req.Chain, router.Preferences{})
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeNoProviderAvailable, err.Error())
		return
	}

	result := h.forwarder.Forward(r.Context(), primary, fallbacks, req.Method, req.Params)
	if result.RPCErrorResult != nil {
		responders.JSON(w, http.StatusInternalServerError, map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   result.RPCErrorResult,
		})
		return
	}

	if result.UpstreamError != nil {
		responders.JSON(w, http.StatusOK, map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   result.UpstreamError,
		})
		return
	}

	responders.JSON(w, http.StatusOK, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  result.Result,
	})
}

func (h *handlers) methodAllowed(chain, method string) bool {
	allowed := h.cfg.Gateway.AllowedProxyMethods
	if len(allowed) == 0 {
		allowed = solanaMethods
		if isEVMChain(chain) {
			allowed = evmMethods
		}
	}
	for _, m := range allowed {
		if m == method {
			return true
		}
	}
	return false
}
