package gateway

import (
	"fmt"
	"net/http"
	"time"

	apierrors "github.com/cedrospay/x402-gateway/internal/errors"
	"github.com/cedrospay/x402-gateway/internal/x402mw"
	"github.com/cedrospay/x402-gateway/pkg/responders"
)

// rpcForward runs after x402mw.Middleware has resolved payment: it forwards
// the RPC call to the outcome's provider (with fallback) and assembles the
// paid-call response envelope carrying the x402 receipt.
func (h *handlers) rpcForward(w http.ResponseWriter, r *http.Request) {
	outcome, ok := x402mw.OutcomeFromContext(r.Context())
	if !ok {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInternalError, "missing payment outcome")
		return
	}
	req, ok := x402mw.RPCRequestFromContext(r.Context())
	if !ok {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInternalError, "missing rpc request")
		return
	}

	start := time.Now()
	result := h.forwarder.Forward(r.Context(), outcome.Provider, outcome.Fallbacks, req.Method, req.Params)
	if h.metrics != nil {
		h.metrics.ObserveRPCCall(req.Method, outcome.Provider.ID, time.Since(start), forwardResultError(result))
	}

	status := "settled"
	note := ""
	if result.UsedFallback {
		note = "fallback provider used"
	}

	envelope := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"x402": receipt{
			Provider: outcome.Provider.Name,
			Cost:     outcome.Amount,
			Status:   status,
			PaymentInfo: paymentInfo{
				Chain:     outcome.Chain,
				TxHash:    outcome.TxHash,
				Amount:    outcome.Amount,
				Payer:     outcome.Payer,
				Timestamp: time.Now().UTC(),
				Explorer:  explorerURL(outcome.Chain, outcome.TxHash),
				Provider:  outcome.Provider.Name,
			},
			Note: note,
		},
	}

	if result.RPCErrorResult != nil {
		envelope["error"] = result.RPCErrorResult
		responders.JSON(w, http.StatusInternalServerError, envelope)
		return
	}

	if result.UpstreamError != nil {
		envelope["error"] = result.UpstreamError
		responders.JSON(w, http.StatusOK, envelope)
		return
	}

	envelope["result"] = result.Result
	responders.JSON(w, http.StatusOK, envelope)
}

type receipt struct {
	Provider    string      `json:"provider"`
	Cost        float64     `json:"cost"`
	Status      string      `json:"status"`
	PaymentInfo paymentInfo `json:"paymentInfo"`
	Note        string      `json:"note,omitempty"`
}

type paymentInfo struct {
	Chain     string    `json:"chain"`
	TxHash    string    `json:"txHash"`
	Amount    float64   `json:"amount"`
	Payer     string    `json:"payer"`
	Timestamp time.Time `json:"timestamp"`
	Explorer  string    `json:"explorer"`
	Provider  string    `json:"provider"`
}

func forwardResultError(result x402mw.ForwardResult) error {
	if result.RPCErrorResult != nil {
		return fmt.Errorf("upstream rpc call failed: %s", result.RPCErrorResult.Message)
	}
	if result.UpstreamError != nil {
		return fmt.Errorf("upstream rpc error: %s", result.UpstreamError.Message)
	}
	return nil
}

// explorerURL links a settled tx hash to a human-browsable block explorer,
// best-effort by chain family.
func explorerURL(chain, txHash string) string {
	if txHash == "" {
		return ""
	}
	switch chain {
	case "ethereum":
		return fmt.Sprintf("https://etherscan.io/tx/%s", txHash)
	case "polygon":
		return fmt.Sprintf("https://polygonscan.com/tx/%s", txHash)
	case "arbitrum":
		return fmt.Sprintf("https://arbiscan.io/tx/%s", txHash)
	default:
		return fmt.Sprintf("https://solscan.io/tx/%s", txHash)
	}
}
