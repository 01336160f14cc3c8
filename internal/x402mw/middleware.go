package x402mw

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cedrospay/x402-gateway/internal/batch"
	"github.com/cedrospay/x402-gateway/internal/config"
	apierrors "github.com/cedrospay/x402-gateway/internal/errors"
	"github.com/cedrospay/x402-gateway/internal/facilitator"
	"github.com/cedrospay/x402-gateway/internal/metrics"
	"github.com/cedrospay/x402-gateway/internal/oracle"
	"github.com/cedrospay/x402-gateway/internal/provider"
	"github.com/cedrospay/x402-gateway/internal/router"
	"github.com/cedrospay/x402-gateway/pkg/responders"
	"github.com/rs/zerolog/log"
)

type requestContextKey string

const contextKeyRPCRequest requestContextKey = "x402mw.rpcRequest"

// Deps bundles the collaborators the middleware consults on every request.
type Deps struct {
	Router      *router.Router
	Facilitator *facilitator.Manager
	Ledger      *batch.Ledger
	Oracle      *oracle.Cached
	Gateway     config.GatewayConfig
	Metrics     *metrics.Metrics
}

// Middleware runs the x402 pipeline (§4.6): resolve provider, batch fast
// path, challenge-on-missing-payment, verify+settle, then decorate the
// request context and call next. next is responsible for forwarding to the
// upstream and composing the final response envelope.
func Middleware(d Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req RPCRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "malformed request body")
				return
			}
			if req.Method == "" {
				apierrors.WriteSimpleError(w, apierrors.ErrCodeMissingField, "method is required")
				return
			}
			if req.Chain == "" {
				req.Chain = d.Gateway.DefaultChain
			}

			prefs := toRouterPreferences(req.Preferences)
			primary, fallbacks, err := d.Router.SelectWithFallback(req.Chain, prefs)
			if err != nil {
				apierrors.WriteSimpleError(w, apierrors.ErrCodeNoProviderAvailable, err.Error())
				return
			}

			resource := resourceURL(r)

			if batchHeader := r.Header.Get("x402-batch"); batchHeader != "" {
				d.handleBatchFastPath(w, r, next, req, primary, fallbacks, batchHeader, resource)
				return
			}

			paymentHeader := strings.TrimSpace(r.Header.Get("x402-payment"))
			if paymentHeader == "" {
				amount := primary.CostPerCall
				challenge := buildChallenge(r.Context(), ChallengeParams{
					Provider:       primary,
					Resource:       resource,
					USDAmount:      amount,
					FacilitatorOut: d.Facilitator.Info(),
					GatewayConfig:  d.Gateway,
					Oracle:         d.Oracle,
				})
				responders.JSON(w, http.StatusPaymentRequired, challenge)
				return
			}

			d.handleVerifyAndSettle(w, r, next, req, primary, fallbacks, paymentHeader, resource)
		})
	}
}

func (d Deps) handleBatchFastPath(w http.ResponseWriter, r *http.Request, next http.Handler, req RPCRequest, primary provider.Provider, fallbacks []provider.Provider, batchHeaderRaw string, resource string) {
	var bh batchHeader
	if err := json.Unmarshal([]byte(batchHeaderRaw), &bh); err != nil || bh.BatchID == "" {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "malformed x402-batch header")
		return
	}

	desc, err := d.Ledger.TryDebit(bh.BatchID)
	if err != nil {
		challenge := buildChallenge(r.Context(), ChallengeParams{
			Provider:       primary,
			Resource:       resource,
			USDAmount:      primary.CostPerCall,
			FacilitatorOut: d.Facilitator.Info(),
			GatewayConfig:  d.Gateway,
			Oracle:         d.Oracle,
			ErrorMessage:   "batch expired or depleted",
		})
		responders.JSON(w, http.StatusPaymentRequired, challenge)
		return
	}

	outcome := Outcome{
		Provider:    primary,
		Fallbacks:   fallbacks,
		Valid:       true,
		Facilitator: "batch",
		Chain:       req.Chain,
		BatchID:     desc.BatchID,
		Amount:      primary.CostPerCall,
	}
	ctx := WithOutcome(r.Context(), outcome)
	ctx = withRPCRequest(ctx, req)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (d Deps) handleVerifyAndSettle(w http.ResponseWriter, r *http.Request, next http.Handler, req RPCRequest, primary provider.Provider, fallbacks []provider.Provider, paymentHeaderRaw string, resource string) {
	var submission paymentSubmission
	if err := json.Unmarshal([]byte(paymentHeaderRaw), &submission); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, "malformed x402-payment header")
		return
	}

	paymentAmount := primary.CostPerCall
	isBatchPurchase := submission.BatchPurchase && primary.BatchCost != nil
	if isBatchPurchase {
		paymentAmount = primary.BatchCost.Price
	}

	payload := submission.PaymentPayload.toFacilitatorPayload()
	reqs := submission.PaymentRequirements.toFacilitatorRequirements()

	verifyRes, err := d.Facilitator.Verify(r.Context(), payload, reqs, req.Facilitator)
	if err != nil || verifyRes.Verify == nil || !verifyRes.Verify.Valid {
		reason := "verification failed"
		if err != nil {
			reason = err.Error()
		} else if verifyRes.Verify != nil {
			reason = verifyRes.Verify.InvalidReason
		}
		if d.Metrics != nil {
			d.Metrics.ObservePaymentFailure(req.Method, resource, reason)
		}
		writePaymentFailure(w, verifyRes.Facilitator, reason)
		return
	}

	settleRes, err := d.Facilitator.Settle(r.Context(), payload, reqs, req.Facilitator)
	if err != nil || settleRes.Settle == nil || !settleRes.Settle.Settled {
		reason := "settlement failed"
		if err != nil {
			reason = err.Error()
		} else if settleRes.Settle != nil {
			reason = settleRes.Settle.ErrorReason
		}
		if d.Metrics != nil {
			d.Metrics.ObservePaymentFailure(req.Method, resource, reason)
		}
		writePaymentFailure(w, settleRes.Facilitator, reason)
		return
	}

	if d.Metrics != nil {
		d.Metrics.ObservePayment(req.Method, resource, true, 0, 0, reqs.Asset)
	}

	if isBatchPurchase {
		desc, err := d.Ledger.Issue(primary.BatchCost.Calls, primary.BatchCost.Price)
		if err != nil {
			log.Error().Err(err).Msg("x402mw.batch_issue_failed")
			apierrors.WriteSimpleError(w, apierrors.ErrCodeInternalError, "failed to issue batch")
			return
		}
		responders.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"batch": map[string]any{
				"batchId":        desc.BatchID,
				"calls":          desc.TotalCalls,
				"callsRemaining": desc.CallsRemaining,
				"amountPaid":     desc.AmountPaid,
				"expiresAt":      desc.ExpiresAt,
			},
			"txHash": settleRes.Settle.TxHash,
		})
		return
	}

	outcome := Outcome{
		Provider:    primary,
		Fallbacks:   fallbacks,
		Valid:       true,
		Facilitator: settleRes.Facilitator,
		TxHash:      settleRes.Settle.TxHash,
		Payer:       verifyRes.Verify.Payer,
		Chain:       req.Chain,
		Amount:      paymentAmount,
	}
	ctx := WithOutcome(r.Context(), outcome)
	ctx = withRPCRequest(ctx, req)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func writePaymentFailure(w http.ResponseWriter, facilitatorName, reason string) {
	responders.JSON(w, http.StatusPaymentRequired, map[string]any{
		"error":       reason,
		"details":     reason,
		"facilitator": facilitatorName,
	})
}

func toRouterPreferences(in *PreferencesIn) router.Preferences {
	if in == nil {
		return router.Preferences{}
	}
	return router.Preferences{
		Strategy:           router.Strategy(in.Strategy),
		MaxLatencyMs:       in.MaxLatencyMs,
		MaxCostPerCall:     in.MaxCostPerCall,
		PreferredProviders: in.PreferredProviders,
		ExcludeProviders:   in.ExcludeProviders,
		RequireHealthy:     in.RequireHealthy,
	}
}

func resourceURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path)
}

func withRPCRequest(ctx context.Context, req RPCRequest) context.Context {
	return context.WithValue(ctx, contextKeyRPCRequest, req)
}

// RPCRequestFromContext retrieves the decoded RPC request the middleware
// parsed, for the gateway handler's forward call.
func RPCRequestFromContext(ctx context.Context) (RPCRequest, bool) {
	req, ok := ctx.Value(contextKeyRPCRequest).(RPCRequest)
	return req, ok
}
