package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/cedrospay/x402-gateway/internal/errors"
	"github.com/cedrospay/x402-gateway/internal/provider"
	"github.com/cedrospay/x402-gateway/pkg/responders"
)

// providerView is the wire shape of one provider's public state; it omits
// nothing the registry tracks but gives fields stable JSON names.
type providerView struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Chains           []string            `json:"chains"`
	Endpoint         string              `json:"endpoint"`
	CostPerCall      float64             `json:"costPerCall"`
	BatchCost        *provider.BatchCost `json:"batchCost,omitempty"`
	Priority         int                 `json:"priority"`
	MaxLatencyMs     int64               `json:"maxLatencyMs"`
	Status           provider.Status     `json:"status"`
	AverageLatencyMs float64             `json:"averageLatencyMs"`
}

func toProviderView(p provider.Provider) providerView {
	return providerView{
		ID:               p.ID,
		Name:             p.Name,
		Chains:           p.Chains,
		Endpoint:         p.Endpoint,
		CostPerCall:      p.CostPerCall,
		BatchCost:        p.BatchCost,
		Priority:         p.Priority,
		MaxLatencyMs:     p.MaxLatencyMs,
		Status:           p.Status,
		AverageLatencyMs: p.AverageLatencyMs,
	}
}

// listProviders returns every registered provider, optionally filtered by
// ?chain=.
func (h *handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	var providers []provider.Provider
	if chain := r.URL.Query().Get("chain"); chain != "" {
		providers = h.registry.ListByChain(chain)
	} else {
		providers = h.registry.ListAll()
	}

	views := make([]providerView, 0, len(providers))
	for _, p := range providers {
		views = append(views, toProviderView(p))
	}
	responders.JSON(w, http.StatusOK, map[string]any{"providers": views})
}

// getProvider returns one provider's public state plus its health record.
func (h *handlers) getProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.registry.Get(id)
	if !ok {
		apierrors.WriteSimpleError(w, apierrors.ErrCodeProviderNotFound, "provider not found")
		return
	}
	health, _ := h.registry.GetHealth(id)

	responders.JSON(w, http.StatusOK, map[string]any{
		"provider": toProviderView(p),
		"health": map[string]any{
			"status":              health.Status,
			"latencyMs":           health.LatencyMs,
			"consecutiveFailures": health.ConsecutiveFailures,
			"lastCheck":           health.LastCheck,
		},
	})
}

// facilitatorInfo returns the manager's current primary/fallback state.
func (h *handlers) facilitatorInfo(w http.ResponseWriter, r *http.Request) {
	responders.JSON(w, http.StatusOK, h.facilitator.Info())
}

// batchPricing returns each chain-matching provider's batch offer, if any.
func (h *handlers) batchPricing(w http.ResponseWriter, r *http.Request) {
	chain := r.URL.Query().Get("chain")
	var providers []provider.Provider
	if chain != "" {
		providers = h.registry.ListByChain(chain)
	} else {
		providers = h.registry.ListAll()
	}

	type offer struct {
		ProviderID  string  `json:"providerId"`
		Provider    string  `json:"provider"`
		CostPerCall float64 `json:"costPerCall"`
		Calls       int64   `json:"calls"`
		Price       float64 `json:"price"`
		Savings     float64 `json:"savings"`
	}

	offers := make([]offer, 0, len(providers))
	for _, p := range providers {
		if p.BatchCost == nil {
			continue
		}
		perCallTotal := p.CostPerCall * float64(p.BatchCost.Calls)
		savings := 0.0
		if perCallTotal > 0 {
			savings = (1 - (p.BatchCost.Price / perCallTotal)) * 100
		}
		offers = append(offers, offer{
			ProviderID:  p.ID,
			Provider:    p.Name,
			CostPerCall: p.CostPerCall,
			Calls:       p.BatchCost.Calls,
			Price:       p.BatchCost.Price,
			Savings:     savings,
		})
	}
	responders.JSON(w, http.StatusOK, map[string]any{"offers": offers})
}

// solanaMethods and evmMethods are the gateway's declared read-method
// allowlist per chain family, also enforced by chainRPCProxy.
var (
	solanaMethods = []string{"getSlot", "getBalance", "getAccountInfo", "getLatestBlockhash", "getTransaction", "getTokenAccountBalance"}
	evmMethods    = []string{"eth_blockNumber", "eth_getBalance", "eth_call", "eth_getTransactionByHash", "eth_chainId", "eth_getTransactionReceipt"}
)

// rpcMethods returns the declared supported methods for ?chain=.
func (h *handlers) rpcMethods(w http.ResponseWriter, r *http.Request) {
	chain := r.URL.Query().Get("chain")
	if chain == "" {
		chain = h.cfg.Gateway.DefaultChain
	}

	methods := solanaMethods
	if isEVMChain(chain) {
		methods = evmMethods
	}
	responders.JSON(w, http.StatusOK, map[string]any{"chain": chain, "methods": methods})
}

func isEVMChain(chain string) bool {
	switch chain {
	case "ethereum", "polygon", "arbitrum", "optimism", "base":
		return true
	default:
		return false
	}
}
