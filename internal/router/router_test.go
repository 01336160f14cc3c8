package router

import (
	"testing"
	"time"

	"github.com/cedrospay/x402-gateway/internal/provider"
)

func newTestRegistry(t *testing.T, providers ...provider.Provider) *provider.Registry {
	t.Helper()
	r := provider.NewRegistry(5*time.Second, nil)
	for _, p := range providers {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register(%s) error = %v", p.ID, err)
		}
	}
	return r
}

func withLatency(r *provider.Registry, id string, latencyMs int64) {
	_ = r.RecordProbe(id, latencyMs, true)
}

func TestSelectWithFallback_NoEligibleProvider(t *testing.T) {
	reg := newTestRegistry(t)
	rt := New(reg, nil)

	_, _, err := rt.SelectWithFallback("solana", Preferences{})
	if err != ErrNoProviderAvailable {
		t.Errorf("error = %v, want ErrNoProviderAvailable", err)
	}
}

func TestSelectWithFallback_ExcludesOffline(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "a", Chains: []string{"solana"}, Endpoint: ""},
		provider.Provider{ID: "b", Chains: []string{"solana"}, Endpoint: "https://b"},
	)
	rt := New(reg, nil)

	primary, fallbacks, err := rt.SelectWithFallback("solana", Preferences{})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "b" || len(fallbacks) != 0 {
		t.Errorf("got primary=%s fallbacks=%v, want primary=b no fallbacks", primary.ID, fallbacks)
	}
}

func TestSelectWithFallback_RequireHealthyExcludesDegraded(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "a", Chains: []string{"solana"}, Endpoint: "https://a"},
		provider.Provider{ID: "b", Chains: []string{"solana"}, Endpoint: "https://b"},
	)
	_ = reg.RecordProbe("b", 0, false) // degraded after first failure

	rt := New(reg, nil)

	primary, fallbacks, err := rt.SelectWithFallback("solana", Preferences{})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "a" || len(fallbacks) != 0 {
		t.Errorf("requireHealthy default should exclude degraded b, got primary=%s fallbacks=%v", primary.ID, fallbacks)
	}

	requireHealthy := false
	primary, fallbacks, err = rt.SelectWithFallback("solana", Preferences{RequireHealthy: &requireHealthy})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if len(fallbacks) != 1 {
		t.Errorf("requireHealthy=false should include degraded b as fallback, got primary=%s fallbacks=%v", primary.ID, fallbacks)
	}
}

func TestSelectWithFallback_LowestCostStrategy(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "cheap", Chains: []string{"solana"}, Endpoint: "https://cheap", CostPerCall: 0.0001},
		provider.Provider{ID: "pricey", Chains: []string{"solana"}, Endpoint: "https://pricey", CostPerCall: 0.001},
	)
	rt := New(reg, nil)

	primary, _, err := rt.SelectWithFallback("solana", Preferences{Strategy: StrategyLowestCost})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "cheap" {
		t.Errorf("primary = %s, want cheap", primary.ID)
	}
}

func TestSelectWithFallback_LowestLatencyStrategy(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "slow", Chains: []string{"solana"}, Endpoint: "https://slow"},
		provider.Provider{ID: "fast", Chains: []string{"solana"}, Endpoint: "https://fast"},
	)
	withLatency(reg, "slow", 500)
	withLatency(reg, "fast", 50)

	rt := New(reg, nil)
	primary, _, err := rt.SelectWithFallback("solana", Preferences{Strategy: StrategyLowestLatency})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "fast" {
		t.Errorf("primary = %s, want fast", primary.ID)
	}
}

func TestSelectWithFallback_HighestPriorityStrategy(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "low", Chains: []string{"solana"}, Endpoint: "https://low", Priority: 1},
		provider.Provider{ID: "high", Chains: []string{"solana"}, Endpoint: "https://high", Priority: 10},
	)
	rt := New(reg, nil)

	primary, _, err := rt.SelectWithFallback("solana", Preferences{Strategy: StrategyHighestPriority})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "high" {
		t.Errorf("primary = %s, want high", primary.ID)
	}
}

func TestSelectWithFallback_PreferredProvidersHoisted(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "cheap", Chains: []string{"solana"}, Endpoint: "https://cheap", CostPerCall: 0.0001},
		provider.Provider{ID: "preferred", Chains: []string{"solana"}, Endpoint: "https://preferred", CostPerCall: 0.01},
	)
	rt := New(reg, nil)

	primary, _, err := rt.SelectWithFallback("solana", Preferences{
		Strategy:           StrategyLowestCost,
		PreferredProviders: []string{"preferred"},
	})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "preferred" {
		t.Errorf("primary = %s, want preferred to be hoisted", primary.ID)
	}
}

func TestSelectWithFallback_ExcludeProviders(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "a", Chains: []string{"solana"}, Endpoint: "https://a"},
		provider.Provider{ID: "b", Chains: []string{"solana"}, Endpoint: "https://b"},
	)
	rt := New(reg, nil)

	primary, fallbacks, err := rt.SelectWithFallback("solana", Preferences{ExcludeProviders: []string{"a"}})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "b" || len(fallbacks) != 0 {
		t.Errorf("got primary=%s fallbacks=%v, want primary=b only", primary.ID, fallbacks)
	}
}

func TestSelectWithFallback_MaxCostPerCallCap(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "cheap", Chains: []string{"solana"}, Endpoint: "https://cheap", CostPerCall: 0.0001},
		provider.Provider{ID: "pricey", Chains: []string{"solana"}, Endpoint: "https://pricey", CostPerCall: 0.01},
	)
	rt := New(reg, nil)

	primary, fallbacks, err := rt.SelectWithFallback("solana", Preferences{MaxCostPerCall: 0.001})
	if err != nil {
		t.Fatalf("SelectWithFallback() error = %v", err)
	}
	if primary.ID != "cheap" || len(fallbacks) != 0 {
		t.Errorf("got primary=%s fallbacks=%v, want only cheap under cap", primary.ID, fallbacks)
	}
}

func TestSelectWithFallback_RoundRobinDistributesEvenly(t *testing.T) {
	reg := newTestRegistry(t,
		provider.Provider{ID: "a", Chains: []string{"solana"}, Endpoint: "https://a"},
		provider.Provider{ID: "b", Chains: []string{"solana"}, Endpoint: "https://b"},
		provider.Provider{ID: "c", Chains: []string{"solana"}, Endpoint: "https://c"},
	)
	rt := New(reg, nil)

	counts := map[string]int{}
	const calls = 9
	for i := 0; i < calls; i++ {
		primary, _, err := rt.SelectWithFallback("solana", Preferences{Strategy: StrategyRoundRobin})
		if err != nil {
			t.Fatalf("SelectWithFallback() error = %v", err)
		}
		counts[primary.ID]++
	}

	for id, c := range counts {
		if c != calls/3 {
			t.Errorf("provider %s got %d calls, want %d (even split)", id, c, calls/3)
		}
	}
}
