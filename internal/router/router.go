package router

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cedrospay/x402-gateway/internal/metrics"
	"github.com/cedrospay/x402-gateway/internal/provider"
)

// Router ranks a registry snapshot under a selection strategy. It holds no
// provider state of its own beyond the per-chain round-robin cursors.
type Router struct {
	registry *provider.Registry
	metrics  *metrics.Metrics

	rrMu  sync.Mutex
	rrCtr map[string]*atomic.Uint64
}

// New creates a Router over the given registry.
func New(registry *provider.Registry, m *metrics.Metrics) *Router {
	return &Router{
		registry: registry,
		metrics:  m,
		rrCtr:    make(map[string]*atomic.Uint64),
	}
}

// SelectWithFallback returns a primary provider plus its ordered fallbacks
// for chain under preferences, or ErrNoProviderAvailable if nothing survives
// the filters.
func (r *Router) SelectWithFallback(chain string, prefs Preferences) (provider.Provider, []provider.Provider, error) {
	candidates := r.registry.ListByChain(chain)
	candidates = filterByHealth(candidates, prefs.requireHealthy())
	candidates = filterExcluded(candidates, prefs.ExcludeProviders)
	candidates = filterCaps(candidates, prefs)

	if len(candidates) == 0 {
		if r.metrics != nil {
			r.metrics.ObserveNoProvider(chain, "")
		}
		return provider.Provider{}, nil, ErrNoProviderAvailable
	}

	strategy := prefs.strategyOrDefault()
	ranked := r.rank(chain, strategy, candidates)
	ranked = hoistPreferred(ranked, prefs.PreferredProviders)

	primary := ranked[0]
	fallbacks := ranked[1:]

	if r.metrics != nil {
		r.metrics.ObserveRouteSelection(chain, string(strategy), primary.ID)
	}

	return primary, fallbacks, nil
}

func filterByHealth(providers []provider.Provider, requireHealthy bool) []provider.Provider {
	out := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		switch p.Status {
		case provider.StatusOffline:
			continue
		case provider.StatusDegraded:
			if requireHealthy {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

func filterExcluded(providers []provider.Provider, excluded []string) []provider.Provider {
	if len(excluded) == 0 {
		return providers
	}
	out := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		if !contains(excluded, p.ID) {
			out = append(out, p)
		}
	}
	return out
}

func filterCaps(providers []provider.Provider, prefs Preferences) []provider.Provider {
	out := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		if prefs.MaxCostPerCall > 0 && p.CostPerCall > prefs.MaxCostPerCall {
			continue
		}
		if prefs.MaxLatencyMs > 0 && p.AverageLatencyMs > float64(prefs.MaxLatencyMs) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// rank orders candidates per strategy. round-robin rotates the snapshot
// order rather than sorting by a field; every other strategy sorts
// ascending/descending with the documented tie-breaks.
func (r *Router) rank(chain string, strategy Strategy, candidates []provider.Provider) []provider.Provider {
	ranked := make([]provider.Provider, len(candidates))
	copy(ranked, candidates)

	switch strategy {
	case StrategyLowestLatency:
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].AverageLatencyMs != ranked[j].AverageLatencyMs {
				return ranked[i].AverageLatencyMs < ranked[j].AverageLatencyMs
			}
			return ranked[i].CostPerCall < ranked[j].CostPerCall
		})
	case StrategyHighestPriority:
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].Priority != ranked[j].Priority {
				return ranked[i].Priority > ranked[j].Priority
			}
			return ranked[i].CostPerCall < ranked[j].CostPerCall
		})
	case StrategyRoundRobin:
		ranked = r.rotate(chain, ranked)
	default: // lowest-cost
		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].CostPerCall != ranked[j].CostPerCall {
				return ranked[i].CostPerCall < ranked[j].CostPerCall
			}
			if ranked[i].AverageLatencyMs != ranked[j].AverageLatencyMs {
				return ranked[i].AverageLatencyMs < ranked[j].AverageLatencyMs
			}
			return ranked[i].Priority > ranked[j].Priority
		})
	}

	return ranked
}

// rotate advances a per-chain atomic counter and returns the candidate slice
// starting at that offset, wrapping around.
func (r *Router) rotate(chain string, candidates []provider.Provider) []provider.Provider {
	if len(candidates) == 0 {
		return candidates
	}

	ctr := r.counterFor(chain)
	n := uint64(len(candidates))
	offset := ctr.Add(1) % n

	rotated := make([]provider.Provider, 0, len(candidates))
	rotated = append(rotated, candidates[offset:]...)
	rotated = append(rotated, candidates[:offset]...)
	return rotated
}

func (r *Router) counterFor(chain string) *atomic.Uint64 {
	r.rrMu.Lock()
	defer r.rrMu.Unlock()

	ctr, ok := r.rrCtr[chain]
	if !ok {
		ctr = &atomic.Uint64{}
		r.rrCtr[chain] = ctr
	}
	return ctr
}

// hoistPreferred moves any provider whose id is in preferred to the head of
// ranked, preserving the relative order both groups already have.
func hoistPreferred(ranked []provider.Provider, preferred []string) []provider.Provider {
	if len(preferred) == 0 {
		return ranked
	}

	head := make([]provider.Provider, 0, len(ranked))
	rest := make([]provider.Provider, 0, len(ranked))
	for _, p := range ranked {
		if contains(preferred, p.ID) {
			head = append(head, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(head, rest...)
}
