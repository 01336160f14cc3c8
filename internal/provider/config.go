package provider

import (
	"fmt"
	"sort"

	"github.com/cedrospay/x402-gateway/internal/config"
)

// FromConfig builds Provider descriptors from the static provider map in
// config, keyed by provider id, and registers them in registration order
// sorted by id (map iteration order is otherwise undefined, and the
// registry's stats/list output should be stable across restarts).
func FromConfig(providers map[string]config.ProviderConfig) []Provider {
	ids := make([]string, 0, len(providers))
	for id := range providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Provider, 0, len(ids))
	for _, id := range ids {
		pc := providers[id]
		p := Provider{
			ID:             id,
			Name:           pc.Name,
			Chains:         pc.Chains,
			Endpoint:       pc.Endpoint,
			HealthCheckURL: pc.HealthCheckURL,
			CostPerCall:    pc.CostPerCall,
			Priority:       pc.Priority,
			MaxLatencyMs:   pc.MaxLatencyMs,
		}
		if pc.BatchCalls > 0 {
			p.BatchCost = &BatchCost{Calls: int64(pc.BatchCalls), Price: pc.BatchPrice}
		}
		out = append(out, p)
	}
	return out
}

// RegisterAll registers every provider built from config, returning the
// first registration error encountered (provider ids must be unique).
func RegisterAll(r *Registry, providers map[string]config.ProviderConfig) error {
	for _, p := range FromConfig(providers) {
		if err := r.Register(p); err != nil {
			return fmt.Errorf("register provider %q: %w", p.ID, err)
		}
	}
	return nil
}
