package provider

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cedrospay/x402-gateway/internal/httputil"
	"github.com/cedrospay/x402-gateway/internal/metrics"
)

// ErrNotFound is returned when a provider id is unknown to the registry.
var ErrNotFound = errors.New("provider: not found")

// ErrAlreadyRegistered is returned by Register when the id is already in use.
var ErrAlreadyRegistered = errors.New("provider: already registered")

type entry struct {
	provider Provider
	health   ProviderHealth
}

// Registry holds provider descriptors and their live health state.
//
// Readers (the router) take RLock; the probe loop takes Lock per provider
// update, never across an outbound HTTP call. Probes run concurrently per
// tick so one slow provider cannot delay the others.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	order    []string // registration order, for stable listAll output

	httpClient   *http.Client
	probeTimeout time.Duration
	metrics      *metrics.Metrics

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRegistry creates an empty provider registry.
func NewRegistry(probeTimeout time.Duration, m *metrics.Metrics) *Registry {
	return &Registry{
		entries:      make(map[string]*entry),
		httpClient:   httputil.NewClient(probeTimeout),
		probeTimeout: probeTimeout,
		metrics:      m,
		stopCh:       make(chan struct{}),
	}
}

// Register adds a new provider. The id must be unique. A provider with an
// empty endpoint starts pinned offline; otherwise it starts active/healthy.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[p.ID]; exists {
		return ErrAlreadyRegistered
	}

	health := ProviderHealth{Status: HealthHealthy, LastCheck: time.Time{}}
	if p.Endpoint == "" {
		p.Status = StatusOffline
		health.Status = HealthOffline
		health.ConsecutiveFailures = offlineSentinelFailures
	} else {
		p.Status = StatusActive
	}

	r.entries[p.ID] = &entry{provider: p, health: health}
	r.order = append(r.order, p.ID)
	return nil
}

// Get returns a copy of the provider by id.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Provider{}, false
	}
	return e.provider, true
}

// ListAll returns a copy of every registered provider, in registration order.
func (r *Registry) ListAll() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].provider)
	}
	return out
}

// ListByChain returns every provider that declares support for chain.
func (r *Registry) ListByChain(chain string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0)
	for _, id := range r.order {
		p := r.entries[id].provider
		if p.SupportsChain(chain) {
			out = append(out, p)
		}
	}
	return out
}

// ListHealthy returns providers on chain that are both active and healthy.
func (r *Registry) ListHealthy(chain string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0)
	for _, id := range r.order {
		e := r.entries[id]
		if !e.provider.SupportsChain(chain) {
			continue
		}
		if e.provider.Status == StatusActive && e.health.Status == HealthHealthy {
			out = append(out, e.provider)
		}
	}
	return out
}

// UpdateStatus sets a provider's status directly (registry API, not probe-driven).
func (r *Registry) UpdateStatus(id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.provider.Status = status
	return nil
}

// RecordProbe applies one health-probe result, transitioning status and
// updating the latency EMA per the registry's state machine:
//
//   - success: consecutiveFailures reset to 0; status degraded if
//     latencyMs exceeds the provider's maxLatencyMs, else active/healthy;
//     EMA updated avg = 0.8*avg + 0.2*latencyMs (or avg = latencyMs on the
//     first sample).
//   - failure: consecutiveFailures incremented; >=1 -> degraded, >=3 ->
//     offline. Latency is never updated on failure.
func (r *Registry) RecordProbe(id string, latencyMs int64, success bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	e.provider.LastHealthCheck = now
	e.health.LastCheck = now

	if success {
		e.health.ConsecutiveFailures = 0
		e.health.LatencyMs = latencyMs

		if e.provider.AverageLatencyMs == 0 {
			e.provider.AverageLatencyMs = float64(latencyMs)
		} else {
			e.provider.AverageLatencyMs = 0.8*e.provider.AverageLatencyMs + 0.2*float64(latencyMs)
		}

		if e.provider.MaxLatencyMs > 0 && latencyMs > e.provider.MaxLatencyMs {
			e.provider.Status = StatusDegraded
			e.health.Status = HealthDegraded
		} else {
			e.provider.Status = StatusActive
			e.health.Status = HealthHealthy
		}
		return nil
	}

	e.health.ConsecutiveFailures++
	switch {
	case e.health.ConsecutiveFailures >= consecutiveFailuresToOffline:
		e.provider.Status = StatusOffline
		e.health.Status = HealthOffline
	default:
		e.provider.Status = StatusDegraded
		e.health.Status = HealthDegraded
	}
	return nil
}

// GetHealth returns a copy of the provider's health record.
func (r *Registry) GetHealth(id string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return ProviderHealth{}, false
	}
	return e.health, true
}

// Stats aggregates status counts, the union of supported chains, and mean
// latency across all registered providers.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Stats
	chainSet := make(map[string]struct{})
	var latencySum float64
	var latencyCount int

	for _, id := range r.order {
		p := r.entries[id].provider
		s.Total++
		switch p.Status {
		case StatusActive:
			s.ActiveCount++
		case StatusDegraded:
			s.DegradedCount++
		case StatusOffline:
			s.OfflineCount++
		}
		for _, c := range p.Chains {
			chainSet[c] = struct{}{}
		}
		if p.AverageLatencyMs > 0 {
			latencySum += p.AverageLatencyMs
			latencyCount++
		}
	}

	s.Chains = make([]string, 0, len(chainSet))
	for c := range chainSet {
		s.Chains = append(s.Chains, c)
	}
	if latencyCount > 0 {
		s.MeanLatencyMs = latencySum / float64(latencyCount)
	}
	return s
}
