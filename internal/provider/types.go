// Package provider holds the ProviderRegistry: upstream RPC provider descriptors,
// their live health state, and the background probe loop that keeps that state
// current.
package provider

import "time"

// Status is the provider's live availability state as seen by the router.
type Status string

const (
	StatusActive   Status = "active"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// HealthStatus is the probe-observed health state, tracked per provider.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
)

// offlineSentinelFailures marks a URL-less provider as permanently offline
// without polluting health output with a climbing failure counter.
const offlineSentinelFailures = 1 << 30

// consecutiveFailuresToOffline is the number of consecutive probe failures
// that transitions a provider to offline.
const consecutiveFailuresToOffline = 3

// BatchCost is a provider's optional discounted pre-paid call bundle offer.
type BatchCost struct {
	Calls int64
	Price float64
}

// Provider is an upstream RPC endpoint the router may select.
type Provider struct {
	ID             string
	Name           string
	Chains         []string
	Endpoint       string
	HealthCheckURL string

	CostPerCall float64
	BatchCost   *BatchCost

	Priority     int
	MaxLatencyMs int64

	Status           Status
	AverageLatencyMs float64
	LastHealthCheck  time.Time
}

// SupportsChain reports whether the provider serves the given chain.
func (p Provider) SupportsChain(chain string) bool {
	for _, c := range p.Chains {
		if c == chain {
			return true
		}
	}
	return false
}

// ProviderHealth is the probe-observed health record for one provider.
type ProviderHealth struct {
	Status              HealthStatus
	LatencyMs           int64
	ConsecutiveFailures int
	LastCheck           time.Time
}

// Stats summarizes the registry for the /health and /providers aggregate views.
type Stats struct {
	Total         int
	ActiveCount   int
	DegradedCount int
	OfflineCount  int
	Chains        []string
	MeanLatencyMs float64
}
