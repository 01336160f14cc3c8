package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Routing metrics
	RouteRequestsTotal  *prometheus.CounterVec
	RouteSelectionsTotal *prometheus.CounterVec
	RouteFallbacksTotal *prometheus.CounterVec
	NoProviderTotal     *prometheus.CounterVec

	// Provider health metrics
	ProviderHealthChecksTotal *prometheus.CounterVec
	ProviderLatency           *prometheus.HistogramVec
	ProviderStatus            *prometheus.GaugeVec

	// Payment/facilitator metrics
	PaymentsTotal        *prometheus.CounterVec
	PaymentsSuccessTotal *prometheus.CounterVec
	PaymentsFailedTotal  *prometheus.CounterVec
	PaymentAmountTotal   *prometheus.CounterVec
	VerifyDuration       *prometheus.HistogramVec
	SettlementDuration   *prometheus.HistogramVec
	FacilitatorFallbacksTotal *prometheus.CounterVec

	// Batch ledger metrics
	BatchesIssuedTotal   prometheus.Counter
	BatchDebitsTotal     *prometheus.CounterVec
	BatchExpiredTotal    prometheus.Counter
	BatchCallsRemaining  prometheus.Gauge

	// Upstream RPC call metrics
	RPCCallsTotal   *prometheus.CounterVec
	RPCCallDuration *prometheus.HistogramVec
	RPCErrorsTotal  *prometheus.CounterVec

	// Price oracle metrics
	OracleQueriesTotal *prometheus.CounterVec
	OracleStaleTotal   prometheus.Counter

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		RouteRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_route_requests_total",
				Help: "Total number of routing decisions requested",
			},
			[]string{"chain", "method"},
		),
		RouteSelectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_route_selections_total",
				Help: "Total number of providers selected by strategy",
			},
			[]string{"chain", "strategy", "provider"},
		),
		RouteFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_route_fallbacks_total",
				Help: "Total number of times the router advanced to a fallback provider",
			},
			[]string{"chain", "from_provider"},
		),
		NoProviderTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_no_provider_available_total",
				Help: "Total number of routing requests that exhausted every candidate",
			},
			[]string{"chain", "method"},
		),

		ProviderHealthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_provider_health_checks_total",
				Help: "Total number of provider health probes run",
			},
			[]string{"provider", "result"},
		),
		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_provider_latency_seconds",
				Help:    "Observed provider response latency (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"provider"},
		),
		ProviderStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_provider_status",
				Help: "Current provider status (0=offline, 1=degraded, 2=active)",
			},
			[]string{"provider"},
		),

		PaymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payments_total",
				Help: "Total number of payment attempts",
			},
			[]string{"method", "resource"},
		),
		PaymentsSuccessTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payments_success_total",
				Help: "Total number of successful payments",
			},
			[]string{"method", "resource"},
		),
		PaymentsFailedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payments_failed_total",
				Help: "Total number of failed payments",
			},
			[]string{"method", "resource", "reason"},
		),
		PaymentAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_payment_amount_base_units_total",
				Help: "Total payment amount in token base units",
			},
			[]string{"method", "token"},
		),
		VerifyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_verify_duration_seconds",
				Help:    "Time taken to verify a payment proof (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"facilitator_type"},
		),
		SettlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_settlement_duration_seconds",
				Help:    "Time from settlement request to facilitator response",
				Buckets: []float64{0.05, 0.25, 1, 5, 10, 30, 60, 120},
			},
			[]string{"facilitator_type"},
		),
		FacilitatorFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_facilitator_fallbacks_total",
				Help: "Total number of times the facilitator manager fell back from primary",
			},
			[]string{"from_type", "to_type"},
		),

		BatchesIssuedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_batches_issued_total",
				Help: "Total number of prepaid call batches issued",
			},
		),
		BatchDebitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_batch_debits_total",
				Help: "Total number of batch debit attempts",
			},
			[]string{"result"},
		),
		BatchExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_batch_expired_total",
				Help: "Total number of batches reclaimed by the expiry sweep",
			},
		),
		BatchCallsRemaining: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_batch_calls_remaining",
				Help: "Sum of remaining calls across all live batches",
			},
		),

		RPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_rpc_calls_total",
				Help: "Total number of RPC calls forwarded to upstream providers",
			},
			[]string{"method", "provider"},
		),
		RPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_rpc_call_duration_seconds",
				Help:    "Duration of RPC calls forwarded to upstream providers (supports p50, p95, p99 percentiles)",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "provider"},
		),
		RPCErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_upstream_rpc_errors_total",
				Help: "Total number of upstream RPC errors",
			},
			[]string{"method", "provider", "error_type"},
		),

		OracleQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_oracle_queries_total",
				Help: "Total number of price oracle lookups by source",
			},
			[]string{"source", "result"},
		),
		OracleStaleTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_oracle_stale_fallback_total",
				Help: "Total number of times a stale cached quote was served",
			},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"limit_type", "identifier"},
		),
	}
}

// ObservePayment records a payment attempt and its outcome.
func (m *Metrics) ObservePayment(method, resource string, success bool, duration time.Duration, amount int64, token string) {
	m.PaymentsTotal.WithLabelValues(method, resource).Inc()
	if success {
		m.PaymentsSuccessTotal.WithLabelValues(method, resource).Inc()
		m.PaymentAmountTotal.WithLabelValues(method, token).Add(float64(amount))
	}
}

// ObservePaymentFailure records a failed payment with reason.
func (m *Metrics) ObservePaymentFailure(method, resource, reason string) {
	m.PaymentsFailedTotal.WithLabelValues(method, resource, reason).Inc()
}

// ObserveVerify records the time taken to verify a payment proof.
func (m *Metrics) ObserveVerify(facilitatorType string, duration time.Duration) {
	m.VerifyDuration.WithLabelValues(facilitatorType).Observe(duration.Seconds())
}

// ObserveSettlement records facilitator settlement time.
func (m *Metrics) ObserveSettlement(facilitatorType string, duration time.Duration) {
	m.SettlementDuration.WithLabelValues(facilitatorType).Observe(duration.Seconds())
}

// ObserveFacilitatorFallback records a manager failover from one facilitator type to another.
func (m *Metrics) ObserveFacilitatorFallback(fromType, toType string) {
	m.FacilitatorFallbacksTotal.WithLabelValues(fromType, toType).Inc()
}

// ObserveRouteSelection records a provider selection by the router.
func (m *Metrics) ObserveRouteSelection(chain, strategy, provider string) {
	m.RouteRequestsTotal.WithLabelValues(chain, strategy).Inc()
	m.RouteSelectionsTotal.WithLabelValues(chain, strategy, provider).Inc()
}

// ObserveRouteFallback records the router advancing past a failed candidate.
func (m *Metrics) ObserveRouteFallback(chain, fromProvider string) {
	m.RouteFallbacksTotal.WithLabelValues(chain, fromProvider).Inc()
}

// ObserveNoProvider records a routing request with no eligible candidate.
func (m *Metrics) ObserveNoProvider(chain, method string) {
	m.NoProviderTotal.WithLabelValues(chain, method).Inc()
}

// ObserveProviderHealthCheck records the outcome of a provider health probe.
func (m *Metrics) ObserveProviderHealthCheck(provider string, healthy bool, latency time.Duration) {
	result := "success"
	if !healthy {
		result = "failure"
	}
	m.ProviderHealthChecksTotal.WithLabelValues(provider, result).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

// SetProviderStatus publishes a provider's current status as a gauge value.
func (m *Metrics) SetProviderStatus(provider string, statusValue float64) {
	m.ProviderStatus.WithLabelValues(provider).Set(statusValue)
}

// ObserveBatchIssued records a newly issued batch.
func (m *Metrics) ObserveBatchIssued() {
	m.BatchesIssuedTotal.Inc()
}

// ObserveBatchDebit records a batch debit attempt.
func (m *Metrics) ObserveBatchDebit(result string) {
	m.BatchDebitsTotal.WithLabelValues(result).Inc()
}

// ObserveBatchExpired records the expiry sweep reclaiming a batch.
func (m *Metrics) ObserveBatchExpired() {
	m.BatchExpiredTotal.Inc()
}

// SetBatchCallsRemaining publishes the current sum of remaining calls across live batches.
func (m *Metrics) SetBatchCallsRemaining(remaining int64) {
	m.BatchCallsRemaining.Set(float64(remaining))
}

// ObserveRPCCall records an RPC call forwarded to an upstream provider.
func (m *Metrics) ObserveRPCCall(method, provider string, duration time.Duration, err error) {
	m.RPCCallsTotal.WithLabelValues(method, provider).Inc()
	m.RPCCallDuration.WithLabelValues(method, provider).Observe(duration.Seconds())

	if err != nil {
		errorType := classifyRPCError(err.Error())
		m.RPCErrorsTotal.WithLabelValues(method, provider, errorType).Inc()
	}
}

// ObserveOracleQuery records a price oracle lookup.
func (m *Metrics) ObserveOracleQuery(source, result string) {
	m.OracleQueriesTotal.WithLabelValues(source, result).Inc()
}

// ObserveOracleStale records the oracle falling back to a stale cached quote.
func (m *Metrics) ObserveOracleStale() {
	m.OracleStaleTotal.Inc()
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(limitType, identifier string) {
	m.RateLimitHitsTotal.WithLabelValues(limitType, identifier).Inc()
}

func classifyRPCError(errStr string) string {
	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "timeout"):
		return "timeout"
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "429"):
		return "rate_limit"
	case strings.Contains(lower, "connection"):
		return "connection"
	case strings.Contains(lower, "not found"):
		return "not_found"
	default:
		return "other"
	}
}
