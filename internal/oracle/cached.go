package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/cedrospay/x402-gateway/internal/circuitbreaker"
	"github.com/cedrospay/x402-gateway/internal/metrics"
	"github.com/rs/zerolog/log"
)

type cacheEntry struct {
	price     float64
	fetchedAt time.Time
}

// Cached wraps a Source with a single-writer/many-readers TTL cache: a fresh
// quote is served straight from cache, a quote older than freshTTL but newer
// than staleTTL triggers a refetch but still serves the stale value if the
// refetch fails, and a quote with no usable cache at all falls back to a
// static constant.
type Cached struct {
	source Source

	freshTTL time.Duration
	staleTTL time.Duration

	staticFallback map[string]float64

	mu      sync.Mutex
	entries map[string]cacheEntry

	metrics *metrics.Metrics
	breaker *circuitbreaker.Manager
}

// NewCached builds a cache-with-TTL decorator around source. A nil breaker
// disables circuit-breaker protection and calls source directly.
func NewCached(source Source, freshTTL, staleTTL time.Duration, staticFallback map[string]float64, m *metrics.Metrics, breaker *circuitbreaker.Manager) *Cached {
	return &Cached{
		source:         source,
		freshTTL:       freshTTL,
		staleTTL:       staleTTL,
		staticFallback: staticFallback,
		entries:        make(map[string]cacheEntry),
		metrics:        m,
		breaker:        breaker,
	}
}

// Quote returns asset's current USD price. It never blocks on a slow
// upstream beyond the caller's ctx deadline, and never returns an error: the
// static fallback guarantees the gateway works without network access to
// the oracle, at the cost of degraded pricing accuracy.
func (c *Cached) Quote(ctx context.Context, asset string) Quote {
	c.mu.Lock()
	entry, ok := c.entries[asset]
	c.mu.Unlock()

	now := time.Now()
	if ok && now.Sub(entry.fetchedAt) < c.freshTTL {
		c.observe("cache", "fresh")
		return Quote{Price: entry.price, Source: "cache", Fresh: true}
	}

	price, err := c.fetch(ctx, asset)
	if err == nil {
		c.mu.Lock()
		c.entries[asset] = cacheEntry{price: price, fetchedAt: now}
		c.mu.Unlock()
		c.observe("live", "success")
		return Quote{Price: price, Source: "live", Fresh: true}
	}

	log.Warn().Err(err).Str("asset", asset).Msg("oracle.fetch_failed")

	if ok && now.Sub(entry.fetchedAt) < c.staleTTL {
		c.observe("stale_cache", "stale")
		if c.metrics != nil {
			c.metrics.ObserveOracleStale()
		}
		return Quote{Price: entry.price, Source: "stale_cache", Fresh: false}
	}

	if price, ok := c.staticFallback[asset]; ok {
		c.observe("static_fallback", "fallback")
		return Quote{Price: price, Source: "static_fallback", Fresh: false}
	}

	c.observe("unavailable", "failure")
	return Quote{Price: 0, Source: "unavailable", Fresh: false}
}

func (c *Cached) fetch(ctx context.Context, asset string) (float64, error) {
	if c.breaker == nil {
		return c.source.FetchUSDPrice(ctx, asset)
	}
	out, err := c.breaker.Execute(circuitbreaker.ServiceOracle, func() (interface{}, error) {
		return c.source.FetchUSDPrice(ctx, asset)
	})
	if err != nil {
		return 0, err
	}
	return out.(float64), nil
}

func (c *Cached) observe(source, result string) {
	if c.metrics != nil {
		c.metrics.ObserveOracleQuery(source, result)
	}
}
