package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// evmChainFamily is the set of substrings recognized as EVM-family chains for
// the purpose of picking a minimal health-probe RPC method. Everything else
// is treated as Solana-family.
var evmChainFamily = []string{"eth", "polygon", "arbitrum", "optimism", "base", "bsc", "avalanche"}

func isEVMFamily(chain string) bool {
	chain = strings.ToLower(chain)
	for _, f := range evmChainFamily {
		if strings.Contains(chain, f) {
			return true
		}
	}
	return false
}

// probeMethodFor returns the minimal JSON-RPC probe call for a provider's
// primary chain family.
func probeMethodFor(p Provider) string {
	if len(p.Chains) > 0 && isEVMFamily(p.Chains[0]) {
		return "eth_blockNumber"
	}
	return "getSlot"
}

// StartHealthChecks launches the periodic probe loop. It probes immediately,
// then on the given interval, until ctx is cancelled or StopHealthChecks is
// called. All providers are probed concurrently per tick.
func (r *Registry) StartHealthChecks(ctx context.Context, interval time.Duration) {
	r.wg.Add(1)
	go r.healthCheckLoop(ctx, interval)
}

// StopHealthChecks signals the probe loop to stop and waits for it to exit.
func (r *Registry) StopHealthChecks() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Registry) healthCheckLoop(ctx context.Context, interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.probeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.probeAll(ctx)
		}
	}
}

// probeAll fans out one health probe per provider concurrently; a slow or
// unreachable provider never delays the others.
func (r *Registry) probeAll(ctx context.Context) {
	providers := r.ListAll()

	var wg sync.WaitGroup
	for _, p := range providers {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.probeOne(ctx, p)
		}()
	}
	wg.Wait()
}

func (r *Registry) probeOne(ctx context.Context, p Provider) {
	url := p.HealthCheckURL
	if url == "" {
		url = p.Endpoint
	}
	if url == "" {
		// Intentionally URL-less: pinned offline at registration, excluded
		// from probe noise.
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	start := time.Now()
	success := r.doProbe(probeCtx, url, probeMethodFor(p))
	latencyMs := time.Since(start).Milliseconds()

	if err := r.RecordProbe(p.ID, latencyMs, success); err != nil {
		log.Warn().Err(err).Str("provider", p.ID).Msg("provider.health_check.record_failed")
		return
	}

	if r.metrics != nil {
		r.metrics.ObserveProviderHealthCheck(p.ID, success, time.Duration(latencyMs)*time.Millisecond)

		health, _ := r.GetHealth(p.ID)
		statusValue := 1.0
		switch health.Status {
		case HealthDegraded:
			statusValue = 0.5
		case HealthOffline:
			statusValue = 0.0
		}
		r.metrics.SetProviderStatus(p.ID, statusValue)
	}
}

// doProbe issues the minimal JSON-RPC health check and reports success iff
// the HTTP status is 2xx and the body parses as a JSON-RPC object carrying
// either "result" or "error".
func (r *Registry) doProbe(ctx context.Context, url, method string) bool {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []any{},
	})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	var parsed struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false
	}
	return parsed.Result != nil || parsed.Error != nil
}
