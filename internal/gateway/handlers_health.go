package gateway

import (
	"net/http"
	"time"

	"github.com/cedrospay/x402-gateway/pkg/responders"
)

var serverStartTime = time.Now()

// health reports service uptime and provider registry aggregate stats.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()

	status := "ok"
	statusCode := http.StatusOK
	if stats.Total > 0 && stats.ActiveCount == 0 {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	responders.JSON(w, statusCode, map[string]any{
		"status":    status,
		"uptime":    time.Since(serverStartTime).String(),
		"timestamp": time.Now().UTC(),
		"network":   h.cfg.Gateway.Network,
		"providers": map[string]any{
			"total":    stats.Total,
			"active":   stats.ActiveCount,
			"degraded": stats.DegradedCount,
			"offline":  stats.OfflineCount,
			"chains":   stats.Chains,
		},
		"facilitator": h.facilitator.Info(),
	})
}
