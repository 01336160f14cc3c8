package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cedrospay/x402-gateway/internal/apikey"
	"github.com/cedrospay/x402-gateway/internal/batch"
	"github.com/cedrospay/x402-gateway/internal/circuitbreaker"
	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/cedrospay/x402-gateway/internal/facilitator"
	"github.com/cedrospay/x402-gateway/internal/logger"
	"github.com/cedrospay/x402-gateway/internal/metrics"
	"github.com/cedrospay/x402-gateway/internal/oracle"
	"github.com/cedrospay/x402-gateway/internal/provider"
	"github.com/cedrospay/x402-gateway/internal/ratelimit"
	"github.com/cedrospay/x402-gateway/internal/router"
	"github.com/cedrospay/x402-gateway/internal/versioning"
	"github.com/cedrospay/x402-gateway/internal/x402mw"
)

// Server wires the gateway's dependencies and HTTP router together.
type Server struct {
	handlers
	httpServer *http.Server
}

type handlers struct {
	cfg         *config.Config
	registry    *provider.Registry
	router      *router.Router
	facilitator *facilitator.Manager
	ledger      *batch.Ledger
	oracle      *oracle.Cached
	forwarder   *x402mw.Forwarder
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// New builds the gateway HTTP server with a fully configured router.
func New(cfg *config.Config, reg *provider.Registry, rt *router.Router, fm *facilitator.Manager, ledger *batch.Ledger, priceOracle *oracle.Cached, m *metrics.Metrics, appLogger zerolog.Logger, breaker *circuitbreaker.Manager) *Server {
	chiRouter := chi.NewRouter()

	s := &Server{
		handlers: handlers{
			cfg:         cfg,
			registry:    reg,
			router:      rt,
			facilitator: fm,
			ledger:      ledger,
			oracle:      priceOracle,
			forwarder:   x402mw.NewForwarder(nil, breaker),
			metrics:     m,
			logger:      appLogger,
		},
		httpServer: &http.Server{
			Addr:         cfg.Server.Address,
			ReadTimeout:  cfg.Server.ReadTimeout.Duration,
			WriteTimeout: cfg.Server.WriteTimeout.Duration,
			IdleTimeout:  cfg.Server.IdleTimeout.Duration,
			Handler:      chiRouter,
		},
	}

	ConfigureRouter(chiRouter, cfg, reg, rt, fm, ledger, priceOracle, m, appLogger, breaker)

	return s
}

// ConfigureRouter attaches the gateway's routes and middleware chain to an
// existing chi.Router, mirroring the teacher's ConfigureRouter: CORS →
// security headers → logging → request-id → recoverer → versioning →
// API-key → rate limiting → route groups with differentiated timeouts.
func ConfigureRouter(r chi.Router, cfg *config.Config, reg *provider.Registry, rt *router.Router, fm *facilitator.Manager, ledger *batch.Ledger, priceOracle *oracle.Cached, m *metrics.Metrics, appLogger zerolog.Logger, breaker *circuitbreaker.Manager) {
	if r == nil {
		return
	}

	h := handlers{
		cfg:         cfg,
		registry:    reg,
		router:      rt,
		facilitator: fm,
		ledger:      ledger,
		oracle:      priceOracle,
		forwarder:   x402mw.NewForwarder(nil, breaker),
		metrics:     m,
		logger:      appLogger,
	}

	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"x402-payment", "x402-batch"},
			AllowCredentials: false,
			MaxAge:           300,
		}).Handler)
	}

	r.Use(securityHeadersMiddleware)
	r.Use(logger.Middleware(appLogger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(versioning.Negotiation)

	apiKeyCfg := apikey.Config{
		Enabled: cfg.APIKey.Enabled,
		APIKeys: make(map[string]apikey.Tier),
	}
	for key, tierStr := range cfg.APIKey.Keys {
		apiKeyCfg.APIKeys[key] = apikey.Tier(tierStr)
	}
	r.Use(apikey.Middleware(apiKeyCfg))

	rateLimitCfg := ratelimit.Config{
		GlobalEnabled:   cfg.RateLimit.GlobalEnabled,
		GlobalLimit:     cfg.RateLimit.GlobalLimit,
		GlobalWindow:    cfg.RateLimit.GlobalWindow.Duration,
		PerPayerEnabled: cfg.RateLimit.PerPayerEnabled,
		PerPayerLimit:   cfg.RateLimit.PerPayerLimit,
		PerPayerWindow:  cfg.RateLimit.PerPayerWindow.Duration,
		PerIPEnabled:    cfg.RateLimit.PerIPEnabled,
		PerIPLimit:      cfg.RateLimit.PerIPLimit,
		PerIPWindow:     cfg.RateLimit.PerIPWindow.Duration,
		Metrics:         m,
	}
	r.Use(ratelimit.GlobalLimiter(rateLimitCfg))
	r.Use(ratelimit.PayerLimiter(rateLimitCfg))
	r.Use(ratelimit.IPLimiter(rateLimitCfg))

	prefix := cfg.Server.RoutePrefix

	// Lightweight discovery/inspection endpoints: short timeout, no payment.
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(5 * time.Second))
		gr.Get(prefix+"/health", h.health)
		gr.Get(prefix+"/providers", h.listProviders)
		gr.Get(prefix+"/providers/{id}", h.getProvider)
		gr.Get(prefix+"/facilitator", h.facilitatorInfo)
		gr.Get(prefix+"/batch-pricing", h.batchPricing)
		gr.Get(prefix+"/rpc-methods", h.rpcMethods)
		gr.With(adminMetricsAuth(cfg.Server.AdminMetricsAPIKey)).Handle(prefix+"/metrics", promhttp.Handler())
	})

	// Free passthrough proxy: short timeout, allowlisted read methods only.
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(10 * time.Second))
		gr.Post(prefix+"/chain-rpc-proxy", h.chainRPCProxy)
	})

	// Paid RPC endpoint: longer timeout for facilitator verify/settle and
	// upstream forwarding.
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(60 * time.Second))
		gr.With(x402mw.Middleware(x402mw.Deps{
			Router:      rt,
			Facilitator: fm,
			Ledger:      ledger,
			Oracle:      priceOracle,
			Gateway:     cfg.Gateway,
			Metrics:     m,
		})).Post(prefix+"/rpc", h.rpcForward)
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
