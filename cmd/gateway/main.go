package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/cedrospay/x402-gateway/internal/batch"
	"github.com/cedrospay/x402-gateway/internal/circuitbreaker"
	"github.com/cedrospay/x402-gateway/internal/config"
	"github.com/cedrospay/x402-gateway/internal/facilitator"
	"github.com/cedrospay/x402-gateway/internal/gateway"
	"github.com/cedrospay/x402-gateway/internal/httputil"
	"github.com/cedrospay/x402-gateway/internal/lifecycle"
	"github.com/cedrospay/x402-gateway/internal/logger"
	"github.com/cedrospay/x402-gateway/internal/metrics"
	"github.com/cedrospay/x402-gateway/internal/oracle"
	"github.com/cedrospay/x402-gateway/internal/provider"
	"github.com/cedrospay/x402-gateway/internal/router"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to gateway config file")
	flag.Parse()

	// .env is optional: production deploys set GATEWAY_SIGNER_KEY and the
	// facilitator API keys directly in the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway.config_load_failed")
	}

	appLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Service:     "cedros-gateway",
		Environment: cfg.Logging.Environment,
	})

	resources := lifecycle.NewManager()
	defer resources.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	registry := provider.NewRegistry(cfg.HealthCheck.Timeout.Duration, m)
	for id, pc := range cfg.Providers {
		if pc.ID == "" {
			pc.ID = id
		}
		p := provider.Provider{
			ID:             pc.ID,
			Name:           pc.Name,
			Chains:         pc.Chains,
			Endpoint:       pc.Endpoint,
			HealthCheckURL: pc.HealthCheckURL,
			CostPerCall:    pc.CostPerCall,
			Priority:       pc.Priority,
			MaxLatencyMs:   pc.MaxLatencyMs,
			Status:         provider.StatusActive,
		}
		if pc.BatchCalls > 0 {
			p.BatchCost = &provider.BatchCost{Calls: int64(pc.BatchCalls), Price: pc.BatchPrice}
		}
		if err := registry.Register(p); err != nil {
			appLogger.Fatal().Err(err).Str("provider", id).Msg("gateway.provider_register_failed")
		}
	}

	healthCtx, cancelHealth := context.WithCancel(context.Background())
	registry.StartHealthChecks(healthCtx, cfg.HealthCheck.Interval.Duration)
	resources.RegisterFunc("health-checks", func() error {
		cancelHealth()
		registry.StopHealthChecks()
		return nil
	})

	rt := router.New(registry, m)

	breaker := circuitbreaker.NewManagerFromConfig(cfg.CircuitBreaker)

	var selfHosted *facilitator.SelfHosted
	if cfg.Facilitator.Type == "self-hosted" || cfg.Facilitator.Type == "auto" {
		selfHosted, err = facilitator.NewSelfHosted(cfg.Facilitator.SelfHosted, nil, m)
		if err != nil {
			appLogger.Warn().Err(err).Msg("gateway.self_hosted_facilitator_unavailable")
			selfHosted = nil
		}
	}

	fm, err := facilitator.NewManager(cfg.Facilitator, selfHosted, breaker)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("gateway.facilitator_manager_init_failed")
	}

	ledger := batch.New(cfg.Batch.TTL.Duration, m)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	ledger.StartSweep(sweepCtx, cfg.Batch.SweepInterval.Duration)
	resources.RegisterFunc("batch-sweep", func() error {
		cancelSweep()
		ledger.StopSweep()
		return nil
	})

	priceSource := oracle.NewHTTPSource(cfg.Oracle.SourceURL, httputil.NewClient(cfg.Oracle.RequestTimeout.Duration))
	priceOracle := oracle.NewCached(priceSource, cfg.Oracle.CacheTTL.Duration, cfg.Oracle.StaleTTL.Duration, cfg.Oracle.StaticFallback, m, breaker)

	srv := gateway.New(cfg, registry, rt, fm, ledger, priceOracle, m, appLogger, breaker)
	resources.RegisterFunc("http-server", func() error {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	appLogger.Info().Str("address", cfg.Server.Address).Msg("gateway.starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal().Err(err).Msg("gateway.server_error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info().Msg("gateway.shutting_down")
}
