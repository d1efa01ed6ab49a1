package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-jewellery/internal/app"
	"github.com/noah-isme/backend-jewellery/internal/config"
	"github.com/noah-isme/backend-jewellery/internal/health"
	"github.com/noah-isme/backend-jewellery/internal/obs"
	"github.com/noah-isme/backend-jewellery/internal/resilience"
)

const drainDelay = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().
		Str("env", cfg.AppEnv).Str("service", cfg.Obs.ServiceName).Logger()

	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)
	httpMetrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)

	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       cfg.Obs.TracingEnabled,
		ServiceName:   cfg.Obs.ServiceName,
		Endpoint:      cfg.Obs.TracingEndpoint,
		SamplingRatio: cfg.Obs.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		shutdownTracer = func(context.Context) error { return nil }
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error().Err(err).Msg("shutdown tracer")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deps, err := app.New(bootCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	if err := deps.WarmGoldRate(ctx); err != nil {
		logger.Warn().Err(err).Msg("queue gold rate refresh")
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr(),
		Handler: deps.Router(app.RouterOptions{
			Metrics:     httpMetrics,
			Tracing:     cfg.Obs.TracingEnabled,
			EnablePprof: envBool("OBS_ENABLE_PPROF"),
			PprofUser:   os.Getenv("SECURE_PPROF_BASIC_AUTH_USER"),
			PprofPass:   os.Getenv("SECURE_PPROF_BASIC_AUTH_PASS"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown requested, draining")
	health.SetReady(false)
	time.Sleep(drainDelay)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "t", "true", "yes", "on":
		return true
	default:
		return false
	}
}
