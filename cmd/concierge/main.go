package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/medspa-concierge/cmd/mainconfig"
	"github.com/wolfman30/medspa-concierge/internal/agent"
	"github.com/wolfman30/medspa-concierge/internal/api/router"
	"github.com/wolfman30/medspa-concierge/internal/appointments"
	"github.com/wolfman30/medspa-concierge/internal/availability"
	appconfig "github.com/wolfman30/medspa-concierge/internal/config"
	"github.com/wolfman30/medspa-concierge/internal/http/handlers"
	"github.com/wolfman30/medspa-concierge/internal/observability/metrics"
	"github.com/wolfman30/medspa-concierge/internal/policy"
	"github.com/wolfman30/medspa-concierge/internal/tools"
	"github.com/wolfman30/medspa-concierge/pkg/logging"
)

func main() {
	envErr := godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}
	logger.Info("starting medspa concierge",
		"env", cfg.Env,
		"port", cfg.Port,
		"storage", cfg.StorageBackend,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("concierge exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	a, err := newApp(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A turn may take several model calls.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

type app struct {
	handler      http.Handler
	appointments *appointments.Store
	close        func()
}

// newApp wires storage, policy, scheduling, the reasoning client and HTTP.
func newApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*app, error) {
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	backend, closeBackend, err := mainconfig.NewKVBackend(ctx, cfg, awsCfg, logger)
	if err != nil {
		return nil, err
	}

	policies := policy.NewStore(backend, cfg.PolicyKey, logger.With("component", "policy"))
	store := appointments.NewStore(
		appointments.WithBackend(backend),
		appointments.WithPlanner(availability.NewPlanner(policies)),
		appointments.WithProviderResolver(policy.ProviderResolver(policies)),
		appointments.WithLogger(logger.With("component", "appointments")),
	)
	if err := store.Load(ctx); err != nil {
		closeBackend()
		return nil, err
	}

	client, closeClient, err := mainconfig.NewLLMClient(ctx, cfg, awsCfg, logger.With("component", "llm"))
	if err != nil {
		closeBackend()
		return nil, err
	}

	agentMetrics := metrics.NewAgentMetrics(reg)
	dispatcher := tools.NewDispatcher(store, logger.With("component", "tools"))
	loop := agent.NewLoop(client, dispatcher, policies, logger.With("component", "agent"),
		agent.WithMaxIterations(cfg.LLMMaxIterations),
		agent.WithCallTimeout(cfg.LLMCallTimeout),
		agent.WithMaxTokens(cfg.LLMMaxTokens),
		agent.WithMetrics(agentMetrics),
	)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are disabled")
	}
	handler := router.New(&router.Config{
		Logger:                 logger,
		Messages:               handlers.NewMessagesHandler(loop, logger),
		AdminPolicy:            handlers.NewAdminPolicyHandler(policies, logger),
		AdminAppointments:      handlers.NewAdminAppointmentsHandler(store, logger),
		AdminAuthSecret:        cfg.AdminJWTSecret,
		MetricsHandler:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		MessagesRateLimitRPS:   cfg.MessagesRateLimitRPS,
		MessagesRateLimitBurst: cfg.MessagesRateLimitBurst,
		CORSAllowedOrigins:     cfg.CORSAllowedOrigins,
	})

	return &app{
		handler:      handler,
		appointments: store,
		close: func() {
			closeClient()
			closeBackend()
		},
	}, nil
}
