package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/workflowai/gateway/core"
	"github.com/workflowai/gateway/httpapi"
	"github.com/workflowai/gateway/resilience"
	"github.com/workflowai/gateway/runcache"
	"github.com/workflowai/gateway/runner"
	"github.com/workflowai/gateway/store"
	"github.com/workflowai/gateway/telemetry"
	"github.com/workflowai/gateway/tools"
	"github.com/workflowai/gateway/version"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := core.NewConfig()
	if err != nil {
		return fmt.Errorf("gatewayd: load config: %w", err)
	}
	logger := telemetry.NewCoreLogger("gatewayd")
	cfg.SetLogger(logger)

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("gatewayd: GATEWAY_DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("gatewayd: open store: %w", err)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: cfg.Run.DefaultProviderTimeout}

	providers := buildProviders(cfg)
	if len(providers) == 0 {
		logger.Warn("no provider credentials configured; every run will fail at dispatch", nil)
	}

	metrics := resilience.NewTelemetryMetrics()
	cbConfig := func(provider string) *resilience.CircuitBreakerConfig {
		c := resilience.DefaultConfig()
		c.Name = "provider/" + provider
		c.SleepWindow = cfg.Resilience.CircuitTimeout
		c.HalfOpenRequests = cfg.Resilience.CircuitHalfOpenMax
		c.FailureThreshold = cfg.Resilience.CircuitThreshold
		c.Logger = logger
		c.Metrics = metrics
		return c
	}

	toolRegistry := tools.DefaultRegistry(tools.Credentials{
		BraveAPIKey:      os.Getenv("BRAVE_API_KEY"),
		PerplexityAPIKey: os.Getenv("PERPLEXITY_API_KEY"),
		PerplexityModel:  os.Getenv("PERPLEXITY_MODEL"),
	}, httpClient)

	r, err := runner.New(providers, toolRegistry, httpClient, cfg.Run, logger, cbConfig)
	if err != nil {
		return fmt.Errorf("gatewayd: build runner: %w", err)
	}

	resolver := version.NewResolver(st.Versions(), logger)

	var cache *runcache.Cache
	if cfg.Cache.Enabled && cfg.Cache.RedisURL != "" {
		redis, err := core.NewRedisClient(core.RedisClientOptions{
			RedisURL:  cfg.Cache.RedisURL,
			Namespace: "gateway:runcache",
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("gatewayd: connect redis: %w", err)
		}
		cache = runcache.New(redis, cfg.Cache.TTL)
	}

	feedbackSecret := os.Getenv("GATEWAY_FEEDBACK_SECRET")
	if feedbackSecret == "" && !cfg.Development.Mode {
		return fmt.Errorf("gatewayd: GATEWAY_FEEDBACK_SECRET is required outside development mode")
	}
	feedback := httpapi.NewFeedbackSigner([]byte(feedbackSecret), 24*time.Hour)

	var uploader store.Uploader = store.NewInMemoryUploader()

	app := &httpapi.App{
		Store:              st,
		Resolver:           resolver,
		Runner:             r,
		Tools:              toolRegistry,
		Cache:              cache,
		CachePolicyDefault: runcache.PolicyAuto,
		Uploader:           uploader,
		Feedback:           feedback,
		Publisher:          store.NoOpPublisher{},
		Logger:             logger,
		Config:             cfg,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gatewayd listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", nil)
	case err := <-errCh:
		return fmt.Errorf("gatewayd: serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
