package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taxvault-webhook-layer/internal/bootstrap"
	"taxvault-webhook-layer/internal/config"
	apiinfra "taxvault-webhook-layer/internal/infrastructure/api"
	shopifyinfra "taxvault-webhook-layer/internal/infrastructure/shopify"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		bootLogger.Warn().Msg(".env file not found")
	}

	cfg, err := config.Read()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("Failed to read configuration")
	}
	logger := bootstrap.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	container, err := bootstrap.New(ctx, cfg, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer container.Close(context.Background())

	if cfg.AdminAPIToken == "" {
		logger.Warn().Msg("ADMIN_API_TOKEN is not set; admin API is disabled")
	}

	router := apiinfra.NewRouter(apiinfra.RouterConfig{
		Webhooks:    apiinfra.NewWebhookHandler(container.Ingestion, shopifyinfra.NewWebhookVerifier(cfg.Shopify.APISecret), container.Metrics, logger),
		Admin:       apiinfra.NewAdminHandler(container.Integrations, container.Webhooks, container.Imports, logger),
		AdminToken:  cfg.AdminAPIToken,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		SwaggerFile: cfg.SwaggerFile,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("callbackUrl", container.Webhooks.CallbackURL()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
