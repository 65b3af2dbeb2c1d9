package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	"taxvault-webhook-layer/internal/application"
	"taxvault-webhook-layer/internal/application/webhook_handlers"
	"taxvault-webhook-layer/internal/config"
	"taxvault-webhook-layer/internal/infrastructure/encryption"
	"taxvault-webhook-layer/internal/infrastructure/metrics"
	redisstore "taxvault-webhook-layer/internal/infrastructure/redis"
	"taxvault-webhook-layer/internal/infrastructure/repository"
	shopifyinfra "taxvault-webhook-layer/internal/infrastructure/shopify"
	"taxvault-webhook-layer/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewLogger builds the process logger at level (debug, info, warn, error)
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

// Container holds the constructed services of one process
type Container struct {
	Metrics      *metrics.Metrics
	Integrations *application.IntegrationService
	Webhooks     *application.WebhookManager
	Imports      *application.ImportService
	Ingestion    *application.WebhookService

	closers []func(context.Context) error
}

type stores struct {
	integrations ports.IntegrationRepository
	transactions ports.TransactionRepository
	eventLog     ports.WebhookEventLog
}

// New connects storage and Redis and wires every service. reg receives the
// service metrics.
func New(ctx context.Context, cfg config.Config, reg prometheus.Registerer, logger zerolog.Logger) (*Container, error) {
	c := &Container{Metrics: metrics.New(reg)}

	st, err := c.openStorage(ctx, cfg, logger)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}

	rdb, err := redisstore.New(ctx, redisstore.Config{URL: cfg.RedisURL})
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })

	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("failed to initialize encryption service: %w", err)
	}
	tokens := shopifyinfra.NewTokenManager(encryptionService, logger)

	shopifyClient := shopifyinfra.NewClientWithOptions(cfg.Shopify.APIKey, cfg.Shopify.APISecret, shopifyinfra.Options{
		APIVersion:  cfg.Shopify.APIVersion,
		Timeout:     cfg.PlatformTimeout,
		RateLimiter: shopifyinfra.NewRateLimiter(logger),
		Metrics:     c.Metrics,
		Logger:      logger,
	})

	reconciler := application.NewOrderReconciler(st.transactions, logger)
	c.Webhooks = application.NewWebhookManager(
		st.integrations,
		shopifyClient,
		tokens,
		redisstore.NewHealthStore(rdb),
		c.Metrics,
		cfg.AppURL,
		logger,
	)
	c.Integrations = application.NewIntegrationService(st.integrations, st.transactions, shopifyClient, tokens, c.Webhooks, logger)
	c.Imports = application.NewImportService(
		st.integrations,
		shopifyClient,
		tokens,
		reconciler,
		redisstore.NewImportProgressStore(rdb),
		c.Metrics,
		logger,
	)
	c.Ingestion = application.NewWebhookService(
		st.integrations,
		st.eventLog,
		c.Metrics,
		logger,
		webhook_handlers.NewOrderHandler(reconciler, logger),
		webhook_handlers.NewRefundHandler(reconciler, logger),
		webhook_handlers.NewAppUninstalledHandler(st.integrations, logger),
	)
	return c, nil
}

func (c *Container) openStorage(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get postgres handle: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return sqlDB.Close() })
		if err := repository.AutoMigrate(db); err != nil {
			return nil, err
		}
		logger.Info().Msg("Using postgres storage")
		return &stores{
			integrations: repository.NewSQLIntegrationRepository(db),
			transactions: repository.NewSQLTransactionRepository(db),
			eventLog:     repository.NewSQLWebhookEventLog(db),
		}, nil

	default:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		c.closers = append(c.closers, client.Disconnect)
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Using MongoDB storage")
		return &stores{
			integrations: repository.NewMongoIntegrationRepository(db),
			transactions: repository.NewMongoTransactionRepository(db),
			eventLog:     repository.NewMongoWebhookEventLog(db),
		}, nil
	}
}

// Close releases connections in reverse order of creation
func (c *Container) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i](ctx)
	}
	c.closers = nil
}
