package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taxvault-webhook-layer/internal/bootstrap"
	"taxvault-webhook-layer/internal/config"
	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/infrastructure/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func setup(ctx context.Context, reg *prometheus.Registry) (*bootstrap.Container, config.Config, zerolog.Logger, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, config.Config{}, zerolog.Nop(), err
	}
	logger := bootstrap.NewLogger(cfg.LogLevel).With().Str("component", "worker").Logger()

	container, err := bootstrap.New(ctx, cfg, reg, logger)
	if err != nil {
		return nil, cfg, logger, err
	}
	return container, cfg, logger, nil
}

func healthCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Verify and repair webhook subscriptions of every connected integration once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, _, logger, err := setup(ctx, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer container.Close(context.Background())

			records, err := container.Webhooks.RunGlobalHealthCheck(ctx)
			if err != nil {
				return err
			}
			logSummary(logger, records)
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the periodic webhook health check until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg := prometheus.NewRegistry()
			container, cfg, logger, err := setup(ctx, reg)
			if err != nil {
				return err
			}
			defer container.Close(context.Background())

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 10 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error().Err(err).Msg("Metrics server failed")
					}
				}()
				defer srv.Close()
			}

			s := scheduler.New(ctx, logger)
			err = s.Register(scheduler.Task{
				Name:     "webhook-health",
				Schedule: cfg.HealthSchedule,
				Handler: func(ctx context.Context) error {
					records, err := container.Webhooks.RunGlobalHealthCheck(ctx)
					if err != nil {
						return err
					}
					logSummary(logger, records)
					return nil
				},
			})
			if err != nil {
				return err
			}

			logger.Info().Str("schedule", cfg.HealthSchedule).Msg("Starting scheduler")
			s.Run(ctx)
			logger.Info().Msg("Scheduler stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on, e.g. :9090")
	return cmd
}

func importCmd() *cobra.Command {
	var integrationID, fromRaw, toRaw string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import historical orders of one integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := importWindow(fromRaw, toRaw, time.Now().UTC())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			container, _, logger, err := setup(ctx, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer container.Close(context.Background())

			progress, err := container.Imports.Import(ctx, integrationID, from, to)
			if err != nil {
				return err
			}
			logger.Info().
				Str("integrationId", integrationID).
				Str("state", string(progress.State)).
				Int("total", progress.Total).
				Int("processed", progress.Processed).
				Int("failed", progress.Failed).
				Msg("Import finished")
			if progress.State == domain.ImportFailed {
				if len(progress.Errors) == 0 {
					return errors.New("import failed")
				}
				return fmt.Errorf("import failed: %s", progress.Errors[len(progress.Errors)-1])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&integrationID, "integration", "", "integration id")
	cmd.Flags().StringVar(&fromRaw, "from", "", "first day to include (YYYY-MM-DD), defaults to 60 days before --to")
	cmd.Flags().StringVar(&toRaw, "to", "", "last day to include (YYYY-MM-DD), defaults to now")
	_ = cmd.MarkFlagRequired("integration")
	return cmd
}

// importWindow resolves the --from and --to days into the import range. Both
// days are whole: to runs through the last instant of its day.
func importWindow(fromRaw, toRaw string, now time.Time) (time.Time, time.Time, error) {
	to := now
	if toRaw != "" {
		parsed, err := time.Parse(dateLayout, toRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
		to = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	from := to.AddDate(0, 0, -60)
	if fromRaw != "" {
		parsed, err := time.Parse(dateLayout, fromRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
		from = parsed
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s is after --to", from.Format(dateLayout))
	}
	return from, to, nil
}

func logSummary(logger zerolog.Logger, records []*domain.HealthRecord) {
	counts := map[domain.HealthStatus]int{}
	for _, r := range records {
		counts[r.OverallStatus]++
	}
	logger.Info().
		Int("integrations", len(records)).
		Int("healthy", counts[domain.HealthHealthy]).
		Int("degraded", counts[domain.HealthDegraded]).
		Int("failed", counts[domain.HealthFailed]).
		Msg("Webhook health check finished")
}
