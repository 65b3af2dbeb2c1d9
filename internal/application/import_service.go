package application

import (
	"context"
	"fmt"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"

	"github.com/rs/zerolog"
)

// importPageSize is the number of orders requested per page
const importPageSize = 250

// ImportService replays historical orders through the same reconciliation the
// orders/create webhook uses
type ImportService struct {
	integrations ports.IntegrationRepository
	orders       ports.ShopifyClient
	tokens       ports.TokenCipher
	reconciler   *OrderReconciler
	progress     ports.ImportProgressStore
	metrics      ports.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

// NewImportService creates a new import service
func NewImportService(
	integrations ports.IntegrationRepository,
	orders ports.ShopifyClient,
	tokens ports.TokenCipher,
	reconciler *OrderReconciler,
	progress ports.ImportProgressStore,
	metrics ports.Metrics,
	logger zerolog.Logger,
) *ImportService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ImportService{
		integrations: integrations,
		orders:       orders,
		tokens:       tokens,
		reconciler:   reconciler,
		progress:     progress,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Import reconciles every order created in [from, to]. A failing order is recorded
// on the progress and skipped. The returned progress is also stored for polling.
func (s *ImportService) Import(ctx context.Context, integrationID string, from, to time.Time) (*domain.ImportProgress, error) {
	if !from.Before(to) {
		return nil, domain.NewValidationError("from", "from must be before to")
	}

	integration, err := s.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil {
		return nil, domain.ErrIntegrationNotFound
	}
	if !integration.IsActive() {
		return nil, domain.ErrIntegrationDisconnected
	}
	if integration.SyncStatus == domain.SyncStatusSyncing {
		return nil, domain.ErrImportRunning
	}

	token, err := s.tokens.DecryptToken(integration.Credentials.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	integration.SyncStatus = domain.SyncStatusSyncing
	integration.SyncError = ""
	integration.UpdatedAt = s.now().UTC()
	if err := s.integrations.Update(ctx, integration); err != nil {
		return nil, fmt.Errorf("failed to update integration: %w", err)
	}

	progress := &domain.ImportProgress{
		IntegrationID: integrationID,
		State:         domain.ImportRunning,
		From:          from.UTC(),
		To:            to.UTC(),
		StartedAt:     s.now().UTC(),
	}
	s.save(ctx, progress)

	runErr := s.run(ctx, integration, token, progress)

	finished := s.now().UTC()
	progress.FinishedAt = &finished
	integration.UpdatedAt = finished
	if runErr != nil {
		progress.State = domain.ImportFailed
		progress.Errors = append(progress.Errors, runErr.Error())
		integration.SyncStatus = domain.SyncStatusError
		integration.SyncError = runErr.Error()
		s.logger.Error().Err(runErr).Str("integrationId", integrationID).Msg("Historical import failed")
	} else {
		progress.State = domain.ImportCompleted
		integration.SyncStatus = domain.SyncStatusIdle
		integration.LastSyncAt = &finished
	}
	s.save(ctx, progress)

	// the import may outlive the request context, so the final state is written regardless
	if err := s.integrations.Update(context.WithoutCancel(ctx), integration); err != nil {
		return progress, fmt.Errorf("failed to update integration: %w", err)
	}

	s.logger.Info().
		Str("integrationId", integrationID).
		Str("state", string(progress.State)).
		Int("total", progress.Total).
		Int("processed", progress.Processed).
		Int("failed", progress.Failed).
		Msg("Historical import finished")
	return progress, nil
}

func (s *ImportService) run(ctx context.Context, integration *domain.Integration, token string, progress *domain.ImportProgress) error {
	shop := integration.Credentials.Shop
	query := ports.OrderQuery{
		CreatedAtMin: progress.From,
		CreatedAtMax: progress.To,
		Limit:        importPageSize,
	}

	total, err := s.orders.CountOrders(ctx, shop, token, query)
	if err != nil {
		return fmt.Errorf("failed to count orders: %w", err)
	}
	progress.Total = total
	s.save(ctx, progress)

	for {
		page, err := s.orders.ListOrders(ctx, shop, token, query)
		if err != nil {
			return fmt.Errorf("failed to list orders: %w", err)
		}
		for _, failure := range page.Failures {
			s.recordFailure(integration, progress, failure.ExternalID, failure.Err)
			s.save(ctx, progress)
		}
		for i := range page.Orders {
			order := &page.Orders[i]
			if _, err := s.reconciler.ReconcileCreate(ctx, integration, order); err != nil {
				s.recordFailure(integration, progress, order.ExternalID(), err)
			} else {
				s.metrics.ImportOrder("ok")
				progress.Processed++
			}
			s.save(ctx, progress)
		}
		if page.NextCursor == "" {
			break
		}
		query.Cursor = page.NextCursor
	}

	// the count is a snapshot; orders created while paging still count as processed
	if progress.Processed > progress.Total {
		progress.Total = progress.Processed
	}
	return nil
}

// recordFailure counts an order that could not be imported as processed and failed
func (s *ImportService) recordFailure(integration *domain.Integration, progress *domain.ImportProgress, externalID string, err error) {
	progress.RecordFailure(fmt.Sprintf("order %s: %v", externalID, err))
	progress.Processed++
	s.metrics.ImportOrder("failed")
	s.logger.Warn().
		Err(err).
		Str("integrationId", integration.ID).
		Str("externalId", externalID).
		Msg("Failed to import order")
}

// Progress returns the stored progress of the last import; nil when none ran
func (s *ImportService) Progress(ctx context.Context, integrationID string) (*domain.ImportProgress, error) {
	progress, err := s.progress.Get(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get import progress: %w", err)
	}
	return progress, nil
}

func (s *ImportService) save(ctx context.Context, progress *domain.ImportProgress) {
	if err := s.progress.Save(context.WithoutCancel(ctx), progress); err != nil {
		s.logger.Warn().Err(err).Str("integrationId", progress.IntegrationID).Msg("Failed to save import progress")
	}
}
