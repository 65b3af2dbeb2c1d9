package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookCallbackPath is the unified callback every subscription points at
const WebhookCallbackPath = "/webhooks/shopify"

// WebhookManager converges platform-side subscriptions of an integration to the
// required topic set. It never caches subscription state: every pass re-lists.
type WebhookManager struct {
	integrations ports.IntegrationRepository
	registry     ports.WebhookRegistry
	tokens       ports.TokenCipher
	health       ports.HealthStore
	metrics      ports.Metrics
	callbackURL  string
	logger       zerolog.Logger
	now          func() time.Time
}

// NewWebhookManager creates a new webhook manager. appURL is the public base URL
// the platform delivers to.
func NewWebhookManager(
	integrations ports.IntegrationRepository,
	registry ports.WebhookRegistry,
	tokens ports.TokenCipher,
	health ports.HealthStore,
	metrics ports.Metrics,
	appURL string,
	logger zerolog.Logger,
) *WebhookManager {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &WebhookManager{
		integrations: integrations,
		registry:     registry,
		tokens:       tokens,
		health:       health,
		metrics:      metrics,
		callbackURL:  strings.TrimRight(appURL, "/") + WebhookCallbackPath,
		logger:       logger,
		now:          time.Now,
	}
}

// CallbackURL returns the address every required subscription must point at
func (m *WebhookManager) CallbackURL() string {
	return m.callbackURL
}

// EnsureWebhookHealth lists the live subscriptions, creates the missing topics and
// flags the misconfigured ones. Platform failures are recorded on the returned
// record; an error is returned only when the integration cannot be loaded or the
// record cannot be stored.
func (m *WebhookManager) EnsureWebhookHealth(ctx context.Context, integrationID string) (*domain.HealthRecord, error) {
	integration, token, err := m.loadIntegration(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	shop := integration.Credentials.Shop
	record := &domain.HealthRecord{
		IntegrationID: integration.ID,
		CheckedAt:     m.now().UTC(),
	}

	existing, err := m.registry.List(ctx, shop, token)
	if err != nil {
		m.logger.Error().
			Err(err).
			Str("integrationId", integration.ID).
			Str("shop", shop).
			Msg("Failed to list webhook subscriptions")
		record.Error = err.Error()
		for _, topic := range domain.RequiredTopics {
			record.Topics = append(record.Topics, domain.TopicHealth{
				Topic:  topic,
				Status: domain.TopicMissing,
				Detail: "subscriptions could not be listed",
			})
		}
	} else {
		byTopic := make(map[string][]domain.WebhookSubscription)
		for _, sub := range existing {
			byTopic[sub.Topic] = append(byTopic[sub.Topic], sub)
		}
		for _, topic := range domain.RequiredTopics {
			record.Topics = append(record.Topics, m.convergeTopic(ctx, integration, token, topic, byTopic[topic]))
		}
	}

	record.OverallStatus = domain.DeriveOverallStatus(record.Topics)
	if err := m.recordFailures(ctx, record); err != nil {
		return nil, err
	}
	if err := m.health.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save health record: %w", err)
	}

	m.metrics.HealthCheck(record.IntegrationID, string(record.OverallStatus), record.ConsecutiveFailures)
	m.logger.Info().
		Str("integrationId", integration.ID).
		Str("shop", shop).
		Str("status", string(record.OverallStatus)).
		Int64("consecutiveFailures", record.ConsecutiveFailures).
		Msg("Webhook health checked")

	return record, nil
}

// convergeTopic decides the state of one topic from its current subscriptions
func (m *WebhookManager) convergeTopic(
	ctx context.Context,
	integration *domain.Integration,
	token string,
	topic string,
	subs []domain.WebhookSubscription,
) domain.TopicHealth {
	health := domain.TopicHealth{Topic: topic}
	for _, sub := range subs {
		health.SubscriptionIDs = append(health.SubscriptionIDs, sub.ID)
	}

	if len(subs) == 0 {
		created, err := m.registry.Create(ctx, integration.Credentials.Shop, token, topic, m.callbackURL)
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("integrationId", integration.ID).
				Str("topic", topic).
				Msg("Failed to create webhook subscription")
			health.Status = domain.TopicMissing
			health.Detail = err.Error()
			return health
		}
		health.Status = domain.TopicHealthy
		health.Created = true
		health.SubscriptionIDs = []string{created.ID}
		return health
	}

	correct := 0
	for _, sub := range subs {
		if sub.Address == m.callbackURL {
			correct++
		}
	}
	switch {
	case correct == 1 && len(subs) == 1:
		health.Status = domain.TopicHealthy
	case correct == 0:
		health.Status = domain.TopicMisconfigured
		health.Detail = "subscription points at " + subs[0].Address
	default:
		health.Status = domain.TopicMisconfigured
		health.Detail = fmt.Sprintf("%d subscriptions registered for topic", len(subs))
	}
	if health.Status == domain.TopicMisconfigured {
		m.logger.Warn().
			Str("integrationId", integration.ID).
			Str("topic", topic).
			Str("detail", health.Detail).
			Msg("Webhook subscription misconfigured")
	}
	return health
}

func (m *WebhookManager) recordFailures(ctx context.Context, record *domain.HealthRecord) error {
	if record.OverallStatus == domain.HealthHealthy {
		if err := m.health.ResetFailures(ctx, record.IntegrationID); err != nil {
			return fmt.Errorf("failed to reset failure counter: %w", err)
		}
		record.ConsecutiveFailures = 0
		return nil
	}
	n, err := m.health.IncrementFailures(ctx, record.IntegrationID)
	if err != nil {
		return fmt.Errorf("failed to increment failure counter: %w", err)
	}
	record.ConsecutiveFailures = n
	return nil
}

// RunGlobalHealthCheck converges every connected Shopify integration in turn. One
// integration failing is logged and does not stop the run.
func (m *WebhookManager) RunGlobalHealthCheck(ctx context.Context) ([]*domain.HealthRecord, error) {
	integrations, err := m.integrations.ListByStatus(ctx, domain.PlatformShopify, domain.IntegrationStatusConnected)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected integrations: %w", err)
	}

	records := make([]*domain.HealthRecord, 0, len(integrations))
	for _, integration := range integrations {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		record, err := m.EnsureWebhookHealth(ctx, integration.ID)
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("integrationId", integration.ID).
				Msg("Webhook health check failed")
			record, err = m.recordCheckError(ctx, integration.ID, err)
			if err != nil {
				m.logger.Error().
					Err(err).
					Str("integrationId", integration.ID).
					Msg("Failed to record webhook health failure")
				continue
			}
		}
		records = append(records, record)
	}

	m.logger.Info().
		Int("integrations", len(integrations)).
		Int("checked", len(records)).
		Msg("Global webhook health check completed")
	return records, nil
}

// recordCheckError stores a failed record for an integration whose check could
// not run, so the failure counter keeps climbing until someone intervenes
func (m *WebhookManager) recordCheckError(ctx context.Context, integrationID string, cause error) (*domain.HealthRecord, error) {
	record := &domain.HealthRecord{
		IntegrationID: integrationID,
		OverallStatus: domain.HealthFailed,
		CheckedAt:     m.now().UTC(),
		Error:         cause.Error(),
	}
	if err := m.recordFailures(ctx, record); err != nil {
		return nil, err
	}
	if err := m.health.SaveRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save health record: %w", err)
	}
	m.metrics.HealthCheck(record.IntegrationID, string(record.OverallStatus), record.ConsecutiveFailures)
	return record, nil
}

// SetupWebhooks runs the convergence after a connect and marks the integration
// CONNECTED unless a required topic is still missing
func (m *WebhookManager) SetupWebhooks(ctx context.Context, integrationID string) (*domain.HealthRecord, error) {
	record, err := m.EnsureWebhookHealth(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if record.OverallStatus == domain.HealthFailed {
		return record, nil
	}

	integration, err := m.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil {
		return nil, domain.ErrIntegrationNotFound
	}
	if integration.Status != domain.IntegrationStatusConnected {
		integration.Status = domain.IntegrationStatusConnected
		integration.UpdatedAt = m.now().UTC()
		if err := m.integrations.Update(ctx, integration); err != nil {
			return nil, fmt.Errorf("failed to update integration: %w", err)
		}
	}
	return record, nil
}

// LastHealth returns the last stored record; nil when the integration was never checked
func (m *WebhookManager) LastHealth(ctx context.Context, integrationID string) (*domain.HealthRecord, error) {
	record, err := m.health.GetRecord(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get health record: %w", err)
	}
	return record, nil
}

// ListSubscriptions returns the live subscriptions of an integration's shop
func (m *WebhookManager) ListSubscriptions(ctx context.Context, integrationID string) ([]domain.WebhookSubscription, error) {
	integration, token, err := m.loadIntegration(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	subs, err := m.registry.List(ctx, integration.Credentials.Shop, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes one subscription. It is the manual way out of the
// misconfigured state.
func (m *WebhookManager) DeleteSubscription(ctx context.Context, integrationID, subscriptionID string) error {
	integration, token, err := m.loadIntegration(ctx, integrationID)
	if err != nil {
		return err
	}
	if err := m.registry.Delete(ctx, integration.Credentials.Shop, token, subscriptionID); err != nil {
		return fmt.Errorf("failed to delete webhook subscription: %w", err)
	}
	m.logger.Info().
		Str("integrationId", integrationID).
		Str("subscriptionId", subscriptionID).
		Msg("Deleted webhook subscription")
	return nil
}

// CleanupWebhooks deletes every subscription pointing at this service. Failures are
// logged per subscription and the number removed is returned.
func (m *WebhookManager) CleanupWebhooks(ctx context.Context, integration *domain.Integration) int {
	if integration.Credentials.AccessToken == "" {
		return 0
	}
	token, err := m.tokens.DecryptToken(integration.Credentials.AccessToken)
	if err != nil {
		m.logger.Warn().Err(err).Str("integrationId", integration.ID).Msg("Failed to decrypt token for cleanup")
		return 0
	}
	shop := integration.Credentials.Shop
	subs, err := m.registry.List(ctx, shop, token)
	if err != nil {
		m.logger.Warn().Err(err).Str("integrationId", integration.ID).Msg("Failed to list webhooks for cleanup")
		return 0
	}

	removed := 0
	for _, sub := range subs {
		if sub.Address != m.callbackURL {
			continue
		}
		if err := m.registry.Delete(ctx, shop, token, sub.ID); err != nil {
			m.logger.Warn().
				Err(err).
				Str("integrationId", integration.ID).
				Str("subscriptionId", sub.ID).
				Msg("Failed to delete webhook during cleanup")
			continue
		}
		removed++
	}
	return removed
}

// loadIntegration returns a live integration and its decrypted access token
func (m *WebhookManager) loadIntegration(ctx context.Context, integrationID string) (*domain.Integration, string, error) {
	integration, err := m.integrations.GetByID(ctx, integrationID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil {
		return nil, "", domain.ErrIntegrationNotFound
	}
	if !integration.IsActive() {
		return nil, "", domain.ErrIntegrationDisconnected
	}
	token, err := m.tokens.DecryptToken(integration.Credentials.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return integration, token, nil
}

type nopMetrics struct{}

func (nopMetrics) WebhookEvent(string, string)       {}
func (nopMetrics) SignatureFailure()                 {}
func (nopMetrics) HealthCheck(string, string, int64) {}
func (nopMetrics) PlatformRequest(string, string)    {}
func (nopMetrics) ImportOrder(string)                {}
