package webhook_handlers

import (
	"context"
	"fmt"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	integrations ports.IntegrationRepository
	logger       zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(integrations ports.IntegrationRepository, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		integrations: integrations,
		logger:       logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle disconnects the integration. The platform already revoked the token and
// removed the subscriptions, so no platform call is made and transactions are kept.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent, integration *domain.Integration) (domain.WriteOutcome, error) {
	integration.MarkUninstalled(time.Now().UTC())
	if err := h.integrations.Update(ctx, integration); err != nil {
		return "", fmt.Errorf("failed to disconnect integration: %w", err)
	}

	h.logger.Info().
		Str("shop", event.Shop).
		Str("integrationId", integration.ID).
		Msg("App uninstalled, integration disconnected")
	return domain.OutcomeUpdated, nil
}
