package ports

import (
	"context"

	"taxvault-webhook-layer/internal/domain"
)

// WebhookEventLog records verified inbound deliveries for audit and debugging
type WebhookEventLog interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}
