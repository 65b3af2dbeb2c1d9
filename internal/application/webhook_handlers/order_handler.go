package webhook_handlers

import (
	"context"

	"taxvault-webhook-layer/internal/application"
	"taxvault-webhook-layer/internal/domain"

	"github.com/rs/zerolog"
)

// OrderHandler handles order-related webhook events
type OrderHandler struct {
	reconciler *application.OrderReconciler
	logger     zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(reconciler *application.OrderReconciler, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == domain.TopicOrdersCreate ||
		topic == domain.TopicOrdersUpdated ||
		topic == domain.TopicOrdersCancelled
}

// Handle processes an order webhook event
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent, integration *domain.Integration) (domain.WriteOutcome, error) {
	order, err := domain.ParseShopifyOrder(event.Payload)
	if err != nil {
		return "", err
	}

	h.logger.Debug().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("orderId", order.ID).
		Str("financialStatus", order.FinancialStatus).
		Str("fulfillmentStatus", order.FulfillmentStatus).
		Msg("Processing order webhook event")

	switch event.Topic {
	case domain.TopicOrdersCreate:
		return h.reconciler.ReconcileCreate(ctx, integration, order)
	case domain.TopicOrdersUpdated:
		return h.reconciler.ReconcileUpdate(ctx, integration, order)
	case domain.TopicOrdersCancelled:
		return h.reconciler.ReconcileCancel(ctx, integration, order)
	}
	return domain.OutcomeIgnored, nil
}
