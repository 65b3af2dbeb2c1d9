package webhook_handlers

import (
	"context"

	"taxvault-webhook-layer/internal/application"
	"taxvault-webhook-layer/internal/domain"

	"github.com/rs/zerolog"
)

// RefundHandler handles refunds/create webhook events
type RefundHandler struct {
	reconciler *application.OrderReconciler
	logger     zerolog.Logger
}

// NewRefundHandler creates a new refund webhook handler
func NewRefundHandler(reconciler *application.OrderReconciler, logger zerolog.Logger) *RefundHandler {
	return &RefundHandler{
		reconciler: reconciler,
		logger:     logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *RefundHandler) CanHandle(topic string) bool {
	return topic == domain.TopicRefundsCreate
}

// Handle processes a refund webhook event
func (h *RefundHandler) Handle(ctx context.Context, event *domain.WebhookEvent, integration *domain.Integration) (domain.WriteOutcome, error) {
	refund, err := domain.ParseShopifyRefund(event.Payload)
	if err != nil {
		return "", err
	}

	h.logger.Debug().
		Str("shop", event.Shop).
		Int64("refundId", refund.ID).
		Int64("orderId", refund.OrderID).
		Msg("Processing refund webhook event")

	return h.reconciler.ReconcileRefund(ctx, integration, refund)
}
