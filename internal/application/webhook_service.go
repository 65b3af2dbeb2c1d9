package application

import (
	"context"
	"fmt"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WebhookHandler applies one family of verified webhook topics to an integration
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent, integration *domain.Integration) (domain.WriteOutcome, error)
}

// WebhookService routes verified deliveries to the handler of their topic, once per
// active integration of the shop
type WebhookService struct {
	integrations ports.IntegrationRepository
	eventLog     ports.WebhookEventLog
	handlers     []WebhookHandler
	metrics      ports.Metrics
	logger       zerolog.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	integrations ports.IntegrationRepository,
	eventLog ports.WebhookEventLog,
	metrics ports.Metrics,
	logger zerolog.Logger,
	handlers ...WebhookHandler,
) *WebhookService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &WebhookService{
		integrations: integrations,
		eventLog:     eventLog,
		handlers:     handlers,
		metrics:      metrics,
		logger:       logger,
	}
}

// ProcessWebhook applies a delivery whose signature has already been verified.
// Unknown shops and topics are acknowledged as ignored so the platform stops
// redelivering them. Storage failures are returned for the caller to answer 5xx.
func (s *WebhookService) ProcessWebhook(ctx context.Context, topic, shop, webhookID string, payload []byte) (domain.WriteOutcome, error) {
	event := &domain.WebhookEvent{
		ID:         uuid.NewString(),
		WebhookID:  webhookID,
		Platform:   domain.PlatformShopify,
		Topic:      topic,
		Shop:       shop,
		Payload:    payload,
		Verified:   true,
		ReceivedAt: time.Now().UTC(),
	}

	outcome, err := s.dispatch(ctx, event)
	if err != nil {
		s.metrics.WebhookEvent(topic, "error")
		s.logger.Error().
			Err(err).
			Str("topic", topic).
			Str("shop", shop).
			Str("webhookId", webhookID).
			Msg("Failed to process webhook")
		return "", err
	}

	event.Outcome = string(outcome)
	s.metrics.WebhookEvent(topic, event.Outcome)
	if err := s.eventLog.LogWebhook(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("topic", topic).Str("shop", shop).Msg("Failed to log webhook")
	}

	s.logger.Info().
		Str("topic", topic).
		Str("shop", shop).
		Str("webhookId", webhookID).
		Str("outcome", event.Outcome).
		Msg("Webhook processed")
	return outcome, nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *domain.WebhookEvent) (domain.WriteOutcome, error) {
	handler := s.handlerFor(event.Topic)
	if handler == nil {
		s.logger.Warn().Str("topic", event.Topic).Str("shop", event.Shop).Msg("No handler for webhook topic")
		return domain.OutcomeIgnored, nil
	}

	integrations, err := s.integrations.ListActiveByShop(ctx, domain.PlatformShopify, event.Shop)
	if err != nil {
		return "", fmt.Errorf("failed to resolve integrations: %w", err)
	}
	if len(integrations) == 0 {
		s.logger.Warn().Str("topic", event.Topic).Str("shop", event.Shop).Msg("Webhook for unknown shop")
		return domain.OutcomeIgnored, nil
	}

	result := domain.OutcomeIgnored
	for _, integration := range integrations {
		outcome, err := handler.Handle(ctx, event, integration)
		if err != nil {
			return "", err
		}
		result = strongerOutcome(result, outcome)
	}
	return result, nil
}

func (s *WebhookService) handlerFor(topic string) WebhookHandler {
	for _, h := range s.handlers {
		if h.CanHandle(topic) {
			return h
		}
	}
	return nil
}

var outcomeRank = map[domain.WriteOutcome]int{
	domain.OutcomeIgnored:  0,
	domain.OutcomeNotFound: 1,
	domain.OutcomeStale:    2,
	domain.OutcomeUpdated:  3,
	domain.OutcomeCreated:  4,
}

// strongerOutcome picks the outcome reported when a shop has several integrations
func strongerOutcome(a, b domain.WriteOutcome) domain.WriteOutcome {
	if outcomeRank[b] > outcomeRank[a] {
		return b
	}
	return a
}
