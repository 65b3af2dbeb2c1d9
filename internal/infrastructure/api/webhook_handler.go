package api

import (
	"errors"
	"io"
	"net/http"

	"taxvault-webhook-layer/internal/application"
	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/infrastructure/shopify"
	"taxvault-webhook-layer/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	headerShopDomain = "X-Shopify-Shop-Domain"
	headerHmac       = "X-Shopify-Hmac-Sha256"
	headerTopic      = "X-Shopify-Topic"
	headerWebhookID  = "X-Shopify-Webhook-Id"

	// maxWebhookBody bounds the body read before the signature is checked
	maxWebhookBody = 5 << 20
)

// WebhookHandler ingests Shopify webhook deliveries
type WebhookHandler struct {
	service  *application.WebhookService
	verifier *shopify.WebhookVerifier
	metrics  ports.Metrics
	logger   zerolog.Logger
}

// NewWebhookHandler creates a webhook handler that checks every delivery with verifier
func NewWebhookHandler(service *application.WebhookService, verifier *shopify.WebhookVerifier, metrics ports.Metrics, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  service,
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
	}
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Topic   string `json:"topic"`
	Outcome string `json:"outcome"`
}

// HandleWebhook handles POST /webhooks/shopify and POST /webhooks/shopify/{resource}/{event}
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// the signature covers the exact bytes, so nothing may parse the body first
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to read webhook payload")
		writeError(w, h.logger, domain.NewValidationError("body", "failed to read request body"))
		return
	}

	shop := r.Header.Get(headerShopDomain)
	signature := r.Header.Get(headerHmac)
	if shop == "" {
		writeError(w, h.logger, domain.NewValidationError(headerShopDomain, "header is required"))
		return
	}
	if signature == "" {
		writeError(w, h.logger, domain.NewValidationError(headerHmac, "header is required"))
		return
	}

	if err := h.verifier.Verify(payload, signature); err != nil {
		if h.metrics != nil {
			h.metrics.SignatureFailure()
		}
		h.logger.Warn().Err(err).Str("shop", shop).Msg("Webhook signature verification failed")
		writeError(w, h.logger, err)
		return
	}

	topic := h.topic(r)
	if topic == "" {
		writeError(w, h.logger, domain.NewValidationError(headerTopic, "webhook topic is required"))
		return
	}

	outcome, err := h.service.ProcessWebhook(ctx, topic, application.NormalizeShopDomain(shop), r.Header.Get(headerWebhookID), payload)
	if err != nil {
		var validation *domain.ValidationError
		if errors.As(err, &validation) {
			h.logger.Warn().Err(err).Str("topic", topic).Str("shop", shop).Msg("Rejected webhook payload")
			writeError(w, h.logger, err)
			return
		}
		// anything else answers 500 so the platform redelivers
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process webhook"})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Success: true, Topic: topic, Outcome: string(outcome)})
}

// topic prefers the route parameters over the topic header
func (h *WebhookHandler) topic(r *http.Request) string {
	resource := chi.URLParam(r, "resource")
	event := chi.URLParam(r, "event")
	if resource != "" && event != "" {
		return resource + "/" + event
	}
	return r.Header.Get(headerTopic)
}
