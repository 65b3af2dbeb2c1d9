package api

import (
	"net/http"
	"strconv"
	"time"

	"taxvault-webhook-layer/internal/application"
	"taxvault-webhook-layer/internal/domain"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	defaultTransactionLimit = 50
	maxTransactionLimit     = 500

	// defaultImportWindow matches the order history Shopify exposes without read_all_orders
	defaultImportWindow = 60 * 24 * time.Hour
)

// AdminHandler serves the operator endpoints for integrations and webhooks
type AdminHandler struct {
	integrations *application.IntegrationService
	webhooks     *application.WebhookManager
	imports      *application.ImportService
	logger       zerolog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	integrations *application.IntegrationService,
	webhooks *application.WebhookManager,
	imports *application.ImportService,
	logger zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		integrations: integrations,
		webhooks:     webhooks,
		imports:      imports,
		logger:       logger,
	}
}

// Routes mounts the admin endpoints on r
func (h *AdminHandler) Routes(r chi.Router) {
	r.Post("/integrations", h.Connect)
	r.Route("/integrations/{id}", func(r chi.Router) {
		r.Get("/", h.GetIntegration)
		r.Delete("/", h.Disconnect)
		r.Get("/transactions", h.ListTransactions)
		r.Get("/webhooks", h.ListWebhooks)
		r.Delete("/webhooks/{webhookID}", h.DeleteWebhook)
		r.Get("/webhooks/health", h.LastHealth)
		r.Post("/webhooks/health", h.EnsureHealth)
		r.Post("/webhooks/setup", h.SetupWebhooks)
		r.Post("/import", h.Import)
		r.Get("/import", h.ImportProgress)
	})
	r.Post("/webhooks/health", h.GlobalHealth)
}

// Connect handles POST /admin/integrations
func (h *AdminHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var input application.ConnectIntegrationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, h.logger, domain.NewValidationError("body", "invalid JSON body"))
		return
	}
	result, err := h.integrations.Connect(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GetIntegration handles GET /admin/integrations/{id}
func (h *AdminHandler) GetIntegration(w http.ResponseWriter, r *http.Request) {
	integration, err := h.integrations.GetIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

// Disconnect handles DELETE /admin/integrations/{id}
func (h *AdminHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.integrations.Disconnect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactionsDeleted": deleted})
}

// ListTransactions handles GET /admin/integrations/{id}/transactions?limit=n
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, h.logger, domain.NewValidationError("limit", "limit must be a positive integer"))
			return
		}
		limit = min(n, maxTransactionLimit)
	}
	transactions, err := h.integrations.ListTransactions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// ListWebhooks handles GET /admin/integrations/{id}/webhooks
func (h *AdminHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	subs, err := h.webhooks.ListSubscriptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if subs == nil {
		subs = []domain.WebhookSubscription{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"callbackUrl":   h.webhooks.CallbackURL(),
		"subscriptions": subs,
	})
}

// DeleteWebhook handles DELETE /admin/integrations/{id}/webhooks/{webhookID}
func (h *AdminHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.DeleteSubscription(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "webhookID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// LastHealth handles GET /admin/integrations/{id}/webhooks/health
func (h *AdminHandler) LastHealth(w http.ResponseWriter, r *http.Request) {
	record, err := h.webhooks.LastHealth(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no health check recorded"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// EnsureHealth handles POST /admin/integrations/{id}/webhooks/health
func (h *AdminHandler) EnsureHealth(w http.ResponseWriter, r *http.Request) {
	record, err := h.webhooks.EnsureWebhookHealth(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// SetupWebhooks handles POST /admin/integrations/{id}/webhooks/setup
func (h *AdminHandler) SetupWebhooks(w http.ResponseWriter, r *http.Request) {
	record, err := h.webhooks.SetupWebhooks(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// GlobalHealth handles POST /admin/webhooks/health
func (h *AdminHandler) GlobalHealth(w http.ResponseWriter, r *http.Request) {
	records, err := h.webhooks.RunGlobalHealthCheck(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

type importRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// Import handles POST /admin/integrations/{id}/import. The import runs within the
// request; progress can be polled from another request meanwhile.
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, h.logger, domain.NewValidationError("body", "invalid JSON body"))
			return
		}
	}
	to := time.Now().UTC()
	if req.To != nil {
		to = *req.To
	}
	from := to.Add(-defaultImportWindow)
	if req.From != nil {
		from = *req.From
	}

	progress, err := h.imports.Import(r.Context(), chi.URLParam(r, "id"), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// ImportProgress handles GET /admin/integrations/{id}/import
func (h *AdminHandler) ImportProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.imports.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if progress == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no import recorded"})
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
