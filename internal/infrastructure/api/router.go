package api

import (
	"net/http"

	securitymiddleware "taxvault-webhook-layer/internal/infrastructure/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig holds everything mounted on the HTTP router
type RouterConfig struct {
	Webhooks   *WebhookHandler
	Admin      *AdminHandler
	AdminToken string
	// Metrics serves /metrics when set
	Metrics http.Handler
	// SwaggerFile is the OpenAPI document served under /swagger; empty disables it
	SwaggerFile string
	Logger      zerolog.Logger
}

// NewRouter builds the service router
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(securitymiddleware.SecurityHeadersMiddleware())
	r.Use(securitymiddleware.AuditLoggingMiddleware(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.SwaggerFile != "" {
		r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			http.ServeFile(w, r, cfg.SwaggerFile)
		})
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}

	// platform deliveries: no CORS, authenticated by HMAC
	r.Post("/webhooks/shopify", cfg.Webhooks.HandleWebhook)
	r.Post("/webhooks/shopify/{resource}/{event}", cfg.Webhooks.HandleWebhook)

	r.Route("/admin", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", securitymiddleware.AdminTokenHeader},
		}))
		r.Use(securitymiddleware.AdminAuthMiddleware(cfg.AdminToken, cfg.Logger))
		cfg.Admin.Routes(r)
	})

	return r
}
