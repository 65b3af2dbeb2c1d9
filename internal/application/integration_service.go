package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"

	"github.com/rs/zerolog"
)

// IntegrationService connects and disconnects merchant shops
type IntegrationService struct {
	integrationRepo ports.IntegrationRepository
	transactions    ports.TransactionRepository
	shopify         ports.ShopifyClient
	tokens          ports.TokenCipher
	webhooks        *WebhookManager
	logger          zerolog.Logger
}

// NewIntegrationService creates a new integration service
func NewIntegrationService(
	integrationRepo ports.IntegrationRepository,
	transactions ports.TransactionRepository,
	shopify ports.ShopifyClient,
	tokens ports.TokenCipher,
	webhooks *WebhookManager,
	logger zerolog.Logger,
) *IntegrationService {
	return &IntegrationService{
		integrationRepo: integrationRepo,
		transactions:    transactions,
		shopify:         shopify,
		tokens:          tokens,
		webhooks:        webhooks,
		logger:          logger,
	}
}

// ConnectIntegrationInput represents input for connecting a shop
type ConnectIntegrationInput struct {
	OrganizationID string `json:"organizationId"`
	Shop           string `json:"shop"`
	AccessToken    string `json:"accessToken"`
}

// ConnectResult is the stored integration and the webhook state after setup
type ConnectResult struct {
	Integration *domain.Integration  `json:"integration"`
	Health      *domain.HealthRecord `json:"health"`
}

// NormalizeShopDomain lower-cases a shop domain and strips scheme and trailing slash
func NormalizeShopDomain(shop string) string {
	shop = strings.ToLower(strings.TrimSpace(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	return strings.TrimRight(shop, "/")
}

// Connect validates the access token against the shop, stores the integration with
// the token encrypted and sets up webhooks. Reconnecting the same shop for the same
// organization replaces the stored credentials.
func (s *IntegrationService) Connect(ctx context.Context, input ConnectIntegrationInput) (*ConnectResult, error) {
	if strings.TrimSpace(input.OrganizationID) == "" {
		return nil, domain.NewValidationError("organizationId", "organization id is required")
	}
	shop := NormalizeShopDomain(input.Shop)
	if !strings.HasSuffix(shop, ".myshopify.com") || shop == ".myshopify.com" {
		return nil, domain.NewValidationError("shop", "shop must be a myshopify.com domain")
	}
	if input.AccessToken == "" {
		return nil, domain.NewValidationError("accessToken", "access token is required")
	}

	info, err := s.shopify.GetShop(ctx, shop, input.AccessToken)
	if err != nil {
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			return nil, domain.NewValidationError("accessToken", "access token was rejected by the shop")
		}
		return nil, fmt.Errorf("failed to get shop info: %w", err)
	}

	encrypted, err := s.tokens.EncryptToken(input.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	now := time.Now().UTC()
	integration := &domain.Integration{
		OrganizationID: input.OrganizationID,
		Platform:       domain.PlatformShopify,
		Status:         domain.IntegrationStatusPendingUserLink,
		Credentials: domain.Credentials{
			Shop:        shop,
			AccessToken: encrypted,
			ShopInfo:    *info,
		},
		SyncStatus: domain.SyncStatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.integrationRepo.Upsert(ctx, integration); err != nil {
		s.logger.Error().Err(err).Str("shop", shop).Msg("Failed to store integration")
		return nil, fmt.Errorf("failed to store integration: %w", err)
	}

	s.logger.Info().
		Str("integrationId", integration.ID).
		Str("organizationId", integration.OrganizationID).
		Str("shop", shop).
		Msg("Integration connected")

	health, err := s.webhooks.SetupWebhooks(ctx, integration.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to set up webhooks: %w", err)
	}

	stored, err := s.GetIntegration(ctx, integration.ID)
	if err != nil {
		return nil, err
	}
	return &ConnectResult{Integration: stored, Health: health}, nil
}

// Disconnect removes this service's webhooks on a best-effort basis, marks the
// integration DISCONNECTED and deletes its transactions
func (s *IntegrationService) Disconnect(ctx context.Context, integrationID string) (int64, error) {
	integration, err := s.GetIntegration(ctx, integrationID)
	if err != nil {
		return 0, err
	}

	if integration.IsActive() {
		removed := s.webhooks.CleanupWebhooks(ctx, integration)
		s.logger.Info().Str("integrationId", integrationID).Int("removed", removed).Msg("Webhooks cleaned up")
	}

	integration.Status = domain.IntegrationStatusDisconnected
	integration.DisconnectReason = domain.DisconnectReasonUser
	integration.Credentials.AccessToken = ""
	integration.SyncStatus = domain.SyncStatusIdle
	integration.SyncError = ""
	integration.UpdatedAt = time.Now().UTC()
	if err := s.integrationRepo.Update(ctx, integration); err != nil {
		return 0, fmt.Errorf("failed to update integration: %w", err)
	}

	deleted, err := s.transactions.DeleteByIntegration(ctx, integrationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	s.logger.Info().
		Str("integrationId", integrationID).
		Int64("transactionsDeleted", deleted).
		Msg("Integration disconnected")
	return deleted, nil
}

// GetIntegration retrieves an integration by id
func (s *IntegrationService) GetIntegration(ctx context.Context, integrationID string) (*domain.Integration, error) {
	integration, err := s.integrationRepo.GetByID(ctx, integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	if integration == nil {
		return nil, domain.ErrIntegrationNotFound
	}
	return integration, nil
}

// ListTransactions returns the latest ledger rows of an integration
func (s *IntegrationService) ListTransactions(ctx context.Context, integrationID string, limit int) ([]*domain.Transaction, error) {
	if _, err := s.GetIntegration(ctx, integrationID); err != nil {
		return nil, err
	}
	transactions, err := s.transactions.ListByIntegration(ctx, integrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}
