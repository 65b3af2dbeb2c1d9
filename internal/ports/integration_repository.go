package ports

import (
	"context"

	"taxvault-webhook-layer/internal/domain"
)

// IntegrationRepository defines the interface for integration persistence
type IntegrationRepository interface {
	// Upsert creates the integration or replaces the one with the same
	// (organization, platform, shop). The stored id is written back to integration.
	Upsert(ctx context.Context, integration *domain.Integration) error

	// GetByID retrieves an integration by id; nil when it does not exist
	GetByID(ctx context.Context, id string) (*domain.Integration, error)

	// ListActiveByShop returns every non-disconnected integration for a shop
	ListActiveByShop(ctx context.Context, platform domain.Platform, shop string) ([]*domain.Integration, error)

	// ListByStatus returns the integrations of a platform in the given status
	ListByStatus(ctx context.Context, platform domain.Platform, status domain.IntegrationStatus) ([]*domain.Integration, error)

	// Update persists status, credentials and sync state of an existing integration
	Update(ctx context.Context, integration *domain.Integration) error
}
