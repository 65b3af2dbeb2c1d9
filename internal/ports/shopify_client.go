package ports

import (
	"context"
	"time"

	"taxvault-webhook-layer/internal/domain"
)

// WebhookRegistry manages webhook subscriptions on a merchant shop.
// Each call makes exactly one platform request and never retries.
// Failures are *domain.AuthError, *domain.NotFoundError,
// *domain.RateLimitedError or *domain.PlatformError.
type WebhookRegistry interface {
	List(ctx context.Context, shop, accessToken string) ([]domain.WebhookSubscription, error)
	Create(ctx context.Context, shop, accessToken, topic, address string) (*domain.WebhookSubscription, error)
	// Delete treats an already-deleted subscription as success
	Delete(ctx context.Context, shop, accessToken, subscriptionID string) error
}

// OrderQuery bounds a historical order listing. Cursor continues a previous page.
type OrderQuery struct {
	CreatedAtMin time.Time
	CreatedAtMax time.Time
	Limit        int
	Cursor       string
}

// OrderFailure is a listed order that could not be converted
type OrderFailure struct {
	ExternalID string
	Err        error
}

// OrderPage is one page of an order listing. NextCursor is empty on the last page.
// Orders that could not be converted are reported in Failures instead of failing
// the page.
type OrderPage struct {
	Orders     []domain.ShopifyOrder
	Failures   []OrderFailure
	NextCursor string
}

// ShopifyClient defines the platform operations used outside the webhook registry
type ShopifyClient interface {
	WebhookRegistry

	GetShop(ctx context.Context, shop, accessToken string) (*domain.ShopInfo, error)
	CountOrders(ctx context.Context, shop, accessToken string, query OrderQuery) (int, error)
	ListOrders(ctx context.Context, shop, accessToken string, query OrderQuery) (*OrderPage, error)
}

// TokenCipher encrypts access tokens at rest
type TokenCipher interface {
	EncryptToken(token string) (string, error)
	DecryptToken(encryptedToken string) (string, error)
}
