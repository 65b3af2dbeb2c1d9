package domain

import "time"

// Platform identifies the commerce platform an integration connects to
type Platform string

const (
	PlatformShopify Platform = "SHOPIFY"
	PlatformSquare  Platform = "SQUARE"
)

// IntegrationStatus is the connection lifecycle of an integration
type IntegrationStatus string

const (
	IntegrationStatusDisconnected    IntegrationStatus = "DISCONNECTED"
	IntegrationStatusPendingUserLink IntegrationStatus = "PENDING_USER_LINK"
	IntegrationStatusConnected       IntegrationStatus = "CONNECTED"
)

// SyncStatus tracks whether a historical import is running for an integration
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "IDLE"
	SyncStatusSyncing SyncStatus = "SYNCING"
	SyncStatusError   SyncStatus = "ERROR"
)

// DisconnectReasonAppUninstalled marks an integration disconnected by the platform
const DisconnectReasonAppUninstalled = "app_uninstalled"

// DisconnectReasonUser marks an integration disconnected through the admin API
const DisconnectReasonUser = "user_disconnected"

// ShopInfo is the shop metadata captured when an integration is connected
type ShopInfo struct {
	Domain        string `json:"domain" bson:"domain"`
	Email         string `json:"email" bson:"email"`
	CustomerEmail string `json:"customerEmail" bson:"customerEmail"`
	ShopOwner     string `json:"shopOwner" bson:"shopOwner"`
}

// Credentials holds the platform credentials of an integration.
// AccessToken is stored encrypted and only decrypted right before a platform call.
type Credentials struct {
	Shop        string   `json:"shop" bson:"shop"`
	AccessToken string   `json:"-" bson:"accessToken"`
	ShopInfo    ShopInfo `json:"shopInfo" bson:"shopInfo"`
}

// Integration links one organization to one merchant account on a platform.
// At most one integration exists per (organization, platform, shop).
type Integration struct {
	ID               string            `json:"id"`
	OrganizationID   string            `json:"organizationId"`
	Platform         Platform          `json:"platform"`
	Status           IntegrationStatus `json:"status"`
	DisconnectReason string            `json:"disconnectReason,omitempty"`
	Credentials      Credentials       `json:"credentials"`
	LastSyncAt       *time.Time        `json:"lastSyncAt,omitempty"`
	SyncStatus       SyncStatus        `json:"syncStatus"`
	SyncError        string            `json:"syncError,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// IsActive reports whether webhook events should still be applied to this integration
func (i *Integration) IsActive() bool {
	return i.Status != IntegrationStatusDisconnected
}

// MarkUninstalled moves the integration to DISCONNECTED after the platform revoked access.
// Sync state is reset and the access token dropped; transactions are left alone.
func (i *Integration) MarkUninstalled(now time.Time) {
	i.Status = IntegrationStatusDisconnected
	i.DisconnectReason = DisconnectReasonAppUninstalled
	i.Credentials.AccessToken = ""
	i.SyncStatus = SyncStatusIdle
	i.SyncError = ""
	i.UpdatedAt = now
}
