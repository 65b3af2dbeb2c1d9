package entity

import (
	"time"

	"taxvault-webhook-layer/internal/domain"
)

// IntegrationRow represents an integration in a SQL database
type IntegrationRow struct {
	ID               string `gorm:"primaryKey;type:varchar(36)"`
	OrganizationID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_integrations_org_platform_shop"`
	Platform         string `gorm:"type:varchar(16);not null;uniqueIndex:idx_integrations_org_platform_shop;index:idx_integrations_platform_shop"`
	Shop             string `gorm:"type:varchar(255);not null;uniqueIndex:idx_integrations_org_platform_shop;index:idx_integrations_platform_shop"`
	Status           string `gorm:"type:varchar(32);not null;index"`
	DisconnectReason string `gorm:"type:varchar(64)"`
	AccessToken      string `gorm:"type:text"`
	ShopDomain       string `gorm:"type:varchar(255)"`
	ShopEmail        string `gorm:"type:varchar(255)"`
	CustomerEmail    string `gorm:"type:varchar(255)"`
	ShopOwner        string `gorm:"type:varchar(255)"`
	LastSyncAt       *time.Time
	SyncStatus       string `gorm:"type:varchar(16);not null"`
	SyncError        string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (IntegrationRow) TableName() string { return "integrations" }

// ToDomain converts the row to a domain entity
func (r *IntegrationRow) ToDomain() *domain.Integration {
	return &domain.Integration{
		ID:               r.ID,
		OrganizationID:   r.OrganizationID,
		Platform:         domain.Platform(r.Platform),
		Status:           domain.IntegrationStatus(r.Status),
		DisconnectReason: r.DisconnectReason,
		Credentials: domain.Credentials{
			Shop:        r.Shop,
			AccessToken: r.AccessToken,
			ShopInfo: domain.ShopInfo{
				Domain:        r.ShopDomain,
				Email:         r.ShopEmail,
				CustomerEmail: r.CustomerEmail,
				ShopOwner:     r.ShopOwner,
			},
		},
		LastSyncAt: r.LastSyncAt,
		SyncStatus: domain.SyncStatus(r.SyncStatus),
		SyncError:  r.SyncError,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// IntegrationRowFromDomain converts a domain entity to a row
func IntegrationRowFromDomain(i *domain.Integration) *IntegrationRow {
	return &IntegrationRow{
		ID:               i.ID,
		OrganizationID:   i.OrganizationID,
		Platform:         string(i.Platform),
		Shop:             i.Credentials.Shop,
		Status:           string(i.Status),
		DisconnectReason: i.DisconnectReason,
		AccessToken:      i.Credentials.AccessToken,
		ShopDomain:       i.Credentials.ShopInfo.Domain,
		ShopEmail:        i.Credentials.ShopInfo.Email,
		CustomerEmail:    i.Credentials.ShopInfo.CustomerEmail,
		ShopOwner:        i.Credentials.ShopInfo.ShopOwner,
		LastSyncAt:       i.LastSyncAt,
		SyncStatus:       string(i.SyncStatus),
		SyncError:        i.SyncError,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}
}

// TransactionRow represents a ledger transaction in a SQL database.
// SourceUpdatedMs is the platform updated_at in unix milliseconds, 0 when unknown.
type TransactionRow struct {
	ID              string            `gorm:"primaryKey;type:varchar(36)"`
	IntegrationID   string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_transactions_integration_external;index:idx_transactions_integration_updated,priority:1"`
	ExternalID      string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_transactions_integration_external"`
	OrganizationID  string            `gorm:"type:varchar(64);not null;index"`
	TotalAmount     int64             `gorm:"not null"`
	TaxAmount       int64             `gorm:"not null"`
	Subtotal        int64             `gorm:"not null"`
	DiscountAmount  int64             `gorm:"not null"`
	Currency        string            `gorm:"type:varchar(8)"`
	Status          string            `gorm:"type:varchar(16);not null;index"`
	TaxDetails      []domain.TaxLine  `gorm:"type:text;serializer:json"`
	Items           []domain.LineItem `gorm:"type:text;serializer:json"`
	Metadata        map[string]string `gorm:"type:text;serializer:json"`
	Notes           string            `gorm:"type:text"`
	Refunds         []domain.Refund   `gorm:"type:text;serializer:json"`
	TransactionDate *time.Time
	SourceUpdatedMs int64 `gorm:"not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time `gorm:"index:idx_transactions_integration_updated,priority:2"`
}

func (TransactionRow) TableName() string { return "transactions" }

// ToDomain converts the row to a domain entity
func (r *TransactionRow) ToDomain() *domain.Transaction {
	tx := &domain.Transaction{
		ID:              r.ID,
		ExternalID:      r.ExternalID,
		IntegrationID:   r.IntegrationID,
		OrganizationID:  r.OrganizationID,
		TotalAmount:     r.TotalAmount,
		TaxAmount:       r.TaxAmount,
		Subtotal:        r.Subtotal,
		DiscountAmount:  r.DiscountAmount,
		Currency:        r.Currency,
		Status:          domain.TransactionStatus(r.Status),
		TaxDetails:      r.TaxDetails,
		Items:           r.Items,
		Metadata:        r.Metadata,
		Notes:           r.Notes,
		Refunds:         r.Refunds,
		TransactionDate: r.TransactionDate,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.SourceUpdatedMs > 0 {
		ts := time.UnixMilli(r.SourceUpdatedMs).UTC()
		tx.SourceUpdatedAt = &ts
	}
	return tx
}

// TransactionRowFromDomain converts a domain entity to a row
func TransactionRowFromDomain(tx *domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		ID:              tx.ID,
		IntegrationID:   tx.IntegrationID,
		ExternalID:      tx.ExternalID,
		OrganizationID:  tx.OrganizationID,
		TotalAmount:     tx.TotalAmount,
		TaxAmount:       tx.TaxAmount,
		Subtotal:        tx.Subtotal,
		DiscountAmount:  tx.DiscountAmount,
		Currency:        tx.Currency,
		Status:          string(tx.Status),
		TaxDetails:      tx.TaxDetails,
		Items:           tx.Items,
		Metadata:        tx.Metadata,
		Notes:           tx.Notes,
		Refunds:         tx.Refunds,
		TransactionDate: tx.TransactionDate,
		CreatedAt:       tx.CreatedAt,
		UpdatedAt:       tx.UpdatedAt,
	}
	if tx.SourceUpdatedAt != nil {
		row.SourceUpdatedMs = tx.SourceUpdatedAt.UnixMilli()
	}
	return row
}

// WebhookEventRow represents a logged webhook delivery in a SQL database
type WebhookEventRow struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	WebhookID  string `gorm:"type:varchar(64)"`
	Platform   string `gorm:"type:varchar(16)"`
	Topic      string `gorm:"type:varchar(64);index:idx_webhook_events_shop_topic,priority:2"`
	Shop       string `gorm:"type:varchar(255);index:idx_webhook_events_shop_topic,priority:1"`
	Payload    string `gorm:"type:text"`
	Verified   bool
	Outcome    string `gorm:"type:varchar(32)"`
	ReceivedAt time.Time
	CreatedAt  time.Time `gorm:"index"`
}

func (WebhookEventRow) TableName() string { return "webhook_events" }
