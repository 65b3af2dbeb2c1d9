package entity

import (
	"time"

	"taxvault-webhook-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoIntegrationDoc represents an integration in MongoDB
type MongoIntegrationDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	OrganizationID   string             `bson:"organizationId"`
	Platform         string             `bson:"platform"`
	Status           string             `bson:"status"`
	DisconnectReason string             `bson:"disconnectReason"`
	Credentials      domain.Credentials `bson:"credentials"`
	LastSyncAt       *time.Time         `bson:"lastSyncAt,omitempty"`
	SyncStatus       string             `bson:"syncStatus"`
	SyncError        string             `bson:"syncError"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoIntegrationDoc) ToDomain() *domain.Integration {
	return &domain.Integration{
		ID:               d.ID.Hex(),
		OrganizationID:   d.OrganizationID,
		Platform:         domain.Platform(d.Platform),
		Status:           domain.IntegrationStatus(d.Status),
		DisconnectReason: d.DisconnectReason,
		Credentials:      d.Credentials,
		LastSyncAt:       d.LastSyncAt,
		SyncStatus:       domain.SyncStatus(d.SyncStatus),
		SyncError:        d.SyncError,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// MongoIntegrationDocFromDomain converts a domain entity to a MongoDB document
func MongoIntegrationDocFromDomain(integration *domain.Integration) *MongoIntegrationDoc {
	doc := &MongoIntegrationDoc{
		OrganizationID:   integration.OrganizationID,
		Platform:         string(integration.Platform),
		Status:           string(integration.Status),
		DisconnectReason: integration.DisconnectReason,
		Credentials:      integration.Credentials,
		LastSyncAt:       integration.LastSyncAt,
		SyncStatus:       string(integration.SyncStatus),
		SyncError:        integration.SyncError,
		CreatedAt:        integration.CreatedAt,
		UpdatedAt:        integration.UpdatedAt,
	}

	if integration.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(integration.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
