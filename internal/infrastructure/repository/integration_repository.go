package repository

import (
	"context"
	"fmt"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/infrastructure/repository/entity"
	"taxvault-webhook-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIntegrationRepository implements IntegrationRepository using MongoDB
type MongoIntegrationRepository struct {
	collection *mongo.Collection
}

// NewMongoIntegrationRepository creates a new MongoDB integration repository
func NewMongoIntegrationRepository(db *mongo.Database) ports.IntegrationRepository {
	return &MongoIntegrationRepository{
		collection: db.Collection("integrations"),
	}
}

// Upsert creates or replaces the integration for (organization, platform, shop)
func (r *MongoIntegrationRepository) Upsert(ctx context.Context, integration *domain.Integration) error {
	now := time.Now().UTC()
	doc := entity.MongoIntegrationDocFromDomain(integration)

	filter := bson.M{
		"organizationId":   doc.OrganizationID,
		"platform":         doc.Platform,
		"credentials.shop": doc.Credentials.Shop,
	}
	update := bson.M{
		"$set": bson.M{
			"status":           doc.Status,
			"disconnectReason": doc.DisconnectReason,
			"credentials":      doc.Credentials,
			"syncStatus":       doc.SyncStatus,
			"syncError":        doc.SyncError,
			"updatedAt":        now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved entity.MongoIntegrationDoc
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}

	*integration = *saved.ToDomain()
	return nil
}

// GetByID retrieves an integration by its id
func (r *MongoIntegrationRepository) GetByID(ctx context.Context, id string) (*domain.Integration, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc entity.MongoIntegrationDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	return doc.ToDomain(), nil
}

// ListActiveByShop returns every non-disconnected integration for a shop
func (r *MongoIntegrationRepository) ListActiveByShop(ctx context.Context, platform domain.Platform, shop string) ([]*domain.Integration, error) {
	return r.find(ctx, bson.M{
		"platform":         string(platform),
		"credentials.shop": shop,
		"status":           bson.M{"$ne": string(domain.IntegrationStatusDisconnected)},
	})
}

// ListByStatus returns the integrations of a platform in the given status
func (r *MongoIntegrationRepository) ListByStatus(ctx context.Context, platform domain.Platform, status domain.IntegrationStatus) ([]*domain.Integration, error) {
	return r.find(ctx, bson.M{
		"platform": string(platform),
		"status":   string(status),
	})
}

// Update persists status, credentials and sync state
func (r *MongoIntegrationRepository) Update(ctx context.Context, integration *domain.Integration) error {
	objID, err := primitive.ObjectIDFromHex(integration.ID)
	if err != nil {
		return domain.ErrIntegrationNotFound
	}
	doc := entity.MongoIntegrationDocFromDomain(integration)

	set := bson.M{
		"status":           doc.Status,
		"disconnectReason": doc.DisconnectReason,
		"credentials":      doc.Credentials,
		"syncStatus":       doc.SyncStatus,
		"syncError":        doc.SyncError,
		"updatedAt":        time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if doc.LastSyncAt != nil {
		set["lastSyncAt"] = doc.LastSyncAt
	} else {
		update["$unset"] = bson.M{"lastSyncAt": ""}
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update integration: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrIntegrationNotFound
	}
	return nil
}

func (r *MongoIntegrationRepository) find(ctx context.Context, filter bson.M) ([]*domain.Integration, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer cursor.Close(ctx)

	var integrations []*domain.Integration
	for cursor.Next(ctx) {
		var doc entity.MongoIntegrationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode integration: %w", err)
		}
		integrations = append(integrations, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return integrations, nil
}
