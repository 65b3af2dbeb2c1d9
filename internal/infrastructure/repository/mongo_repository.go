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

// webhookEventRetention is how long logged deliveries are kept
const webhookEventRetention = 30 * 24 * time.Hour

// EnsureIndexes creates the indexes the repositories rely on. It runs once at
// startup, never on a request path.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"integrations": {
			{
				Keys: bson.D{
					{Key: "organizationId", Value: 1},
					{Key: "platform", Value: 1},
					{Key: "credentials.shop", Value: 1},
				},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "credentials.shop", Value: 1}, {Key: "platform", Value: 1}}},
			{Keys: bson.D{{Key: "platform", Value: 1}, {Key: "status", Value: 1}}},
		},
		"transactions": {
			{
				Keys:    bson.D{{Key: "integrationId", Value: 1}, {Key: "externalId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "integrationId", Value: 1}, {Key: "updatedAt", Value: -1}}},
		},
		"webhook_events": {
			{
				Keys:    bson.D{{Key: "createdAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(webhookEventRetention.Seconds())),
			},
			{Keys: bson.D{{Key: "shop", Value: 1}, {Key: "topic", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", collection, err)
		}
	}
	return nil
}

// MongoWebhookEventLog implements WebhookEventLog using MongoDB
type MongoWebhookEventLog struct {
	webhooksCollection *mongo.Collection
}

// NewMongoWebhookEventLog creates a new MongoDB webhook event log
func NewMongoWebhookEventLog(db *mongo.Database) ports.WebhookEventLog {
	return &MongoWebhookEventLog{
		webhooksCollection: db.Collection("webhook_events"),
	}
}

// LogWebhook logs a webhook event
func (r *MongoWebhookEventLog) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.MongoWebhookDocFromDomain(event)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := r.webhooksCollection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}

	return nil
}
