package entity

import (
	"time"

	"taxvault-webhook-layer/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWebhookEventDoc represents a logged webhook delivery in MongoDB
type MongoWebhookEventDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EventID    string             `bson:"eventId"`
	WebhookID  string             `bson:"webhookId,omitempty"`
	Platform   string             `bson:"platform"`
	Topic      string             `bson:"topic"`
	Shop       string             `bson:"shop"`
	Payload    string             `bson:"payload"`
	Verified   bool               `bson:"verified"`
	Outcome    string             `bson:"outcome,omitempty"`
	ReceivedAt time.Time          `bson:"receivedAt"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

// MongoWebhookDocFromDomain converts a domain event to a MongoDB document
func MongoWebhookDocFromDomain(event *domain.WebhookEvent) *MongoWebhookEventDoc {
	return &MongoWebhookEventDoc{
		EventID:    event.ID,
		WebhookID:  event.WebhookID,
		Platform:   string(event.Platform),
		Topic:      event.Topic,
		Shop:       event.Shop,
		Payload:    string(event.Payload),
		Verified:   event.Verified,
		Outcome:    event.Outcome,
		ReceivedAt: event.ReceivedAt,
	}
}
