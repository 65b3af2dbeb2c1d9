package repository

import (
	"context"
	"fmt"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/infrastructure/repository/entity"
	"taxvault-webhook-layer/internal/ports"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTransactionRepository implements TransactionRepository using MongoDB.
// Atomicity relies on the unique (integrationId, externalId) index created by EnsureIndexes.
type MongoTransactionRepository struct {
	collection *mongo.Collection
}

// NewMongoTransactionRepository creates a new MongoDB transaction repository
func NewMongoTransactionRepository(db *mongo.Database) ports.TransactionRepository {
	return &MongoTransactionRepository{
		collection: db.Collection("transactions"),
	}
}

func keyFilter(integrationID, externalID string) bson.M {
	return bson.M{"integrationId": integrationID, "externalId": externalID}
}

// guardedFilter only matches rows that domain.AcceptsSourceUpdate lets tx replace
func guardedFilter(tx *domain.Transaction) bson.M {
	filter := keyFilter(tx.IntegrationID, tx.ExternalID)
	if tx.SourceUpdatedAt != nil {
		filter["$or"] = bson.A{
			bson.M{"sourceUpdatedAt": bson.M{"$lt": *tx.SourceUpdatedAt}},
			bson.M{
				"sourceUpdatedAt": *tx.SourceUpdatedAt,
				"status":          bson.M{"$nin": domain.TerminalStatuses()},
			},
			bson.M{"sourceUpdatedAt": nil},
		}
	}
	return filter
}

func financialFields(tx *domain.Transaction, now time.Time) bson.M {
	metadata := tx.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	set := bson.M{
		"organizationId": tx.OrganizationID,
		"totalAmount":    tx.TotalAmount,
		"taxAmount":      tx.TaxAmount,
		"subtotal":       tx.Subtotal,
		"discountAmount": tx.DiscountAmount,
		"currency":       tx.Currency,
		"status":         string(tx.Status),
		"taxDetails":     tx.TaxDetails,
		"items":          tx.Items,
		"metadata":       metadata,
		"notes":          tx.Notes,
		"updatedAt":      now,
	}
	if tx.TransactionDate != nil {
		set["transactionDate"] = *tx.TransactionDate
	}
	if tx.SourceUpdatedAt != nil {
		set["sourceUpdatedAt"] = *tx.SourceUpdatedAt
	}
	return set
}

// Upsert inserts or updates the row keyed by (integrationId, externalId)
func (r *MongoTransactionRepository) Upsert(ctx context.Context, tx *domain.Transaction) (domain.WriteOutcome, error) {
	now := time.Now().UTC()
	id := tx.ID
	if id == "" {
		id = uuid.NewString()
	}
	update := bson.M{
		"$set": financialFields(tx, now),
		"$setOnInsert": bson.M{
			"_id":       id,
			"createdAt": now,
			"refunds":   bson.A{},
		},
	}
	opts := options.Update().SetUpsert(true)

	// A guarded filter that misses an existing newer row turns the upsert into an
	// insert that collides with the unique index. Concurrent first inserts collide
	// the same way; one retry separates the two cases.
	for attempt := 0; attempt < 2; attempt++ {
		result, err := r.collection.UpdateOne(ctx, guardedFilter(tx), update, opts)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to upsert transaction: %w", err)
		}
		if result.UpsertedCount > 0 {
			tx.ID = id
			return domain.OutcomeCreated, nil
		}
		return domain.OutcomeUpdated, nil
	}

	if tx.SourceUpdatedAt != nil {
		return domain.OutcomeStale, nil
	}
	return "", fmt.Errorf("failed to upsert transaction: duplicate key for %s/%s", tx.IntegrationID, tx.ExternalID)
}

// Update replaces financial fields of an existing row without ever inserting
func (r *MongoTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) (domain.WriteOutcome, error) {
	result, err := r.collection.UpdateOne(ctx, guardedFilter(tx), bson.M{"$set": financialFields(tx, time.Now().UTC())})
	if err != nil {
		return "", fmt.Errorf("failed to update transaction: %w", err)
	}
	if result.MatchedCount > 0 {
		return domain.OutcomeUpdated, nil
	}

	count, err := r.collection.CountDocuments(ctx, keyFilter(tx.IntegrationID, tx.ExternalID))
	if err != nil {
		return "", fmt.Errorf("failed to check transaction: %w", err)
	}
	if count == 0 {
		return domain.OutcomeNotFound, nil
	}
	return domain.OutcomeStale, nil
}

// SetStatus sets status on every row for the external id
func (r *MongoTransactionRepository) SetStatus(ctx context.Context, integrationID, externalID string, status domain.TransactionStatus, sourceUpdatedAt *time.Time) (int64, error) {
	update := bson.M{
		"$set": bson.M{"status": string(status), "updatedAt": time.Now().UTC()},
	}
	if sourceUpdatedAt != nil {
		update["$max"] = bson.M{"sourceUpdatedAt": sourceUpdatedAt.UTC()}
	}
	result, err := r.collection.UpdateMany(ctx, keyFilter(integrationID, externalID), update)
	if err != nil {
		return 0, fmt.Errorf("failed to set transaction status: %w", err)
	}
	return result.MatchedCount, nil
}

// ApplyRefund marks the row REFUNDED and records the refund without duplicating it
func (r *MongoTransactionRepository) ApplyRefund(ctx context.Context, integrationID, externalID string, refund domain.Refund) (bool, error) {
	now := time.Now().UTC()

	// Replay of a known refund: overwrite it in place
	filter := keyFilter(integrationID, externalID)
	filter["refunds.externalId"] = refund.ExternalID
	update := bson.M{
		"$set": bson.M{
			"refunds.$":             refund,
			"status":                string(domain.TransactionStatusRefunded),
			"metadata.lastRefundId": refund.ExternalID,
			"updatedAt":             now,
		},
	}
	if refund.CreatedAt != nil {
		update["$max"] = bson.M{"sourceUpdatedAt": refund.CreatedAt.UTC()}
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to apply refund: %w", err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	filter = keyFilter(integrationID, externalID)
	filter["refunds.externalId"] = bson.M{"$ne": refund.ExternalID}
	update = bson.M{
		"$push": bson.M{"refunds": refund},
		"$set": bson.M{
			"status":                string(domain.TransactionStatusRefunded),
			"metadata.lastRefundId": refund.ExternalID,
			"updatedAt":             now,
		},
	}
	if refund.CreatedAt != nil {
		update["$max"] = bson.M{"sourceUpdatedAt": refund.CreatedAt.UTC()}
	}
	result, err = r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to apply refund: %w", err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	// Either the row is missing or a concurrent delivery recorded the refund first
	count, err := r.collection.CountDocuments(ctx, keyFilter(integrationID, externalID))
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return count > 0, nil
}

// GetByExternalID retrieves one row by its key
func (r *MongoTransactionRepository) GetByExternalID(ctx context.Context, integrationID, externalID string) (*domain.Transaction, error) {
	var doc entity.MongoTransactionDoc
	err := r.collection.FindOne(ctx, keyFilter(integrationID, externalID)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListByIntegration returns the most recently updated rows first
func (r *MongoTransactionRepository) ListByIntegration(ctx context.Context, integrationID string, limit int) ([]*domain.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"integrationId": integrationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*domain.Transaction
	for cursor.Next(ctx) {
		var doc entity.MongoTransactionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		transactions = append(transactions, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return transactions, nil
}

// DeleteByIntegration removes every row of an integration
func (r *MongoTransactionRepository) DeleteByIntegration(ctx context.Context, integrationID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"integrationId": integrationID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}
	return result.DeletedCount, nil
}
