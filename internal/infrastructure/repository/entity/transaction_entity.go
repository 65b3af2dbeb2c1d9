package entity

import (
	"time"

	"taxvault-webhook-layer/internal/domain"
)

// MongoTransactionDoc represents a ledger transaction in MongoDB
type MongoTransactionDoc struct {
	ID              string            `bson:"_id"`
	ExternalID      string            `bson:"externalId"`
	IntegrationID   string            `bson:"integrationId"`
	OrganizationID  string            `bson:"organizationId"`
	TotalAmount     int64             `bson:"totalAmount"`
	TaxAmount       int64             `bson:"taxAmount"`
	Subtotal        int64             `bson:"subtotal"`
	DiscountAmount  int64             `bson:"discountAmount"`
	Currency        string            `bson:"currency"`
	Status          string            `bson:"status"`
	TaxDetails      []domain.TaxLine  `bson:"taxDetails"`
	Items           []domain.LineItem `bson:"items"`
	Metadata        map[string]string `bson:"metadata"`
	Notes           string            `bson:"notes"`
	Refunds         []domain.Refund   `bson:"refunds"`
	TransactionDate *time.Time        `bson:"transactionDate,omitempty"`
	SourceUpdatedAt *time.Time        `bson:"sourceUpdatedAt,omitempty"`
	CreatedAt       time.Time         `bson:"createdAt"`
	UpdatedAt       time.Time         `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoTransactionDoc) ToDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:              d.ID,
		ExternalID:      d.ExternalID,
		IntegrationID:   d.IntegrationID,
		OrganizationID:  d.OrganizationID,
		TotalAmount:     d.TotalAmount,
		TaxAmount:       d.TaxAmount,
		Subtotal:        d.Subtotal,
		DiscountAmount:  d.DiscountAmount,
		Currency:        d.Currency,
		Status:          domain.TransactionStatus(d.Status),
		TaxDetails:      d.TaxDetails,
		Items:           d.Items,
		Metadata:        d.Metadata,
		Notes:           d.Notes,
		Refunds:         d.Refunds,
		TransactionDate: d.TransactionDate,
		SourceUpdatedAt: d.SourceUpdatedAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
