package ports

import (
	"context"
	"time"

	"taxvault-webhook-layer/internal/domain"
)

// TransactionRepository defines the interface for the transaction ledger.
// Every write is keyed by (IntegrationID, ExternalID) and must be atomic in storage.
type TransactionRepository interface {
	// Upsert inserts the transaction or replaces the financial fields of the existing row.
	// Refunds and the row id are preserved. When SourceUpdatedAt is set and
	// domain.AcceptsSourceUpdate rejects it against the stored row, nothing is written
	// and OutcomeStale is returned.
	Upsert(ctx context.Context, tx *domain.Transaction) (domain.WriteOutcome, error)

	// Update replaces the financial fields of an existing row. It never inserts:
	// OutcomeNotFound when no row exists, OutcomeStale under the same guard as Upsert.
	Update(ctx context.Context, tx *domain.Transaction) (domain.WriteOutcome, error)

	// SetStatus sets status on every row for the external id and returns the match count.
	// A non-nil sourceUpdatedAt advances the stored source timestamp when it is later.
	SetStatus(ctx context.Context, integrationID, externalID string, status domain.TransactionStatus, sourceUpdatedAt *time.Time) (int64, error)

	// ApplyRefund marks the row REFUNDED and records the refund keyed by its id. The
	// refund's CreatedAt advances the stored source timestamp when it is later.
	// Returns false when no row exists.
	ApplyRefund(ctx context.Context, integrationID, externalID string, refund domain.Refund) (bool, error)

	// GetByExternalID retrieves one row; nil when it does not exist
	GetByExternalID(ctx context.Context, integrationID, externalID string) (*domain.Transaction, error)

	// ListByIntegration returns the most recently updated rows first
	ListByIntegration(ctx context.Context, integrationID string, limit int) ([]*domain.Transaction, error)

	// DeleteByIntegration removes every row of an integration
	DeleteByIntegration(ctx context.Context, integrationID string) (int64, error)
}
