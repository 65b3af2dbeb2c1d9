package ports

import (
	"context"

	"taxvault-webhook-layer/internal/domain"
)

// HealthStore keeps webhook health state in storage shared by every instance
type HealthStore interface {
	IncrementFailures(ctx context.Context, integrationID string) (int64, error)
	ResetFailures(ctx context.Context, integrationID string) error
	SaveRecord(ctx context.Context, record *domain.HealthRecord) error
	// GetRecord returns the last saved record; nil when none exists
	GetRecord(ctx context.Context, integrationID string) (*domain.HealthRecord, error)
}

// ImportProgressStore keeps historical import progress for polling
type ImportProgressStore interface {
	Save(ctx context.Context, progress *domain.ImportProgress) error
	// Get returns the progress of the last import; nil when none exists
	Get(ctx context.Context, integrationID string) (*domain.ImportProgress, error)
}
