package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const healthRecordTTL = 30 * 24 * time.Hour

// HealthStore keeps webhook health records and failure counters in Redis so every
// instance and the scheduler see the same state
type HealthStore struct {
	client redis.UniversalClient
	prefix string
}

// NewHealthStore creates a Redis backed health store
func NewHealthStore(client redis.UniversalClient) ports.HealthStore {
	return &HealthStore{client: client, prefix: "webhook_health"}
}

func (s *HealthStore) failuresKey(integrationID string) string {
	return fmt.Sprintf("%s:%s:failures", s.prefix, integrationID)
}

func (s *HealthStore) recordKey(integrationID string) string {
	return fmt.Sprintf("%s:%s:record", s.prefix, integrationID)
}

// IncrementFailures atomically bumps the consecutive failure counter
func (s *HealthStore) IncrementFailures(ctx context.Context, integrationID string) (int64, error) {
	n, err := s.client.Incr(ctx, s.failuresKey(integrationID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment failures: %w", err)
	}
	return n, nil
}

// ResetFailures clears the consecutive failure counter
func (s *HealthStore) ResetFailures(ctx context.Context, integrationID string) error {
	if err := s.client.Del(ctx, s.failuresKey(integrationID)).Err(); err != nil {
		return fmt.Errorf("failed to reset failures: %w", err)
	}
	return nil
}

// SaveRecord stores the latest health record
func (s *HealthStore) SaveRecord(ctx context.Context, record *domain.HealthRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode health record: %w", err)
	}
	if err := s.client.Set(ctx, s.recordKey(record.IntegrationID), data, healthRecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to save health record: %w", err)
	}
	return nil
}

// GetRecord returns the latest health record or nil
func (s *HealthStore) GetRecord(ctx context.Context, integrationID string) (*domain.HealthRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(integrationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get health record: %w", err)
	}
	var record domain.HealthRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode health record: %w", err)
	}
	return &record, nil
}
