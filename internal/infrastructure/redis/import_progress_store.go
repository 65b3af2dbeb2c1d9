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

const importProgressTTL = 7 * 24 * time.Hour

// ImportProgressStore keeps historical import progress in Redis for polling
type ImportProgressStore struct {
	client redis.UniversalClient
}

// NewImportProgressStore creates a Redis backed progress store
func NewImportProgressStore(client redis.UniversalClient) ports.ImportProgressStore {
	return &ImportProgressStore{client: client}
}

func progressKey(integrationID string) string {
	return "import_progress:" + integrationID
}

func (s *ImportProgressStore) Save(ctx context.Context, progress *domain.ImportProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("failed to encode import progress: %w", err)
	}
	if err := s.client.Set(ctx, progressKey(progress.IntegrationID), data, importProgressTTL).Err(); err != nil {
		return fmt.Errorf("failed to save import progress: %w", err)
	}
	return nil
}

func (s *ImportProgressStore) Get(ctx context.Context, integrationID string) (*domain.ImportProgress, error) {
	data, err := s.client.Get(ctx, progressKey(integrationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import progress: %w", err)
	}
	var progress domain.ImportProgress
	if err := json.Unmarshal(data, &progress); err != nil {
		return nil, fmt.Errorf("failed to decode import progress: %w", err)
	}
	return &progress, nil
}
