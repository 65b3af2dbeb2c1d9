package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/infrastructure/repository/entity"
	"taxvault-webhook-layer/internal/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate creates or updates the SQL schema. It runs once at startup.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&entity.IntegrationRow{}, &entity.TransactionRow{}, &entity.WebhookEventRow{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SQLIntegrationRepository implements IntegrationRepository using gorm
type SQLIntegrationRepository struct {
	db *gorm.DB
}

// NewSQLIntegrationRepository creates a new SQL integration repository
func NewSQLIntegrationRepository(db *gorm.DB) ports.IntegrationRepository {
	return &SQLIntegrationRepository{db: db}
}

var integrationUpdateColumns = []string{
	"status", "disconnect_reason", "access_token", "shop_domain", "shop_email",
	"customer_email", "shop_owner", "sync_status", "sync_error", "updated_at",
}

// Upsert creates or replaces the integration for (organization, platform, shop)
func (r *SQLIntegrationRepository) Upsert(ctx context.Context, integration *domain.Integration) error {
	now := time.Now().UTC()
	row := entity.IntegrationRowFromDomain(integration)
	row.ID = uuid.NewString()
	row.CreatedAt = now
	row.UpdatedAt = now

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "platform"}, {Name: "shop"}},
		DoUpdates: clause.AssignmentColumns(integrationUpdateColumns),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}

	var saved entity.IntegrationRow
	err = r.db.WithContext(ctx).
		Where("organization_id = ? AND platform = ? AND shop = ?", row.OrganizationID, row.Platform, row.Shop).
		First(&saved).Error
	if err != nil {
		return fmt.Errorf("failed to reload integration: %w", err)
	}

	*integration = *saved.ToDomain()
	return nil
}

// GetByID retrieves an integration by its id
func (r *SQLIntegrationRepository) GetByID(ctx context.Context, id string) (*domain.Integration, error) {
	var row entity.IntegrationRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return row.ToDomain(), nil
}

// ListActiveByShop returns every non-disconnected integration for a shop
func (r *SQLIntegrationRepository) ListActiveByShop(ctx context.Context, platform domain.Platform, shop string) ([]*domain.Integration, error) {
	return r.find(ctx, r.db.WithContext(ctx).
		Where("platform = ? AND shop = ? AND status <> ?", string(platform), shop, string(domain.IntegrationStatusDisconnected)))
}

// ListByStatus returns the integrations of a platform in the given status
func (r *SQLIntegrationRepository) ListByStatus(ctx context.Context, platform domain.Platform, status domain.IntegrationStatus) ([]*domain.Integration, error) {
	return r.find(ctx, r.db.WithContext(ctx).
		Where("platform = ? AND status = ?", string(platform), string(status)))
}

// Update persists status, credentials and sync state
func (r *SQLIntegrationRepository) Update(ctx context.Context, integration *domain.Integration) error {
	row := entity.IntegrationRowFromDomain(integration)
	row.UpdatedAt = time.Now().UTC()

	columns := append([]string{"last_sync_at"}, integrationUpdateColumns...)
	result := r.db.WithContext(ctx).
		Model(&entity.IntegrationRow{}).
		Where("id = ?", integration.ID).
		Select(columns).
		Updates(row)
	if result.Error != nil {
		return fmt.Errorf("failed to update integration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrIntegrationNotFound
	}
	return nil
}

func (r *SQLIntegrationRepository) find(ctx context.Context, query *gorm.DB) ([]*domain.Integration, error) {
	var rows []entity.IntegrationRow
	if err := query.Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	integrations := make([]*domain.Integration, 0, len(rows))
	for i := range rows {
		integrations = append(integrations, rows[i].ToDomain())
	}
	return integrations, nil
}

// SQLTransactionRepository implements TransactionRepository using gorm.
// Atomicity relies on the unique (integration_id, external_id) index.
type SQLTransactionRepository struct {
	db *gorm.DB
}

// NewSQLTransactionRepository creates a new SQL transaction repository
func NewSQLTransactionRepository(db *gorm.DB) ports.TransactionRepository {
	return &SQLTransactionRepository{db: db}
}

var transactionUpdateColumns = []string{
	"organization_id", "total_amount", "tax_amount", "subtotal", "discount_amount",
	"currency", "status", "tax_details", "items", "metadata", "notes",
	"transaction_date", "updated_at",
}

func transactionColumns(tx *domain.Transaction) []string {
	columns := append([]string(nil), transactionUpdateColumns...)
	if tx.SourceUpdatedAt != nil {
		columns = append(columns, "source_updated_ms")
	}
	return columns
}

func (r *SQLTransactionRepository) exists(ctx context.Context, integrationID, externalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.TransactionRow{}).
		Where("integration_id = ? AND external_id = ?", integrationID, externalID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check transaction: %w", err)
	}
	return count > 0, nil
}

// Upsert inserts or updates the row keyed by (integration_id, external_id) in one
// INSERT ... ON CONFLICT statement. The conflict update is skipped when
// domain.AcceptsSourceUpdate rejects tx against the stored row. Every attempt
// carries a fresh id, so reading the stored id back tells an insert from an update
// even when a concurrent delivery inserted first.
func (r *SQLTransactionRepository) Upsert(ctx context.Context, tx *domain.Transaction) (domain.WriteOutcome, error) {
	now := time.Now().UTC()
	row := entity.TransactionRowFromDomain(tx)
	row.ID = uuid.NewString()
	if row.Metadata == nil {
		row.Metadata = map[string]string{}
	}
	row.Refunds = []domain.Refund{}
	row.CreatedAt = now
	row.UpdatedAt = now

	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "integration_id"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns(transactionColumns(tx)),
	}
	if tx.SourceUpdatedAt != nil {
		onConflict.Where = clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL: "(transactions.source_updated_ms < excluded.source_updated_ms OR " +
					"(transactions.source_updated_ms = excluded.source_updated_ms AND transactions.status NOT IN ?))",
				Vars: []interface{}{domain.TerminalStatuses()},
			},
		}}
	}

	result := r.db.WithContext(ctx).Clauses(onConflict).Create(row)
	if result.Error != nil {
		return "", fmt.Errorf("failed to upsert transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.OutcomeStale, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.TransactionRow{}).
		Where("integration_id = ? AND external_id = ?", tx.IntegrationID, tx.ExternalID).
		Pluck("id", &ids).Error
	if err != nil {
		return "", fmt.Errorf("failed to read transaction id: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("failed to read transaction id: %s/%s vanished after upsert", tx.IntegrationID, tx.ExternalID)
	}
	tx.ID = ids[0]
	if ids[0] == row.ID {
		return domain.OutcomeCreated, nil
	}
	return domain.OutcomeUpdated, nil
}

// Update replaces financial fields of an existing row without ever inserting
func (r *SQLTransactionRepository) Update(ctx context.Context, tx *domain.Transaction) (domain.WriteOutcome, error) {
	row := entity.TransactionRowFromDomain(tx)
	row.ID = ""
	if row.Metadata == nil {
		row.Metadata = map[string]string{}
	}
	row.UpdatedAt = time.Now().UTC()

	query := r.db.WithContext(ctx).
		Model(&entity.TransactionRow{}).
		Where("integration_id = ? AND external_id = ?", tx.IntegrationID, tx.ExternalID)
	if tx.SourceUpdatedAt != nil {
		query = query.Where(
			"(source_updated_ms < ? OR (source_updated_ms = ? AND status NOT IN ?))",
			row.SourceUpdatedMs, row.SourceUpdatedMs, domain.TerminalStatuses(),
		)
	}

	result := query.Select(transactionColumns(tx)).Updates(row)
	if result.Error != nil {
		return "", fmt.Errorf("failed to update transaction: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return domain.OutcomeUpdated, nil
	}

	found, err := r.exists(ctx, tx.IntegrationID, tx.ExternalID)
	if err != nil {
		return "", err
	}
	if !found {
		return domain.OutcomeNotFound, nil
	}
	return domain.OutcomeStale, nil
}

// SetStatus sets status on every row for the external id
func (r *SQLTransactionRepository) SetStatus(ctx context.Context, integrationID, externalID string, status domain.TransactionStatus, sourceUpdatedAt *time.Time) (int64, error) {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if sourceUpdatedAt != nil {
		ms := sourceUpdatedAt.UnixMilli()
		updates["source_updated_ms"] = gorm.Expr("CASE WHEN source_updated_ms < ? THEN ? ELSE source_updated_ms END", ms, ms)
	}
	result := r.db.WithContext(ctx).
		Model(&entity.TransactionRow{}).
		Where("integration_id = ? AND external_id = ?", integrationID, externalID).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to set transaction status: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ApplyRefund marks the row REFUNDED and records the refund under a row lock
func (r *SQLTransactionRepository) ApplyRefund(ctx context.Context, integrationID, externalID string, refund domain.Refund) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var row entity.TransactionRow
		err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("integration_id = ? AND external_id = ?", integrationID, externalID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		tx := row.ToDomain()
		tx.UpsertRefund(refund)
		if tx.Metadata == nil {
			tx.Metadata = map[string]string{}
		}
		tx.Metadata["lastRefundId"] = refund.ExternalID

		updated := &entity.TransactionRow{
			Status:          string(domain.TransactionStatusRefunded),
			Refunds:         tx.Refunds,
			Metadata:        tx.Metadata,
			SourceUpdatedMs: row.SourceUpdatedMs,
			UpdatedAt:       time.Now().UTC(),
		}
		if refund.CreatedAt != nil && refund.CreatedAt.UnixMilli() > updated.SourceUpdatedMs {
			updated.SourceUpdatedMs = refund.CreatedAt.UnixMilli()
		}
		return db.Model(&entity.TransactionRow{}).
			Where("id = ?", row.ID).
			Select("status", "refunds", "metadata", "source_updated_ms", "updated_at").
			Updates(updated).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply refund: %w", err)
	}
	return found, nil
}

// GetByExternalID retrieves one row by its key
func (r *SQLTransactionRepository) GetByExternalID(ctx context.Context, integrationID, externalID string) (*domain.Transaction, error) {
	var row entity.TransactionRow
	err := r.db.WithContext(ctx).
		Where("integration_id = ? AND external_id = ?", integrationID, externalID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return row.ToDomain(), nil
}

// ListByIntegration returns the most recently updated rows first
func (r *SQLTransactionRepository) ListByIntegration(ctx context.Context, integrationID string, limit int) ([]*domain.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Order("updated_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []entity.TransactionRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	transactions := make([]*domain.Transaction, 0, len(rows))
	for i := range rows {
		transactions = append(transactions, rows[i].ToDomain())
	}
	return transactions, nil
}

// DeleteByIntegration removes every row of an integration
func (r *SQLTransactionRepository) DeleteByIntegration(ctx context.Context, integrationID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("integration_id = ?", integrationID).
		Delete(&entity.TransactionRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete transactions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// SQLWebhookEventLog implements WebhookEventLog using gorm
type SQLWebhookEventLog struct {
	db *gorm.DB
}

// NewSQLWebhookEventLog creates a new SQL webhook event log
func NewSQLWebhookEventLog(db *gorm.DB) ports.WebhookEventLog {
	return &SQLWebhookEventLog{db: db}
}

// LogWebhook logs a webhook event
func (r *SQLWebhookEventLog) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := &entity.WebhookEventRow{
		ID:         id,
		WebhookID:  event.WebhookID,
		Platform:   string(event.Platform),
		Topic:      event.Topic,
		Shop:       event.Shop,
		Payload:    string(event.Payload),
		Verified:   event.Verified,
		Outcome:    event.Outcome,
		ReceivedAt: event.ReceivedAt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	return nil
}
