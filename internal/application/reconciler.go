package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"taxvault-webhook-layer/internal/domain"
	"taxvault-webhook-layer/internal/ports"

	"github.com/rs/zerolog"
)

// OrderReconciler maps platform orders and refunds onto the transaction ledger.
// Webhook handlers and the historical import share it so both paths write
// identical rows.
type OrderReconciler struct {
	transactions ports.TransactionRepository
	logger       zerolog.Logger
}

// NewOrderReconciler creates a new order reconciler
func NewOrderReconciler(transactions ports.TransactionRepository, logger zerolog.Logger) *OrderReconciler {
	return &OrderReconciler{
		transactions: transactions,
		logger:       logger,
	}
}

// BuildTransaction converts an order into a ledger transaction for integration
func BuildTransaction(integration *domain.Integration, order *domain.ShopifyOrder) (*domain.Transaction, error) {
	total, err := order.TotalPrice.Cents()
	if err != nil {
		return nil, domain.NewValidationError("total_price", err.Error())
	}
	tax, err := order.TotalTax.Cents()
	if err != nil {
		return nil, domain.NewValidationError("total_tax", err.Error())
	}
	subtotal, err := order.SubtotalPrice.Cents()
	if err != nil {
		return nil, domain.NewValidationError("subtotal_price", err.Error())
	}
	discount, err := order.TotalDiscounts.Cents()
	if err != nil {
		return nil, domain.NewValidationError("total_discounts", err.Error())
	}

	taxDetails := make([]domain.TaxLine, 0, len(order.TaxLines))
	for _, line := range order.TaxLines {
		amount, err := line.Price.Cents()
		if err != nil {
			return nil, domain.NewValidationError("tax_lines.price", err.Error())
		}
		taxDetails = append(taxDetails, domain.TaxLine{Type: line.Title, Amount: amount, Rate: line.Rate.Float64()})
	}

	items := make([]domain.LineItem, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		price, err := li.Price.Cents()
		if err != nil {
			return nil, domain.NewValidationError("line_items.price", err.Error())
		}
		items = append(items, domain.LineItem{
			ExternalID: strconv.FormatInt(li.ID, 10),
			Title:      li.Title,
			SKU:        li.SKU,
			Quantity:   li.Quantity,
			Price:      price,
			Taxable:    li.Taxable,
		})
	}

	metadata := map[string]string{
		"orderNumber": strconv.FormatInt(order.OrderNumber, 10),
	}
	setIf := func(key, value string) {
		if value != "" {
			metadata[key] = value
		}
	}
	setIf("name", order.Name)
	setIf("financialStatus", order.FinancialStatus)
	setIf("fulfillmentStatus", order.FulfillmentStatus)
	setIf("sourceName", order.SourceName)
	setIf("cancelReason", order.CancelReason)
	if order.CancelledAt != nil {
		metadata["cancelledAt"] = order.CancelledAt.UTC().Format(time.RFC3339)
	}

	tx := &domain.Transaction{
		ExternalID:      order.ExternalID(),
		IntegrationID:   integration.ID,
		OrganizationID:  integration.OrganizationID,
		TotalAmount:     total,
		TaxAmount:       tax,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		Currency:        order.Currency,
		Status:          domain.GetTransactionStatus(order.FulfillmentStatus, order.FinancialStatus),
		TaxDetails:      taxDetails,
		Items:           items,
		Metadata:        metadata,
		Notes:           order.Note,
		TransactionDate: order.CreatedAt,
	}
	if order.UpdatedAt != nil {
		ts := order.UpdatedAt.UTC()
		tx.SourceUpdatedAt = &ts
	}
	return tx, nil
}

// ReconcileCreate upserts the order so a redelivered create converges on one row
func (r *OrderReconciler) ReconcileCreate(ctx context.Context, integration *domain.Integration, order *domain.ShopifyOrder) (domain.WriteOutcome, error) {
	tx, err := BuildTransaction(integration, order)
	if err != nil {
		return "", err
	}
	outcome, err := r.transactions.Upsert(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("failed to upsert transaction: %w", err)
	}
	r.logOutcome(integration, tx.ExternalID, outcome)
	return outcome, nil
}

// ReconcileUpdate replaces the financial fields of an existing row. A missing row
// is reported, never synthesized.
func (r *OrderReconciler) ReconcileUpdate(ctx context.Context, integration *domain.Integration, order *domain.ShopifyOrder) (domain.WriteOutcome, error) {
	tx, err := BuildTransaction(integration, order)
	if err != nil {
		return "", err
	}
	outcome, err := r.transactions.Update(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("failed to update transaction: %w", err)
	}
	r.logOutcome(integration, tx.ExternalID, outcome)
	return outcome, nil
}

// ReconcileCancel marks every row of the order CANCELLED. The cancellation's
// timestamp becomes the row's source timestamp so older creates and updates
// delivered afterwards are stale.
func (r *OrderReconciler) ReconcileCancel(ctx context.Context, integration *domain.Integration, order *domain.ShopifyOrder) (domain.WriteOutcome, error) {
	source := order.UpdatedAt
	if source == nil {
		source = order.CancelledAt
	}
	if source != nil {
		ts := source.UTC()
		source = &ts
	}
	n, err := r.transactions.SetStatus(ctx, integration.ID, order.ExternalID(), domain.TransactionStatusCancelled, source)
	if err != nil {
		return "", fmt.Errorf("failed to cancel transaction: %w", err)
	}
	outcome := domain.OutcomeUpdated
	if n == 0 {
		outcome = domain.OutcomeNotFound
	}
	r.logOutcome(integration, order.ExternalID(), outcome)
	return outcome, nil
}

// ReconcileRefund marks the order REFUNDED and records the refund once per refund id
func (r *OrderReconciler) ReconcileRefund(ctx context.Context, integration *domain.Integration, refund *domain.ShopifyRefund) (domain.WriteOutcome, error) {
	record, err := buildRefund(refund)
	if err != nil {
		return "", err
	}
	externalID := strconv.FormatInt(refund.OrderID, 10)
	found, err := r.transactions.ApplyRefund(ctx, integration.ID, externalID, record)
	if err != nil {
		return "", fmt.Errorf("failed to apply refund: %w", err)
	}
	outcome := domain.OutcomeUpdated
	if !found {
		outcome = domain.OutcomeNotFound
	}
	r.logOutcome(integration, externalID, outcome)
	return outcome, nil
}

// buildRefund sums successful refund transactions for the amount and refunded line
// item taxes for the tax part
func buildRefund(refund *domain.ShopifyRefund) (domain.Refund, error) {
	record := domain.Refund{
		ExternalID: strconv.FormatInt(refund.ID, 10),
		Note:       refund.Note,
		CreatedAt:  refund.CreatedAt,
	}
	for _, t := range refund.Transactions {
		if t.Kind != "refund" || (t.Status != "" && t.Status != "success") {
			continue
		}
		amount, err := t.Amount.Cents()
		if err != nil {
			return domain.Refund{}, domain.NewValidationError("transactions.amount", err.Error())
		}
		record.Amount += amount
	}
	for _, li := range refund.RefundLineItems {
		tax, err := li.TotalTax.Cents()
		if err != nil {
			return domain.Refund{}, domain.NewValidationError("refund_line_items.total_tax", err.Error())
		}
		record.TaxAmount += tax
	}
	return record, nil
}

func (r *OrderReconciler) logOutcome(integration *domain.Integration, externalID string, outcome domain.WriteOutcome) {
	event := r.logger.Info()
	switch outcome {
	case domain.OutcomeNotFound:
		event = r.logger.Warn()
	case domain.OutcomeStale:
		event = r.logger.Debug()
	}
	event.
		Str("integrationId", integration.ID).
		Str("externalId", externalID).
		Str("outcome", string(outcome)).
		Msg("Reconciled order")
}
