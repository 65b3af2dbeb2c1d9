package application

import (
	"context"
	"testing"
	"time"

	"taxvault-webhook-layer/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func mustParseOrder(t *testing.T, body string) *domain.ShopifyOrder {
	t.Helper()
	order, err := domain.ParseShopifyOrder([]byte(body))
	if err != nil {
		t.Fatalf("ParseShopifyOrder() error = %v", err)
	}
	return order
}

func TestBuildTransaction(t *testing.T) {
	t.Parallel()

	order := mustParseOrder(t, `{
		"id": 555,
		"order_number": 1001,
		"name": "#1001",
		"currency": "EUR",
		"total_price": "10.00",
		"total_tax": "0.83",
		"subtotal_price": "9.17",
		"total_discounts": 0.5,
		"financial_status": "paid",
		"fulfillment_status": null,
		"note": "gift",
		"created_at": "2024-03-01T10:00:00Z",
		"updated_at": "2024-03-01T10:05:00+01:00",
		"tax_lines": [{"title": "VAT", "price": "0.83", "rate": 0.1}],
		"line_items": [{"id": 9, "title": "Mug", "sku": "MUG-1", "quantity": 2, "price": "4.585", "taxable": true}]
	}`)
	integration := connectedIntegration("int_1", testShop)

	tx, err := BuildTransaction(integration, order)
	if err != nil {
		t.Fatalf("BuildTransaction() error = %v", err)
	}

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	want := &domain.Transaction{
		ExternalID:     "555",
		IntegrationID:  "int_1",
		OrganizationID: "org_1",
		TotalAmount:    1000,
		TaxAmount:      83,
		Subtotal:       917,
		DiscountAmount: 50,
		Currency:       "EUR",
		Status:         domain.TransactionStatusCompleted,
		TaxDetails:     []domain.TaxLine{{Type: "VAT", Amount: 83, Rate: 0.1}},
		Items: []domain.LineItem{
			{ExternalID: "9", Title: "Mug", SKU: "MUG-1", Quantity: 2, Price: 459, Taxable: true},
		},
		Metadata: map[string]string{
			"orderNumber":     "1001",
			"name":            "#1001",
			"financialStatus": "paid",
		},
		Notes:           "gift",
		TransactionDate: &created,
		SourceUpdatedAt: &updated,
	}

	opts := cmp.Comparer(func(a, b *time.Time) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Equal(*b)
	})
	if diff := cmp.Diff(want, tx, opts); diff != "" {
		t.Errorf("BuildTransaction() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTransaction_RejectsBadAmount(t *testing.T) {
	t.Parallel()

	order := mustParseOrder(t, `{"id": 1, "total_price": "ten"}`)
	_, err := BuildTransaction(connectedIntegration("int_1", testShop), order)

	if _, ok := err.(*domain.ValidationError); !ok {
		t.Fatalf("BuildTransaction() error = %v, want *domain.ValidationError", err)
	}
}

func TestOrderReconciler_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newFakeTransactionRepo()
	r := NewOrderReconciler(repo, zerolog.Nop())
	integration := connectedIntegration("int_1", testShop)

	update := mustParseOrder(t, `{"id": 7, "total_price": "5.00", "financial_status": "paid"}`)
	if got, err := r.ReconcileUpdate(ctx, integration, update); err != nil || got != domain.OutcomeNotFound {
		t.Fatalf("update before create = %q, %v; want not_found", got, err)
	}
	if _, ok := repo.rows[txKey("int_1", "7")]; ok {
		t.Fatal("update must not synthesize a transaction")
	}

	create := mustParseOrder(t, `{"id": 7, "total_price": "5.00", "financial_status": "pending", "updated_at": "2024-01-01T00:00:00Z"}`)
	if got, _ := r.ReconcileCreate(ctx, integration, create); got != domain.OutcomeCreated {
		t.Fatalf("create = %q, want created", got)
	}
	if got, _ := r.ReconcileCreate(ctx, integration, create); got != domain.OutcomeUpdated {
		t.Fatalf("redelivered create = %q, want updated", got)
	}

	newer := mustParseOrder(t, `{"id": 7, "total_price": "6.00", "financial_status": "paid", "updated_at": "2024-01-02T00:00:00Z"}`)
	if got, _ := r.ReconcileUpdate(ctx, integration, newer); got != domain.OutcomeUpdated {
		t.Fatalf("update = %q, want updated", got)
	}
	if got, _ := r.ReconcileUpdate(ctx, integration, create); got != domain.OutcomeStale {
		t.Fatalf("older update = %q, want stale", got)
	}
	row := repo.rows[txKey("int_1", "7")]
	if row.TotalAmount != 600 || row.Status != domain.TransactionStatusCompleted {
		t.Errorf("row = %d %s, want 600 COMPLETED", row.TotalAmount, row.Status)
	}

	refund, err := domain.ParseShopifyRefund([]byte(`{
		"id": 70, "order_id": 7, "note": "damaged",
		"refund_line_items": [{"quantity": 1, "subtotal": "2.00", "total_tax": "0.20"}],
		"transactions": [
			{"id": 1, "kind": "refund", "status": "success", "amount": "2.20"},
			{"id": 2, "kind": "refund", "status": "failure", "amount": "2.20"}
		]
	}`))
	if err != nil {
		t.Fatalf("ParseShopifyRefund() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if got, _ := r.ReconcileRefund(ctx, integration, refund); got != domain.OutcomeUpdated {
			t.Fatalf("refund = %q, want updated", got)
		}
	}
	row = repo.rows[txKey("int_1", "7")]
	wantRefunds := []domain.Refund{{ExternalID: "70", Amount: 220, TaxAmount: 20, Note: "damaged"}}
	if diff := cmp.Diff(wantRefunds, row.Refunds); diff != "" {
		t.Errorf("refunds mismatch (-want +got):\n%s", diff)
	}
	if row.Status != domain.TransactionStatusRefunded {
		t.Errorf("Status = %s, want REFUNDED", row.Status)
	}

	if got, _ := r.ReconcileCancel(ctx, integration, create); got != domain.OutcomeUpdated {
		t.Fatalf("cancel = %q, want updated", got)
	}
	if repo.rows[txKey("int_1", "7")].Status != domain.TransactionStatusCancelled {
		t.Error("cancel should set CANCELLED")
	}
	unknown := mustParseOrder(t, `{"id": 8}`)
	if got, _ := r.ReconcileCancel(ctx, integration, unknown); got != domain.OutcomeNotFound {
		t.Errorf("cancel unknown = %q, want not_found", got)
	}
}

func TestOrderReconciler_CancelledOrderIgnoresRedeliveredCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cancel string
	}{
		{
			name:   "cancel stamped later",
			cancel: `{"id": 7, "financial_status": "paid", "cancelled_at": "2024-01-03T00:00:00Z", "updated_at": "2024-01-03T00:00:00Z"}`,
		},
		{
			name:   "cancel stamped only by cancelled_at",
			cancel: `{"id": 7, "financial_status": "paid", "cancelled_at": "2024-01-03T00:00:00Z"}`,
		},
		{
			name:   "cancel sharing the create timestamp",
			cancel: `{"id": 7, "financial_status": "paid", "updated_at": "2024-01-01T00:00:00Z"}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			repo := newFakeTransactionRepo()
			r := NewOrderReconciler(repo, zerolog.Nop())
			integration := connectedIntegration("int_1", testShop)

			create := mustParseOrder(t, `{"id": 7, "total_price": "5.00", "financial_status": "paid", "updated_at": "2024-01-01T00:00:00Z"}`)
			if got, _ := r.ReconcileCreate(ctx, integration, create); got != domain.OutcomeCreated {
				t.Fatalf("create = %q, want created", got)
			}
			if got, _ := r.ReconcileCancel(ctx, integration, mustParseOrder(t, tt.cancel)); got != domain.OutcomeUpdated {
				t.Fatalf("cancel = %q, want updated", got)
			}

			if got, _ := r.ReconcileCreate(ctx, integration, create); got != domain.OutcomeStale {
				t.Errorf("redelivered create = %q, want stale", got)
			}
			if got, _ := r.ReconcileUpdate(ctx, integration, create); got != domain.OutcomeStale {
				t.Errorf("redelivered update = %q, want stale", got)
			}
			if status := repo.rows[txKey("int_1", "7")].Status; status != domain.TransactionStatusCancelled {
				t.Errorf("Status = %s, want CANCELLED", status)
			}
		})
	}
}
