package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestGetTransactionStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		fulfillment string
		financial   string
		want        TransactionStatus
	}{
		{name: "refunded", financial: "refunded", want: TransactionStatusRefunded},
		{name: "partially refunded", fulfillment: "fulfilled", financial: "partially_refunded", want: TransactionStatusRefunded},
		{name: "voided", financial: "voided", want: TransactionStatusCancelled},
		{name: "paid", fulfillment: "fulfilled", financial: "paid", want: TransactionStatusCompleted},
		{name: "pending", financial: "pending", want: TransactionStatusPending},
		{name: "authorized", financial: "authorized", want: TransactionStatusPending},
		{name: "partially paid", financial: "partially_paid", want: TransactionStatusPending},
		{name: "empty", want: TransactionStatusPending},
		{name: "fulfillment does not matter", fulfillment: "restocked", financial: "pending", want: TransactionStatusPending},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := GetTransactionStatus(tt.fulfillment, tt.financial); got != tt.want {
				t.Errorf("GetTransactionStatus(%q, %q) = %s, want %s", tt.fulfillment, tt.financial, got, tt.want)
			}
		})
	}
}

func TestToCents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "10.00", want: 1000},
		{in: "0.83", want: 83},
		{in: "9.17", want: 917},
		{in: "0.835", want: 84},
		{in: "0.8349", want: 83},
		{in: "-0.835", want: -84},
		{in: "12", want: 1200},
		{in: "", want: 0},
		{in: " 1.5 ", want: 150},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ToCents(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ToCents(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToCents(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ToCents(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatCents(t *testing.T) {
	t.Parallel()

	if got := FormatCents(1000); got != "10.00" {
		t.Errorf("FormatCents(1000) = %q, want 10.00", got)
	}
	if got := FormatCents(83); got != "0.83" {
		t.Errorf("FormatCents(83) = %q, want 0.83", got)
	}
}

func TestUpsertRefundReplacesSameID(t *testing.T) {
	t.Parallel()

	tx := &Transaction{}
	tx.UpsertRefund(Refund{ExternalID: "1", Amount: 100})
	tx.UpsertRefund(Refund{ExternalID: "2", Amount: 50})
	tx.UpsertRefund(Refund{ExternalID: "1", Amount: 120})

	want := []Refund{{ExternalID: "1", Amount: 120}, {ExternalID: "2", Amount: 50}}
	if diff := cmp.Diff(want, tx.Refunds); diff != "" {
		t.Errorf("refunds mismatch (-want +got):\n%s", diff)
	}
}

func TestParseShopifyOrder(t *testing.T) {
	t.Parallel()

	order, err := ParseShopifyOrder([]byte(`{"id": 555, "order_number": 1, "total_price": "10.00", "total_tax": 0.83, "subtotal_price": "9.17", "fulfillment_status": null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ExternalID() != "555" {
		t.Errorf("ExternalID = %q, want 555", order.ExternalID())
	}
	if order.TotalTax != "0.83" {
		t.Errorf("TotalTax = %q, want 0.83", order.TotalTax)
	}

	if _, err := ParseShopifyOrder([]byte(`{"order_number": 1}`)); err == nil {
		t.Error("expected error for missing id")
	}
	if _, err := ParseShopifyOrder([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestParseShopifyOrderTaxRates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rate string
		want float64
	}{
		{name: "quoted decimal", rate: `"0.0905"`, want: 0.0905},
		{name: "bare number", rate: `0.1`, want: 0.1},
		{name: "null", rate: `null`, want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := `{"id": 555, "tax_lines": [{"title": "State Tax", "price": "0.83", "rate": ` + tt.rate + `}],` +
				`"line_items": [{"id": 1, "price": "9.17", "tax_lines": [{"title": "State Tax", "price": "0.83", "rate": ` + tt.rate + `}]}]}`
			order, err := ParseShopifyOrder([]byte(payload))
			if err != nil {
				t.Fatalf("ParseShopifyOrder() error = %v", err)
			}
			if got := order.TaxLines[0].Rate.Float64(); got != tt.want {
				t.Errorf("order tax rate = %v, want %v", got, tt.want)
			}
			if got := order.LineItems[0].TaxLines[0].Rate.Float64(); got != tt.want {
				t.Errorf("line item tax rate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAcceptsSourceUpdate(t *testing.T) {
	t.Parallel()

	at := func(minute int) *time.Time {
		ts := time.Date(2024, 3, 1, 9, minute, 0, 0, time.UTC)
		return &ts
	}

	tests := []struct {
		name     string
		stored   *time.Time
		status   TransactionStatus
		incoming *time.Time
		want     bool
	}{
		{name: "newer event", stored: at(0), status: TransactionStatusPending, incoming: at(5), want: true},
		{name: "older event", stored: at(5), status: TransactionStatusPending, incoming: at(0), want: false},
		{name: "same timestamp replays", stored: at(5), status: TransactionStatusPending, incoming: at(5), want: true},
		{name: "same timestamp on cancelled row", stored: at(5), status: TransactionStatusCancelled, incoming: at(5), want: false},
		{name: "same timestamp on refunded row", stored: at(5), status: TransactionStatusRefunded, incoming: at(5), want: false},
		{name: "newer event after cancel", stored: at(5), status: TransactionStatusCancelled, incoming: at(9), want: true},
		{name: "no stored timestamp", stored: nil, status: TransactionStatusCancelled, incoming: at(0), want: true},
		{name: "no incoming timestamp", stored: at(5), status: TransactionStatusCancelled, incoming: nil, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := AcceptsSourceUpdate(tt.stored, tt.status, tt.incoming); got != tt.want {
				t.Errorf("AcceptsSourceUpdate() = %v, want %v", got, tt.want)
			}
		})
	}
}
