package domain

import "time"

// TransactionStatus is the ledger state of a transaction
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusRefunded  TransactionStatus = "REFUNDED"
)

// IsTerminal reports whether the status ends the order lifecycle
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCancelled || s == TransactionStatusRefunded
}

// TerminalStatuses lists the statuses for which IsTerminal is true
func TerminalStatuses() []string {
	return []string{string(TransactionStatusCancelled), string(TransactionStatusRefunded)}
}

// TaxLine is one entry of a transaction's tax breakdown. Amount is in cents.
type TaxLine struct {
	Type   string  `json:"type" bson:"type"`
	Amount int64   `json:"amount" bson:"amount"`
	Rate   float64 `json:"rate,omitempty" bson:"rate,omitempty"`
}

// LineItem is a purchased item carried on a transaction. Price is in cents.
type LineItem struct {
	ExternalID string `json:"externalId" bson:"externalId"`
	Title      string `json:"title" bson:"title"`
	SKU        string `json:"sku,omitempty" bson:"sku,omitempty"`
	Quantity   int    `json:"quantity" bson:"quantity"`
	Price      int64  `json:"price" bson:"price"`
	Taxable    bool   `json:"taxable" bson:"taxable"`
}

// Refund records a platform refund against a transaction, keyed by its platform id
type Refund struct {
	ExternalID string     `json:"externalId" bson:"externalId"`
	Amount     int64      `json:"amount" bson:"amount"`
	TaxAmount  int64      `json:"taxAmount" bson:"taxAmount"`
	Note       string     `json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
}

// Transaction is the tax ledger entry for one platform order.
// (IntegrationID, ExternalID) is unique.
type Transaction struct {
	ID              string            `json:"id"`
	ExternalID      string            `json:"externalId"`
	IntegrationID   string            `json:"integrationId"`
	OrganizationID  string            `json:"organizationId"`
	TotalAmount     int64             `json:"totalAmount"`
	TaxAmount       int64             `json:"taxAmount"`
	Subtotal        int64             `json:"subtotal"`
	DiscountAmount  int64             `json:"discountAmount"`
	Currency        string            `json:"currency"`
	Status          TransactionStatus `json:"status"`
	TaxDetails      []TaxLine         `json:"taxDetails"`
	Items           []LineItem        `json:"items"`
	Metadata        map[string]string `json:"metadata"`
	Notes           string            `json:"notes,omitempty"`
	Refunds         []Refund          `json:"refunds,omitempty"`
	TransactionDate *time.Time        `json:"transactionDate,omitempty"`
	SourceUpdatedAt *time.Time        `json:"sourceUpdatedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// WriteOutcome describes what a ledger write did
type WriteOutcome string

const (
	OutcomeCreated  WriteOutcome = "created"
	OutcomeUpdated  WriteOutcome = "updated"
	OutcomeStale    WriteOutcome = "stale"
	OutcomeNotFound WriteOutcome = "not_found"
	OutcomeIgnored  WriteOutcome = "ignored"
)

// GetTransactionStatus derives the ledger status from the platform order statuses.
// Only the financial status decides the result; fulfillment is accepted for parity
// with the platform payload.
func GetTransactionStatus(fulfillmentStatus, financialStatus string) TransactionStatus {
	switch financialStatus {
	case "refunded", "partially_refunded":
		return TransactionStatusRefunded
	case "voided":
		return TransactionStatusCancelled
	case "paid":
		return TransactionStatusCompleted
	default:
		return TransactionStatusPending
	}
}

// AcceptsSourceUpdate reports whether an order event stamped incoming may replace a
// row whose source timestamp is stored and whose status is status. Older events are
// rejected; an event with the same timestamp never reopens a cancelled or refunded
// row. Without timestamps on both sides the last write wins.
func AcceptsSourceUpdate(stored *time.Time, status TransactionStatus, incoming *time.Time) bool {
	if incoming == nil || stored == nil {
		return true
	}
	if stored.Equal(*incoming) {
		return !status.IsTerminal()
	}
	return stored.Before(*incoming)
}

// LaterSource returns the later of two source timestamps, nil when both are nil
func LaterSource(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}

// UpsertRefund records r on the transaction, replacing an existing refund with the same id
func (t *Transaction) UpsertRefund(r Refund) {
	for i := range t.Refunds {
		if t.Refunds[i].ExternalID == r.ExternalID {
			t.Refunds[i] = r
			return
		}
	}
	t.Refunds = append(t.Refunds, r)
}
