package domain

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Amount is a decimal money value as Shopify sends it. It accepts both
// quoted strings and bare JSON numbers.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(data)
	return nil
}

// Cents converts the amount to integer cents
func (a Amount) Cents() (int64, error) {
	return ToCents(string(a))
}

// Float64 returns the amount as a float, zero when empty or not a number. Tax
// rates are fractions ("0.0905") and are kept as floats on the ledger.
func (a Amount) Float64() float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(string(a)))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ShopifyTaxLine is a tax_lines entry on an order or line item
type ShopifyTaxLine struct {
	Title string `json:"title"`
	Price Amount `json:"price"`
	Rate  Amount `json:"rate"`
}

// ShopifyLineItem is a line_items entry on an order
type ShopifyLineItem struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	SKU      string           `json:"sku"`
	Quantity int              `json:"quantity"`
	Price    Amount           `json:"price"`
	Taxable  bool             `json:"taxable"`
	TaxLines []ShopifyTaxLine `json:"tax_lines"`
}

// ShopifyOrder is the order body delivered by orders/* webhooks and returned by the
// orders listing used for historical import
type ShopifyOrder struct {
	ID                int64             `json:"id"`
	OrderNumber       int64             `json:"order_number"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	Currency          string            `json:"currency"`
	TotalPrice        Amount            `json:"total_price"`
	TotalTax          Amount            `json:"total_tax"`
	SubtotalPrice     Amount            `json:"subtotal_price"`
	TotalDiscounts    Amount            `json:"total_discounts"`
	FinancialStatus   string            `json:"financial_status"`
	FulfillmentStatus string            `json:"fulfillment_status"`
	SourceName        string            `json:"source_name"`
	Note              string            `json:"note"`
	CancelReason      string            `json:"cancel_reason"`
	CancelledAt       *time.Time        `json:"cancelled_at"`
	CreatedAt         *time.Time        `json:"created_at"`
	UpdatedAt         *time.Time        `json:"updated_at"`
	TaxLines          []ShopifyTaxLine  `json:"tax_lines"`
	LineItems         []ShopifyLineItem `json:"line_items"`
}

// ExternalID is the order id as stored on the ledger
func (o *ShopifyOrder) ExternalID() string {
	return strconv.FormatInt(o.ID, 10)
}

// ShopifyRefundLineItem is a refund_line_items entry
type ShopifyRefundLineItem struct {
	Quantity int    `json:"quantity"`
	Subtotal Amount `json:"subtotal"`
	TotalTax Amount `json:"total_tax"`
}

// ShopifyRefundTransaction is a money movement attached to a refund
type ShopifyRefundTransaction struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

// ShopifyRefund is the body delivered by refunds/create
type ShopifyRefund struct {
	ID              int64                      `json:"id"`
	OrderID         int64                      `json:"order_id"`
	Note            string                     `json:"note"`
	CreatedAt       *time.Time                 `json:"created_at"`
	RefundLineItems []ShopifyRefundLineItem    `json:"refund_line_items"`
	Transactions    []ShopifyRefundTransaction `json:"transactions"`
}

// ParseShopifyOrder decodes an order body. The order id is required.
func ParseShopifyOrder(payload []byte) (*ShopifyOrder, error) {
	var order ShopifyOrder
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, NewValidationError("payload", "malformed order payload: "+err.Error())
	}
	if order.ID == 0 {
		return nil, NewValidationError("id", "order id is required")
	}
	return &order, nil
}

// ParseShopifyRefund decodes a refund body. Refund and order ids are required.
func ParseShopifyRefund(payload []byte) (*ShopifyRefund, error) {
	var refund ShopifyRefund
	if err := json.Unmarshal(payload, &refund); err != nil {
		return nil, NewValidationError("payload", "malformed refund payload: "+err.Error())
	}
	if refund.ID == 0 {
		return nil, NewValidationError("id", "refund id is required")
	}
	if refund.OrderID == 0 {
		return nil, NewValidationError("order_id", "refund order_id is required")
	}
	return &refund, nil
}
