// Package models provides data model definitions for the POS core.
package models

import (
	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle status of a sale on the remote system.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// TransactionHeader is the header row of a sale.
// ID is generated on the device when the payload is assembled and is the
// remote primary key, so replaying the same header never creates a second row.
type TransactionHeader struct {
	ID             string            `json:"id"`
	UserID         *string           `json:"user_id"`
	CashRegisterID *string           `json:"cash_register_id"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	Discount       decimal.Decimal   `json:"discount"`
	Status         TransactionStatus `json:"status"`
	PaymentMethod  *string           `json:"payment_method"`
	TableNumber    *string           `json:"table_number"`
	CustomerID     *string           `json:"customer_id"`
	CreatedAt      int64             `json:"created_at"` // epoch ms, time of sale
}

// TableName returns the remote table name for TransactionHeader.
func (TransactionHeader) TableName() string {
	return "transactions"
}

// HasUser reports whether the header is attributed to a user.
func (h *TransactionHeader) HasUser() bool {
	return h.UserID != nil && *h.UserID != ""
}

// TransactionLineItem is one line of a sale.
// A nil ProductID marks a custom item that has no catalog product behind it.
type TransactionLineItem struct {
	LineNo              int             `json:"line_no"`
	ProductID           *string         `json:"product_id"`
	ProductNameSnapshot string          `json:"product_name_snapshot"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	UnitCostAtSale      decimal.Decimal `json:"unit_cost_at_sale"`
}

// TableName returns the remote table name for TransactionLineItem.
func (TransactionLineItem) TableName() string {
	return "transaction_items"
}

// IsCustom reports whether the line is a manual item outside the catalog.
func (i *TransactionLineItem) IsCustom() bool {
	return i.ProductID == nil
}

// Subtotal returns quantity * unit price.
func (i *TransactionLineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}

// Clone returns a deep copy of the header.
func (h TransactionHeader) Clone() TransactionHeader {
	c := h
	c.UserID = cloneString(h.UserID)
	c.CashRegisterID = cloneString(h.CashRegisterID)
	c.PaymentMethod = cloneString(h.PaymentMethod)
	c.TableNumber = cloneString(h.TableNumber)
	c.CustomerID = cloneString(h.CustomerID)
	return c
}

// Clone returns a deep copy of the line item.
func (i TransactionLineItem) Clone() TransactionLineItem {
	c := i
	c.ProductID = cloneString(i.ProductID)
	return c
}
