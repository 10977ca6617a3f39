// Package remote is the client side of the remote system of record that
// completed sales are reconciled against.
package remote

import (
	"context"
	"time"

	"github.com/fitri99main/itongPOS-sub000/internal/models"
)

// Store is the remote persistence service.
//
// InsertTransaction is an upsert by header id: inserting a header whose id
// already exists succeeds without changing the stored row, except that a
// missing user id is filled in from the new header. InsertLineItems is
// idempotent per (transaction id, line number). Together they make replaying
// a queued sale safe after a crash or a lost acknowledgement.
//
// Errors carry REMOTE_REJECTED when the service refused the data and retrying
// the same payload cannot succeed, and REMOTE_UNAVAILABLE otherwise.
type Store interface {
	InsertTransaction(ctx context.Context, header models.TransactionHeader) error
	InsertLineItems(ctx context.Context, transactionID string, items []models.TransactionLineItem) error
	ListTransactions(ctx context.Context, filter Filter) ([]models.TransactionHeader, error)
	LineItems(ctx context.Context, transactionID string) ([]models.TransactionLineItem, error)
	Ping(ctx context.Context) error
}

// Filter selects transactions. Zero fields do not filter.
type Filter struct {
	CashRegisterID string
	UserID         string
	Status         models.TransactionStatus
	Since          time.Time
	Until          time.Time
	Limit          int
}

// DefaultListLimit caps ListTransactions when Filter.Limit is zero.
const DefaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) matches(h *models.TransactionHeader) bool {
	if f.CashRegisterID != "" && models.StringValue(h.CashRegisterID) != f.CashRegisterID {
		return false
	}
	if f.UserID != "" && models.StringValue(h.UserID) != f.UserID {
		return false
	}
	if f.Status != "" && h.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && h.CreatedAt < f.Since.UnixMilli() {
		return false
	}
	if !f.Until.IsZero() && h.CreatedAt >= f.Until.UnixMilli() {
		return false
	}
	return true
}

// lineNumber returns the stored line number of items[i].
// Payloads queued before line numbers existed are numbered by position.
func lineNumber(items []models.TransactionLineItem, i int) int {
	if items[i].LineNo > 0 {
		return items[i].LineNo
	}
	return i + 1
}

// WriteSale performs the two-step remote write of a sale: the header, then
// its line items tagged with the header id. Both steps are safe to repeat.
func WriteSale(ctx context.Context, store Store, header models.TransactionHeader, items []models.TransactionLineItem) error {
	if err := store.InsertTransaction(ctx, header); err != nil {
		return err
	}
	return store.InsertLineItems(ctx, header.ID, items)
}
