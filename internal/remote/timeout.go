package remote

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
)

// DefaultFetchTimeout bounds reads made for display.
const DefaultFetchTimeout = 10 * time.Second

type fetchTimeout struct {
	Store
	timeout time.Duration
}

// WithFetchTimeout wraps store so that ListTransactions, LineItems and Ping
// fail with SYNC_TIMEOUT when they take longer than d. Writes pass through
// unchanged; a sync pass bounds each write on its own.
func WithFetchTimeout(store Store, d time.Duration) Store {
	if d <= 0 {
		d = DefaultFetchTimeout
	}
	return &fetchTimeout{Store: store, timeout: d}
}

func (f *fetchTimeout) ListTransactions(ctx context.Context, filter Filter) ([]models.TransactionHeader, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	headers, err := f.Store.ListTransactions(ctx, filter)
	return headers, f.check(ctx, "list transactions", err)
}

func (f *fetchTimeout) LineItems(ctx context.Context, transactionID string) ([]models.TransactionLineItem, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	items, err := f.Store.LineItems(ctx, transactionID)
	return items, f.check(ctx, "fetch line items", err)
}

func (f *fetchTimeout) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.check(ctx, "ping", f.Store.Ping(ctx))
}

func (f *fetchTimeout) check(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrSyncTimeout, op+" timed out after "+f.timeout.String(), err)
	}
	return err
}
