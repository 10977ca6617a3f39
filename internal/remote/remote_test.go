package remote

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/uuid"
)

func sampleHeader(createdAt int64) models.TransactionHeader {
	return models.TransactionHeader{
		ID:             uuid.NewTransactionID(),
		UserID:         models.StringPtr("cashier-1"),
		CashRegisterID: models.StringPtr("REG-01"),
		TotalAmount:    decimal.RequireFromString("50000"),
		Discount:       decimal.Zero,
		Status:         models.TransactionStatusCompleted,
		PaymentMethod:  models.StringPtr("cash"),
		CreatedAt:      createdAt,
	}
}

func sampleItems() []models.TransactionLineItem {
	return []models.TransactionLineItem{
		{LineNo: 1, ProductID: models.StringPtr("p-1"), ProductNameSnapshot: "Nasi Goreng", Quantity: 2, UnitPrice: decimal.RequireFromString("15000"), UnitCostAtSale: decimal.RequireFromString("9000")},
		{LineNo: 2, ProductID: nil, ProductNameSnapshot: "Extra Sambal", Quantity: 1, UnitPrice: decimal.RequireFromString("20000"), UnitCostAtSale: decimal.RequireFromString("5000")},
	}
}

// exerciseStore checks the replay contract every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	h := sampleHeader(time.Now().UnixMilli())
	require.NoError(t, s.InsertTransaction(ctx, h))
	require.NoError(t, s.InsertTransaction(ctx, h), "second insert with the same id must be a no-op")

	items := sampleItems()
	require.NoError(t, s.InsertLineItems(ctx, h.ID, items))
	require.NoError(t, s.InsertLineItems(ctx, h.ID, items), "replaying line items must be a no-op")

	got, err := s.LineItems(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[1].ProductID)
	assert.Equal(t, "Extra Sambal", got[1].ProductNameSnapshot)
	assert.True(t, got[0].UnitPrice.Equal(decimal.RequireFromString("15000")))

	headers, err := s.ListTransactions(ctx, Filter{CashRegisterID: "REG-01", Since: time.UnixMilli(h.CreatedAt)})
	require.NoError(t, err)
	var matches int
	for _, stored := range headers {
		if stored.ID == h.ID {
			matches++
			assert.True(t, stored.TotalAmount.Equal(h.TotalAmount))
			assert.Equal(t, "cashier-1", models.StringValue(stored.UserID))
		}
	}
	assert.Equal(t, 1, matches)

	// a header first written without a user gets it on replay, and keeps it
	anon := sampleHeader(time.Now().UnixMilli())
	anon.UserID = nil
	require.NoError(t, s.InsertTransaction(ctx, anon))
	attributed := anon
	attributed.UserID = models.StringPtr("cashier-2")
	require.NoError(t, s.InsertTransaction(ctx, attributed))
	other := anon
	other.UserID = models.StringPtr("cashier-3")
	require.NoError(t, s.InsertTransaction(ctx, other))

	headers, err = s.ListTransactions(ctx, Filter{CashRegisterID: "REG-01", Since: time.UnixMilli(anon.CreatedAt)})
	require.NoError(t, err)
	for _, stored := range headers {
		if stored.ID == anon.ID {
			assert.Equal(t, "cashier-2", models.StringValue(stored.UserID))
		}
	}

	require.NoError(t, s.Ping(ctx))
}

func TestMemory_Contract(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_FaultInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	h := sampleHeader(1)

	m.SetUnavailable(true)
	err := m.InsertTransaction(ctx, h)
	assert.True(t, apperrors.Is(err, apperrors.ErrRemoteUnavailable))
	assert.False(t, apperrors.IsPermanent(err))
	m.SetUnavailable(false)

	m.Reject(h.ID)
	err = m.InsertTransaction(ctx, h)
	assert.True(t, apperrors.IsPermanent(err))
	m.Accept(h.ID)
	require.NoError(t, m.InsertTransaction(ctx, h))

	m.FailLineItems(h.ID, 1)
	assert.Error(t, m.InsertLineItems(ctx, h.ID, sampleItems()))
	require.NoError(t, m.InsertLineItems(ctx, h.ID, sampleItems()))

	assert.Equal(t, 1, m.Count())
	assert.Equal(t, 1, m.HeaderWrites())
}

func TestMemory_LineItemsWithoutHeaderRejected(t *testing.T) {
	err := NewMemory().InsertLineItems(context.Background(), "missing", sampleItems())
	assert.True(t, apperrors.Is(err, apperrors.ErrRemoteRejected))
}

func TestMemory_LineNumbersFromPosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	h := sampleHeader(1)
	require.NoError(t, m.InsertTransaction(ctx, h))

	items := sampleItems()
	items[0].LineNo, items[1].LineNo = 0, 0
	require.NoError(t, m.InsertLineItems(ctx, h.ID, items))

	got, err := m.LineItems(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].LineNo)
	assert.Equal(t, 2, got[1].LineNo)
}

func TestMemory_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := int64(1); i <= 5; i++ {
		h := sampleHeader(i * 1000)
		if i == 3 {
			h.CashRegisterID = models.StringPtr("REG-02")
		}
		require.NoError(t, m.InsertTransaction(ctx, h))
	}

	headers, err := m.ListTransactions(ctx, Filter{CashRegisterID: "REG-01", Limit: 3})
	require.NoError(t, err)
	require.Len(t, headers, 3)
	assert.Equal(t, int64(5000), headers[0].CreatedAt)
	assert.Equal(t, int64(4000), headers[1].CreatedAt)
	assert.Equal(t, int64(2000), headers[2].CreatedAt)

	headers, err = m.ListTransactions(ctx, Filter{Since: time.UnixMilli(2000), Until: time.UnixMilli(4000)})
	require.NoError(t, err)
	assert.Len(t, headers, 2)
}

func TestWithFetchTimeout(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetLatency(time.Second)
	s := WithFetchTimeout(m, 20*time.Millisecond)

	start := time.Now()
	_, err := s.ListTransactions(ctx, Filter{})
	assert.True(t, apperrors.Is(err, apperrors.ErrSyncTimeout))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.True(t, apperrors.Is(s.Ping(ctx), apperrors.ErrSyncTimeout))

	_, err = s.LineItems(ctx, "x")
	assert.True(t, apperrors.Is(err, apperrors.ErrSyncTimeout))
}

func TestWithFetchTimeout_writesPassThrough(t *testing.T) {
	m := NewMemory()
	m.SetLatency(50 * time.Millisecond)
	s := WithFetchTimeout(m, 10*time.Millisecond)

	require.NoError(t, s.InsertTransaction(context.Background(), sampleHeader(1)))
	assert.Equal(t, 1, m.Count())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.ErrorCode
	}{
		{"invalid text representation", &pgconn.PgError{Code: "22P02"}, apperrors.ErrRemoteRejected},
		{"check violation", &pgconn.PgError{Code: "23514"}, apperrors.ErrRemoteRejected},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, apperrors.ErrRemoteRejected},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, apperrors.ErrRemoteUnavailable},
		{"undefined table", &pgconn.PgError{Code: "42P01"}, apperrors.ErrRemoteUnavailable},
		{"network", context.DeadlineExceeded, apperrors.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, apperrors.CodeOf(classify("op", tt.err)))
		})
	}
}

func TestPostgres_Contract(t *testing.T) {
	url := os.Getenv("POS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("POS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	p, err := NewPostgres(ctx, url)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Migrate(ctx))

	exerciseStore(t, p)

	bad := sampleHeader(time.Now().UnixMilli())
	bad.ID = "not-a-uuid"
	assert.True(t, apperrors.IsPermanent(p.InsertTransaction(ctx, bad)))
}

func TestWriteSale(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	h := sampleHeader(1)

	m.FailLineItems(h.ID, 1)
	require.Error(t, WriteSale(ctx, m, h, sampleItems()))
	assert.Equal(t, 1, m.Count(), "header is written before the items fail")

	require.NoError(t, WriteSale(ctx, m, h, sampleItems()))
	assert.Equal(t, 1, m.Count())
	items, err := m.LineItems(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
