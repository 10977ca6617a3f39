package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitri99main/itongPOS-sub000/internal/checkout"
	"github.com/fitri99main/itongPOS-sub000/internal/config"
	"github.com/fitri99main/itongPOS-sub000/internal/connectivity"
	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/kv"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/remote"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Connectivity.Source = config.SourceHost
	cfg.Sync.Interval = 0
	return cfg
}

func coffee() checkout.Sale {
	return checkout.Sale{
		Lines: []checkout.CartLine{
			{Name: "Kopi Susu", Quantity: 1, UnitPrice: decimal.NewFromInt(18000), UnitCost: decimal.NewFromInt(7000)},
		},
		PaymentMethod:  checkout.PaymentCash,
		AmountReceived: decimal.NewFromInt(20000),
	}
}

var online = connectivity.NetworkState{Connected: true, InternetReachable: true}

func TestNew_sqlite(t *testing.T) {
	ctx := context.Background()
	core, err := New(ctx, testConfig(t), Options{Remote: remote.NewMemory()})
	require.NoError(t, err)
	defer core.Close()

	require.NotNil(t, core.SyncLog)
	require.NotNil(t, core.Host)
	assert.False(t, core.Monitor.IsOnline(), "host source starts offline")
	assert.Equal(t, 0, core.Queue.Size())

	status := core.Status(ctx)
	assert.Equal(t, "REG-01", status.CashRegisterID)
	assert.False(t, status.Scheduler.IsRunning)
}

func TestNew_invalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "floppy"

	_, err := New(context.Background(), cfg, Options{})
	assert.Equal(t, apperrors.ErrConfigInvalid, apperrors.CodeOf(err))
}

func TestNew_probeSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Connectivity.Source = config.SourceProbe

	store := remote.NewMemory()
	core, err := New(context.Background(), cfg, Options{Store: kv.NewMemory(), Remote: store})
	require.NoError(t, err)
	defer core.Close()

	assert.Nil(t, core.Host)
	assert.Nil(t, core.SyncLog, "injected storage has no sync log")
	assert.True(t, core.Monitor.IsOnline(), "initial probe reaches the remote")
}

func TestNew_probeSourceUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Connectivity.Source = config.SourceProbe

	store := remote.NewMemory()
	store.SetUnavailable(true)
	core, err := New(context.Background(), cfg, Options{Store: kv.NewMemory(), Remote: store})
	require.NoError(t, err)
	defer core.Close()

	assert.False(t, core.Monitor.IsOnline())
}

func TestNew_storageLoadFailure(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(context.Background(), kv.KeyQueue, "{not json"))

	_, err := New(context.Background(), testConfig(t), Options{Store: store, Remote: remote.NewMemory()})
	assert.Equal(t, apperrors.ErrQueueCorrupt, apperrors.CodeOf(err))
}

func TestCore_drainsWhenHostReportsOnline(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	core, err := New(ctx, testConfig(t), Options{Remote: store})
	require.NoError(t, err)
	defer core.Close()

	require.NoError(t, core.Sessions.SignIn(ctx, "cashier-1"))
	core.Start(ctx)

	receipt, err := core.Checkout.Checkout(ctx, coffee())
	require.NoError(t, err)
	assert.True(t, receipt.Queued)

	core.Host.Set(online)

	require.Eventually(t, func() bool { return core.Queue.Size() == 0 }, 2*time.Second, 10*time.Millisecond)
	_, ok := store.Header(receipt.TransactionID)
	assert.True(t, ok)

	require.Eventually(t, func() bool {
		history, err := core.SyncHistory(ctx, 10)
		return err == nil && len(history) == 1
	}, 2*time.Second, 10*time.Millisecond)

	removed, err := core.PruneSyncHistory(ctx, -time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestCore_startAndCloseAreIdempotent(t *testing.T) {
	ctx := context.Background()
	core, err := New(ctx, testConfig(t), Options{Remote: remote.NewMemory()})
	require.NoError(t, err)

	core.Start(ctx)
	core.Start(ctx)
	assert.True(t, core.Scheduler.IsRunning())

	require.NoError(t, core.Close())
	require.NoError(t, core.Close())
	assert.False(t, core.Scheduler.IsRunning())
}

func TestSyncHistory_withoutSQLite(t *testing.T) {
	ctx := context.Background()
	core, err := New(ctx, testConfig(t), Options{Store: kv.NewMemory(), Remote: remote.NewMemory()})
	require.NoError(t, err)
	defer core.Close()

	history, err := core.SyncHistory(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestNew_dataDirHeldByRunningCore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := remote.NewMemory()

	running, err := New(ctx, cfg, Options{Remote: store})
	require.NoError(t, err)
	require.NoError(t, running.Sessions.SignIn(ctx, "cashier-1"))
	receipt, err := running.Checkout.Checkout(ctx, coffee())
	require.NoError(t, err)
	require.True(t, receipt.Queued)

	_, err = New(ctx, cfg, Options{Remote: store})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrRegisterBusy, apperrors.CodeOf(err))

	// The refused core must not have touched the running one's queue.
	receipt2, err := running.Checkout.Checkout(ctx, coffee())
	require.NoError(t, err)
	assert.Equal(t, 2, running.Queue.Size())
	require.NoError(t, running.Close())

	reopened, err := New(ctx, cfg, Options{Remote: store})
	require.NoError(t, err)
	defer reopened.Close()

	pending := reopened.Queue.List()
	require.Len(t, pending, 2)
	ids := []string{receipt.TransactionID, receipt2.TransactionID}
	for i, action := range pending {
		insert, ok := action.Action.(models.InsertTransaction)
		require.True(t, ok)
		assert.Equal(t, ids[i], insert.Header.ID)
	}
}

func TestNew_injectedStoreSkipsDirLock(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	first, err := New(ctx, cfg, Options{Store: kv.NewMemory(), Remote: remote.NewMemory()})
	require.NoError(t, err)
	defer first.Close()

	second, err := New(ctx, cfg, Options{Store: kv.NewMemory(), Remote: remote.NewMemory()})
	require.NoError(t, err)
	defer second.Close()
}
