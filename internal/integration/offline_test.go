// Integration tests for offline operation.
// Sales must complete without network connectivity and reach the remote
// system exactly once when it returns.
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fitri99main/itongPOS-sub000/internal/app"
	"github.com/fitri99main/itongPOS-sub000/internal/checkout"
	"github.com/fitri99main/itongPOS-sub000/internal/config"
	"github.com/fitri99main/itongPOS-sub000/internal/connectivity"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/remote"
)

var (
	offline = connectivity.NetworkState{Connected: true, InternetReachable: false}
	online  = connectivity.NetworkState{Connected: true, InternetReachable: true}
)

// setupCore opens a core on dataDir with the host reporting network state.
func setupCore(t *testing.T, dataDir string, store *remote.Memory) *app.Core {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.DataDir = dataDir
	cfg.Connectivity.Source = config.SourceHost
	cfg.Sync.Interval = 0

	core, err := app.New(context.Background(), cfg, app.Options{Remote: store})
	if err != nil {
		t.Fatalf("Failed to open core: %v", err)
	}
	return core
}

func sale(name string, price int64) checkout.Sale {
	return checkout.Sale{
		Lines: []checkout.CartLine{
			{ProductID: models.StringPtr("p-" + name), Name: name, Quantity: 1, UnitPrice: decimal.NewFromInt(price), UnitCost: decimal.NewFromInt(price / 2)},
			{Name: "Kerupuk", Quantity: 2, UnitPrice: decimal.NewFromInt(2000), UnitCost: decimal.NewFromInt(500)},
		},
		PaymentMethod:  checkout.PaymentQRIS,
		AmountReceived: decimal.Zero,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// TestOfflineCheckoutSurvivesRestart queues sales offline, restarts the
// core, and drains the queue once the network returns.
func TestOfflineCheckoutSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	store := remote.NewMemory()

	var txIDs []string

	t.Run("Checkout offline", func(t *testing.T) {
		core := setupCore(t, dataDir, store)
		defer core.Close()

		if err := core.Sessions.SignIn(ctx, "cashier-1"); err != nil {
			t.Fatalf("Failed to sign in: %v", err)
		}
		core.Start(ctx)
		core.Host.Set(offline)

		for _, s := range []checkout.Sale{sale("Nasi Goreng", 15000), sale("Mie Ayam", 12000), sale("Es Teh", 4000)} {
			receipt, err := core.Checkout.Checkout(ctx, s)
			if err != nil {
				t.Fatalf("Checkout failed offline: %v", err)
			}
			if !receipt.Queued {
				t.Fatalf("Expected sale %s to be queued", receipt.TransactionID)
			}
			txIDs = append(txIDs, receipt.TransactionID)
		}

		if got := core.Queue.Size(); got != 3 {
			t.Fatalf("Expected 3 queued sales, got %d", got)
		}
		if store.Count() != 0 {
			t.Fatalf("Remote received %d sales while offline", store.Count())
		}
	})

	t.Run("Restart and reconnect", func(t *testing.T) {
		core := setupCore(t, dataDir, store)
		defer core.Close()

		if got := core.Queue.Size(); got != 3 {
			t.Fatalf("Expected 3 sales after restart, got %d", got)
		}
		pending := core.Queue.List()
		for i, action := range pending {
			insert, ok := action.Action.(models.InsertTransaction)
			if !ok {
				t.Fatalf("Unexpected action type %s", action.Type())
			}
			if insert.Header.ID != txIDs[i] {
				t.Errorf("Queue order changed: position %d holds %s, want %s", i, insert.Header.ID, txIDs[i])
			}
		}

		core.Start(ctx)
		core.Host.Set(online)

		waitFor(t, "queue to drain", func() bool { return core.Queue.Size() == 0 })

		for _, id := range txIDs {
			header, ok := store.Header(id)
			if !ok {
				t.Errorf("Sale %s missing on remote", id)
				continue
			}
			if models.StringValue(header.UserID) != "cashier-1" {
				t.Errorf("Sale %s attributed to %q", id, models.StringValue(header.UserID))
			}
			items, err := store.LineItems(ctx, id)
			if err != nil || len(items) != 2 {
				t.Errorf("Sale %s has %d line items (err %v)", id, len(items), err)
			}
		}
		if store.HeaderWrites() != 3 {
			t.Errorf("Expected 3 header writes, got %d", store.HeaderWrites())
		}

		t.Log("Flapping connectivity must not resend synced sales")
		for i := 0; i < 5; i++ {
			core.Host.Set(offline)
			core.Host.Set(online)
		}
		time.Sleep(50 * time.Millisecond)
		if store.HeaderWrites() != 3 {
			t.Errorf("Expected no further writes, got %d", store.HeaderWrites())
		}
	})
}

// TestManualOfflineOverride forces offline mode while the network is up.
func TestManualOfflineOverride(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	core := setupCore(t, t.TempDir(), store)
	defer core.Close()

	if err := core.Sessions.SignIn(ctx, "cashier-2"); err != nil {
		t.Fatalf("Failed to sign in: %v", err)
	}
	core.Start(ctx)
	core.Host.Set(online)

	if err := core.Monitor.SetManualOverride(ctx, true); err != nil {
		t.Fatalf("Failed to enable override: %v", err)
	}
	if core.Monitor.IsOnline() {
		t.Fatal("Override must force offline")
	}

	receipt, err := core.Checkout.Checkout(ctx, sale("Sate", 25000))
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if !receipt.Queued {
		t.Fatal("Expected sale to be queued while override is on")
	}
	if _, ok := store.Header(receipt.TransactionID); ok {
		t.Fatal("Sale reached the remote while override is on")
	}

	if err := core.Monitor.SetManualOverride(ctx, false); err != nil {
		t.Fatalf("Failed to clear override: %v", err)
	}
	waitFor(t, "queued sale to sync", func() bool {
		_, ok := store.Header(receipt.TransactionID)
		return ok && core.Queue.Size() == 0
	})
}

// TestRemoteOutageFallsBackToQueue covers a device that believes it is
// online while the remote system is down.
func TestRemoteOutageFallsBackToQueue(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	core := setupCore(t, t.TempDir(), store)
	defer core.Close()

	if err := core.Sessions.SignIn(ctx, "cashier-3"); err != nil {
		t.Fatalf("Failed to sign in: %v", err)
	}
	core.Host.Set(online)
	core.Start(ctx)

	store.SetUnavailable(true)
	receipt, err := core.Checkout.Checkout(ctx, sale("Bakso", 17000))
	if err != nil {
		t.Fatalf("Checkout failed during outage: %v", err)
	}
	if !receipt.Queued {
		t.Fatal("Expected sale to fall back to the queue")
	}

	store.SetUnavailable(false)
	core.Scheduler.TriggerSync()
	waitFor(t, "queued sale to sync", func() bool {
		_, ok := store.Header(receipt.TransactionID)
		return ok && core.Queue.Size() == 0
	})
	if store.Count() != 1 {
		t.Errorf("Expected 1 sale on remote, got %d", store.Count())
	}
}
