// Package bridge exposes the POS core to an embedding host application
// through a string-in, string-out API suitable for a C ABI. Requests and
// responses are JSON documents.
package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fitri99main/itongPOS-sub000/internal/app"
	"github.com/fitri99main/itongPOS-sub000/internal/checkout"
	"github.com/fitri99main/itongPOS-sub000/internal/config"
	"github.com/fitri99main/itongPOS-sub000/internal/connectivity"
	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

// Bridge owns one running core.
type Bridge struct {
	core   *app.Core
	cancel context.CancelFunc
	once   sync.Once
}

// Open parses configJSON, opens the core and starts it. The host always
// drives connectivity through SetNetworkState.
func Open(configJSON string) (*Bridge, error) {
	cfg, err := config.Parse([]byte(configJSON))
	if err != nil {
		return nil, err
	}
	cfg.Connectivity.Source = config.SourceHost

	ctx, cancel := context.WithCancel(context.Background())
	core, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		cancel()
		return nil, err
	}
	core.Start(ctx)

	return &Bridge{core: core, cancel: cancel}, nil
}

// Core returns the underlying core.
func (b *Bridge) Core() *app.Core {
	return b.core
}

// Close stops the core. Safe to call more than once.
func (b *Bridge) Close() error {
	var err error
	b.once.Do(func() {
		err = b.core.Close()
		b.cancel()
	})
	return err
}

// Checkout records a sale given as a JSON checkout.Sale and returns the
// receipt as JSON.
func (b *Bridge) Checkout(saleJSON string) (string, error) {
	var sale checkout.Sale
	if err := json.Unmarshal([]byte(saleJSON), &sale); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInvalid, "invalid sale", err)
	}
	receipt, err := b.core.Checkout.Checkout(context.Background(), sale)
	if err != nil {
		return "", err
	}
	return encode(receipt)
}

// PendingCount returns the number of queued actions.
func (b *Bridge) PendingCount() int {
	return b.core.Queue.Size()
}

// SyncNow drains the queue and returns the pass result as JSON.
func (b *Bridge) SyncNow() (string, error) {
	result, err := b.core.Scheduler.SyncNow(context.Background())
	if err != nil {
		return "", err
	}
	return encode(map[string]interface{}{
		"message": result.Message(),
		"result":  result,
	})
}

// SetManualOffline toggles the manual offline override.
func (b *Bridge) SetManualOffline(enabled bool) error {
	return b.core.Monitor.SetManualOverride(context.Background(), enabled)
}

// SetNetworkState reports a platform network callback.
func (b *Bridge) SetNetworkState(connected, internetReachable bool) {
	b.core.Host.Set(connectivity.NetworkState{
		Connected:         connected,
		InternetReachable: internetReachable,
	})
}

// SignIn caches the signed-in cashier.
func (b *Bridge) SignIn(userID string) error {
	return b.core.Sessions.SignIn(context.Background(), userID)
}

// SignOut clears the cached cashier.
func (b *Bridge) SignOut() error {
	return b.core.Sessions.SignOut(context.Background())
}

// Status returns the core status as JSON.
func (b *Bridge) Status() (string, error) {
	return encode(b.core.Status(context.Background()))
}

// ErrorJSON renders err as {"error":{"code","message"}}.
func ErrorJSON(err error) string {
	body := map[string]interface{}{
		"error": map[string]string{
			"code":    string(apperrors.CodeOf(err)),
			"message": err.Error(),
		},
	}
	data, mErr := json.Marshal(body)
	if mErr != nil {
		logging.Warn("Failed to encode bridge error", map[string]interface{}{"error": mErr.Error()})
		return `{"error":{"code":"INTERNAL_ERROR","message":"internal error"}}`
	}
	return string(data)
}

func encode(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternal, "failed to encode response", err)
	}
	return string(data), nil
}
