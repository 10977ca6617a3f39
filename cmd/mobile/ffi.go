// Package main provides the FFI bridge for mobile platforms.
// Build as shared library: libitongpos.so (Android) / itongpos.framework (iOS)
//
// Every function returning *C.char hands ownership to the caller, who must
// release it with FreeString. Failures return {"error":{"code","message"}}.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"sync"
	"unsafe"

	"github.com/fitri99main/itongPOS-sub000/internal/bridge"
	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

var (
	mu      sync.RWMutex
	current *bridge.Bridge
)

var errNotInitialized = apperrors.New(apperrors.ErrInternal, "core not initialized")

func active() (*bridge.Bridge, error) {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return nil, errNotInitialized
	}
	return current, nil
}

func result(out string, err error) *C.char {
	if err != nil {
		return C.CString(bridge.ErrorJSON(err))
	}
	return C.CString(out)
}

func ok(err error) *C.char {
	return result(`{"ok":true}`, err)
}

//export PosInit
// PosInit opens the core from a JSON configuration. Calling it again
// replaces the running core; the old one is closed first since both own the
// same data directory.
func PosInit(configJSON *C.char) *C.char {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		current.Close()
		current = nil
	}

	b, err := bridge.Open(C.GoString(configJSON))
	if err != nil {
		logging.Error("Failed to initialize POS core", err)
		return ok(err)
	}
	current = b
	return ok(nil)
}

//export PosClose
// PosClose stops the core.
func PosClose() {
	mu.Lock()
	b := current
	current = nil
	mu.Unlock()

	if b != nil {
		b.Close()
	}
}

//export PosCheckout
func PosCheckout(saleJSON *C.char) *C.char {
	b, err := active()
	if err != nil {
		return ok(err)
	}
	return result(b.Checkout(C.GoString(saleJSON)))
}

//export PosPendingCount
// PosPendingCount returns the queue length, or -1 before PosInit.
func PosPendingCount() C.int {
	b, err := active()
	if err != nil {
		return -1
	}
	return C.int(b.PendingCount())
}

//export PosSyncNow
func PosSyncNow() *C.char {
	b, err := active()
	if err != nil {
		return ok(err)
	}
	return result(b.SyncNow())
}

//export PosSetManualOffline
func PosSetManualOffline(enabled C.int) *C.char {
	b, err := active()
	if err != nil {
		return ok(err)
	}
	return ok(b.SetManualOffline(enabled != 0))
}

//export PosSetNetworkState
// PosSetNetworkState forwards the platform connectivity callback.
func PosSetNetworkState(connected, internetReachable C.int) {
	b, err := active()
	if err != nil {
		return
	}
	b.SetNetworkState(connected != 0, internetReachable != 0)
}

//export PosSignIn
func PosSignIn(userID *C.char) *C.char {
	b, err := active()
	if err != nil {
		return ok(err)
	}
	return ok(b.SignIn(C.GoString(userID)))
}

//export PosSignOut
func PosSignOut() *C.char {
	b, err := active()
	if err != nil {
		return ok(err)
	}
	return ok(b.SignOut())
}

//export PosStatus
func PosStatus() *C.char {
	b, err := active()
	if err != nil {
		return ok(err)
	}
	return result(b.Status())
}

//export FreeString
func FreeString(s *C.char) {
	if s != nil {
		C.free(unsafe.Pointer(s))
	}
}

func main() {
	// Required for c-shared build mode; never runs in the shared library.
}
