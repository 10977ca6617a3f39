package handlers

import (
	"net/http"

	"github.com/fitri99main/itongPOS-sub000/internal/connectivity"
	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
)

// ConnectivityHandler reads and forces connectivity.
type ConnectivityHandler struct {
	monitor *connectivity.Monitor
	host    *connectivity.HostSignal
}

// NewConnectivityHandler creates a new ConnectivityHandler. host may be nil
// when the core probes the network itself.
func NewConnectivityHandler(monitor *connectivity.Monitor, host *connectivity.HostSignal) *ConnectivityHandler {
	return &ConnectivityHandler{monitor: monitor, host: host}
}

// Get handles GET /api/connectivity
func (h *ConnectivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Status())
}

// SetOverride handles PUT /api/connectivity
// Body: {"manual_offline": true}
func (h *ConnectivityHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ManualOffline *bool `json:"manual_offline"`
	}
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, err)
		return
	}
	if request.ManualOffline == nil {
		writeError(w, apperrors.New(apperrors.ErrValidation, "manual_offline is required"))
		return
	}

	if err := h.monitor.SetManualOverride(r.Context(), *request.ManualOffline); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrStorage, "failed to save override", err))
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Status())
}

// SetNetwork handles PUT /api/connectivity/network
// Lets the host report the live network state when it owns that signal.
func (h *ConnectivityHandler) SetNetwork(w http.ResponseWriter, r *http.Request) {
	if h.host == nil {
		writeError(w, apperrors.New(apperrors.ErrValidation, "network state is probed by the core"))
		return
	}
	var state connectivity.NetworkState
	if err := decodeJSON(r, &state); err != nil {
		writeError(w, err)
		return
	}
	h.host.Set(state)
	writeJSON(w, http.StatusOK, h.monitor.Status())
}
