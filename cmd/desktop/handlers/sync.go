// Package handlers provides the REST API handlers of the desktop server.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/fitri99main/itongPOS-sub000/internal/app"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

// SyncHandler serves sync status and manual sync.
type SyncHandler struct {
	core *app.Core
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(core *app.Core) *SyncHandler {
	return &SyncHandler{core: core}
}

// GetStatus handles GET /api/status
// Returns connectivity, queue counts and the last pass.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.core.Status(r.Context()))
}

// TriggerSync handles POST /api/sync
// Runs a pass and waits for it. Progress is pushed over the event socket
// by the processor itself.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.core.Scheduler.SyncNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	logging.Info("Manual sync requested over API", map[string]interface{}{
		"applied": result.Applied,
		"skipped": result.Skipped,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     result.Message(),
		"attempted":   result.Attempted,
		"applied":     result.Applied,
		"failed":      result.Failed,
		"quarantined": result.Quarantined,
		"remaining":   result.Remaining,
		"skipped":     result.Skipped,
		"duration":    result.Duration.Milliseconds(),
	})
}

// GetHistory handles GET /api/sync/history?limit=N
func (h *SyncHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.core.SyncHistory(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	passes := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		passes = append(passes, map[string]interface{}{
			"started_at":  e.StartedAt.UnixMilli(),
			"finished_at": e.FinishedAt.UnixMilli(),
			"attempted":   e.Attempted,
			"applied":     e.Applied,
			"failed":      e.Failed,
			"quarantined": e.Quarantined,
			"remaining":   e.Remaining,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"passes": passes})
}

// GetErrors handles GET /api/sync/errors
// Returns the recent per-action failures.
func (h *SyncHandler) GetErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors": h.core.Processor.GetErrorHistory(),
	})
}

// ClearErrors handles DELETE /api/sync/errors
func (h *SyncHandler) ClearErrors(w http.ResponseWriter, r *http.Request) {
	h.core.Processor.ClearErrorHistory()
	w.WriteHeader(http.StatusNoContent)
}
