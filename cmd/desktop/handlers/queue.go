package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/sync/queue"
)

// QueueHandler exposes the offline queue and its quarantine.
type QueueHandler struct {
	queue *queue.SyncQueue
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(q *queue.SyncQueue) *QueueHandler {
	return &QueueHandler{queue: q}
}

// List handles GET /api/queue
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.queue.List()
	if items == nil {
		items = []models.QueuedAction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"stats": h.queue.Stats(),
	})
}

// ListQuarantine handles GET /api/queue/quarantine
func (h *QueueHandler) ListQuarantine(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": h.queue.Quarantined(),
	})
}

// Requeue handles POST /api/queue/quarantine/{id}/requeue
func (h *QueueHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Requeue(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"stats": h.queue.Stats()})
}

// Discard handles DELETE /api/queue/quarantine/{id}
func (h *QueueHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
