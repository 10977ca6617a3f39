package handlers

import (
	"net/http"
	"strings"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/session"
)

// SessionHandler signs cashiers in and out of the register.
type SessionHandler struct {
	sessions *session.Cache
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Cache) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Get handles GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessions.CachedUserID(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"signed_in": ok,
		"user_id":   userID,
	})
}

// SignIn handles PUT /api/session
// Body: {"user_id": "..."}
func (h *SessionHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, err)
		return
	}
	userID := strings.TrimSpace(request.UserID)
	if userID == "" {
		writeError(w, apperrors.New(apperrors.ErrValidation, "user_id is required"))
		return
	}
	if err := h.sessions.SignIn(r.Context(), userID); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrStorage, "failed to save session", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"signed_in": true, "user_id": userID})
}

// SignOut handles DELETE /api/session
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.SignOut(r.Context()); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrStorage, "failed to clear session", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
