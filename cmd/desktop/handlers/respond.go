package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

// writeError maps an error code to an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case apperrors.ErrInvalid, apperrors.ErrValidation, apperrors.ErrCartEmpty, apperrors.ErrInvalidLineItem:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound, apperrors.ErrActionMissing:
		status = http.StatusNotFound
	case apperrors.ErrSessionUnavailable:
		status = http.StatusUnauthorized
	case apperrors.ErrRemoteUnavailable, apperrors.ErrSyncTimeout:
		status = http.StatusServiceUnavailable
	case apperrors.ErrRemoteRejected:
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logging.ErrorWithCode("Request failed", string(code), err)
	}

	var body ErrorBody
	body.Error.Code = string(code)
	body.Error.Message = err.Error()
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "invalid request body", err)
	}
	return nil
}
