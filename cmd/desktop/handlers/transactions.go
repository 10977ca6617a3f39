package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/remote"
)

// TransactionHandler reads sales from the remote system.
type TransactionHandler struct {
	remote remote.Store
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(store remote.Store) *TransactionHandler {
	return &TransactionHandler{remote: store}
}

// List handles GET /api/transactions
// Query: cash_register_id, user_id, status, since, until (epoch ms), limit.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := remote.Filter{
		CashRegisterID: query.Get("cash_register_id"),
		UserID:         query.Get("user_id"),
		Status:         models.TransactionStatus(query.Get("status")),
	}

	var err error
	if filter.Limit, err = optionalInt(query.Get("limit")); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrValidation, "invalid limit", err))
		return
	}
	if filter.Since, err = optionalTime(query.Get("since")); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrValidation, "invalid since", err))
		return
	}
	if filter.Until, err = optionalTime(query.Get("until")); err != nil {
		writeError(w, apperrors.Wrap(apperrors.ErrValidation, "invalid until", err))
		return
	}

	headers, err := h.remote.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if headers == nil {
		headers = []models.TransactionHeader{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": headers})
}

// LineItems handles GET /api/transactions/{id}/items
func (h *TransactionHandler) LineItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.remote.LineItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []models.TransactionLineItem{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func optionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
