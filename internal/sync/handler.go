package sync

import (
	"context"
	"fmt"

	apperrors "github.com/fitri99main/itongPOS-sub000/internal/errors"
	"github.com/fitri99main/itongPOS-sub000/internal/logging"
	"github.com/fitri99main/itongPOS-sub000/internal/models"
	"github.com/fitri99main/itongPOS-sub000/internal/remote"
	"github.com/fitri99main/itongPOS-sub000/internal/session"
)

// Handler applies one action variant to the remote system.
// Apply must be safe to repeat for the same action.
type Handler interface {
	Type() models.ActionType
	Apply(ctx context.Context, action models.Action) error
}

// InsertTransactionHandler writes queued sales.
type InsertTransactionHandler struct {
	Remote  remote.Store
	Session session.Provider
}

// NewInsertTransactionHandler creates the handler for InsertTransaction.
// sessions may be nil.
func NewInsertTransactionHandler(store remote.Store, sessions session.Provider) *InsertTransactionHandler {
	return &InsertTransactionHandler{Remote: store, Session: sessions}
}

// Type implements Handler.
func (h *InsertTransactionHandler) Type() models.ActionType {
	return models.ActionInsertTransaction
}

// Apply implements Handler. A sale queued without a user is attributed to
// the current session user before it is written; the queued payload itself
// is not changed.
func (h *InsertTransactionHandler) Apply(ctx context.Context, action models.Action) error {
	insert, ok := action.(models.InsertTransaction)
	if !ok {
		return apperrors.New(apperrors.ErrUnknownAction, fmt.Sprintf("unexpected action %T", action))
	}

	header := insert.Header.Clone()
	if !header.HasUser() {
		userID, found, err := session.ResolveUserID(ctx, h.Session)
		switch {
		case err != nil:
			logging.Warn("Could not resolve user for queued sale", map[string]interface{}{
				"transaction_id": header.ID,
				"error":          err.Error(),
			})
		case found:
			header.UserID = &userID
		}
	}

	return remote.WriteSale(ctx, h.Remote, header, insert.Items)
}
