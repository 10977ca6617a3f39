package handlers

import (
	"net/http"

	"github.com/fitri99main/itongPOS-sub000/internal/checkout"
)

// CheckoutHandler completes sales.
type CheckoutHandler struct {
	service *checkout.Service
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(service *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// Checkout handles POST /api/checkout
// Responds 201 when the sale reached the remote system and 202 when it was
// queued for a later sync.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var sale checkout.Sale
	if err := decodeJSON(r, &sale); err != nil {
		writeError(w, err)
		return
	}

	receipt, err := h.service.Checkout(r.Context(), sale)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if receipt.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, receipt)
}
