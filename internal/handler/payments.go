package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
)

// RecordPayment applies a payment against a contract installment. The
// idempotency key comes from the Idempotency-Key header or, failing that, the
// body; omitting both is a client error.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	var req struct {
		InstallmentID  int64           `json:"installment_id"`
		Amount         decimal.Decimal `json:"amount"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.svc.ApplyPayment(r.Context(), contractID, req.InstallmentID, req.Amount, idempotencyKey(r, req.IdempotencyKey))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListPayments returns a contract's payment events
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	payments, err := h.svc.GetPayments(r.Context(), contractID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}
