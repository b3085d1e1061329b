package handler

import (
	"net/http"

	"github.com/dps-core/contract-engine/internal/apperrors"
)

// PreviewSettlement quotes the early-settlement payoff without mutating state
func (h *Handler) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	date, err := parseDate(r.URL.Query().Get("settlement_date"))
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidDate", "settlement_date must be YYYY-MM-DD"))
		return
	}

	settlement, err := h.svc.PreviewSettlement(r.Context(), contractID, date)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}

// ExecuteSettlement closes the contract at the quoted payoff. The idempotency
// key comes from the Idempotency-Key header or the body; omitting both is a
// client error.
func (h *Handler) ExecuteSettlement(w http.ResponseWriter, r *http.Request) {
	contractID, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	var req struct {
		SettlementDate string `json:"settlement_date"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := parseDate(req.SettlementDate)
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidDate", "settlement_date must be YYYY-MM-DD"))
		return
	}

	settlement, err := h.svc.ExecuteSettlement(r.Context(), contractID, date, idempotencyKey(r, req.IdempotencyKey))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlement)
}
