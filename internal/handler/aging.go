package handler

import (
	"net/http"

	"github.com/dps-core/contract-engine/internal/apperrors"
)

// AgingReport buckets open contracts by days overdue as of the given date
func (h *Handler) AgingReport(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidDate", "as_of must be YYYY-MM-DD"))
		return
	}

	entries, err := h.svc.Classify(r.Context(), asOf)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
