package handler

import (
	"net/http"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
)

// CreateScheme handles numbering scheme creation
func (h *Handler) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityType     string                `json:"entity_type"`
		Pattern        string                `json:"pattern"`
		GapPolicy      models.GapPolicy      `json:"gap_policy"`
		PeriodStrategy models.PeriodStrategy `json:"period_key_strategy"`
		Active         *bool                 `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	scheme := &models.NumberingScheme{
		EntityType:     req.EntityType,
		Pattern:        req.Pattern,
		GapPolicy:      req.GapPolicy,
		PeriodStrategy: req.PeriodStrategy,
		Active:         true,
	}
	if req.Active != nil {
		scheme.Active = *req.Active
	}

	created, err := h.svc.CreateScheme(r.Context(), scheme)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetScheme handles numbering scheme lookup
func (h *Handler) GetScheme(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "scheme id must be an integer"))
		return
	}
	scheme, err := h.svc.GetScheme(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheme)
}

// ReserveNumber handles standalone sequence reservation
func (h *Handler) ReserveNumber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchemeID  int64  `json:"scheme_id"`
		PeriodKey string `json:"period_key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	reserved, err := h.svc.Reserve(r.Context(), req.SchemeID, req.PeriodKey)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reserved)
}
