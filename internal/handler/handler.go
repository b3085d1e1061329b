package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/service"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type errorBody struct {
	Error *apperrors.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to stable HTTP statuses; internal errors
// never leak detail across the boundary.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if appErr, ok := apperrors.From(err); ok {
		writeJSON(w, statusFor(appErr.Kind), errorBody{Error: appErr})
		return
	}
	h.log.Errorf("Internal error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error: &apperrors.Error{Code: "InternalError", Message: "an internal error occurred"},
	})
}

func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: apperrors.Validation("InvalidBody", "request body is not valid JSON"),
		})
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

// idempotencyKey prefers the Idempotency-Key header over the body field.
func idempotencyKey(r *http.Request, bodyKey string) string {
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		return key
	}
	return bodyKey
}

// parseDate accepts YYYY-MM-DD; empty input falls back to now.
func parseDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}
