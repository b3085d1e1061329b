package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
	"github.com/dps-core/contract-engine/internal/service"
)

type termsRequest struct {
	Principal    decimal.Decimal     `json:"principal"`
	Rate         decimal.Decimal     `json:"rate"`
	Term         int                 `json:"term"`
	InterestType models.InterestType `json:"interest_type"`
	DayCount     models.DayCount     `json:"day_count"`
	Currency     string              `json:"currency"`
	StartDate    string              `json:"start_date"`
}

func (t termsRequest) toTerms() (models.ContractTerms, error) {
	start, err := parseDate(t.StartDate)
	if err != nil {
		return models.ContractTerms{}, apperrors.Validation("InvalidTerms", "start_date must be YYYY-MM-DD")
	}
	if t.StartDate == "" {
		// leave zero so the service stamps today
		return models.ContractTerms{
			Principal:    t.Principal,
			AnnualRate:   t.Rate,
			TermMonths:   t.Term,
			InterestType: t.InterestType,
			DayCount:     t.DayCount,
			Currency:     t.Currency,
		}, nil
	}
	return models.ContractTerms{
		Principal:    t.Principal,
		AnnualRate:   t.Rate,
		TermMonths:   t.Term,
		InterestType: t.InterestType,
		DayCount:     t.DayCount,
		Currency:     t.Currency,
		StartDate:    start,
	}, nil
}

// CreateContract handles contract creation: number reservation, schedule
// generation and the opening ledger entry in one transaction. The idempotency
// key comes from the Idempotency-Key header or the body; omitting both is a
// client error.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		termsRequest
		SchemeID       int64  `json:"scheme_id"`
		PeriodKey      string `json:"period_key"`
		CustomerID     string `json:"customer_id"`
		CustomerEmail  string `json:"customer_email"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	terms, err := req.toTerms()
	if err != nil {
		h.writeError(w, err)
		return
	}

	contract, schedule, err := h.svc.CreateContract(r.Context(), service.ContractInput{
		SchemeID:       req.SchemeID,
		PeriodKey:      req.PeriodKey,
		CustomerID:     req.CustomerID,
		CustomerEmail:  req.CustomerEmail,
		IdempotencyKey: idempotencyKey(r, req.IdempotencyKey),
		Terms:          terms,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"contract": contract,
		"schedule": schedule,
	})
}

// GetContract handles contract lookup
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	contract, err := h.svc.GetContract(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contract)
}

// GetSchedule returns a contract's installment schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	schedule, err := h.svc.GetSchedule(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// RegenerateSchedule replaces a contract's schedule from new terms
func (h *Handler) RegenerateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	var req termsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	terms, err := req.toTerms()
	if err != nil {
		h.writeError(w, err)
		return
	}
	schedule, err := h.svc.RegenerateSchedule(r.Context(), id, terms)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// GetLedger returns a contract's subledger entries
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, apperrors.Validation("InvalidID", "contract id must be an integer"))
		return
	}
	entries, err := h.svc.GetLedger(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
