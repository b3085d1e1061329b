package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PenaltyEvent records a derived late-payment penalty. Penalties are never
// user-entered; the overdue sweep assesses them once per installment.
type PenaltyEvent struct {
	ID            int64           `json:"id"`
	ContractID    int64           `json:"contract_id"`
	InstallmentID int64           `json:"installment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	AppliedAt     time.Time       `json:"applied_at"`
}
