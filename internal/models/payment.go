package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEvent records one applied payment. Result holds the canonical
// response returned for the first application; idempotent replays return it
// verbatim.
type PaymentEvent struct {
	ID             uuid.UUID       `json:"id"`
	ContractID     int64           `json:"contract_id"`
	InstallmentID  int64           `json:"installment_id"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
	AppliedAt      time.Time       `json:"applied_at"`
	Result         json.RawMessage `json:"-"`
}

// PaymentAllocation is the portion of a payment applied to one installment
type PaymentAllocation struct {
	InstallmentID int64             `json:"installment_id"`
	SeqNo         int               `json:"seq_no"`
	Fee           decimal.Decimal   `json:"fee"`
	Interest      decimal.Decimal   `json:"interest"`
	Principal     decimal.Decimal   `json:"principal"`
	Status        InstallmentStatus `json:"status"`
}

// PaymentResult is the response for a recorded payment
type PaymentResult struct {
	PaymentID      uuid.UUID           `json:"payment_id"`
	ContractID     int64               `json:"contract_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Allocations    []PaymentAllocation `json:"allocations"`
	BalanceAfter   decimal.Decimal     `json:"balance_after"`
	ContractStatus ContractStatus      `json:"contract_status"`
	AppliedAt      time.Time           `json:"applied_at"`
}
