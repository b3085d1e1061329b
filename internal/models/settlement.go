package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EarlySettlement is the payoff quote for closing a contract before term end.
// Preview returns it as a pure projection; execute posts it.
type EarlySettlement struct {
	ContractID         int64           `json:"contract_id"`
	SettlementDate     time.Time       `json:"settlement_date"`
	PrincipalRemaining decimal.Decimal `json:"principal_remaining"`
	InterestAccrued    decimal.Decimal `json:"interest_accrued"`
	Rebate             decimal.Decimal `json:"rebate"`
	PayoffAmount       decimal.Decimal `json:"payoff_amount"`
	Executed           bool            `json:"executed"`
}

// SettlementEvent records one executed early settlement. Result holds the
// canonical quote returned for the first execution; idempotent replays return
// it verbatim.
type SettlementEvent struct {
	ID             int64           `json:"id"`
	ContractID     int64           `json:"contract_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	ExecutedAt     time.Time       `json:"executed_at"`
	Result         json.RawMessage `json:"-"`
}
