package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies subledger entries
type EntryType string

const (
	EntryTypeDisbursement EntryType = "DISBURSEMENT"
	EntryTypeAdjustment   EntryType = "ADJUSTMENT"
	EntryTypePayment      EntryType = "PAYMENT"
	EntryTypeSettlement   EntryType = "SETTLEMENT"
)

// SubledgerEntry is one append-only ledger line for a contract. BalanceAfter
// is the outstanding principal after this entry; it is the fold of all prior
// entries and is never recomputed by mutation.
type SubledgerEntry struct {
	ID           int64           `json:"id"`
	ContractID   int64           `json:"contract_id"`
	EntryType    EntryType       `json:"entry_type"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}
