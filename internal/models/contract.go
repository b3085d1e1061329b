package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractStatus is the lifecycle state of a contract
type ContractStatus string

const (
	ContractStatusDraft     ContractStatus = "DRAFT"
	ContractStatusActive    ContractStatus = "ACTIVE"
	ContractStatusClosed    ContractStatus = "CLOSED"
	ContractStatusDefaulted ContractStatus = "DEFAULTED"
)

// InterestType selects the amortization method
type InterestType string

const (
	InterestTypeFlat      InterestType = "FLAT"
	InterestTypeDeclining InterestType = "DECLINING"
)

// DayCount is the day-count convention used for interest accrual
type DayCount string

const (
	DayCountAct360    DayCount = "ACT_360"
	DayCountAct365    DayCount = "ACT_365"
	DayCountThirty360 DayCount = "30_360"
)

// ContractTerms are the financial terms a schedule is generated from
type ContractTerms struct {
	Principal    decimal.Decimal `json:"principal"`
	AnnualRate   decimal.Decimal `json:"rate"`
	TermMonths   int             `json:"term"`
	InterestType InterestType    `json:"interest_type"`
	DayCount     DayCount        `json:"day_count"`
	Currency     string          `json:"currency"`
	StartDate    time.Time       `json:"start_date"`
}

// Contract represents a contract in the system. IdempotencyKey is the client
// token the contract was created under; a repeated key replays the original
// creation instead of reserving a fresh number.
type Contract struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	IdempotencyKey string          `json:"-"`
	CustomerID     string          `json:"customer_id"`
	CustomerEmail  string          `json:"customer_email,omitempty"`
	Status         ContractStatus  `json:"status"`
	Principal      decimal.Decimal `json:"principal"`
	AnnualRate     decimal.Decimal `json:"rate"`
	TermMonths     int             `json:"term"`
	InterestType   InterestType    `json:"interest_type"`
	DayCount       DayCount        `json:"day_count"`
	Currency       string          `json:"currency"`
	StartDate      time.Time       `json:"start_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Terms returns the contract's financial terms
func (c *Contract) Terms() ContractTerms {
	return ContractTerms{
		Principal:    c.Principal,
		AnnualRate:   c.AnnualRate,
		TermMonths:   c.TermMonths,
		InterestType: c.InterestType,
		DayCount:     c.DayCount,
		Currency:     c.Currency,
		StartDate:    c.StartDate,
	}
}
