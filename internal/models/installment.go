package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the payment state of a single installment
type InstallmentStatus string

const (
	InstallmentStatusPending    InstallmentStatus = "PENDING"
	InstallmentStatusPartial    InstallmentStatus = "PARTIAL"
	InstallmentStatusPaid       InstallmentStatus = "PAID"
	InstallmentStatusOverdue    InstallmentStatus = "OVERDUE"
	InstallmentStatusWrittenOff InstallmentStatus = "WRITTEN_OFF"
)

// Installment represents one scheduled payment of a contract. Due amounts are
// immutable after generation except for penalty fees; paid amounts and status
// track the ledger.
type Installment struct {
	ID            int64             `json:"id"`
	ContractID    int64             `json:"contract_id"`
	SeqNo         int               `json:"seq_no"`
	DueDate       time.Time         `json:"due_date"`
	PrincipalDue  decimal.Decimal   `json:"principal_due"`
	InterestDue   decimal.Decimal   `json:"interest_due"`
	FeeDue        decimal.Decimal   `json:"fee_due"`
	PrincipalPaid decimal.Decimal   `json:"principal_paid"`
	InterestPaid  decimal.Decimal   `json:"interest_paid"`
	FeePaid       decimal.Decimal   `json:"fee_paid"`
	Status        InstallmentStatus `json:"status"`
}

// FeeRemaining returns the unpaid fee portion
func (i *Installment) FeeRemaining() decimal.Decimal {
	return i.FeeDue.Sub(i.FeePaid)
}

// InterestRemaining returns the unpaid interest portion
func (i *Installment) InterestRemaining() decimal.Decimal {
	return i.InterestDue.Sub(i.InterestPaid)
}

// PrincipalRemaining returns the unpaid principal portion
func (i *Installment) PrincipalRemaining() decimal.Decimal {
	return i.PrincipalDue.Sub(i.PrincipalPaid)
}

// TotalRemaining returns the full unpaid amount of the installment
func (i *Installment) TotalRemaining() decimal.Decimal {
	return i.FeeRemaining().Add(i.InterestRemaining()).Add(i.PrincipalRemaining())
}

// TotalDue returns the full scheduled amount of the installment
func (i *Installment) TotalDue() decimal.Decimal {
	return i.FeeDue.Add(i.InterestDue).Add(i.PrincipalDue)
}

// Settled reports whether the installment requires no further payment
func (i *Installment) Settled() bool {
	return i.Status == InstallmentStatusPaid || i.Status == InstallmentStatusWrittenOff
}
