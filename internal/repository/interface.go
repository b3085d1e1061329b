package repository

import (
	"context"
	"time"

	"github.com/dps-core/contract-engine/internal/models"
)

// Store defines the persistence operations the engine needs. The Postgres
// implementation backs production; tests use an in-memory implementation.
type Store interface {
	// Atomic runs fn inside a single serializable transaction. The Store
	// passed to fn is transaction-scoped; nested calls join the open
	// transaction.
	Atomic(ctx context.Context, fn func(Store) error) error

	CreateScheme(ctx context.Context, scheme *models.NumberingScheme) error
	GetScheme(ctx context.Context, id int64) (*models.NumberingScheme, error)
	// GetSchemeForUpdate locks the scheme row for the rest of the transaction.
	GetSchemeForUpdate(ctx context.Context, id int64) (*models.NumberingScheme, error)
	UpdateSchemeCurrentValue(ctx context.Context, id, value int64) error
	// NextSequenceValue atomically increments and returns the sequence for a
	// scheme and period, creating the row on first use.
	NextSequenceValue(ctx context.Context, schemeID int64, periodKey string) (int64, error)

	CreateContract(ctx context.Context, contract *models.Contract) error
	GetContract(ctx context.Context, id int64) (*models.Contract, error)
	// GetContractByKey looks up a contract by the idempotency key it was
	// created under, for replaying a retried creation.
	GetContractByKey(ctx context.Context, idempotencyKey string) (*models.Contract, error)
	// GetContractForUpdate locks the contract row, serializing concurrent
	// payments and settlement against the same contract.
	GetContractForUpdate(ctx context.Context, id int64) (*models.Contract, error)
	UpdateContract(ctx context.Context, contract *models.Contract) error
	UpdateContractStatus(ctx context.Context, id int64, status models.ContractStatus) error
	ListContractsByStatus(ctx context.Context, statuses ...models.ContractStatus) ([]*models.Contract, error)

	// ReplaceInstallments swaps a contract's schedule wholesale and returns
	// the stored rows with assigned ids.
	ReplaceInstallments(ctx context.Context, contractID int64, items []models.Installment) ([]models.Installment, error)
	ListInstallments(ctx context.Context, contractID int64) ([]*models.Installment, error)
	GetInstallment(ctx context.Context, contractID, installmentID int64) (*models.Installment, error)
	UpdateInstallment(ctx context.Context, inst *models.Installment) error
	// ListDueUnpaidInstallments returns installments due on or before asOf
	// that still need payment, across all active contracts.
	ListDueUnpaidInstallments(ctx context.Context, asOf time.Time) ([]*models.Installment, error)

	CreatePayment(ctx context.Context, payment *models.PaymentEvent) error
	GetPaymentByKey(ctx context.Context, contractID int64, idempotencyKey string) (*models.PaymentEvent, error)
	CountPayments(ctx context.Context, contractID int64) (int, error)
	ListPayments(ctx context.Context, contractID int64) ([]*models.PaymentEvent, error)
	LastPaymentTime(ctx context.Context, contractID int64) (*time.Time, error)

	CreatePenalty(ctx context.Context, penalty *models.PenaltyEvent) error
	HasPenalty(ctx context.Context, installmentID int64) (bool, error)

	CreateSettlement(ctx context.Context, settlement *models.SettlementEvent) error
	GetSettlementByKey(ctx context.Context, contractID int64, idempotencyKey string) (*models.SettlementEvent, error)

	AppendLedgerEntry(ctx context.Context, entry *models.SubledgerEntry) error
	LastLedgerEntry(ctx context.Context, contractID int64) (*models.SubledgerEntry, error)
	ListLedgerEntries(ctx context.Context, contractID int64) ([]*models.SubledgerEntry, error)

	Close() error
}

// notFoundError sentinels are returned by lookups that find nothing; services
// translate them into the caller-visible NotFound codes.
type notFoundError string

func (e notFoundError) Error() string { return string(e) }

const (
	ErrSchemeNotFound      = notFoundError("numbering scheme not found")
	ErrContractNotFound    = notFoundError("contract not found")
	ErrInstallmentNotFound = notFoundError("installment not found")
	ErrPaymentNotFound     = notFoundError("payment not found")
	ErrSettlementNotFound  = notFoundError("settlement not found")
	ErrNoLedgerEntries     = notFoundError("no ledger entries")
)
