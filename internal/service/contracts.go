package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/finance"
	"github.com/dps-core/contract-engine/internal/models"
	"github.com/dps-core/contract-engine/internal/repository"
)

// ContractInput carries everything needed to open a contract
type ContractInput struct {
	SchemeID       int64
	PeriodKey      string
	CustomerID     string
	CustomerEmail  string
	IdempotencyKey string
	Terms          models.ContractTerms
}

// CreateContract opens a contract: it reserves a number, generates the
// installment schedule and posts the opening disbursement entry, all in one
// transaction. A NO_GAP scheme therefore never leaks a number when creation
// fails, and the number is assigned exactly once before the contract becomes
// active. A repeated idempotency key replays the original creation, so a
// timed-out-and-retried request neither burns a number nor opens a duplicate.
func (s *Service) CreateContract(ctx context.Context, in ContractInput) (*models.Contract, []models.Installment, error) {
	if in.IdempotencyKey == "" {
		return nil, nil, apperrors.Validation("MissingIdempotencyKey", "an idempotency key is required for contract creation")
	}
	if in.CustomerID == "" {
		return nil, nil, apperrors.Validation("InvalidContract", "customer_id is required")
	}
	if in.Terms.StartDate.IsZero() {
		now := time.Now()
		in.Terms.StartDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	schedule, err := finance.GenerateSchedule(in.Terms)
	if err != nil {
		return nil, nil, err
	}

	var contract *models.Contract
	var stored []models.Installment
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		// Replay check first: a repeated key must not consume a number.
		prior, err := tx.GetContractByKey(ctx, in.IdempotencyKey)
		if err != nil && err != repository.ErrContractNotFound {
			return err
		}
		if prior != nil {
			contract = prior
			existing, err := tx.ListInstallments(ctx, prior.ID)
			if err != nil {
				return err
			}
			stored = stored[:0]
			for _, inst := range existing {
				stored = append(stored, *inst)
			}
			return nil
		}

		reserved, err := reserveIn(ctx, tx, in.SchemeID, in.PeriodKey, time.Now())
		if err != nil {
			return err
		}

		contract = &models.Contract{
			Number:         reserved.FormattedNumber,
			IdempotencyKey: in.IdempotencyKey,
			CustomerID:     in.CustomerID,
			CustomerEmail:  in.CustomerEmail,
			Status:         models.ContractStatusActive,
			Principal:      in.Terms.Principal,
			AnnualRate:     in.Terms.AnnualRate,
			TermMonths:     in.Terms.TermMonths,
			InterestType:   in.Terms.InterestType,
			DayCount:       in.Terms.DayCount,
			Currency:       in.Terms.Currency,
			StartDate:      in.Terms.StartDate,
		}
		if err := tx.CreateContract(ctx, contract); err != nil {
			return err
		}
		if stored, err = tx.ReplaceInstallments(ctx, contract.ID, schedule); err != nil {
			return err
		}
		return tx.AppendLedgerEntry(ctx, &models.SubledgerEntry{
			ContractID:   contract.ID,
			EntryType:    models.EntryTypeDisbursement,
			Debit:        contract.Principal,
			Credit:       decimal.Zero,
			BalanceAfter: contract.Principal,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Infof("Contract %s created for customer %s (%s %s over %d months)",
		contract.Number, contract.CustomerID, contract.Principal, contract.Currency, contract.TermMonths)
	return contract, stored, nil
}

// GetContract retrieves a contract by id
func (s *Service) GetContract(ctx context.Context, id int64) (*models.Contract, error) {
	contract, err := s.store.GetContract(ctx, id)
	if err == repository.ErrContractNotFound {
		return nil, apperrors.NotFound("ContractNotFound", fmt.Sprintf("contract %d does not exist", id))
	}
	return contract, err
}

// GetSchedule retrieves a contract's installment schedule
func (s *Service) GetSchedule(ctx context.Context, contractID int64) ([]*models.Installment, error) {
	if _, err := s.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.store.ListInstallments(ctx, contractID)
}

// GetLedger retrieves a contract's subledger entries
func (s *Service) GetLedger(ctx context.Context, contractID int64) ([]*models.SubledgerEntry, error) {
	if _, err := s.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.store.ListLedgerEntries(ctx, contractID)
}

// GetPayments retrieves a contract's payment events
func (s *Service) GetPayments(ctx context.Context, contractID int64) ([]*models.PaymentEvent, error) {
	if _, err := s.GetContract(ctx, contractID); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, contractID)
}

// RegenerateSchedule replaces a contract's schedule with one generated from
// new terms. Once any payment has been recorded the schedule is locked.
func (s *Service) RegenerateSchedule(ctx context.Context, contractID int64, terms models.ContractTerms) ([]models.Installment, error) {
	if terms.StartDate.IsZero() {
		terms.StartDate = time.Now()
	}
	schedule, err := finance.GenerateSchedule(terms)
	if err != nil {
		return nil, err
	}

	var stored []models.Installment
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		contract, err := tx.GetContractForUpdate(ctx, contractID)
		if err == repository.ErrContractNotFound {
			return apperrors.NotFound("ContractNotFound", fmt.Sprintf("contract %d does not exist", contractID))
		}
		if err != nil {
			return err
		}
		if contract.Status != models.ContractStatusActive {
			return apperrors.State("ContractNotActive", fmt.Sprintf("contract %s is %s", contract.Number, contract.Status))
		}
		count, err := tx.CountPayments(ctx, contractID)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperrors.State("ScheduleLocked", fmt.Sprintf("contract %s already has recorded payments", contract.Number))
		}

		principalChanged := !contract.Principal.Equal(terms.Principal)
		contract.Principal = terms.Principal
		contract.AnnualRate = terms.AnnualRate
		contract.TermMonths = terms.TermMonths
		contract.InterestType = terms.InterestType
		contract.DayCount = terms.DayCount
		if terms.Currency != "" {
			contract.Currency = terms.Currency
		}
		contract.StartDate = terms.StartDate
		if err := tx.UpdateContract(ctx, contract); err != nil {
			return err
		}
		if stored, err = tx.ReplaceInstallments(ctx, contractID, schedule); err != nil {
			return err
		}
		if principalChanged {
			// The ledger stays append-only: a new entry re-bases the balance
			// instead of rewriting the disbursement.
			return tx.AppendLedgerEntry(ctx, &models.SubledgerEntry{
				ContractID:   contractID,
				EntryType:    models.EntryTypeAdjustment,
				Debit:        terms.Principal,
				Credit:       decimal.Zero,
				BalanceAfter: terms.Principal,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("Schedule regenerated for contract %d (%d installments)", contractID, len(stored))
	return stored, nil
}
