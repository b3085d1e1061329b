package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
	"github.com/dps-core/contract-engine/internal/repository"
)

// ApplyPayment applies a payment to a contract's installment. The idempotency
// key makes the operation replay-safe: a repeated key returns the stored
// result of the first application without touching state again. Allocation
// within an installment is fees first, then interest, then principal;
// overpayment carries to later unsettled installments, never backward.
func (s *Service) ApplyPayment(ctx context.Context, contractID, installmentID int64, amount decimal.Decimal, idempotencyKey string) (*models.PaymentResult, error) {
	if idempotencyKey == "" {
		return nil, apperrors.Validation("MissingIdempotencyKey", "an idempotency key is required for payment requests")
	}

	var result *models.PaymentResult
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		// Locking the contract row serializes concurrent payments against
		// the same contract, so allocations never interleave.
		contract, err := tx.GetContractForUpdate(ctx, contractID)
		if err == repository.ErrContractNotFound {
			return apperrors.NotFound("ContractNotFound", fmt.Sprintf("contract %d does not exist", contractID))
		}
		if err != nil {
			return err
		}

		prior, err := tx.GetPaymentByKey(ctx, contractID, idempotencyKey)
		if err != nil && err != repository.ErrPaymentNotFound {
			return err
		}
		if prior != nil {
			stored := &models.PaymentResult{}
			if err := json.Unmarshal(prior.Result, stored); err != nil {
				return fmt.Errorf("failed to decode stored payment result: %w", err)
			}
			result = stored
			return nil
		}

		if contract.Status != models.ContractStatusActive {
			return apperrors.State("ContractNotActive", fmt.Sprintf("contract %s is %s", contract.Number, contract.Status))
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return apperrors.Validation("InvalidAmount", "payment amount must be greater than zero")
		}

		installments, err := tx.ListInstallments(ctx, contractID)
		if err != nil {
			return err
		}
		var target *models.Installment
		outstanding := decimal.Zero
		for _, inst := range installments {
			if !inst.Settled() {
				outstanding = outstanding.Add(inst.TotalRemaining())
			}
			if inst.ID == installmentID {
				target = inst
			}
		}
		if target == nil {
			return apperrors.NotFound("InstallmentNotFound", fmt.Sprintf("installment %d does not belong to contract %d", installmentID, contractID))
		}
		if amount.GreaterThan(outstanding) {
			return apperrors.Validation("AmountExceedsOutstanding",
				fmt.Sprintf("payment of %s exceeds the remaining contract balance of %s", amount, outstanding))
		}

		allocations, principalApplied := allocate(amount, target, installments)
		for i := range allocations {
			if err := tx.UpdateInstallment(ctx, allocations[i].installment); err != nil {
				return err
			}
		}

		last, err := tx.LastLedgerEntry(ctx, contractID)
		if err != nil {
			return err
		}
		balance := last.BalanceAfter.Sub(principalApplied)
		entry := &models.SubledgerEntry{
			ContractID:   contractID,
			EntryType:    models.EntryTypePayment,
			Debit:        decimal.Zero,
			Credit:       amount,
			BalanceAfter: balance,
		}
		if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
			return err
		}

		if amount.Equal(outstanding) {
			contract.Status = models.ContractStatusClosed
			if err := tx.UpdateContractStatus(ctx, contractID, models.ContractStatusClosed); err != nil {
				return err
			}
		}

		payment := &models.PaymentEvent{
			ID:             uuid.New(),
			ContractID:     contractID,
			InstallmentID:  installmentID,
			Amount:         amount,
			IdempotencyKey: idempotencyKey,
			AppliedAt:      time.Now().UTC(),
		}
		result = &models.PaymentResult{
			PaymentID:      payment.ID,
			ContractID:     contractID,
			Amount:         amount,
			Allocations:    exportAllocations(allocations),
			BalanceAfter:   balance,
			ContractStatus: contract.Status,
			AppliedAt:      payment.AppliedAt,
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode payment result: %w", err)
		}
		payment.Result = raw
		return tx.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("Payment %s of %s applied to contract %d", result.PaymentID, result.Amount, contractID)
	return result, nil
}

type allocation struct {
	installment *models.Installment
	fee         decimal.Decimal
	interest    decimal.Decimal
	principal   decimal.Decimal
}

// allocate distributes the amount over the target installment and, for any
// remainder, later unsettled installments in seq_no order. The standard
// waterfall applies within each installment: fees, then interest, then
// principal. Callers guarantee amount does not exceed the contract's total
// outstanding balance.
func allocate(amount decimal.Decimal, target *models.Installment, installments []*models.Installment) ([]allocation, decimal.Decimal) {
	remaining := amount
	principalApplied := decimal.Zero
	var allocations []allocation

	apply := func(inst *models.Installment) {
		if remaining.IsZero() || inst.Settled() {
			return
		}
		a := allocation{installment: inst}

		a.fee = decimal.Min(remaining, inst.FeeRemaining())
		inst.FeePaid = inst.FeePaid.Add(a.fee)
		remaining = remaining.Sub(a.fee)

		a.interest = decimal.Min(remaining, inst.InterestRemaining())
		inst.InterestPaid = inst.InterestPaid.Add(a.interest)
		remaining = remaining.Sub(a.interest)

		a.principal = decimal.Min(remaining, inst.PrincipalRemaining())
		inst.PrincipalPaid = inst.PrincipalPaid.Add(a.principal)
		remaining = remaining.Sub(a.principal)
		principalApplied = principalApplied.Add(a.principal)

		if inst.TotalRemaining().IsZero() {
			inst.Status = models.InstallmentStatusPaid
		} else if inst.FeePaid.Add(inst.InterestPaid).Add(inst.PrincipalPaid).IsPositive() {
			inst.Status = models.InstallmentStatusPartial
		}
		allocations = append(allocations, a)
	}

	apply(target)
	for _, inst := range installments {
		if remaining.IsZero() {
			break
		}
		// Carry-forward never flows backward.
		if inst.SeqNo <= target.SeqNo {
			continue
		}
		apply(inst)
	}
	return allocations, principalApplied
}

func exportAllocations(allocations []allocation) []models.PaymentAllocation {
	out := make([]models.PaymentAllocation, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, models.PaymentAllocation{
			InstallmentID: a.installment.ID,
			SeqNo:         a.installment.SeqNo,
			Fee:           a.fee,
			Interest:      a.interest,
			Principal:     a.principal,
			Status:        a.installment.Status,
		})
	}
	return out
}
