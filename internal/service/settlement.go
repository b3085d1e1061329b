package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/config"
	"github.com/dps-core/contract-engine/internal/finance"
	"github.com/dps-core/contract-engine/internal/models"
	"github.com/dps-core/contract-engine/internal/repository"
)

// RebatePolicy decides the early-settlement rebate. The formula is an
// operator-configurable expression per interest type rather than a hard-coded
// rule; it is evaluated with the variables unearned_interest,
// principal_remaining and interest_accrued.
type RebatePolicy struct {
	flat      *govaluate.EvaluableExpression
	declining *govaluate.EvaluableExpression
}

// NewRebatePolicy compiles the configured rebate expressions
func NewRebatePolicy(cfg *config.Config) (*RebatePolicy, error) {
	flat, err := govaluate.NewEvaluableExpression(cfg.RebateExprFlat)
	if err != nil {
		return nil, fmt.Errorf("invalid REBATE_EXPR_FLAT: %w", err)
	}
	declining, err := govaluate.NewEvaluableExpression(cfg.RebateExprDeclining)
	if err != nil {
		return nil, fmt.Errorf("invalid REBATE_EXPR_DECLINING: %w", err)
	}
	return &RebatePolicy{flat: flat, declining: declining}, nil
}

// Rebate evaluates the policy for one settlement. The result is clamped to
// [0, unearned_interest] so a misconfigured formula can never inflate or
// invert the payoff.
func (p *RebatePolicy) Rebate(interestType models.InterestType, unearnedInterest, principalRemaining, interestAccrued decimal.Decimal) (decimal.Decimal, error) {
	expr := p.flat
	if interestType == models.InterestTypeDeclining {
		expr = p.declining
	}
	raw, err := expr.Evaluate(map[string]any{
		"unearned_interest":   unearnedInterest.InexactFloat64(),
		"principal_remaining": principalRemaining.InexactFloat64(),
		"interest_accrued":    interestAccrued.InexactFloat64(),
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to evaluate rebate expression: %w", err)
	}
	value, ok := raw.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("rebate expression returned %T, want a number", raw)
	}
	rebate := decimal.NewFromFloat(value).Round(2)
	if rebate.IsNegative() {
		return decimal.Zero, nil
	}
	return decimal.Min(rebate, unearnedInterest), nil
}

// PreviewSettlement computes the early-settlement payoff as a pure
// projection; nothing is mutated.
func (s *Service) PreviewSettlement(ctx context.Context, contractID int64, settlementDate time.Time) (*models.EarlySettlement, error) {
	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	installments, err := s.store.ListInstallments(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return s.quote(contract, installments, settlementDate)
}

// ExecuteSettlement closes the contract at the quoted payoff: it appends the
// closing subledger entry, writes off the remaining installments and sets the
// contract CLOSED, atomically. A repeated idempotency key returns the stored
// result of the first execution without touching state again.
func (s *Service) ExecuteSettlement(ctx context.Context, contractID int64, settlementDate time.Time, idempotencyKey string) (*models.EarlySettlement, error) {
	if idempotencyKey == "" {
		return nil, apperrors.Validation("MissingIdempotencyKey", "an idempotency key is required for settlement execution")
	}

	var settlement *models.EarlySettlement
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		contract, err := tx.GetContractForUpdate(ctx, contractID)
		if err == repository.ErrContractNotFound {
			return apperrors.NotFound("ContractNotFound", fmt.Sprintf("contract %d does not exist", contractID))
		}
		if err != nil {
			return err
		}

		prior, err := tx.GetSettlementByKey(ctx, contractID, idempotencyKey)
		if err != nil && err != repository.ErrSettlementNotFound {
			return err
		}
		if prior != nil {
			stored := &models.EarlySettlement{}
			if err := json.Unmarshal(prior.Result, stored); err != nil {
				return fmt.Errorf("failed to decode stored settlement result: %w", err)
			}
			settlement = stored
			return nil
		}

		if contract.Status == models.ContractStatusClosed {
			return apperrors.State("ContractAlreadyClosed", fmt.Sprintf("contract %s is already closed", contract.Number))
		}
		lastPayment, err := tx.LastPaymentTime(ctx, contractID)
		if err != nil {
			return err
		}
		if lastPayment != nil && settlementDate.Before(*lastPayment) {
			return apperrors.Validation("SettlementDateInPast",
				fmt.Sprintf("settlement date %s precedes the last applied payment", settlementDate.Format("2006-01-02")))
		}

		installments, err := tx.ListInstallments(ctx, contractID)
		if err != nil {
			return err
		}
		if settlement, err = s.quote(contract, installments, settlementDate); err != nil {
			return err
		}

		if err := tx.AppendLedgerEntry(ctx, &models.SubledgerEntry{
			ContractID:   contractID,
			EntryType:    models.EntryTypeSettlement,
			Debit:        decimal.Zero,
			Credit:       settlement.PayoffAmount,
			BalanceAfter: decimal.Zero,
		}); err != nil {
			return err
		}
		for _, inst := range installments {
			if inst.Settled() {
				continue
			}
			// Written off with zero due: unpaid portions are cancelled.
			inst.PrincipalDue = inst.PrincipalPaid
			inst.InterestDue = inst.InterestPaid
			inst.FeeDue = inst.FeePaid
			inst.Status = models.InstallmentStatusWrittenOff
			if err := tx.UpdateInstallment(ctx, inst); err != nil {
				return err
			}
		}
		if err := tx.UpdateContractStatus(ctx, contractID, models.ContractStatusClosed); err != nil {
			return err
		}
		settlement.Executed = true

		raw, err := json.Marshal(settlement)
		if err != nil {
			return fmt.Errorf("failed to encode settlement result: %w", err)
		}
		return tx.CreateSettlement(ctx, &models.SettlementEvent{
			ContractID:     contractID,
			IdempotencyKey: idempotencyKey,
			ExecutedAt:     time.Now().UTC(),
			Result:         raw,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("Contract %d settled early for %s", contractID, settlement.PayoffAmount)
	return settlement, nil
}

// quote assembles the settlement components from the contract state.
func (s *Service) quote(contract *models.Contract, installments []*models.Installment, settlementDate time.Time) (*models.EarlySettlement, error) {
	principalRemaining := decimal.Zero
	unearnedInterest := decimal.Zero
	accrueFrom := contract.StartDate
	for _, inst := range installments {
		if inst.Status == models.InstallmentStatusPaid && inst.DueDate.After(accrueFrom) {
			accrueFrom = inst.DueDate
		}
		if inst.Status == models.InstallmentStatusWrittenOff {
			continue
		}
		principalRemaining = principalRemaining.Add(inst.PrincipalRemaining())
		unearnedInterest = unearnedInterest.Add(inst.InterestRemaining())
	}

	accrued := finance.AccruedInterest(contract.DayCount, principalRemaining, contract.AnnualRate, accrueFrom, settlementDate)
	rebate, err := s.rebates.Rebate(contract.InterestType, unearnedInterest, principalRemaining, accrued)
	if err != nil {
		return nil, err
	}
	return &models.EarlySettlement{
		ContractID:         contract.ID,
		SettlementDate:     settlementDate,
		PrincipalRemaining: principalRemaining,
		InterestAccrued:    accrued,
		Rebate:             rebate,
		PayoffAmount:       finance.PayoffAmount(principalRemaining, accrued, rebate),
	}, nil
}
