package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
)

func decliningTerms() models.ContractTerms {
	return models.ContractTerms{
		Principal:    decimal.NewFromInt(12000),
		AnnualRate:   decimal.NewFromFloat(0.12),
		TermMonths:   12,
		InterestType: models.InterestTypeDeclining,
		DayCount:     models.DayCountAct365,
		Currency:     "EUR",
		StartDate:    time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func createTestContract(t *testing.T, svc *Service, terms models.ContractTerms) (*models.Contract, []models.Installment) {
	t.Helper()
	scheme := createTestScheme(t, svc, models.GapPolicyNoGap)
	contract, schedule, err := svc.CreateContract(context.Background(), ContractInput{
		SchemeID:       scheme.ID,
		PeriodKey:      "2025-01",
		CustomerID:     "cust-1",
		IdempotencyKey: "create-1",
		Terms:          terms,
	})
	if err != nil {
		t.Fatalf("Failed to create contract: %v", err)
	}
	return contract, schedule
}

func outstandingTotal(schedule []models.Installment) decimal.Decimal {
	total := decimal.Zero
	for _, inst := range schedule {
		total = total.Add(inst.TotalDue())
	}
	return total
}

func TestApplyPaymentFullInstallment(t *testing.T) {
	svc, store := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())

	amount := schedule[0].TotalDue()
	result, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[0].ID, amount, "pay-1")
	if err != nil {
		t.Fatalf("Failed to apply payment: %v", err)
	}

	if len(result.Allocations) != 1 {
		t.Fatalf("Expected 1 allocation, got %d", len(result.Allocations))
	}
	if result.Allocations[0].Status != models.InstallmentStatusPaid {
		t.Errorf("Expected installment PAID, got %s", result.Allocations[0].Status)
	}
	if store.installments[contract.ID][0].Status != models.InstallmentStatusPaid {
		t.Errorf("Stored installment not PAID: %s", store.installments[contract.ID][0].Status)
	}
	if result.ContractStatus != models.ContractStatusActive {
		t.Errorf("Expected contract still ACTIVE, got %s", result.ContractStatus)
	}

	// Subledger: opening disbursement plus one payment entry, with the
	// balance stepped down by the principal portion only.
	entries := store.ledger[contract.ID]
	if len(entries) != 2 {
		t.Fatalf("Expected 2 ledger entries, got %d", len(entries))
	}
	if entries[1].EntryType != models.EntryTypePayment {
		t.Errorf("Expected PAYMENT entry, got %s", entries[1].EntryType)
	}
	if !entries[1].Credit.Equal(amount) {
		t.Errorf("Expected credit %s, got %s", amount, entries[1].Credit)
	}
	wantBalance := contract.Principal.Sub(schedule[0].PrincipalDue)
	if !result.BalanceAfter.Equal(wantBalance) {
		t.Errorf("Expected balance %s, got %s", wantBalance, result.BalanceAfter)
	}
}

func TestApplyPaymentIdempotentReplay(t *testing.T) {
	svc, store := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())

	amount := schedule[0].TotalDue()
	first, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[0].ID, amount, "pay-once")
	if err != nil {
		t.Fatalf("Failed to apply payment: %v", err)
	}
	second, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[0].ID, amount, "pay-once")
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	if string(firstJSON) != string(secondJSON) {
		t.Errorf("Replay result differs:\n%s\n%s", firstJSON, secondJSON)
	}
	if len(store.ledger[contract.ID]) != 2 {
		t.Errorf("Replay must not append ledger entries, got %d", len(store.ledger[contract.ID]))
	}
	if count, _ := store.CountPayments(context.Background(), contract.ID); count != 1 {
		t.Errorf("Expected 1 payment event, got %d", count)
	}
}

func TestApplyPaymentWaterfall(t *testing.T) {
	svc, store := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())

	// A pending fee on the first installment must absorb money before
	// interest, and interest before principal.
	store.installments[contract.ID][0].FeeDue = decimal.NewFromInt(50)

	result, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[0].ID, decimal.NewFromInt(100), "pay-partial")
	if err != nil {
		t.Fatalf("Failed to apply payment: %v", err)
	}

	alloc := result.Allocations[0]
	if !alloc.Fee.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected fee allocation 50, got %s", alloc.Fee)
	}
	if !alloc.Interest.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected interest allocation 50, got %s", alloc.Interest)
	}
	if !alloc.Principal.IsZero() {
		t.Errorf("Expected no principal allocation, got %s", alloc.Principal)
	}
	if alloc.Status != models.InstallmentStatusPartial {
		t.Errorf("Expected PARTIAL, got %s", alloc.Status)
	}
}

func TestApplyPaymentCarryForward(t *testing.T) {
	svc, _ := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())

	extra := decimal.NewFromInt(100)
	amount := schedule[1].TotalDue().Add(extra)
	result, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[1].ID, amount, "pay-over")
	if err != nil {
		t.Fatalf("Failed to apply payment: %v", err)
	}

	if len(result.Allocations) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(result.Allocations))
	}
	if result.Allocations[0].SeqNo != 2 || result.Allocations[0].Status != models.InstallmentStatusPaid {
		t.Errorf("Expected installment 2 PAID, got seq %d %s", result.Allocations[0].SeqNo, result.Allocations[0].Status)
	}
	// Overpayment flows forward to installment 3, never back to 1.
	if result.Allocations[1].SeqNo != 3 {
		t.Errorf("Expected carry-forward to seq 3, got %d", result.Allocations[1].SeqNo)
	}
	if !result.Allocations[1].Interest.Equal(extra) {
		t.Errorf("Expected 100 carried as interest, got %s", result.Allocations[1].Interest)
	}
	if result.Allocations[1].Status != models.InstallmentStatusPartial {
		t.Errorf("Expected installment 3 PARTIAL, got %s", result.Allocations[1].Status)
	}
}

func TestApplyPaymentClosesContract(t *testing.T) {
	svc, store := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())

	amount := outstandingTotal(schedule)
	result, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[0].ID, amount, "pay-all")
	if err != nil {
		t.Fatalf("Failed to apply payment: %v", err)
	}
	if result.ContractStatus != models.ContractStatusClosed {
		t.Errorf("Expected contract CLOSED, got %s", result.ContractStatus)
	}
	if store.contracts[contract.ID].Status != models.ContractStatusClosed {
		t.Errorf("Stored contract not CLOSED: %s", store.contracts[contract.ID].Status)
	}
	if !result.BalanceAfter.IsZero() {
		t.Errorf("Expected zero balance, got %s", result.BalanceAfter)
	}

	// Replaying the key on the now-closed contract still returns the stored
	// result instead of ContractNotActive.
	replay, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[0].ID, amount, "pay-all")
	if err != nil {
		t.Fatalf("Replay on closed contract failed: %v", err)
	}
	if replay.PaymentID != result.PaymentID {
		t.Errorf("Replay returned a different payment id")
	}
}

func TestApplyPaymentValidation(t *testing.T) {
	svc, store := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, contract.ID, schedule[0].ID, decimal.NewFromInt(100), "")
	if !apperrors.HasCode(err, "MissingIdempotencyKey") {
		t.Errorf("Expected MissingIdempotencyKey, got %v", err)
	}

	_, err = svc.ApplyPayment(ctx, contract.ID, schedule[0].ID, decimal.Zero, "k1")
	if !apperrors.HasCode(err, "InvalidAmount") {
		t.Errorf("Expected InvalidAmount, got %v", err)
	}

	over := outstandingTotal(schedule).Add(decimal.NewFromInt(1))
	_, err = svc.ApplyPayment(ctx, contract.ID, schedule[0].ID, over, "k2")
	if !apperrors.HasCode(err, "AmountExceedsOutstanding") {
		t.Errorf("Expected AmountExceedsOutstanding, got %v", err)
	}

	_, err = svc.ApplyPayment(ctx, contract.ID, 99999, decimal.NewFromInt(100), "k3")
	if !apperrors.HasCode(err, "InstallmentNotFound") {
		t.Errorf("Expected InstallmentNotFound, got %v", err)
	}

	_, err = svc.ApplyPayment(ctx, 99999, schedule[0].ID, decimal.NewFromInt(100), "k4")
	if !apperrors.HasCode(err, "ContractNotFound") {
		t.Errorf("Expected ContractNotFound, got %v", err)
	}

	store.contracts[contract.ID].Status = models.ContractStatusDefaulted
	_, err = svc.ApplyPayment(ctx, contract.ID, schedule[0].ID, decimal.NewFromInt(100), "k5")
	if !apperrors.HasCode(err, "ContractNotActive") {
		t.Errorf("Expected ContractNotActive, got %v", err)
	}
}
