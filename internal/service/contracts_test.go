package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
)

func TestCreateContract(t *testing.T) {
	svc, store := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())

	if contract.Number != "CTR-2025-01-000001" {
		t.Errorf("Expected number CTR-2025-01-000001, got %s", contract.Number)
	}
	if contract.Status != models.ContractStatusActive {
		t.Errorf("Expected ACTIVE, got %s", contract.Status)
	}
	if len(schedule) != 12 {
		t.Errorf("Expected 12 installments, got %d", len(schedule))
	}

	// The opening disbursement entry carries the full principal.
	entries := store.ledger[contract.ID]
	if len(entries) != 1 {
		t.Fatalf("Expected 1 ledger entry, got %d", len(entries))
	}
	if entries[0].EntryType != models.EntryTypeDisbursement {
		t.Errorf("Expected DISBURSEMENT, got %s", entries[0].EntryType)
	}
	if !entries[0].BalanceAfter.Equal(contract.Principal) {
		t.Errorf("Expected opening balance %s, got %s", contract.Principal, entries[0].BalanceAfter)
	}
}

func TestCreateContractRequiresCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	scheme := createTestScheme(t, svc, models.GapPolicyNoGap)
	_, _, err := svc.CreateContract(context.Background(), ContractInput{
		SchemeID:       scheme.ID,
		IdempotencyKey: "create-1",
		Terms:          decliningTerms(),
	})
	if !apperrors.HasCode(err, "InvalidContract") {
		t.Errorf("Expected InvalidContract, got %v", err)
	}
}

func TestCreateContractRequiresIdempotencyKey(t *testing.T) {
	svc, _ := newTestService(t)
	scheme := createTestScheme(t, svc, models.GapPolicyNoGap)
	_, _, err := svc.CreateContract(context.Background(), ContractInput{
		SchemeID:   scheme.ID,
		CustomerID: "cust-1",
		Terms:      decliningTerms(),
	})
	if !apperrors.HasCode(err, "MissingIdempotencyKey") {
		t.Errorf("Expected MissingIdempotencyKey, got %v", err)
	}
}

func TestCreateContractIdempotentReplay(t *testing.T) {
	svc, store := newTestService(t)
	scheme := createTestScheme(t, svc, models.GapPolicyNoGap)
	in := ContractInput{
		SchemeID:       scheme.ID,
		PeriodKey:      "2025-01",
		CustomerID:     "cust-1",
		IdempotencyKey: "create-retry",
		Terms:          decliningTerms(),
	}

	first, firstSchedule, err := svc.CreateContract(context.Background(), in)
	if err != nil {
		t.Fatalf("Failed to create contract: %v", err)
	}
	// A retried request with the same key replays the original creation:
	// same contract, no duplicate, no burnt NO_GAP number.
	second, secondSchedule, err := svc.CreateContract(context.Background(), in)
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if second.ID != first.ID || second.Number != first.Number {
		t.Errorf("Replay opened a different contract: %s vs %s", second.Number, first.Number)
	}
	if len(secondSchedule) != len(firstSchedule) || secondSchedule[0].ID != firstSchedule[0].ID {
		t.Errorf("Replay returned a different schedule")
	}
	if len(store.contracts) != 1 {
		t.Errorf("Expected 1 contract, got %d", len(store.contracts))
	}
	if got := store.schemes[scheme.ID].CurrentValue; got != 1 {
		t.Errorf("Replay must not consume a number, current_value %d", got)
	}
	if len(store.ledger[first.ID]) != 1 {
		t.Errorf("Replay must not append ledger entries, got %d", len(store.ledger[first.ID]))
	}
}

func TestCreateContractInvalidTermsConsumesNoNumber(t *testing.T) {
	svc, store := newTestService(t)
	scheme := createTestScheme(t, svc, models.GapPolicyNoGap)

	terms := decliningTerms()
	terms.Principal = decimal.Zero
	_, _, err := svc.CreateContract(context.Background(), ContractInput{
		SchemeID:       scheme.ID,
		PeriodKey:      "2025-01",
		CustomerID:     "cust-1",
		IdempotencyKey: "create-1",
		Terms:          terms,
	})
	if !apperrors.HasCode(err, "InvalidTerms") {
		t.Fatalf("Expected InvalidTerms, got %v", err)
	}
	// Validation fails before the reservation, so no number is burnt.
	if got := store.schemes[scheme.ID].CurrentValue; got != 0 {
		t.Errorf("Expected current_value 0, got %d", got)
	}
}

func TestRegenerateSchedule(t *testing.T) {
	svc, store := newTestService(t)
	contract, _ := createTestContract(t, svc, decliningTerms())

	terms := decliningTerms()
	terms.Principal = decimal.NewFromInt(15000)
	terms.TermMonths = 24
	schedule, err := svc.RegenerateSchedule(context.Background(), contract.ID, terms)
	if err != nil {
		t.Fatalf("Failed to regenerate schedule: %v", err)
	}
	if len(schedule) != 24 {
		t.Errorf("Expected 24 installments, got %d", len(schedule))
	}
	if !store.contracts[contract.ID].Principal.Equal(terms.Principal) {
		t.Errorf("Contract principal not updated: %s", store.contracts[contract.ID].Principal)
	}

	// The principal change re-bases the ledger with an adjustment entry.
	entries := store.ledger[contract.ID]
	last := entries[len(entries)-1]
	if last.EntryType != models.EntryTypeAdjustment {
		t.Errorf("Expected ADJUSTMENT entry, got %s", last.EntryType)
	}
	if !last.BalanceAfter.Equal(terms.Principal) {
		t.Errorf("Expected balance %s, got %s", terms.Principal, last.BalanceAfter)
	}
}

func TestRegenerateScheduleLockedAfterPayment(t *testing.T) {
	svc, _ := newTestService(t)
	contract, schedule := createTestContract(t, svc, decliningTerms())

	_, err := svc.ApplyPayment(context.Background(), contract.ID, schedule[0].ID, decimal.NewFromInt(100), "pay-1")
	if err != nil {
		t.Fatalf("Failed to apply payment: %v", err)
	}
	_, err = svc.RegenerateSchedule(context.Background(), contract.ID, decliningTerms())
	if !apperrors.HasCode(err, "ScheduleLocked") {
		t.Errorf("Expected ScheduleLocked, got %v", err)
	}
}

func TestGetContractNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetContract(context.Background(), 12345)
	if !apperrors.HasCode(err, "ContractNotFound") {
		t.Errorf("Expected ContractNotFound, got %v", err)
	}
}
